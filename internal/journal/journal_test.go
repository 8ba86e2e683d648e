package journal

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauljones0/wa-catalog-uploader/internal/models"
)

func newTestJournal() *Journal {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestJournal_MostRecentFirst(t *testing.T) {
	j := newTestJournal()
	j.Info("first")
	j.Success("second")
	j.Error("third", "boom")

	entries := j.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "third", entries[0].Message)
	assert.Equal(t, models.SeverityError, entries[0].Type)
	assert.Equal(t, "boom", entries[0].Details)
	assert.Equal(t, "second", entries[1].Message)
	assert.Equal(t, "first", entries[2].Message)
}

func TestJournal_EntriesHaveUniqueIDsAndTimestamps(t *testing.T) {
	j := newTestJournal()
	fixed := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	a := j.Add(models.SeverityInfo, "a", "")
	b := j.Add(models.SeverityWarning, "b", "")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, fixed, a.Timestamp)
}

func TestJournal_EntriesReturnsCopy(t *testing.T) {
	j := newTestJournal()
	j.Info("original")

	entries := j.Entries()
	entries[0].Message = "mutated"

	assert.Equal(t, "original", j.Entries()[0].Message)
}

func TestJournal_Clear(t *testing.T) {
	j := newTestJournal()
	j.Info("one")
	j.Warn("two")
	require.Equal(t, 2, j.Len())

	j.Clear()
	assert.Equal(t, 0, j.Len())
	assert.Empty(t, j.Entries())
}

func TestJournal_Export(t *testing.T) {
	j := newTestJournal()
	j.Info("started")
	j.Error("Batch #1 failed", "Invalid parameter")

	var buf bytes.Buffer
	require.NoError(t, j.Export(&buf))

	var decoded []models.LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "Batch #1 failed", decoded[0].Message)
	assert.Equal(t, models.SeverityError, decoded[0].Type)
	assert.Contains(t, buf.String(), "\n  {", "report should be indented")
	assert.NotContains(t, buf.String(), `"details": ""`, "empty details are omitted")
}

func TestJournal_ConcurrentAdds(t *testing.T) {
	j := newTestJournal()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.Info("entry")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, j.Len())
}

func TestReportFileName(t *testing.T) {
	at := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "upload_report_20261017T093000Z.json", ReportFileName(at))
	assert.NotContains(t, ReportFileName(at), ":")

	local := time.Date(2026, 10, 17, 11, 30, 0, 0, time.FixedZone("CEST", 2*60*60))
	assert.Equal(t, "upload_report_20261017T093000Z.json", ReportFileName(local))
}
