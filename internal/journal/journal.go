// Package journal keeps the operator-facing log of a session.
//
// Entries are append-only and read back most recent first. Each entry is
// mirrored to slog so server logs carry the same diagnostics.
package journal

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pauljones0/wa-catalog-uploader/internal/models"
)

type Journal struct {
	mu      sync.RWMutex
	entries []models.LogEntry // oldest first
	now     func() time.Time
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{now: time.Now, logger: logger}
}

// Add appends an entry and returns it.
func (j *Journal) Add(severity models.Severity, message, details string) models.LogEntry {
	entry := models.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: j.now(),
		Type:      severity,
		Message:   message,
		Details:   details,
	}

	j.mu.Lock()
	j.entries = append(j.entries, entry)
	j.mu.Unlock()

	attrs := []any{"severity", string(severity)}
	if details != "" {
		attrs = append(attrs, "details", details)
	}
	switch severity {
	case models.SeverityError:
		j.logger.Error(message, attrs...)
	case models.SeverityWarning:
		j.logger.Warn(message, attrs...)
	default:
		j.logger.Info(message, attrs...)
	}
	return entry
}

func (j *Journal) Info(message string)    { j.Add(models.SeverityInfo, message, "") }
func (j *Journal) Success(message string) { j.Add(models.SeveritySuccess, message, "") }
func (j *Journal) Warn(message string)    { j.Add(models.SeverityWarning, message, "") }

func (j *Journal) Error(message, details string) { j.Add(models.SeverityError, message, details) }

// Entries returns a copy of the log, most recent first.
func (j *Journal) Entries() []models.LogEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]models.LogEntry, len(j.entries))
	for i, e := range j.entries {
		out[len(j.entries)-1-i] = e
	}
	return out
}

// Len returns the number of entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Clear drops every entry. Used only when the whole session is cleared.
func (j *Journal) Clear() {
	j.mu.Lock()
	j.entries = nil
	j.mu.Unlock()
}

// Export writes the log as indented JSON, most recent first.
func (j *Journal) Export(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(j.Entries()); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// reportTimeLayout is a compact UTC timestamp that is safe in file names
// on every platform.
const reportTimeLayout = "20060102T150405Z"

// ReportFileName is the download name of an exported report.
func ReportFileName(at time.Time) string {
	return "upload_report_" + at.UTC().Format(reportTimeLayout) + ".json"
}
