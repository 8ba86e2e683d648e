package connection

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauljones0/wa-catalog-uploader/internal/graph"
	"github.com/pauljones0/wa-catalog-uploader/internal/models"
)

type mockAPI struct {
	mu           sync.Mutex
	meErr        error
	listErr      error
	catalogErr   error
	catalogs     []models.Catalog
	meCalls      int
	listCalls    int
	catalogCalls int
}

func (m *mockAPI) Me(ctx context.Context, token string) (*graph.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meCalls++
	if m.meErr != nil {
		return nil, m.meErr
	}
	return &graph.User{ID: "u1"}, nil
}

func (m *mockAPI) AssignedCatalogs(ctx context.Context, token string) ([]models.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.catalogs, nil
}

func (m *mockAPI) Catalog(ctx context.Context, token, catalogID string) (*models.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalogCalls++
	if m.catalogErr != nil {
		return nil, m.catalogErr
	}
	return &models.Catalog{ID: catalogID, Name: "Main"}, nil
}

type recordingReporter struct {
	mu      sync.Mutex
	entries []models.Severity
}

func (r *recordingReporter) add(s models.Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, s)
}

func (r *recordingReporter) Info(string)          { r.add(models.SeverityInfo) }
func (r *recordingReporter) Success(string)       { r.add(models.SeveritySuccess) }
func (r *recordingReporter) Warn(string)          { r.add(models.SeverityWarning) }
func (r *recordingReporter) Error(string, string) { r.add(models.SeverityError) }

type statusRecorder struct {
	mu      sync.Mutex
	history []models.Status
}

func (s *statusRecorder) SetStatus(status models.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, status)
}

func (s *statusRecorder) last() models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return ""
	}
	return s.history[len(s.history)-1]
}

func conn(token, catalog string) models.Connection {
	return models.Connection{AccessToken: token, Catalog: models.ParseCatalogRef(catalog)}
}

func TestValidate_Outcomes(t *testing.T) {
	upstream := &models.Error{Kind: models.KindUpstream, Err: errors.New("boom")}

	tests := []struct {
		name       string
		conn       models.Connection
		api        func() *mockAPI
		wantReady  bool
		wantKind   models.Kind
		wantStatus models.Status
	}{
		{"missing token", conn("", "123"), func() *mockAPI { return &mockAPI{} }, false, models.KindMissingCredential, models.StatusIdle},
		{"invalid token", conn("tok", "123"), func() *mockAPI { return &mockAPI{meErr: upstream} }, false, models.KindTokenInvalid, models.StatusError},
		{"no catalog", conn("tok", ""), func() *mockAPI { return &mockAPI{} }, false, "", models.StatusIdle},
		{"manual catalog", conn("tok", "manual"), func() *mockAPI { return &mockAPI{} }, false, "", models.StatusIdle},
		{"malformed id", conn("tok", "123abc"), func() *mockAPI { return &mockAPI{} }, false, models.KindMalformedCatalogID, models.StatusError},
		{"pasted link", conn("tok", "https://wa.me/c/123"), func() *mockAPI { return &mockAPI{} }, false, models.KindMalformedCatalogID, models.StatusError},
		{"catalog unreachable", conn("tok", "987654321"), func() *mockAPI { return &mockAPI{catalogErr: upstream} }, false, models.KindCatalogUnreachable, models.StatusError},
		{"ready", conn("tok", "987654321"), func() *mockAPI { return &mockAPI{} }, true, "", models.StatusReady},
		{"ready despite listing failure", conn("tok", "987654321"), func() *mockAPI { return &mockAPI{listErr: upstream} }, true, "", models.StatusReady},
	}

	for _, tt := range tests {
		for _, verbose := range []bool{true, false} {
			status := &statusRecorder{}
			v := New(tt.api(), &recordingReporter{}, status)

			ready, err := v.Validate(context.Background(), tt.conn, verbose)

			assert.Equal(t, tt.wantReady, ready, "%s verbose=%t", tt.name, verbose)
			assert.Equal(t, tt.wantKind, models.KindOf(err), "%s verbose=%t", tt.name, verbose)
			assert.Equal(t, tt.wantStatus, status.last(), "%s verbose=%t", tt.name, verbose)
		}
	}
}

func TestValidate_NoNetworkCallForLocalFailures(t *testing.T) {
	api := &mockAPI{}
	v := New(api, &recordingReporter{}, &statusRecorder{})

	_, err := v.Validate(context.Background(), conn("", "123"), true)
	require.Error(t, err)
	assert.Zero(t, api.meCalls+api.listCalls+api.catalogCalls)

	_, err = v.Validate(context.Background(), conn("tok", "123abc"), true)
	assert.ErrorIs(t, err, &models.Error{Kind: models.KindMalformedCatalogID})
	assert.Zero(t, api.catalogCalls)

	_, _ = v.Validate(context.Background(), conn("tok", "manual"), true)
	assert.Zero(t, api.catalogCalls)
}

func TestValidate_StatusTransitions(t *testing.T) {
	status := &statusRecorder{}
	v := New(&mockAPI{}, &recordingReporter{}, status)

	ready, err := v.Validate(context.Background(), conn("tok", "42"), false)
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, []models.Status{models.StatusValidating, models.StatusReady}, status.history)
}

func TestValidate_VerboseOnlyAffectsJournal(t *testing.T) {
	quiet := &recordingReporter{}
	v := New(&mockAPI{}, quiet, &statusRecorder{})
	_, _ = v.Validate(context.Background(), conn("tok", "42"), false)
	assert.Empty(t, quiet.entries)

	loud := &recordingReporter{}
	v = New(&mockAPI{}, loud, &statusRecorder{})
	_, _ = v.Validate(context.Background(), conn("tok", "42"), true)
	assert.NotEmpty(t, loud.entries)
}

func TestValidate_ListingFailureWarnsWhenVerbose(t *testing.T) {
	reporter := &recordingReporter{}
	api := &mockAPI{listErr: errors.New("permission denied")}
	v := New(api, reporter, &statusRecorder{})

	ready, err := v.Validate(context.Background(), conn("tok", ""), true)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Contains(t, reporter.entries, models.SeverityWarning)
	assert.Empty(t, v.Catalogs())
}

func TestValidate_NetworkErrorKeepsKind(t *testing.T) {
	netErr := &models.Error{Kind: models.KindNetworkUnreachable, Message: graph.NetworkGuidance}
	v := New(&mockAPI{meErr: netErr}, &recordingReporter{}, &statusRecorder{})

	_, err := v.Validate(context.Background(), conn("tok", "1"), true)
	assert.Equal(t, models.KindNetworkUnreachable, models.KindOf(err))
	assert.Equal(t, graph.NetworkGuidance, v.Message())
}

func TestDeepLinkAndReset(t *testing.T) {
	api := &mockAPI{catalogs: []models.Catalog{
		{ID: "42", Name: "Shop", BusinessID: "b7"},
		{ID: "43", Name: "Other"},
	}}
	status := &statusRecorder{}
	v := New(api, &recordingReporter{}, status)

	ready, err := v.Validate(context.Background(), conn("tok", "42"), true)
	require.NoError(t, err)
	require.True(t, ready)

	assert.Len(t, v.Catalogs(), 2)
	assert.Equal(t, "https://business.facebook.com/commerce_manager/42/items?business_id=b7", v.DeepLink())
	assert.Equal(t, "Connection successful", v.Message())

	v.Reset()
	assert.Empty(t, v.Catalogs())
	assert.Empty(t, v.DeepLink())
	assert.Equal(t, models.StatusIdle, status.last())
}
