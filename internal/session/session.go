// Package session holds the operator's working state: the connection
// settings, the loaded item file, the journal and the current run.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pauljones0/wa-catalog-uploader/internal/connection"
	"github.com/pauljones0/wa-catalog-uploader/internal/journal"
	"github.com/pauljones0/wa-catalog-uploader/internal/loader"
	"github.com/pauljones0/wa-catalog-uploader/internal/models"
	"github.com/pauljones0/wa-catalog-uploader/internal/uploader"
	"github.com/pauljones0/wa-catalog-uploader/internal/util"
)

// DefaultProfile is the document name of the single stored profile.
const DefaultProfile = "default"

// API is the remote surface a session needs.
type API interface {
	connection.CatalogAPI
	uploader.BatchAPI
}

// ProfileStore persists connection settings between sessions.
type ProfileStore interface {
	SaveProfile(ctx context.Context, name string, conn models.Connection) error
	LoadProfile(ctx context.Context, name string) (*models.Connection, error)
}

type Deps struct {
	API    API
	Logger *slog.Logger
	// Profiles and Recorder are optional.
	Profiles      ProfileStore
	Recorder      uploader.RunRecorder
	BatchDelay    time.Duration
	MaxStoredRuns int
	OnProgress    func(models.UploadStats)
}

type Session struct {
	journal   *journal.Journal
	validator *connection.Validator
	uploader  *uploader.Uploader
	profiles  ProfileStore

	// opMu serializes run starts with operations that change the
	// connection, the items or the status.
	opMu sync.Mutex

	mu       sync.RWMutex
	conn     models.Connection
	items    []models.Item
	fileName string
	status   models.Status
}

func New(conn models.Connection, deps Deps) *Session {
	s := &Session{
		journal:  journal.New(deps.Logger),
		profiles: deps.Profiles,
		conn:     conn,
		status:   models.StatusIdle,
	}
	s.validator = connection.New(deps.API, s.journal, s)
	s.uploader = uploader.New(deps.API, s.validator, s.journal, s, uploader.Options{
		BatchDelay:    deps.BatchDelay,
		Recorder:      deps.Recorder,
		MaxStoredRuns: deps.MaxStoredRuns,
		OnProgress:    deps.OnProgress,
	})
	return s
}

// SetStatus records a status transition.
func (s *Session) SetStatus(status models.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Session) Status() models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) Connection() models.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// Restore loads the stored profile, if any, over the current connection.
func (s *Session) Restore(ctx context.Context) error {
	if s.profiles == nil {
		return nil
	}
	stored, err := s.profiles.LoadProfile(ctx, DefaultProfile)
	if err != nil {
		return fmt.Errorf("failed to restore profile: %w", err)
	}
	if stored == nil {
		return nil
	}
	s.mu.Lock()
	s.conn = *stored
	s.mu.Unlock()
	slog.Info("Restored saved connection profile", "catalog", stored.Catalog.String())
	return nil
}

// UpdateConnection replaces the connection settings. A changed token
// drops the discovered catalogs and returns the status to idle. It fails
// with uploader.ErrRunInProgress while a run is active.
func (s *Session) UpdateConnection(ctx context.Context, conn models.Connection) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.uploader.Running() {
		return uploader.ErrRunInProgress
	}

	s.mu.Lock()
	tokenChanged := s.conn.AccessToken != conn.AccessToken
	s.conn = conn
	s.mu.Unlock()

	if tokenChanged {
		s.validator.Reset()
	}
	if s.profiles == nil {
		return nil
	}
	if err := s.profiles.SaveProfile(ctx, DefaultProfile, conn); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Validate checks the current connection. The run validates on its own,
// so this fails with uploader.ErrRunInProgress while a run is active.
func (s *Session) Validate(ctx context.Context, verbose bool) (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.uploader.Running() {
		return false, uploader.ErrRunInProgress
	}
	return s.validator.Validate(ctx, s.Connection(), verbose)
}

// LoadItems replaces the item list with the contents of an uploaded file.
// On success it validates the connection quietly when one is configured.
func (s *Session) LoadItems(ctx context.Context, name, contentType string, r io.Reader) (*loader.Result, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.uploader.Running() {
		return nil, uploader.ErrRunInProgress
	}

	if err := loader.CheckFileType(name, contentType); err != nil {
		s.journal.Error("Invalid file type. Upload a .json file", "")
		return nil, err
	}

	conn := s.Connection()
	res, err := loader.Parse(r, conn.WebsiteURL)
	if err != nil {
		if errors.Is(err, loader.ErrNoValidItems) {
			s.journal.Error("The file has no valid items (retailer_id, name and price are required).", "")
		} else {
			s.journal.Error("JSON parse error", err.Error())
		}
		return res, err
	}

	for _, w := range res.Warnings() {
		s.journal.Warn(w)
	}

	s.mu.Lock()
	s.items = res.Items
	s.fileName = name
	s.mu.Unlock()
	s.uploader.Reset(len(res.Items))
	s.journal.Info(fmt.Sprintf("File %q loaded. %s ready to upload.",
		name, util.Plural(len(res.Items), "item is", "items are")))

	if conn.AccessToken != "" && !conn.Catalog.IsNone() {
		_, _ = s.validator.Validate(ctx, conn, false)
	}
	return res, nil
}

func (s *Session) Items() []models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Upload runs an upload of the loaded items and blocks until it ends.
func (s *Session) Upload(ctx context.Context) (models.UploadStats, error) {
	run, err := s.StartUpload()
	if err != nil {
		return s.uploader.Stats(), err
	}
	return run(ctx)
}

// StartUpload claims the run for the loaded items and returns its body,
// which must be called exactly once. A second start fails with
// uploader.ErrRunInProgress until the body returns.
func (s *Session) StartUpload() (func(context.Context) (models.UploadStats, error), error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.RLock()
	conn := s.conn
	items := s.items
	s.mu.RUnlock()
	return s.uploader.Start(conn, items)
}

func (s *Session) Uploading() bool {
	return s.uploader.Running()
}

// Clear drops the items, the journal and the stats.
func (s *Session) Clear() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.uploader.Running() {
		return uploader.ErrRunInProgress
	}
	s.mu.Lock()
	s.items = nil
	s.fileName = ""
	s.status = models.StatusIdle
	s.mu.Unlock()
	s.journal.Clear()
	s.uploader.Reset(0)
	return nil
}

func (s *Session) Entries() []models.LogEntry {
	return s.journal.Entries()
}

// ExportReport writes the full journal as JSON.
func (s *Session) ExportReport(w io.Writer) error {
	return s.journal.Export(w)
}

func (s *Session) Catalogs() []models.Catalog {
	return s.validator.Catalogs()
}

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	Status   models.Status      `json:"status"`
	Stats    models.UploadStats `json:"stats"`
	Items    int                `json:"items"`
	Logs     int                `json:"logs"`
	FileName string             `json:"file_name,omitempty"`
	Message  string             `json:"message,omitempty"`
	DeepLink string             `json:"deep_link,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		Status:   s.status,
		Items:    len(s.items),
		FileName: s.fileName,
	}
	s.mu.RUnlock()
	snap.Logs = s.journal.Len()
	snap.Stats = s.uploader.Stats()
	snap.Message = s.validator.Message()
	snap.DeepLink = s.validator.DeepLink()
	return snap
}
