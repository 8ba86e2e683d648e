package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pauljones0/wa-catalog-uploader/internal/journal"
	"github.com/pauljones0/wa-catalog-uploader/internal/loader"
	"github.com/pauljones0/wa-catalog-uploader/internal/models"
	"github.com/pauljones0/wa-catalog-uploader/internal/session"
	"github.com/pauljones0/wa-catalog-uploader/internal/uploader"
	"github.com/pauljones0/wa-catalog-uploader/internal/util"
	"github.com/pauljones0/wa-catalog-uploader/internal/validator"
)

const (
	maxItemFileBytes = 10 << 20
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// RunLister lists stored upload runs.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]models.RunReport, error)
}

type Server struct {
	// runCtx bounds background uploads; it is cancelled on shutdown.
	runCtx   context.Context
	session  *session.Session
	runs     RunLister
	validate *validator.Validator
	wg       sync.WaitGroup
}

func NewServer(runCtx context.Context, sess *session.Session, runs RunLister) *Server {
	return &Server{runCtx: runCtx, session: sess, runs: runs, validate: validator.New()}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("GET /config", s.GetConfigHandler)
	mux.HandleFunc("PUT /config", s.PutConfigHandler)
	mux.HandleFunc("POST /validate", s.ValidateHandler)
	mux.HandleFunc("POST /items", s.LoadItemsHandler)
	mux.HandleFunc("GET /items/sample", s.SampleHandler)
	mux.HandleFunc("POST /upload", s.UploadHandler)
	mux.HandleFunc("GET /status", s.StatusHandler)
	mux.HandleFunc("GET /logs", s.LogsHandler)
	mux.HandleFunc("GET /report", s.ReportHandler)
	mux.HandleFunc("DELETE /session", s.ClearHandler)
	mux.HandleFunc("GET /runs", s.RunsHandler)
	return mux
}

// Wait blocks until background uploads have returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

type configView struct {
	AccessToken string `json:"access_token"`
	CatalogID   string `json:"catalog_id"`
	WebsiteURL  string `json:"website_url"`
}

func (s *Server) GetConfigHandler(w http.ResponseWriter, r *http.Request) {
	conn := s.session.Connection()
	writeJSON(w, http.StatusOK, configView{
		AccessToken: util.MaskSecret(conn.AccessToken),
		CatalogID:   conn.Catalog.String(),
		WebsiteURL:  conn.WebsiteURL,
	})
}

func (s *Server) PutConfigHandler(w http.ResponseWriter, r *http.Request) {
	var conn models.Connection
	if err := json.NewDecoder(r.Body).Decode(&conn); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid config body: %w", err))
		return
	}
	if err := s.validate.ValidateVar(conn.WebsiteURL, "omitempty,url"); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("website_url: %w", err))
		return
	}
	if err := s.session.UpdateConnection(r.Context(), conn); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, uploader.ErrRunInProgress) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	s.GetConfigHandler(w, r)
}

type validateResponse struct {
	Ready     bool             `json:"ready"`
	Status    models.Status    `json:"status"`
	Message   string           `json:"message,omitempty"`
	ErrorKind models.Kind      `json:"error_kind,omitempty"`
	Catalogs  []models.Catalog `json:"catalogs"`
	DeepLink  string           `json:"deep_link,omitempty"`
}

func (s *Server) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	ready, err := s.session.Validate(r.Context(), true)
	if errors.Is(err, uploader.ErrRunInProgress) {
		writeError(w, http.StatusConflict, err)
		return
	}
	snap := s.session.Snapshot()
	catalogs := s.session.Catalogs()
	if catalogs == nil {
		catalogs = []models.Catalog{}
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Ready:     ready,
		Status:    snap.Status,
		Message:   snap.Message,
		ErrorKind: models.KindOf(err),
		Catalogs:  catalogs,
		DeepLink:  snap.DeepLink,
	})
}

type loadResponse struct {
	FileName     string   `json:"file_name"`
	Accepted     int      `json:"accepted"`
	Rejected     int      `json:"rejected"`
	MissingImage int      `json:"missing_image"`
	OffsiteURLs  int      `json:"offsite_urls"`
	Warnings     []string `json:"warnings"`
}

func (s *Server) LoadItemsHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	body := http.MaxBytesReader(w, r.Body, maxItemFileBytes)

	res, err := s.session.LoadItems(r.Context(), name, r.Header.Get("Content-Type"), body)
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, uploader.ErrRunInProgress):
			status = http.StatusConflict
		case errors.As(err, &maxErr):
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err)
		return
	}

	warnings := res.Warnings()
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, loadResponse{
		FileName:     name,
		Accepted:     len(res.Items),
		Rejected:     res.Rejected,
		MissingImage: res.MissingImage,
		OffsiteURLs:  res.OffsiteURLs,
		Warnings:     warnings,
	})
}

func (s *Server) SampleHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+loader.SampleFileName+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(loader.Sample())
}

func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	run, err := s.session.StartUpload()
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, uploader.ErrRunInProgress) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}

	// The run outlives the request, so it gets the server's context.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic in upload run", "panic", r)
			}
		}()
		stats, err := run(s.runCtx)
		if err != nil {
			slog.Error("Upload run ended with error", "error", err, "stats", stats)
			return
		}
		slog.Info("Upload run finished", "success", stats.Success, "failed", stats.Failed)
	}()

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "Upload started.")
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) LogsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Entries())
}

func (s *Server) ReportHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+journal.ReportFileName(time.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	if err := s.session.ExportReport(w); err != nil {
		slog.Error("Failed to write report", "error", err)
	}
}

func (s *Server) ClearHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Clear(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, errors.New("run history is not enabled"))
		return
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to list runs"))
		return
	}
	if runs == nil {
		runs = []models.RunReport{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
