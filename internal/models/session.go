package models

import "time"

// Connection is the configuration snapshot an operation runs against.
type Connection struct {
	AccessToken string     `json:"access_token"`
	Catalog     CatalogRef `json:"catalog_id"`
	WebsiteURL  string     `json:"website_url,omitempty"`
}

// Status is the externally observed state of the uploader.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusValidating Status = "validating"
	StatusReady      Status = "ready"
	StatusUploading  Status = "uploading"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Severity classifies a log entry.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// LogEntry is an immutable diagnostic record shown to the operator.
type LogEntry struct {
	ID        string    `json:"id" firestore:"id"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
	Type      Severity  `json:"type" firestore:"type"`
	Message   string    `json:"message" firestore:"message"`
	Details   string    `json:"details,omitempty" firestore:"details,omitempty"`
}

// UploadStats are the counters of one upload run.
type UploadStats struct {
	Total     int `json:"total" firestore:"total"`
	Processed int `json:"processed" firestore:"processed"`
	Success   int `json:"success" firestore:"success"`
	Failed    int `json:"failed" firestore:"failed"`
}

// Consistent reports whether processed == success + failed <= total.
func (s UploadStats) Consistent() bool {
	return s.Processed == s.Success+s.Failed && s.Processed <= s.Total
}

// RunReport is the persisted outcome of an upload run.
type RunReport struct {
	ID         string      `json:"id" firestore:"-"`
	CatalogID  string      `json:"catalog_id" firestore:"catalogID"`
	StartedAt  time.Time   `json:"started_at" firestore:"startedAt"`
	FinishedAt time.Time   `json:"finished_at" firestore:"finishedAt"`
	Stats      UploadStats `json:"stats" firestore:"stats"`
	Cancelled  bool        `json:"cancelled" firestore:"cancelled"`
	Logs       []LogEntry  `json:"logs,omitempty" firestore:"logs"`
}
