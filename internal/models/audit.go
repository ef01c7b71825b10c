package models

import (
	"time"
)

// AuditStatus is the lifecycle state of one execution context's audit
type AuditStatus string

const (
	StatusIdle     AuditStatus = "idle"
	StatusRunning  AuditStatus = "running"
	StatusComplete AuditStatus = "complete"
	StatusError    AuditStatus = "error"
)

// AuditState tracks the current audit for one execution context.
// A new audit for the same context overwrites the previous terminal state.
type AuditState struct {
	Status         AuditStatus `json:"status" bson:"status"`
	StartTime      time.Time   `json:"start_time" bson:"start_time"`
	URL            string      `json:"url" bson:"url"`
	DurationMS     int64       `json:"duration_ms,omitempty" bson:"duration_ms,omitempty"`
	Error          string      `json:"error,omitempty" bson:"error,omitempty"`
	AnalysisLength int         `json:"analysis_length,omitempty" bson:"analysis_length,omitempty"`
}

// ImageCounts is the compact image tally kept in audit metadata
type ImageCounts struct {
	Total      int `json:"total" bson:"total"`
	WithAlt    int `json:"with_alt" bson:"with_alt"`
	WithoutAlt int `json:"without_alt" bson:"without_alt"`
}

// AuditMetadata summarizes the audited page alongside the analysis text
type AuditMetadata struct {
	URL         string      `json:"url" bson:"url"`
	Title       string      `json:"title" bson:"title"`
	Model       string      `json:"model" bson:"model"`
	Timestamp   time.Time   `json:"timestamp" bson:"timestamp"`
	WordCount   int         `json:"word_count" bson:"word_count"`
	LinkCounts  LinkCounts  `json:"link_counts" bson:"link_counts"`
	ImageCounts ImageCounts `json:"image_counts" bson:"image_counts"`
}

// StoredAudit is the persisted result of one completed audit. Exactly one
// "last audit" record exists at a time; records older than seven days are
// treated as absent and purged on read.
type StoredAudit struct {
	Analysis string        `json:"analysis" bson:"analysis"`
	Metadata AuditMetadata `json:"metadata" bson:"metadata"`
	Signal   PageSignal    `json:"signal" bson:"signal"`
	SavedAt  time.Time     `json:"saved_at" bson:"saved_at"`
}

// HistoryEntry is the lightweight pointer kept per saved audit
type HistoryEntry struct {
	URL       string    `json:"url" bson:"url"`
	Title     string    `json:"title" bson:"title"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	SavedAt   time.Time `json:"saved_at" bson:"saved_at"`
}

// StoredError is the last-error slot, recorded on every failed audit so it
// can be inspected even if the caller went away before the result returned
type StoredError struct {
	Context   string    `json:"context" bson:"context"`
	Message   string    `json:"error" bson:"error"`
	ErrorTime time.Time `json:"error_time" bson:"error_time"`
}

// Settings holds the process-wide audit preferences. The credential is
// read-only during an audit; settings writes are not serialized against
// in-flight audits.
type Settings struct {
	Credential     string `json:"credential,omitempty" bson:"credential"`
	Model          string `json:"model" bson:"model"`
	MaxTokens      int    `json:"max_tokens" bson:"max_tokens"`
	VerboseLogging bool   `json:"verbose_logging" bson:"verbose_logging"`
}

// AuditRequest is one RUN_AUDIT message. Either a pre-collected signal or a
// URL to collect from must be present.
type AuditRequest struct {
	Context      string      `json:"context" binding:"required"`
	URL          string      `json:"url,omitempty"`
	Signal       *PageSignal `json:"signal,omitempty"`
	ForceRefresh bool        `json:"force_refresh,omitempty"`
}

// AuditResult is the single structured result returned at the orchestrator
// boundary; no errors cross it as exceptions.
type AuditResult struct {
	Context   string `json:"context,omitempty"`
	Success   bool   `json:"success"`
	Analysis  string `json:"analysis,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Error      string `json:"error,omitempty"`
}
