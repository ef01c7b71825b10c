// Package store is the durable key-value layer for audit results, the
// bounded history, per-context audit state, the last-error slot, and
// process-wide settings.
package store

import (
	"context"
	"time"

	"seoAuditGO/internal/models"
)

const (
	// MaxHistory bounds the audit history list.
	MaxHistory = 5

	// AuditTTL is the age past which a stored audit is treated as absent
	// and purged on the next read.
	AuditTTL = 7 * 24 * time.Hour
)

// Store defines operations on persisted audit data. Reads never observe a
// partially written record; single-writer-at-a-time per context is assumed.
type Store interface {
	// SaveAudit overwrites the single last-audit slot and prepends a
	// history pointer, truncating history to MaxHistory entries.
	SaveAudit(ctx context.Context, audit *models.StoredAudit) error

	// LastAudit returns the stored audit, or nil when absent. A record
	// older than AuditTTL is purged and reported absent (lazy expiration).
	LastAudit(ctx context.Context) (*models.StoredAudit, error)

	// ClearAudit removes the last-audit slot.
	ClearAudit(ctx context.Context) error

	// History returns the stored history pointers, most recent first.
	History(ctx context.Context) ([]models.HistoryEntry, error)

	SaveAuditState(ctx context.Context, contextID string, state *models.AuditState) error
	AuditState(ctx context.Context, contextID string) (*models.AuditState, error)
	DeleteAuditState(ctx context.Context, contextID string) error

	SaveLastError(ctx context.Context, stored *models.StoredError) error
	LastError(ctx context.Context) (*models.StoredError, error)

	Settings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, settings *models.Settings) error

	Close(ctx context.Context) error
}

// historyEntryFor builds the lightweight pointer recorded per saved audit
func historyEntryFor(audit *models.StoredAudit) models.HistoryEntry {
	return models.HistoryEntry{
		URL:       audit.Metadata.URL,
		Title:     audit.Metadata.Title,
		Timestamp: audit.Metadata.Timestamp,
		SavedAt:   audit.SavedAt,
	}
}

// prependHistory adds entry at the front and truncates to MaxHistory.
// Re-saving the same audit replaces the head instead of duplicating it,
// so a repeated save is idempotent.
func prependHistory(entries []models.HistoryEntry, entry models.HistoryEntry) []models.HistoryEntry {
	if len(entries) > 0 && sameAudit(entries[0], entry) {
		entries[0] = entry
		return entries
	}
	entries = append([]models.HistoryEntry{entry}, entries...)
	if len(entries) > MaxHistory {
		entries = entries[:MaxHistory]
	}
	return entries
}

// sameAudit compares the identity fields of two pointers, ignoring SavedAt
func sameAudit(a, b models.HistoryEntry) bool {
	return a.URL == b.URL && a.Title == b.Title && a.Timestamp.Equal(b.Timestamp)
}

// expired reports whether a stored audit is past its TTL
func expired(audit *models.StoredAudit, now time.Time) bool {
	return now.Sub(audit.SavedAt) > AuditTTL
}
