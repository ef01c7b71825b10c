package store

import (
	"context"
	"sync"
	"time"

	"seoAuditGO/internal/models"
)

// MemoryStore implements Store in process memory. Used in tests and as a
// fallback when MongoDB is disabled; contents do not survive restarts.
type MemoryStore struct {
	mu        sync.RWMutex
	lastAudit *models.StoredAudit
	history   []models.HistoryEntry
	states    map[string]models.AuditState
	lastError *models.StoredError
	settings  *models.Settings
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		history: []models.HistoryEntry{},
		states:  make(map[string]models.AuditState),
	}
}

// SaveAudit overwrites the last-audit slot and updates the history list
func (s *MemoryStore) SaveAudit(_ context.Context, audit *models.StoredAudit) error {
	if audit.SavedAt.IsZero() {
		audit.SavedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *audit
	s.lastAudit = &copied
	s.history = prependHistory(s.history, historyEntryFor(audit))
	return nil
}

// LastAudit returns the stored audit, purging it first if expired
func (s *MemoryStore) LastAudit(_ context.Context) (*models.StoredAudit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastAudit == nil {
		return nil, nil
	}
	if expired(s.lastAudit, time.Now()) {
		s.lastAudit = nil
		return nil, nil
	}
	copied := *s.lastAudit
	return &copied, nil
}

// ClearAudit removes the last-audit slot
func (s *MemoryStore) ClearAudit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAudit = nil
	return nil
}

// History returns the stored history pointers, most recent first
func (s *MemoryStore) History(_ context.Context) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]models.HistoryEntry, len(s.history))
	copy(entries, s.history)
	return entries, nil
}

// SaveAuditState persists the audit state for one context
func (s *MemoryStore) SaveAuditState(_ context.Context, contextID string, state *models.AuditState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[contextID] = *state
	return nil
}

// AuditState returns the persisted state for one context, or nil
func (s *MemoryStore) AuditState(_ context.Context, contextID string) (*models.AuditState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[contextID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// DeleteAuditState removes the persisted state for a destroyed context
func (s *MemoryStore) DeleteAuditState(_ context.Context, contextID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, contextID)
	return nil
}

// SaveLastError overwrites the last-error slot
func (s *MemoryStore) SaveLastError(_ context.Context, stored *models.StoredError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *stored
	s.lastError = &copied
	return nil
}

// LastError returns the last recorded audit error, or nil
func (s *MemoryStore) LastError(_ context.Context) (*models.StoredError, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastError == nil {
		return nil, nil
	}
	copied := *s.lastError
	return &copied, nil
}

// Settings returns the persisted settings, or nil when never saved
func (s *MemoryStore) Settings(_ context.Context) (*models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return nil, nil
	}
	copied := *s.settings
	return &copied, nil
}

// SaveSettings overwrites the settings record
func (s *MemoryStore) SaveSettings(_ context.Context, settings *models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *settings
	s.settings = &copied
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}
