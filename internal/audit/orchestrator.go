// Package audit coordinates the collect -> request -> provider-call
// pipeline and tracks per-context audit state.
package audit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"log/slog"
	"seoAuditGO/internal/config"
	"seoAuditGO/internal/models"
	"seoAuditGO/internal/prompt"
	"seoAuditGO/internal/provider"
	"seoAuditGO/internal/store"
)

// maxConcurrentAudits bounds a batch run. Individual contexts are
// independent; no ordering is guaranteed across them.
const maxConcurrentAudits = 4

// AnalysisClient is the provider boundary the orchestrator depends on
type AnalysisClient interface {
	Analyze(ctx context.Context, systemPrompt, userPrompt string, opts provider.Options) (string, error)
}

// Orchestrator owns the per-context state machine
// (idle -> running -> complete|error) and the persistence of results.
type Orchestrator struct {
	store  store.Store
	client AnalysisClient
	cfg    config.ProviderConfig
	logger *slog.Logger

	mu     sync.Mutex
	states map[string]*models.AuditState
}

// New creates an Orchestrator
func New(st store.Store, client AnalysisClient, cfg config.ProviderConfig, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:  st,
		client: client,
		cfg:    cfg,
		logger: logger,
		states: make(map[string]*models.AuditState),
	}
}

// RunAudit executes one end-to-end audit for a context. All failures come
// back as a structured result; nothing escapes as an error. A new audit
// for a context that already has one simply overwrites its state.
func (o *Orchestrator) RunAudit(ctx context.Context, contextID string, signal *models.PageSignal) models.AuditResult {
	start := time.Now()

	url := ""
	if signal != nil {
		url = signal.URL
	}
	o.setState(ctx, contextID, &models.AuditState{
		Status:    models.StatusRunning,
		StartTime: start,
		URL:       url,
	})
	// Status side channel for the host UI; not part of the data contract.
	o.logger.Info("audit started", "context", contextID, "url", url)

	settings, err := o.effectiveSettings(ctx)
	if err != nil {
		return o.fail(ctx, contextID, start, models.NewAuditError(models.ErrCodeInternal, "failed to load settings", err))
	}
	if settings.Credential == "" {
		return o.fail(ctx, contextID, start, models.NewAuditError(models.ErrCodeNotConfigured,
			"No API credential configured. Add your credential in settings before running an audit.", nil))
	}

	if !signal.Usable() {
		return o.fail(ctx, contextID, start, models.NewAuditError(models.ErrCodePageInaccessible,
			"The page could not be read: no title or body text was collected. Reload the page and try again.", nil))
	}

	userPrompt := prompt.Build(signal)
	analysis, err := o.client.Analyze(ctx, prompt.SystemPrompt, userPrompt, provider.Options{
		Credential:  settings.Credential,
		Model:       settings.Model,
		MaxTokens:   settings.MaxTokens,
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		return o.fail(ctx, contextID, start, err)
	}

	duration := time.Since(start)
	o.setState(ctx, contextID, &models.AuditState{
		Status:         models.StatusComplete,
		StartTime:      start,
		URL:            signal.URL,
		DurationMS:     duration.Milliseconds(),
		AnalysisLength: len(analysis),
	})

	stored := &models.StoredAudit{
		Analysis: analysis,
		Metadata: models.AuditMetadata{
			URL:       signal.URL,
			Title:     signal.Title,
			Model:     settings.Model,
			Timestamp: signal.Timestamp,
			WordCount: signal.WordCount,
			LinkCounts: signal.LinkSummary.Counts,
			ImageCounts: models.ImageCounts{
				Total:      signal.ImageSummary.TotalCount,
				WithAlt:    signal.ImageSummary.WithAltCount,
				WithoutAlt: signal.ImageSummary.WithoutAltCount,
			},
		},
		Signal:  *signal,
		SavedAt: time.Now(),
	}
	if err := o.store.SaveAudit(ctx, stored); err != nil {
		// The caller still gets the analysis; persistence is best-effort.
		o.logger.Error("failed to persist audit", "context", contextID, "error", err)
	}

	o.logger.Info("audit complete", "context", contextID, "url", signal.URL,
		"duration_ms", duration.Milliseconds(), "analysis_length", len(analysis))

	return models.AuditResult{
		Context:  contextID,
		Success:  true,
		Analysis: analysis,
	}
}

// RunAudits executes audits for several independent contexts concurrently.
// Results are returned in request order.
func (o *Orchestrator) RunAudits(ctx context.Context, contextIDs []string, signals []*models.PageSignal) []models.AuditResult {
	results := make([]models.AuditResult, len(contextIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentAudits)
	for i := range contextIDs {
		i := i
		g.Go(func() error {
			results[i] = o.RunAudit(ctx, contextIDs[i], signals[i])
			return nil
		})
	}
	// Workers never return errors; failures land in their result slot.
	_ = g.Wait()

	return results
}

// State returns the audit state for a context, consulting persisted state
// when the process has restarted since the audit ran
func (o *Orchestrator) State(ctx context.Context, contextID string) (*models.AuditState, error) {
	o.mu.Lock()
	state, ok := o.states[contextID]
	if ok {
		copied := *state
		o.mu.Unlock()
		return &copied, nil
	}
	o.mu.Unlock()

	return o.store.AuditState(ctx, contextID)
}

// CreateContext registers a context in the idle state
func (o *Orchestrator) CreateContext(ctx context.Context, contextID string) error {
	state := &models.AuditState{Status: models.StatusIdle}
	o.setState(ctx, contextID, state)
	return nil
}

// DestroyContext removes a context's in-memory and persisted state. Called
// when the execution context goes away for good, so state does not grow
// without bound.
func (o *Orchestrator) DestroyContext(ctx context.Context, contextID string) error {
	o.mu.Lock()
	delete(o.states, contextID)
	o.mu.Unlock()
	return o.store.DeleteAuditState(ctx, contextID)
}

// fail records the error transition, persists the last-error slot, and
// returns the structured failure result
func (o *Orchestrator) fail(ctx context.Context, contextID string, start time.Time, err error) models.AuditResult {
	duration := time.Since(start)
	message := models.ErrorMessage(err)
	code := models.ErrorCode(err)

	o.mu.Lock()
	url := ""
	if state, ok := o.states[contextID]; ok {
		url = state.URL
	}
	o.mu.Unlock()

	o.setState(ctx, contextID, &models.AuditState{
		Status:     models.StatusError,
		StartTime:  start,
		URL:        url,
		DurationMS: duration.Milliseconds(),
		Error:      message,
	})

	// Recorded independently of the caller so the failure is inspectable
	// even if the invoking UI closed before the result arrived.
	if storeErr := o.store.SaveLastError(ctx, &models.StoredError{
		Context:   contextID,
		Message:   message,
		ErrorTime: time.Now(),
	}); storeErr != nil {
		o.logger.Error("failed to persist last error", "context", contextID, "error", storeErr)
	}

	o.logger.Error("audit failed", "context", contextID, "code", code,
		"duration_ms", duration.Milliseconds(), "error", message)

	return models.AuditResult{
		Context:   contextID,
		Success:   false,
		Error:     message,
		ErrorCode: code,
	}
}

// setState overwrites the context's state in memory and persists it
func (o *Orchestrator) setState(ctx context.Context, contextID string, state *models.AuditState) {
	o.mu.Lock()
	o.states[contextID] = state
	o.mu.Unlock()

	if err := o.store.SaveAuditState(ctx, contextID, state); err != nil {
		o.logger.Error("failed to persist audit state", "context", contextID, "error", err)
	}
}

// effectiveSettings merges persisted settings over configured defaults
func (o *Orchestrator) effectiveSettings(ctx context.Context) (*models.Settings, error) {
	settings, err := o.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = &models.Settings{}
	}
	if settings.Credential == "" {
		settings.Credential = o.cfg.Credential
	}
	if settings.Model == "" {
		settings.Model = o.cfg.DefaultModel
	}
	if settings.MaxTokens == 0 {
		settings.MaxTokens = o.cfg.MaxTokens
	}
	return settings, nil
}
