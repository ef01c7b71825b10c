package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"seoAuditGO/internal/collector"
	"seoAuditGO/internal/models"
	"seoAuditGO/internal/provider"
)

// credentialTestTimeout caps the liveness probe; full audits are bounded
// by the provider's own timeout instead.
const credentialTestTimeout = 10 * time.Second

// runAuditHandler handles RUN_AUDIT requests. The audit outcome, success
// or failure, is always a structured result with HTTP 200; only malformed
// requests get an error status.
func (s *Server) runAuditHandler(c *gin.Context) {
	var req models.AuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request",
			Error:      err.Error(),
		})
		return
	}
	if req.Signal == nil && req.URL == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    "Either signal or url must be provided",
		})
		return
	}

	signal := s.resolveSignal(c.Request.Context(), &req)
	result := s.orchestrator.RunAudit(c.Request.Context(), req.Context, signal)
	c.JSON(http.StatusOK, result)
}

// runAuditsHandler runs audits for several contexts in one call
func (s *Server) runAuditsHandler(c *gin.Context) {
	var req struct {
		Audits []models.AuditRequest `json:"audits" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request",
			Error:      err.Error(),
		})
		return
	}

	contextIDs := make([]string, len(req.Audits))
	signals := make([]*models.PageSignal, len(req.Audits))
	for i := range req.Audits {
		contextIDs[i] = req.Audits[i].Context
		signals[i] = s.resolveSignal(c.Request.Context(), &req.Audits[i])
	}

	results := s.orchestrator.RunAudits(c.Request.Context(), contextIDs, signals)
	c.JSON(http.StatusOK, gin.H{
		"count":   len(results),
		"results": results,
	})
}

// resolveSignal uses the supplied signal or collects one from the URL. A
// failed collection yields an empty signal, which the orchestrator
// rejects as a page-inaccessible input error before any network call to
// the provider.
func (s *Server) resolveSignal(ctx context.Context, req *models.AuditRequest) *models.PageSignal {
	if req.Signal != nil {
		return req.Signal
	}

	reader := s.readerFor(req.Context, req.URL)
	signal, err := reader.Collect(ctx, req.ForceRefresh)
	if err != nil {
		s.logger.Error("signal collection failed", "context", req.Context, "url", req.URL, "error", err)
		return collector.EmptySignal(req.URL)
	}
	return signal
}

// testCredentialHandler handles TEST_CREDENTIAL requests
func (s *Server) testCredentialHandler(c *gin.Context) {
	if !s.testLimiter.Allow() {
		c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
			StatusCode: http.StatusTooManyRequests,
			Message:    "Too many credential tests; wait a moment and retry",
		})
		return
	}

	var req struct {
		Credential string `json:"credential"`
	}
	// Body is optional; an empty one tests the stored credential.
	_ = c.ShouldBindJSON(&req)

	credential := strings.TrimSpace(req.Credential)
	model := s.config.Provider.DefaultModel
	if settings, err := s.store.Settings(c.Request.Context()); err == nil && settings != nil {
		if credential == "" {
			credential = settings.Credential
		}
		if settings.Model != "" {
			model = settings.Model
		}
	}
	if credential == "" {
		credential = s.config.Provider.Credential
	}
	if credential == "" {
		c.JSON(http.StatusOK, models.AuditResult{
			Success:   false,
			Error:     "No API credential configured.",
			ErrorCode: models.ErrCodeNotConfigured,
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), credentialTestTimeout)
	defer cancel()

	if err := s.provider.TestCredential(ctx, credential, model); err != nil {
		c.JSON(http.StatusOK, models.AuditResult{
			Success:   false,
			Error:     models.ErrorMessage(err),
			ErrorCode: models.ErrorCode(err),
		})
		return
	}

	c.JSON(http.StatusOK, models.AuditResult{Success: true})
}

// getAuditStateHandler handles GET_AUDIT_STATE requests
func (s *Server) getAuditStateHandler(c *gin.Context) {
	contextID := c.Param("context")

	state, err := s.orchestrator.State(c.Request.Context(), contextID)
	if err != nil {
		s.logger.Error("failed to get audit state", "context", contextID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    "Failed to get audit state",
			Error:      err.Error(),
		})
		return
	}
	if state == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			StatusCode: http.StatusNotFound,
			Message:    "No audit state for context",
		})
		return
	}

	c.JSON(http.StatusOK, state)
}

// getLastAuditHandler returns the stored last audit, applying expiration
func (s *Server) getLastAuditHandler(c *gin.Context) {
	stored, err := s.store.LastAudit(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to load last audit", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    "Failed to load last audit",
			Error:      err.Error(),
		})
		return
	}
	if stored == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			StatusCode: http.StatusNotFound,
			Message:    "No stored audit",
		})
		return
	}

	c.JSON(http.StatusOK, stored)
}

// deleteLastAuditHandler clears the stored last audit
func (s *Server) deleteLastAuditHandler(c *gin.Context) {
	if err := s.store.ClearAudit(c.Request.Context()); err != nil {
		s.logger.Error("failed to clear last audit", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    "Failed to clear last audit",
			Error:      err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// getHistoryHandler returns the audit history pointers
func (s *Server) getHistoryHandler(c *gin.Context) {
	entries, err := s.store.History(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to load history", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    "Failed to load history",
			Error:      err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"history": entries,
	})
}

// getLastErrorHandler handles GET_LAST_ERROR requests
func (s *Server) getLastErrorHandler(c *gin.Context) {
	stored, err := s.store.LastError(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to load last error", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    "Failed to load last error",
			Error:      err.Error(),
		})
		return
	}
	if stored == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			StatusCode: http.StatusNotFound,
			Message:    "No recorded error",
		})
		return
	}

	c.JSON(http.StatusOK, stored)
}

// createContextHandler registers a new execution context as idle
func (s *Server) createContextHandler(c *gin.Context) {
	contextID := c.Param("context")
	if err := s.orchestrator.CreateContext(c.Request.Context(), contextID); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    "Failed to create context",
			Error:      err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"context": contextID, "status": models.StatusIdle})
}

// destroyContextHandler removes all state for a destroyed context
func (s *Server) destroyContextHandler(c *gin.Context) {
	contextID := c.Param("context")
	s.dropReader(contextID)
	if err := s.orchestrator.DestroyContext(c.Request.Context(), contextID); err != nil {
		s.logger.Error("failed to destroy context", "context", contextID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    "Failed to destroy context",
			Error:      err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"context": contextID, "destroyed": true})
}

// getSettingsHandler returns the stored settings with the credential
// redacted to a set/unset flag
func (s *Server) getSettingsHandler(c *gin.Context) {
	settings, err := s.store.Settings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    "Failed to load settings",
			Error:      err.Error(),
		})
		return
	}
	if settings == nil {
		settings = &models.Settings{
			Model:     s.config.Provider.DefaultModel,
			MaxTokens: s.config.Provider.MaxTokens,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"credential_set":  settings.Credential != "" || s.config.Provider.Credential != "",
		"model":           settings.Model,
		"max_tokens":      settings.MaxTokens,
		"verbose_logging": settings.VerboseLogging,
	})
}

// updateSettingsHandler overwrites the stored settings. A supplied
// credential is validated before being accepted.
func (s *Server) updateSettingsHandler(c *gin.Context) {
	var req models.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request",
			Error:      err.Error(),
		})
		return
	}

	if req.Credential != "" {
		validated, err := provider.ValidateCredential(req.Credential)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Message:    models.ErrorMessage(err),
			})
			return
		}
		req.Credential = validated
	} else if existing, err := s.store.Settings(c.Request.Context()); err == nil && existing != nil {
		// Keep the stored credential when the update omits it.
		req.Credential = existing.Credential
	}

	if req.Model == "" {
		req.Model = s.config.Provider.DefaultModel
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = s.config.Provider.MaxTokens
	}

	if err := s.store.SaveSettings(c.Request.Context(), &req); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    "Failed to save settings",
			Error:      err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"saved": true})
}
