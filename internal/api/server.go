package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"log/slog"
	"seoAuditGO/internal/audit"
	"seoAuditGO/internal/collector"
	"seoAuditGO/internal/config"
	"seoAuditGO/internal/middleware"
	"seoAuditGO/internal/provider"
	"seoAuditGO/internal/store"
)

// Server represents the HTTP server
type Server struct {
	router       *gin.Engine
	httpServer   *http.Server
	store        store.Store
	orchestrator *audit.Orchestrator
	provider     *provider.Client
	auth         *middleware.AdminAuth
	logger       *slog.Logger
	config       *config.Config

	// One probe at a time; credential tests are cheap but not free.
	testLimiter *rate.Limiter

	// Per-context cached page readers, keyed by context ID.
	readersMu sync.Mutex
	readers   map[string]*contextReader
}

// contextReader is the cached reader bound to one context's current URL
type contextReader struct {
	url    string
	reader collector.PageReader
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, st store.Store, orchestrator *audit.Orchestrator, providerClient *provider.Client, logger *slog.Logger) *Server {
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key"},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		router: router,
		httpServer: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		store:        st,
		orchestrator: orchestrator,
		provider:     providerClient,
		auth:         middleware.NewAdminAuth(&cfg.Auth, logger),
		logger:       logger,
		config:       cfg,
		testLimiter:  rate.NewLimiter(rate.Limit(cfg.Provider.CredentialTests), 1),
		readers:      make(map[string]*contextReader),
	}

	s.registerRoutes()

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// registerRoutes sets up all the routes for the server
func (s *Server) registerRoutes() {
	// Health check
	s.router.GET("/health", s.healthHandler)

	api := s.router.Group("/api")
	{
		// Audit execution
		api.POST("/audit", s.runAuditHandler)
		api.POST("/audits", s.runAuditsHandler)
		api.POST("/credential/test", s.testCredentialHandler)

		// State and result retrieval
		api.GET("/audit/state/:context", s.getAuditStateHandler)
		api.GET("/audit/last", s.getLastAuditHandler)
		api.DELETE("/audit/last", s.deleteLastAuditHandler)
		api.GET("/audit/history", s.getHistoryHandler)
		api.GET("/error/last", s.getLastErrorHandler)

		// Context lifecycle
		api.POST("/context/:context", s.createContextHandler)
		api.DELETE("/context/:context", s.destroyContextHandler)
	}

	// Settings mutation requires the admin key
	settings := s.router.Group("/api/settings")
	settings.Use(s.auth.RequireAdmin())
	{
		settings.GET("", s.getSettingsHandler)
		settings.PUT("", s.updateSettingsHandler)
	}
}

// healthHandler handles health check requests
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// readerFor returns the context's cached page reader, replacing it when
// the context has navigated to a different URL. The underlying cache makes
// a repeated collect within the TTL cheap.
func (s *Server) readerFor(contextID, url string) collector.PageReader {
	s.readersMu.Lock()
	defer s.readersMu.Unlock()

	if entry, ok := s.readers[contextID]; ok && entry.url == url {
		return entry.reader
	}

	fetcher := collector.NewFetchReader(s.config.Collector, url, s.logger)
	reader := collector.NewCachingReader(fetcher, s.config.Collector.CacheTTL)
	s.readers[contextID] = &contextReader{url: url, reader: reader}
	return reader
}

// dropReader discards a destroyed context's cached reader
func (s *Server) dropReader(contextID string) {
	s.readersMu.Lock()
	delete(s.readers, contextID)
	s.readersMu.Unlock()
}
