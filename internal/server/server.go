package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/atikulmunna/loupe/internal/config"
	"github.com/atikulmunna/loupe/internal/engine"
	"github.com/atikulmunna/loupe/internal/hub"
	"github.com/atikulmunna/loupe/internal/metrics"
	"github.com/atikulmunna/loupe/internal/runs"
)

// Server holds the Gin engine and dependencies for the analysis API.
type Server struct {
	router   *gin.Engine
	analyzer *engine.Engine
	hub      *hub.Hub
	runs     *runs.Store
	metrics  *metrics.Handler
	cfg      config.Config
	log      zerolog.Logger
}

// New creates the HTTP API. The hub must be started by the caller.
func New(analyzer *engine.Engine, h *hub.Hub, store *runs.Store, m *metrics.Handler, cfg config.Config, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Disable automatic redirects that cause 301 issues.
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	s := &Server{
		router:   router,
		analyzer: analyzer,
		hub:      h,
		runs:     store,
		metrics:  m,
		cfg:      cfg,
		log:      log,
	}
	router.Use(s.loggingMiddleware())

	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	// Health check.
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"runs":           s.runs.Len(),
			"subscribers":    s.hub.Subscribers(),
			"dropped_events": s.hub.Dropped(),
		})
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.HTTPHandler()))

	api := s.router.Group("/api")
	api.GET("/formats", s.handleFormats)
	api.POST("/analyze", s.handleAnalyze)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)
	api.GET("/runs/:id/export", s.handleExport)

	// WebSocket.
	s.router.GET("/ws", s.handleWebSocket)

	// pprof profiling endpoints.
	s.router.GET("/debug/pprof/", gin.WrapF(pprof.Index))
	s.router.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
	s.router.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
	s.router.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
	s.router.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	s.router.GET("/debug/pprof/allocs", gin.WrapH(pprof.Handler("allocs")))
	s.router.GET("/debug/pprof/heap", gin.WrapH(pprof.Handler("heap")))
	s.router.GET("/debug/pprof/goroutine", gin.WrapH(pprof.Handler("goroutine")))
}

// Start runs the server until ctx is cancelled, then shuts it down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
