// Package http exposes deck builds over an HTTP API.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"golang.org/x/sync/semaphore"

	"svgdeck/internal/config"
	"svgdeck/internal/deck/builder"
	"svgdeck/internal/logging"
	"svgdeck/internal/observability"
)

// Deps are the collaborators shared by every request.
type Deps struct {
	Builder *builder.Builder
	// Fs must be the filesystem the Builder writes to.
	Fs       afero.Fs
	WorkDir  string
	Defaults config.BuildConfig
	// Backend is reported by /healthz.
	Backend string
	Metrics *observability.MetricsCollector
	Tracer  *observability.TracerProvider
	Logger  logging.Logger
}

// Server is the HTTP front end.
type Server struct {
	deps       Deps
	cfg        config.ServerConfig
	engine     *gin.Engine
	httpServer *http.Server
	builds     *semaphore.Weighted
	logger     logging.Logger
	startTime  time.Time
}

// NewServer wires routes and middleware.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	logger := logging.OrNop(deps.Logger)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(observabilityMiddleware(deps.Tracer, logger))
	if cfg.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Requested-With"}
		corsConfig.ExposeHeaders = []string{headerBuildID, headerSucceeded, headerFailed, headerTotal, "Content-Disposition"}
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		deps:      deps,
		cfg:       cfg,
		engine:    engine,
		builds:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:    logger,
		startTime: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))

	api := s.engine.Group("/api/v1")
	api.POST("/decks", s.handleCreateDeck)
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"rasterizer": s.deps.Backend,
		"uptime":     time.Since(s.startTime).Round(time.Second).String(),
	})
}
