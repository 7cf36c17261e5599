// Package server exposes the local session API: the synchronizer's current
// state, a Server-Sent Events stream of its changes, the transition history,
// and refresh/logout actions.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/AleksTheDev/snacker/internal/config"
	"github.com/AleksTheDev/snacker/internal/history"
	"github.com/AleksTheDev/snacker/internal/session"
)

const shutdownTimeout = 10 * time.Second

// SessionSource is the session cell served by the API
type SessionSource interface {
	Current() session.State
	Subscribe(fn session.Observer) *session.Subscription
}

// Actions are the provider operations the API can trigger
type Actions interface {
	Refresh(ctx context.Context) (*session.Session, error)
	SignOut(ctx context.Context) error
}

// HistoryReader lists recorded transitions
type HistoryReader interface {
	Recent(limit int) ([]history.Transition, error)
}

// Server represents the HTTP server
type Server struct {
	router   *gin.Engine
	config   *config.Config
	logger   zerolog.Logger
	sessions SessionSource
	actions  Actions
	history  HistoryReader
	project  string
	version  string

	stopOnce sync.Once
	stopping chan struct{}
}

// New creates a new server instance. hist may be nil when history is
// disabled.
func New(cfg *config.Config, sessions SessionSource, actions Actions, hist HistoryReader, project string, zlog zerolog.Logger, version string) *Server {
	server := &Server{
		config:   cfg,
		logger:   zlog.With().Str("component", "server").Logger(),
		sessions: sessions,
		actions:  actions,
		history:  hist,
		project:  project,
		version:  version,
		stopping: make(chan struct{}),
	}

	server.setupRouter()
	return server
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Cache-Control"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api/session")
	{
		api.GET("", s.getSession)
		api.GET("/events", s.streamSession)
		api.GET("/history", requireHistory(s.history, s.logger), s.listHistory)
		api.POST("/refresh", s.refreshSession)
		api.POST("/logout", s.logout)
	}
}

// @Router /health [get]
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "snacker",
		"project":   s.project,
		"version":   s.version,
	})
}

// Start listens on the configured address and serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// Open event streams are closed before the HTTP server drains.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting HTTP server")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.logger.Error().Err(err).Msg("HTTP server error")
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server...")
	s.stopOnce.Do(func() { close(s.stopping) })

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
