package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// Config holds listener and rate limiting settings.
type Config struct {
	Addr      string
	RateLimit float64
	RateBurst int
}

// NewRouter wires middleware and routes onto a gin engine.
func NewRouter(h *Handler, cfg Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(h.logger))
	router.Use(h.metrics.Middleware())

	router.GET("/health", h.Health)
	router.GET("/metrics", h.metrics.Handler())

	api := router.Group("/api")
	api.Use(RateLimiter(cfg.RateLimit, cfg.RateBurst))
	{
		api.POST("/sessions/complete", h.CompleteSession)
		api.GET("/sessions", h.Sessions)
		api.POST("/metrics/live", h.LiveMetrics)
		api.GET("/sequences/slowest", h.SlowestSequences)

		tracking := api.Group("/keystroke-tracking")
		tracking.POST("/update-key-stats", h.UpdateKeyStats)
		tracking.GET("/key-stats", h.KeyStats)
	}
	return router
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, cfg Config, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
