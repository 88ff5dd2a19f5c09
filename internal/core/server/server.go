package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/propscope/internal/api"
	"github.com/mohammed-shakir/propscope/internal/core/config"
	"github.com/mohammed-shakir/propscope/internal/core/health"
	middleware "github.com/mohammed-shakir/propscope/internal/core/middleware"
)

const shutdownGrace = 30 * time.Second

// Options carries what the server needs besides the API itself.
type Options struct {
	// Ready lists dependencies pinged by /readyz.
	Ready map[string]health.Pinger
	// Drain is called after the listener stops, to let background report
	// generation finish.
	Drain func(ctx context.Context) error
}

// NewRouter builds the full HTTP surface.
func NewRouter(logger *slog.Logger, h *api.Handler, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(opts.Ready, 2*time.Second))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	h.Routes(r)
	return r
}

// Run serves until ctx is done, then shuts down and drains.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, h *api.Handler, opts Options) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(logger, h, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if opts.Drain != nil {
			if err := opts.Drain(shutdownCtx); err != nil {
				logger.Warn("report generation still running at shutdown", "err", err)
			}
		}
		return nil
	case err := <-errCh:
		return err
	}
}
