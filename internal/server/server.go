// Package server wires the aggregation core behind the service's HTTP
// surface. Handlers plan and summarize; no downloads happen here.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/geoharvest/extentd/internal/config"
	"github.com/geoharvest/extentd/internal/extent"
	"github.com/geoharvest/extentd/internal/health"
	imw "github.com/geoharvest/extentd/internal/middleware"
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, h *Handler) error {
	r := chi.NewRouter()
	r.Use(imw.Recover(logger))
	r.Use(imw.Logging(logger))

	r.Get("/healthz", health.Liveness())
	r.Post("/v1/merge", h.HandleMerge)
	r.Post("/v1/select", h.HandleSelect)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// NewMerger builds the merger from service configuration.
func NewMerger(logger *slog.Logger, cfg config.Config) *extent.Merger {
	return extent.NewMerger(logger, nil, extent.Options{
		Tolerance: cfg.PointTolerance,
		Epsilon:   cfg.RectangleEpsilon,
	})
}
