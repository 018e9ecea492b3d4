package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geoharvest/extentd/internal/cache/extentstore"
	"github.com/geoharvest/extentd/internal/cache/redisstore"
	"github.com/geoharvest/extentd/internal/config"
	"github.com/geoharvest/extentd/internal/invalidation/kafkaconsumer"
	"github.com/geoharvest/extentd/internal/logger"
	"github.com/geoharvest/extentd/internal/observability"
	"github.com/geoharvest/extentd/internal/server"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Component: "extentd",
	}, os.Stdout)

	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting extentd",
		"addr", cfg.Addr,
		"version", Version,
		"cache", cfg.CacheEnabled,
		"invalidation", cfg.Invalidation.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store extentstore.Store
	if cfg.CacheEnabled {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rc, err := redisstore.New(connectCtx, cfg.RedisAddr)
		cancel()
		if err != nil {
			appLog.Error("redis connect failed", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = rc.Close() }()
		store = extentstore.NewRedisStore(rc, cfg.CacheTTL)
	}

	if cfg.Invalidation.Enabled {
		if store == nil {
			appLog.Warn("invalidation enabled without cache; ignoring")
		} else {
			kcfg := kafkaconsumer.FromEnv()
			consumer := kafkaconsumer.New(kcfg, appLog, store)
			go func() {
				if err := consumer.Start(ctx); err != nil {
					appLog.Error("kafka consumer exited", "err", err)
				}
			}()
		}
	}

	if cfg.MetricsEnabled {
		startMetricsServer(ctx, cfg)
	}

	merger := server.NewMerger(appLog, cfg)
	h := server.NewHandler(appLog, merger, store, cfg)

	if err := server.Run(ctx, cfg, appLog, h); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func startMetricsServer(ctx context.Context, cfg config.Config) {
	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("metrics: listening on %s%s", cfg.MetricsAddr, cfg.MetricsPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics: shutdown error: %v", err)
		}
	}()
}
