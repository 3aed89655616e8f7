package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tokomas/backend/internal/cache"
	"tokomas/backend/internal/config"
	"tokomas/backend/internal/httpapi"
	"tokomas/backend/internal/service"
	"tokomas/backend/internal/store"
	"tokomas/backend/internal/store/memory"
	pgstore "tokomas/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	configureLogging(cfg.LogLevel)

	// Monetary fields serialize as JSON numbers, matching the API contract.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logrus.WithError(err).Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		repo = pg
		closers = append(closers, pg.Close)
		logrus.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		logrus.Info("repository: in-memory (seeded)")
	}

	productCache := cache.ProductCache(cache.NoopProductCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisProductCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logrus.WithError(err).Warn("redis unavailable, using noop cache")
		} else {
			productCache = redisCache
			closers = append(closers, redisCache.Close)
			logrus.Info("cache: redis")
		}
	} else {
		logrus.Info("cache: noop")
	}

	svc := service.New(repo, productCache, time.Duration(cfg.ProductCacheTTLSeconds)*time.Second)
	api := httpapi.New(svc, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logrus.WithField("addr", cfg.Address()).Info("jewellery backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logrus.WithError(err).Error("close error")
		}
	}

	logrus.Info("server stopped")
}

func configureLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}
