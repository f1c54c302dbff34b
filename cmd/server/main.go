package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"clothpos/backend/internal/cache"
	"clothpos/backend/internal/config"
	"clothpos/backend/internal/httpapi"
	"clothpos/backend/internal/logger"
	"clothpos/backend/internal/service"
	"clothpos/backend/internal/store"
	"clothpos/backend/internal/store/memory"
	pgstore "clothpos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	baseLogger := logger.Must(logger.New(cfg.LogLevel))
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	if err := cfg.Validate(); err != nil {
		baseLogger.Fatal("invalid configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, closers, err := openRepository(ctx, cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("repository unavailable", zap.Error(err))
	}
	reports, closeCache := openReportCache(ctx, cfg, baseLogger)
	if closeCache != nil {
		closers = append(closers, closeCache)
	}

	svc := service.New(repo, reports, cfg.ReportCacheTTL(), baseLogger.Named("service"))
	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin:  cfg.AllowedOrigin,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Logger:         baseLogger.Named("http"),
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		baseLogger.Info("ledger API listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			baseLogger.Error("close error", zap.Error(err))
		}
	}

	baseLogger.Info("server stopped")
}

// openRepository uses PostgreSQL when DATABASE_URL is set and refuses to fall
// back to memory if that database cannot be reached.
func openRepository(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Repository, []func() error, error) {
	if cfg.DatabaseURL == "" {
		log.Info("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
	}
	if cfg.MigrateOnStart {
		if err := pg.Migrate(log.Named("migrate")); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
	}
	log.Info("repository: postgres")
	return pg, []func() error{pg.Close}, nil
}

// openReportCache returns Redis when it answers a ping and the no-op cache
// otherwise. The returned closer is nil for the no-op cache.
func openReportCache(ctx context.Context, cfg config.Config, log *zap.Logger) (cache.ReportCache, func() error) {
	if cfg.RedisAddr == "" {
		log.Info("cache: noop")
		return cache.NoopReportCache{}, nil
	}

	redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		log.Warn("redis unavailable, using noop cache", zap.Error(err))
		_ = redisCache.Close()
		return cache.NoopReportCache{}, nil
	}
	log.Info("cache: redis")
	return redisCache, redisCache.Close
}
