package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"clothpos/backend/internal/archive"
	"clothpos/backend/internal/bridge"
	"clothpos/backend/internal/config"
	"clothpos/backend/internal/logger"
)

func main() {
	cfg, err := config.LoadBridge()
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.LogLevel))
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var messages archive.MessageLog = archive.Noop{}
	if cfg.MongoURI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		mongoArchive, err := archive.NewMongo(connectCtx, cfg.MongoURI, cfg.MongoDBName)
		cancel()
		if err != nil {
			baseLogger.Fatal("failed to init mongodb message log", zap.Error(err))
		}
		defer func() {
			if err := mongoArchive.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		messages = mongoArchive
		baseLogger.Info("message log: mongodb")
	} else {
		baseLogger.Info("message log: noop")
	}

	session := bridge.NewCloudSession(cfg, baseLogger.Named("session"))
	go session.Run(ctx, cfg.ProbeInterval())

	engine := bridge.NewRouter(bridge.NewHandler(session, messages, baseLogger.Named("handlers")), baseLogger.Named("router"))

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("whatsapp bridge starting", zap.String("addr", cfg.Address()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
