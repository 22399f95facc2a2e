// File: cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/iyunix/go-bluebox/internal/config"
	"github.com/iyunix/go-bluebox/internal/logger"
	"github.com/iyunix/go-bluebox/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.FromEnv("bluebox", "", "info", "")
		bootLog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.FromEnv("bluebox", cfg.Environment, cfg.LogLevel, cfg.LogFormat)

	dbLogLevel := gormlogger.Warn
	if cfg.IsProduction() {
		dbLogLevel = gormlogger.Error
	}
	db, err := store.OpenSQLite(cfg.DatabasePath, dbLogLevel)
	if err != nil {
		log.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}

	app, err := InitializeApplication(cfg, log, db)
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	// No write timeout: replies stream for up to STREAM_TIMEOUT.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("server starting",
			"addr", srv.Addr,
			"env", cfg.Environment,
			"model", cfg.ChatModel,
			"inference_url", cfg.InferenceURL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server startup failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down server gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server stopped")
}
