// Package main provides the entry point for the template recommendation
// backend: it wires the document store, the platform template importer,
// the recommendation engine and the HTTP/WebSocket API.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantdesk/template-backend/internal/api"
	"github.com/quantdesk/template-backend/internal/config"
	"github.com/quantdesk/template-backend/internal/engine"
	"github.com/quantdesk/template-backend/internal/importer"
	"github.com/quantdesk/template-backend/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file (optional)")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting QuantDesk template backend",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("storagePath", cfg.Storage.Path),
		zap.String("templateDir", cfg.Storage.TemplateDir),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize document store
	st, err := store.Open(logger, cfg.Storage.Path)
	if err != nil {
		logger.Fatal("Failed to open document store", zap.Error(err))
	}
	defer st.Close()

	// Import platform templates on startup; a missing folder is not fatal.
	imp := importer.New(logger, st, cfg.Storage.TemplateDir)
	if result, err := imp.ImportAll(ctx); err != nil {
		logger.Warn("Initial template import failed", zap.Error(err))
	} else {
		logger.Info("Initial template import complete",
			zap.Int("imported", result.Imported),
			zap.Int("skipped", result.Skipped),
		)
	}

	// Initialize recommendation engine
	eng := engine.NewEngine(logger, cfg.Engine, st, st, nil)

	// Initialize WebSocket hub and API server
	hub := api.NewHub(logger)
	go hub.Run()

	server := api.NewServer(logger, &cfg.Server, st, eng, imp, hub)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received")

	cancel()

	// Graceful server shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}

	return logger
}
