// tracker runs the fleet-tracking back-office pipeline: periodic provider
// scraping, stop detection, and AI voice escalation, behind a small HTTP
// control surface.
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fleetops/tracker/pkg/api"
	"github.com/fleetops/tracker/pkg/config"
	"github.com/fleetops/tracker/pkg/coordinator"
	"github.com/fleetops/tracker/pkg/escalation"
	"github.com/fleetops/tracker/pkg/fetch"
	"github.com/fleetops/tracker/pkg/metrics"
	"github.com/fleetops/tracker/pkg/scheduler"
	"github.com/fleetops/tracker/pkg/stopdetect"
	"github.com/fleetops/tracker/pkg/storage"
	"github.com/fleetops/tracker/pkg/version"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

// initLogging builds the process-wide slog.Logger and installs it as the
// default so every component's slog.Default().With("component", ...)
// routes through it. With no LOG_FILE set, logs go to stdout only (the
// teacher's short-lived dev-run case); with LOG_FILE set, output goes only
// to that file, rotated through lumberjack, since this pipeline runs as an
// always-on daemon rather than a one-shot CLI invocation.
func initLogging() *slog.Logger {
	var writer io.Writer = os.Stdout
	if logFile := getEnv("LOG_FILE", ""); logFile != "" {
		writer = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAge:     getEnvInt("LOG_MAX_AGE_DAYS", 28),
			Compress:   true,
		}
	}
	logger := slog.New(slog.NewJSONHandler(writer, nil))
	slog.SetDefault(logger)
	return logger
}

func main() {
	logger := initLogging().With("component", "main")

	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		logger.Warn("could not load env file", "path", envPath, "error", err)
	} else {
		logger.Info("loaded environment", "path", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	fetchTimeout := 15 * time.Second

	logger.Info("starting", "version", version.Full())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		logger.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	if cfg.Storage.BaseURL == "" {
		logger.Error("API_BASE_URL is required")
		os.Exit(1)
	}

	metrics.Init("tracker")

	gateway := storage.New(cfg.Storage.BaseURL, cfg.Storage.Username, cfg.Storage.Password)
	store := storage.NewStore(gateway)

	fetcher := fetch.New(fetchTimeout)
	coord := coordinator.New(store, fetcher, cfg.OrphanFallbackEnabled())
	stopDet := stopdetect.New(store)

	var vapiCfg config.VapiConfig
	if cfg.Vapi != nil {
		vapiCfg = *cfg.Vapi
	}
	voice := escalation.NewVoiceClient(vapiCfg, store)
	escEngine := escalation.New(store, voice, cfg)

	sched := scheduler.New(cfg.Scheduler, coord, stopDet, escEngine, store)
	sched.Start(ctx)

	server := api.NewServer(cfg, store, coord, sched, stopDet, escEngine)

	go func() {
		logger.Info("http server listening", "port", httpPort)
		if err := server.Start(":" + httpPort); err != nil {
			logger.Error("http server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during http shutdown", "error", err)
	}

	logger.Info("shutdown complete")
}
