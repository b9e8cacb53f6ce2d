// Command export uploads the weekly vault activity report to object
// storage. It is a one-shot process meant to be run from cron or a
// Kubernetes CronJob.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/mvolkovs/passvault/internal/logging"
	"github.com/mvolkovs/passvault/internal/server/config"
	"github.com/mvolkovs/passvault/internal/server/export"
	"github.com/mvolkovs/passvault/internal/server/repositories/repomanager"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	store, err := export.NewS3Store(ctx, cfg)
	if err != nil {
		log.Fatalf("s3 init error: %v", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	reporter := export.NewReporter(repos.VaultEntries(db), store, logger)

	key, err := reporter.Run(ctx, time.Now().UTC())
	if err != nil {
		logger.Error(ctx, "weekly report failed", "error", err.Error())
		os.Exit(1)
	}
	logger.Info(ctx, "weekly report done", "key", key)
}
