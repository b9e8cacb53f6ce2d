// Package server initializes and runs the PassVault server: database and
// migrations, the encryption engine, the breach checker, the notification
// sender, and the HTTP gateway, with graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mvolkovs/passvault/internal/breach"
	"github.com/mvolkovs/passvault/internal/common"
	"github.com/mvolkovs/passvault/internal/cryptox"
	"github.com/mvolkovs/passvault/internal/logging"
	"github.com/mvolkovs/passvault/internal/observability"
	"github.com/mvolkovs/passvault/internal/server/config"
	"github.com/mvolkovs/passvault/internal/server/httpapi"
	"github.com/mvolkovs/passvault/internal/server/notification"
	"github.com/mvolkovs/passvault/internal/server/repositories/repomanager"
	"github.com/mvolkovs/passvault/internal/server/services"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	gateway  *httpapi.Gateway
	notifier *notification.Notifier
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	cipher, err := cryptox.NewCipher(cfg.EncryptionKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cipher init error: %w", err)
	}
	// The cipher holds its own copy of the key; the config copy is no longer
	// needed. Only the fingerprint is loggable.
	keyID := hex.EncodeToString(cryptox.Fingerprint(cfg.EncryptionKey))[:12]
	common.WipeByteArray(cfg.EncryptionKey)
	logger.Info(ctx, "encryption engine ready", "key_id", keyID)

	metrics := observability.NewMetrics()

	checker := breach.NewChecker(
		breach.NewHTTPRangeClient(cfg.BreachRangeURL, http.DefaultClient),
		cfg.BreachCheckTimeout, logger, metrics)

	var sender notification.Sender
	if cfg.SMTPHost != "" {
		sender = notification.NewEmailSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			TLS:      cfg.SMTPTLS,
		})
	}
	notifier := notification.NewNotifier(sender, logger)

	vault := services.NewVaultService(db, repos, cipher, checker, notifier, logger, metrics)
	users := services.NewUserService(db, repos, checker, notifier, logger,
		[]byte(cfg.JWTSecret), cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration)

	gateway := httpapi.NewGateway(httpapi.Config{
		ListenAddr:      cfg.EndpointAddr,
		JWTSecret:       []byte(cfg.JWTSecret),
		MetricsRegistry: metrics.Registry,
		Metrics:         metrics,
	}, vault, users, logger)

	return &App{
		config:   cfg,
		logger:   logger,
		db:       db,
		gateway:  gateway,
		notifier: notifier,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.gateway.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	<-ctx.Done()

	if err := app.gateway.Stop(context.Background()); err != nil {
		app.logger.Error(ctx, err.Error())
	}

	wg.Wait()

	// Let in-flight notification emails finish before the process exits.
	app.notifier.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}

	app.logger.Info(ctx, "app stopped")
}
