package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/laythBunni/ASIAiHub-sub000/internal/hub/http"
	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/mail"
	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/metrics"
	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/service"
	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/store"
	"github.com/laythBunni/ASIAiHub-sub000/internal/hub/store/drivers/sqlite"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/jwtx"
	"github.com/laythBunni/ASIAiHub-sub000/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the AiHub gateway with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	registry *prometheus.Registry
	recorder *metrics.Collector

	sessionService *service.SessionService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "aihub",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initMetrics()
	app.initServices()

	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("aihub gateway starting",
		"port", app.cfg.Port,
		"upstream", app.cfg.UpstreamBase,
		"version", BuildVersion,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down aihub gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("aihub gateway stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initMetrics() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.recorder = metrics.NewCollector(app.registry)
}

// initServices initializes the business logic services
func (app *Application) initServices() {
	secret := []byte(app.cfg.SessionSecret)

	app.sessionService = &service.SessionService{
		Store: app.db,
		Mailer: &mail.SMTPMailer{
			Host:     app.cfg.SMTPHost,
			Port:     app.cfg.SMTPPort,
			Username: app.cfg.SMTPUser,
			Password: app.cfg.SMTPPass,
			From:     app.cfg.MailFrom,
		},
		Signer:      &jwtx.HS256Signer{Secret: secret},
		Verify:      &jwtx.HS256Verifier{Secret: secret, Issuer: app.cfg.Issuer},
		Metrics:     app.recorder,
		Issuer:      app.cfg.Issuer,
		CodeTTL:     app.cfg.CodeTTL,
		SessionTTL:  app.cfg.SessionTTL,
		DefaultRole: app.cfg.DefaultRole,
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	upstream, err := url.Parse(app.cfg.UpstreamBase)
	if err != nil {
		return fmt.Errorf("failed to parse upstream base: %w", err)
	}

	router := httpapi.NewRouter(
		upstream,
		httpapi.NewProxyClient(app.cfg.ProxyTimeout),
		BuildVersion,
		app.db,
		app.recorder,
		promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}),
		app.logger,
	)

	router.SessionService = app.sessionService
	router.CookieTTL = app.cfg.SessionTTL
	router.CookieSecure = app.cfg.CookieSecure
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return nil
}
