package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/chargepanel/internal/adapter/driven/api"
	sqliteadapter "github.com/ericfisherdev/chargepanel/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/chargepanel/internal/adapter/driving/http"
	"github.com/ericfisherdev/chargepanel/internal/application"
	"github.com/ericfisherdev/chargepanel/internal/config"
	"github.com/ericfisherdev/chargepanel/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"api_base_url", cfg.APIBaseURL,
		"request_timeout", cfg.RequestTimeout,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Tracing (no-op unless OTEL_EXPORTER_OTLP_ENDPOINT is set).
	shutdownTracing := telemetry.Setup(ctx, "chargepanel")
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Error("error flushing traces", "error", err)
		}
	}()

	// 4. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 5. Run migrations on writer connection.
	schemaVersion, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "schema_version", schemaVersion)

	// 6. Restore the persisted session.
	sessionStore := sqliteadapter.NewSessionRepo(db, cfg.SecretKey)
	if cfg.SecretKey == nil {
		slog.Warn("CHARGEPANEL_SECRET_KEY not set, session tokens are stored unencrypted")
	}
	session := application.NewSession(sessionStore, logger)
	if err := session.Load(ctx); err != nil {
		return err
	}
	if entries, err := sessionStore.List(ctx); err == nil && len(entries) > 0 {
		latest := entries[0].UpdatedAt
		for _, e := range entries[1:] {
			if e.UpdatedAt.After(latest) {
				latest = e.UpdatedAt
			}
		}
		slog.Info("session restored",
			"authenticated", session.Authenticated(),
			"keys", len(entries),
			"last_updated", latest,
		)
	}

	// 7. Wire the backend client and services.
	navigator := httphandler.NewNavigator(cfg.BannedPath, cfg.LoginPath, logger)
	responseCache := api.NewResponseCache()
	session.OnReset(responseCache.Purge)
	client, err := api.NewClient(api.Options{
		BaseURL:          cfg.APIBaseURL,
		Session:          session,
		Cache:            responseCache,
		OnBanned:         navigator,
		OnSessionExpired: navigator,
		RefreshPath:      cfg.RefreshPath,
		Timeout:          cfg.RequestTimeout,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	placeSvc := application.NewPlaceService(client, application.NewPlaceNormalizer(), logger)

	// 8. Create HTTP handler.
	apiHandler := httphandler.NewHandler(placeSvc, session, navigator, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("chargepanel started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
