package main

import (
	"blogpress/internal/config"
	"blogpress/internal/content"
	"blogpress/internal/handlers"
	"blogpress/internal/middleware"
	"blogpress/internal/router"
	"blogpress/internal/storage"
	"blogpress/internal/telemetry"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// set at build time with -ldflags "-X main.version=..."
var version = "dev"

var errUsage = errors.New("invalid arguments")

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, _ []string) error {
	tel, err := telemetry.Init(ctx, cfg.App.Name, version, cfg.App.Environment, cfg.Metrics.OtelEndpoint, cfg.Metrics.EnableTelemetry, logger)
	if err != nil {
		return fmt.Errorf("telemetry init failed: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("telemetry shutdown failed", "err", err)
		}
	}()

	d, err := build(ctx, cfg, logger, tel.Tracer, tel.Metrics)
	if err != nil {
		return err
	}
	defer d.Close()

	isProd := cfg.App.Environment == "prod"

	sessions := middleware.NewSessionManager(cfg.Auth.SessionLifetime, cfg.Auth.SecureCookies, middleware.SessionStore(d.store.Driver(), d.store.RawDB()))

	blogHandler := &handlers.BlogHandler{
		Title:          cfg.App.Name,
		Posts:          d.posts,
		Categories:     d.categories,
		Sections:       d.sections,
		Media:          d.media,
		Admins:         d.store,
		Sessions:       sessions,
		Logger:         logger,
		Uploads:        d.local.FS(),
		MaxUploadBytes: cfg.Uploads.MaxBytes,
	}

	handler := router.NewRouter(router.RouterDependencies{
		Cfg:         cfg,
		Logger:      logger,
		BlogHandler: blogHandler,
		Uploads:     d.local.FS(),
		Limiter:     middleware.NewIPRateLimiter(ctx, float64(cfg.Limiter.RPS), cfg.Limiter.Burst, cfg.Proxy.Trusted, tel.Metrics),
		AuthLimiter: middleware.NewIPRateLimiter(ctx, cfg.Auth.LoginRPS, cfg.Auth.LoginBurst, cfg.Proxy.Trusted, tel.Metrics),
		Tracer:      tel.Tracer,
		Metrics:     tel.Metrics,
		Session:     sessions,
		CSRF:        middleware.NewCSRF(isProd, cfg.HTTP.AllowedOrigins),
		Headers:     middleware.NewSecurityHeaders(isProd),
	})

	app := NewApp(cfg, logger, handler)
	if err := app.Run(ctx); err != nil {
		return err
	}

	if d.replicator != nil {
		<-d.replicator.Done()
	}
	return nil
}

func migrateCmd(_ context.Context, cfg *config.Config, logger *slog.Logger, _ []string) error {
	cfg.DB.AutoMigrate = true
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	return store.Close()
}

func createAdmin(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: blogpress create-admin <email> <password>")
		return errUsage
	}
	email := strings.ToLower(strings.TrimSpace(args[0]))
	if email == "" || args[1] == "" {
		return errors.New("email and password must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(args[1]), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	admin, err := store.CreateAdmin(ctx, email, string(hash))
	if errors.Is(err, storage.ErrUniqueViolation) {
		return fmt.Errorf("admin %q already exists", email)
	}
	if err != nil {
		return err
	}

	logger.Info("admin created", "id", admin.ID, "email", admin.Email)
	return nil
}

func hashPassword(_ context.Context, _ *config.Config, _ *slog.Logger, args []string) error {
	if len(args) != 1 || args[0] == "" {
		fmt.Fprintln(os.Stderr, "usage: blogpress hash-password <password>")
		return errUsage
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Println(string(hash))
	return nil
}

func importCmd(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: blogpress import <dir>")
		return errUsage
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d, err := build(workCtx, cfg, logger, nil, nil)
	if err != nil {
		return err
	}
	defer d.Close()

	importer := content.NewImporter(d.posts, d.categories, d.media, logger.With("component", "importer"))
	report, err := importer.ImportDir(workCtx, args[0])
	if err != nil {
		return err
	}

	for _, f := range report.Failed {
		logger.Warn("file not imported", "path", f.Path, "err", f.Err)
	}
	logger.Info("import finished", "imported", len(report.Imported), "failed", len(report.Failed))

	return waitReplica(ctx, d)
}

func syncReplica(ctx context.Context, cfg *config.Config, logger *slog.Logger, _ []string) error {
	if !cfg.Uploads.Replicate {
		return errors.New("UPLOADS_REPLICATE is not enabled")
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d, err := build(workCtx, cfg, logger, nil, nil)
	if err != nil {
		return err
	}
	defer d.Close()

	queued, err := d.replicator.Backfill(workCtx, d.local.FS())
	if err != nil {
		return err
	}
	logger.Info("backfill queued", "uploads", queued)

	return waitReplica(ctx, d)
}

// waitReplica lets queued replication jobs finish before the process exits.
func waitReplica(ctx context.Context, d *deps) error {
	if d.replicator == nil {
		return nil
	}
	return d.replicator.Wait(ctx)
}
