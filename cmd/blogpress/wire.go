package main

import (
	"blogpress/internal/cache"
	"blogpress/internal/config"
	"blogpress/internal/content"
	"blogpress/internal/imaging"
	"blogpress/internal/storage"
	"blogpress/internal/storage/sqldb"
	"blogpress/internal/telemetry"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// deps is everything the commands share: the database, the upload store
// and the content services built on them.
type deps struct {
	store      *sqldb.Store
	local      *storage.LocalStore
	cache      cache.Cache
	replicator *content.Replicator
	media      *content.MediaStore
	posts      *content.PostService
	categories *content.CategoryService
	sections   *content.SectionService
	closers    []func() error
}

func (d *deps) Close() error {
	var errs []error
	for _, c := range d.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func openStore(cfg *config.Config, logger *slog.Logger) (*sqldb.Store, error) {
	store, err := sqldb.NewStore(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.DB.Driver, err)
	}

	if cfg.DB.AutoMigrate {
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("database migrated", "driver", cfg.DB.Driver)
	}

	return store, nil
}

// build wires the storage and content layers. Replication workers live
// until ctx is cancelled.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger, tracer trace.Tracer, metrics *telemetry.Metrics) (*deps, error) {
	d := &deps{}

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	d.store = store
	d.closers = append(d.closers, store.Close)

	local, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to open upload dir: %w", err)
	}
	d.local = local
	d.closers = append(d.closers, local.Close)
	logger.Debug("upload store opened", "dir", local.BasePath())

	d.cache = cache.Nop{}
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.Connect(ctx, cfg.Cache.RedisURL, cfg.App.Name+":")
		if err != nil {
			d.Close()
			return nil, err
		}
		d.cache = rc
		d.closers = append(d.closers, rc.Close)
		logger.Info("redis cache enabled", "ttl", cfg.Cache.TTL)
	}
	d.cache = cache.WithMetrics(d.cache, metrics)

	pipeline := imaging.NewPipeline(local,
		imaging.WithOptions(imageOptions(cfg.Images)),
		imaging.WithLogger(logger.With("component", "imaging")),
		imaging.WithTracer(tracer),
		imaging.WithMetrics(metrics),
	)

	mediaOpts := []content.MediaOption{content.WithMediaLogger(logger.With("component", "media"))}
	if cfg.Uploads.Replicate {
		s3, err := storage.NewS3Store(cfg.S3)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to configure S3 replica: %w", err)
		}
		d.replicator = content.NewReplicator(ctx, local, s3, replicaWorkers, logger.With("component", "replicator"), metrics)
		mediaOpts = append(mediaOpts, content.WithMirror(d.replicator))
		logger.Info("S3 replication enabled", "bucket", cfg.S3.Bucket)
	}

	d.media = content.NewMediaStore(local, pipeline, cfg.Uploads.URLPrefix, mediaOpts...)
	d.posts = content.NewPostService(store, d.media, d.cache, logger.With("component", "posts"), metrics)
	d.categories = content.NewCategoryService(store, d.cache, cfg.Cache.TTL, logger.With("component", "categories"))
	d.sections = content.NewSectionService(store, d.cache, cfg.Cache.TTL, logger.With("component", "sections"))

	return d, nil
}

const replicaWorkers = 2

func imageOptions(c config.ImagesConfig) imaging.Options {
	return imaging.Options{
		Ceiling:             c.Ceiling,
		MaxDimension:        c.MaxDimension,
		EscalationDimension: c.EscalationDimension,
		InitialQuality:      c.InitialQuality,
		NormalizeQuality:    c.NormalizeQuality,
		QualityStep:         c.QualityStep,
		QualityFloor:        c.QualityFloor,
		MaxAttempts:         c.MaxAttempts,
		EscalationQuality:   c.EscalationQuality,
		LastResortQuality:   c.LastResortQuality,
		Tolerance:           c.Tolerance,
	}
}
