// Package app assembles the pieces both binaries share: database, cache,
// metrics, staff directory, audit log and attachment store.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"denuncia/backend/internal/attachment"
	"denuncia/backend/internal/audit"
	"denuncia/backend/internal/cache"
	"denuncia/backend/internal/complaint"
	"denuncia/backend/internal/config"
	"denuncia/backend/internal/directory"
	"denuncia/backend/internal/metrics"
	"denuncia/backend/internal/storage"
)

const redisNamespace = "denuncia"

type Core struct {
	Config      config.Config
	Logger      *slog.Logger
	Storage     *storage.Service
	Cache       cache.Cache
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
	Directory   *directory.Directory
	Audit       *audit.Store
	Attachments attachment.Remover
}

// Open connects to the database (and Redis when the cache runs there).
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Core, error) {
	db, err := storage.Open(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Cache.Driver == "redis" {
		rdb, err = storage.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, err
		}
	}
	svc := storage.NewStorageService(db, rdb)

	attachments, err := attachment.Open(ctx, cfg.Attachments, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("attachments: %w", err), svc.Close())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Core{
		Config:      cfg,
		Logger:      logger,
		Storage:     svc,
		Cache:       newCache(cfg.Cache, rdb, logger),
		Registry:    reg,
		Metrics:     metrics.New(reg),
		Directory:   directory.New(db),
		Audit:       audit.NewStore(db),
		Attachments: attachments,
	}, nil
}

func newCache(cfg config.Cache, rdb *redis.Client, logger *slog.Logger) cache.Cache {
	switch cfg.Driver {
	case "redis":
		logger.Info("cache backend", "driver", "redis")
		return cache.NewRedis(rdb, redisNamespace, cache.WithRedisLogger(logger))
	case "none":
		logger.Info("cache backend", "driver", "none")
		return cache.Nop{}
	default:
		logger.Info("cache backend", "driver", "memory", "max_entries", cfg.MaxEntries)
		return cache.NewMemory(cache.WithMaxEntries(cfg.MaxEntries))
	}
}

// Repository builds the complaint repository over the shared pieces; extra
// options (a notifier, usually) are applied last.
func (c *Core) Repository(opts ...complaint.Option) *complaint.Repository {
	base := []complaint.Option{
		complaint.WithLogger(c.Logger),
		complaint.WithMetrics(c.Metrics),
		complaint.WithTTL(c.Config.Cache.TTL),
		complaint.WithDirectory(c.Directory),
		complaint.WithAuditLogger(c.Audit),
		complaint.WithAttachments(c.Attachments),
		complaint.WithNotifyRoles(c.Config.Notify.Roles...),
	}
	return complaint.NewRepository(c.Storage.DB, c.Cache, append(base, opts...)...)
}

func (c *Core) Close() error {
	return c.Storage.Close()
}
