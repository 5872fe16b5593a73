package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/fertigation-mix/internal/config"
	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"github.com/couchcryptid/fertigation-mix/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Open builds the configured backend wrapped in the cache decorator. The
// returned close function releases backend resources.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Cached, func() error, error) {
	inner, closeFn, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("catalog ready",
		"backend", cfg.CatalogBackend,
		"cache_size", cfg.CatalogCacheSize,
		"cache_ttl", cfg.CatalogCacheTTL,
	)
	return NewCached(inner, cfg.CatalogCacheSize, cfg.CatalogCacheTTL, clockwork.NewRealClock(), metrics), closeFn, nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.Catalog, func() error, error) {
	noop := func() error { return nil }

	switch cfg.CatalogBackend {
	case config.CatalogMemory:
		seed, err := ReadSeedFile(cfg.CatalogSeedPath)
		if err != nil {
			return nil, nil, err
		}
		return NewMemoryFromSeed(seed), noop, nil

	case config.CatalogPostgres, config.CatalogSQLite:
		db, err := OpenSQL(ctx, Dialect(cfg.CatalogBackend), cfg.CatalogDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil

	case config.CatalogPostgREST:
		return NewPostgREST(cfg.PostgRESTURL, cfg.PostgRESTKey, cfg.CatalogTimeout, logger), noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown catalog backend %q", cfg.CatalogBackend)
	}
}

// ReadSeedFile loads a seed from path, or the embedded default when path is empty.
func ReadSeedFile(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed()
	}
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return LoadSeed(f)
}
