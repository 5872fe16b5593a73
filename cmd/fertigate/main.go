// Command fertigate evaluates fertigation dosing plans from the command line.
//
// Usage:
//
//	fertigate tanks -p plan.yaml
//	fertigate mix -p plan.yaml -o yaml
//	fertigate export -p plan.yaml --format pdf --out mix.pdf
//	fertigate ph --phosphate 1.5 --alkalinity 2
//	fertigate catalog import --backend sqlite --dsn catalog.db --seed seed.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/fertigation-mix/internal/adapter/catalog"
	"github.com/couchcryptid/fertigation-mix/internal/calc"
	"github.com/couchcryptid/fertigation-mix/internal/config"
	"github.com/couchcryptid/fertigation-mix/internal/observability"
	"github.com/spf13/cobra"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	backend  string
	dsn      string
	seedPath string
	url      string
	key      string
	output   string
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "fertigate",
		Short:        "Fertigation tank and mix calculator",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.backend, "backend", config.CatalogMemory, "catalog backend: memory, sqlite, postgres or postgrest")
	flags.StringVar(&opts.dsn, "dsn", "", "database DSN for the sqlite and postgres backends")
	flags.StringVar(&opts.seedPath, "seed", "", "catalog seed YAML (default: embedded seed)")
	flags.StringVar(&opts.url, "postgrest-url", "", "PostgREST base URL")
	flags.StringVar(&opts.key, "postgrest-key", "", "PostgREST API key")
	flags.StringVarP(&opts.output, "output", "o", "json", "output format: json or yaml")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newTanksCmd(opts),
		newMixCmd(opts),
		newExportCmd(opts),
		newPHCmd(opts),
		newCatalogCmd(opts),
	)
	return root
}

// logger writes text to stderr so stdout stays clean for reports.
// Unparseable levels fall back to warn.
func (o *options) logger() *slog.Logger {
	level := slog.LevelWarn
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// config translates the flags into the service configuration the catalog
// adapters expect.
func (o *options) config() *config.Config {
	return &config.Config{
		CatalogBackend:   o.backend,
		CatalogDSN:       o.dsn,
		CatalogSeedPath:  o.seedPath,
		PostgRESTURL:     o.url,
		PostgRESTKey:     o.key,
		CatalogTimeout:   10 * time.Second,
		CatalogCacheSize: 64,
		CatalogCacheTTL:  time.Minute,
	}
}

// service opens the configured catalog and returns a calculation service
// over it along with a function releasing the catalog.
func (o *options) service(ctx context.Context) (*calc.Service, func() error, error) {
	logger := o.logger()
	metrics := observability.NewUnregisteredMetrics()

	cat, closeFn, err := catalog.Open(ctx, o.config(), logger, metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("open catalog: %w", err)
	}
	return calc.NewService(cat, logger, metrics), closeFn, nil
}
