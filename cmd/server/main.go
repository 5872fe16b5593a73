// Command server runs the fertigation HTTP API and, when KAFKA_ENABLED is
// set, the batch pipeline that evaluates mix requests from Kafka.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/fertigation-mix/internal/adapter/catalog"
	httpadapter "github.com/couchcryptid/fertigation-mix/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/fertigation-mix/internal/adapter/kafka"
	"github.com/couchcryptid/fertigation-mix/internal/calc"
	"github.com/couchcryptid/fertigation-mix/internal/config"
	"github.com/couchcryptid/fertigation-mix/internal/observability"
	"github.com/couchcryptid/fertigation-mix/internal/pipeline"
	"github.com/couchcryptid/fertigation-mix/internal/snapshot"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, closeCatalog, err := catalog.Open(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to open catalog", "error", err)
		os.Exit(1)
	}

	svc := calc.NewService(cat, logger, metrics)
	signer := snapshot.NewSigner(cfg.SnapshotSecret, cfg.SnapshotTTL, clockwork.NewRealClock())
	api := httpadapter.NewAPI(svc, signer, logger)

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:      cfg.HTTPAddr,
		RateLimit: rate.Limit(cfg.RateLimitRPS),
		RateBurst: cfg.RateLimitBurst,
	}, api, svc, logger, metrics)

	var reader *kafkaadapter.Reader
	var writer *kafkaadapter.Writer

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		p := pipeline.New(reader, pipeline.NewTransformer(svc, logger), writer, logger, metrics, cfg.BatchSize)
		g.Go(func() error { return p.Run(gctx) })
	} else {
		logger.Info("batch pipeline disabled")
	}

	// A failed server cancels gctx, which also stops the pipeline.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	exitCode := 0
	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		exitCode = 1
	}

	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := closeCatalog(); err != nil {
		logger.Error("catalog close error", "error", err)
	}

	logger.Info("shutdown complete")
	if exitCode != 0 {
		stop()
		os.Exit(exitCode)
	}
}
