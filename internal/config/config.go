package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Catalog backends.
const (
	CatalogMemory    = "memory"
	CatalogPostgres  = "postgres"
	CatalogSQLite    = "sqlite"
	CatalogPostgREST = "postgrest"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Reference catalog.
	CatalogBackend   string
	CatalogDSN       string
	CatalogSeedPath  string
	PostgRESTURL     string
	PostgRESTKey     string
	CatalogTimeout   time.Duration
	CatalogCacheSize int
	CatalogCacheTTL  time.Duration

	// Stage hand-off tokens.
	SnapshotSecret []byte
	SnapshotTTL    time.Duration

	// Per-client API rate limit.
	RateLimitRPS   float64
	RateLimitBurst int

	// Batch pipeline.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is read first when present;
// variables already set in the environment take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	catalogTimeout, err := parsePositiveDuration("CATALOG_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("CATALOG_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	snapshotTTL, err := parsePositiveDuration("SNAPSHOT_TTL", "24h")
	if err != nil {
		return nil, err
	}

	rps, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("RATE_LIMIT_RPS", "5"), 64)
	if err != nil || rps <= 0 {
		return nil, errors.New("invalid RATE_LIMIT_RPS")
	}
	burst, err := strconv.Atoi(sharedcfg.EnvOrDefault("RATE_LIMIT_BURST", "10"))
	if err != nil || burst <= 0 {
		return nil, errors.New("invalid RATE_LIMIT_BURST")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CatalogBackend:   sharedcfg.EnvOrDefault("CATALOG_BACKEND", CatalogMemory),
		CatalogDSN:       os.Getenv("CATALOG_DSN"),
		CatalogSeedPath:  os.Getenv("CATALOG_SEED_PATH"),
		PostgRESTURL:     os.Getenv("POSTGREST_URL"),
		PostgRESTKey:     os.Getenv("POSTGREST_KEY"),
		CatalogTimeout:   catalogTimeout,
		CatalogCacheSize: parseCacheSize(),
		CatalogCacheTTL:  cacheTTL,

		SnapshotSecret: []byte(os.Getenv("SNAPSHOT_SECRET")),
		SnapshotTTL:    snapshotTTL,

		RateLimitRPS:   rps,
		RateLimitBurst: burst,

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "mix-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "mix-reports"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "fertigation-mix"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.SnapshotSecret) == 0 {
		return errors.New("SNAPSHOT_SECRET is required")
	}

	switch c.CatalogBackend {
	case CatalogMemory:
	case CatalogPostgres, CatalogSQLite:
		if c.CatalogDSN == "" {
			return fmt.Errorf("CATALOG_DSN is required for CATALOG_BACKEND=%s", c.CatalogBackend)
		}
	case CatalogPostgREST:
		if c.PostgRESTURL == "" {
			return errors.New("POSTGREST_URL is required for CATALOG_BACKEND=postgrest")
		}
	default:
		return fmt.Errorf("unknown CATALOG_BACKEND %q", c.CatalogBackend)
	}

	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaSourceTopic == "" {
			return errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required")
		}
	}
	return nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseCacheSize() int {
	if s := os.Getenv("CATALOG_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 256
}
