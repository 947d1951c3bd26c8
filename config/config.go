// Package config loads mediasearch settings from an optional .env file and
// the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/poiesic/mediasearch/ai"
	"github.com/poiesic/mediasearch/storage"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Queue backends.
const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

// DefaultFile is read when no config file is named. It may be absent.
const DefaultFile = ".env"

var ErrInvalidConfig = errors.New("invalid configuration")

// StorageConfig selects and locates the vector index and record store.
type StorageConfig struct {
	Backend     string
	BadgerPath  string
	PostgresDSN string
}

// QueueConfig selects the record-created event queue.
type QueueConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
	MaxDeliveries int
}

// ServerConfig configures the HTTP query surface.
type ServerConfig struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// SearchConfig tunes the query path.
type SearchConfig struct {
	Collection      string
	MaxLimit        int
	LookupBatchSize int
}

// IngestConfig tunes the ingestion path.
type IngestConfig struct {
	RequireDuration bool
	Workers         int
}

// Config is the complete service configuration.
type Config struct {
	Storage StorageConfig
	Queue   QueueConfig
	AI      *ai.Config
	Server  ServerConfig
	Search  SearchConfig
	Ingest  IngestConfig
}

func setDefaults(v *viper.Viper) {
	aiDefaults := ai.DefaultConfig()

	v.SetDefault("STORAGE_BACKEND", BackendBadger)
	v.SetDefault("BADGER_PATH", "mediasearch.db")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("QUEUE_BACKEND", QueueMemory)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "mediasearch:record_created")
	v.SetDefault("MAX_DELIVERIES", 5)

	v.SetDefault("EMBEDDING_PROVIDER", aiDefaults.Provider)
	v.SetDefault("EMBEDDING_HOST", aiDefaults.EmbeddingHost)
	v.SetDefault("EMBEDDING_MODEL", aiDefaults.EmbeddingModel)
	v.SetDefault("EMBEDDING_DIMENSIONS", aiDefaults.Dimensions)
	v.SetDefault("OPENAI_API_KEY", "")

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SEARCH_REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)

	v.SetDefault("SEARCH_COLLECTION", "videos")
	v.SetDefault("SEARCH_MAX_LIMIT", 1000)
	v.SetDefault("LOOKUP_BATCH_SIZE", storage.MaxLookupBatch)

	v.SetDefault("REQUIRE_DURATION", false)
	v.SetDefault("INGEST_WORKERS", 0)
}

// Load reads path (DefaultFile when empty) and overlays the environment.
// A missing DefaultFile is ignored; a missing named file is an error.
// The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	file := path
	if file == "" {
		file = DefaultFile
	}
	v.SetConfigFile(file)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		if path != "" || !isNotExist(err) {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
	}
	v.AutomaticEnv()

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

func fromViper(v *viper.Viper) *Config {
	dsn := v.GetString("DATABASE_URL")
	if dsn == "" && v.GetString("DB_HOST") != "" {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			v.GetString("DB_HOST"), v.GetString("DB_USER"), v.GetString("DB_PASSWORD"),
			v.GetString("DB_NAME"), v.GetString("DB_PORT"), v.GetString("DB_SSLMODE"))
	}

	return &Config{
		Storage: StorageConfig{
			Backend:     strings.ToLower(v.GetString("STORAGE_BACKEND")),
			BadgerPath:  v.GetString("BADGER_PATH"),
			PostgresDSN: dsn,
		},
		Queue: QueueConfig{
			Backend:       strings.ToLower(v.GetString("QUEUE_BACKEND")),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			KeyPrefix:     v.GetString("REDIS_KEY_PREFIX"),
			MaxDeliveries: v.GetInt("MAX_DELIVERIES"),
		},
		AI: ai.NewConfig(
			ai.WithProvider(v.GetString("EMBEDDING_PROVIDER")),
			ai.WithEmbeddingHost(v.GetString("EMBEDDING_HOST")),
			ai.WithEmbeddingModel(v.GetString("EMBEDDING_MODEL")),
			ai.WithAPIKey(v.GetString("OPENAI_API_KEY")),
			ai.WithDimensions(v.GetInt("EMBEDDING_DIMENSIONS")),
		),
		Server: ServerConfig{
			Addr:            v.GetString("HTTP_ADDR"),
			RequestTimeout:  v.GetDuration("SEARCH_REQUEST_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Search: SearchConfig{
			Collection:      v.GetString("SEARCH_COLLECTION"),
			MaxLimit:        v.GetInt("SEARCH_MAX_LIMIT"),
			LookupBatchSize: v.GetInt("LOOKUP_BATCH_SIZE"),
		},
		Ingest: IngestConfig{
			RequireDuration: v.GetBool("REQUIRE_DURATION"),
			Workers:         v.GetInt("INGEST_WORKERS"),
		},
	}
}

// Validate checks the configuration and normalizes the AI section.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendBadger:
		if c.Storage.BadgerPath == "" {
			errs = append(errs, errors.New("BADGER_PATH is required for the badger backend"))
		}
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("DATABASE_URL or DB_HOST is required for the postgres backend"))
		}
		if c.AI != nil && c.AI.Dimensions <= 0 {
			errs = append(errs, errors.New("EMBEDDING_DIMENSIONS must be positive for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}

	switch c.Queue.Backend {
	case QueueMemory:
	case QueueRedis:
		if c.Queue.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis queue"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown QUEUE_BACKEND %q", c.Queue.Backend))
	}
	if c.Queue.MaxDeliveries < 1 {
		errs = append(errs, errors.New("MAX_DELIVERIES must be at least 1"))
	}

	if c.AI == nil {
		errs = append(errs, errors.New("embedding configuration is missing"))
	} else if err := c.AI.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("SEARCH_REQUEST_TIMEOUT must be positive"))
	}
	if c.Search.Collection == "" {
		errs = append(errs, errors.New("SEARCH_COLLECTION is required"))
	}
	if c.Search.MaxLimit < 1 {
		errs = append(errs, errors.New("SEARCH_MAX_LIMIT must be at least 1"))
	}
	if c.Search.LookupBatchSize < 1 || c.Search.LookupBatchSize > storage.MaxLookupBatch {
		errs = append(errs, fmt.Errorf("LOOKUP_BATCH_SIZE must be between 1 and %d", storage.MaxLookupBatch))
	}
	if c.Ingest.Workers < 0 {
		errs = append(errs, errors.New("INGEST_WORKERS must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
