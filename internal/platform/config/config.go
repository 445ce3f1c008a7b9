package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"wordhub/pkg/domain"
	pstrings "wordhub/pkg/platform/strings"
)

// Storage backends accepted by WORDHUB_STORAGE.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Senders accepted by WORDHUB_SENDER.
const (
	SenderLog     = "log"
	SenderWebhook = "webhook"
)

// Config is the full process configuration. FromEnv fills it so main stays lean.
type Config struct {
	Server   Server
	Storage  Storage
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Delivery DeliveryConfig
	Registry RegistryConfig
	Log      LogConfig

	// Admins is the static authorization set; it is merged with the redis
	// admin set when redis is configured.
	Admins []domain.ActorID
	// File is the path of the taxonomy/subscriber YAML file. Empty means
	// the built-in defaults.
	File string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr       string
	AdminToken string
	// RequestTimeout bounds one API request; ShutdownTimeout bounds the
	// graceful drain on SIGTERM.
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Storage selects the registry persistence backend.
type Storage struct {
	Backend string
	DataDir string
}

// RedisConfig is used by the redis persister, the redis conflict store and
// the redis admin set.
type RedisConfig struct {
	URL string
	// Namespace prefixes every key written by this process.
	Namespace    string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig is used by the postgres persister.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig enables the kafka distribution transport when Brokers is set.
type KafkaConfig struct {
	Brokers           []string
	TopicPrefix       string
	Partitions        int32
	ReplicationFactor int16
}

// DeliveryConfig configures outbound report delivery.
type DeliveryConfig struct {
	Sender     string
	WebhookURL string
	// Rate is the sustained number of outbound messages per second.
	Rate     float64
	Burst    int
	RetryMax int
}

// RegistryConfig tunes the registry and its background jobs.
type RegistryConfig struct {
	PageSize      int
	ConflictTTL   time.Duration
	PushWorkers   int
	FlushInterval time.Duration
	MatchTimeout  time.Duration
	PatternCache  int
	// CommandLimit commands per CommandWindow are accepted from one issuer.
	// Zero disables throttling.
	CommandLimit  int
	CommandWindow time.Duration
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// FromEnv builds a Config from environment variables with development defaults.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:       envOr("WORDHUB_ADDR", ":8080"),
			AdminToken: os.Getenv("WORDHUB_ADMIN_TOKEN"),
		},
		Storage: Storage{
			Backend: envOr("WORDHUB_STORAGE", StorageFile),
			DataDir: envOr("WORDHUB_DATA_DIR", "data"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			Namespace:    envOr("REDIS_NAMESPACE", "wordhub"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Postgres: PostgresConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:           splitList(os.Getenv("KAFKA_BROKERS")),
			TopicPrefix:       envOr("KAFKA_TOPIC_PREFIX", "wordhub."),
			Partitions:        1,
			ReplicationFactor: 1,
		},
		Delivery: DeliveryConfig{
			Sender:     envOr("WORDHUB_SENDER", SenderLog),
			WebhookURL: os.Getenv("DELIVERY_WEBHOOK_URL"),
			Burst:      1,
			RetryMax:   5,
		},
		Log: LogConfig{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
		File: os.Getenv("WORDHUB_CONFIG"),
	}

	var err error
	if cfg.Delivery.Rate, err = envFloat("DELIVERY_RATE", 1); err != nil {
		return Config{}, err
	}
	if cfg.Registry.PageSize, err = envInt("WORDHUB_PAGE_SIZE", 15); err != nil {
		return Config{}, err
	}
	if cfg.Registry.PushWorkers, err = envInt("PUSH_WORKERS", 8); err != nil {
		return Config{}, err
	}
	if cfg.Registry.ConflictTTL, err = envDuration("CONFLICT_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.Registry.FlushInterval, err = envDuration("WORDHUB_FLUSH_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.Registry.MatchTimeout, err = envDuration("WORDHUB_MATCH_TIMEOUT", 100*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.Registry.PatternCache, err = envInt("WORDHUB_PATTERN_CACHE", 4096); err != nil {
		return Config{}, err
	}
	if cfg.Registry.CommandLimit, err = envInt("COMMAND_RATE_LIMIT", 30); err != nil {
		return Config{}, err
	}
	if cfg.Registry.CommandWindow, err = envDuration("COMMAND_RATE_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.Server.RequestTimeout, err = envDuration("HTTP_REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Server.ShutdownTimeout, err = envDuration("HTTP_SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Admins, err = parseAdmins(os.Getenv("WORDHUB_ADMINS")); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations that cannot start.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case StorageFile:
	case StoragePostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres storage")
		}
	case StorageRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for redis storage")
		}
	default:
		return fmt.Errorf("unknown WORDHUB_STORAGE %q", c.Storage.Backend)
	}
	switch c.Delivery.Sender {
	case SenderLog:
	case SenderWebhook:
		if c.Delivery.WebhookURL == "" {
			return fmt.Errorf("DELIVERY_WEBHOOK_URL is required for the webhook sender")
		}
	default:
		return fmt.Errorf("unknown WORDHUB_SENDER %q", c.Delivery.Sender)
	}
	if c.Registry.PageSize <= 0 {
		return fmt.Errorf("WORDHUB_PAGE_SIZE must be positive")
	}
	if c.Registry.PushWorkers <= 0 {
		return fmt.Errorf("PUSH_WORKERS must be positive")
	}
	if c.Delivery.Rate <= 0 {
		return fmt.Errorf("DELIVERY_RATE must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return pstrings.DedupeAndTrim(strings.Split(v, ","))
}

func parseAdmins(v string) ([]domain.ActorID, error) {
	var admins []domain.ActorID
	for _, raw := range splitList(v) {
		id, err := domain.ParseActorID(raw)
		if err != nil {
			return nil, fmt.Errorf("parse WORDHUB_ADMINS: %w", err)
		}
		admins = append(admins, id)
	}
	return admins, nil
}
