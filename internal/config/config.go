// Package config loads service settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage and event backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
	BackendSQS      = "sqs"
	BackendAMQP     = "amqp"
	BackendNone     = "none"
)

// Config holds all service settings.
type Config struct {
	Server  ServerConfig     `yaml:"server"`
	Storage StorageConfig    `yaml:"storage"`
	Events  EventsConfig     `yaml:"events"`
	Metrics MetricsConfig    `yaml:"metrics"`
	Client  ClientConfig     `yaml:"client"`
	Logging LoggingConfig    `yaml:"logging"`
	Catalog []CatalogProduct `yaml:"catalog"`
}

// ServerConfig configures the reference basket API.
type ServerConfig struct {
	Port               string `yaml:"port"`
	PreserveReferences bool   `yaml:"preserve_references"` // emit $id/$values documents
}

// StorageConfig selects the basket repository.
type StorageConfig struct {
	Backend          string `yaml:"backend"` // dynamodb, memory
	BasketsTable     string `yaml:"baskets_table"`
	IdempotencyTable string `yaml:"idempotency_table"`
	IdempotencyTTL   string `yaml:"idempotency_ttl"`
}

// EventsConfig selects where basket events go.
type EventsConfig struct {
	Backend         string `yaml:"backend"` // sqs, amqp, none
	QueueURL        string `yaml:"queue_url"`
	RabbitMQURL     string `yaml:"rabbitmq_url"`
	RabbitMQQueue   string `yaml:"rabbitmq_queue"`
	ChannelPoolSize int    `yaml:"channel_pool_size"`
}

// MetricsConfig configures the metrics worker.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// ClientConfig configures the basket client and CLI.
type ClientConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Storage: StorageConfig{
			Backend:          BackendDynamoDB,
			BasketsTable:     "baskets",
			IdempotencyTable: "basket-idempotency",
			IdempotencyTTL:   "24h",
		},
		Events: EventsConfig{
			Backend:         BackendNone,
			RabbitMQQueue:   "basket-events",
			ChannelPoolSize: 4,
		},
		Metrics: MetricsConfig{
			Namespace: "Marketplace/Baskets",
		},
		Client: ClientConfig{
			BaseURL: "http://localhost:8080",
			Timeout: "10s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// FromEnv loads the file named by CONFIG_FILE, if any, then applies
// environment overrides.
func FromEnv() (*Config, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

// Load loads configuration from a YAML file. An empty path or a missing
// file yields the defaults. Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"PORT":              &c.Server.Port,
		"LOG_LEVEL":         &c.Logging.Level,
		"STORE_BACKEND":     &c.Storage.Backend,
		"BASKETS_TABLE":     &c.Storage.BasketsTable,
		"IDEMPOTENCY_TABLE": &c.Storage.IdempotencyTable,
		"IDEMPOTENCY_TTL":   &c.Storage.IdempotencyTTL,
		"EVENTS_BACKEND":    &c.Events.Backend,
		"EVENTS_QUEUE_URL":  &c.Events.QueueURL,
		"RABBITMQ_URL":      &c.Events.RabbitMQURL,
		"RABBITMQ_QUEUE":    &c.Events.RabbitMQQueue,
		"METRICS_NAMESPACE": &c.Metrics.Namespace,
		"BASKET_API_URL":    &c.Client.BaseURL,
		"CLIENT_TIMEOUT":    &c.Client.Timeout,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("CHANNEL_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHANNEL_POOL_SIZE: %w", err)
		}
		c.Events.ChannelPoolSize = n
	}
	if v := os.Getenv("PRESERVE_REFERENCES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PRESERVE_REFERENCES: %w", err)
		}
		c.Server.PreserveReferences = b
	}

	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	c.Events.Backend = strings.ToLower(c.Events.Backend)
	return nil
}

// Validate checks backend names, durations and the catalog.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendDynamoDB, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Events.Backend {
	case BackendSQS:
		if c.Events.QueueURL == "" {
			return fmt.Errorf("events backend sqs requires EVENTS_QUEUE_URL")
		}
	case BackendAMQP:
		if c.Events.RabbitMQURL == "" {
			return fmt.Errorf("events backend amqp requires RABBITMQ_URL")
		}
	case BackendNone:
	default:
		return fmt.Errorf("unknown events backend %q", c.Events.Backend)
	}
	for name, d := range map[string]string{"idempotency_ttl": c.Storage.IdempotencyTTL, "client timeout": c.Client.Timeout} {
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, d, err)
		}
	}
	_, err := c.ProductCatalog()
	return err
}

// GetIdempotencyTTL returns the idempotency TTL as a duration.
func (c *Config) GetIdempotencyTTL() time.Duration {
	d, err := time.ParseDuration(c.Storage.IdempotencyTTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// GetClientTimeout returns the client timeout as a duration.
func (c *Config) GetClientTimeout() time.Duration {
	d, err := time.ParseDuration(c.Client.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
