// Package config binds the services' flags, environment and optional config
// file through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/orna-ly/orna.ly-sub000/pkg/contracts"
)

const EnvPrefix = "STOREFRONT"

var keys = []string{
	"config", "log-level", "port", "store", "database-url", "seed-file",
	"kafka-brokers", "kafka-topic", "outbox-interval", "outbox-batch",
	"redis-url", "rate-limit", "rate-window", "request-timeout", "payment-delay",
}

type Config struct {
	Port           string
	Store          string
	DatabaseURL    string
	SeedFile       string
	KafkaBrokers   string
	KafkaTopic     string
	OutboxInterval time.Duration
	OutboxBatch    int
	RedisURL       string
	RateLimit      int64
	RateWindow     time.Duration
	RequestTimeout time.Duration
	PaymentDelay   time.Duration
	LogLevel       string
}

// Register adds the persistent flags to cmd and binds them into v.
// Environment variables use the STOREFRONT_ prefix with dashes turned into
// underscores, e.g. STOREFRONT_DATABASE_URL.
func Register(cmd *cobra.Command, v *viper.Viper, defaultPort string) {
	fs := cmd.PersistentFlags()
	fs.String("config", "", "config file (yaml, json or toml)")
	fs.String("log-level", "info", "log level: debug|info|warn|error")
	fs.String("port", defaultPort, "HTTP listen port")
	fs.String("store", "memory", "order store backend: memory|postgres")
	fs.String("database-url", "", "postgres connection string")
	fs.String("seed-file", "", "JSON product catalog to load")
	fs.String("kafka-brokers", "", "comma separated kafka brokers; empty disables publishing")
	fs.String("kafka-topic", contracts.DefaultEventsTopic, "topic for storefront events")
	fs.Duration("outbox-interval", time.Second, "outbox relay poll interval")
	fs.Int("outbox-batch", 100, "outbox relay batch size")
	fs.String("redis-url", "", "redis url for shared rate limit counters; empty keeps them in memory")
	fs.Int64("rate-limit", 60, "requests allowed per client per window on write endpoints")
	fs.Duration("rate-window", time.Minute, "rate limit window")
	fs.Duration("request-timeout", 10*time.Second, "per-request timeout")
	fs.Duration("payment-delay", 500*time.Millisecond, "simulated gateway processing delay")

	for _, name := range keys {
		_ = v.BindPFlag(name, fs.Lookup(name))
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load reads the optional config file and returns the validated settings.
func Load(v *viper.Viper) (Config, error) {
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		Port:           v.GetString("port"),
		Store:          strings.ToLower(v.GetString("store")),
		DatabaseURL:    strings.TrimSpace(v.GetString("database-url")),
		SeedFile:       v.GetString("seed-file"),
		KafkaBrokers:   v.GetString("kafka-brokers"),
		KafkaTopic:     v.GetString("kafka-topic"),
		OutboxInterval: v.GetDuration("outbox-interval"),
		OutboxBatch:    v.GetInt("outbox-batch"),
		RedisURL:       strings.TrimSpace(v.GetString("redis-url")),
		RateLimit:      v.GetInt64("rate-limit"),
		RateWindow:     v.GetDuration("rate-window"),
		RequestTimeout: v.GetDuration("request-timeout"),
		PaymentDelay:   v.GetDuration("payment-delay"),
		LogLevel:       v.GetString("log-level"),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	switch c.Store {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Store == "postgres" && c.DatabaseURL == "" {
		return errors.New("database-url is required for the postgres store")
	}
	if c.RateLimit <= 0 || c.RateWindow <= 0 {
		return errors.New("rate-limit and rate-window must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request-timeout must be positive")
	}
	if c.OutboxBatch <= 0 || c.OutboxInterval <= 0 {
		return errors.New("outbox-batch and outbox-interval must be positive")
	}
	if c.PaymentDelay < 0 {
		return errors.New("payment-delay must not be negative")
	}
	return nil
}
