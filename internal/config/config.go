// Package config provides runtime configuration values for the service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds configuration knobs for the HTTP server, holds and seed data.
type Config struct {
	Environment     string        `env:"GO_ENV" env-default:"development"`
	HTTPAddr        string        `env:"HTTP_ADDR" env-default:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	LogFormat       string        `env:"LOG_FORMAT" env-default:"json"`

	HoldDuration             time.Duration `env:"HOLD_DURATION" env-default:"10m"`
	MaxTicketsPerReservation int           `env:"MAX_TICKETS_PER_RESERVATION" env-default:"5"`
	PublishTimeout           time.Duration `env:"PUBLISH_TIMEOUT" env-default:"5s"`

	Seed      Seed
	Publisher Publisher
}

// Seed controls the demo events created at startup.
type Seed struct {
	Enabled      bool          `env:"SEED_EVENTS" env-default:"true"`
	SeatCount    int           `env:"SEED_SEAT_COUNT" env-default:"20"`
	ReleaseDelay time.Duration `env:"SEED_RELEASE_DELAY" env-default:"1m"`
}

// Publisher selects where seat lifecycle events go.
type Publisher struct {
	Sinks []string `env:"PUBLISHER_SINKS" env-default:"log" env-separator:","`
	Redis Redis
	Kafka Kafka
}

type Redis struct {
	Addr          string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password      string        `env:"REDIS_PASSWORD" env-default:""`
	DB            int           `env:"REDIS_DB" env-default:"0"`
	ChannelPrefix string        `env:"REDIS_CHANNEL_PREFIX" env-default:"seat_events"`
	StatusTTL     time.Duration `env:"REDIS_STATUS_TTL" env-default:"24h"`
}

type Kafka struct {
	Brokers []string `env:"KAFKA_BROKERS" env-default:"localhost:9092" env-separator:","`
	Topic   string   `env:"KAFKA_TOPIC" env-default:"seat-events"`
}

// Load reads an optional env file (ENV_FILE, default .env; skipped in
// production), then collects configuration from the environment.
func Load() (Config, error) {
	if os.Getenv("GO_ENV") != "production" {
		path := os.Getenv("ENV_FILE")
		if path == "" {
			path = ".env"
		}
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment variables: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.HoldDuration <= 0 {
		return errors.New("HOLD_DURATION must be positive")
	}
	if c.PublishTimeout <= 0 {
		return errors.New("PUBLISH_TIMEOUT must be positive")
	}
	if c.MaxTicketsPerReservation < 1 {
		return errors.New("MAX_TICKETS_PER_RESERVATION must be at least 1")
	}
	if c.Seed.Enabled && c.Seed.SeatCount < 1 {
		return errors.New("SEED_SEAT_COUNT must be at least 1")
	}
	return nil
}
