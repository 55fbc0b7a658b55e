// Package config loads booking-service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"

	libconfig "github.com/cajuhub/roombook/libs/config"
	"github.com/cajuhub/roombook/libs/kafkax"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"booking-service"`
	Port        string `envconfig:"PORT" default:"8083"`
	GRPCPort    string `envconfig:"GRPC_PORT" default:"9093"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	StoreDriver    string        `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL    string        `envconfig:"DATABASE_URL"`
	DBMaxConns     int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MigrateOnStart bool          `envconfig:"MIGRATE_ON_START" default:"true"`
	StoreTimeout   time.Duration `envconfig:"STORE_TIMEOUT" default:"3s"`
	SeedSpaces     string        `envconfig:"SEED_SPACES"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SpaceCacheTTL time.Duration `envconfig:"SPACE_CACHE_TTL" default:"30s"`

	KafkaBrokers     string `envconfig:"KAFKA_BROKERS"`
	KafkaGroupID     string `envconfig:"KAFKA_GROUP_ID" default:"booking-service"`
	SpaceEventsTopic string `envconfig:"SPACE_EVENTS_TOPIC" default:"spaces.space.updated.v1"`

	OutboxPollEvery     time.Duration `envconfig:"OUTBOX_POLL_EVERY" default:"2s"`
	OutboxBatchSize     int           `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`
	OutboxRetention     time.Duration `envconfig:"OUTBOX_RETENTION" default:"168h"`
	OutboxPruneSchedule string        `envconfig:"OUTBOX_PRUNE_SCHEDULE" default:"@hourly"`

	CalendarStep  time.Duration `envconfig:"CALENDAR_STEP" default:"1h"`
	SlotStep      time.Duration `envconfig:"SLOT_STEP" default:"15m"`
	AgendaLimit   int           `envconfig:"AGENDA_LIMIT" default:"5"`
	AgendaHorizon time.Duration `envconfig:"AGENDA_HORIZON" default:"2160h"`
	TimeZone      string        `envconfig:"TIME_ZONE" default:"UTC"`
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	if err := libconfig.LoadDotEnv(); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if err := libconfig.ValidatePort(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT: %w", err))
	}
	if err := libconfig.ValidatePort(c.GRPCPort); err != nil {
		errs = append(errs, fmt.Errorf("GRPC_PORT: %w", err))
	}
	switch c.StoreDriver {
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", c.StoreDriver))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}
	if c.CalendarStep <= 0 || c.SlotStep <= 0 {
		errs = append(errs, errors.New("CALENDAR_STEP and SLOT_STEP must be positive"))
	}
	if _, err := cron.ParseStandard(c.OutboxPruneSchedule); err != nil {
		errs = append(errs, fmt.Errorf("OUTBOX_PRUNE_SCHEDULE: %w", err))
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("TIME_ZONE: %w", err))
	}
	return errors.Join(errs...)
}

func (c Config) Brokers() []string { return kafkax.SplitBrokers(c.KafkaBrokers) }

// SpaceEventsConsumed reports whether cached spaces are invalidated by space
// events. Without it a cached entry only changes when SPACE_CACHE_TTL expires.
func (c Config) SpaceEventsConsumed() bool {
	return c.RedisAddr != "" && c.SpaceEventsTopic != "" && len(c.Brokers()) > 0
}

// Location is only valid after Validate succeeded.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
