package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override, e.g. MCQ_STORE_DRIVER.
const EnvPrefix = "MCQ_"

type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Store     StoreConfig     `yaml:"store" envPrefix:"STORE_"`
	Scheduler SchedulerConfig `yaml:"scheduler" envPrefix:"SCHEDULER_"`
	Delivery  DeliveryConfig  `yaml:"delivery" envPrefix:"DELIVERY_"`
	Telegram  TelegramConfig  `yaml:"telegram" envPrefix:"TELEGRAM_"`
	Events    EventsConfig    `yaml:"events" envPrefix:"EVENTS_"`
}

type ServerConfig struct {
	Port            string `yaml:"port" env:"PORT"`
	ReadTimeout     string `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    string `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout string `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	MaxUploadMB     int    `yaml:"max_upload_mb" env:"MAX_UPLOAD_MB" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" env:"FORMAT" validate:"omitempty,oneof=console json"`
	File   string `yaml:"file" env:"FILE"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" env:"DRIVER" validate:"oneof=file memory redis postgres mongo s3"`
	// Cache keeps the last committed document in process memory.
	Cache bool `yaml:"cache" env:"CACHE"`
	// RedisCache fronts a postgres, mongo or s3 store with a Redis read-through copy.
	RedisCache bool           `yaml:"redis_cache" env:"REDIS_CACHE"`
	Path       string         `yaml:"path" env:"PATH"`
	Redis      RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	Postgres   PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`
	Mongo      MongoConfig    `yaml:"mongo" envPrefix:"MONGO_"`
	S3         S3Config       `yaml:"s3" envPrefix:"S3_"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB" validate:"gte=0"`
	Key      string `yaml:"key" env:"KEY"`
	TTL      string `yaml:"ttl" env:"TTL"`
}

type PostgresConfig struct {
	URL      string `yaml:"url" env:"URL"`
	Document string `yaml:"document" env:"DOCUMENT"`
	Migrate  bool   `yaml:"migrate" env:"MIGRATE"`
}

type MongoConfig struct {
	URI        string `yaml:"uri" env:"URI"`
	Database   string `yaml:"database" env:"DATABASE"`
	Collection string `yaml:"collection" env:"COLLECTION"`
	Document   string `yaml:"document" env:"DOCUMENT"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	Object    string `yaml:"object" env:"OBJECT"`
	Region    string `yaml:"region" env:"REGION"`
	Secure    bool   `yaml:"secure" env:"SECURE"`
}

type SchedulerConfig struct {
	Interval    string `yaml:"interval" env:"INTERVAL"`
	MaxAttempts int    `yaml:"max_attempts" env:"MAX_ATTEMPTS" validate:"gte=0"`
	Destination string `yaml:"destination" env:"DESTINATION"`
}

type DeliveryConfig struct {
	Driver         string `yaml:"driver" env:"DRIVER" validate:"oneof=telegram feed log"`
	AnnounceBefore string `yaml:"announce_before" env:"ANNOUNCE_BEFORE"`
}

type TelegramConfig struct {
	Token  string `yaml:"token" env:"TOKEN"`
	Listen bool   `yaml:"listen" env:"LISTEN"`
	Debug  bool   `yaml:"debug" env:"DEBUG"`
}

type EventsConfig struct {
	Driver  string   `yaml:"driver" env:"DRIVER" validate:"oneof=none gochannel kafka"`
	Brokers []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"TOPIC"`
}

// Default returns the configuration used when neither file nor environment say otherwise.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Server.MaxUploadMB = 10
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	cfg.Store.Driver = "file"
	cfg.Store.Path = "data/mcqs.json"
	cfg.Scheduler.Interval = "30m"
	cfg.Delivery.Driver = "log"
	cfg.Events.Driver = "none"
	return cfg
}

// Load reads YAML config from path, then .env, then MCQ_* environment variables, and validates
// the result. A missing YAML file is not an error; the service can run from the environment alone.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field values and the settings each selected driver needs.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var problems []string
	switch c.Store.Driver {
	case "file":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the file driver")
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			problems = append(problems, "store.redis.addr is required for the redis driver")
		}
	case "postgres":
		if c.Store.Postgres.URL == "" {
			problems = append(problems, "store.postgres.url is required for the postgres driver")
		}
	case "mongo":
		if c.Store.Mongo.URI == "" || c.Store.Mongo.Database == "" {
			problems = append(problems, "store.mongo.uri and store.mongo.database are required for the mongo driver")
		}
	case "s3":
		if c.Store.S3.Endpoint == "" || c.Store.S3.Bucket == "" {
			problems = append(problems, "store.s3.endpoint and store.s3.bucket are required for the s3 driver")
		}
	}
	if c.Store.RedisCache {
		switch c.Store.Driver {
		case "postgres", "mongo", "s3":
		default:
			problems = append(problems, "store.redis_cache only applies to postgres, mongo or s3")
		}
		if c.Store.Redis.Addr == "" {
			problems = append(problems, "store.redis.addr is required for store.redis_cache")
		}
	}
	if c.Delivery.Driver == "telegram" {
		if c.Telegram.Token == "" {
			problems = append(problems, "telegram.token is required for the telegram delivery driver")
		}
		if c.Scheduler.Destination == "" {
			problems = append(problems, "scheduler.destination is required for the telegram delivery driver")
		}
	}
	if c.Telegram.Listen && c.Telegram.Token == "" {
		problems = append(problems, "telegram.token is required when telegram.listen is on")
	}
	if c.Events.Driver == "kafka" && len(c.Events.Brokers) == 0 {
		problems = append(problems, "events.brokers is required for the kafka driver")
	}
	if raw := c.Scheduler.Interval; raw != "" {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			problems = append(problems, fmt.Sprintf("scheduler.interval %q is not a positive duration", raw))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
