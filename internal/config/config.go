package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when SCHEDADMIN_CONFIG is not set
const DefaultFile = "schedadmin.yaml"

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Backend  BackendConfig  `yaml:"backend"`
	Session  SessionConfig  `yaml:"session"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Address        string   `yaml:"address" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	SecureCookies  bool     `yaml:"secure_cookies"`
}

// BackendConfig points at the scheduling REST backend
type BackendConfig struct {
	URL     string        `yaml:"url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// SessionConfig holds cookie and resolution settings
type SessionConfig struct {
	Secret         string        `yaml:"secret" validate:"omitempty,min=32"` // empty = generated and stored in the database
	TTL            time.Duration `yaml:"ttl" validate:"gt=0"`
	CookieName     string        `yaml:"cookie_name" validate:"required"`
	ResolveTimeout time.Duration `yaml:"resolve_timeout" validate:"gt=0"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string `yaml:"url" validate:"required"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string `yaml:"address"` // host:port, empty disables background jobs
}

// JobsConfig holds the maintenance job schedules
type JobsConfig struct {
	PurgeSchedule      string        `yaml:"purge_schedule"`
	PruneSchedule      string        `yaml:"prune_schedule"`
	AccessLogRetention time.Duration `yaml:"access_log_retention" validate:"gt=0"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error fatal panic"`
	Format string `yaml:"format" validate:"oneof=json console"` // json, console
}

// JobsEnabled reports whether a Redis server is configured
func (c *Config) JobsEnabled() bool {
	return c.Redis.Address != ""
}

// Load loads configuration from .env files, the YAML config file and
// environment variables, in increasing order of precedence
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	cfg := defaults()

	path, explicit := os.LookupEnv("SCHEDADMIN_CONFIG")
	if !explicit {
		path = DefaultFile
	}
	if err := readFile(cfg, path, explicit); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Address: ":8080",
		},
		Backend: BackendConfig{
			Timeout: 15 * time.Second,
		},
		Session: SessionConfig{
			TTL:            12 * time.Hour,
			CookieName:     "schedadmin_session",
			ResolveTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			URL: "schedadmin.sqlite",
		},
		Jobs: JobsConfig{
			PurgeSchedule:      "@hourly",
			PruneSchedule:      "0 3 * * *",
			AccessLogRetention: 30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func readFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Address, "SERVER_ADDRESS")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	setString(&cfg.Backend.URL, "BACKEND_URL")
	setString(&cfg.Session.Secret, "SESSION_SECRET")
	setString(&cfg.Session.CookieName, "SESSION_COOKIE_NAME")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.Address, "REDIS_ADDRESS")
	setString(&cfg.Jobs.PurgeSchedule, "PURGE_SCHEDULE")
	setString(&cfg.Jobs.PruneSchedule, "PRUNE_SCHEDULE")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")

	if v := os.Getenv("SECURE_COOKIES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SECURE_COOKIES: %w", err)
		}
		cfg.Server.SecureCookies = b
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"BACKEND_TIMEOUT", &cfg.Backend.Timeout},
		{"SESSION_TTL", &cfg.Session.TTL},
		{"SESSION_RESOLVE_TIMEOUT", &cfg.Session.ResolveTimeout},
		{"ACCESS_LOG_RETENTION", &cfg.Jobs.AccessLogRetention},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks field constraints and the job schedules
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	for name, schedule := range map[string]string{
		"jobs.purge_schedule": cfg.Jobs.PurgeSchedule,
		"jobs.prune_schedule": cfg.Jobs.PruneSchedule,
	} {
		if schedule == "" {
			continue
		}
		if _, err := cron.ParseStandard(schedule); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
