// Package config loads server settings from an optional YAML file and
// CHEFMENTOR_* environment variables. Environment wins.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr     string `yaml:"listen_addr"`
	LogLevel       string `yaml:"log_level"`
	AllowAnonymous bool   `yaml:"allow_anonymous"`
	RateLimit      int    `yaml:"rate_limit_per_minute"`

	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Guidance GuidanceConfig `yaml:"guidance"`
	Prefetch PrefetchConfig `yaml:"prefetch"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the shared guidance memo. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type GuidanceConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	MaxTokens         int           `yaml:"max_tokens"`
	Temperature       float64       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	BreakerThreshold  int           `yaml:"breaker_threshold"`
	BreakerReset      time.Duration `yaml:"breaker_reset"`
}

type PrefetchConfig struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

func Default() Config {
	return Config{
		ListenAddr:     ":8080",
		LogLevel:       "info",
		AllowAnonymous: true,
		RateLimit:      60,
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "chefmentor.db",
		},
		Redis: RedisConfig{
			TTL: 24 * time.Hour,
		},
		Guidance: GuidanceConfig{
			BaseURL:          "https://api.groq.com/openai/v1",
			Model:            "llama-3.3-70b-versatile",
			MaxTokens:        50,
			Temperature:      0.7,
			Timeout:          15 * time.Second,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Prefetch: PrefetchConfig{
			Workers:     4,
			QueueSize:   256,
			TaskTimeout: 30 * time.Second,
		},
	}
}

// Load applies defaults, then the YAML file at path (if path is not empty),
// then the environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	mergeEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeEnv(cfg *Config) {
	cfg.ListenAddr = ParseString("CHEFMENTOR_LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogLevel = ParseString("CHEFMENTOR_LOG_LEVEL", cfg.LogLevel)
	cfg.AllowAnonymous = ParseBool("CHEFMENTOR_ALLOW_ANONYMOUS", cfg.AllowAnonymous)
	cfg.RateLimit = ParseInt("CHEFMENTOR_RATE_LIMIT_PER_MINUTE", cfg.RateLimit)

	cfg.Database.Driver = ParseString("CHEFMENTOR_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = ParseString("CHEFMENTOR_DB_DSN", cfg.Database.DSN)

	cfg.Redis.Addr = ParseString("CHEFMENTOR_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = ParseString("CHEFMENTOR_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = ParseInt("CHEFMENTOR_REDIS_DB", cfg.Redis.DB)
	cfg.Redis.TTL = ParseDuration("CHEFMENTOR_REDIS_TTL", cfg.Redis.TTL)

	g := &cfg.Guidance
	g.APIKey = ParseString("CHEFMENTOR_GUIDANCE_API_KEY", g.APIKey)
	g.BaseURL = ParseString("CHEFMENTOR_GUIDANCE_BASE_URL", g.BaseURL)
	g.Model = ParseString("CHEFMENTOR_GUIDANCE_MODEL", g.Model)
	g.MaxTokens = ParseInt("CHEFMENTOR_GUIDANCE_MAX_TOKENS", g.MaxTokens)
	g.Temperature = ParseFloat("CHEFMENTOR_GUIDANCE_TEMPERATURE", g.Temperature)
	g.Timeout = ParseDuration("CHEFMENTOR_GUIDANCE_TIMEOUT", g.Timeout)
	g.RequestsPerSecond = ParseFloat("CHEFMENTOR_GUIDANCE_RPS", g.RequestsPerSecond)
	g.BreakerThreshold = ParseInt("CHEFMENTOR_BREAKER_THRESHOLD", g.BreakerThreshold)
	g.BreakerReset = ParseDuration("CHEFMENTOR_BREAKER_RESET", g.BreakerReset)

	cfg.Prefetch.Workers = ParseInt("CHEFMENTOR_PREFETCH_WORKERS", cfg.Prefetch.Workers)
	cfg.Prefetch.QueueSize = ParseInt("CHEFMENTOR_PREFETCH_QUEUE_SIZE", cfg.Prefetch.QueueSize)
	cfg.Prefetch.TaskTimeout = ParseDuration("CHEFMENTOR_PREFETCH_TASK_TIMEOUT", cfg.Prefetch.TaskTimeout)
}

func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn: must not be empty"))
	}
	if c.Prefetch.Workers <= 0 {
		errs = append(errs, fmt.Errorf("prefetch.workers: must be positive, got %d", c.Prefetch.Workers))
	}
	if c.Prefetch.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("prefetch.queue_size: must be positive, got %d", c.Prefetch.QueueSize))
	}
	if c.Prefetch.TaskTimeout <= 0 {
		errs = append(errs, errors.New("prefetch.task_timeout: must be positive"))
	}
	if c.Guidance.BreakerThreshold <= 0 {
		errs = append(errs, fmt.Errorf("guidance.breaker_threshold: must be positive, got %d", c.Guidance.BreakerThreshold))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate_limit_per_minute: must not be negative"))
	}

	return errors.Join(errs...)
}
