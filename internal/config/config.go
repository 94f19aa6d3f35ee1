package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "KHATA"

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Lock     LockConfig     `mapstructure:"lock"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Notifier NotifierConfig `mapstructure:"notifier"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig selects the ledger, inventory and sales backend: memory or redis.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LockConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type LedgerConfig struct {
	DefaultDueDays int `mapstructure:"default_due_days"`
	MaxRetries     int `mapstructure:"max_retries"`
}

// ScannerConfig drives the periodic alert scan. An empty schedule disables it.
type ScannerConfig struct {
	Schedule string   `mapstructure:"schedule"`
	Shops    []string `mapstructure:"shops"`
	Channel  string   `mapstructure:"channel"`
}

type NotifierConfig struct {
	Workers    int    `mapstructure:"workers"`
	SigningKey string `mapstructure:"signing_key"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "khata")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("lock.ttl", 5*time.Second)
	v.SetDefault("ledger.default_due_days", 30)
	v.SetDefault("ledger.max_retries", 3)
	v.SetDefault("scanner.schedule", "")
	v.SetDefault("scanner.shops", []string{})
	v.SetDefault("scanner.channel", "khata:alerts")
	v.SetDefault("notifier.workers", 2)
	v.SetDefault("notifier.signing_key", "")
}

// Load reads configPath (optional, YAML) and applies KHATA_* environment
// overrides on top. A local .env file is loaded into the environment first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env failed: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	switch c.Storage.Driver {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis storage driver")
		}
	default:
		return fmt.Errorf("storage.driver must be memory or redis, got %q", c.Storage.Driver)
	}
	if c.Ledger.MaxRetries < 1 {
		return fmt.Errorf("ledger.max_retries must be at least 1")
	}
	if c.Lock.TTL <= 0 {
		return fmt.Errorf("lock.ttl must be positive")
	}
	if c.Scanner.Schedule != "" && len(c.Scanner.Shops) == 0 {
		return fmt.Errorf("scanner.shops is required when scanner.schedule is set")
	}
	if c.Scanner.Schedule != "" && c.Notifier.Workers < 1 {
		return fmt.Errorf("notifier.workers must be at least 1 when the scanner is enabled")
	}
	return nil
}
