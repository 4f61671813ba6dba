package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "CAFE"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Storage StorageConfig `mapstructure:"storage"`
	Session SessionConfig `mapstructure:"session"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port               string        `mapstructure:"port"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`
}

type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// StorageConfig selects where carts and sessions live: redis, sqlite or memory.
// Carts fall back to memory when the driver is sqlite.
type StorageConfig struct {
	Driver        string        `mapstructure:"driver"`
	Redis         RedisConfig   `mapstructure:"redis"`
	SQLitePath    string        `mapstructure:"sqlite_path"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
	CartTTL       time.Duration `mapstructure:"cart_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SessionConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	Secure     bool          `mapstructure:"secure"`
	TTL        time.Duration `mapstructure:"ttl"`
	ExpirySkew time.Duration `mapstructure:"expiry_skew"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_request_body_size", 1<<20) // 1MB

	v.SetDefault("backend.base_url", "http://localhost:3000/api")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.breaker.max_requests", 1)
	v.SetDefault("backend.breaker.interval", time.Minute)
	v.SetDefault("backend.breaker.timeout", 30*time.Second)
	v.SetDefault("backend.breaker.failure_threshold", 5)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.sqlite_path", "storefront.db")
	v.SetDefault("storage.purge_interval", time.Hour)
	v.SetDefault("storage.cart_ttl", 24*time.Hour)

	v.SetDefault("session.cookie_name", "cafe_vid")
	v.SetDefault("session.secure", false)
	v.SetDefault("session.ttl", 7*24*time.Hour)
	v.SetDefault("session.expiry_skew", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads defaults, then the optional YAML file at path, then CAFE_*
// environment variables (CAFE_BACKEND_BASE_URL overrides backend.base_url).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	}
	switch c.Storage.Driver {
	case "redis", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q must be redis, sqlite or memory", c.Storage.Driver))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, errors.New("session.cookie_name is required"))
	}
	return errors.Join(errs...)
}
