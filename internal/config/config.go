package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "APICLIENT"

// Storage drivers
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverNone   = "none"
)

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	Prefix string `mapstructure:"prefix"`
}

type EventsConfig struct {
	Topic string `mapstructure:"topic"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SandboxConfig only matters to cmd/sandbox
type SandboxConfig struct {
	Addr       string        `mapstructure:"addr"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

type Config struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RefreshPath string        `mapstructure:"refresh_path"`
	LoginPath   string        `mapstructure:"login_path"`
	LogoutPath  string        `mapstructure:"logout_path"`
	LoginRoute  string        `mapstructure:"login_route"`
	AuthPaths   []string      `mapstructure:"auth_paths"`
	RedisURL    string        `mapstructure:"redis_url"`

	Storage StorageConfig `mapstructure:"storage"`
	Events  EventsConfig  `mapstructure:"events"`
	Log     LogConfig     `mapstructure:"log"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "http://localhost:8000")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("refresh_path", "/auth/token/refresh/")
	v.SetDefault("login_path", "/auth/token/")
	v.SetDefault("logout_path", "/auth/logout/")
	v.SetDefault("login_route", "/login")
	v.SetDefault("auth_paths", []string{"/login", "/signup", "/forgot-password", "/reset-password"})
	v.SetDefault("redis_url", "")

	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.prefix", "apiclient:")

	v.SetDefault("events.topic", "apiclient.session_expired")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("sandbox.addr", ":8000")
	v.SetDefault("sandbox.user", "demo")
	v.SetDefault("sandbox.password", "demo")
	v.SetDefault("sandbox.access_ttl", 5*time.Minute)
	v.SetDefault("sandbox.refresh_ttl", 5*24*time.Hour)
}

// Load reads defaults, then the optional file at path, then APICLIENT_*
// environment variables. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config to struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem at once
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url: %q is not an absolute url", c.BaseURL))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout: must be positive"))
	}
	if c.RefreshPath == "" {
		errs = append(errs, errors.New("refresh_path: required"))
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverFile, DriverNone:
	case DriverRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis_url: required by the redis storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}

	return errors.Join(errs...)
}
