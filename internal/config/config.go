package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr    = ":8080"
	defaultPublicBaseURL = "https://widget.jsonwidget.org"
	defaultBuildNumber   = "1"
	defaultLocale        = "en"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr    string        `yaml:"listen_addr"`
	GRPCAddr      string        `yaml:"grpc_addr"`
	PublicBaseURL string        `yaml:"public_base_url"`
	BuildNumber   string        `yaml:"build_number"`
	DefaultLocale string        `yaml:"default_locale"`
	Locales       []string      `yaml:"locales"`
	PostgresDSN   string        `yaml:"postgres_dsn"`
	Redis         RedisConfig   `yaml:"redis"`
	CORSOrigins   []string      `yaml:"cors_origins"`
	RateLimit     RateLimit     `yaml:"rate_limit"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes"`
	LogLevel      string        `yaml:"log_level"`
	WidgetCache   CacheConfig   `yaml:"widget_cache"`
	ShutdownAfter time.Duration `yaml:"shutdown_timeout"`
	Seed          Seed          `yaml:"seed"`
}

// RedisConfig selects the Redis-backed session store when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimit configures the per-IP token bucket applied to /auth.
type RateLimit struct {
	Burst     int `yaml:"burst"`
	PerSecond int `yaml:"per_second"`
}

// CacheConfig bounds the widget lookup cache.
type CacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// Seed preloads the in-memory tenant store for local development.
type Seed struct {
	Clients []SeedClient `yaml:"clients"`
	Widgets []SeedWidget `yaml:"widgets"`
	Users   []SeedUser   `yaml:"users"`
}

type SeedClient struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type SeedWidget struct {
	ID       string `yaml:"id"`
	ClientID string `yaml:"client_id"`
	Name     string `yaml:"name"`
	Secret   string `yaml:"secret"`
	Locale   string `yaml:"locale"`
}

type SeedUser struct {
	ID       string `yaml:"id"`
	WidgetID string `yaml:"widget_id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:    defaultListenAddr,
		PublicBaseURL: defaultPublicBaseURL,
		BuildNumber:   defaultBuildNumber,
		DefaultLocale: defaultLocale,
		Locales:       []string{"en", "es"},
		RateLimit:     RateLimit{Burst: 20, PerSecond: 10},
		MaxBodyBytes:  1 << 20,
		LogLevel:      "info",
		WidgetCache:   CacheConfig{Size: 1024, TTL: 30 * time.Second},
		ShutdownAfter: 10 * time.Second,
	}
}

// Load resolves configuration: defaults, then the YAML file at path (if any),
// then WIDGET_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.ListenAddr, "WIDGET_LISTEN_ADDR")
	setString(&cfg.GRPCAddr, "WIDGET_GRPC_ADDR")
	setString(&cfg.PublicBaseURL, "WIDGET_PUBLIC_BASE_URL")
	setString(&cfg.BuildNumber, "WIDGET_BUILD_NUMBER")
	setString(&cfg.DefaultLocale, "WIDGET_DEFAULT_LOCALE")
	setString(&cfg.PostgresDSN, "WIDGET_PG_DSN")
	setString(&cfg.Redis.Addr, "WIDGET_REDIS_ADDR")
	setString(&cfg.Redis.Password, "WIDGET_REDIS_PASSWORD")
	setString(&cfg.LogLevel, "WIDGET_LOG_LEVEL")
	if v := os.Getenv("WIDGET_LOCALES"); v != "" {
		cfg.Locales = splitList(v)
	}
	if v := os.Getenv("WIDGET_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"WIDGET_REDIS_DB", &cfg.Redis.DB},
		{"WIDGET_RATE_BURST", &cfg.RateLimit.Burst},
		{"WIDGET_RATE_PER_SECOND", &cfg.RateLimit.PerSecond},
		{"WIDGET_CACHE_SIZE", &cfg.WidgetCache.Size},
	}
	for _, item := range ints {
		v := strings.TrimSpace(os.Getenv(item.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", item.key, err)
		}
		*item.dst = n
	}
	if v := strings.TrimSpace(os.Getenv("WIDGET_MAX_BODY_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("WIDGET_MAX_BODY_BYTES must be an integer: %w", err)
		}
		cfg.MaxBodyBytes = n
	}
	if v := strings.TrimSpace(os.Getenv("WIDGET_CACHE_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WIDGET_CACHE_TTL must be a duration: %w", err)
		}
		cfg.WidgetCache.TTL = d
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("listen_addr is required")
	}
	u, err := url.Parse(c.PublicBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("public_base_url must be an absolute http(s) URL, got %q", c.PublicBaseURL)
	}
	if len(c.Locales) == 0 {
		return errors.New("at least one locale is required")
	}
	if !slices.Contains(c.Locales, c.DefaultLocale) {
		return fmt.Errorf("default_locale %q is not listed in locales %v", c.DefaultLocale, c.Locales)
	}
	if c.RateLimit.Burst <= 0 || c.RateLimit.PerSecond <= 0 {
		return errors.New("rate_limit burst and per_second must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("max_body_bytes must be positive")
	}
	if c.WidgetCache.Size <= 0 || c.WidgetCache.TTL <= 0 {
		return errors.New("widget_cache size and ttl must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
