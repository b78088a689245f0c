package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Runtime   RuntimeConfig
	Fetch     FetchConfig
	Cache     CacheConfig
	Device    DeviceConfig
	Store     StoreConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// RuntimeConfig bounds the user-script runtime.
type RuntimeConfig struct {
	EvalTimeout    time.Duration `envconfig:"USERAPI_EVAL_TIMEOUT" default:"10s"`
	ActionTimeout  time.Duration `envconfig:"USERAPI_ACTION_TIMEOUT" default:"5s"`
	QueueSize      int           `envconfig:"USERAPI_QUEUE_SIZE" default:"64"`
	EventQueueSize int           `envconfig:"USERAPI_EVENT_QUEUE_SIZE" default:"1024"`
	MaxCallStack   int           `envconfig:"USERAPI_MAX_CALL_STACK" default:"1024"`
	Console        bool          `envconfig:"USERAPI_CONSOLE" default:"true"`
}

// FetchConfig holds settings for HTTP requests issued on behalf of plugins.
type FetchConfig struct {
	Timeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"15s"`
	Retries   int           `envconfig:"FETCH_RETRIES" default:"2"`
	RPS       float64       `envconfig:"FETCH_RPS" default:"20"`
	UserAgent string        `envconfig:"FETCH_USER_AGENT" default:"scriptbridge/1.0"`
}

// CacheConfig lists the directories accounted and cleared by the cache service.
// Entries may be doublestar glob patterns.
type CacheConfig struct {
	Dirs []string `envconfig:"CACHE_DIRS" default:"/tmp/scriptbridge/cache"`
}

// DeviceConfig supplies values the host cannot discover on its own.
type DeviceConfig struct {
	Name                 string   `envconfig:"DEVICE_NAME"`
	WindowWidth          int      `envconfig:"WINDOW_WIDTH" default:"390"`
	WindowHeight         int      `envconfig:"WINDOW_HEIGHT" default:"844"`
	NotificationsEnabled bool     `envconfig:"NOTIFICATIONS_ENABLED" default:"true"`
	Locales              []string `envconfig:"DEVICE_LOCALES"` // empty means derive from LANG
}

// StoreConfig holds the installed script store settings.
type StoreConfig struct {
	Dir   string `envconfig:"SCRIPT_DIR" default:"/tmp/scriptbridge/scripts"`
	Watch bool   `envconfig:"SCRIPT_WATCH" default:"false"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Runtime: RuntimeConfig{
			EvalTimeout:    10 * time.Second,
			ActionTimeout:  5 * time.Second,
			QueueSize:      64,
			EventQueueSize: 1024,
			MaxCallStack:   1024,
			Console:        true,
		},
		Fetch: FetchConfig{
			Timeout:   15 * time.Second,
			Retries:   2,
			RPS:       20,
			UserAgent: "scriptbridge/1.0",
		},
		Cache: CacheConfig{
			Dirs: []string{"/tmp/scriptbridge/cache"},
		},
		Device: DeviceConfig{
			WindowWidth:          390,
			WindowHeight:         844,
			NotificationsEnabled: true,
		},
		Store: StoreConfig{
			Dir:   "/tmp/scriptbridge/scripts",
			Watch: false,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
