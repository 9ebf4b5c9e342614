// Package config loads daemon settings from a YAML file, HELIOS_ environment
// variables and built-in defaults, in that order of precedence (env wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values for the daemon.
type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	LastFired LastFiredConfig
	Ring      RingConfig

	// WakeTimer selects the wake-timer backend: "heap" or "timerfd".
	WakeTimer string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// OTELEndpoint is the OTLP gRPC collector address. Empty disables tracing.
	OTELEndpoint string
}

type HTTPConfig struct {
	Port int
	// RateLimit is requests per second per client IP. 0 disables limiting.
	RateLimit float64
	RateBurst int
}

type DatabaseConfig struct {
	// Driver is "sqlite", "postgres" or "memory".
	Driver string
	// DSN is a file path for sqlite and a connection URL for postgres.
	DSN string
}

type LastFiredConfig struct {
	Path string
}

type RingConfig struct {
	Budget        time.Duration
	WakeLockGrace time.Duration
	// WakeLock is "inhibit" (systemd-inhibit) or "none".
	WakeLock string
	// AudioCommand is the player argv run in a loop while ringing.
	AudioCommand []string
}

// DataDir returns ~/.local/share/helios, or ./.helios when the home
// directory is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".helios"
	}
	return filepath.Join(home, ".local", "share", "helios")
}

func setDefaults(v *viper.Viper) {
	dir := DataDir()

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.rate_limit", 20.0)
	v.SetDefault("http.rate_burst", 40)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", filepath.Join(dir, "helios.db"))

	v.SetDefault("last_fired.path", filepath.Join(dir, "last_fired.yaml"))

	v.SetDefault("wake_timer", "heap")

	v.SetDefault("ring.budget", 3*time.Minute)
	v.SetDefault("ring.wake_lock_grace", 10*time.Second)
	v.SetDefault("ring.wake_lock", "inhibit")
	v.SetDefault("ring.audio_command", []string{"paplay", "/usr/share/sounds/freedesktop/stereo/alarm-clock-elapsed.oga"})

	v.SetDefault("log.level", "info")
	v.SetDefault("otel.endpoint", "")
}

// Load reads configuration. When path is empty, helios.yaml is looked up in
// the working directory and in DataDir; a missing file there is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HELIOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("helios")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DataDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:      v.GetInt("http.port"),
			RateLimit: v.GetFloat64("http.rate_limit"),
			RateBurst: v.GetInt("http.rate_burst"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("database.driver")),
			DSN:    v.GetString("database.dsn"),
		},
		LastFired: LastFiredConfig{
			Path: v.GetString("last_fired.path"),
		},
		Ring: RingConfig{
			Budget:        v.GetDuration("ring.budget"),
			WakeLockGrace: v.GetDuration("ring.wake_lock_grace"),
			WakeLock:      strings.ToLower(v.GetString("ring.wake_lock")),
			AudioCommand:  v.GetStringSlice("ring.audio_command"),
		},
		WakeTimer:    strings.ToLower(v.GetString("wake_timer")),
		LogLevel:     v.GetString("log.level"),
		OTELEndpoint: v.GetString("otel.endpoint"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http.port %d", c.HTTP.Port)
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("invalid http.rate_limit %v", c.HTTP.RateLimit)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %s (env: HELIOS_DATABASE_DSN)", c.Database.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("invalid database.driver %q: must be sqlite, postgres or memory", c.Database.Driver)
	}
	switch c.WakeTimer {
	case "heap", "timerfd":
	default:
		return fmt.Errorf("invalid wake_timer %q: must be heap or timerfd", c.WakeTimer)
	}
	switch c.Ring.WakeLock {
	case "inhibit", "none":
	default:
		return fmt.Errorf("invalid ring.wake_lock %q: must be inhibit or none", c.Ring.WakeLock)
	}
	if c.Ring.Budget <= 0 {
		return fmt.Errorf("invalid ring.budget %v", c.Ring.Budget)
	}
	if c.Ring.WakeLockGrace <= 0 {
		return fmt.Errorf("invalid ring.wake_lock_grace %v", c.Ring.WakeLockGrace)
	}
	return nil
}
