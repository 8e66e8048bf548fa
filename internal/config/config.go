// Package config loads hookboard settings from config.yaml, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/soochol/hookboard/internal/crypto"
)

// Config holds the top-level application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Security    SecurityConfig    `yaml:"security"`
	Trigger     TriggerConfig     `yaml:"trigger"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	History     HistoryConfig     `yaml:"history"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds database connection settings. An empty URL keeps
// everything in memory.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// SecurityConfig holds the key used to seal header values at rest.
type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"` // 64 hex chars; empty stores plaintext
}

// TriggerConfig tunes the webhook trigger path.
type TriggerConfig struct {
	TestTimeout      time.Duration `yaml:"test_timeout"`
	SimpleTimeout    time.Duration `yaml:"simple_timeout"`
	ComplexTimeout   time.Duration `yaml:"complex_timeout"`
	ComplexThreshold time.Duration `yaml:"complex_threshold"` // observed average above this is "complex"
	ComplexKeywords  []string      `yaml:"complex_keywords"`
	StatusResetDelay time.Duration `yaml:"status_reset_delay"`
	MaxResponseBytes int           `yaml:"max_response_bytes"`
}

// ConcurrencyConfig bounds in-flight trigger calls.
type ConcurrencyConfig struct {
	GlobalMax   int `yaml:"global_max"`   // max concurrent triggers system-wide (default: 10)
	PerWorkflow int `yaml:"per_workflow"` // max concurrent triggers per workflow (default: 3)
}

// HistoryConfig bounds the in-memory execution history.
type HistoryConfig struct {
	MaxExecutions int `yaml:"max_executions"`
}

// MonitorConfig schedules connectivity probes. An empty schedule disables them.
type MonitorConfig struct {
	Schedule    string `yaml:"schedule"`
	Parallelism int    `yaml:"parallelism"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string `yaml:"format"` // "text" | "json"
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Trigger: TriggerConfig{
			TestTimeout:      10 * time.Second,
			SimpleTimeout:    30 * time.Second,
			ComplexTimeout:   15 * time.Second,
			ComplexThreshold: 30 * time.Second,
			ComplexKeywords:  []string{"chain", "flow", "complex", "multi", "monitoring", "influencer", "long", "batch"},
			StatusResetDelay: 3 * time.Second,
			MaxResponseBytes: 1 << 20,
		},
		Concurrency: ConcurrencyConfig{GlobalMax: 10, PerWorkflow: 3},
		History:     HistoryConfig{MaxExecutions: 1000},
		Monitor:     MonitorConfig{Parallelism: 4},
		Log:         LogConfig{Format: "text"},
	}
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	return defaults()
}

// Load reads a YAML configuration file at path and applies environment
// overrides on top.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads ".env" (if present) into the environment, then tries
// "config.yaml" from the current directory. If the file does not exist,
// defaults plus environment overrides are returned.
// Any other error (e.g. permission denied, malformed YAML) is returned.
func LoadDefault() (*Config, error) {
	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}
	cfg, err := Load("config.yaml")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = defaults()
			if err := cfg.applyEnv(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads variables from a dotenv file without overriding
// variables already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HOOKBOARD_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("HOOKBOARD_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HOOKBOARD_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("HOOKBOARD_DATABASE_URL"); v != "" {
		c.Database.URL = v
	} else if v := os.Getenv("DATABASE_URL"); v != "" && c.Database.URL == "" {
		c.Database.URL = v
	}
	if v := os.Getenv("HOOKBOARD_ENCRYPTION_KEY"); v != "" {
		c.Security.EncryptionKey = v
	}
	if v := os.Getenv("HOOKBOARD_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	t := c.Trigger
	for name, d := range map[string]time.Duration{
		"trigger.test_timeout":    t.TestTimeout,
		"trigger.simple_timeout":  t.SimpleTimeout,
		"trigger.complex_timeout": t.ComplexTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if t.StatusResetDelay < 0 {
		errs = append(errs, fmt.Errorf("trigger.status_reset_delay must not be negative"))
	}
	if c.Concurrency.GlobalMax <= 0 || c.Concurrency.PerWorkflow <= 0 {
		errs = append(errs, fmt.Errorf("concurrency limits must be positive"))
	}
	if c.Monitor.Parallelism <= 0 {
		errs = append(errs, fmt.Errorf("monitor.parallelism must be positive"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if _, err := crypto.ParseKey(c.Security.EncryptionKey); err != nil {
		errs = append(errs, fmt.Errorf("security.encryption_key: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if t.ComplexTimeout >= t.SimpleTimeout {
		slog.Warn("complex timeout is not shorter than simple timeout",
			"complex_timeout", t.ComplexTimeout, "simple_timeout", t.SimpleTimeout)
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
