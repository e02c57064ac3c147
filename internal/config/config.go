// Package config loads the orchestrator's static configuration: a
// config.yaml file under its home directory, overridden by BOTCREW_-
// prefixed environment variables, with secrets.yaml hot-reloaded via
// Watcher. YAML defaults, env overrides, and a stable fingerprint for
// diagnostics cover the orchestrator's database, bus, gateway, and
// worker-runtime settings.
package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// APIKeyEntry is one accepted gateway API key, keyed by its raw value.
type APIKeyEntry struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
}

// AuthConfig controls the gateway's API-key authentication middleware.
type AuthConfig struct {
	Enabled bool          `yaml:"enabled"`
	Keys    []APIKeyEntry `yaml:"keys"`
}

// CORSConfig controls the gateway's cross-origin policy for the browser
// WebSocket and REST endpoints.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// RateLimitConfig controls the gateway's per-client request-rate limiter.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	BurstSize         int  `yaml:"burst_size"`
}

// TelemetryConfig controls the OpenTelemetry provider; Enabled=false keeps
// it a true no-op.
type TelemetryConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Exporter       string  `yaml:"exporter"`
	Endpoint       string  `yaml:"endpoint"`
	ServiceName    string  `yaml:"service_name"`
	SampleRate     float64 `yaml:"sample_rate"`
	MetricsEnabled bool    `yaml:"metrics_enabled"`
}

// RuntimeConfig selects and configures the Worker-Runtime Adapter.
type RuntimeConfig struct {
	// Kind is "docker" or "fake" (the latter for tests/dev without a
	// container engine).
	Kind  string `yaml:"kind"`
	Image string `yaml:"image"`
	// Network is the Docker network agent containers join, so the
	// gateway and delivery-queue workers can reach them by container name.
	Network string `yaml:"network"`
}

type Config struct {
	HomeDir string `yaml:"-"`

	BindAddr string `yaml:"bind_addr"`
	LogLevel string `yaml:"log_level"`

	// DatabaseURL is the Postgres DSN the Durable Store connects with.
	DatabaseURL string `yaml:"database_url"`

	// BusURL is the Redis DSN the Channel Bus publishes/subscribes on.
	BusURL string `yaml:"bus_url"`

	// DeliveryQueueWorkers is the number of goroutines claiming and
	// running delivery_jobs rows concurrently.
	DeliveryQueueWorkers int `yaml:"delivery_queue_workers"`

	// ReconcileSchedule is a robfig/cron/v3 spec, default "@every 60s".
	ReconcileSchedule string `yaml:"reconcile_schedule"`

	Runtime   RuntimeConfig   `yaml:"runtime"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	Auth      AuthConfig      `yaml:"auth"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// RequestMaxBytes bounds REST request bodies; 0 uses the gateway's
	// built-in default.
	RequestMaxBytes int64 `yaml:"request_max_bytes"`

	NeedsGenesis bool `yaml:"-"`
}

// Fingerprint returns a stable hash of the active config, useful for
// confirming two processes are running with identical settings.
func (c Config) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "bind=%s|log=%s|db=%t|bus=%t|workers=%d|schedule=%s|runtime=%s",
		c.BindAddr, c.LogLevel, c.DatabaseURL != "", c.BusURL != "",
		c.DeliveryQueueWorkers, c.ReconcileSchedule, c.Runtime.Kind)
	return fmt.Sprintf("cfg-%x", h.Sum64())
}

func defaultConfig() Config {
	return Config{
		BindAddr:             "0.0.0.0:8080",
		LogLevel:             "info",
		DatabaseURL:          "postgres://localhost:5432/botcrew?sslmode=disable",
		BusURL:               "redis://localhost:6379/0",
		DeliveryQueueWorkers: 8,
		ReconcileSchedule:    "@every 60s",
		Runtime: RuntimeConfig{
			Kind:    "docker",
			Image:   "botcrew/agent-worker:latest",
			Network: "botcrew-agents",
		},
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Exporter: "none",
		},
		CORS: CORSConfig{
			Enabled:        true,
			AllowedOrigins: nil, // empty = same-origin only
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
			MaxAge:         3600,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 600,
			BurstSize:         40,
		},
		RequestMaxBytes: 1 << 20,
	}
}

// HomeDir returns the orchestrator's config directory: BOTCREW_HOME if
// set, else ~/.botcrew.
func HomeDir() string {
	if override := os.Getenv("BOTCREW_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".botcrew")
}

// ConfigPath returns the path to config.yaml within homeDir.
func ConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

// SecretsPath returns the path to secrets.yaml within homeDir — a
// file-based secrets seed, hot-reloaded by Watcher and applied on top of
// the Durable Store's secrets table at startup, never overriding a
// key already present there.
func SecretsPath(homeDir string) string {
	return filepath.Join(homeDir, "secrets.yaml")
}

func Load() (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = HomeDir()

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create botcrew home: %w", err)
	}

	configPath := ConfigPath(cfg.HomeDir)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.NeedsGenesis = true
		} else {
			return cfg, fmt.Errorf("read config.yaml: %w", err)
		}
	} else if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.BindAddr == "" {
		cfg.BindAddr = "0.0.0.0:8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DeliveryQueueWorkers <= 0 {
		cfg.DeliveryQueueWorkers = 8
	}
	if strings.TrimSpace(cfg.ReconcileSchedule) == "" {
		cfg.ReconcileSchedule = "@every 60s"
	}
	if cfg.Runtime.Kind == "" {
		cfg.Runtime.Kind = "docker"
	}
	if cfg.RequestMaxBytes <= 0 {
		cfg.RequestMaxBytes = 1 << 20
	}
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("BOTCREW_BIND_ADDR"); raw != "" {
		cfg.BindAddr = raw
	}
	if raw := os.Getenv("BOTCREW_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("BOTCREW_DATABASE_URL"); raw != "" {
		cfg.DatabaseURL = raw
	}
	if raw := os.Getenv("BOTCREW_BUS_URL"); raw != "" {
		cfg.BusURL = raw
	}
	if raw := os.Getenv("BOTCREW_DELIVERY_QUEUE_WORKERS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.DeliveryQueueWorkers = v
		}
	}
	if raw := os.Getenv("BOTCREW_RECONCILE_SCHEDULE"); raw != "" {
		cfg.ReconcileSchedule = raw
	}
	if raw := os.Getenv("BOTCREW_RUNTIME_KIND"); raw != "" {
		cfg.Runtime.Kind = raw
	}
	if raw := os.Getenv("BOTCREW_RUNTIME_IMAGE"); raw != "" {
		cfg.Runtime.Image = raw
	}
	if raw := os.Getenv("BOTCREW_RUNTIME_NETWORK"); raw != "" {
		cfg.Runtime.Network = raw
	}
	if raw := os.Getenv("BOTCREW_AUTH_ENABLED"); raw != "" {
		cfg.Auth.Enabled = raw == "true" || raw == "1"
	}
	if raw := os.Getenv("BOTCREW_API_KEY"); raw != "" {
		cfg.Auth.Enabled = true
		cfg.Auth.Keys = append(cfg.Auth.Keys, APIKeyEntry{Key: raw, Label: "env"})
	}
	if raw := os.Getenv("BOTCREW_ALLOW_ORIGINS"); raw != "" {
		cfg.CORS.AllowedOrigins = strings.Split(raw, ",")
	}
}

// LoadSecretsFile reads homeDir/secrets.yaml into a flat key->value map.
// A missing file yields an empty map, not an error — the flat secrets
// seed is optional; the Durable Store's secrets table is authoritative.
func LoadSecretsFile(homeDir string) (map[string]string, error) {
	out := make(map[string]string)
	data, err := os.ReadFile(SecretsPath(homeDir))
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read secrets.yaml: %w", err)
	}
	if len(data) == 0 {
		return out, nil
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse secrets.yaml: %w", err)
	}
	return out, nil
}
