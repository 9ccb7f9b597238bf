// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level ipscope configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Cache     CacheConfig     `yaml:"cache"`
	Batch     BatchConfig     `yaml:"batch"`
	Reference ReferenceConfig `yaml:"reference"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AdminToken      string        `yaml:"admin_token"`    // guards cache purge; empty disables it
	RateLimitRPM    int           `yaml:"rate_limit_rpm"` // per client address; 0 = unlimited
}

// UpstreamConfig describes the remote lookup API.
type UpstreamConfig struct {
	Token      string        `yaml:"token"`
	Edition    string        `yaml:"edition"`  // standard, lite, core, plus
	BaseURL    string        `yaml:"base_url"` // overrides the edition default
	BatchURL   string        `yaml:"batch_url"`
	MapURL     string        `yaml:"map_url"`
	Timeout    time.Duration `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
	DNSCache   bool          `yaml:"dns_cache"`
	DNSRefresh time.Duration `yaml:"dns_refresh"`
	Breaker    BreakerConfig `yaml:"breaker"`
}

// BreakerConfig controls the circuit breaker in front of the remote API.
type BreakerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ErrorThreshold float64       `yaml:"error_threshold"`
	MinSamples     int           `yaml:"min_samples"`
	WindowSeconds  int           `yaml:"window_seconds"`
	OpenTimeout    time.Duration `yaml:"open_timeout"`
}

// CacheConfig holds lookup cache settings.
type CacheConfig struct {
	Policy        string        `yaml:"policy"` // fifo or tinylfu
	MaxSize       int           `yaml:"max_size"`
	TTL           time.Duration `yaml:"ttl"` // 0 = never expire
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// BatchConfig holds batch dispatch defaults.
type BatchConfig struct {
	ChunkSize   int           `yaml:"chunk_size"`
	Timeout     time.Duration `yaml:"timeout"` // per chunk
	Concurrency int           `yaml:"concurrency"`
	Filter      bool          `yaml:"filter"`
}

// ReferenceConfig names optional JSON reference tables for the formatter.
type ReferenceConfig struct {
	CountriesFile  string `yaml:"countries_file"`
	EUFile         string `yaml:"eu_file"`
	FlagsFile      string `yaml:"flags_file"`
	CurrenciesFile string `yaml:"currencies_file"`
	ContinentsFile string `yaml:"continents_file"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			Edition:    "standard",
			Timeout:    30 * time.Second,
			DNSCache:   true,
			DNSRefresh: 5 * time.Minute,
			Breaker: BreakerConfig{
				Enabled:        true,
				ErrorThreshold: 0.5,
				MinSamples:     20,
				WindowSeconds:  30,
				OpenTimeout:    15 * time.Second,
			},
		},
		Cache: CacheConfig{
			Policy:        "fifo",
			MaxSize:       4096,
			TTL:           24 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Batch: BatchConfig{
			ChunkSize:   1000,
			Timeout:     5 * time.Second,
			Concurrency: 8,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: true},
			Tracing: TracingConfig{Endpoint: "localhost:4317", SampleRate: 1.0},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads and parses a YAML config file, expanding environment variables.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.MaxSize <= 0 {
		errs = append(errs, errors.New("cache.max_size must be positive"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}
	if c.Batch.Timeout < 0 {
		errs = append(errs, errors.New("batch.timeout must not be negative"))
	}
	if c.Server.RateLimitRPM < 0 {
		errs = append(errs, errors.New("server.rate_limit_rpm must not be negative"))
	}
	if b := c.Upstream.Breaker; b.Enabled && (b.ErrorThreshold <= 0 || b.ErrorThreshold > 1) {
		errs = append(errs, errors.New("upstream.breaker.error_threshold must be within (0, 1]"))
	}
	if c.Telemetry.Tracing.SampleRate < 0 || c.Telemetry.Tracing.SampleRate > 1 {
		errs = append(errs, errors.New("telemetry.tracing.sample_rate must be within [0, 1]"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
