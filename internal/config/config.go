package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// InvokerConfig holds settings for the remote job invoker
type InvokerConfig struct {
	CaptureErrorBody   bool   `yaml:"capture_error_body"`
	MaxResponseBytes   int64  `yaml:"max_response_bytes"`
	UserAgent          string `yaml:"user_agent"`
	LogThrownException bool   `yaml:"log_thrown_exception"`
}

// HTTPConfig holds outbound HTTP client settings. A zero Timeout means no
// timeout.
type HTTPConfig struct {
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// CredentialsConfig configures the encrypted bearer-token store. The store
// is disabled when KeyFile is empty.
type CredentialsConfig struct {
	KeyFile string      `yaml:"key_file"`
	Redis   RedisConfig `yaml:"redis"`
}

// Enabled reports whether $SECRET: references can be resolved.
func (c CredentialsConfig) Enabled() bool {
	return c.KeyFile != ""
}

// DaemonConfig holds daemon-specific settings
type DaemonConfig struct {
	HTTPAddr       string        `yaml:"http_addr"`
	GRPCAddr       string        `yaml:"grpc_addr"`
	LogLevel       string        `yaml:"log_level"`
	RequestLogFile string        `yaml:"request_log_file"`
	TrackerTTL     time.Duration `yaml:"tracker_ttl"`
}

// LoggingConfig controls the operational log format
type LoggingConfig struct {
	Format string `yaml:"format"` // text, json
}

// TracingConfig controls OpenTelemetry tracing
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// MetricsConfig controls the Prometheus collectors
type MetricsConfig struct {
	Enabled   bool      `yaml:"enabled"`
	Namespace string    `yaml:"namespace"`
	Buckets   []float64 `yaml:"buckets"`
}

// ObservabilityConfig groups logging, tracing and metrics
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// Config is the central configuration struct embedding all component configs
type Config struct {
	Invoker       InvokerConfig       `yaml:"invoker"`
	HTTP          HTTPConfig          `yaml:"http"`
	Credentials   CredentialsConfig   `yaml:"credentials"`
	Daemon        DaemonConfig        `yaml:"daemon"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Invoker: InvokerConfig{
			UserAgent: "tower-workitem/1.0",
		},
		Credentials: CredentialsConfig{
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "tower:credentials",
			},
		},
		Daemon: DaemonConfig{
			HTTPAddr:   ":9090",
			LogLevel:   "info",
			TrackerTTL: 30 * time.Minute,
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{Format: "text"},
			Tracing: TracingConfig{
				Exporter:    "otlp-http",
				Endpoint:    "localhost:4318",
				ServiceName: "tower",
				SampleRate:  1.0,
			},
			Metrics: MetricsConfig{
				Enabled:   true,
				Namespace: "tower",
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TOWER_HTTP_ADDR"); v != "" {
		cfg.Daemon.HTTPAddr = v
	}
	if v := os.Getenv("TOWER_GRPC_ADDR"); v != "" {
		cfg.Daemon.GRPCAddr = v
	}
	if v := os.Getenv("TOWER_LOG_LEVEL"); v != "" {
		cfg.Daemon.LogLevel = v
	}
	if v := os.Getenv("TOWER_LOG_FORMAT"); v != "" {
		cfg.Observability.Logging.Format = v
	}
	if v := os.Getenv("TOWER_REQUEST_LOG_FILE"); v != "" {
		cfg.Daemon.RequestLogFile = v
	}
	if v := os.Getenv("TOWER_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Timeout = d
		}
	}
	if v := os.Getenv("TOWER_CAPTURE_ERROR_BODY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Invoker.CaptureErrorBody = b
		}
	}
	if v := os.Getenv("TOWER_LOG_THROWN_EXCEPTION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Invoker.LogThrownException = b
		}
	}
	if v := os.Getenv("TOWER_CREDENTIALS_KEY_FILE"); v != "" {
		cfg.Credentials.KeyFile = v
	}
	if v := os.Getenv("TOWER_REDIS_ADDR"); v != "" {
		cfg.Credentials.Redis.Addr = v
	}
	if v := os.Getenv("TOWER_REDIS_PASSWORD"); v != "" {
		cfg.Credentials.Redis.Password = v
	}
	if v := os.Getenv("TOWER_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Enabled = true
		cfg.Observability.Tracing.Endpoint = v
	}
	if v := os.Getenv("TOWER_METRICS_ENABLED"); v != "" {
		cfg.Observability.Metrics.Enabled = !strings.EqualFold(v, "false") && v != "0"
	}
}
