package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HTTP.Timeout != 0 {
		t.Errorf("default timeout = %v, want none", cfg.HTTP.Timeout)
	}
	if cfg.Invoker.CaptureErrorBody {
		t.Error("error body capture must be off by default")
	}
	if cfg.Credentials.Enabled() {
		t.Error("credential store must be off without a key file")
	}
	if cfg.Daemon.LogLevel != "info" {
		t.Errorf("log level = %q", cfg.Daemon.LogLevel)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tower.yaml")
	data := `
invoker:
  capture_error_body: true
  log_thrown_exception: true
http:
  timeout: 45s
credentials:
  key_file: /etc/tower/key
  redis:
    addr: redis:6379
daemon:
  http_addr: ":8088"
observability:
  tracing:
    enabled: true
    sample_rate: 0.25
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if !cfg.Invoker.CaptureErrorBody || !cfg.Invoker.LogThrownException {
		t.Errorf("invoker = %+v", cfg.Invoker)
	}
	if cfg.HTTP.Timeout != 45*time.Second {
		t.Errorf("timeout = %v", cfg.HTTP.Timeout)
	}
	if !cfg.Credentials.Enabled() || cfg.Credentials.Redis.Addr != "redis:6379" {
		t.Errorf("credentials = %+v", cfg.Credentials)
	}
	// unset keys keep defaults
	if cfg.Credentials.Redis.Key != "tower:credentials" {
		t.Errorf("redis key = %q", cfg.Credentials.Redis.Key)
	}
	if cfg.Daemon.HTTPAddr != ":8088" || cfg.Daemon.LogLevel != "info" {
		t.Errorf("daemon = %+v", cfg.Daemon)
	}
	if !cfg.Observability.Tracing.Enabled || cfg.Observability.Tracing.SampleRate != 0.25 {
		t.Errorf("tracing = %+v", cfg.Observability.Tracing)
	}
	if cfg.Observability.Tracing.ServiceName != "tower" {
		t.Errorf("service name = %q", cfg.Observability.Tracing.ServiceName)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("http: [unclosed"), 0644)
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TOWER_HTTP_ADDR", ":7000")
	t.Setenv("TOWER_LOG_LEVEL", "debug")
	t.Setenv("TOWER_HTTP_TIMEOUT", "10s")
	t.Setenv("TOWER_CAPTURE_ERROR_BODY", "true")
	t.Setenv("TOWER_CREDENTIALS_KEY_FILE", "/tmp/key")
	t.Setenv("TOWER_METRICS_ENABLED", "false")
	t.Setenv("TOWER_TRACING_ENDPOINT", "collector:4318")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Daemon.HTTPAddr != ":7000" || cfg.Daemon.LogLevel != "debug" {
		t.Errorf("daemon = %+v", cfg.Daemon)
	}
	if cfg.HTTP.Timeout != 10*time.Second {
		t.Errorf("timeout = %v", cfg.HTTP.Timeout)
	}
	if !cfg.Invoker.CaptureErrorBody {
		t.Error("capture error body not applied")
	}
	if cfg.Credentials.KeyFile != "/tmp/key" {
		t.Errorf("key file = %q", cfg.Credentials.KeyFile)
	}
	if cfg.Observability.Metrics.Enabled {
		t.Error("metrics should be disabled")
	}
	if !cfg.Observability.Tracing.Enabled || cfg.Observability.Tracing.Endpoint != "collector:4318" {
		t.Errorf("tracing = %+v", cfg.Observability.Tracing)
	}
}

func TestLoadFromEnv_IgnoresMalformed(t *testing.T) {
	t.Setenv("TOWER_HTTP_TIMEOUT", "soon")
	t.Setenv("TOWER_CAPTURE_ERROR_BODY", "maybe")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)
	if cfg.HTTP.Timeout != 0 || cfg.Invoker.CaptureErrorBody {
		t.Errorf("malformed values applied: %+v %+v", cfg.HTTP, cfg.Invoker)
	}
}
