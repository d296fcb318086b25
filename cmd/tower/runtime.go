package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/oriys/tower/internal/config"
	"github.com/oriys/tower/internal/executor"
	"github.com/oriys/tower/internal/logging"
	"github.com/oriys/tower/internal/metrics"
	"github.com/oriys/tower/internal/observability"
	"github.com/oriys/tower/internal/resulttype"
	"github.com/oriys/tower/internal/secrets"
)

// runtime wires the components shared by the invoke and serve commands.
type runtime struct {
	cfg      *config.Config
	types    *resulttype.Registry
	store    *secrets.Store        // nil when no key file is configured
	backend  *secrets.RedisBackend // nil when no key file is configured
	requests *logging.Logger
	exec     *executor.Executor
}

// newRuntime builds the runtime. requestConsole controls whether request
// log lines go to stdout.
func newRuntime(ctx context.Context, cfg *config.Config, requestConsole bool) (*runtime, error) {
	rt := &runtime{cfg: cfg, types: resulttype.Default()}

	if err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Observability.Tracing.Enabled,
		Exporter:    cfg.Observability.Tracing.Exporter,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		ServiceName: cfg.Observability.Tracing.ServiceName,
		Version:     version,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
	}); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	if cfg.Observability.Metrics.Enabled {
		metrics.InitPrometheus(cfg.Observability.Metrics.Namespace, cfg.Observability.Metrics.Buckets)
	}

	if cfg.Credentials.Enabled() {
		store, backend, err := openCredentialStore(cfg)
		if err != nil {
			return nil, err
		}
		rt.store, rt.backend = store, backend
	}

	rt.requests = logging.Default()
	if !requestConsole {
		rt.requests.SetConsole(nil)
	}
	if cfg.Daemon.RequestLogFile != "" {
		if err := rt.requests.SetOutput(cfg.Daemon.RequestLogFile); err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("open request log: %w", err)
		}
	}

	rt.exec = executor.New(
		executor.WithHTTPClient(newHTTPClient(cfg.HTTP)),
		executor.WithResultTypes(rt.types),
		executor.WithTokenResolver(secrets.NewResolver(rt.store)),
		executor.WithLogger(rt.requests),
		executor.WithErrorBodyCapture(cfg.Invoker.CaptureErrorBody),
		executor.WithMaxResponseBytes(cfg.Invoker.MaxResponseBytes),
		executor.WithUserAgent(cfg.Invoker.UserAgent),
	)
	return rt, nil
}

func openCredentialStore(cfg *config.Config) (*secrets.Store, *secrets.RedisBackend, error) {
	c, err := secrets.NewCipherFromFile(cfg.Credentials.KeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load credential key: %w", err)
	}
	backend := secrets.NewRedisBackend(secrets.RedisConfig{
		Addr:     cfg.Credentials.Redis.Addr,
		Password: cfg.Credentials.Redis.Password,
		DB:       cfg.Credentials.Redis.DB,
		Key:      cfg.Credentials.Redis.Key,
	})
	return secrets.NewStore(backend, c), backend, nil
}

func newHTTPClient(cfg config.HTTPConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{Timeout: cfg.Timeout, Transport: transport}
}

// Close releases the credential backend, the request log and the tracer.
func (rt *runtime) Close(ctx context.Context) {
	if rt.backend != nil {
		rt.backend.Close()
	}
	if rt.requests != nil {
		rt.requests.Close()
	}
	if err := observability.Shutdown(ctx); err != nil {
		logging.Op().Warn("tracer shutdown failed", "error", err)
	}
}
