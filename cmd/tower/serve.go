package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oriys/tower/internal/api"
	"github.com/oriys/tower/internal/grpc"
	"github.com/oriys/tower/internal/jobtracker"
	"github.com/oriys/tower/internal/logging"
	"github.com/oriys/tower/internal/metrics"
	"github.com/oriys/tower/internal/workitem"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		httpAddr string
		grpcAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the work item bridge",
		Long:  "Serve work items over HTTP so an external orchestrator can execute and abort them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http") {
				cfg.Daemon.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("grpc") {
				cfg.Daemon.GRPCAddr = grpcAddr
			}

			ctx := context.Background()
			rt, err := newRuntime(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			tracker := jobtracker.New(cfg.Daemon.TrackerTTL)
			defer tracker.Close()

			handler := &api.Handler{
				WorkItems:   workitem.NewTowerHandler(rt.exec, cfg.Invoker.LogThrownException),
				Tracker:     tracker,
				ResultTypes: rt.types.Names,
			}
			if rt.backend != nil {
				handler.Credentials = rt.backend
			}

			if reg := metrics.PrometheusRegistry(); reg != nil {
				reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
					Namespace: cfg.Observability.Metrics.Namespace,
					Name:      "tracked_work_items",
					Help:      "Work item records held by the bridge",
				}, func() float64 { return float64(tracker.Len()) }))
			}

			httpServer, errCh := api.StartHTTPServer(cfg.Daemon.HTTPAddr, handler)

			var grpcServer *grpc.Server
			if cfg.Daemon.GRPCAddr != "" {
				grpcServer = grpc.NewServer()
				if err := grpcServer.Start(cfg.Daemon.GRPCAddr); err != nil {
					httpServer.Close()
					return err
				}
				defer grpcServer.Stop()
				if rt.backend != nil {
					go watchCredentialStore(ctx, rt.backend, grpcServer)
				}
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				logging.Op().Info("shutdown signal received", "signal", sig.String())
				shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown bridge: %w", err)
				}
				return nil
			case err := <-errCh:
				return fmt.Errorf("bridge server error: %w", err)
			}
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", ":9090", "HTTP listen address")
	cmd.Flags().StringVar(&grpcAddr, "grpc", "", "gRPC health listen address (empty = disabled)")

	return cmd
}

// watchCredentialStore keeps the gRPC health status in line with the
// credential store's reachability.
func watchCredentialStore(ctx context.Context, p api.Pinger, s *grpc.Server) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := p.Ping(pingCtx)
			cancel()
			if err != nil {
				logging.Op().Warn("credential store unreachable", "error", err)
			}
			s.SetServing(err == nil)
		}
	}
}
