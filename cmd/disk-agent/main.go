// Command disk-agent reports free space of download directories to
// planners running on other hosts.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/mcules/seedplan/internal/config"
	"github.com/mcules/seedplan/internal/control"
	"github.com/mcules/seedplan/internal/logging"
	"github.com/mcules/seedplan/internal/metrics"
	"github.com/mcules/seedplan/internal/space"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("disk-agent failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, listen string
	cmd := &cobra.Command{
		Use:           "disk-agent",
		Short:         "Serve free space of download directories over gRPC",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Agent.Listen = listen
			}
			if err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg.Agent)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/seedplan/config.yaml)")
	cmd.Flags().StringVar(&listen, "listen", "", "override agent.listen")
	return cmd
}

func serve(ctx context.Context, cfg config.AgentConfig) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	gs := grpc.NewServer()
	control.RegisterDiskAgentServer(gs, control.NewServer(space.Disk{}, cfg.AllowedDirs, metrics.NewAgent(reg)))

	var metricsSrv *http.Server
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.MetricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info().Str("addr", cfg.MetricsListen).Msg("metrics listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics serve")
			}
		}()
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", lis.Addr().String()).Strs("allowed_dirs", cfg.AllowedDirs).Msg("gRPC listening")
		errc <- gs.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		gs.GracefulStop()
		if metricsSrv != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(sctx)
		}
		return nil
	case err := <-errc:
		return fmt.Errorf("grpc serve: %w", err)
	}
}
