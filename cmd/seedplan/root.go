package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcules/seedplan/internal/activity"
	"github.com/mcules/seedplan/internal/config"
	"github.com/mcules/seedplan/internal/control"
	"github.com/mcules/seedplan/internal/logging"
	"github.com/mcules/seedplan/internal/metrics"
	"github.com/mcules/seedplan/internal/planner"
	"github.com/mcules/seedplan/internal/space"
	"github.com/mcules/seedplan/internal/store"
)

type rootOptions struct {
	configPath string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "seedplan",
		Short:         "Plan which torrents to delete and which to download",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = opts.logLevel
			}
			if err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/seedplan/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(newPlanCmd(opts), newStatCmd(opts), newStoreCmd(opts))
	return cmd
}

// app is what a command needs to plan. Close releases the store and the
// agent connection.
type app struct {
	cfg      *config.Config
	store    store.Store
	planner  *planner.Planner
	registry *prometheus.Registry

	agent *control.Client
}

func (o *rootOptions) open() (*app, error) {
	cfg := o.cfg
	total, perRun, err := cfg.Planning.Limits()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.Type, cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, store: st, registry: prometheus.NewRegistry()}

	var oracle space.Oracle = space.Disk{}
	if cfg.Space.Source == "agent" {
		a.agent, err = control.Dial(cfg.Space.AgentAddr, cfg.Space.Timeout)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		a.agent.Latency = metrics.NewLatencyTracker(0)
		a.registry.MustRegister(a.agent.Latency)
		oracle = a.agent
	}

	a.planner = &planner.Planner{
		Config: planner.Config{
			DownloadDir:     cfg.Planning.DownloadDir,
			MaxTotalSize:    total,
			MaxDownloadSize: perRun,
			PrimarySite:     cfg.Planning.PrimarySite,
		},
		Resolver: store.NewResolver(st),
		Oracle:   oracle,
		Activity: activity.New(0),
		Metrics:  metrics.NewPlanning(a.registry),
	}
	return a, nil
}

func (a *app) writeMetrics() {
	if a.cfg.Metrics.Textfile == "" {
		return
	}
	if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile, a.registry); err != nil {
		log.Warn().Err(err).Str("path", a.cfg.Metrics.Textfile).Msg("metrics not written")
	}
}

func (a *app) Close() error {
	if a.agent != nil {
		if lat, ok := a.agent.Latency.Get(a.cfg.Space.AgentAddr); ok {
			log.Debug().Str("agent", a.cfg.Space.AgentAddr).Float64("rtt_ms", lat.EWMAms).Msg("disk agent latency")
		}
	}
	var errs []error
	if a.agent != nil {
		errs = append(errs, a.agent.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
