package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcules/seedplan/internal/planner"
	"github.com/mcules/seedplan/internal/snapshot"
)

type planOptions struct {
	input    string
	simulate bool
	target   string
	output   string
}

func newPlanCmd(root *rootOptions) *cobra.Command {
	opts := &planOptions{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the torrents to delete and to download",
		Long: `Reads a scored snapshot of local and remote torrents and prints which
local torrents to delete and which remote torrents to download so the
download directory stays within its budget. Nothing is deleted or
downloaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "scored snapshot (YAML or JSON)")
	cmd.Flags().BoolVar(&opts.simulate, "simulate", false, "the remote files are already on disk; admit without charging space")
	cmd.Flags().StringVar(&opts.target, "target", "", "plan room for a single remote torrent, as site:seed_id")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format: text or yaml")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runPlan(cmd *cobra.Command, root *rootOptions, opts *planOptions) error {
	if opts.output != "text" && opts.output != "yaml" {
		return fmt.Errorf("unknown output format %q", opts.output)
	}
	snap, err := snapshot.Load(opts.input)
	if err != nil {
		return err
	}

	a, err := root.open()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := commandContext(cmd)
	local, remote := snap.Ranked()

	var res planner.Result
	if opts.target != "" {
		site, id, err := parseTarget(opts.target)
		if err != nil {
			return err
		}
		target, ok := snap.FindRemote(site, id)
		if !ok {
			return fmt.Errorf("%s is not listed in %s", opts.target, opts.input)
		}
		res, err = a.planner.RunOne(ctx, local, target, opts.simulate)
		if err != nil {
			return err
		}
	} else {
		res, err = a.planner.Run(ctx, local, remote, opts.simulate)
		if err != nil {
			return err
		}
	}
	a.writeMetrics()

	r := newReport(res, a.planner.Activity.List())
	if opts.output == "yaml" {
		return r.writeYAML(cmd.OutOrStdout())
	}
	return r.writeText(cmd.OutOrStdout())
}

func parseTarget(s string) (string, int64, error) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 {
		return "", 0, fmt.Errorf("target %q: want site:seed_id", s)
	}
	id, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("target %q: invalid seed id", s)
	}
	return s[:i], id, nil
}
