package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcules/seedplan/internal/snapshot"
)

func newStatCmd(root *rootOptions) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "stat",
		Short: "Show used, free and allowed space of the download directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := snapshot.Load(input)
			if err != nil {
				return err
			}
			a, err := root.open()
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.planner.Usage(commandContext(cmd), snap.Held())
			if err != nil {
				return err
			}
			a.writeMetrics()

			limit := "none"
			if u.Limit > 0 {
				limit = humanBytes(u.Limit)
			}
			p := &printer{w: cmd.OutOrStdout()}
			p.printf("Used:     %s (%d torrents)\n", humanBytes(u.Used), len(snap.Local))
			p.printf("Free:     %s\n", humanBytes(u.Free))
			p.printf("Limit:    %s\n", limit)
			p.printf("Capacity: %s\n", humanBytes(u.Capacity))
			if p.err != nil {
				return fmt.Errorf("write stat: %w", p.err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "scored snapshot (YAML or JSON)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
