package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mcules/seedplan/internal/snapshot"
	"github.com/mcules/seedplan/internal/store"
	"github.com/mcules/seedplan/internal/torrent"
)

func newStoreCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect and fill the content-key store",
	}
	cmd.AddCommand(newStoreListCmd(root), newStoreSimilarCmd(root), newStoreImportCmd(root))
	return cmd
}

func newStoreListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every recorded torrent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := store.Open(root.cfg.Store.Type, root.cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			recs, err := st.ListTorrents(commandContext(cmd))
			if err != nil {
				return err
			}
			return writeRecords(cmd, recs)
		},
	}
}

func newStoreSimilarCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "similar <hash>",
		Short: "List torrents sharing files with a recorded torrent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(root.cfg.Store.Type, root.cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := commandContext(cmd)
			hash := torrent.NormalizeHash(args[0])
			rec, ok, err := st.GetTorrent(ctx, hash)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("torrent %s is not recorded", hash)
			}
			recs, err := st.ListByContentKey(ctx, rec.ContentKey)
			if err != nil {
				return err
			}
			return writeRecords(cmd, recs)
		},
	}
}

func newStoreImportCmd(root *rootOptions) *cobra.Command {
	var input, dir string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Record the remote torrents of a snapshot from their .torrent files",
		Long: `Records content keys of the remote torrents listed in a snapshot that
the store does not know yet. The .torrent file of each is read from
<torrent-dir>/<site>-<seed_id>.torrent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := snapshot.Load(input)
			if err != nil {
				return err
			}
			st, err := store.Open(root.cfg.Store.Type, root.cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			_, remote := snap.Ranked()
			list := make([]torrent.Remote, 0, len(remote))
			for _, r := range remote {
				list = append(list, r.Torrent)
			}
			n, err := store.SaveFetched(commandContext(cmd), st, list, dirFetcher(dir))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "recorded %d torrents\n", n)
			return err
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "scored snapshot (YAML or JSON)")
	cmd.Flags().StringVar(&dir, "torrent-dir", ".", "directory holding the .torrent files")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func dirFetcher(dir string) store.Fetcher {
	return func(_ context.Context, t torrent.Remote) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, t.Ref()+".torrent"))
	}
}

func writeRecords(cmd *cobra.Command, recs []store.Record) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HASH\tSITE\tSEED\tNAME")
	for _, r := range recs {
		seed := "-"
		if r.SeedID != 0 {
			seed = fmt.Sprint(r.SeedID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Hash, r.Site, seed, r.Name)
	}
	return tw.Flush()
}
