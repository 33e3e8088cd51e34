package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/velox"
	"github.com/hupe1980/velox/blobstore/s3"
	"github.com/hupe1980/velox/snapshot"
)

type publishOptions struct {
	index string
	name  string
}

func newPublishCmd(c *cli) *cobra.Command {
	opts := &publishOptions{}

	cmd := &cobra.Command{
		Use:   "publish <vectors.fvecs> <target>",
		Short: "Upload a vectors file and index as a snapshot",
		Long: `Upload a vectors file and optional index as a new snapshot and make it
current.

Targets are a local directory (or file:///dir), s3://bucket/prefix or
minio://bucket/prefix. The files are verified by loading them before
anything is uploaded.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.publish(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVar(&opts.index, "index", "", "Index file to include")
	cmd.Flags().StringVar(&opts.name, "name", "", "Snapshot name (default snap-<unixnano>)")
	cmd.Flags().String("metric", "", "Metric recorded in the manifest (default from config)")
	cmd.Flags().String("compression", "", "Blob compression: none, lz4 or zstd (default from config)")
	addTransferFlags(cmd)

	return cmd
}

func addTransferFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("concurrency", 0, "Maximum concurrent transfers (default from config)")
	cmd.Flags().Int64("rate-limit", 0, "Transfer bandwidth in bytes per second, 0 for unlimited")
}

func (c *cli) publish(cmd *cobra.Command, vectors, rawTarget string, opts *publishOptions) error {
	ctx := cmd.Context()

	t, err := parseTarget(rawTarget)
	if err != nil {
		return err
	}
	compression, err := c.cfg.compression()
	if err != nil {
		return err
	}
	metric, err := velox.ParseMetric(c.cfg.Build.Metric)
	if err != nil {
		return err
	}

	db := c.openDB()
	defer db.Close()

	if err := db.LoadVectors(vectors); err != nil {
		return err
	}
	clusters := 0
	if opts.index != "" {
		if err := db.LoadIndex(opts.index); err != nil {
			return err
		}
		if err := db.VerifyIndex(); err != nil {
			return err
		}
		clusters = db.Stats().Index.NumClusters
	}

	store, err := openStore(ctx, t, c.cfg)
	if err != nil {
		return err
	}

	m, err := snapshot.Publish(ctx, store, snapshot.Files{
		Vectors: vectors,
		Index:   opts.index,
	}, snapshot.Options{
		Name:        opts.name,
		Compression: compression,
		Controller:  c.cfg.controller(),
		Dim:         db.Dim(),
		Count:       db.Len(),
		Clusters:    clusters,
		Metric:      metric.Name(),
	})
	if err != nil {
		return err
	}

	c.logger.Info("snapshot published", "target", t.String(), "snapshot", m.Name, "files", len(m.Files))
	fmt.Fprintf(cmd.OutOrStdout(), "published %s to %s\n", m.Name, t)
	return nil
}

type fetchOptions struct {
	name   string
	verify bool
}

func newFetchCmd(c *cli) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch <target>",
		Short: "Download a snapshot into a local directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.fetch(cmd, args[0], opts)
		},
	}

	cmd.Flags().String("dir", "", "Directory to download into (default from config)")
	cmd.Flags().StringVar(&opts.name, "name", "", "Snapshot to fetch (default CURRENT)")
	cmd.Flags().BoolVar(&opts.verify, "verify", true, "Load the downloaded files and verify the index")
	addTransferFlags(cmd)

	return cmd
}

func (c *cli) fetch(cmd *cobra.Command, rawTarget string, opts *fetchOptions) error {
	ctx := cmd.Context()

	t, err := parseTarget(rawTarget)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, t, c.cfg)
	if err != nil {
		return err
	}

	fetched, err := snapshot.Fetch(ctx, store, c.cfg.Snapshot.Dir, snapshot.FetchOptions{
		Name:       opts.name,
		Controller: c.cfg.controller(),
	})
	if err != nil {
		return err
	}

	if opts.verify {
		if err := c.verifyFetched(fetched); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "fetched %s\n", fetched.Manifest.Name)
	fmt.Fprintf(out, "vectors: %s\n", fetched.VectorsPath)
	if fetched.IndexPath != "" {
		fmt.Fprintf(out, "index:   %s\n", fetched.IndexPath)
	}
	return nil
}

func (c *cli) verifyFetched(f *snapshot.Fetched) error {
	db := c.openDB()
	defer db.Close()

	if err := db.LoadVectors(f.VectorsPath); err != nil {
		return err
	}
	if f.IndexPath != "" {
		if err := db.LoadIndex(f.IndexPath); err != nil {
			return err
		}
	}
	if err := db.VerifyIndex(); err != nil {
		return err
	}
	if db.Len() != f.Manifest.Count || db.Dim() != f.Manifest.Dim {
		return fmt.Errorf("%w: snapshot %s holds %d vectors of dim %d, manifest says %d of dim %d",
			velox.ErrCorruptFormat, f.Manifest.Name, db.Len(), db.Dim(), f.Manifest.Count, f.Manifest.Dim)
	}
	return nil
}

func newSnapshotsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List, delete and trace published snapshots",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list <target>",
		Short: "List snapshots, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.listSnapshots(cmd, args[0], asJSON)
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "Print manifests as JSON")

	del := &cobra.Command{
		Use:   "delete <target> <name>",
		Short: "Delete a snapshot that is not current",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), t, c.cfg)
			if err != nil {
				return err
			}
			if err := snapshot.Delete(cmd.Context(), store, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[1])
			return nil
		},
	}

	history := &cobra.Command{
		Use:   "history <target>",
		Short: "Show the commits of CURRENT, newest first",
		Long: `Show every move of CURRENT recorded in the DynamoDB commit table.
Only s3:// targets with s3.commit_table set keep a history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.snapshotHistory(cmd, args[0])
		},
	}

	cmd.AddCommand(list, del, history)
	return cmd
}

func (c *cli) snapshotHistory(cmd *cobra.Command, rawTarget string) error {
	t, err := parseTarget(rawTarget)
	if err != nil {
		return err
	}
	store, err := openStore(cmd.Context(), t, c.cfg)
	if err != nil {
		return err
	}
	commits, ok := store.(*s3.DDBCommitStore)
	if !ok {
		return fmt.Errorf("%w: %s keeps no commit history, use an s3 target with s3.commit_table",
			velox.ErrInvalidOperation, t)
	}

	history, err := commits.History(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSNAPSHOT\tCOMMITTED")
	for _, h := range history {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", h.Version, h.Snapshot, h.CommittedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func (c *cli) listSnapshots(cmd *cobra.Command, rawTarget string, asJSON bool) error {
	ctx := cmd.Context()

	t, err := parseTarget(rawTarget)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, t, c.cfg)
	if err != nil {
		return err
	}

	manifests, err := snapshot.List(ctx, store)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(manifests)
	}

	current, _ := snapshot.Current(ctx, store)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCREATED\tDIM\tCOUNT\tCLUSTERS\tCURRENT")
	for _, m := range manifests {
		mark := ""
		if m.Name == current {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			m.Name, m.CreatedAt.Format(time.RFC3339), m.Dim, m.Count, m.Clusters, mark)
	}
	return tw.Flush()
}
