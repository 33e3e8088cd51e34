package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/velox"
)

type buildOptions struct {
	output string
}

func newBuildCmd(c *cli) *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build <vectors.fvecs>",
		Short: "Train an IVF index over an fvecs file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.build(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntP("clusters", "k", 0, "Number of clusters (default from config)")
	cmd.Flags().Int("iterations", 0, "Maximum k-means iterations (default from config)")
	cmd.Flags().String("metric", "", "Distance metric: eucl or cos (default from config)")
	cmd.Flags().Int64("seed", 0, "Seed for centroid initialization")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "index.ivf", "Index file to write")

	return cmd
}

func (c *cli) build(cmd *cobra.Command, vectors string, opts *buildOptions) error {
	metric, err := velox.ParseMetric(c.cfg.Build.Metric)
	if err != nil {
		return err
	}

	db := c.openDB()
	defer db.Close()

	if err := db.LoadVectors(vectors); err != nil {
		return err
	}

	start := time.Now()
	if err := db.BuildIndex(c.cfg.Build.Clusters, c.cfg.Build.Iterations, metric); err != nil {
		return err
	}
	if err := db.SaveIndex(opts.output); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d vectors into %d clusters in %s: %s\n",
		db.Len(), c.cfg.Build.Clusters, time.Since(start).Round(time.Millisecond), opts.output)
	return nil
}
