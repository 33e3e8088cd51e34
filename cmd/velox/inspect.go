package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/hupe1980/velox"
)

type inspectOptions struct {
	index string
}

type inspectOutput struct {
	File  string      `json:"file"`
	Index string      `json:"index,omitempty"`
	Valid bool        `json:"valid"`
	Error string      `json:"error,omitempty"`
	Stats velox.Stats `json:"stats"`
}

func newInspectCmd(c *cli) *cobra.Command {
	opts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <vectors.fvecs>",
		Short: "Print statistics and verify a vectors file and index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.inspect(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.index, "index", "", "Index file to verify against the vectors")

	return cmd
}

// inspect reports verification failures in its output and also returns
// them, so scripts see a non-zero exit status.
func (c *cli) inspect(cmd *cobra.Command, vectors string, opts *inspectOptions) error {
	db := c.openDB()
	defer db.Close()

	if err := db.LoadVectors(vectors); err != nil {
		return err
	}
	if opts.index != "" {
		if err := db.LoadIndex(opts.index); err != nil {
			return err
		}
	}

	verr := db.VerifyIndex()
	out := inspectOutput{
		File:  vectors,
		Index: opts.index,
		Valid: verr == nil,
		Stats: db.Stats(),
	}
	if verr != nil {
		out.Error = verr.Error()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	return verr
}
