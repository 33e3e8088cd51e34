package main

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/velox"
)

type searchOptions struct {
	index string
	query string
}

type searchOutput struct {
	Match    int      `json:"match_id"`
	Distance *float32 `json:"distance,omitempty"`
	Indexed  bool     `json:"indexed"`
}

func newSearchCmd(c *cli) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <vectors.fvecs>",
		Short: "Find the nearest vector to a query",
		Long: `Find the nearest vector to a query.

With --index the search probes the nearest cluster only; without it every
vector is scanned.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.search(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.index, "index", "", "Index file written by the build command")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "Comma-separated query vector, e.g. \"1,0.5,-2\"")
	cmd.Flags().String("metric", "", "Distance metric: eucl or cos (default from config)")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func (c *cli) search(cmd *cobra.Command, vectors string, opts *searchOptions) error {
	query, err := parseQuery(opts.query)
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
	if opts.index != "" {
		if err := db.LoadIndex(opts.index); err != nil {
			return err
		}
	}

	res, err := db.SearchResult(query, metric)
	if err != nil {
		return err
	}

	out := searchOutput{Match: res.ID, Indexed: db.Indexed()}
	if res.Found() {
		out.Distance = &res.Distance
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// parseQuery parses a comma-separated list of finite floats.
func parseQuery(s string) ([]float32, error) {
	fields := strings.Split(s, ",")
	query := make([]float32, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: query component %q", velox.ErrInvalidArgument, f)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: query component %q is not finite", velox.ErrInvalidArgument, f)
		}
		query = append(query, float32(v))
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: empty query", velox.ErrInvalidArgument)
	}
	return query, nil
}
