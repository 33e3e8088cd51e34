package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/velox/server"
)

const serveLongDesc = `Run the velox REST API.

On startup the server restores the vectors and index saved by POST /save
when both files exist. A failed restore is logged and the server starts
empty.`

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}

	defaults := server.DefaultConfig()
	cmd.Flags().String("listen", defaults.ListenAddr, "Address to listen on")
	cmd.Flags().String("data-file", defaults.DataFile, "Vectors file used by save and restore")
	cmd.Flags().String("index-file", defaults.IndexFile, "Index file used by save and restore")

	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := c.openDB()
	defer db.Close()

	srv := server.NewServer(server.Config{
		ListenAddr: c.cfg.Server.Listen,
		DataFile:   c.cfg.Server.DataFile,
		IndexFile:  c.cfg.Server.IndexFile,
	}, db, c.logger)

	// Restore logs its own failure; the server still starts empty.
	_ = srv.Restore(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down")
		return srv.Shutdown()
	}
}
