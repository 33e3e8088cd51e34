package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/velox"
)

const rootLongDesc = `velox is an exact and IVF-accelerated nearest-neighbor search engine over
fvecs vector files.

Build an index, query it, serve it over HTTP, or publish and fetch snapshots
to local, S3 or MinIO storage.`

// flagKeys maps subcommand flags onto the config keys they override.
var flagKeys = map[string]string{
	"listen":      "server.listen",
	"data-file":   "server.data_file",
	"index-file":  "server.index_file",
	"clusters":    "build.clusters",
	"iterations":  "build.iterations",
	"metric":      "build.metric",
	"seed":        "seed",
	"compression": "snapshot.compression",
	"concurrency": "snapshot.concurrency",
	"rate-limit":  "snapshot.rate_limit",
	"dir":         "snapshot.dir",
}

// cli carries state shared by every subcommand.
type cli struct {
	configFile string
	logLevel   string
	noSIMD     bool

	v      *viper.Viper
	cfg    Config
	logger *velox.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:           "velox",
		Short:         "IVF nearest-neighbor search over fvecs files",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "Path to a velox.yaml config file")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&c.noSIMD, "no-simd", false, "Disable the vectorized distance kernels")

	cmd.AddCommand(newServeCmd(c))
	cmd.AddCommand(newBuildCmd(c))
	cmd.AddCommand(newSearchCmd(c))
	cmd.AddCommand(newInspectCmd(c))
	cmd.AddCommand(newPublishCmd(c))
	cmd.AddCommand(newFetchCmd(c))
	cmd.AddCommand(newSnapshotsCmd(c))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// init loads configuration and applies the global flags on top of it.
func (c *cli) init(cmd *cobra.Command) error {
	v, err := initViper(c.configFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	if flags.Changed("log-level") {
		v.Set("log_level", c.logLevel)
	}
	if flags.Changed("no-simd") && c.noSIMD {
		v.Set("simd", false)
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	logger, err := cfg.logger()
	if err != nil {
		return err
	}

	c.v = v
	c.cfg = cfg
	c.logger = logger
	return nil
}

// openDB returns a DB configured from the loaded config.
func (c *cli) openDB() *velox.DB {
	return velox.New(c.cfg.dbOptions(c.logger)...)
}

