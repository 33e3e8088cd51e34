package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/hupe1980/velox"
	"github.com/hupe1980/velox/internal/resource"
	"github.com/hupe1980/velox/server"
	"github.com/hupe1980/velox/snapshot"
)

// Config is the process configuration.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	SIMD      bool   `mapstructure:"simd"`
	Seed      int64  `mapstructure:"seed"`

	Server   ServerConfig   `mapstructure:"server"`
	Build    BuildConfig    `mapstructure:"build"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	S3       S3Config       `mapstructure:"s3"`
	Minio    MinioConfig    `mapstructure:"minio"`
}

// ServerConfig configures `velox serve`.
type ServerConfig struct {
	Listen    string `mapstructure:"listen"`
	DataFile  string `mapstructure:"data_file"`
	IndexFile string `mapstructure:"index_file"`
}

// BuildConfig holds index build defaults.
type BuildConfig struct {
	Clusters   int    `mapstructure:"clusters"`
	Iterations int    `mapstructure:"iterations"`
	Metric     string `mapstructure:"metric"`
}

// SnapshotConfig configures publish and fetch.
type SnapshotConfig struct {
	Compression string `mapstructure:"compression"`
	Concurrency int64  `mapstructure:"concurrency"`
	// RateLimit caps transfer bytes per second. 0 means unlimited.
	RateLimit int64  `mapstructure:"rate_limit"`
	// PartSize is the multipart part size of remote uploads in bytes.
	PartSize  int64  `mapstructure:"part_size"`
	Dir       string `mapstructure:"dir"`
}

// S3Config configures s3:// targets.
type S3Config struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	// CommitTable enables DynamoDB commits of CURRENT when set.
	CommitTable string `mapstructure:"commit_table"`
}

// MinioConfig configures minio:// targets.
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Secure    bool   `mapstructure:"secure"`
}

// defaultConfig is the single source of truth for defaults.
func defaultConfig() Config {
	sc := server.DefaultConfig()
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		SIMD:      true,
		Server: ServerConfig{
			Listen:    sc.ListenAddr,
			DataFile:  sc.DataFile,
			IndexFile: sc.IndexFile,
		},
		Build: BuildConfig{
			Clusters:   16,
			Iterations: 10,
			Metric:     "eucl",
		},
		Snapshot: SnapshotConfig{
			Compression: "zstd",
			Concurrency: 4,
			PartSize:    16 << 20,
			Dir:         "data",
		},
		Minio: MinioConfig{
			Endpoint: "localhost:9000",
		},
	}
}

// initViper layers defaults, the config file and VELOX_* environment
// variables. Flags are bound by the commands that own them.
//
// Precedence (highest to lowest): flags, environment, config file, defaults.
func initViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("velox")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "velox"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit one must exist.
		if configFile != "" || !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("VELOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

func setViperDefaults(v *viper.Viper) {
	d := defaultConfig()

	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("simd", d.SIMD)
	v.SetDefault("seed", d.Seed)

	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.data_file", d.Server.DataFile)
	v.SetDefault("server.index_file", d.Server.IndexFile)

	v.SetDefault("build.clusters", d.Build.Clusters)
	v.SetDefault("build.iterations", d.Build.Iterations)
	v.SetDefault("build.metric", d.Build.Metric)

	v.SetDefault("snapshot.compression", d.Snapshot.Compression)
	v.SetDefault("snapshot.concurrency", d.Snapshot.Concurrency)
	v.SetDefault("snapshot.rate_limit", d.Snapshot.RateLimit)
	v.SetDefault("snapshot.part_size", d.Snapshot.PartSize)
	v.SetDefault("snapshot.dir", d.Snapshot.Dir)

	v.SetDefault("s3.region", d.S3.Region)
	v.SetDefault("s3.endpoint", d.S3.Endpoint)
	v.SetDefault("s3.commit_table", d.S3.CommitTable)

	v.SetDefault("minio.endpoint", d.Minio.Endpoint)
	v.SetDefault("minio.access_key", d.Minio.AccessKey)
	v.SetDefault("minio.secret_key", d.Minio.SecretKey)
	v.SetDefault("minio.secure", d.Minio.Secure)
}

func loadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func (c Config) logger() (*velox.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("%w: log level %q", velox.ErrInvalidArgument, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text":
		return velox.NewTextLogger(level), nil
	case "json":
		return velox.NewJSONLogger(level), nil
	default:
		return nil, fmt.Errorf("%w: log format %q", velox.ErrInvalidArgument, c.LogFormat)
	}
}

func (c Config) dbOptions(logger *velox.Logger) []velox.Option {
	opts := []velox.Option{
		velox.WithLogger(logger),
		velox.WithSIMD(c.SIMD),
	}
	if c.Seed != 0 {
		opts = append(opts, velox.WithSeed(c.Seed))
	}
	return opts
}

func (c Config) controller() *resource.Controller {
	return resource.NewController(resource.Config{
		MaxConcurrentTransfers: c.Snapshot.Concurrency,
		IOLimitBytesPerSec:     c.Snapshot.RateLimit,
	})
}

func (c Config) compression() (snapshot.Compression, error) {
	return snapshot.ParseCompression(c.Snapshot.Compression)
}
