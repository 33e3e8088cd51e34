// Package server exposes a velox DB over a small JSON REST API.
package server

// Config is the server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g. ":8000").
	ListenAddr string
	// DataFile is where POST /save exports the vectors and where startup
	// restores them from.
	DataFile string
	// IndexFile is where POST /save writes the index and where startup
	// restores it from.
	IndexFile string
}

// DefaultConfig returns the stock listen address and file locations.
func DefaultConfig() Config {
	return Config{
		ListenAddr: ":8000",
		DataFile:   "data/vectors.fvecs",
		IndexFile:  "data/index.ivf",
	}
}
