package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/hupe1980/velox"
)

// Server serves a DB over HTTP.
type Server struct {
	config Config
	db     *velox.DB
	logger *velox.Logger
	app    *fiber.App
}

// NewServer creates a server around db. The db is shared, not owned:
// Shutdown does not close it.
func NewServer(config Config, db *velox.DB, logger *velox.Logger) *Server {
	if logger == nil {
		logger = velox.NoopLogger()
	}
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		config: config,
		db:     db,
		logger: logger.WithComponent("server"),
		app:    app,
	}

	app.Get("/", s.handleHealth)
	app.Post("/add_vectors", s.handleAddVector)
	app.Post("/train", s.handleTrain)
	app.Post("/search", s.handleSearch)
	app.Post("/search_batch", s.handleSearchBatch)
	app.Post("/save", s.handleSave)
	app.Get("/vectors/:id", s.handleGetVector)
	app.Get("/stats", s.handleStats)
	app.Put("/simd", s.handleSetSIMD)

	return s
}

// Restore loads DataFile and, when present, IndexFile. An index that does not
// partition the loaded vectors is dropped. Failures are logged and returned,
// but leave the DB usable.
func (s *Server) Restore(ctx context.Context) error {
	if dir := filepath.Dir(s.config.DataFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.ErrorContext(ctx, "create data directory failed", "dir", dir, "error", err)
			return err
		}
	}

	if !exists(s.config.DataFile) {
		s.logger.InfoContext(ctx, "no saved state found", "data_file", s.config.DataFile)
		return nil
	}

	s.logger.InfoContext(ctx, "loading saved state",
		"data_file", s.config.DataFile,
		"index_file", s.config.IndexFile,
	)
	if err := s.db.LoadVectors(s.config.DataFile); err != nil {
		s.logger.ErrorContext(ctx, "restore failed", "file", s.config.DataFile, "error", err)
		return err
	}
	if exists(s.config.IndexFile) {
		if err := s.db.LoadIndex(s.config.IndexFile); err != nil {
			s.logger.ErrorContext(ctx, "restore failed", "file", s.config.IndexFile, "error", err)
			return err
		}
		// An index saved against another vector set is dropped: flat search
		// stays correct where a stale index would return foreign ids.
		if err := s.db.VerifyIndex(); err != nil {
			s.logger.WarnContext(ctx, "saved index does not match vectors, dropping it",
				"file", s.config.IndexFile,
				"error", err,
			)
			s.db.DropIndex()
		}
	}
	s.logger.InfoContext(ctx, "saved state loaded", "vectors", s.db.Len(), "indexed", s.db.Indexed())
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
