package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/hupe1980/velox"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// StatusResponse acknowledges a mutation.
type StatusResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Files   []string `json:"files,omitempty"`
}

// VectorRequest is the body of POST /add_vectors.
type VectorRequest struct {
	Vector []float32 `json:"vector"`
}

// VectorResponse is the body of GET /vectors/:id and POST /add_vectors.
type VectorResponse struct {
	ID     int       `json:"id"`
	Vector []float32 `json:"vector,omitempty"`
}

// TrainRequest is the body of POST /train.
type TrainRequest struct {
	NumClusters int    `json:"num_clusters"`
	MaxIters    int    `json:"max_iters"`
	Metric      string `json:"metric"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	QueryVector []float32 `json:"query_vector"`
	Metric      string    `json:"metric"`
}

// SearchResponse carries the nearest id, or -1 when nothing was inspected.
type SearchResponse struct {
	Status   string   `json:"status"`
	MatchID  int      `json:"match_id"`
	Distance *float32 `json:"distance,omitempty"`
}

// SearchBatchRequest is the body of POST /search_batch.
type SearchBatchRequest struct {
	Queries [][]float32 `json:"queries"`
	Metric  string      `json:"metric"`
}

// SearchBatchResponse holds one result per query, in order.
type SearchBatchResponse struct {
	Status  string           `json:"status"`
	Results []SearchResponse `json:"results"`
}

// SIMDRequest is the body of PUT /simd.
type SIMDRequest struct {
	Enabled bool `json:"enabled"`
}

// SIMDResponse reports the effective kernel selection.
type SIMDResponse struct {
	Enabled bool   `json:"enabled"`
	ISA     string `json:"isa"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(StatusResponse{Status: "running", Message: "Server is operational."})
}

func (s *Server) handleAddVector(c *fiber.Ctx) error {
	var req VectorRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	id, err := s.db.Add(req.Vector)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(VectorResponse{ID: id})
}

func (s *Server) handleTrain(c *fiber.Ctx) error {
	var req TrainRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	metric, err := parseMetric(req.Metric)
	if err != nil {
		return err
	}
	s.logger.InfoContext(c.UserContext(), "training index",
		"clusters", req.NumClusters,
		"max_iters", req.MaxIters,
		"metric", metric.Name(),
	)
	if err := s.db.BuildIndex(req.NumClusters, req.MaxIters, metric); err != nil {
		return err
	}
	return c.JSON(StatusResponse{Status: "success", Message: "Index trained successfully."})
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	metric, err := parseMetric(req.Metric)
	if err != nil {
		return err
	}
	res, err := s.db.SearchResult(req.QueryVector, metric)
	if err != nil {
		return err
	}
	return c.JSON(toSearchResponse(res))
}

func (s *Server) handleSearchBatch(c *fiber.Ctx) error {
	var req SearchBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	metric, err := parseMetric(req.Metric)
	if err != nil {
		return err
	}
	results, err := s.db.SearchBatch(c.UserContext(), req.Queries, metric)
	if err != nil {
		return err
	}
	out := SearchBatchResponse{Status: "success", Results: make([]SearchResponse, len(results))}
	for i, r := range results {
		out.Results[i] = toSearchResponse(r)
	}
	return c.JSON(out)
}

func toSearchResponse(r velox.Result) SearchResponse {
	out := SearchResponse{Status: "success", MatchID: r.ID}
	if r.Found() {
		d := r.Distance
		out.Distance = &d
	}
	return out
}

// handleSave exports the vectors and, when an index is active, the index.
// Without an active index a previously saved index file is removed so that a
// later restore never pairs it with a different vector set.
func (s *Server) handleSave(c *fiber.Ctx) error {
	for _, f := range []string{s.config.DataFile, s.config.IndexFile} {
		if err := os.MkdirAll(filepath.Dir(f), 0o755); err != nil {
			return fmt.Errorf("%w: %w", velox.ErrIO, err)
		}
	}
	files := []string{s.config.DataFile}
	if err := s.db.ExportVectors(s.config.DataFile); err != nil {
		return err
	}
	if s.db.Indexed() {
		if err := s.db.SaveIndex(s.config.IndexFile); err != nil {
			return err
		}
		files = append(files, s.config.IndexFile)
	} else if err := os.Remove(s.config.IndexFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %w", velox.ErrIO, err)
	}
	for i, f := range files {
		files[i] = filepath.ToSlash(f)
	}
	return c.JSON(StatusResponse{Status: "success", Message: "State saved successfully.", Files: files})
}

func (s *Server) handleGetVector(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(err)
	}
	vec, err := s.db.Vector(id)
	if err != nil {
		return err
	}
	return c.JSON(VectorResponse{ID: id, Vector: vec})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.db.Stats())
}

func (s *Server) handleSetSIMD(c *fiber.Ctx) error {
	var req SIMDRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	s.db.SetSIMD(req.Enabled)
	st := s.db.Stats()
	return c.JSON(SIMDResponse{Enabled: st.SIMD, ISA: st.ISA})
}

func parseMetric(name string) (velox.Metric, error) {
	if name == "" {
		return velox.MetricL2, nil
	}
	return velox.ParseMetric(name)
}

func badRequest(err error) error {
	return fiber.NewError(fiber.StatusBadRequest, err.Error())
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch velox.ErrorKind(err) {
	case velox.ErrInvalidArgument, velox.ErrDimensionMismatch:
		return fiber.StatusBadRequest
	case velox.ErrIndexOutOfRange:
		return fiber.StatusNotFound
	case velox.ErrInvalidOperation:
		return fiber.StatusConflict
	case velox.ErrCorruptFormat:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message})
	}
	resp := ErrorResponse{Error: err.Error()}
	if kind := velox.ErrorKind(err); kind != nil {
		resp.Kind = kind.Error()
	}
	return c.Status(statusFor(err)).JSON(resp)
}
