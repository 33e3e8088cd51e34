package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/velox"
)

func newTestServer(t *testing.T) (*Server, *velox.DB) {
	t.Helper()
	dir := t.TempDir()
	db := velox.New(velox.WithSeed(1))
	t.Cleanup(func() { _ = db.Close() })
	s := NewServer(Config{
		ListenAddr: ":0",
		DataFile:   filepath.Join(dir, "data", "vectors.fvecs"),
		IndexFile:  filepath.Join(dir, "data", "index.ivf"),
	}, db, nil)
	return s, db
}

func do(t *testing.T, s *Server, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func mustAdd(t *testing.T, db *velox.DB, vec []float32) {
	t.Helper()
	_, err := db.Add(vec)
	require.NoError(t, err)
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	code, body := do(t, s, http.MethodGet, "/", nil)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "running", decode[StatusResponse](t, body).Status)
}

func TestAddSearchFlow(t *testing.T) {
	s, _ := newTestServer(t)

	for i, v := range [][]float32{{0, 0}, {0, 1}, {10, 10}} {
		code, body := do(t, s, http.MethodPost, "/add_vectors", VectorRequest{Vector: v})
		require.Equal(t, fiber.StatusCreated, code, string(body))
		assert.Equal(t, i, decode[VectorResponse](t, body).ID)
	}

	code, body := do(t, s, http.MethodPost, "/search", SearchRequest{QueryVector: []float32{0, 0.8}})
	require.Equal(t, fiber.StatusOK, code, string(body))
	res := decode[SearchResponse](t, body)
	assert.Equal(t, 1, res.MatchID)
	require.NotNil(t, res.Distance)
	assert.InDelta(t, 0.04, *res.Distance, 1e-6)

	code, body = do(t, s, http.MethodGet, "/vectors/2", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, []float32{10, 10}, decode[VectorResponse](t, body).Vector)

	code, body = do(t, s, http.MethodPost, "/search_batch", SearchBatchRequest{
		Queries: [][]float32{{0, 0}, {9, 9}},
		Metric:  "eucl",
	})
	require.Equal(t, fiber.StatusOK, code, string(body))
	batch := decode[SearchBatchResponse](t, body)
	require.Len(t, batch.Results, 2)
	assert.Equal(t, 0, batch.Results[0].MatchID)
	assert.Equal(t, 2, batch.Results[1].MatchID)
}

func TestSearchEmpty(t *testing.T) {
	s, _ := newTestServer(t)
	code, body := do(t, s, http.MethodPost, "/search", SearchRequest{QueryVector: []float32{1, 2}})
	require.Equal(t, fiber.StatusOK, code, string(body))
	res := decode[SearchResponse](t, body)
	assert.Equal(t, velox.NotFound, res.MatchID)
	assert.Nil(t, res.Distance)
}

func TestTrainAndStats(t *testing.T) {
	s, db := newTestServer(t)
	for i := 0; i < 20; i++ {
		mustAdd(t, db, []float32{float32(i % 2 * 10), float32(i)})
	}

	code, body := do(t, s, http.MethodPost, "/train", TrainRequest{NumClusters: 2, MaxIters: 5, Metric: "eucl"})
	require.Equal(t, fiber.StatusOK, code, string(body))

	code, body = do(t, s, http.MethodGet, "/stats", nil)
	require.Equal(t, fiber.StatusOK, code)
	st := decode[velox.Stats](t, body)
	assert.Equal(t, 20, st.Vectors)
	assert.True(t, st.Indexed)
	require.NotNil(t, st.Index)
	assert.Equal(t, 2, st.Index.NumClusters)
}

func TestSetSIMD(t *testing.T) {
	s, db := newTestServer(t)
	code, body := do(t, s, http.MethodPut, "/simd", SIMDRequest{Enabled: false})
	require.Equal(t, fiber.StatusOK, code)
	assert.False(t, decode[SIMDResponse](t, body).Enabled)
	assert.False(t, db.SIMD())

	code, _ = do(t, s, http.MethodPut, "/simd", SIMDRequest{Enabled: true})
	require.Equal(t, fiber.StatusOK, code)
	assert.True(t, db.SIMD())
}

func TestErrorMapping(t *testing.T) {
	s, db := newTestServer(t)
	mustAdd(t, db, []float32{1, 2})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
		kind   string
	}{
		{"dimension mismatch", http.MethodPost, "/add_vectors", VectorRequest{Vector: []float32{1}}, fiber.StatusBadRequest, velox.ErrDimensionMismatch.Error()},
		{"unknown metric", http.MethodPost, "/search", SearchRequest{QueryVector: []float32{1, 2}, Metric: "manhattan"}, fiber.StatusBadRequest, velox.ErrInvalidArgument.Error()},
		{"bad clusters", http.MethodPost, "/train", TrainRequest{NumClusters: 5, MaxIters: 1}, fiber.StatusBadRequest, velox.ErrInvalidArgument.Error()},
		{"out of range", http.MethodGet, "/vectors/7", nil, fiber.StatusNotFound, velox.ErrIndexOutOfRange.Error()},
		{"bad id", http.MethodGet, "/vectors/abc", nil, fiber.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, code, string(body))
			assert.Equal(t, tt.kind, decode[ErrorResponse](t, body).Kind)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusConflict, statusFor(velox.ErrClosed))
	assert.Equal(t, fiber.StatusUnprocessableEntity, statusFor(velox.ErrCorruptFormat))
	assert.Equal(t, fiber.StatusInternalServerError, statusFor(velox.ErrIO))
	assert.Equal(t, fiber.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestSaveAndRestore(t *testing.T) {
	s, db := newTestServer(t)
	for i := 0; i < 12; i++ {
		mustAdd(t, db, []float32{float32(i), float32(i % 3)})
	}

	code, body := do(t, s, http.MethodPost, "/save", nil)
	require.Equal(t, fiber.StatusOK, code, string(body))
	assert.Len(t, decode[StatusResponse](t, body).Files, 1, "no index yet")

	code, _ = do(t, s, http.MethodPost, "/train", TrainRequest{NumClusters: 3, MaxIters: 4})
	require.Equal(t, fiber.StatusOK, code)
	code, body = do(t, s, http.MethodPost, "/save", nil)
	require.Equal(t, fiber.StatusOK, code, string(body))
	assert.Len(t, decode[StatusResponse](t, body).Files, 2)

	restored := velox.New()
	defer restored.Close()
	s2 := NewServer(s.config, restored, nil)
	require.NoError(t, s2.Restore(context.Background()))
	assert.Equal(t, 12, restored.Len())
	assert.True(t, restored.Indexed())

	// Loaded vectors are read-only.
	code, body = do(t, s2, http.MethodPost, "/add_vectors", VectorRequest{Vector: []float32{1, 1}})
	assert.Equal(t, fiber.StatusConflict, code, string(body))
}

func TestSaveAfterAddRemovesIndexFile(t *testing.T) {
	s, db := newTestServer(t)
	for i := 0; i < 12; i++ {
		mustAdd(t, db, []float32{float32(i), float32(i % 3)})
	}
	code, _ := do(t, s, http.MethodPost, "/train", TrainRequest{NumClusters: 3, MaxIters: 4})
	require.Equal(t, fiber.StatusOK, code)
	code, _ = do(t, s, http.MethodPost, "/save", nil)
	require.Equal(t, fiber.StatusOK, code)
	require.FileExists(t, s.config.IndexFile)

	code, body := do(t, s, http.MethodPost, "/add_vectors", VectorRequest{Vector: []float32{50, 50}})
	require.Equal(t, fiber.StatusCreated, code, string(body))
	assert.Equal(t, 12, decode[VectorResponse](t, body).ID)

	code, body = do(t, s, http.MethodPost, "/save", nil)
	require.Equal(t, fiber.StatusOK, code, string(body))
	assert.Len(t, decode[StatusResponse](t, body).Files, 1)
	assert.NoFileExists(t, s.config.IndexFile)

	restored := velox.New()
	defer restored.Close()
	s2 := NewServer(s.config, restored, nil)
	require.NoError(t, s2.Restore(context.Background()))
	assert.Equal(t, 13, restored.Len())
	assert.False(t, restored.Indexed())

	code, body = do(t, s2, http.MethodPost, "/search", SearchRequest{QueryVector: []float32{50, 50}})
	require.Equal(t, fiber.StatusOK, code, string(body))
	assert.Equal(t, 12, decode[SearchResponse](t, body).MatchID)
}

func TestRestoreDropsMismatchedIndex(t *testing.T) {
	s, db := newTestServer(t)
	for i := 0; i < 12; i++ {
		mustAdd(t, db, []float32{float32(i), float32(i % 3)})
	}
	require.NoError(t, db.BuildIndex(3, 4, velox.MetricL2))
	require.NoError(t, os.MkdirAll(filepath.Dir(s.config.IndexFile), 0o755))
	require.NoError(t, db.SaveIndex(s.config.IndexFile))
	stale, err := os.ReadFile(s.config.IndexFile)
	require.NoError(t, err)

	small := velox.New()
	defer small.Close()
	for _, v := range [][]float32{{0, 0}, {1, 1}, {2, 2}} {
		mustAdd(t, small, v)
	}
	require.NoError(t, small.ExportVectors(s.config.DataFile))
	require.NoError(t, os.WriteFile(s.config.IndexFile, stale, 0o600))

	restored := velox.New()
	defer restored.Close()
	s2 := NewServer(s.config, restored, nil)
	require.NoError(t, s2.Restore(context.Background()))
	assert.Equal(t, 3, restored.Len())
	assert.False(t, restored.Indexed())

	code, body := do(t, s2, http.MethodPost, "/search", SearchRequest{QueryVector: []float32{2, 2}})
	require.Equal(t, fiber.StatusOK, code, string(body))
	assert.Equal(t, 2, decode[SearchResponse](t, body).MatchID)
}

func TestRestoreWithoutState(t *testing.T) {
	s, db := newTestServer(t)
	require.NoError(t, s.Restore(context.Background()))
	assert.Zero(t, db.Len())
	assert.DirExists(t, filepath.Dir(s.config.DataFile))
}

func TestRestoreCorrupt(t *testing.T) {
	s, db := newTestServer(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.config.DataFile), 0o755))
	require.NoError(t, os.WriteFile(s.config.DataFile, []byte{1, 2, 3}, 0o600))
	require.NoError(t, os.WriteFile(s.config.IndexFile, []byte{1, 2, 3}, 0o600))

	err := s.Restore(context.Background())
	assert.ErrorIs(t, err, velox.ErrCorruptFormat)
	assert.Zero(t, db.Len())
}
