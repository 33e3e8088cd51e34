package mmap

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestMmap_OpenReadClose(t *testing.T) {
	content := []byte("Hello, Mmap!")
	m, err := Open(writeTemp(t, content))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, len(content), m.Size())
	require.NoError(t, m.Advise(AccessRandom))

	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "Mmap!", string(buf))

	n, err = m.ReadAt(make([]byte, 10), 100)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	buf3 := make([]byte, 10)
	n, err = m.ReadAt(buf3, 7)
	assert.Equal(t, 5, n)
	assert.Equal(t, io.EOF, err)

	_, err = m.ReadAt(buf, -1)
	assert.Equal(t, ErrInvalidOffset, err)
}

func TestMmap_TypedReads(t *testing.T) {
	// One fvecs-style record: dim=3, then 3 floats.
	raw := make([]byte, 16)
	binary.NativeEndian.PutUint32(raw[0:], 3)
	binary.NativeEndian.PutUint32(raw[4:], math.Float32bits(1.5))
	binary.NativeEndian.PutUint32(raw[8:], math.Float32bits(-2))
	binary.NativeEndian.PutUint32(raw[12:], math.Float32bits(0.25))

	m, err := Open(writeTemp(t, raw))
	require.NoError(t, err)
	defer m.Close()

	dim, err := m.Int32At(0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), dim)

	row := make([]float32, 3)
	require.NoError(t, m.ReadFloat32s(row, 4))
	assert.Equal(t, []float32{1.5, -2, 0.25}, row)

	t.Run("Unaligned", func(t *testing.T) {
		// Offset 2 straddles the header and first float; only bounds matter.
		out := make([]float32, 1)
		require.NoError(t, m.ReadFloat32s(out, 2))
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		assert.ErrorIs(t, m.ReadFloat32s(make([]float32, 4), 4), ErrOutOfBounds)
		_, err := m.Int32At(13)
		assert.ErrorIs(t, err, ErrOutOfBounds)
		assert.ErrorIs(t, m.ReadFloat32s(row, -4), ErrInvalidOffset)
	})

	t.Run("Empty", func(t *testing.T) {
		require.NoError(t, m.ReadFloat32s(nil, 16))
	})
}

func TestMmap_AfterClose(t *testing.T) {
	m, err := Open(writeTemp(t, []byte("data")))
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "close is idempotent")
	assert.True(t, m.Closed())

	assert.Error(t, m.Advise(AccessRandom))
	_, err = m.Int32At(0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMmap_EmptyFile(t *testing.T) {
	m, err := Open(writeTemp(t, nil))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 0, m.Size())
	_, err = m.Int32At(0)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestMmap_OpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
