package vectorstore

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/hupe1980/velox/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFvecs_RoundTrip(t *testing.T) {
	rows := [][]float32{
		{1, 2, 3},
		{-4.5, 0, 1e-7},
		{0, 0, 0},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFvecs(&buf, rows))
	assert.Equal(t, 3*int(RowSize(3)), buf.Len())

	got, dim, err := ReadFvecs(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, dim)
	assert.Equal(t, rows, got)
}

func TestFvecs_Layout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFvecs(&buf, [][]float32{{1.5}}))

	b := buf.Bytes()
	require.Len(t, b, 8)
	assert.Equal(t, uint32(1), binary.NativeEndian.Uint32(b[0:]))
	assert.Equal(t, uint32(0x3fc00000), binary.NativeEndian.Uint32(b[4:]))
}

func TestFvecs_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFvecs(&buf, nil))
	assert.Zero(t, buf.Len())

	rows, dim, err := ReadFvecs(&buf)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, dim)
}

func TestWriteFvecs_Errors(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFvecs(&buf, [][]float32{{1, 2}, {3}})
	assert.ErrorIs(t, err, model.ErrDimensionMismatch)

	err = WriteFvecs(&buf, [][]float32{{}})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestReadFvecs_Corrupt(t *testing.T) {
	header := func(d int32) []byte {
		b := make([]byte, 4)
		binary.NativeEndian.PutUint32(b, uint32(d))
		return b
	}
	valid := func(d int32) []byte {
		return append(header(d), make([]byte, 4*int(d))...)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated header", []byte{1, 0}},
		{"zero dim", header(0)},
		{"negative dim", header(-3)},
		{"truncated body", append(header(2), 0, 0, 0, 0)},
		{"header only", header(2)},
		{"inconsistent dim", append(valid(2), valid(3)...)},
		{"oversized dim", append(header(math.MaxInt32), 0, 0, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadFvecs(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, model.ErrCorruptFormat)
		})
	}
}

func TestFvecs_WideRecords(t *testing.T) {
	dim := readChunk/4 + 7
	rows := make([][]float32, 2)
	for i := range rows {
		rows[i] = make([]float32, dim)
		for j := range rows[i] {
			rows[i][j] = float32(i*dim + j)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFvecs(&buf, rows))

	got, d, err := ReadFvecs(&buf)
	require.NoError(t, err)
	assert.Equal(t, dim, d)
	assert.Equal(t, rows, got)
}
