package hash

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC32C(t *testing.T) {
	// Standard check value for the Castagnoli polynomial.
	assert.Equal(t, uint32(0xe3069283), CRC32C([]byte("123456789")))
	assert.Equal(t, uint32(0), CRC32C(nil))
}

func TestNewCRC32C_MatchesOneShot(t *testing.T) {
	data := strings.Repeat("velox", 10000)
	h := NewCRC32C()
	_, err := io.Copy(h, strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, CRC32C([]byte(data)), h.Sum32())
}

func TestEncodeCRC32C(t *testing.T) {
	assert.Equal(t, "4waSgw==", EncodeCRC32C(0xe3069283))
	assert.Equal(t, "AAAAAA==", EncodeCRC32C(0))
}
