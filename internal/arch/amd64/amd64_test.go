package amd64

import (
	"math"
	"testing"

	"github.com/Manu343726/staticld/internal/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyAbsolute64(t *testing.T) {
	buf := make([]byte, 8)
	err := Apply(0, object.RelocAbsolute, 1, 64, 0, 0x42, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x42, 0, 0, 0, 0, 0, 0, 0}, buf)
}

func TestApplyRelative32(t *testing.T) {
	buf := make([]byte, 8)
	// S=0x401010, P=0x401000, A=-4 -> value = 0x401010 - 0x401000 - 4 = 12
	err := Apply(4, object.RelocRelative, 2, 32, 0x401000, 0x401010, -4, buf)
	require.NoError(t, err)
	assert.Equal(t, int32(12), int32(le32(buf[4:8])))
}

func TestApplyOverflowBoundaries(t *testing.T) {
	// A=i32::MAX, S=0, P=0: value == i32::MAX, succeeds. A nonzero addend
	// means the implicit-addend readback never triggers, so each case gets
	// a fresh, independent buffer.
	err := Apply(0, object.RelocRelative, 2, 32, 0, 0, int64(math.MaxInt32), make([]byte, 8))
	assert.NoError(t, err)

	err = Apply(0, object.RelocRelative, 2, 32, 0, 0, int64(math.MaxInt32)+1, make([]byte, 8))
	assert.Error(t, err)

	err = Apply(0, object.RelocRelative, 2, 32, 0, 0, int64(math.MinInt32), make([]byte, 8))
	assert.NoError(t, err)

	err = Apply(0, object.RelocRelative, 2, 32, 0, 0, int64(math.MinInt32)-1, make([]byte, 8))
	assert.Error(t, err)
}

func TestApplyGOTPCRELXZeroSizeCoercedTo32(t *testing.T) {
	buf := make([]byte, 8)
	err := Apply(0, object.RelocGotRelative, object.RawGOTPCRELX, 0, 100, 108, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, int32(8), int32(le32(buf[0:4])))
}

func TestApplyImplicitAddendReadback(t *testing.T) {
	buf := []byte{0xFC, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0} // -4 preimage
	err := Apply(0, object.RelocRelative, 2, 32, 0x1000, 0x1010, 0, buf)
	require.NoError(t, err)
	// S=0x1010, A=-4 (read from preimage), P=0x1000 -> value = 0x1010 - 4 - 0x1000 = 12
	assert.Equal(t, int32(12), int32(le32(buf[0:4])))
}

func TestApplyUnsupportedSize(t *testing.T) {
	buf := make([]byte, 8)
	err := Apply(0, object.RelocAbsolute, 1, 16, 0, 0, 0, buf)
	assert.Error(t, err)
}

func TestApplyOffsetOutOfBounds(t *testing.T) {
	buf := make([]byte, 2)
	err := Apply(0, object.RelocAbsolute, 1, 32, 0, 0, 0, buf)
	assert.Error(t, err)
}

func TestApplyUnrecognizedKindIsNoOp(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	err := Apply(0, object.RelocOther, 99, 32, 0, 0, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
