// Package amd64 is the x86_64 relocation arithmetic kernel: the one place
// in the linker that knows how to turn (P, S, A) into bytes. The core
// never imports an architecture-specific constant beyond the raw ELF type
// numbers needed by the GOT-needs predicate (internal/layout).
package amd64

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"

	"github.com/Manu343726/staticld/internal/linkerr"
	"github.com/Manu343726/staticld/internal/logging"
	"github.com/Manu343726/staticld/internal/object"
	"github.com/Manu343726/staticld/pkg/utils"
)

// Apply writes one relocation into buffer at offset, per spec.md 4.1:
//   - Absolute: S + A
//   - Relative / PltRelative / GotRelative / GOTPCRELX raw types: S + A - P
//   - anything else: logged at trace level, no-op
//
// A size_bits of 0 on a GOTPCRELX raw type is coerced to 32. When
// size_bits is 32 and addend is 0, the existing 4-byte little-endian
// value at offset is read and used as the addend, supporting REL-style
// implicit addends.
func Apply(offset uint64, kind object.RelocKind, rawType uint32, sizeBits int, p, s uint64, a int64, buffer []byte) error {
	if sizeBits == 0 && isGOTPCRELX(rawType) {
		sizeBits = 32
	}

	if sizeBits == 32 && a == 0 {
		readback, err := readImplicitAddend(buffer, offset)
		if err != nil {
			return err
		}
		a = readback
	}

	var value int64
	switch kind {
	case object.RelocAbsolute:
		value = int64(s) + a
	case object.RelocRelative, object.RelocPltRelative, object.RelocGotRelative:
		value = int64(s) + a - int64(p)
	default:
		slog.Log(context.Background(), logging.LevelTrace, "unrecognized relocation kind, skipping", "rawType", rawType)
		return nil
	}

	switch sizeBits {
	case 32:
		if value < math.MinInt32 || value > math.MaxInt32 {
			return utils.MakeError(linkerr.ErrRelocationOverflow, "value %d at P=0x%x S=0x%x does not fit a 32-bit displacement", value, p, s)
		}
		return writeAt(buffer, offset, 4, uint64(int32(value)))
	case 64:
		return writeAt(buffer, offset, 8, uint64(value))
	default:
		return utils.MakeError(linkerr.ErrUnsupportedRelocationSize, "size %d bits is not 32 or 64", sizeBits)
	}
}

func isGOTPCRELX(rawType uint32) bool {
	switch rawType {
	case object.RawGOTPCRELX, object.RawRexGOTPCRELX:
		return true
	default:
		return false
	}
}

func readImplicitAddend(buffer []byte, offset uint64) (int64, error) {
	if offset+4 > uint64(len(buffer)) {
		return 0, utils.MakeError(linkerr.ErrOffsetOutOfBounds, "offset 0x%x+4 exceeds buffer of length %d", offset, len(buffer))
	}
	return int64(int32(binary.LittleEndian.Uint32(buffer[offset : offset+4]))), nil
}

func writeAt(buffer []byte, offset uint64, width int, value uint64) error {
	if offset+uint64(width) > uint64(len(buffer)) {
		return utils.MakeError(linkerr.ErrOffsetOutOfBounds, "offset 0x%x+%d exceeds buffer of length %d", offset, width, len(buffer))
	}
	switch width {
	case 4:
		binary.LittleEndian.PutUint32(buffer[offset:offset+4], uint32(value))
	case 8:
		binary.LittleEndian.PutUint64(buffer[offset:offset+8], value)
	}
	return nil
}
