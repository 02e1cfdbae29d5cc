package common

import (
	"encoding/binary"
	"fmt"
)

const pkgName = "common"

// Pointer widths in bytes understood by the decoder.
const (
	Width32 = 4
	Width64 = 8
)

// MemoryReader reads raw bytes out of the inspected process (or a dump of it).
// Implementations return a MemoryAccessError when any byte of the range is
// unmapped or unreadable; a short slice is never returned with a nil error.
type MemoryReader interface {
	ReadMemory(addr uint64, length uint32) ([]byte, error)
}

// ValidWidth reports whether width is a supported pointer size in bytes.
func ValidWidth(width int) bool {
	return width == Width32 || width == Width64
}

// WidthMask returns a mask with the low width*8 bits set.
func WidthMask(width int) uint64 {
	if width >= Width64 {
		return ^uint64(0)
	}
	return (uint64(1) << (uint(width) * 8)) - 1
}

// Hex formats v the way the rest of the tool prints addresses.
func Hex(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

// NoMemory is the reader used when no memory source is attached.
// Every read fails.
type NoMemory struct{}

func (NoMemory) ReadMemory(addr uint64, length uint32) ([]byte, error) {
	return nil, MemoryAccessError(pkgName, "read", addr, fmt.Errorf("no memory source attached"))
}

// WordReader decodes little-endian fixed-width integers from a MemoryReader.
type WordReader struct {
	m MemoryReader
}

// NewWordReader creates a new word reader over m.
func NewWordReader(m MemoryReader) *WordReader {
	if m == nil {
		m = NoMemory{}
	}
	return &WordReader{m: m}
}

// ReadBytes reads exactly n bytes at addr.
func (r *WordReader) ReadBytes(addr uint64, n uint32) ([]byte, error) {
	buf, err := r.m.ReadMemory(addr, n)
	if err != nil {
		if IsMemoryAccessError(err) {
			return nil, err
		}
		return nil, MemoryAccessError(pkgName, "read", addr, err)
	}
	if uint32(len(buf)) < n {
		return nil, MemoryAccessError(pkgName, "read", addr,
			fmt.Errorf("short read: got %d of %d bytes", len(buf), n))
	}
	return buf[:n], nil
}

// DecodeUint32 decodes a little-endian unsigned 32-bit integer at addr.
func (r *WordReader) DecodeUint32(addr uint64) (uint32, error) {
	buf, err := r.ReadBytes(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// DecodeUint64 decodes a little-endian unsigned 64-bit integer at addr.
func (r *WordReader) DecodeUint64(addr uint64) (uint64, error) {
	buf, err := r.ReadBytes(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// DecodeWord decodes a pointer-sized word at addr.
func (r *WordReader) DecodeWord(addr uint64, width int) (uint64, error) {
	switch width {
	case Width32:
		v, err := r.DecodeUint32(addr)
		return uint64(v), err
	case Width64:
		return r.DecodeUint64(addr)
	default:
		return 0, EvaluationError(pkgName, "decode_word", fmt.Sprintf("unsupported pointer width %d", width), nil)
	}
}
