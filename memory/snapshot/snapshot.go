// Package snapshot serves memory reads from regions dumped to disk, so values
// can be decoded without a live process.
package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"v8-tagdecoder-go/config"
	"v8-tagdecoder-go/v8/common"
)

const pkgName = "snapshot"

// Compression of a region file, chosen from its extension.
type Compression byte

const (
	NoCompression Compression = 0x0
	Snappy        Compression = 0x1
	Zstd          Compression = 0x4
)

// CompressionFor picks the compression from a file name.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".snappy", ".sz":
		return Snappy
	case ".zst", ".zstd":
		return Zstd
	default:
		return NoCompression
	}
}

func decompress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case Snappy:
		return snappy.Decode(nil, data)
	case Zstd:
		reader, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return io.ReadAll(reader)
	default:
		return data, nil
	}
}

// Region is a contiguous range of target memory starting at Base.
type Region struct {
	Base uint64
	Path string
	r    io.ReaderAt
	size int64
}

// NewRegion maps data at base.
func NewRegion(base uint64, data []byte) *Region {
	return &Region{Base: base, r: bytes.NewReader(data), size: int64(len(data))}
}

// Open loads a region file and maps it at base.
func Open(base uint64, path string) (*Region, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read snapshot %s: %w", path, err)
	}
	c := CompressionFor(path)
	data, err := decompress(c, raw)
	if err != nil {
		return nil, fmt.Errorf("cannot decompress snapshot %s: %w", path, err)
	}
	config.Log.Debugf("loaded snapshot %s at %s (%d bytes, compression %d)", path, common.Hex(base), len(data), c)
	region := NewRegion(base, data)
	region.Path = path
	if err := region.validate(); err != nil {
		return nil, err
	}
	return region, nil
}

// validate rejects regions whose end does not fit in 64 bits.
func (r *Region) validate() error {
	if uint64(r.size) > math.MaxUint64-r.Base {
		return fmt.Errorf("snapshot %s at %s: %d bytes run past the end of the address space",
			r.Path, common.Hex(r.Base), r.size)
	}
	return nil
}

// Size returns the number of mapped bytes.
func (r *Region) Size() int64 { return r.size }

// End returns the first address after the region.
func (r *Region) End() uint64 { return r.Base + uint64(r.size) }

// Contains reports whether [addr, addr+length) lies inside the region.
func (r *Region) Contains(addr uint64, length uint32) bool {
	if addr < r.Base {
		return false
	}
	off := addr - r.Base
	return off <= uint64(r.size) && uint64(length) <= uint64(r.size)-off
}

// ReadMemory implements common.MemoryReader.
func (r *Region) ReadMemory(addr uint64, length uint32) ([]byte, error) {
	if !r.Contains(addr, length) {
		return nil, common.MemoryAccessError(pkgName, "read", addr,
			fmt.Errorf("%d bytes outside region [%s, %s)", length, common.Hex(r.Base), common.Hex(r.End())))
	}
	buf := make([]byte, length)
	sr := io.NewSectionReader(r.r, int64(addr-r.Base), int64(length))
	if _, err := io.ReadFull(sr, buf); err != nil {
		return nil, common.MemoryAccessError(pkgName, "read", addr, err)
	}
	return buf, nil
}

// Set is a collection of non-overlapping regions.
type Set struct {
	regions []*Region
}

// NewSet builds a set. Overlapping regions are rejected.
func NewSet(regions ...*Region) (*Set, error) {
	s := &Set{regions: append([]*Region(nil), regions...)}
	for _, r := range s.regions {
		if err := r.validate(); err != nil {
			return nil, err
		}
	}
	sort.Slice(s.regions, func(i, j int) bool { return s.regions[i].Base < s.regions[j].Base })
	for i := 1; i < len(s.regions); i++ {
		prev, cur := s.regions[i-1], s.regions[i]
		if cur.Base < prev.End() {
			return nil, fmt.Errorf("snapshot regions overlap: %s at %s and %s at %s",
				prev.Path, common.Hex(prev.Base), cur.Path, common.Hex(cur.Base))
		}
	}
	return s, nil
}

// Regions returns the regions ordered by base address.
func (s *Set) Regions() []*Region { return s.regions }

// ReadMemory implements common.MemoryReader. A read must fall entirely within
// one region.
func (s *Set) ReadMemory(addr uint64, length uint32) ([]byte, error) {
	i := sort.Search(len(s.regions), func(i int) bool { return s.regions[i].End() > addr })
	if i < len(s.regions) && s.regions[i].Contains(addr, length) {
		return s.regions[i].ReadMemory(addr, length)
	}
	return nil, common.MemoryAccessError(pkgName, "read", addr,
		fmt.Errorf("%d bytes not covered by any snapshot region", length))
}

// ParseRegionArg splits a "BASE:PATH" command line value. BASE is hex.
func ParseRegionArg(arg string) (uint64, string, error) {
	base, path, ok := strings.Cut(arg, ":")
	if !ok || path == "" {
		return 0, "", fmt.Errorf("snapshot %q: expected BASE:PATH", arg)
	}
	addr, err := config.ParseHex(base)
	if err != nil {
		return 0, "", fmt.Errorf("snapshot %q: %w", arg, err)
	}
	return addr, path, nil
}
