package tagged

import (
	"encoding/binary"
	"fmt"
	"testing"

	"v8-tagdecoder-go/v8/common"
	"v8-tagdecoder-go/v8/profile"
)

// fakeMemory is a sparse byte map that counts reads.
type fakeMemory struct {
	bytes map[uint64]byte
	reads []uint64
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{bytes: make(map[uint64]byte)}
}

func (m *fakeMemory) put64(addr, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	for i, b := range buf {
		m.bytes[addr+uint64(i)] = b
	}
}

func (m *fakeMemory) put32(addr uint64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	for i, b := range buf {
		m.bytes[addr+uint64(i)] = b
	}
}

func (m *fakeMemory) ReadMemory(addr uint64, length uint32) ([]byte, error) {
	m.reads = append(m.reads, addr)
	out := make([]byte, length)
	for i := range out {
		b, ok := m.bytes[addr+uint64(i)]
		if !ok {
			return nil, common.MemoryAccessError("fake", "read", addr, fmt.Errorf("unmapped"))
		}
		out[i] = b
	}
	return out, nil
}

func layoutFor(t *testing.T, version string) profile.Layout {
	t.Helper()
	table := profile.Builtin()
	l, err := table.Layout(table.Resolve(version))
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestInterpretSmi(t *testing.T) {
	cases := []struct {
		version string
		raw     uint64
		width   int
		want    int64
		shifted uint64
	}{
		{"default", 0x2, 8, 1, 0x1},
		{"default", 0x0, 8, 0, 0x0},
		{"default", 0xFFFFFFFFFFFFFFFE, 8, -1, 0x7FFFFFFFFFFFFFFF},
		{"default", 0x8000000000000000, 8, -(1 << 62), 0x4000000000000000},
		{"default", 0x7FFFFFFFFFFFFFFE, 8, (1 << 62) - 1, 0x3FFFFFFFFFFFFFFF},
		{"default", 0xFFFFFFFE, 4, -1, 0x7FFFFFFF},
		{"default", 0x7FFFFFFE, 4, 0x3FFFFFFF, 0x3FFFFFFF},
		{"default", 0x80000000, 4, -(1 << 30), 0x40000000},
		{"12.5.0", 0x54, 8, 42, 0x2A},
		{"x64-nocompress", 0x0000000500000000, 8, 5, 0x5},
		{"x64-nocompress", 0xFFFFFFFF00000000, 8, -1, 0xFFFFFFFF},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/%#x/%d", tc.version, tc.raw, tc.width), func(t *testing.T) {
			mem := newFakeMemory()
			in := NewInterpreter(layoutFor(t, tc.version), mem)
			v, err := in.Interpret(tc.raw, tc.width)
			if err != nil {
				t.Fatal(err)
			}
			smi, ok := v.(*Smi)
			if !ok {
				t.Fatalf("got %T, want *Smi", v)
			}
			if smi.Value != tc.want || smi.Shifted != tc.shifted {
				t.Fatalf("Smi = %d (shifted %#x), want %d (shifted %#x)", smi.Value, smi.Shifted, tc.want, tc.shifted)
			}
			if len(mem.reads) != 0 {
				t.Fatalf("Smi decoding read memory at %v", mem.reads)
			}
		})
	}
}

func TestInterpretHeapObjectUnreadable(t *testing.T) {
	in := NewInterpreter(layoutFor(t, "default"), nil)
	v, err := in.Interpret(0xFFFFFFFFFFFFFFF1, 8)
	if err != nil {
		t.Fatal(err)
	}
	h, ok := v.(*HeapObjectPointer)
	if !ok {
		t.Fatalf("got %T, want *HeapObjectPointer", v)
	}
	if h.UntaggedAddress != 0xFFFFFFFFFFFFFFF0 {
		t.Fatalf("untagged = %#x", h.UntaggedAddress)
	}
	if h.FirstWord != nil {
		t.Fatalf("first word = %#x, want none", *h.FirstWord)
	}
	if !common.IsMemoryAccessError(h.ReadErr) {
		t.Fatalf("ReadErr = %v, want memory access error", h.ReadErr)
	}
}

func TestInterpretHeapObjectReadsFirstWord(t *testing.T) {
	mem := newFakeMemory()
	mem.put64(0x7f0000001000, 0x00003a5c00040001)
	in := NewInterpreter(layoutFor(t, "default"), mem)

	v, err := in.Interpret(0x7f0000001001, 8)
	if err != nil {
		t.Fatal(err)
	}
	h := v.(*HeapObjectPointer)
	if h.FirstWord == nil || *h.FirstWord != 0x00003a5c00040001 {
		t.Fatalf("first word = %v, want 0x3a5c00040001", h.FirstWord)
	}
	if h.ReadErr != nil {
		t.Fatalf("ReadErr = %v", h.ReadErr)
	}
	if len(mem.reads) != 1 || mem.reads[0] != 0x7f0000001000 {
		t.Fatalf("reads = %v, want exactly one at the untagged address", mem.reads)
	}
}

func TestInterpretHeapObject32BitReadsFourBytes(t *testing.T) {
	mem := newFakeMemory()
	mem.put32(0x1000, 0xdeadbeef)
	in := NewInterpreter(layoutFor(t, "default"), mem)

	v, err := in.Interpret(0x1001, 4)
	if err != nil {
		t.Fatal(err)
	}
	h := v.(*HeapObjectPointer)
	if h.FirstWord == nil || *h.FirstWord != 0xdeadbeef {
		t.Fatalf("first word = %v, want 0xdeadbeef", h.FirstWord)
	}
}

func TestInterpretUnrecognized(t *testing.T) {
	layout := profile.Layout{
		SmiTagMask:        3,
		SmiTag:            0,
		SmiShiftSize:      2,
		HeapObjectTagMask: 3,
		HeapObjectTag:     1,
	}
	mem := newFakeMemory()
	in := NewInterpreter(layout, mem)
	for _, raw := range []uint64{0x2, 0x3, 0xFFFFFFFFFFFFFFFE} {
		v, err := in.Interpret(raw, 8)
		if err != nil {
			t.Fatal(err)
		}
		if v.Kind() != KindUnrecognized || v.Raw() != raw {
			t.Fatalf("Interpret(%#x) = %s, want unrecognized", raw, v.Kind())
		}
	}
	if len(mem.reads) != 0 {
		t.Fatalf("unrecognized values read memory at %v", mem.reads)
	}
}

func TestClassificationIsTotal(t *testing.T) {
	layouts := map[string]profile.Layout{
		"default": layoutFor(t, "default"),
		"two-bit": {SmiTagMask: 1, SmiTag: 0, SmiShiftSize: 1, HeapObjectTagMask: 3, HeapObjectTag: 1},
	}
	values := []uint64{0, 1, 2, 3, 0x21, 0xFFFFFFFF, 0x555553000021, 0x8000000000000000, 0xFFFFFFFFFFFFFFFF}
	for name, layout := range layouts {
		in := NewInterpreter(layout, nil)
		for _, raw := range values {
			v, err := in.Interpret(raw, 8)
			if err != nil {
				t.Fatalf("%s: Interpret(%#x): %v", name, raw, err)
			}
			smi := raw&layout.SmiTagMask == layout.SmiTag
			heap := !smi && raw&layout.HeapObjectTagMask == layout.HeapObjectTag
			want := KindUnrecognized
			switch {
			case smi:
				want = KindSmi
			case heap:
				want = KindHeapObject
			}
			if v.Kind() != want {
				t.Errorf("%s: Interpret(%#x) = %s, want %s", name, raw, v.Kind(), want)
			}
		}
	}
}

func TestSmiRoundTrip(t *testing.T) {
	in := NewInterpreter(layoutFor(t, "default"), nil)
	for _, width := range []int{4, 8} {
		all := common.WidthMask(width)
		for _, raw := range []uint64{0, 2, 4, 0x7FFFFFFE, 0x80000000, 0xFFFFFFFE, 0x123456789ABCDEF0, 0xFFFFFFFFFFFFFFFE} {
			if raw&^all != 0 {
				continue
			}
			v, err := in.Interpret(raw, width)
			if err != nil {
				t.Fatal(err)
			}
			smi := v.(*Smi)
			if got := uint64(smi.Value<<1) & all; got != raw {
				t.Errorf("width %d: %#x decoded to %d, re-encoded to %#x", width, raw, smi.Value, got)
			}
		}
	}
}

func TestInterpretEvaluationErrors(t *testing.T) {
	cases := []struct {
		name    string
		version string
		raw     uint64
		width   int
	}{
		{"value wider than pointer", "default", 0x100000000, 4},
		{"unsupported width", "default", 0x2, 3},
		{"shift consumes whole word", "x64-nocompress", 0x2, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mem := newFakeMemory()
			in := NewInterpreter(layoutFor(t, tc.version), mem)
			v, err := in.Interpret(tc.raw, tc.width)
			if !common.IsEvaluationError(err) {
				t.Fatalf("err = %v, want evaluation error", err)
			}
			if v != nil {
				t.Fatalf("value = %v, want nil", v)
			}
			if len(mem.reads) != 0 {
				t.Fatalf("reads = %v, want none", mem.reads)
			}
		})
	}
}
