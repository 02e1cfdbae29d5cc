package tagged

import (
	"testing"

	"v8-tagdecoder-go/v8/common"
)

func TestDecompress(t *testing.T) {
	mem := newFakeMemory()
	mem.put32(0x7ffd0000a010, 0x00000021)
	in := NewInterpreter(layoutFor(t, "default"), mem)

	d, err := in.Decompress(0x7ffd0000a010, 0x555553000000)
	if err != nil {
		t.Fatal(err)
	}
	if d.Payload != 0x21 {
		t.Fatalf("payload = %#x, want 0x21", d.Payload)
	}
	if d.Decompressed != 0x555553000021 {
		t.Fatalf("decompressed = %#x, want 0x555553000021", d.Decompressed)
	}
	h, ok := d.Value.(*HeapObjectPointer)
	if !ok {
		t.Fatalf("value = %T, want *HeapObjectPointer", d.Value)
	}
	if h.UntaggedAddress != 0x555553000020 {
		t.Fatalf("untagged = %#x, want 0x555553000020", h.UntaggedAddress)
	}
	// The object itself is not mapped in the fake: degraded, not failed.
	if h.FirstWord != nil || !common.IsMemoryAccessError(h.ReadErr) {
		t.Fatalf("first word = %v, err = %v", h.FirstWord, h.ReadErr)
	}
}

func TestDecompressZeroCageBase(t *testing.T) {
	mem := newFakeMemory()
	mem.put32(0x1000, 0x21)
	in := NewInterpreter(layoutFor(t, "default"), mem)

	_, err := in.Decompress(0x1000, 0)
	if !common.IsConfigurationError(err) {
		t.Fatalf("err = %v, want configuration error", err)
	}
	if len(mem.reads) != 0 {
		t.Fatalf("reads = %v, want none before the cage base check", mem.reads)
	}
}

func TestDecompressUnreadableField(t *testing.T) {
	in := NewInterpreter(layoutFor(t, "default"), newFakeMemory())
	_, err := in.Decompress(0x1000, 0x555553000000)
	if !common.IsMemoryAccessError(err) {
		t.Fatalf("err = %v, want memory access error", err)
	}
}

func TestDecompressWraps(t *testing.T) {
	mem := newFakeMemory()
	mem.put32(0x1000, 0x20)
	in := NewInterpreter(layoutFor(t, "default"), mem)

	d, err := in.Decompress(0x1000, 0xFFFFFFFFFFFFFFF0)
	if err != nil {
		t.Fatal(err)
	}
	if d.Decompressed != 0x10 {
		t.Fatalf("decompressed = %#x, want 0x10", d.Decompressed)
	}
	smi, ok := d.Value.(*Smi)
	if !ok || smi.Value != 8 {
		t.Fatalf("value = %#v, want Smi 8", d.Value)
	}
}
