// Package tagged classifies raw machine words under a V8 tagging profile and
// decompresses 32-bit compressed pointers against a heap cage base.
package tagged

import (
	"fmt"

	"v8-tagdecoder-go/v8/common"
	"v8-tagdecoder-go/v8/profile"
)

const pkgName = "tagged"

// Kind is the outcome of classifying a word.
type Kind int

const (
	KindSmi Kind = iota
	KindHeapObject
	KindUnrecognized
)

func (k Kind) String() string {
	switch k {
	case KindSmi:
		return "smi"
	case KindHeapObject:
		return "heap_object"
	case KindUnrecognized:
		return "unrecognized"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a classified word. It is one of *Smi, *HeapObjectPointer or
// *Unrecognized.
type Value interface {
	Kind() Kind
	Raw() uint64
}

// Smi is a small integer stored directly in the word.
type Smi struct {
	RawValue uint64 `json:"raw"`
	Shifted  uint64 `json:"raw_shifted"`
	Value    int64  `json:"value"`
}

func (*Smi) Kind() Kind    { return KindSmi }
func (s *Smi) Raw() uint64 { return s.RawValue }

// HeapObjectPointer is a tagged pointer into the heap. FirstWord is nil when
// the object's first word could not be read; ReadErr then says why.
type HeapObjectPointer struct {
	RawValue        uint64  `json:"raw"`
	UntaggedAddress uint64  `json:"untagged_address"`
	FirstWord       *uint64 `json:"first_word,omitempty"`
	ReadErr         error   `json:"-"`
}

func (*HeapObjectPointer) Kind() Kind    { return KindHeapObject }
func (h *HeapObjectPointer) Raw() uint64 { return h.RawValue }

// Unrecognized matches neither tag pattern of the active profile.
type Unrecognized struct {
	RawValue uint64 `json:"raw"`
}

func (*Unrecognized) Kind() Kind    { return KindUnrecognized }
func (u *Unrecognized) Raw() uint64 { return u.RawValue }

// Interpreter classifies words under one resolved layout. Memory is only read
// to fetch the first word of a heap object.
type Interpreter struct {
	layout profile.Layout
	words  *common.WordReader
}

// NewInterpreter creates an interpreter. A nil memory reader behaves like
// common.NoMemory.
func NewInterpreter(layout profile.Layout, memory common.MemoryReader) *Interpreter {
	return &Interpreter{layout: layout, words: common.NewWordReader(memory)}
}

// Layout returns the constants the interpreter classifies with.
func (in *Interpreter) Layout() profile.Layout { return in.layout }

// Interpret classifies raw as a word of width bytes.
//
// The Smi pattern is checked first, then the heap object pattern. A failed
// read of a heap object's first word does not fail the call; the error is
// stored on the result instead.
func (in *Interpreter) Interpret(raw uint64, width int) (Value, error) {
	if !common.ValidWidth(width) {
		return nil, common.EvaluationError(pkgName, "interpret",
			fmt.Sprintf("unsupported pointer width %d bytes", width), nil)
	}
	all := common.WidthMask(width)
	if raw&^all != 0 {
		return nil, common.EvaluationError(pkgName, "interpret",
			fmt.Sprintf("value 0x%x does not fit in %d bits", raw, width*8), nil)
	}

	l := in.layout
	if raw&l.SmiTagMask == l.SmiTag {
		smi, err := in.decodeSmi(raw, width)
		if err != nil {
			return nil, err
		}
		return smi, nil
	}
	if raw&l.HeapObjectTagMask == l.HeapObjectTag {
		return in.decodeHeapObject(raw, width), nil
	}
	return &Unrecognized{RawValue: raw}, nil
}

func (in *Interpreter) decodeSmi(raw uint64, width int) (*Smi, error) {
	shift := in.layout.SmiShiftSize
	bits := uint64(width) * 8
	if shift >= bits {
		return nil, common.EvaluationError(pkgName, "decode_smi",
			fmt.Sprintf("SMI_SHIFT_SIZE %d leaves no payload in a %d-bit word", shift, bits), nil)
	}
	shifted := raw >> shift
	// Sign-extend the payload field from its top bit.
	pad := 64 - (bits - shift)
	return &Smi{
		RawValue: raw,
		Shifted:  shifted,
		Value:    int64(shifted<<pad) >> pad,
	}, nil
}

func (in *Interpreter) decodeHeapObject(raw uint64, width int) *HeapObjectPointer {
	h := &HeapObjectPointer{
		RawValue:        raw,
		UntaggedAddress: raw &^ in.layout.HeapObjectTagMask & common.WidthMask(width),
	}
	word, err := in.words.DecodeWord(h.UntaggedAddress, width)
	if err != nil {
		h.ReadErr = err
		return h
	}
	h.FirstWord = &word
	return h
}
