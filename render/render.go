// Package render turns decoder results into text, JSON or CBOR.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/muesli/termenv"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"v8-tagdecoder-go/v8/common"
	"v8-tagdecoder-go/v8/profile"
	"v8-tagdecoder-go/v8/tagged"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

var Formats = []string{FormatText, FormatJSON, FormatCBOR}

// Report is the structured form of one command's result.
type Report struct {
	Command         string             `json:"command"`
	Profile         string             `json:"profile"`
	ProfileNote     string             `json:"profile_note"`
	PointerWidth    int                `json:"pointer_width"`
	Input           uint64             `json:"input"`
	Kind            string             `json:"kind"`
	SmiValue        *int64             `json:"smi_value,omitempty"`
	RawShifted      *uint64            `json:"raw_shifted,omitempty"`
	UntaggedAddress *uint64            `json:"untagged_address,omitempty"`
	FirstWord       *uint64            `json:"first_word,omitempty"`
	Diagnostics     []string           `json:"diagnostics,omitempty"`
	Decompression   *DecompressionInfo `json:"decompression,omitempty"`
}

// DecompressionInfo holds the intermediate values of a decompression.
type DecompressionInfo struct {
	FieldAddress      uint64 `json:"field_address"`
	CompressedPayload uint32 `json:"compressed_payload"`
	CageBase          uint64 `json:"cage_base"`
	Decompressed      uint64 `json:"decompressed"`
}

// NewValueReport builds the report for a classified word.
func NewValueReport(layout profile.Layout, width int, v tagged.Value) *Report {
	rep := &Report{
		Command:      "check-value",
		Profile:      layout.Version,
		ProfileNote:  layout.VersionNote,
		PointerWidth: width,
		Input:        v.Raw(),
		Kind:         v.Kind().String(),
	}
	switch val := v.(type) {
	case *tagged.Smi:
		rep.SmiValue = &val.Value
		rep.RawShifted = &val.Shifted
	case *tagged.HeapObjectPointer:
		rep.UntaggedAddress = &val.UntaggedAddress
		rep.FirstWord = val.FirstWord
		if val.ReadErr != nil {
			rep.Diagnostics = append(rep.Diagnostics, readErrorText(val.ReadErr))
		}
	}
	return rep
}

// NewDecompressionReport builds the report for a decompression.
func NewDecompressionReport(layout profile.Layout, d *tagged.Decompression) *Report {
	rep := NewValueReport(layout, common.Width64, d.Value)
	rep.Command = "decompress"
	rep.Decompression = &DecompressionInfo{
		FieldAddress:      d.FieldAddress,
		CompressedPayload: d.Payload,
		CageBase:          d.CageBase,
		Decompressed:      d.Decompressed,
	}
	return rep
}

func readErrorText(err error) string {
	if common.IsMemoryAccessError(err) {
		return "unreadable memory"
	}
	return "error reading memory: " + common.Describe(err)
}

// Renderer writes reports to w in one format.
type Renderer struct {
	w       io.Writer
	format  string
	out     *termenv.Output
	printer *message.Printer
}

// New creates a renderer. Colors are only used for text output, and only
// when color is true and w looks like a terminal.
func New(w io.Writer, format string, color bool) *Renderer {
	var out *termenv.Output
	if color {
		out = termenv.NewOutput(w)
	} else {
		out = termenv.NewOutput(w, termenv.WithProfile(termenv.Ascii))
	}
	return &Renderer{
		w:       w,
		format:  format,
		out:     out,
		printer: message.NewPrinter(language.English),
	}
}

func (r *Renderer) paint(s, color string, bold bool) string {
	st := r.out.String(s).Foreground(r.out.Color(color))
	if bold {
		st = st.Bold()
	}
	return st.String()
}

func (r *Renderer) bold(s string) string {
	return r.out.String(s).Bold().String()
}

// decimal groups digits, e.g. 1,234,567.
func (r *Renderer) decimal(v any) string {
	return r.printer.Sprintf("%d", v)
}

// Report writes rep in the renderer's format.
func (r *Renderer) Report(rep *Report) error {
	switch r.format {
	case FormatJSON:
		encoder := json.NewEncoder(r.w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rep)
	case FormatCBOR:
		return cbor.NewEncoder(r.w).Encode(rep)
	default:
		_, err := io.WriteString(r.w, r.text(rep))
		return err
	}
}

func (r *Renderer) text(rep *Report) string {
	var lines []string
	indent := ""
	if d := rep.Decompression; d != nil {
		lines = append(lines,
			r.paint("Decompressing V8 pointer:", "4", true),
			fmt.Sprintf("Field Address             : %s", r.bold(common.Hex(d.FieldAddress))),
			fmt.Sprintf("  Compressed Value (32-bit): %s (Decimal: %s)", r.bold(common.Hex(uint64(d.CompressedPayload))), r.decimal(d.CompressedPayload)),
			fmt.Sprintf("Heap Cage Base            : %s", r.bold(common.Hex(d.CageBase))),
			fmt.Sprintf("Decompressed Tagged Addr  : %s", r.bold(common.Hex(d.Decompressed))),
			r.paint(fmt.Sprintf("--- Interpreting decompressed address (%s): ---", common.Hex(d.Decompressed)), "4", false),
		)
		indent = "  "
	}
	lines = append(lines, fmt.Sprintf("%sInput Value: %s (Decimal: %s)", indent, r.paint(common.Hex(rep.Input), "4", true), r.decimal(rep.Input)))

	switch rep.Kind {
	case tagged.KindSmi.String():
		lines = append(lines,
			"  Type: "+r.paint("Smi (Small Integer)", "2", false),
			fmt.Sprintf("  Interpreted Int Value: %s (Raw shifted: %s)", r.paint(r.decimal(*rep.SmiValue), "2", true), common.Hex(*rep.RawShifted)),
		)
	case tagged.KindHeapObject.String():
		lines = append(lines,
			"  Type: "+r.paint("Tagged HeapObject Pointer", "6", false),
			"  Untagged Address: "+r.paint(common.Hex(*rep.UntaggedAddress), "6", true),
		)
		if rep.FirstWord != nil {
			lines = append(lines, fmt.Sprintf("  Points to (first %d bytes): %s (Potential Map Ptr)", rep.PointerWidth, r.paint(common.Hex(*rep.FirstWord), "5", false)))
		}
		for _, d := range rep.Diagnostics {
			lines = append(lines, "  Points to: "+r.paint("<"+d+">", "1", false))
		}
	default:
		lines = append(lines, "  Type: "+r.paint("Unknown V8 Value Format", "3", false))
	}
	return strings.Join(lines, "\n") + "\n"
}

// Note writes the active profile line shown before results.
func (r *Renderer) Note(layout profile.Layout) {
	if r.format != FormatText {
		return
	}
	fmt.Fprintf(r.w, "Active V8 profile: %s (%s)\n", r.bold(layout.Version), layout.VersionNote)
}

// Error writes err as a single red line.
func (r *Renderer) Error(w io.Writer, context string, err error) {
	msg := context + ": " + common.Describe(err)
	switch {
	case common.IsConfigurationError(err):
		msg = "Configuration error: " + msg
	case common.IsEvaluationError(err):
		msg = "Evaluation error: " + msg
	case common.IsMemoryAccessError(err):
		msg = "Memory access error: " + msg
	}
	fmt.Fprintln(w, r.paint(msg, "1", false))
}
