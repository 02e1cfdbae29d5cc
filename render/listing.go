package render

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"v8-tagdecoder-go/v8/profile"
)

// ProfileEntry is one row of the profiles listing.
type ProfileEntry struct {
	profile.Layout
	Active bool `json:"active"`
}

// Profiles writes every profile of t, marking the one named active.
// Profiles with unresolvable constants are reported and skipped.
func (r *Renderer) Profiles(t *profile.Table, active string) error {
	var entries []ProfileEntry
	for _, v := range t.Versions() {
		layout, err := t.Layout(t.Resolve(v))
		if err != nil {
			r.Error(r.w, fmt.Sprintf("profile %q", v), err)
			continue
		}
		entries = append(entries, ProfileEntry{Layout: layout, Active: t.Resolve(active) == t.Resolve(v)})
	}

	switch r.format {
	case FormatJSON:
		encoder := json.NewEncoder(r.w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	case FormatCBOR:
		return cbor.NewEncoder(r.w).Encode(entries)
	}
	for _, e := range entries {
		marker := " "
		if e.Active {
			marker = r.paint("*", "2", true)
		}
		fmt.Fprintf(r.w, "%s %s - %s\n", marker, r.bold(e.Version), e.VersionNote)
		fmt.Fprintf(r.w, "    SMI_TAG_MASK=0x%x SMI_TAG=0x%x SMI_SHIFT_SIZE=%d HEAP_OBJECT_TAG_MASK=0x%x HEAP_OBJECT_TAG=0x%x\n",
			e.SmiTagMask, e.SmiTag, e.SmiShiftSize, e.HeapObjectTagMask, e.HeapObjectTag)
	}
	return nil
}

// Settings writes name = value pairs.
func (r *Renderer) Settings(pairs [][2]string) error {
	switch r.format {
	case FormatJSON, FormatCBOR:
		m := make(map[string]string, len(pairs))
		for _, p := range pairs {
			m[p[0]] = p[1]
		}
		if r.format == FormatCBOR {
			return cbor.NewEncoder(r.w).Encode(m)
		}
		encoder := json.NewEncoder(r.w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(m)
	}
	for _, p := range pairs {
		fmt.Fprintf(r.w, "%s = %s\n", r.bold(p[0]), p[1])
	}
	return nil
}
