// Package profile holds the per-version V8 tagging constants.
//
// A Table is built once at startup and never mutated afterwards, so it can be
// shared by any number of readers without locking.
package profile

import (
	"fmt"
	"sort"

	"v8-tagdecoder-go/v8/common"
)

const pkgName = "profile"

// DefaultVersion names the fallback profile every Table must contain.
const DefaultVersion = "default"

// Name identifies a single tagging constant inside a profile.
type Name string

const (
	SmiTagMask        Name = "SMI_TAG_MASK"
	SmiTag            Name = "SMI_TAG"
	SmiShiftSize      Name = "SMI_SHIFT_SIZE"
	HeapObjectTagMask Name = "HEAP_OBJECT_TAG_MASK"
	HeapObjectTag     Name = "HEAP_OBJECT_TAG"
)

// Names lists the constants the interpreter needs, in display order.
var Names = []Name{SmiTagMask, SmiTag, SmiShiftSize, HeapObjectTagMask, HeapObjectTag}

// Profile is one named set of tagging constants. A profile may leave some
// constants out; lookups then fall back to the default profile.
type Profile struct {
	version   string
	note      string
	constants map[Name]uint64
}

// NewProfile creates a profile. The constants map is copied.
func NewProfile(version, note string, constants map[Name]uint64) *Profile {
	c := make(map[Name]uint64, len(constants))
	for k, v := range constants {
		c[k] = v
	}
	return &Profile{version: version, note: note, constants: c}
}

// Version returns the engine version identifier.
func (p *Profile) Version() string { return p.version }

// Note returns the descriptive label. It plays no part in classification.
func (p *Profile) Note() string { return p.note }

// Lookup returns the constant defined directly on this profile.
func (p *Profile) Lookup(name Name) (uint64, bool) {
	v, ok := p.constants[name]
	return v, ok
}

// Layout is a fully resolved profile: every constant the interpreter needs.
type Layout struct {
	Version           string `json:"version"`
	VersionNote       string `json:"version_note"`
	SmiTagMask        uint64 `json:"smi_tag_mask"`
	SmiTag            uint64 `json:"smi_tag"`
	SmiShiftSize      uint64 `json:"smi_shift_size"`
	HeapObjectTagMask uint64 `json:"heap_object_tag_mask"`
	HeapObjectTag     uint64 `json:"heap_object_tag"`
}

// Table maps version identifiers to profiles.
type Table struct {
	profiles map[string]*Profile
	fallback *Profile
}

// NewTable builds a table from profiles. One of them must be named
// DefaultVersion. Each profile's effective tag/mask pairs are checked for
// consistency and for overlap; constants that cannot be resolved are left for
// Constant to report.
func NewTable(profiles ...*Profile) (*Table, error) {
	t := &Table{profiles: make(map[string]*Profile, len(profiles))}
	for _, p := range profiles {
		if p == nil || p.version == "" {
			return nil, common.ConfigurationError(pkgName, "new_table", "profile without a version identifier")
		}
		if _, dup := t.profiles[p.version]; dup {
			return nil, common.ConfigurationError(pkgName, "new_table",
				fmt.Sprintf("duplicate profile %q", p.version))
		}
		t.profiles[p.version] = p
	}
	fallback, ok := t.profiles[DefaultVersion]
	if !ok {
		return nil, common.ConfigurationError(pkgName, "new_table",
			fmt.Sprintf("no %q profile registered", DefaultVersion))
	}
	t.fallback = fallback

	for _, p := range t.profiles {
		if err := t.validate(p); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) validate(p *Profile) error {
	smiMask, smiMaskOK := t.lookup(p, SmiTagMask)
	smiTag, smiTagOK := t.lookup(p, SmiTag)
	heapMask, heapMaskOK := t.lookup(p, HeapObjectTagMask)
	heapTag, heapTagOK := t.lookup(p, HeapObjectTag)

	if smiMaskOK && smiTagOK && smiTag&smiMask != smiTag {
		return common.ConfigurationError(pkgName, "validate",
			fmt.Sprintf("profile %q: SMI_TAG 0x%x has bits outside SMI_TAG_MASK 0x%x", p.version, smiTag, smiMask))
	}
	if heapMaskOK && heapTagOK && heapTag&heapMask != heapTag {
		return common.ConfigurationError(pkgName, "validate",
			fmt.Sprintf("profile %q: HEAP_OBJECT_TAG 0x%x has bits outside HEAP_OBJECT_TAG_MASK 0x%x", p.version, heapTag, heapMask))
	}
	// Some word matches both patterns unless the tags disagree on a bit
	// that both masks cover.
	if smiMaskOK && smiTagOK && heapMaskOK && heapTagOK && (smiTag^heapTag)&smiMask&heapMask == 0 {
		return common.ConfigurationError(pkgName, "validate",
			fmt.Sprintf("profile %q: Smi and HeapObject tag patterns overlap", p.version))
	}
	if shift, ok := t.lookup(p, SmiShiftSize); ok && shift >= 64 {
		return common.ConfigurationError(pkgName, "validate",
			fmt.Sprintf("profile %q: SMI_SHIFT_SIZE %d out of range", p.version, shift))
	}
	return nil
}

func (t *Table) lookup(p *Profile, name Name) (uint64, bool) {
	if v, ok := p.Lookup(name); ok {
		return v, true
	}
	return t.fallback.Lookup(name)
}

// Resolve returns the profile registered for version, or the default profile
// when the version is unknown. It never fails.
func (t *Table) Resolve(version string) *Profile {
	if p, ok := t.profiles[version]; ok {
		return p
	}
	return t.fallback
}

// Has reports whether version has its own profile.
func (t *Table) Has(version string) bool {
	_, ok := t.profiles[version]
	return ok
}

// Default returns the fallback profile.
func (t *Table) Default() *Profile { return t.fallback }

// Constant looks up name in p, then in the default profile. A constant
// missing from both is a configuration error.
func (t *Table) Constant(p *Profile, name Name) (uint64, error) {
	if p == nil {
		p = t.fallback
	}
	if v, ok := t.lookup(p, name); ok {
		return v, nil
	}
	return 0, common.ConfigurationError(pkgName, "constant",
		fmt.Sprintf("constant %q not found in profile %q or %q", name, p.version, DefaultVersion))
}

// Layout resolves every constant the interpreter needs for p.
func (t *Table) Layout(p *Profile) (Layout, error) {
	if p == nil {
		p = t.fallback
	}
	l := Layout{Version: p.version, VersionNote: p.note}
	if l.VersionNote == "" {
		l.VersionNote = t.fallback.note
	}
	fields := map[Name]*uint64{
		SmiTagMask:        &l.SmiTagMask,
		SmiTag:            &l.SmiTag,
		SmiShiftSize:      &l.SmiShiftSize,
		HeapObjectTagMask: &l.HeapObjectTagMask,
		HeapObjectTag:     &l.HeapObjectTag,
	}
	for _, name := range Names {
		v, err := t.Constant(p, name)
		if err != nil {
			return Layout{}, err
		}
		*fields[name] = v
	}
	return l, nil
}

// Versions returns all registered versions, default first, the rest sorted.
func (t *Table) Versions() []string {
	versions := make([]string, 0, len(t.profiles))
	for v := range t.profiles {
		if v != DefaultVersion {
			versions = append(versions, v)
		}
	}
	sort.Strings(versions)
	return append([]string{DefaultVersion}, versions...)
}
