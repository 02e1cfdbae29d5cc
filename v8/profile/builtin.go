package profile

// Builtin returns a new table holding the profiles shipped with the tool.
// Adding a version only means adding an entry here.
func Builtin() *Table {
	t, err := NewTable(
		NewProfile(DefaultVersion, "Default - CONFIGURE FOR YOUR V8 VERSION!", map[Name]uint64{
			HeapObjectTagMask: 1,
			HeapObjectTag:     1,
			SmiTagMask:        1,
			SmiTag:            0,
			SmiShiftSize:      1,
		}),
		NewProfile("12.5.0", "Constants for V8 ~12.5.0", map[Name]uint64{
			HeapObjectTagMask: 1,
			HeapObjectTag:     1,
			SmiTagMask:        1,
			SmiTag:            0,
			SmiShiftSize:      1,
		}),
		// x64 builds without pointer compression keep 32-bit Smis in the
		// upper half of the word.
		NewProfile("x64-nocompress", "V8 x64 without pointer compression (31-bit Smi shift + 1 tag bit)", map[Name]uint64{
			SmiShiftSize: 32,
		}),
	)
	if err != nil {
		panic(err)
	}
	return t
}
