package tagged

import (
	"v8-tagdecoder-go/v8/common"
)

// Decompression is the result of expanding one compressed field.
type Decompression struct {
	FieldAddress uint64 `json:"field_address"`
	Payload      uint32 `json:"compressed_payload"`
	CageBase     uint64 `json:"cage_base"`
	Decompressed uint64 `json:"decompressed"`
	Value        Value  `json:"value"`
}

// Decompress reads the 32-bit compressed pointer stored at fieldAddr, adds
// it to cageBase and classifies the result as a 64-bit word.
//
// A zero cage base is rejected before memory is touched. Failing to read the
// field fails the whole call.
func (in *Interpreter) Decompress(fieldAddr, cageBase uint64) (*Decompression, error) {
	if cageBase == 0 {
		return nil, common.ConfigurationError(pkgName, "decompress", "cage base not configured")
	}
	payload, err := in.words.DecodeUint32(fieldAddr)
	if err != nil {
		return nil, err
	}
	d := &Decompression{
		FieldAddress: fieldAddr,
		Payload:      payload,
		CageBase:     cageBase,
		Decompressed: cageBase + uint64(payload),
	}
	d.Value, err = in.Interpret(d.Decompressed, common.Width64)
	if err != nil {
		return nil, err
	}
	return d, nil
}
