package serializer

import (
	"bytes"
	"encoding/gob"
)

// NewGOBEncoder creates a new object encoder using Go's binary gob format
func NewGOBEncoder() IObjectEncoder {
	return &gobEncoderImpl{}
}

// gobEncoderImpl implements the IObjectEncoder interface using gob encoding.
// Every value is encoded with its own gob stream, so type descriptions are
// repeated per value.
type gobEncoderImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IObjectEncoder)
// --------------------------------------------------------------------------

func (g gobEncoderImpl) Name() string {
	return "gob"
}

func (g gobEncoderImpl) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobEncoderImpl) Unmarshal(b []byte, v any) error {
	buf := bytes.NewBuffer(b)
	dec := gob.NewDecoder(buf)
	return dec.Decode(v)
}
