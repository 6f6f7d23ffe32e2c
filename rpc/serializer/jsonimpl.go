package serializer

import (
	"encoding/json"
)

// NewJSONEncoder creates a new object encoder using json encoding
func NewJSONEncoder() IObjectEncoder {
	return &jsonEncoderImpl{}
}

// jsonEncoderImpl implements the IObjectEncoder interface using json encoding
type jsonEncoderImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IObjectEncoder)
// --------------------------------------------------------------------------

func (j jsonEncoderImpl) Name() string {
	return "json"
}

func (j jsonEncoderImpl) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (j jsonEncoderImpl) Unmarshal(b []byte, v any) error {
	return json.Unmarshal(b, v)
}
