// Package serializer provides the tagged value codec used for RPC arguments
// and results. Every value is written as a one byte type code followed by a
// type specific payload, so a receiver can decode values without knowing the
// signature of the called method.
//
// Key Components:
//
//   - IValueCodec: Core interface to encode and decode tagged values.
//
//   - binaryCodecImpl: The big-endian implementation of the type code table
//     (NULL=0x00 ... BYTE_BUFFER=0x15). Go values map to codes as follows:
//     nil to NULL, int8/uint8 to BYTE, int16 to SHORT, int32/uint16 to INT,
//     int/int64/uint32 to LONG, float32 to FLOAT, float64 to DOUBLE, []byte to
//     BINARY, slices and arrays to SEQUENCE, maps to MAP, errors to EXCEPTION.
//     StreamRef, Enum, RemoteRef, Event, TypeRef and Void have codes of their own.
//
//   - IObjectEncoder: Encodes the body of VALUE tagged values. Types must be
//     registered by name with RegisterValue before they can be sent or received.
//     jsonEncoderImpl uses encoding/json, gobEncoderImpl uses encoding/gob.
//
// Decoding:
//
//	Integers decode to the go type of their code (a LONG always decodes to
//	int64). Sequences with a known element type decode to typed slices
//	([]string, []int64, []T for registered values), others to []any. Maps with
//	only string keys decode to map[string]any, others to map[any]any.
//	REFERENCE tags are rejected with ErrUnsupportedType.
//
// Thread Safety:
//
//	The codec is safe for concurrent use. RegisterValue may be called while
//	other goroutines encode or decode.
package serializer
