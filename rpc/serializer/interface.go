package serializer

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/planet/rpc/wire"
)

// ErrUnsupportedType is returned when a value has no tagged encoding
var ErrUnsupportedType = errors.New("unsupported value type")

// ErrUnknownCode is returned when a tag byte is not in the type code table
var ErrUnknownCode = errors.New("unknown type code")

// IValueCodec encodes and decodes tagged values. Every encoded value starts
// with its one byte TypeCode followed by the type specific payload.
type IValueCodec interface {
	// Encode writes the tag of v followed by its payload
	Encode(w *wire.Writer, v any) error
	// Decode reads one tagged value
	Decode(r *wire.Reader) (any, error)
	// RegisterValue makes values of the type of prototype encodable as VALUE
	// under name. Decoded values have the same (non pointer) type.
	RegisterValue(name string, prototype any) error
}

// IObjectEncoder encodes the body of VALUE tagged values
type IObjectEncoder interface {
	// Name returns a short name of the encoding ("json", "gob")
	Name() string
	// Marshal encodes v
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes b into the value pointed to by v
	Unmarshal(b []byte, v any) error
}

// --------------------------------------------------------------------------
// Type Codes
// --------------------------------------------------------------------------

// TypeCode is the tag preceding every encoded value
type TypeCode byte

const (
	CodeNull       TypeCode = 0x00
	CodeByte       TypeCode = 0x01
	CodeShort      TypeCode = 0x02
	CodeInt        TypeCode = 0x03
	CodeLong       TypeCode = 0x04
	CodeFloat      TypeCode = 0x05
	CodeDouble     TypeCode = 0x06
	CodeBoolean    TypeCode = 0x07
	CodeString     TypeCode = 0x08
	CodeBinary     TypeCode = 0x09
	CodeEnum       TypeCode = 0x0A
	CodeException  TypeCode = 0x0B
	CodeType       TypeCode = 0x0C
	CodeRemote     TypeCode = 0x0D
	CodeValue      TypeCode = 0x0E
	CodeEvent      TypeCode = 0x0F
	CodeStream     TypeCode = 0x10
	CodeSequence   TypeCode = 0x11
	CodeVoid       TypeCode = 0x12
	CodeReference  TypeCode = 0x13
	CodeMap        TypeCode = 0x14
	CodeByteBuffer TypeCode = 0x15
)

var codeNames = map[TypeCode]string{
	CodeNull:       "NULL",
	CodeByte:       "BYTE",
	CodeShort:      "SHORT",
	CodeInt:        "INT",
	CodeLong:       "LONG",
	CodeFloat:      "FLOAT",
	CodeDouble:     "DOUBLE",
	CodeBoolean:    "BOOLEAN",
	CodeString:     "STRING",
	CodeBinary:     "BINARY",
	CodeEnum:       "ENUM",
	CodeException:  "EXCEPTION",
	CodeType:       "TYPE",
	CodeRemote:     "REMOTE",
	CodeValue:      "VALUE",
	CodeEvent:      "EVENT",
	CodeStream:     "STREAM",
	CodeSequence:   "SEQUENCE",
	CodeVoid:       "VOID",
	CodeReference:  "REFERENCE",
	CodeMap:        "MAP",
	CodeByteBuffer: "BYTE_BUFFER",
}

func (c TypeCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("TypeCode(0x%02x)", byte(c))
}

// --------------------------------------------------------------------------
// Tagged Value Types
// --------------------------------------------------------------------------

// Void is the result of a method without return value
type Void struct{}

// VoidValue is the decoded form of a VOID tag
var VoidValue = Void{}

// StreamRef refers to a stream channel carried next to the message
type StreamRef struct {
	ID int32
}

// Enum is an enum constant identified by its type name and ordinal
type Enum struct {
	Type    string
	Ordinal int32
}

// RemoteRef refers to a servant living on another peer
type RemoteRef struct {
	TypeNames string
	PeerID    string
	Path      string
}

// Event is a typed property bag
type Event struct {
	Types string
	Props map[string]any
}

// TypeRef describes a type on the wire. Name is set for named codes
// (VALUE, REMOTE, EVENT, EXCEPTION, ENUM), Elem for sequences.
type TypeRef struct {
	Code TypeCode
	Name string
	Elem *TypeRef
}

// Exception is an error carried as a tagged value
type Exception struct {
	TypeName string
	Message  string
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return e.TypeName
	}
	return e.TypeName + ": " + e.Message
}
