package session

import (
	"fmt"

	"github.com/ValentinKolb/planet/rpc/wire"
)

// HeaderSize is the size of the RPC header starting every message channel
const HeaderSize = 12

const (
	VersionMajor = 1
	VersionMinor = 2
)

// StreamReqID is the request id of STREAM headers
const StreamReqID int32 = -1

// Code is the RPC message type
type Code byte

const (
	CodeCall   Code = 0
	CodeReply  Code = 1
	CodeError  Code = 2
	CodeNotify Code = 3
	CodeStream Code = 4
)

func (c Code) String() string {
	switch c {
	case CodeCall:
		return "CALL"
	case CodeReply:
		return "REPLY"
	case CodeError:
		return "ERROR"
	case CodeNotify:
		return "NOTIFY"
	case CodeStream:
		return "STREAM"
	default:
		return fmt.Sprintf("Code(%d)", byte(c))
	}
}

// Header is the 12-byte RPC header:
//
//	reserved:u32=0 | reqId:i32 | verMajor:u8 | verMinor:u8 | code:u8 | unused:u8
type Header struct {
	ReqID int32
	Code  Code
}

// Encode appends the header to w
func (h Header) Encode(w *wire.Writer) {
	w.WriteUint32(0)
	w.WriteInt32(h.ReqID)
	_ = w.WriteByte(VersionMajor)
	_ = w.WriteByte(VersionMinor)
	_ = w.WriteByte(byte(h.Code))
	_ = w.WriteByte(0)
}

func (h Header) String() string {
	return fmt.Sprintf("%s#%d", h.Code, h.ReqID)
}

// DecodeHeader reads a header from b. Messages of another major version or
// with an unknown code are rejected.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrBadHeader, len(b))
	}
	r := wire.NewReader(b)
	_, _ = r.ReadUint32()
	reqID, _ := r.ReadInt32()
	major, _ := r.ReadByte()
	minor, _ := r.ReadByte()
	code, _ := r.ReadByte()

	if major != VersionMajor {
		return Header{}, fmt.Errorf("%w: version %d.%d", ErrBadHeader, major, minor)
	}
	if Code(code) > CodeStream {
		return Header{}, fmt.Errorf("%w: code %d", ErrBadHeader, code)
	}
	return Header{ReqID: reqID, Code: Code(code)}, nil
}
