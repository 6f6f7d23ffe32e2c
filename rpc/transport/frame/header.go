package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Magic is the first word of every frame
	Magic uint32 = 0x970208
	// HeaderSize is the fixed size of a frame header in bytes
	HeaderSize = 20
	// VersionMajor and VersionMinor are the only accepted protocol version
	VersionMajor byte = 1
	VersionMinor byte = 0
	// MaxFrameLength bounds the total length a peer may announce
	MaxFrameLength = 16 * 1024 * 1024
	// NoChannel is the channel id of control frames
	NoChannel int32 = -1
)

// Code identifies the type of a frame
type Code uint8

const (
	CodeConnect Code = iota
	CodeConnectReply
	CodeHeartbeat
	CodeHeartbeatAck
	CodeData
	CodeDataCtrl
)

func (c Code) String() string {
	switch c {
	case CodeConnect:
		return "CONNECT"
	case CodeConnectReply:
		return "CONNECT_REPLY"
	case CodeHeartbeat:
		return "HEARTBEAT"
	case CodeHeartbeatAck:
		return "HEARTBEAT_ACK"
	case CodeData:
		return "DATA"
	case CodeDataCtrl:
		return "DATA_CTRL"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(c))
	}
}

// Valid reports whether c is a known frame code
func (c Code) Valid() bool {
	return c <= CodeDataCtrl
}

// --------------------------------------------------------------------------
// Protocol errors
// --------------------------------------------------------------------------

// ProtocolError reports a malformed frame. It is fatal for the connection.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

func protocolErrorf(format string, args ...interface{}) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// IsProtocolError reports whether err is (or wraps) a ProtocolError
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// --------------------------------------------------------------------------
// Header
// --------------------------------------------------------------------------

// Header is the decoded 20 byte frame header. It is a value type, every frame
// carries its own copy.
//
// Layout (big-endian):
//
//	magic:u32 | length:u32 | channelId:i32 | blockNum:i32 | isFinal:u8 | verMajor:u8 | verMinor:u8 | code:u8
type Header struct {
	Length    uint32 // total frame length including the header
	ChannelID int32
	BlockNum  int32
	Final     bool
	Code      Code
}

// PayloadLength returns the number of payload bytes following the header
func (h Header) PayloadLength() int {
	return int(h.Length) - HeaderSize
}

// Encode writes the header into b, which must hold at least HeaderSize bytes
func (h Header) Encode(b []byte) {
	_ = b[HeaderSize-1]
	binary.BigEndian.PutUint32(b[0:4], Magic)
	binary.BigEndian.PutUint32(b[4:8], h.Length)
	binary.BigEndian.PutUint32(b[8:12], uint32(h.ChannelID))
	binary.BigEndian.PutUint32(b[12:16], uint32(h.BlockNum))
	if h.Final {
		b[16] = 1
	} else {
		b[16] = 0
	}
	b[17] = VersionMajor
	b[18] = VersionMinor
	b[19] = byte(h.Code)
}

// DecodeHeader parses and validates a header. Bad magic, version, code or
// length yield a *ProtocolError and a zero Header.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, protocolErrorf("header needs %d bytes, got %d", HeaderSize, len(b))
	}

	if magic := binary.BigEndian.Uint32(b[0:4]); magic != Magic {
		return Header{}, protocolErrorf("invalid magic number=0x%x", magic)
	}
	if b[17] != VersionMajor || b[18] != VersionMinor {
		return Header{}, protocolErrorf("invalid version=%d:%d", b[17], b[18])
	}

	h := Header{
		Length:    binary.BigEndian.Uint32(b[4:8]),
		ChannelID: int32(binary.BigEndian.Uint32(b[8:12])),
		BlockNum:  int32(binary.BigEndian.Uint32(b[12:16])),
		Final:     b[16] != 0,
		Code:      Code(b[19]),
	}

	if !h.Code.Valid() {
		return Header{}, protocolErrorf("unknown frame code=%d", b[19])
	}
	if h.Length < HeaderSize || h.Length > MaxFrameLength {
		return Header{}, protocolErrorf("invalid frame length=%d", h.Length)
	}
	return h, nil
}

func (h Header) String() string {
	if h.ChannelID >= 0 {
		final := 0
		if h.Final {
			final = 1
		}
		return fmt.Sprintf("%s[ch=%d:%d:%d, length=%d]", h.Code, h.ChannelID, h.BlockNum, final, h.Length)
	}
	return fmt.Sprintf("%s[length=%d]", h.Code, h.Length)
}
