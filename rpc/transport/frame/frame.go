package frame

import (
	"fmt"
	"io"
	"net"

	"github.com/ValentinKolb/planet/rpc/wire"
)

// Data control values carried by DATA_CTRL frames
const (
	// NextData grants the sender of a channel one more block
	NextData int32 = 0x00000000
	// CloseData tells the sender that the reader closed the channel
	CloseData int32 = -1 // 0xFFFFFFFF
)

// Status values of a CONNECT_REPLY frame
const (
	StatusAccepted byte = 0
	StatusRejected byte = 1
)

// Frame is one length-delimited unit on the wire
type Frame struct {
	Header  Header
	Payload []byte
}

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

func newControl(code Code, payload []byte) Frame {
	return Frame{
		Header: Header{
			Length:    uint32(HeaderSize + len(payload)),
			ChannelID: NoChannel,
			BlockNum:  0,
			Final:     true,
			Code:      code,
		},
		Payload: payload,
	}
}

// NewConnect creates the CONNECT frame sent by the originator of a connection
func NewConnect(peerID string) Frame {
	w := wire.NewWriter(4 + len(peerID))
	w.WriteString(peerID)
	return newControl(CodeConnect, w.Bytes())
}

// NewConnectReply creates the acceptor's answer to CONNECT. On success details
// carries the acceptor's own peer id, otherwise the reject reason.
func NewConnectReply(status byte, details string) Frame {
	w := wire.NewWriter(5 + len(details))
	_ = w.WriteByte(status)
	w.WriteString(details)
	return newControl(CodeConnectReply, w.Bytes())
}

// NewHeartbeat creates a HEARTBEAT frame
func NewHeartbeat() Frame {
	return newControl(CodeHeartbeat, nil)
}

// NewHeartbeatAck creates a HEARTBEAT_ACK frame
func NewHeartbeatAck() Frame {
	return newControl(CodeHeartbeatAck, nil)
}

// NewDataCtrl creates a DATA_CTRL frame for the given channel
func NewDataCtrl(channelID int32, control int32) Frame {
	w := wire.NewWriter(8)
	w.WriteInt32(channelID)
	w.WriteInt32(control)
	return newControl(CodeDataCtrl, w.Bytes())
}

// NewData creates a DATA frame carrying one block of a channel
func NewData(channelID, blockNum int32, final bool, payload []byte) Frame {
	return Frame{
		Header: Header{
			Length:    uint32(HeaderSize + len(payload)),
			ChannelID: channelID,
			BlockNum:  blockNum,
			Final:     final,
			Code:      CodeData,
		},
		Payload: payload,
	}
}

// --------------------------------------------------------------------------
// Payload parsers
// --------------------------------------------------------------------------

// ParseConnect returns the peer id of a CONNECT frame
func ParseConnect(f Frame) (string, error) {
	if f.Header.Code != CodeConnect {
		return "", fmt.Errorf("expected %s, got %s", CodeConnect, f.Header.Code)
	}
	peerID, err := wire.NewReader(f.Payload).ReadString()
	if err != nil {
		return "", protocolErrorf("malformed CONNECT payload: %v", err)
	}
	return peerID, nil
}

// ParseConnectReply returns status and details of a CONNECT_REPLY frame
func ParseConnectReply(f Frame) (status byte, details string, err error) {
	if f.Header.Code != CodeConnectReply {
		return 0, "", fmt.Errorf("expected %s, got %s", CodeConnectReply, f.Header.Code)
	}
	r := wire.NewReader(f.Payload)
	if status, err = r.ReadByte(); err != nil {
		return 0, "", protocolErrorf("malformed CONNECT_REPLY payload: %v", err)
	}
	if details, err = r.ReadString(); err != nil {
		return 0, "", protocolErrorf("malformed CONNECT_REPLY payload: %v", err)
	}
	return status, details, nil
}

// ParseDataCtrl returns channel id and control value of a DATA_CTRL frame
func ParseDataCtrl(f Frame) (channelID int32, control int32, err error) {
	if f.Header.Code != CodeDataCtrl {
		return 0, 0, fmt.Errorf("expected %s, got %s", CodeDataCtrl, f.Header.Code)
	}
	r := wire.NewReader(f.Payload)
	if channelID, err = r.ReadInt32(); err != nil {
		return 0, 0, protocolErrorf("malformed DATA_CTRL payload: %v", err)
	}
	if control, err = r.ReadInt32(); err != nil {
		return 0, 0, protocolErrorf("malformed DATA_CTRL payload: %v", err)
	}
	return channelID, control, nil
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Marshal returns header and payload as one contiguous slice
func (f Frame) Marshal() []byte {
	b := make([]byte, HeaderSize+len(f.Payload))
	f.Header.Length = uint32(len(b))
	f.Header.Encode(b)
	copy(b[HeaderSize:], f.Payload)
	return b
}

// WriteTo writes the frame with a single vectored write of header and payload
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	header := make([]byte, HeaderSize)
	f.Header.Length = uint32(HeaderSize + len(f.Payload))
	f.Header.Encode(header)

	b := net.Buffers{header, f.Payload}
	return b.WriteTo(w)
}

// Size returns the encoded size of the frame
func (f Frame) Size() int {
	return HeaderSize + len(f.Payload)
}

func (f Frame) String() string {
	return f.Header.String()
}
