package session

import (
	"fmt"

	"github.com/ValentinKolb/planet/rpc/serializer"
	"github.com/ValentinKolb/planet/rpc/wire"
)

// callMsg is the payload of CALL and NOTIFY messages
type callMsg struct {
	Path      string
	Interface string
	Signature string
	Args      []any
}

func (m *callMsg) String() string {
	if m == nil {
		return "<undecodable>"
	}
	return fmt.Sprintf("%s %s.%s", m.Path, m.Interface, m.Signature)
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

func encodeCall(w *wire.Writer, codec serializer.IValueCodec, h Header, m *callMsg) error {
	h.Encode(w)
	w.WriteString(m.Path)
	w.WriteString(m.Interface)
	w.WriteString(m.Signature)
	w.WriteInt32(int32(len(m.Args)))
	for i, arg := range m.Args {
		if err := codec.Encode(w, arg); err != nil {
			return fmt.Errorf("argument %d of %s: %w", i, m.Signature, err)
		}
	}
	return nil
}

func encodeReply(w *wire.Writer, codec serializer.IValueCodec, reqID int32, result any) error {
	Header{ReqID: reqID, Code: CodeReply}.Encode(w)
	return codec.Encode(w, result)
}

func encodeError(w *wire.Writer, reqID int32, typeName, message string) {
	Header{ReqID: reqID, Code: CodeError}.Encode(w)
	w.WriteString(typeName)
	w.WriteString(message)
}

func encodeStreamHeader(w *wire.Writer) {
	Header{ReqID: StreamReqID, Code: CodeStream}.Encode(w)
}

// --------------------------------------------------------------------------
// Decoding (the header is consumed already)
// --------------------------------------------------------------------------

func decodeCall(r *wire.Reader, codec serializer.IValueCodec) (*callMsg, error) {
	var m callMsg
	var err error
	if m.Path, err = r.ReadString(); err != nil {
		return nil, fmt.Errorf("path: %w", err)
	}
	if m.Interface, err = r.ReadString(); err != nil {
		return nil, fmt.Errorf("interface: %w", err)
	}
	if m.Signature, err = r.ReadString(); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	n, err := r.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("argument count: %w", err)
	}
	if n < 0 || int(n) > r.Remaining() {
		return &m, fmt.Errorf("invalid argument count %d", n)
	}
	m.Args = make([]any, n)
	for i := range m.Args {
		if m.Args[i], err = codec.Decode(r); err != nil {
			return &m, fmt.Errorf("argument %d of %s: %w", i, m.Signature, err)
		}
	}
	return &m, nil
}

func decodeError(r *wire.Reader) (*RemoteError, error) {
	typeName, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	message, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &RemoteError{TypeName: typeName, Message: message}, nil
}
