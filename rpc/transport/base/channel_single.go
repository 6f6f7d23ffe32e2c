package base

import (
	"io"
	"sync"

	"github.com/ValentinKolb/planet/rpc/transport"
)

// singleInputChannel wraps the payload of a channel that arrived as one
// final block. Reads never block.
type singleInputChannel struct {
	id   int32
	conn *Connection

	mu     sync.Mutex
	data   []byte
	closed bool
}

func newSingleInputChannel(c *Connection, id int32, payload []byte) *singleInputChannel {
	return &singleInputChannel{id: id, conn: c, data: payload}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IInputChannel)
// --------------------------------------------------------------------------

func (ch *singleInputChannel) ID() int32 {
	return ch.id
}

func (ch *singleInputChannel) Connection() transport.IConnection {
	return ch.conn
}

func (ch *singleInputChannel) Nonblocking() bool {
	return true
}

func (ch *singleInputChannel) Read(p []byte) (int, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return 0, transport.ErrChannelClosed
	}
	if len(ch.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, ch.data)
	ch.data = ch.data[n:]
	return n, nil
}

func (ch *singleInputChannel) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.closed = true
	ch.data = nil
	return nil
}
