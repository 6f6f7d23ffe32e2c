package transport

import (
	"errors"
	"io"
	"time"

	"github.com/ValentinKolb/planet/rpc/transport/frame"
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrConnectionClosed is returned by every operation on a closed connection
	ErrConnectionClosed = errors.New("connection closed")
	// ErrConnectTimeout is returned when dialing plus handshake exceed the connect timeout
	ErrConnectTimeout = errors.New("connect timeout")
	// ErrWriteTimeout is returned when a socket write was blocked longer than the write-wait ceiling
	ErrWriteTimeout = errors.New("write timeout")
	// ErrHandshakeRejected is returned when the acceptor answered CONNECT with a non-zero status
	ErrHandshakeRejected = errors.New("handshake rejected")
	// ErrSelfConnection is returned when a connection to the local peer id is requested
	ErrSelfConnection = errors.New("connection to self")
	// ErrNotConnected is returned by GetConnection without create when no connection exists
	ErrNotConnected = errors.New("not connected")
	// ErrChannelClosed is returned when reading from or writing to a closed channel
	ErrChannelClosed = errors.New("channel closed already")
	// ErrChannelClosedByPeer is returned to writers of a channel the reader closed early
	ErrChannelClosedByPeer = errors.New("channel closed by peer")
	// ErrShutdown is returned when submitting work to a stopped manager
	ErrShutdown = errors.New("transport shut down")
)

// --------------------------------------------------------------------------
// Connection State
// --------------------------------------------------------------------------

// State is the lifecycle state of a connection. It only moves forward.
type State int32

const (
	StateNotConnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateNotConnected:
		return "NotConnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateDisconnecting:
		return "Disconnecting"
	case StateDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// DisconnectionHandler is called once after a connection reached StateDisconnected
type DisconnectionHandler func(c IConnection)

// IConnection is one framed, full-duplex link to a remote peer
type IConnection interface {
	// ID returns the process-unique serial number of the connection
	ID() uint64
	// PeerID returns the id of the remote peer ("" until the handshake completed on the accepting side)
	PeerID() string
	// LocalID returns the id of the local peer
	LocalID() string
	// State returns the current lifecycle state
	State() State
	// IsActive reports whether this side originated the connection
	IsActive() bool

	// Write sends a single frame. Writes are serialized; at most one goroutine
	// writes to the socket at a time. A write blocked longer than the
	// write-wait ceiling fails with ErrWriteTimeout and closes the connection.
	Write(f frame.Frame) error
	// NewOutputChannel opens a new outgoing channel
	NewOutputChannel() (IOutputChannel, error)

	// AddDisconnectionHandler registers h. On an already closed connection h runs immediately.
	AddDisconnectionHandler(h DisconnectionHandler)
	// SetMaxIdle sets the idle timeout (0 = never)
	SetMaxIdle(d time.Duration)
	// Submit runs task on the execution pool of the connection's manager
	Submit(task func()) error

	// Close disconnects. It is idempotent and fires the disconnection handlers exactly once.
	Close() error
	// Closed returns a channel that is closed once the connection is disconnected
	Closed() <-chan struct{}
}

// --------------------------------------------------------------------------
// Channels
// --------------------------------------------------------------------------

// IInputChannel is the receiving end of a channel. Read returns io.EOF after
// the final block was consumed.
type IInputChannel interface {
	io.ReadCloser
	// ID returns the sender-assigned channel id
	ID() int32
	// Connection returns the connection the channel belongs to
	Connection() IConnection
	// Nonblocking reports whether all data is already buffered (single-block channel)
	Nonblocking() bool
}

// IOutputChannel is the sending end of a channel. Data is cut into blocks of
// at most the configured block size. Close flushes the remaining data as the
// final block.
type IOutputChannel interface {
	io.WriteCloser
	// ID returns the channel id
	ID() int32
	// Flush sends the buffered data as a non-final block
	Flush() error
	// Abort closes the channel without sending the final block
	Abort()
	// ClosedByPeer returns a channel that is closed once the reader sent CLOSE_DATA
	ClosedByPeer() <-chan struct{}
}

// --------------------------------------------------------------------------
// Listener
// --------------------------------------------------------------------------

// IConnectionListener receives connection events from a manager
type IConnectionListener interface {
	// OnConnected is called after the handshake completed, before any channel of the connection is delivered
	OnConnected(c IConnection)
	// OnDisconnected is called once after the connection was closed
	OnDisconnected(c IConnection)
	// OnInputChannel is called from the connection's reader for each new
	// incoming channel. It must not block.
	OnInputChannel(ch IInputChannel)
}
