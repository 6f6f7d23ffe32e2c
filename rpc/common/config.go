package common

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultConnectTimeout    = 5 * time.Second
	DefaultWriteWaitTimeout  = 10 * time.Second
	DefaultWorkers           = 16
	DefaultBlockSize         = 16 * 1024
	DefaultBufferCount       = 3
	DefaultStreamWaitTimeout = 5 * time.Second
	DefaultConstCacheBytes   = 32 * 1024 * 1024
)

// --------------------------------------------------------------------------
// Transport configuration
// --------------------------------------------------------------------------

// SocketConf holds socket options shared by all stream transports
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// TransportConfig configures a connection manager and all of its connections
type TransportConfig struct {
	// Endpoint is the address the manager listens on (empty = no listener)
	Endpoint string
	// PeerID is the id announced in CONNECT frames. Defaults to Endpoint.
	PeerID string

	// ConnectTimeout bounds dialing plus the CONNECT handshake
	ConnectTimeout time.Duration
	// WriteWaitTimeout bounds a single blocked socket write. Expiry is a fatal I/O error.
	WriteWaitTimeout time.Duration
	// HeartbeatInterval is the period of the heartbeat inspector (0 = disabled)
	HeartbeatInterval time.Duration
	// MaxIdle is the default idle timeout of new connections (0 = never)
	MaxIdle time.Duration

	// Workers is the size of the execution pool running frame handlers
	Workers int
	// BlockSize is the maximum frame size of a channel block (header included)
	BlockSize int
	// BufferCount is the number of blocks a reader buffers. MaxPendings is BufferCount+1.
	BufferCount int

	SocketConf
	TCPConf
}

// WithDefaults returns a copy with all zero values replaced by defaults
func (c TransportConfig) WithDefaults() TransportConfig {
	if c.PeerID == "" {
		c.PeerID = c.Endpoint
	}
	if c.PeerID == "" {
		// not listening, any unique id will do
		host, _ := os.Hostname()
		c.PeerID = fmt.Sprintf("%s/%d-%08x", host, os.Getpid(), rand.Uint32())
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.WriteWaitTimeout <= 0 {
		c.WriteWaitTimeout = DefaultWriteWaitTimeout
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.BlockSize <= 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.BufferCount <= 0 {
		c.BufferCount = DefaultBufferCount
	}
	return c
}

// MaxPendings is the maximum number of unacknowledged blocks of an output channel
func (c TransportConfig) MaxPendings() int {
	return c.BufferCount + 1
}

// String returns a formatted string representation of the transport configuration
func (c TransportConfig) String() string {
	var sb strings.Builder
	c.write(&sb)
	return sb.String()
}

func (c TransportConfig) write(sb *strings.Builder) {
	addSection, addField := formatHelpers(sb)

	addSection("Transport")
	addField("Endpoint", orNone(c.Endpoint))
	addField("Peer ID", c.PeerID)
	addField("Connect Timeout", c.ConnectTimeout.String())
	addField("Write Wait Timeout", c.WriteWaitTimeout.String())
	addField("Heartbeat Interval", orDisabled(c.HeartbeatInterval))
	addField("Max Idle", orDisabled(c.MaxIdle))
	addField("Workers", strconv.Itoa(c.Workers))
	addField("Block Size", fmt.Sprintf("%d bytes", c.BlockSize))
	addField("Max Pendings", strconv.Itoa(c.MaxPendings()))

	addSection("Socket")
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.ReadBufferSize))
	addField("TCP No Delay", strconv.FormatBool(c.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.TCPLingerSec))
}

// --------------------------------------------------------------------------
// Session configuration
// --------------------------------------------------------------------------

// SessionConfig configures the RPC sessions created on top of connections
type SessionConfig struct {
	// CallTimeout is the default deadline of Invoke (0 = wait forever)
	CallTimeout time.Duration
	// StreamWaitTimeout bounds the wait for a stream channel that has not arrived yet
	StreamWaitTimeout time.Duration
	// ConstCacheBytes is the capacity of a session's const-result cache
	ConstCacheBytes int
}

// WithDefaults returns a copy with all zero values replaced by defaults
func (c SessionConfig) WithDefaults() SessionConfig {
	if c.StreamWaitTimeout <= 0 {
		c.StreamWaitTimeout = DefaultStreamWaitTimeout
	}
	if c.ConstCacheBytes <= 0 {
		c.ConstCacheBytes = DefaultConstCacheBytes
	}
	return c
}

func (c SessionConfig) write(sb *strings.Builder) {
	addSection, addField := formatHelpers(sb)

	addSection("Session")
	addField("Call Timeout", orDisabled(c.CallTimeout))
	addField("Stream Wait Timeout", c.StreamWaitTimeout.String())
	addField("Const Cache", fmt.Sprintf("%d bytes", c.ConstCacheBytes))
}

// --------------------------------------------------------------------------
// Node configuration
// --------------------------------------------------------------------------

// NodeConfig holds all configuration parameters of a serving node
type NodeConfig struct {
	// Network is the transport to use (tcp, unix)
	Network   string
	Transport TransportConfig
	Session   SessionConfig

	// Servants lists the built-in servants to mount (kv, lock, system)
	Servants []string

	// MetricsEndpoint is the http address for the prometheus endpoint (empty = disabled)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *NodeConfig) String() string {
	var sb strings.Builder
	addSection, addField := formatHelpers(&sb)

	addSection("Node")
	addField("Network", c.Network)
	addField("Servants", strings.Join(c.Servants, ", "))
	addField("Metrics Endpoint", orNone(c.MetricsEndpoint))

	c.Transport.write(&sb)
	c.Session.write(&sb)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration
// --------------------------------------------------------------------------

// ClientConfig configures a command line client talking to one peer
type ClientConfig struct {
	Network   string
	Peer      string
	Transport TransportConfig
	Session   SessionConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder
	addSection, addField := formatHelpers(&sb)

	addSection("Client")
	addField("Network", c.Network)
	addField("Peer", c.Peer)

	c.Transport.write(&sb)
	c.Session.write(&sb)

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func formatHelpers(sb *strings.Builder) (func(title string), func(name, value string)) {
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}
	return addSection, addField
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func orDisabled(d time.Duration) string {
	if d <= 0 {
		return "disabled"
	}
	return d.String()
}
