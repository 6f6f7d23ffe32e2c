package unix

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/transport"
	"github.com/ValentinKolb/planet/rpc/transport/base"
)

// connector implements the base.IConnector interface for Unix sockets
type connector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IConnector)
// --------------------------------------------------------------------------

func (c *connector) GetName() string {
	return "unix"
}

func (c *connector) Dial(endpoint string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", endpoint, timeout)
}

func (c *connector) Listen(socketPath string) (net.Listener, error) {
	// Remove existing socket file if it exists
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create Unix socket: %w", err)
	}
	return listener, nil
}

func (c *connector) UpgradeConnection(conn net.Conn, config common.TransportConfig) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	if config.WriteBufferSize > 0 {
		if err := unixConn.SetWriteBuffer(config.WriteBufferSize); err != nil {
			return err
		}
	}
	if config.ReadBufferSize > 0 {
		if err := unixConn.SetReadBuffer(config.ReadBufferSize); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Factory Methods
// --------------------------------------------------------------------------

// NewConnector returns the Unix socket connector
func NewConnector() base.IConnector {
	return &connector{}
}

// NewManager creates a connection manager using Unix domain sockets
func NewManager(config common.TransportConfig, listener transport.IConnectionListener) *base.Manager {
	return base.NewManager(&connector{}, config, listener)
}
