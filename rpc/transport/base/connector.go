package base

import (
	"net"
	"time"

	"github.com/ValentinKolb/planet/rpc/common"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IConnector defines the transport-specific socket operations of a manager
type IConnector interface {
	// Dial opens a socket to endpoint. It must fail after timeout.
	Dial(endpoint string, timeout time.Duration) (net.Conn, error)

	// Listen creates a listener on endpoint
	Listen(endpoint string) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.TransportConfig) error
}
