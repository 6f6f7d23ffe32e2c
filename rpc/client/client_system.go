package client

import (
	"time"

	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/session"
)

// RPCSystem calls the planet.System servant of a peer
type RPCSystem struct {
	rpcClientAdapter
}

// NewRPCSystem creates a system client on s
func NewRPCSystem(s *session.Session, timeout time.Duration) *RPCSystem {
	return &RPCSystem{
		rpcClientAdapter{
			session: s,
			path:    common.SystemPath,
			timeout: timeout,
		},
	}
}

// Ping calls ping and returns the round trip time
func (i *RPCSystem) Ping() (time.Duration, error) {
	start := time.Now()
	if _, err := i.invoke(common.SystemPing); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Echo returns v after a round trip through the peer
func (i *RPCSystem) Echo(v any) (any, error) {
	return i.invoke(common.SystemEcho, v)
}

// Stats returns the transport and session statistics of the peer
func (i *RPCSystem) Stats() (map[string]any, error) {
	return expect[map[string]any](i.invoke(common.SystemStats))
}

// Info returns static information of the peer. The result is cached by the session.
func (i *RPCSystem) Info() (map[string]any, error) {
	return expect[map[string]any](i.invoke(common.SystemInfo))
}

// Log writes msg to the log of the peer without waiting for it
func (i *RPCSystem) Log(msg string) error {
	return i.session.Notify(i.path, common.SystemLog, msg)
}
