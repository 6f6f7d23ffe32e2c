package base

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
)

// Manager owns all connections of a node. It accepts inbound sockets,
// originates outbound ones, keeps the registry of live connections keyed by
// peer id and runs the execution pool, the scheduler and the inspectors.
type Manager struct {
	connector IConnector
	config    common.TransportConfig
	listener  transport.IConnectionListener

	localID atomic.Value // string

	// peers maps peer ids to the connection (or connection attempt) of that peer
	peers *xsync.MapOf[string, *Connection]
	// all holds every connection not yet disconnected by serial id, including
	// accepted connections that have not completed the handshake
	all    *xsync.MapOf[uint64, *Connection]
	nextID atomic.Uint64

	executor  *executor
	scheduler *scheduler
	idle      *idleInspector
	metrics   *transportMetrics

	lnMu     sync.Mutex
	ln       net.Listener
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// -----------------------------------------------------------
// Manager Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewManager creates a manager using connector for sockets. The listener
// receives connection events and incoming channels.
func NewManager(connector IConnector, config common.TransportConfig, listener transport.IConnectionListener) *Manager {
	config = config.WithDefaults()

	m := &Manager{
		connector: connector,
		config:    config,
		listener:  listener,
		peers:     xsync.NewMapOf[string, *Connection](),
		all:       xsync.NewMapOf[uint64, *Connection](),
		executor:  newExecutor(config.Workers),
		scheduler: newScheduler(),
		stopCh:    make(chan struct{}),
	}
	m.localID.Store(config.PeerID)
	m.idle = newIdleInspector(m)
	m.metrics = newTransportMetrics(connector.GetName(), func() float64 {
		return float64(m.peers.Size())
	})

	m.wg.Add(1)
	go m.idle.run()

	if config.HeartbeatInterval > 0 {
		m.wg.Add(1)
		go m.heartbeatLoop(config.HeartbeatInterval)
	}

	return m
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// LocalID returns the peer id announced to other peers
func (m *Manager) LocalID() string {
	return m.localID.Load().(string)
}

// Listen opens the listener on the configured endpoint and starts accepting.
// If the peer id equals the endpoint, it is replaced by the bound address
// (useful for port 0). Listen must be called before the first connection is
// created.
func (m *Manager) Listen() error {
	ln, err := m.connector.Listen(m.config.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	m.lnMu.Lock()
	if m.isStopped() {
		m.lnMu.Unlock()
		_ = ln.Close()
		return transport.ErrShutdown
	}
	m.ln = ln
	m.lnMu.Unlock()

	if m.config.PeerID == m.config.Endpoint {
		m.localID.Store(ln.Addr().String())
	}

	mgrLogger.Infof("Listening on %s as %s using %s transport with %d workers",
		ln.Addr(), m.LocalID(), m.connector.GetName(), m.config.Workers)

	m.wg.Add(1)
	go m.acceptLoop(ln)
	return nil
}

// Addr returns the bound listener address or nil if the manager does not listen
func (m *Manager) Addr() net.Addr {
	m.lnMu.Lock()
	defer m.lnMu.Unlock()
	if m.ln == nil {
		return nil
	}
	return m.ln.Addr()
}

// GetConnection returns the connected connection to peerID. If none exists
// and create is set, one is opened. Concurrent callers for the same peer
// share one connection attempt and all see its outcome.
func (m *Manager) GetConnection(ctx context.Context, peerID string, create bool) (*Connection, error) {
	if peerID == m.LocalID() {
		return nil, transport.ErrSelfConnection
	}

	for {
		if m.isStopped() {
			return nil, transport.ErrShutdown
		}

		if c, ok := m.peers.Load(peerID); ok {
			switch c.State() {
			case transport.StateConnected:
				return c, nil

			case transport.StateNotConnected, transport.StateConnecting:
				select {
				case <-c.connected:
					continue
				case <-c.closed:
					if !c.announced.Load() {
						return nil, c.Cause()
					}
					continue
				case <-ctx.Done():
					return nil, ctx.Err()
				}

			default:
				// closing, drop the stale entry and retry
				m.forget(c)
				continue
			}
		}

		if !create {
			return nil, fmt.Errorf("%w: %s", transport.ErrNotConnected, peerID)
		}

		c := newConnection(m, m.nextID.Add(1), true, peerID)
		if _, loaded := m.peers.LoadOrStore(peerID, c); loaded {
			continue
		}
		m.all.Store(c.id, c)

		if err := c.open(ctx, peerID); err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Connect returns the connection to peerID, opening one if needed
func (m *Manager) Connect(ctx context.Context, peerID string) (transport.IConnection, error) {
	c, err := m.GetConnection(ctx, peerID, true)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Connections returns a snapshot of all connections registered by peer id
func (m *Manager) Connections() []*Connection {
	var conns []*Connection
	m.peers.Range(func(_ string, c *Connection) bool {
		conns = append(conns, c)
		return true
	})
	return conns
}

// Stats returns a snapshot of the transport counters
func (m *Manager) Stats() Stats {
	return m.metrics.snapshot(m.peers.Size())
}

// Metrics returns the metric set of the manager for prometheus export
func (m *Manager) Metrics() *metrics.Set {
	return m.metrics.set
}

// Config returns the effective configuration
func (m *Manager) Config() common.TransportConfig {
	return m.config
}

// Close stops accepting, closes all connections and waits until readers,
// inspectors and queued tasks finished
func (m *Manager) Close() error {
	m.stopOnce.Do(func() {
		m.lnMu.Lock()
		close(m.stopCh)
		ln := m.ln
		m.lnMu.Unlock()

		if ln != nil {
			_ = ln.Close()
		}

		m.all.Range(func(_ uint64, c *Connection) bool {
			c.shutdown(fmt.Errorf("%w: manager closed", transport.ErrConnectionClosed))
			return true
		})

		m.wg.Wait()
		m.scheduler.close()
		m.executor.close()

		mgrLogger.Infof("Connection manager %s stopped", m.LocalID())
	})
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (m *Manager) isStopped() bool {
	select {
	case <-m.stopCh:
		return true
	default:
		return false
	}
}

// acceptLoop accepts sockets until the listener is closed. The handshake of
// an accepted connection must complete within the connect timeout.
func (m *Manager) acceptLoop(ln net.Listener) {
	defer m.wg.Done()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if m.isStopped() || errors.Is(err, net.ErrClosed) {
				return
			}
			mgrLogger.Errorf("Accept error: %v", err)
			continue
		}

		if err := m.connector.UpgradeConnection(nc, m.config); err != nil {
			mgrLogger.Warningf("Failed to upgrade connection from %s: %v", nc.RemoteAddr(), err)
			_ = nc.Close()
			continue
		}

		c := newConnection(m, m.nextID.Add(1), false, "")
		c.setState(transport.StateConnecting)
		m.all.Store(c.id, c)
		if err := c.attach(nc); err != nil {
			continue
		}

		time.AfterFunc(m.config.ConnectTimeout, func() {
			if c.State() == transport.StateConnecting {
				c.shutdown(fmt.Errorf("%w: no CONNECT within %s", transport.ErrConnectTimeout, m.config.ConnectTimeout))
			}
		})
	}
}

// onAccepted registers an accepted connection under its peer id after the
// CONNECT frame arrived. An older connection of the same peer is closed.
func (m *Manager) onAccepted(c *Connection) error {
	peerID := c.PeerID()
	if peerID == m.LocalID() {
		return transport.ErrSelfConnection
	}
	if m.isStopped() {
		return transport.ErrShutdown
	}

	var prev *Connection
	m.peers.Compute(peerID, func(old *Connection, loaded bool) (*Connection, bool) {
		if loaded {
			prev = old
		}
		return c, false
	})

	if prev != nil && prev != c {
		mgrLogger.Infof("Duplicate connection from %s, closing the older %s", peerID, prev)
		prev.shutdown(fmt.Errorf("%w: replaced by %s", transport.ErrConnectionClosed, c))
	}
	return nil
}

// onDisconnected removes c from all tables. Called once by c.shutdown.
func (m *Manager) onDisconnected(c *Connection) {
	m.all.Delete(c.id)
	m.forget(c)
	m.idle.remove(c)

	if c.announced.Load() {
		m.metrics.connectionsClosed.Inc()
		m.listener.OnDisconnected(c)
	}
}

// forget removes c from the peer table if it is still the registered connection
func (m *Manager) forget(c *Connection) {
	peerID := c.PeerID()
	if peerID == "" {
		return
	}
	m.peers.Compute(peerID, func(old *Connection, loaded bool) (*Connection, bool) {
		return old, !loaded || old == c
	})
}
