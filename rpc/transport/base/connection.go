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
	"github.com/ValentinKolb/planet/rpc/transport/frame"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	Logger     = logger.GetLogger("transport/conn")
	chLogger   = logger.GetLogger("transport/channel")
	ioLogger   = logger.GetLogger("transport/io")
	mgrLogger  = logger.GetLogger("transport/manager")
	inspLogger = logger.GetLogger("transport/inspector")
)

// Connection is one socket to one peer. It implements transport.IConnection.
//
// The originating side (active) sends CONNECT and waits for CONNECT_REPLY,
// the accepting side learns the peer id from CONNECT. Frames are read by one
// reader goroutine started by the manager's scheduler. Writes are serialized
// by a writer token; only its holder touches the socket.
type Connection struct {
	id      uint64
	manager *Manager
	config  common.TransportConfig
	localID string
	active  bool

	mu      sync.Mutex // guards netConn, peerID and cause
	netConn net.Conn
	peerID  string
	cause   error

	state     atomic.Int32
	announced atomic.Bool // OnConnected was delivered
	connected chan struct{}
	closed    chan struct{}
	closeOnce sync.Once

	// writeToken has capacity one. Holding it makes a goroutine the writer.
	writeToken chan struct{}

	// heartbeat and idle bookkeeping
	dirty      atomic.Bool
	hbSent     atomic.Bool
	lastAccess atomic.Int64 // unix nanos of the last data frame
	maxIdle    atomic.Int64 // nanos, 0 = never

	nextChannelID atomic.Uint32
	inputs        *xsync.MapOf[int32, *multiInputChannel]
	outputs       *xsync.MapOf[int32, *outputChannel]

	handlersMu    sync.Mutex
	handlers      []transport.DisconnectionHandler
	handlersFired bool

	framer *frame.Framer
}

func newConnection(m *Manager, id uint64, active bool, peerID string) *Connection {
	c := &Connection{
		id:         id,
		manager:    m,
		config:     m.config,
		localID:    m.LocalID(),
		active:     active,
		peerID:     peerID,
		connected:  make(chan struct{}),
		closed:     make(chan struct{}),
		writeToken: make(chan struct{}, 1),
		inputs:     xsync.NewMapOf[int32, *multiInputChannel](),
		outputs:    xsync.NewMapOf[int32, *outputChannel](),
		framer:     frame.NewFramer(2 * m.config.BlockSize),
	}
	c.state.Store(int32(transport.StateNotConnected))
	c.lastAccess.Store(time.Now().UnixNano())
	c.maxIdle.Store(int64(m.config.MaxIdle))
	return c
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConnection)
// --------------------------------------------------------------------------

func (c *Connection) ID() uint64 {
	return c.id
}

func (c *Connection) PeerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

func (c *Connection) LocalID() string {
	return c.localID
}

func (c *Connection) State() transport.State {
	return transport.State(c.state.Load())
}

func (c *Connection) IsActive() bool {
	return c.active
}

func (c *Connection) Write(f frame.Frame) error {
	if c.State() >= transport.StateDisconnecting {
		return transport.ErrConnectionClosed
	}

	// become the writer or wait for the current one
	select {
	case c.writeToken <- struct{}{}:
	case <-c.closed:
		return transport.ErrConnectionClosed
	}
	defer func() { <-c.writeToken }()

	c.mu.Lock()
	nc := c.netConn
	c.mu.Unlock()
	if nc == nil || c.State() >= transport.StateDisconnecting {
		return transport.ErrConnectionClosed
	}

	if err := nc.SetWriteDeadline(time.Now().Add(c.config.WriteWaitTimeout)); err != nil {
		return c.failWrite(err)
	}
	n, err := f.WriteTo(nc)
	if err != nil {
		return c.failWrite(err)
	}

	c.manager.metrics.frameSent(f.Header.Code, int(n))
	if f.Header.Code == frame.CodeData || f.Header.Code == frame.CodeDataCtrl {
		c.lastAccess.Store(time.Now().UnixNano())
	}
	return nil
}

func (c *Connection) NewOutputChannel() (transport.IOutputChannel, error) {
	if c.State() != transport.StateConnected {
		return nil, transport.ErrConnectionClosed
	}
	id := int32(c.nextChannelID.Add(1) & 0x7FFFFFFF)
	c.manager.metrics.channelsOpened.Inc()
	return newOutputChannel(c, id), nil
}

func (c *Connection) AddDisconnectionHandler(h transport.DisconnectionHandler) {
	c.handlersMu.Lock()
	if !c.handlersFired {
		c.handlers = append(c.handlers, h)
		c.handlersMu.Unlock()
		return
	}
	c.handlersMu.Unlock()

	// closed already, fire immediately
	c.runHandler(h)
}

func (c *Connection) SetMaxIdle(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.maxIdle.Store(int64(d))
	c.manager.idle.schedule(c)
}

func (c *Connection) Submit(task func()) error {
	return c.manager.executor.Submit(task)
}

func (c *Connection) Close() error {
	c.shutdown(fmt.Errorf("%w: closed locally", transport.ErrConnectionClosed))
	return nil
}

func (c *Connection) Closed() <-chan struct{} {
	return c.closed
}

// Cause returns the error that closed the connection, or nil while it is open
func (c *Connection) Cause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

func (c *Connection) String() string {
	peer := c.PeerID()
	if peer == "" {
		peer = "?"
	}
	dir := "<-"
	if c.active {
		dir = "->"
	}
	return fmt.Sprintf("conn#%d(%s%s)", c.id, dir, peer)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// open dials the peer, sends CONNECT and waits for CONNECT_REPLY. Dialing
// and handshake together are bounded by the connect timeout.
func (c *Connection) open(ctx context.Context, endpoint string) error {
	c.setState(transport.StateConnecting)

	timeout := c.config.ConnectTimeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	deadline := time.Now().Add(timeout)

	nc, err := c.manager.connector.Dial(endpoint, timeout)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			err = fmt.Errorf("%w: dialing %s: %v", transport.ErrConnectTimeout, endpoint, err)
		} else {
			err = fmt.Errorf("failed to connect to %s: %w", endpoint, err)
		}
		c.shutdown(err)
		return err
	}

	if err := c.manager.connector.UpgradeConnection(nc, c.config); err != nil {
		_ = nc.Close()
		err = fmt.Errorf("failed to upgrade connection to %s: %w", endpoint, err)
		c.shutdown(err)
		return err
	}

	if err := c.attach(nc); err != nil {
		return err
	}

	if err := c.Write(frame.NewConnect(c.localID)); err != nil {
		err = fmt.Errorf("failed to send CONNECT to %s: %w", endpoint, err)
		c.shutdown(err)
		return err
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case <-c.connected:
		Logger.Infof("Connected to %s using %s transport", c, c.manager.connector.GetName())
		return nil
	case <-c.closed:
		return c.Cause()
	case <-timer.C:
		err := fmt.Errorf("%w: no CONNECT_REPLY from %s within %s", transport.ErrConnectTimeout, endpoint, timeout)
		c.shutdown(err)
		return err
	case <-ctx.Done():
		c.shutdown(ctx.Err())
		return ctx.Err()
	}
}

// attach installs the socket and hands the connection to the scheduler
func (c *Connection) attach(nc net.Conn) error {
	c.mu.Lock()
	c.netConn = nc
	c.mu.Unlock()

	if c.State() >= transport.StateDisconnecting {
		// closed while dialing
		_ = nc.Close()
		return c.Cause()
	}
	if !c.manager.scheduler.register(c) {
		c.shutdown(transport.ErrShutdown)
		return transport.ErrShutdown
	}
	return nil
}

// markConnected announces the connection to the listener and wakes everyone
// waiting for the handshake. It runs on the reader, so the listener sees the
// connection before any of its channels.
func (c *Connection) markConnected() {
	c.mu.Lock()
	if c.cause != nil {
		c.mu.Unlock()
		return
	}
	c.announced.Store(true)
	c.mu.Unlock()

	c.manager.listener.OnConnected(c)
	c.setState(transport.StateConnected)
	close(c.connected)
	c.manager.metrics.connectionsOpened.Inc()
	c.manager.idle.schedule(c)
}

// shutdown closes the connection once: the socket is closed, all channels
// are force-closed, the manager forgets the connection and the disconnection
// handlers fire on the execution pool.
func (c *Connection) shutdown(cause error) {
	c.closeOnce.Do(func() {
		if cause == nil {
			cause = transport.ErrConnectionClosed
		}
		c.setState(transport.StateDisconnecting)

		c.mu.Lock()
		c.cause = cause
		nc := c.netConn
		c.mu.Unlock()

		if nc != nil {
			_ = nc.Close()
		}

		if c.announced.Load() {
			if frame.IsProtocolError(cause) || errors.Is(cause, transport.ErrWriteTimeout) {
				Logger.Warningf("Closing %s: %v", c, cause)
			} else {
				Logger.Infof("Closing %s: %v", c, cause)
			}
		} else {
			Logger.Debugf("Closing %s before handshake completed: %v", c, cause)
		}

		c.outputs.Range(func(_ int32, ch *outputChannel) bool {
			ch.forceClose()
			return true
		})
		c.inputs.Range(func(_ int32, ch *multiInputChannel) bool {
			ch.forceClose()
			return true
		})
		c.outputs.Clear()
		c.inputs.Clear()

		c.setState(transport.StateDisconnected)
		close(c.closed)

		c.manager.onDisconnected(c)
		c.fireHandlers()
	})
}

func (c *Connection) setState(s transport.State) {
	for {
		old := c.state.Load()
		// states only move forward
		if int32(s) <= old {
			return
		}
		if c.state.CompareAndSwap(old, int32(s)) {
			Logger.Debugf("%s: %s -> %s", c, transport.State(old), s)
			return
		}
	}
}

func (c *Connection) setPeerID(peerID string) {
	c.mu.Lock()
	c.peerID = peerID
	c.mu.Unlock()
}

// failWrite turns a socket write error into a fatal connection error
func (c *Connection) failWrite(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		err = fmt.Errorf("%w: blocked for more than %s", transport.ErrWriteTimeout, c.config.WriteWaitTimeout)
		c.manager.metrics.writeTimeouts.Inc()
	} else {
		err = fmt.Errorf("%w: %v", transport.ErrConnectionClosed, err)
	}
	c.shutdown(err)
	return err
}

// writerBusy reports whether some goroutine currently holds the writer token
func (c *Connection) writerBusy() bool {
	return len(c.writeToken) > 0
}

func (c *Connection) fireHandlers() {
	c.handlersMu.Lock()
	handlers := c.handlers
	c.handlers = nil
	c.handlersFired = true
	c.handlersMu.Unlock()

	for _, h := range handlers {
		c.runHandler(h)
	}
}

// runHandler runs h on the execution pool, or inline once the pool is gone
func (c *Connection) runHandler(h transport.DisconnectionHandler) {
	task := func() { h(c) }
	if err := c.Submit(task); err != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					Logger.Errorf("Disconnection handler of %s panicked: %v", c, r)
				}
			}()
			task()
		}()
	}
}
