package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/serializer"
	"github.com/ValentinKolb/planet/rpc/servant"
	"github.com/ValentinKolb/planet/rpc/transport"
	"github.com/ValentinKolb/planet/rpc/wire"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"
)

var dispatchLogger = logger.GetLogger("rpc/dispatch")

// IConnectionProvider opens connections to peers (implemented by base.Manager)
type IConnectionProvider interface {
	Connect(ctx context.Context, peerID string) (transport.IConnection, error)
}

// ISessionListener is notified when sessions open and close
type ISessionListener interface {
	OnSessionOpened(s *Session)
	OnSessionClosed(s *Session, cause error)
}

// Dispatcher creates a session for every connection of a manager and routes
// incoming message channels to them. It implements
// transport.IConnectionListener.
type Dispatcher struct {
	resolver servant.IResolver
	codec    serializer.IValueCodec
	config   common.SessionConfig
	provider IConnectionProvider

	sessions  *xsync.MapOf[uint64, *Session]
	listeners []ISessionListener
	metrics   *sessionMetrics
}

// NewDispatcher creates a dispatcher serving the servants of resolver.
// resolver may be nil for pure clients.
func NewDispatcher(resolver servant.IResolver, codec serializer.IValueCodec, config common.SessionConfig) *Dispatcher {
	d := &Dispatcher{
		resolver: resolver,
		codec:    codec,
		config:   config.WithDefaults(),
		sessions: xsync.NewMapOf[uint64, *Session](),
	}
	d.metrics = newSessionMetrics(
		func() float64 { return float64(d.sessions.Size()) },
		func() float64 { return float64(d.pendingCalls()) },
	)
	return d
}

// Bind sets the provider used by Connect. It must be called before the
// first connection is opened.
func (d *Dispatcher) Bind(provider IConnectionProvider) {
	d.provider = provider
}

// AddListener registers l. It must be called before the first connection is opened.
func (d *Dispatcher) AddListener(l ISessionListener) {
	d.listeners = append(d.listeners, l)
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// Connect returns the session with peerID, connecting if needed
func (d *Dispatcher) Connect(ctx context.Context, peerID string) (*Session, error) {
	if d.provider == nil {
		return nil, errors.New("dispatcher is not bound to a connection provider")
	}
	conn, err := d.provider.Connect(ctx, peerID)
	if err != nil {
		return nil, err
	}
	return d.Session(conn)
}

// Session returns the session of conn
func (d *Dispatcher) Session(conn transport.IConnection) (*Session, error) {
	if s, ok := d.sessions.Load(conn.ID()); ok {
		return s, nil
	}
	return nil, fmt.Errorf("no session for connection %d to %s: %w", conn.ID(), conn.PeerID(), transport.ErrConnectionClosed)
}

// Sessions returns all open sessions ordered by connection id
func (d *Dispatcher) Sessions() []*Session {
	var sessions []*Session
	d.sessions.Range(func(_ uint64, s *Session) bool {
		sessions = append(sessions, s)
		return true
	})
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].conn.ID() < sessions[j].conn.ID()
	})
	return sessions
}

// Stats returns a snapshot of the session counters
func (d *Dispatcher) Stats() Stats {
	return d.metrics.snapshot(d.sessions.Size(), d.pendingCalls())
}

// Metrics returns the metric set of the dispatcher
func (d *Dispatcher) Metrics() *metrics.Set {
	return d.metrics.set
}

// Registry returns the latency registry of the dispatcher
func (d *Dispatcher) Registry() gometrics.Registry {
	return d.metrics.registry
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConnectionListener)
// --------------------------------------------------------------------------

func (d *Dispatcher) OnConnected(c transport.IConnection) {
	s := newSession(d, c)
	d.sessions.Store(c.ID(), s)
	dispatchLogger.Debugf("Opened %s", s)
	for _, l := range d.listeners {
		l.OnSessionOpened(s)
	}
}

func (d *Dispatcher) OnDisconnected(c transport.IConnection) {
	s, ok := d.sessions.LoadAndDelete(c.ID())
	if !ok {
		return
	}

	var cause error
	if cc, ok := c.(interface{ Cause() error }); ok {
		cause = cc.Cause()
	}
	s.close(cause)
	for _, l := range d.listeners {
		l.OnSessionClosed(s, s.cause)
	}
}

func (d *Dispatcher) OnInputChannel(ch transport.IInputChannel) {
	s, ok := d.sessions.Load(ch.Connection().ID())
	if !ok {
		dispatchLogger.Warningf("Dropping channel %d: no session for connection %d", ch.ID(), ch.Connection().ID())
		_ = ch.Close()
		return
	}

	// a buffered channel never blocks, it is routed on the reader
	if ch.Nonblocking() {
		d.dispatch(s, ch)
		return
	}
	go d.dispatch(s, ch)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// dispatch reads the header of ch and routes the message. STREAM channels are
// handed to the stream registry unread, results resolve their waiter at once
// and calls run on the execution pool.
func (d *Dispatcher) dispatch(s *Session, ch transport.IInputChannel) {
	var hb [HeaderSize]byte
	if _, err := io.ReadFull(ch, hb[:]); err != nil {
		dispatchLogger.Warningf("Dropping channel %d on %s: %v", ch.ID(), s, err)
		_ = ch.Close()
		return
	}
	h, err := DecodeHeader(hb[:])
	if err != nil {
		dispatchLogger.Warningf("Dropping channel %d on %s: %v", ch.ID(), s, err)
		_ = ch.Close()
		return
	}

	if h.Code == CodeStream {
		d.metrics.streamsReceived.Inc()
		s.streams.register(ch)
		return
	}

	body, err := io.ReadAll(ch)
	_ = ch.Close()
	if err != nil {
		dispatchLogger.Warningf("Dropping %s on %s: %v", h, s, err)
		return
	}
	dispatchLogger.Debugf("Received %s (%d bytes) on %s", h, len(body), s)

	switch h.Code {
	case CodeReply, CodeError:
		s.onResult(h, wire.NewReader(body))
	case CodeCall, CodeNotify:
		err := s.conn.Submit(func() {
			s.serveCall(h, wire.NewReader(body))
		})
		if err != nil {
			dispatchLogger.Warningf("Dropping %s on %s: %v", h, s, err)
		}
	}
}

func (d *Dispatcher) pendingCalls() int {
	n := 0
	d.sessions.Range(func(_ uint64, s *Session) bool {
		n += s.PendingCalls()
		return true
	})
	return n
}
