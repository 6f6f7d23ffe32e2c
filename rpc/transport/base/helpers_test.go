package base

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/transport"
	"github.com/ValentinKolb/planet/rpc/transport/frame"
)

// --------------------------------------------------------------------------
// Test connector and listener
// --------------------------------------------------------------------------

type testConnector struct{}

func (c *testConnector) GetName() string { return "test" }

func (c *testConnector) Dial(endpoint string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", endpoint, timeout)
}

func (c *testConnector) Listen(endpoint string) (net.Listener, error) {
	return net.Listen("tcp", endpoint)
}

func (c *testConnector) UpgradeConnection(net.Conn, common.TransportConfig) error { return nil }

// recorder is a connection listener that records every event
type recorder struct {
	connected    chan transport.IConnection
	disconnected chan transport.IConnection
	inputs       chan transport.IInputChannel
}

func newRecorder() *recorder {
	return &recorder{
		connected:    make(chan transport.IConnection, 64),
		disconnected: make(chan transport.IConnection, 64),
		inputs:       make(chan transport.IInputChannel, 64),
	}
}

func (r *recorder) OnConnected(c transport.IConnection)       { r.connected <- c }
func (r *recorder) OnDisconnected(c transport.IConnection)    { r.disconnected <- c }
func (r *recorder) OnInputChannel(ch transport.IInputChannel) { r.inputs <- ch }

func (r *recorder) nextInput(t *testing.T) transport.IInputChannel {
	t.Helper()
	select {
	case ch := <-r.inputs:
		return ch
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for an input channel")
		return nil
	}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// newTestManager creates a listening manager on a random local port
func newTestManager(t *testing.T, config common.TransportConfig) (*Manager, *recorder) {
	t.Helper()
	config.Endpoint = "127.0.0.1:0"
	rec := newRecorder()
	m := NewManager(&testConnector{}, config, rec)
	if err := m.Listen(); err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m, rec
}

// connectPair connects two fresh managers and returns both ends
func connectPair(t *testing.T, config common.TransportConfig) (a, b *Manager, ca, cb transport.IConnection, recA, recB *recorder) {
	t.Helper()
	a, recA = newTestManager(t, config)
	b, recB = newTestManager(t, config)

	conn, err := a.GetConnection(context.Background(), b.LocalID(), true)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	select {
	case cb = <-recB.connected:
	case <-time.After(2 * time.Second):
		t.Fatal("acceptor did not report the connection")
	}
	<-recA.connected
	return a, b, conn, cb, recA, recB
}

// waitFor polls cond until it holds or the timeout expires
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// rawPeer is a hand driven socket speaking the frame protocol
type rawPeer struct {
	t      *testing.T
	conn   net.Conn
	framer *frame.Framer
}

func newRawPeer(t *testing.T, conn net.Conn) *rawPeer {
	t.Cleanup(func() { _ = conn.Close() })
	return &rawPeer{t: t, conn: conn, framer: frame.NewFramer(0)}
}

func dialRaw(t *testing.T, addr string) *rawPeer {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return newRawPeer(t, conn)
}

func (p *rawPeer) send(f frame.Frame) {
	p.t.Helper()
	if _, err := f.WriteTo(p.conn); err != nil {
		p.t.Fatalf("raw write failed: %v", err)
	}
}

// next reads the next frame. ok is false if the socket was closed.
func (p *rawPeer) next(timeout time.Duration) (frame.Frame, bool) {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		f, ok, err := p.framer.Next()
		if err != nil {
			p.t.Fatalf("raw peer got corrupt frame: %v", err)
		}
		if ok {
			return f, true
		}
		if n, err := p.framer.ReadFrom(p.conn); err != nil && n == 0 {
			return frame.Frame{}, false
		}
	}
}

func (p *rawPeer) expect(code frame.Code) frame.Frame {
	p.t.Helper()
	f, ok := p.next(2 * time.Second)
	if !ok {
		p.t.Fatalf("expected %s, socket closed", code)
	}
	if f.Header.Code != code {
		p.t.Fatalf("expected %s, got %s", code, f.Header.Code)
	}
	return f
}
