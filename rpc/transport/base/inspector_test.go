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

func TestIdleTimeout(t *testing.T) {
	a, _, ca, _, _, _ := connectPair(t, common.TransportConfig{})

	ca.SetMaxIdle(time.Second)

	start := time.Now()
	select {
	case <-ca.Closed():
	case <-time.After(3 * time.Second):
		t.Fatal("idle connection was not closed")
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond || elapsed > 2*time.Second {
		t.Errorf("idle close after %s, want about 1s", elapsed)
	}
	if got := a.Stats().IdleTimeouts; got != 1 {
		t.Errorf("expected 1 idle timeout, got %d", got)
	}
}

func TestIdleTimeoutMovedByTraffic(t *testing.T) {
	_, _, ca, _, _, recB := connectPair(t, common.TransportConfig{})

	ca.SetMaxIdle(400 * time.Millisecond)

	// keep sending data for longer than the idle time
	for i := 0; i < 6; i++ {
		time.Sleep(150 * time.Millisecond)
		out, err := ca.NewOutputChannel()
		if err != nil {
			t.Fatalf("connection closed while in use: %v", err)
		}
		_, _ = out.Write([]byte("ping"))
		_ = out.Close()
		recB.nextInput(t)
	}
	if ca.State() != transport.StateConnected {
		t.Fatalf("busy connection was closed: %s", ca.State())
	}

	// and now stop
	select {
	case <-ca.Closed():
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not closed after traffic stopped")
	}
}

func TestIdleTimeoutDisabled(t *testing.T) {
	_, _, ca, _, _, _ := connectPair(t, common.TransportConfig{})

	ca.SetMaxIdle(100 * time.Millisecond)
	ca.SetMaxIdle(0)

	select {
	case <-ca.Closed():
		t.Fatal("connection closed although the idle timeout was removed")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestHeartbeatKeepsConnectionAlive(t *testing.T) {
	config := common.TransportConfig{HeartbeatInterval: 50 * time.Millisecond}
	a, _, ca, cb, _, _ := connectPair(t, config)

	time.Sleep(500 * time.Millisecond)

	if ca.State() != transport.StateConnected || cb.State() != transport.StateConnected {
		t.Fatalf("heartbeats must keep the connection alive, got %s / %s", ca.State(), cb.State())
	}
	if a.metrics.heartbeatsSent.Get() == 0 {
		t.Error("expected heartbeats to be sent")
	}
	if got := a.Stats().HeartbeatTimeouts; got != 0 {
		t.Errorf("expected no heartbeat timeouts, got %d", got)
	}
}

func TestHeartbeatTimeout(t *testing.T) {
	a, _ := newTestManager(t, common.TransportConfig{HeartbeatInterval: 50 * time.Millisecond})

	// a peer that completes the handshake and then goes silent
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	silent := make(chan *rawPeer, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		p := newRawPeer(t, conn)
		p.expect(frame.CodeConnect)
		p.send(frame.NewConnectReply(frame.StatusAccepted, ln.Addr().String()))
		silent <- p
	}()

	c, err := a.GetConnection(context.Background(), ln.Addr().String(), true)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	p := <-silent

	// the silent peer sees a heartbeat before the connection is dropped
	p.expect(frame.CodeHeartbeat)

	select {
	case <-c.Closed():
	case <-time.After(2 * time.Second):
		t.Fatal("silent connection was not closed")
	}
	if got := a.Stats().HeartbeatTimeouts; got != 1 {
		t.Errorf("expected 1 heartbeat timeout, got %d", got)
	}
}

func TestHeartbeatIsAnswered(t *testing.T) {
	b, recB := newTestManager(t, common.TransportConfig{})

	p := dialRaw(t, b.Addr().String())
	p.send(frame.NewConnect("10.0.0.3:4000"))
	p.expect(frame.CodeConnectReply)
	<-recB.connected

	p.send(frame.NewHeartbeat())
	p.expect(frame.CodeHeartbeatAck)
}
