package base

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/ValentinKolb/planet/rpc/transport"
	"github.com/ValentinKolb/planet/rpc/transport/frame"
)

// readLoop is the I/O worker of a connection. It reads whatever the socket
// delivers into the framer and handles every complete frame in order.
// Handshake, heartbeat, data and data control frames are handled inline and
// never block on the socket; everything that may block is submitted to the
// execution pool. A protocol error or a read error closes the connection.
func (c *Connection) readLoop() {
	c.mu.Lock()
	nc := c.netConn
	c.mu.Unlock()
	if nc == nil {
		return
	}

	for {
		n, readErr := c.framer.ReadFrom(nc)
		if n > 0 {
			c.dirty.Store(true)
			c.hbSent.Store(false)
		}

		if err := c.drainFramer(); err != nil {
			if frame.IsProtocolError(err) {
				c.manager.metrics.protocolErrors.Inc()
			}
			c.shutdown(err)
			return
		}

		if readErr != nil {
			switch {
			case errors.Is(readErr, io.EOF):
				c.shutdown(fmt.Errorf("%w: closed by peer", transport.ErrConnectionClosed))
			case errors.Is(readErr, net.ErrClosed):
				c.shutdown(transport.ErrConnectionClosed)
			default:
				c.shutdown(fmt.Errorf("%w: %v", transport.ErrConnectionClosed, readErr))
			}
			return
		}
	}
}

// drainFramer handles all complete frames currently buffered
func (c *Connection) drainFramer() error {
	for {
		f, ok, err := c.framer.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		c.manager.metrics.frameReceived(f.Header.Code, int(f.Header.Length))
		ioLogger.Debugf("%s received %s", c, f)

		if err := c.handleFrame(f); err != nil {
			return err
		}
	}
}

func (c *Connection) handleFrame(f frame.Frame) error {
	switch f.Header.Code {
	case frame.CodeConnect:
		return c.onConnect(f)
	case frame.CodeConnectReply:
		return c.onConnectReply(f)
	}

	if c.State() != transport.StateConnected {
		return &frame.ProtocolError{Reason: fmt.Sprintf("%s before handshake completed", f.Header.Code)}
	}

	switch f.Header.Code {
	case frame.CodeHeartbeat:
		return c.onHeartbeat()
	case frame.CodeHeartbeatAck:
		// any read already marked the connection alive
		return nil
	case frame.CodeData:
		c.lastAccess.Store(time.Now().UnixNano())
		return c.onData(f)
	case frame.CodeDataCtrl:
		c.lastAccess.Store(time.Now().UnixNano())
		return c.onDataCtrl(f)
	default:
		return &frame.ProtocolError{Reason: fmt.Sprintf("unexpected frame code %d", f.Header.Code)}
	}
}

// --------------------------------------------------------------------------
// Handshake
// --------------------------------------------------------------------------

// onConnect handles the first frame of an accepted connection
func (c *Connection) onConnect(f frame.Frame) error {
	if c.active || c.State() != transport.StateConnecting {
		return &frame.ProtocolError{Reason: "unexpected CONNECT"}
	}

	peerID, err := frame.ParseConnect(f)
	if err != nil {
		return err
	}
	c.setPeerID(peerID)

	if err := c.manager.onAccepted(c); err != nil {
		// best effort, the connection is closed anyway
		_ = c.Write(frame.NewConnectReply(frame.StatusRejected, err.Error()))
		return fmt.Errorf("%w: rejected %s: %v", transport.ErrHandshakeRejected, peerID, err)
	}

	// nothing may reach the originator before its CONNECT_REPLY
	if err := c.Write(frame.NewConnectReply(frame.StatusAccepted, c.localID)); err != nil {
		return err
	}
	c.markConnected()
	Logger.Infof("Accepted %s using %s transport", c, c.manager.connector.GetName())
	return nil
}

// onConnectReply completes the handshake of an originated connection
func (c *Connection) onConnectReply(f frame.Frame) error {
	if !c.active || c.State() != transport.StateConnecting {
		return &frame.ProtocolError{Reason: "unexpected CONNECT_REPLY"}
	}

	status, details, err := frame.ParseConnectReply(f)
	if err != nil {
		return err
	}
	if status != frame.StatusAccepted {
		return fmt.Errorf("%w by %s: %s", transport.ErrHandshakeRejected, c.PeerID(), details)
	}
	if details != c.PeerID() {
		Logger.Debugf("%s: peer announced itself as %s", c, details)
	}

	c.markConnected()
	return nil
}

// --------------------------------------------------------------------------
// Heartbeat
// --------------------------------------------------------------------------

// onHeartbeat answers with HEARTBEAT_ACK from the execution pool, since the
// write may wait for the writer token
func (c *Connection) onHeartbeat() error {
	err := c.Submit(func() {
		if err := c.Write(frame.NewHeartbeatAck()); err != nil {
			inspLogger.Debugf("Failed to answer heartbeat on %s: %v", c, err)
		}
	})
	if err != nil {
		inspLogger.Debugf("Dropped heartbeat on %s: %v", c, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Data
// --------------------------------------------------------------------------

// onData routes a block to its input channel. Block 0 opens a new channel
// and is announced to the listener.
func (c *Connection) onData(f frame.Frame) error {
	h := f.Header

	if h.BlockNum == 0 {
		if h.Final {
			c.manager.listener.OnInputChannel(newSingleInputChannel(c, h.ChannelID, f.Payload))
			return nil
		}

		ch := newMultiInputChannel(c, h.ChannelID)
		if _, loaded := c.inputs.LoadOrStore(h.ChannelID, ch); loaded {
			return &frame.ProtocolError{Reason: fmt.Sprintf("channel %d opened twice", h.ChannelID)}
		}
		if err := ch.appendBlock(0, f.Payload, false); err != nil {
			return err
		}
		c.manager.listener.OnInputChannel(ch)
		return nil
	}

	ch, ok := c.inputs.Load(h.ChannelID)
	if !ok {
		// the channel was closed locally, the sender has not seen CLOSE_DATA yet
		chLogger.Debugf("%s: dropping block %d of unknown channel %d", c, h.BlockNum, h.ChannelID)
		return nil
	}
	if err := ch.appendBlock(h.BlockNum, f.Payload, h.Final); err != nil {
		return err
	}
	if h.Final {
		ch.unregister()
	}
	return nil
}

// onDataCtrl handles flow control for one of our output channels. It only
// adjusts counters and never blocks, so credit is returned even when every
// worker of the execution pool is blocked writing.
func (c *Connection) onDataCtrl(f frame.Frame) error {
	id, ctrl, err := frame.ParseDataCtrl(f)
	if err != nil {
		return err
	}

	ch, ok := c.outputs.Load(id)
	if !ok {
		chLogger.Debugf("%s: DATA_CTRL %d for unknown channel %d", c, ctrl, id)
		return nil
	}

	switch ctrl {
	case frame.NextData:
		ch.onNextData()
	case frame.CloseData:
		ch.onCloseData()
	default:
		return &frame.ProtocolError{Reason: fmt.Sprintf("unknown data control %d", ctrl)}
	}
	return nil
}
