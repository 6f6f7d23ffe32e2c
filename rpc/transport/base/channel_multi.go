package base

import (
	"fmt"
	"io"
	"sync"

	"github.com/ValentinKolb/planet/rpc/transport"
	"github.com/ValentinKolb/planet/rpc/transport/frame"
)

// --------------------------------------------------------------------------
// Output Channel
// --------------------------------------------------------------------------

// outputChannel accumulates writes in a block buffer and sends full blocks
// as DATA frames. If everything written fits into one block, Close sends a
// single final block 0 and the receiver treats the channel as single-block.
//
// Once a non-final block was sent, the channel is registered in the
// connection so that DATA_CTRL frames can reach it, and at most maxPendings
// blocks may be unacknowledged.
//
// Write, Flush and Close must be called from one goroutine at a time. Abort
// and the connection may close the channel concurrently.
type outputChannel struct {
	id          int32
	conn        *Connection
	maxPayload  int
	maxPendings int

	mu           sync.Mutex
	cond         *sync.Cond
	buf          []byte
	blockNum     int32
	pendings     int
	registered   bool
	closed       bool
	closeErr     error
	closedByPeer chan struct{}
}

func newOutputChannel(c *Connection, id int32) *outputChannel {
	ch := &outputChannel{
		id:           id,
		conn:         c,
		maxPayload:   c.config.BlockSize - frame.HeaderSize,
		maxPendings:  c.config.MaxPendings(),
		closedByPeer: make(chan struct{}),
	}
	ch.cond = sync.NewCond(&ch.mu)
	return ch
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IOutputChannel)
// --------------------------------------------------------------------------

func (ch *outputChannel) ID() int32 {
	return ch.id
}

func (ch *outputChannel) Write(p []byte) (int, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return 0, ch.closeErr
	}

	written := 0
	for len(ch.buf)+len(p) > ch.maxPayload {
		n := ch.maxPayload - len(ch.buf)
		ch.buf = append(ch.buf, p[:n]...)
		p = p[n:]
		if err := ch.sendLocked(false); err != nil {
			return written, err
		}
		written += n
	}
	ch.buf = append(ch.buf, p...)
	written += len(p)

	return written, nil
}

func (ch *outputChannel) Flush() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return ch.closeErr
	}
	if len(ch.buf) == 0 {
		return nil
	}
	return ch.sendLocked(false)
}

func (ch *outputChannel) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		if ch.closeErr == transport.ErrChannelClosed {
			return nil
		}
		return ch.closeErr
	}

	err := ch.sendLocked(true)
	ch.markClosedLocked(transport.ErrChannelClosed)
	return err
}

func (ch *outputChannel) Abort() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if !ch.closed {
		ch.markClosedLocked(transport.ErrChannelClosed)
	}
}

func (ch *outputChannel) ClosedByPeer() <-chan struct{} {
	return ch.closedByPeer
}

// --------------------------------------------------------------------------
// Control frame handling (called by the connection's reader)
// --------------------------------------------------------------------------

// onNextData releases one pending block
func (ch *outputChannel) onNextData() {
	ch.mu.Lock()
	if ch.pendings > 0 {
		ch.pendings--
	}
	ch.cond.Broadcast()
	ch.mu.Unlock()
}

// onCloseData marks the channel as closed by the reader
func (ch *outputChannel) onCloseData() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return
	}
	chLogger.Debugf("Output channel %d on %s closed by peer after %d blocks", ch.id, ch.conn, ch.blockNum)
	close(ch.closedByPeer)
	ch.markClosedLocked(transport.ErrChannelClosedByPeer)
}

// forceClose is called when the connection closes
func (ch *outputChannel) forceClose() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if !ch.closed {
		ch.markClosedLocked(transport.ErrConnectionClosed)
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sendLocked sends the buffer as the next block. It waits for credit while
// maxPendings blocks are unacknowledged. The channel lock is released while
// the frame is written so that control frames can be processed meanwhile.
func (ch *outputChannel) sendLocked(final bool) error {
	singleBlock := final && ch.blockNum == 0

	if !singleBlock {
		if !ch.registered {
			ch.conn.outputs.Store(ch.id, ch)
			ch.registered = true
		}
		for ch.pendings >= ch.maxPendings && !ch.closed {
			ch.cond.Wait()
		}
		if ch.closed {
			return ch.closeErr
		}
		ch.pendings++
	}

	f := frame.NewData(ch.id, ch.blockNum, final, ch.buf)
	ch.blockNum++

	ch.mu.Unlock()
	err := ch.conn.Write(f)
	ch.mu.Lock()

	if err != nil {
		if !ch.closed {
			ch.markClosedLocked(err)
		}
		return err
	}
	if ch.buf != nil {
		ch.buf = ch.buf[:0]
	}
	return nil
}

func (ch *outputChannel) markClosedLocked(err error) {
	ch.closed = true
	ch.closeErr = err
	ch.buf = nil
	ch.cond.Broadcast()
	if ch.registered {
		ch.conn.outputs.Compute(ch.id, func(old *outputChannel, loaded bool) (*outputChannel, bool) {
			return old, !loaded || old == ch
		})
		ch.registered = false
	}
}

// --------------------------------------------------------------------------
// Multi-Block Input Channel
// --------------------------------------------------------------------------

// multiInputChannel buffers the blocks of a channel the peer sent in more
// than one frame. Every non-final block handed to the consumer before the
// final block arrived is acknowledged with NEXT_DATA.
type multiInputChannel struct {
	id   int32
	conn *Connection

	mu     sync.Mutex
	cond   *sync.Cond
	blocks [][]byte
	cur    []byte
	next   int32 // expected block number
	ended  bool  // final block received
	closed bool
	forced bool
}

func newMultiInputChannel(c *Connection, id int32) *multiInputChannel {
	ch := &multiInputChannel{id: id, conn: c}
	ch.cond = sync.NewCond(&ch.mu)
	return ch
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IInputChannel)
// --------------------------------------------------------------------------

func (ch *multiInputChannel) ID() int32 {
	return ch.id
}

func (ch *multiInputChannel) Connection() transport.IConnection {
	return ch.conn
}

func (ch *multiInputChannel) Nonblocking() bool {
	return false
}

func (ch *multiInputChannel) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	ch.mu.Lock()
	for {
		if ch.closed {
			ch.mu.Unlock()
			if ch.forced {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, transport.ErrChannelClosed
		}

		if len(ch.cur) > 0 {
			n := copy(p, ch.cur)
			ch.cur = ch.cur[n:]
			ch.mu.Unlock()
			return n, nil
		}

		if len(ch.blocks) > 0 {
			ch.cur = ch.blocks[0]
			ch.blocks[0] = nil
			ch.blocks = ch.blocks[1:]

			if !ch.ended {
				// the sender is still producing, grant one more block
				ch.mu.Unlock()
				if err := ch.conn.Write(frame.NewDataCtrl(ch.id, frame.NextData)); err != nil {
					chLogger.Debugf("Failed to send NEXT_DATA for channel %d on %s: %v", ch.id, ch.conn, err)
				}
				ch.mu.Lock()
			}
			continue
		}

		if ch.ended {
			ch.mu.Unlock()
			return 0, io.EOF
		}

		ch.cond.Wait()
	}
}

// Close discards all buffered data. If the final block has not arrived yet,
// the sender is told with CLOSE_DATA to stop sending.
func (ch *multiInputChannel) Close() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.closed = true
	ch.blocks = nil
	ch.cur = nil
	early := !ch.ended
	ch.cond.Broadcast()
	ch.mu.Unlock()

	ch.unregister()

	if early {
		chLogger.Debugf("Input channel %d on %s closed before the final block", ch.id, ch.conn)
		if err := ch.conn.Write(frame.NewDataCtrl(ch.id, frame.CloseData)); err != nil {
			chLogger.Debugf("Failed to send CLOSE_DATA for channel %d on %s: %v", ch.id, ch.conn, err)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Block handling (called by the connection's reader)
// --------------------------------------------------------------------------

// appendBlock adds the payload of block blockNum. Blocks of a closed channel
// are dropped. An out of order block is a protocol error.
func (ch *multiInputChannel) appendBlock(blockNum int32, payload []byte, final bool) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if blockNum != ch.next {
		return &frame.ProtocolError{Reason: fmt.Sprintf("channel %d: expected block %d, got %d", ch.id, ch.next, blockNum)}
	}
	ch.next++

	if ch.closed {
		return nil
	}
	if len(payload) > 0 {
		ch.blocks = append(ch.blocks, payload)
	}
	if final {
		ch.ended = true
	}
	ch.cond.Broadcast()
	return nil
}

// forceClose is called when the connection closes. Pending readers fail
// with io.ErrUnexpectedEOF unless the final block was already received.
func (ch *multiInputChannel) forceClose() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed || ch.ended {
		return
	}
	ch.closed = true
	ch.forced = true
	ch.blocks = nil
	ch.cur = nil
	ch.cond.Broadcast()
}

func (ch *multiInputChannel) unregister() {
	ch.conn.inputs.Compute(ch.id, func(old *multiInputChannel, loaded bool) (*multiInputChannel, bool) {
		return old, !loaded || old == ch
	})
}
