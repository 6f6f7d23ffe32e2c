package session

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ValentinKolb/planet/rpc/serializer"
	"github.com/ValentinKolb/planet/rpc/transport"
	"github.com/ValentinKolb/planet/rpc/wire"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var streamLogger = logger.GetLogger("rpc/stream")

// --------------------------------------------------------------------------
// Incoming streams
// --------------------------------------------------------------------------

// streamSlot is the meeting point of a STREAM channel and the reader of the
// stream reference. Whichever comes first creates the slot.
type streamSlot struct {
	ready     chan struct{}
	ch        transport.IInputChannel
	abandoned bool
}

// streamRegistry holds the STREAM channels of a session by channel id
type streamRegistry struct {
	slots  *xsync.MapOf[int32, *streamSlot]
	closed <-chan struct{}
}

func newStreamRegistry(closed <-chan struct{}) *streamRegistry {
	return &streamRegistry{
		slots:  xsync.NewMapOf[int32, *streamSlot](),
		closed: closed,
	}
}

// register hands ch to a waiting or future reader
func (r *streamRegistry) register(ch transport.IInputChannel) {
	drop := false
	r.slots.Compute(ch.ID(), func(slot *streamSlot, loaded bool) (*streamSlot, bool) {
		if !loaded {
			slot = &streamSlot{ready: make(chan struct{})}
		}
		if slot.abandoned || slot.ch != nil {
			drop = true
			return slot, slot.abandoned
		}
		slot.ch = ch
		close(slot.ready)
		return slot, false
	})
	if drop {
		streamLogger.Debugf("Dropping unclaimed stream %d", ch.ID())
		_ = ch.Close()
	}
}

// wait returns the channel of stream id, waiting at most timeout for it
func (r *streamRegistry) wait(id int32, timeout time.Duration) (transport.IInputChannel, error) {
	slot, _ := r.slots.LoadOrCompute(id, func() *streamSlot {
		return &streamSlot{ready: make(chan struct{})}
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-slot.ready:
		r.slots.Delete(id)
		return slot.ch, nil
	case <-r.closed:
		return nil, ErrSessionClosed
	case <-timer.C:
		r.abandon(id)
		return nil, fmt.Errorf("%w: stream %d did not arrive within %s", ErrStreamTimeout, id, timeout)
	}
}

// abandon gives up on stream id. A channel arriving later is closed at once.
func (r *streamRegistry) abandon(id int32) {
	var ch transport.IInputChannel
	r.slots.Compute(id, func(slot *streamSlot, loaded bool) (*streamSlot, bool) {
		if !loaded {
			return &streamSlot{ready: make(chan struct{}), abandoned: true}, false
		}
		if slot.ch != nil {
			ch = slot.ch
			return nil, true
		}
		slot.abandoned = true
		return slot, false
	})
	if ch != nil {
		_ = ch.Close()
	}
}

// closeAll closes every registered channel
func (r *streamRegistry) closeAll() {
	r.slots.Range(func(_ int32, slot *streamSlot) bool {
		if slot.ch != nil {
			_ = slot.ch.Close()
		}
		return true
	})
	r.slots.Clear()
}

// remoteStream is the reader handed out for a stream reference. The channel
// is looked up on the first Read.
type remoteStream struct {
	s    *Session
	id   int32
	once sync.Once
	ch   transport.IInputChannel
	err  error
}

func (rs *remoteStream) resolve() {
	rs.once.Do(func() {
		rs.ch, rs.err = rs.s.streams.wait(rs.id, rs.s.config.StreamWaitTimeout)
	})
}

func (rs *remoteStream) Read(p []byte) (int, error) {
	rs.resolve()
	if rs.err != nil {
		return 0, rs.err
	}
	return rs.ch.Read(p)
}

// Close releases the stream. Closing before the first Read abandons it without waiting.
func (rs *remoteStream) Close() error {
	rs.once.Do(func() {
		rs.err = transport.ErrChannelClosed
		rs.s.streams.abandon(rs.id)
	})
	if rs.ch != nil {
		return rs.ch.Close()
	}
	return nil
}

func (rs *remoteStream) String() string {
	return fmt.Sprintf("stream#%d@%s", rs.id, rs.s)
}

// resolveStream replaces a stream reference by its reader
func (s *Session) resolveStream(v any) any {
	if ref, ok := v.(serializer.StreamRef); ok {
		return &remoteStream{s: s, id: ref.ID}
	}
	return v
}

// releaseStreams abandons the stream references among values. Their channels
// are closed on arrival, which stops the sender.
func (s *Session) releaseStreams(values ...any) {
	for _, v := range values {
		if ref, ok := v.(serializer.StreamRef); ok {
			s.streams.abandon(ref.ID)
		}
	}
}

// --------------------------------------------------------------------------
// Outgoing streams
// --------------------------------------------------------------------------

// outStream is a reader copied into its own channel by a stream worker
type outStream struct {
	ch  transport.IOutputChannel
	src io.Reader
}

// bindStreams replaces every io.Reader in values by a reference to a new
// output channel. The returned streams must be started or aborted.
func (s *Session) bindStreams(values []any) ([]outStream, error) {
	var streams []outStream
	for i, v := range values {
		src, ok := v.(io.Reader)
		if !ok {
			continue
		}
		out, err := s.conn.NewOutputChannel()
		if err != nil {
			abortStreams(streams)
			return nil, err
		}
		values[i] = serializer.StreamRef{ID: out.ID()}
		streams = append(streams, outStream{ch: out, src: src})
	}
	return streams, nil
}

func (s *Session) startStreams(streams []outStream) {
	for _, st := range streams {
		s.d.metrics.streamsSent.Inc()
		go s.pump(st)
	}
}

func abortStreams(streams []outStream) {
	for _, st := range streams {
		st.ch.Abort()
		if c, ok := st.src.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

// pump is the stream worker: it writes the STREAM header and copies the
// source into the channel until EOF or until the reader closes the channel
func (s *Session) pump(st outStream) {
	if c, ok := st.src.(io.Closer); ok {
		defer c.Close()
	}

	w := wire.NewWriter(HeaderSize)
	encodeStreamHeader(w)
	if _, err := st.ch.Write(w.Bytes()); err != nil {
		streamLogger.Debugf("Stream %d on %s not started: %v", st.ch.ID(), s, err)
		st.ch.Abort()
		return
	}

	n, err := io.Copy(st.ch, st.src)
	if err != nil {
		if errors.Is(err, transport.ErrChannelClosedByPeer) {
			streamLogger.Debugf("Stream %d on %s closed by the reader after %d bytes", st.ch.ID(), s, n)
		} else {
			streamLogger.Warningf("Stream %d on %s failed after %d bytes: %v", st.ch.ID(), s, n, err)
		}
		st.ch.Abort()
		return
	}
	if err := st.ch.Close(); err != nil {
		streamLogger.Debugf("Closing stream %d on %s failed: %v", st.ch.ID(), s, err)
		return
	}
	streamLogger.Debugf("Stream %d on %s finished after %d bytes", st.ch.ID(), s, n)
}
