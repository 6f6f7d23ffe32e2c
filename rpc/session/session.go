package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/planet/lib/util"
	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/serializer"
	"github.com/ValentinKolb/planet/rpc/servant"
	"github.com/ValentinKolb/planet/rpc/transport"
	"github.com/ValentinKolb/planet/rpc/wire"
	"github.com/VictoriaMetrics/fastcache"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc/session")

// maxCachedReply is the largest reply kept in the const cache
const maxCachedReply = 60 * 1024

// writerPool holds message buffers
var writerPool = sync.Pool{
	New: func() any { return wire.NewWriter(512) },
}

// Session is the call correlation state of one connection. It is created
// when the connection is established and closed with it: all outstanding
// calls then fail, session-bound servants, streams and cached results are
// dropped.
type Session struct {
	d      *Dispatcher
	conn   transport.IConnection
	config common.SessionConfig
	codec  serializer.IValueCodec
	key    string
	seed   uint64

	nextReqID atomic.Int64
	waiters   *xsync.MapOf[int32, *waiter]
	servants  *xsync.MapOf[string, *servant.Servant]
	streams   *streamRegistry
	cache     *fastcache.Cache

	// ctx is the parent of all handler contexts, cancelled on close
	ctx       context.Context
	cancel    context.CancelFunc
	closed    chan struct{}
	closeOnce sync.Once
	cause     error
}

// waiter is registered for a call before it is sent. Whoever removes it
// from the waiter table resolves it.
type waiter struct {
	desc     *servant.Desc
	cacheKey []byte
	done     chan result
}

type result struct {
	value any
	err   error
}

type ctxKey struct{}

// FromContext returns the session of the call handled with ctx
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok
}

func newSession(d *Dispatcher, conn transport.IConnection) *Session {
	s := &Session{
		d:        d,
		conn:     conn,
		config:   d.config,
		codec:    d.codec,
		key:      fmt.Sprint(conn.ID()),
		seed:     util.GenerateSeed(),
		waiters:  xsync.NewMapOf[int32, *waiter](),
		servants: xsync.NewMapOf[string, *servant.Servant](),
		cache:    fastcache.New(d.config.ConstCacheBytes),
		closed:   make(chan struct{}),
	}
	s.streams = newStreamRegistry(s.closed)
	s.ctx, s.cancel = context.WithCancel(context.WithValue(context.Background(), ctxKey{}, s))
	return s
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// Conn returns the connection of the session
func (s *Session) Conn() transport.IConnection {
	return s.conn
}

// PeerID returns the id of the remote peer
func (s *Session) PeerID() string {
	return s.conn.PeerID()
}

// PendingCalls returns the number of calls waiting for a reply
func (s *Session) PendingCalls() int {
	return s.waiters.Size()
}

// Closed returns a channel that is closed with the session
func (s *Session) Closed() <-chan struct{} {
	return s.closed
}

// Close closes the connection and with it the session
func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) String() string {
	return fmt.Sprintf("session#%s(%s)", s.key, s.conn.PeerID())
}

// Invoke calls method desc of the servant at path and waits for the result.
// The deadline of ctx overrides the configured call timeout. On timeout the
// call is abandoned locally; the peer is not told.
//
// Remote errors declared in desc are returned as *RemoteError, all other
// failures (including a closed connection) as *RemoteSystemError.
// io.Reader arguments are sent as streams, stream results are returned as
// io.ReadCloser.
func (s *Session) Invoke(ctx context.Context, path string, desc *servant.Desc, args ...any) (any, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var cacheKey []byte
	if desc.Const {
		cacheKey = constKey(path, desc.Signature)
		if v, ok := s.cached(cacheKey); ok {
			s.d.metrics.constHits.Inc()
			return v, nil
		}
	}

	if _, ok := ctx.Deadline(); !ok && s.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.CallTimeout)
		defer cancel()
	}

	args = append([]any(nil), args...)
	streams, err := s.bindStreams(args)
	if err != nil {
		return nil, err
	}

	msg := &callMsg{Path: path, Interface: desc.Interface, Signature: desc.Signature, Args: args}
	reqID, err := s.newReqID()
	if err != nil {
		abortStreams(streams)
		return nil, err
	}
	buf, err := s.encode(func(w *wire.Writer) error {
		return encodeCall(w, s.codec, Header{ReqID: reqID, Code: CodeCall}, msg)
	})
	if err != nil {
		abortStreams(streams)
		return nil, err
	}

	start := time.Now()
	w := &waiter{desc: desc, cacheKey: cacheKey, done: make(chan result, 1)}
	s.waiters.Store(reqID, w)

	// close resolves every waiter it finds; a waiter stored after that is ours to fail
	select {
	case <-s.closed:
		abortStreams(streams)
		if _, ok := s.waiters.LoadAndDelete(reqID); ok {
			return nil, s.closedError()
		}
		res := <-w.done
		return res.value, res.err
	default:
	}

	if err := s.write(buf); err != nil {
		abortStreams(streams)
		if _, ok := s.waiters.LoadAndDelete(reqID); ok {
			return nil, &RemoteSystemError{Cause: err}
		}
	} else {
		s.d.metrics.callsSent.Inc()
		s.startStreams(streams)
		Logger.Debugf("Sent CALL#%d %s on %s", reqID, msg, s)
	}

	select {
	case res := <-w.done:
		s.d.metrics.invoked(start)
		return res.value, res.err

	case <-ctx.Done():
		if _, ok := s.waiters.LoadAndDelete(reqID); ok {
			s.d.metrics.callTimeouts.Inc()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s on %s after %s: %w", ErrCallTimeout, msg, s, time.Since(start).Round(time.Millisecond), ctx.Err())
			}
			return nil, fmt.Errorf("call %s on %s abandoned: %w", msg, s, ctx.Err())
		}
		// resolved concurrently
		res := <-w.done
		return res.value, res.err
	}
}

// Notify sends a one way call. It returns once the message is sent; the
// outcome on the peer is never reported back.
func (s *Session) Notify(path string, desc *servant.Desc, args ...any) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	args = append([]any(nil), args...)
	streams, err := s.bindStreams(args)
	if err != nil {
		return err
	}

	msg := &callMsg{Path: path, Interface: desc.Interface, Signature: desc.Signature, Args: args}
	buf, err := s.encode(func(w *wire.Writer) error {
		reqID, err := s.newReqID()
		if err != nil {
			return err
		}
		return encodeCall(w, s.codec, Header{ReqID: reqID, Code: CodeNotify}, msg)
	})
	if err == nil {
		err = s.write(buf)
	}
	if err != nil {
		abortStreams(streams)
		return err
	}

	s.d.metrics.notifiesSent.Inc()
	s.startStreams(streams)
	return nil
}

// AddServant binds sv to the session under a generated path. The returned
// reference can be passed to the peer, which calls the servant through it.
func (s *Session) AddServant(sv *servant.Servant) serializer.RemoteRef {
	id := util.HashString(fmt.Sprintf("%p", sv), s.seed)
	path := fmt.Sprintf("/conn/%s/%x", s.key, uint64(id))
	s.servants.Store(path, sv)
	return serializer.RemoteRef{TypeNames: sv.Interface, PeerID: s.conn.LocalID(), Path: path}
}

// RemoveServant unbinds the session servant at path
func (s *Session) RemoveServant(path string) bool {
	_, ok := s.servants.LoadAndDelete(path)
	return ok
}

// --------------------------------------------------------------------------
// Incoming messages (called by the dispatcher)
// --------------------------------------------------------------------------

// onResult resolves the waiter of a REPLY or ERROR message
func (s *Session) onResult(h Header, r *wire.Reader) {
	w, ok := s.waiters.LoadAndDelete(h.ReqID)
	if !ok {
		s.d.metrics.unmatchedReplies.Inc()
		Logger.Infof("Dropping %s on %s: no waiting call", h, s)
		if h.Code == CodeReply {
			// a late stream result must not hold the sender
			if value, err := s.codec.Decode(r); err == nil {
				s.releaseStreams(value)
			}
		}
		return
	}

	if h.Code == CodeError {
		remote, err := decodeError(r)
		switch {
		case err != nil:
			w.done <- result{err: &RemoteSystemError{Cause: fmt.Errorf("failed to decode error reply: %w", err)}}
		case w.desc.Declares(remote.TypeName):
			w.done <- result{err: remote}
		default:
			w.done <- result{err: &RemoteSystemError{Cause: remote}}
		}
		return
	}

	raw := r.Rest()
	value, err := s.codec.Decode(r)
	if err != nil {
		w.done <- result{err: &RemoteSystemError{Cause: fmt.Errorf("failed to decode reply: %w", err)}}
		return
	}
	value = s.resolveStream(value)
	if _, isStream := value.(*remoteStream); w.cacheKey != nil && !isStream && len(raw) <= maxCachedReply {
		s.cache.Set(w.cacheKey, raw)
	}
	w.done <- result{value: value}
}

// serveCall executes a CALL or NOTIFY and sends the reply of a CALL
func (s *Session) serveCall(h Header, r *wire.Reader) {
	start := time.Now()
	call, err := decodeCall(r, s.codec)
	if err != nil {
		if call != nil {
			s.releaseStreams(call.Args...)
		}
		err = servant.NewError(servant.TypeInvalidArgument, "undecodable %s: %v", h.Code, err)
	} else {
		for i := range call.Args {
			call.Args[i] = s.resolveStream(call.Args[i])
		}
	}

	var value any
	if err == nil {
		value, err = s.execute(call)
		// stream arguments are only valid while the handler runs
		for _, arg := range call.Args {
			if rs, ok := arg.(*remoteStream); ok {
				_ = rs.Close()
			}
		}
	}

	if h.Code == CodeNotify {
		s.d.metrics.notifiesServed.Inc()
		if err != nil {
			dispatchLogger.Warningf("NOTIFY %s from %s failed: %v", call, s.conn.PeerID(), err)
		}
		return
	}

	s.d.metrics.callsServed.Inc()
	if err != nil {
		dispatchLogger.Debugf("CALL#%d %s from %s failed: %v", h.ReqID, call, s.conn.PeerID(), err)
		s.replyError(h.ReqID, err)
	} else {
		s.reply(h.ReqID, value)
	}
	s.d.metrics.serveTimer.UpdateSince(start)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// execute resolves the servant and runs the method. Panics become system errors.
func (s *Session) execute(call *callMsg) (value any, err error) {
	sv, err := s.resolve(call.Path)
	if err != nil {
		return nil, err
	}
	if call.Interface != "" && call.Interface != sv.Interface {
		return nil, servant.NewError(servant.TypeMethodNotFound, "servant at %q implements %s, not %s", call.Path, sv.Interface, call.Interface)
	}
	m, err := sv.Method(call.Signature)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			dispatchLogger.Errorf("Recovered from panic in %s: %v\n%s", call, r, debug.Stack())
			value, err = nil, servant.NewError(servant.TypeSystemError, "panic in %s: %v", call.Signature, r)
		}
	}()
	return m.Invoke(s.ctx, call.Args)
}

// resolve looks up path in the session servants, then in the node directory
func (s *Session) resolve(path string) (*servant.Servant, error) {
	if sv, ok := s.servants.Load(path); ok {
		return sv, nil
	}
	if s.d.resolver == nil {
		return nil, servant.NewError(servant.TypeServantNotFound, "no servant at %q", path)
	}
	return s.d.resolver.Resolve(path)
}

func (s *Session) reply(reqID int32, value any) {
	values := []any{value}
	streams, err := s.bindStreams(values)
	if err != nil {
		Logger.Debugf("Failed to reply to CALL#%d on %s: %v", reqID, s, err)
		return
	}

	buf, err := s.encode(func(w *wire.Writer) error {
		return encodeReply(w, s.codec, reqID, values[0])
	})
	if err != nil {
		abortStreams(streams)
		s.replyError(reqID, servant.NewError(servant.TypeSystemError, "failed to encode result: %v", err))
		return
	}
	if err := s.write(buf); err != nil {
		abortStreams(streams)
		Logger.Debugf("Failed to reply to CALL#%d on %s: %v", reqID, s, err)
		return
	}
	s.startStreams(streams)
}

func (s *Session) replyError(reqID int32, err error) {
	s.d.metrics.errorsSent.Inc()
	buf, _ := s.encode(func(w *wire.Writer) error {
		encodeError(w, reqID, servant.TypeNameOf(err), servant.MessageOf(err))
		return nil
	})
	if err := s.write(buf); err != nil {
		Logger.Debugf("Failed to send error for CALL#%d on %s: %v", reqID, s, err)
	}
}

// encode runs fn on a pooled writer and returns a copy of the result
func (s *Session) encode(fn func(w *wire.Writer) error) ([]byte, error) {
	w := writerPool.Get().(*wire.Writer)
	defer func() {
		w.Reset()
		writerPool.Put(w)
	}()
	if err := fn(w); err != nil {
		return nil, err
	}
	return append([]byte(nil), w.Bytes()...), nil
}

// write sends one message on its own channel
func (s *Session) write(msg []byte) error {
	out, err := s.conn.NewOutputChannel()
	if err != nil {
		return err
	}
	if _, err := out.Write(msg); err != nil {
		out.Abort()
		return err
	}
	return out.Close()
}

// newReqID returns the next request id. Ids are never reused, a session that
// used them all up is closed together with its connection.
func (s *Session) newReqID() (int32, error) {
	id := s.nextReqID.Add(1)
	if id > math.MaxInt32 {
		s.close(ErrRequestIDsExhausted)
		_ = s.conn.Close()
		return 0, s.closedError()
	}
	return int32(id), nil
}

func (s *Session) checkOpen() error {
	select {
	case <-s.closed:
		return s.closedError()
	default:
		return nil
	}
}

func (s *Session) closedError() error {
	return &RemoteSystemError{Cause: s.cause}
}

func (s *Session) cached(key []byte) (any, bool) {
	raw, ok := s.cache.HasGet(nil, key)
	if !ok {
		return nil, false
	}
	v, err := s.codec.Decode(wire.NewReader(raw))
	if err != nil {
		Logger.Warningf("Dropping undecodable cached result on %s: %v", s, err)
		s.cache.Del(key)
		return nil, false
	}
	return v, true
}

func constKey(path, signature string) []byte {
	key := make([]byte, 0, len(path)+len(signature)+1)
	key = append(key, path...)
	key = append(key, 0)
	return append(key, signature...)
}

// close fails all waiters exactly once and drops all session state
func (s *Session) close(cause error) {
	s.closeOnce.Do(func() {
		if cause == nil {
			cause = transport.ErrConnectionClosed
		} else if !errors.Is(cause, transport.ErrConnectionClosed) {
			cause = fmt.Errorf("%w: %w", transport.ErrConnectionClosed, cause)
		}
		s.cause = cause
		close(s.closed)
		s.cancel()

		failed := 0
		s.waiters.Range(func(id int32, w *waiter) bool {
			if _, ok := s.waiters.LoadAndDelete(id); ok {
				w.done <- result{err: &RemoteSystemError{Cause: cause}}
				failed++
			}
			return true
		})
		s.servants.Clear()
		s.streams.closeAll()
		s.cache.Reset()

		Logger.Infof("Closed %s (%d calls failed): %v", s, failed, cause)
	})
}
