package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/serializer"
	"github.com/ValentinKolb/planet/rpc/servant"
	"github.com/ValentinKolb/planet/rpc/transport"
	"github.com/ValentinKolb/planet/rpc/transport/tcp"
	"github.com/ValentinKolb/planet/rpc/wire"
)

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

const testPath = "/test"

var (
	echoDesc   = &servant.Desc{Interface: "test.Echo", Signature: servant.Signature("echo", "any")}
	failDesc   = &servant.Desc{Interface: "test.Echo", Signature: servant.Signature("fail"), Errors: []string{"test.Failure"}}
	sleepDesc  = &servant.Desc{Interface: "test.Echo", Signature: servant.Signature("sleep", "long")}
	countDesc  = &servant.Desc{Interface: "test.Echo", Signature: servant.Signature("count"), Const: true}
	notifyDesc = &servant.Desc{Interface: "test.Echo", Signature: servant.Signature("notify", "string")}
	drainDesc  = &servant.Desc{Interface: "test.Echo", Signature: servant.Signature("drain", "stream")}
	dataDesc   = &servant.Desc{Interface: "test.Echo", Signature: servant.Signature("data", "int")}
	panicDesc  = &servant.Desc{Interface: "test.Echo", Signature: servant.Signature("panic")}
	slowDesc   = &servant.Desc{Interface: "test.Echo", Signature: servant.Signature("slowData", "long", "int")}
)

var callbackDesc = &servant.Desc{Interface: "test.Echo", Signature: servant.Signature("callback", "ref")}

// echo is the servant mounted on the test server
type echo struct {
	counted  atomic.Int32
	notified chan string
	release  chan struct{}
	// closed sources of slowData results
	drained chan struct{}
}

// trackedSource reports its Close on closed
type trackedSource struct {
	io.Reader
	closed chan<- struct{}
	once   sync.Once
}

func (ts *trackedSource) Close() error {
	ts.once.Do(func() { ts.closed <- struct{}{} })
	return nil
}

func (e *echo) servant() *servant.Servant {
	return servant.New("test.Echo",
		&servant.Method{Desc: *echoDesc, Params: 1, Handler: func(_ context.Context, args servant.Args) (any, error) {
			return args[0], nil
		}},
		&servant.Method{Desc: *failDesc, Params: 0, Handler: func(context.Context, servant.Args) (any, error) {
			return nil, servant.NewError("test.Failure", "failed on purpose")
		}},
		&servant.Method{Desc: *sleepDesc, Params: 1, Handler: func(_ context.Context, args servant.Args) (any, error) {
			d, err := args.Duration(0)
			if err != nil {
				return nil, err
			}
			select {
			case <-time.After(d):
			case <-e.release:
			}
			return "slept", nil
		}},
		&servant.Method{Desc: *countDesc, Params: 0, Handler: func(context.Context, servant.Args) (any, error) {
			return e.counted.Add(1), nil
		}},
		&servant.Method{Desc: *notifyDesc, Params: 1, Handler: func(_ context.Context, args servant.Args) (any, error) {
			s, err := args.String(0)
			if err != nil {
				return nil, err
			}
			e.notified <- s
			return nil, nil
		}},
		&servant.Method{Desc: *drainDesc, Params: 1, Handler: func(_ context.Context, args servant.Args) (any, error) {
			r, err := args.Reader(0)
			if err != nil {
				return nil, err
			}
			return io.ReadAll(r)
		}},
		&servant.Method{Desc: *dataDesc, Params: 1, Handler: func(_ context.Context, args servant.Args) (any, error) {
			n, err := args.Int64(0)
			if err != nil {
				return nil, err
			}
			return bytes.NewReader(testData(int(n))), nil
		}},
		&servant.Method{Desc: *slowDesc, Params: 2, Handler: func(_ context.Context, args servant.Args) (any, error) {
			d, err := args.Duration(0)
			if err != nil {
				return nil, err
			}
			n, err := args.Int64(1)
			if err != nil {
				return nil, err
			}
			time.Sleep(d)
			return &trackedSource{Reader: bytes.NewReader(testData(int(n))), closed: e.drained}, nil
		}},
		&servant.Method{Desc: *panicDesc, Params: 0, Handler: func(context.Context, servant.Args) (any, error) {
			panic("boom")
		}},
		&servant.Method{Desc: *callbackDesc, Params: 1, Handler: func(ctx context.Context, args servant.Args) (any, error) {
			ref, ok := args[0].(serializer.RemoteRef)
			if !ok {
				return nil, servant.NewError(servant.TypeInvalidArgument, "expected a reference, got %T", args[0])
			}
			s, ok := FromContext(ctx)
			if !ok {
				return nil, errors.New("no session in context")
			}
			return s.Invoke(ctx, ref.Path, echoDesc, "called back")
		}},
	)
}

func testData(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

type testEnv struct {
	server *Dispatcher
	client *Dispatcher
	echo   *echo
	// session of the client with the server
	session *Session
}

func newTestEnv(t *testing.T, config common.SessionConfig) *testEnv {
	t.Helper()
	codec := serializer.NewBinaryCodec(serializer.NewJSONEncoder())

	e := &echo{notified: make(chan string, 8), release: make(chan struct{}), drained: make(chan struct{}, 8)}
	dir := servant.NewDirectory()
	if err := dir.Add(testPath, e.servant()); err != nil {
		t.Fatalf("failed to add servant: %v", err)
	}

	server := NewDispatcher(dir, codec, config)
	sm := tcp.NewManager(common.TransportConfig{Endpoint: "127.0.0.1:0", BlockSize: 4096}, server)
	server.Bind(sm)
	if err := sm.Listen(); err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	t.Cleanup(func() { _ = sm.Close() })

	client := NewDispatcher(nil, codec, config)
	cm := tcp.NewManager(common.TransportConfig{BlockSize: 4096}, client)
	client.Bind(cm)
	t.Cleanup(func() { _ = cm.Close() })
	// runs first, blocked handlers must not hold up the managers
	t.Cleanup(func() { close(e.release) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := client.Connect(ctx, sm.LocalID())
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	return &testEnv{server: server, client: client, echo: e, session: s}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestInvoke(t *testing.T) {
	env := newTestEnv(t, common.SessionConfig{CallTimeout: 5 * time.Second})

	tests := map[string]any{
		"string": "hello",
		"long":   int64(42),
		"binary": []byte{1, 2, 3},
		"list":   []any{"a", int64(1), true},
		"null":   nil,
	}
	for name, arg := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := env.session.Invoke(context.Background(), testPath, echoDesc, arg)
			if err != nil {
				t.Fatalf("invoke failed: %v", err)
			}
			if fmt.Sprint(got) != fmt.Sprint(arg) {
				t.Errorf("expected %v, got %v", arg, got)
			}
		})
	}

	if stats := env.client.Stats(); stats.CallsSent != uint64(len(tests)) || stats.PendingCalls != 0 {
		t.Errorf("unexpected client stats: %s", stats)
	}
	eventually(t, "served calls", func() bool {
		return env.server.Stats().CallsServed == uint64(len(tests))
	})
}

func TestConcurrentInvoke(t *testing.T) {
	env := newTestEnv(t, common.SessionConfig{CallTimeout: 5 * time.Second})

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := fmt.Sprintf("msg-%d", i)
			got, err := env.session.Invoke(context.Background(), testPath, echoDesc, want)
			if err != nil {
				errs <- err
				return
			}
			if got != want {
				errs <- fmt.Errorf("reply mismatch: expected %s, got %v", want, got)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestNotify(t *testing.T) {
	env := newTestEnv(t, common.SessionConfig{})

	if err := env.session.Notify(testPath, notifyDesc, "ping"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	select {
	case got := <-env.echo.notified:
		if got != "ping" {
			t.Errorf("expected ping, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}

	// failures of one way calls are not reported
	if err := env.session.Notify("/missing", notifyDesc, "ping"); err != nil {
		t.Errorf("notify to a missing servant failed locally: %v", err)
	}
	if env.session.PendingCalls() != 0 {
		t.Errorf("notify registered a waiter")
	}
}

func TestRemoteErrors(t *testing.T) {
	env := newTestEnv(t, common.SessionConfig{CallTimeout: 5 * time.Second})
	ctx := context.Background()

	t.Run("declared", func(t *testing.T) {
		_, err := env.session.Invoke(ctx, testPath, failDesc)
		var remote *RemoteError
		if !errors.As(err, &remote) {
			t.Fatalf("expected *RemoteError, got %T: %v", err, err)
		}
		if remote.TypeName != "test.Failure" || remote.Message != "failed on purpose" {
			t.Errorf("unexpected remote error %+v", remote)
		}
		var system *RemoteSystemError
		if errors.As(err, &system) {
			t.Errorf("declared error wrapped as system error")
		}
	})

	t.Run("undeclared", func(t *testing.T) {
		undeclared := &servant.Desc{Interface: failDesc.Interface, Signature: failDesc.Signature}
		_, err := env.session.Invoke(ctx, testPath, undeclared)
		var system *RemoteSystemError
		if !errors.As(err, &system) {
			t.Fatalf("expected *RemoteSystemError, got %T: %v", err, err)
		}
		if !errors.Is(err, servant.NewError("test.Failure", "")) {
			t.Errorf("remote type lost: %v", err)
		}
	})

	t.Run("method not found", func(t *testing.T) {
		missing := &servant.Desc{Interface: "test.Echo", Signature: servant.Signature("missing")}
		_, err := env.session.Invoke(ctx, testPath, missing)
		if !errors.Is(err, servant.ErrMethodNotFound) {
			t.Errorf("expected method not found, got %v", err)
		}
	})

	t.Run("servant not found", func(t *testing.T) {
		_, err := env.session.Invoke(ctx, "/missing", echoDesc, "x")
		if !errors.Is(err, servant.ErrServantNotFound) {
			t.Errorf("expected servant not found, got %v", err)
		}
	})

	t.Run("wrong interface", func(t *testing.T) {
		other := &servant.Desc{Interface: "test.Other", Signature: echoDesc.Signature}
		_, err := env.session.Invoke(ctx, testPath, other, "x")
		if !errors.Is(err, servant.ErrMethodNotFound) {
			t.Errorf("expected method not found, got %v", err)
		}
	})

	t.Run("arity", func(t *testing.T) {
		_, err := env.session.Invoke(ctx, testPath, echoDesc)
		if !errors.Is(err, servant.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})

	t.Run("panic", func(t *testing.T) {
		_, err := env.session.Invoke(ctx, testPath, panicDesc)
		var remote *RemoteError
		if !errors.As(err, &remote) || remote.TypeName != servant.TypeSystemError {
			t.Errorf("expected a remote system error, got %v", err)
		}
	})

	// the session survives all of the above
	if _, err := env.session.Invoke(ctx, testPath, echoDesc, "still alive"); err != nil {
		t.Errorf("session broken after remote errors: %v", err)
	}
}

func TestCallTimeout(t *testing.T) {
	env := newTestEnv(t, common.SessionConfig{CallTimeout: 100 * time.Millisecond})

	start := time.Now()
	_, err := env.session.Invoke(context.Background(), testPath, sleepDesc, int64(300))
	if !errors.Is(err, ErrCallTimeout) {
		t.Fatalf("expected ErrCallTimeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("deadline not wrapped: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
	if n := env.session.PendingCalls(); n != 0 {
		t.Errorf("expected no pending calls, got %d", n)
	}

	// the late reply is dropped
	eventually(t, "unmatched reply", func() bool {
		return env.client.Stats().UnmatchedReplies == 1
	})
	if stats := env.client.Stats(); stats.CallTimeouts != 1 {
		t.Errorf("expected one timeout, got %s", stats)
	}

	// a caller deadline overrides the configured timeout
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if got, err := env.session.Invoke(ctx, testPath, sleepDesc, int64(200)); err != nil || got != "slept" {
		t.Errorf("expected slept, got %v (%v)", got, err)
	}
}

func TestCancelledInvoke(t *testing.T) {
	env := newTestEnv(t, common.SessionConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := env.session.Invoke(ctx, testPath, sleepDesc, int64(1000))
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrCallTimeout) {
		t.Errorf("expected a cancelled call, got %v", err)
	}
}

func TestCloseFailsPendingCalls(t *testing.T) {
	env := newTestEnv(t, common.SessionConfig{})
	const n = 10

	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := env.session.Invoke(context.Background(), testPath, sleepDesc, int64(10_000))
			errs <- err
		}()
	}
	eventually(t, "pending calls", func() bool {
		return env.session.PendingCalls() == n
	})

	if err := env.session.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			var system *RemoteSystemError
			if !errors.As(err, &system) || !errors.Is(err, transport.ErrConnectionClosed) {
				t.Errorf("expected a closed connection error, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("pending call not failed")
		}
	}
	// every call fails exactly once
	select {
	case err := <-errs:
		t.Errorf("unexpected extra result %v", err)
	default:
	}

	select {
	case <-env.session.Closed():
	default:
		t.Error("session not closed")
	}
	if _, err := env.session.Invoke(context.Background(), testPath, echoDesc, "x"); !errors.Is(err, transport.ErrConnectionClosed) {
		t.Errorf("invoke on a closed session: %v", err)
	}
	if err := env.session.Notify(testPath, notifyDesc, "x"); !errors.Is(err, transport.ErrConnectionClosed) {
		t.Errorf("notify on a closed session: %v", err)
	}
}

func TestConstCache(t *testing.T) {
	env := newTestEnv(t, common.SessionConfig{CallTimeout: 5 * time.Second})

	for i := 0; i < 3; i++ {
		got, err := env.session.Invoke(context.Background(), testPath, countDesc)
		if err != nil {
			t.Fatalf("invoke failed: %v", err)
		}
		if got != int32(1) {
			t.Errorf("call %d: expected the cached 1, got %v", i, got)
		}
	}
	if n := env.echo.counted.Load(); n != 1 {
		t.Errorf("const method executed %d times", n)
	}
	if hits := env.client.Stats().ConstCacheHits; hits != 2 {
		t.Errorf("expected 2 cache hits, got %d", hits)
	}
}

func TestStreamArgument(t *testing.T) {
	env := newTestEnv(t, common.SessionConfig{CallTimeout: 5 * time.Second})

	for _, size := range []int{0, 100, 50_000} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			data := testData(size)
			got, err := env.session.Invoke(context.Background(), testPath, drainDesc, bytes.NewReader(data))
			if err != nil {
				t.Fatalf("invoke failed: %v", err)
			}
			b, ok := got.([]byte)
			if !ok && size > 0 {
				t.Fatalf("expected []byte, got %T", got)
			}
			if !bytes.Equal(b, data) {
				t.Errorf("stream corrupted: sent %d bytes, received %d", len(data), len(b))
			}
		})
	}
	if sent := env.client.Stats().StreamsSent; sent != 3 {
		t.Errorf("expected 3 streams sent, got %d", sent)
	}
}

func TestStreamResult(t *testing.T) {
	env := newTestEnv(t, common.SessionConfig{CallTimeout: 5 * time.Second})

	got, err := env.session.Invoke(context.Background(), testPath, dataDesc, int32(30_000))
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	rc, ok := got.(io.ReadCloser)
	if !ok {
		t.Fatalf("expected io.ReadCloser, got %T", got)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(b, testData(30_000)) {
		t.Errorf("stream corrupted, received %d bytes", len(b))
	}
}

func TestStreamClosedEarly(t *testing.T) {
	env := newTestEnv(t, common.SessionConfig{CallTimeout: 5 * time.Second})

	got, err := env.session.Invoke(context.Background(), testPath, dataDesc, int32(1_000_000))
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	rc := got.(io.ReadCloser)
	buf := make([]byte, 10)
	if _, err := io.ReadFull(rc, buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if err := rc.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}

	// the connection is still usable
	if _, err := env.session.Invoke(context.Background(), testPath, echoDesc, "after"); err != nil {
		t.Errorf("invoke after an abandoned stream failed: %v", err)
	}
}

func TestLateStreamResultReleased(t *testing.T) {
	env := newTestEnv(t, common.SessionConfig{CallTimeout: 5 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := env.session.Invoke(ctx, testPath, slowDesc, int64(200), int32(1<<20))
	if !errors.Is(err, ErrCallTimeout) {
		t.Fatalf("expected ErrCallTimeout, got %v", err)
	}

	// the sender stops once the late stream is refused
	select {
	case <-env.echo.drained:
	case <-time.After(3 * time.Second):
		t.Fatal("stream source of the late reply was never released")
	}
	eventually(t, "no unclaimed stream slots", func() bool {
		return env.session.streams.slots.Size() == 0
	})
	if n := env.client.Stats().UnmatchedReplies; n != 1 {
		t.Errorf("expected one unmatched reply, got %d", n)
	}

	if _, err := env.session.Invoke(context.Background(), testPath, echoDesc, "after"); err != nil {
		t.Errorf("invoke after a late stream failed: %v", err)
	}
}

func TestUndecodableCallReleasesStreams(t *testing.T) {
	env := newTestEnv(t, common.SessionConfig{CallTimeout: 5 * time.Second})
	s := env.session

	drained := make(chan struct{}, 1)
	args := []any{&trackedSource{Reader: bytes.NewReader(testData(1 << 20)), closed: drained}}
	streams, err := s.bindStreams(args)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	reqID, err := s.newReqID()
	if err != nil {
		t.Fatalf("no request id: %v", err)
	}
	// a stream argument followed by a value with an unknown type code
	buf, err := s.encode(func(w *wire.Writer) error {
		Header{ReqID: reqID, Code: CodeNotify}.Encode(w)
		w.WriteString(testPath)
		w.WriteString(drainDesc.Interface)
		w.WriteString(drainDesc.Signature)
		w.WriteInt32(2)
		if err := s.codec.Encode(w, args[0]); err != nil {
			return err
		}
		return w.WriteByte(0x42)
	})
	if err != nil {
		abortStreams(streams)
		t.Fatalf("encode failed: %v", err)
	}
	if err := s.write(buf); err != nil {
		abortStreams(streams)
		t.Fatalf("write failed: %v", err)
	}
	s.startStreams(streams)

	select {
	case <-drained:
	case <-time.After(3 * time.Second):
		t.Fatal("stream argument of the undecodable call was never released")
	}
	eventually(t, "server releases the stream slot", func() bool {
		var slots int
		for _, ss := range env.server.Sessions() {
			slots += ss.streams.slots.Size()
		}
		return slots == 0
	})
}

func TestRequestIDsExhausted(t *testing.T) {
	env := newTestEnv(t, common.SessionConfig{CallTimeout: 5 * time.Second})
	s := env.session
	s.nextReqID.Store(math.MaxInt32 - 1)

	// the last id is still usable
	if got, err := s.Invoke(context.Background(), testPath, echoDesc, "last"); err != nil || got != "last" {
		t.Fatalf("expected last, got %v (%v)", got, err)
	}

	_, err := s.Invoke(context.Background(), testPath, echoDesc, "wrapped")
	if !errors.Is(err, ErrRequestIDsExhausted) {
		t.Fatalf("expected ErrRequestIDsExhausted, got %v", err)
	}
	if !errors.Is(err, transport.ErrConnectionClosed) {
		t.Errorf("exhausted session should report a closed connection: %v", err)
	}
	select {
	case <-s.Closed():
	case <-time.After(2 * time.Second):
		t.Fatal("session still open after its request ids ran out")
	}
	if err := s.Notify(testPath, notifyDesc, "late"); err == nil {
		t.Error("notify on an exhausted session succeeded")
	}
}

func TestSessionServant(t *testing.T) {
	env := newTestEnv(t, common.SessionConfig{CallTimeout: 5 * time.Second})

	callback := servant.New("test.Echo", &servant.Method{
		Desc:   *echoDesc,
		Params: 1,
		Handler: func(_ context.Context, args servant.Args) (any, error) {
			s, err := args.String(0)
			return "client: " + s, err
		},
	})
	ref := env.session.AddServant(callback)
	if ref.TypeNames != "test.Echo" || ref.Path == "" {
		t.Fatalf("unexpected reference %+v", ref)
	}

	// the server calls back into the client while serving the call
	got, err := env.session.Invoke(context.Background(), testPath, callbackDesc, ref)
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if got != "client: called back" {
		t.Errorf("unexpected result %v", got)
	}

	if !env.session.RemoveServant(ref.Path) {
		t.Fatal("servant not removed")
	}
	_, err = env.session.Invoke(context.Background(), testPath, callbackDesc, ref)
	if !errors.Is(err, servant.ErrServantNotFound) {
		t.Errorf("expected servant not found after removal, got %v", err)
	}
}

func TestHeader(t *testing.T) {
	tests := map[string]struct {
		in      []byte
		want    Header
		wantErr bool
	}{
		"call":         {in: []byte{0, 0, 0, 0, 0, 0, 0, 7, 1, 2, 0, 0}, want: Header{ReqID: 7, Code: CodeCall}},
		"stream":       {in: []byte{0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff, 1, 2, 4, 0}, want: Header{ReqID: StreamReqID, Code: CodeStream}},
		"newer minor":  {in: []byte{0, 0, 0, 0, 0, 0, 0, 1, 1, 9, 1, 0}, want: Header{ReqID: 1, Code: CodeReply}},
		"bad major":    {in: []byte{0, 0, 0, 0, 0, 0, 0, 1, 2, 0, 1, 0}, wantErr: true},
		"unknown code": {in: []byte{0, 0, 0, 0, 0, 0, 0, 1, 1, 2, 5, 0}, wantErr: true},
		"short":        {in: []byte{0, 0, 0, 0, 0, 0}, wantErr: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := DecodeHeader(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrBadHeader) {
					t.Errorf("expected ErrBadHeader, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("expected %s, got %s (%v)", tt.want, got, err)
			}
		})
	}
}
