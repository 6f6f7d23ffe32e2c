package server

import (
	"context"
	"time"

	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/servant"
	"github.com/ValentinKolb/planet/rpc/session"
)

// NewSystemServerAdapter exposes health and statistics of n as planet.System servant
func NewSystemServerAdapter(n *Node) IServantAdapter {
	return &systemServerAdapter{node: n}
}

type systemServerAdapter struct {
	node *Node
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server/interface.go)
// --------------------------------------------------------------------------

func (a *systemServerAdapter) Path() string {
	return common.SystemPath
}

func (a *systemServerAdapter) Close() error {
	return nil
}

func (a *systemServerAdapter) Servant() *servant.Servant {
	return servant.New(common.SystemInterface,
		method(common.SystemPing, 0, a.ping),
		method(common.SystemEcho, 1, a.echo),
		method(common.SystemStats, 0, a.stats),
		method(common.SystemInfo, 0, a.info),
		method(common.SystemLog, 1, a.log),
	)
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (a *systemServerAdapter) ping(context.Context, servant.Args) (any, error) {
	return "pong", nil
}

func (a *systemServerAdapter) echo(_ context.Context, args servant.Args) (any, error) {
	return args[0], nil
}

func (a *systemServerAdapter) stats(context.Context, servant.Args) (any, error) {
	t := a.node.manager.Stats()
	s := a.node.dispatcher.Stats()
	return map[string]any{
		"uptime_ms": time.Since(a.node.started).Milliseconds(),
		"transport": map[string]any{
			"connections":       int64(t.Connections),
			"frames_sent":       int64(t.FramesSent),
			"frames_received":   int64(t.FramesReceived),
			"bytes_sent":        int64(t.BytesSent),
			"bytes_received":    int64(t.BytesReceived),
			"avg_frame_size":    int64(t.AvgFrameSize),
			"p99_frame_size":    int64(t.P99FrameSize),
			"protocol_errors":   int64(t.ProtocolErrors),
			"write_timeouts":    int64(t.WriteTimeouts),
			"heartbeat_timeout": int64(t.HeartbeatTimeouts),
			"idle_timeouts":     int64(t.IdleTimeouts),
		},
		"session": map[string]any{
			"sessions":         int64(s.Sessions),
			"pending_calls":    int64(s.PendingCalls),
			"calls_sent":       int64(s.CallsSent),
			"calls_served":     int64(s.CallsServed),
			"notifies_served":  int64(s.NotifiesServed),
			"errors_sent":      int64(s.ErrorsSent),
			"call_timeouts":    int64(s.CallTimeouts),
			"const_cache_hits": int64(s.ConstCacheHits),
			"streams_sent":     int64(s.StreamsSent),
			"streams_received": int64(s.StreamsReceived),
			"invoke_mean_us":   s.InvokeMean.Microseconds(),
			"invoke_p99_us":    s.InvokeP99.Microseconds(),
		},
	}, nil
}

// info is const, callers cache the result per session
func (a *systemServerAdapter) info(context.Context, servant.Args) (any, error) {
	return map[string]any{
		"version":  common.Version,
		"peer_id":  a.node.manager.LocalID(),
		"network":  a.node.connector.GetName(),
		"started":  a.node.started.UTC().Format(time.RFC3339),
		"servants": a.node.directory.Paths(),
	}, nil
}

func (a *systemServerAdapter) log(ctx context.Context, args servant.Args) (any, error) {
	msg, err := args.String(0)
	if err != nil {
		return nil, err
	}
	peer := "?"
	if s, ok := session.FromContext(ctx); ok {
		peer = s.PeerID()
	}
	Logger.Infof("[%s] %s", peer, msg)
	return nil, nil
}
