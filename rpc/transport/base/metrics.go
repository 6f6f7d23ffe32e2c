package base

import (
	"fmt"

	"github.com/ValentinKolb/planet/lib/util"
	"github.com/ValentinKolb/planet/rpc/transport/frame"
	"github.com/VictoriaMetrics/metrics"
)

// transportMetrics holds the counters of one manager. They live in a
// private metrics.Set so that several managers in one process (tests,
// embedded clients) never register the same metric twice.
type transportMetrics struct {
	set *metrics.Set

	framesSent        *metrics.Counter
	framesReceived    *metrics.Counter
	bytesSent         *metrics.Counter
	bytesReceived     *metrics.Counter
	heartbeatsSent    *metrics.Counter
	channelsOpened    *metrics.Counter
	connectionsOpened *metrics.Counter
	connectionsClosed *metrics.Counter
	protocolErrors    *metrics.Counter
	writeTimeouts     *metrics.Counter
	heartbeatTimeouts *metrics.Counter
	idleTimeouts      *metrics.Counter
	frameSize         *metrics.Histogram

	// sizes backs Manager.Stats with percentile estimates
	sizes *util.SizeHistogram
}

func newTransportMetrics(transportName string, connections func() float64) *transportMetrics {
	set := metrics.NewSet()
	name := func(metric string) string {
		return fmt.Sprintf(`planet_transport_%s{transport=%q}`, metric, transportName)
	}

	m := &transportMetrics{
		set:               set,
		framesSent:        set.NewCounter(name("frames_sent_total")),
		framesReceived:    set.NewCounter(name("frames_received_total")),
		bytesSent:         set.NewCounter(name("bytes_sent_total")),
		bytesReceived:     set.NewCounter(name("bytes_received_total")),
		heartbeatsSent:    set.NewCounter(name("heartbeats_sent_total")),
		channelsOpened:    set.NewCounter(name("channels_opened_total")),
		connectionsOpened: set.NewCounter(name("connections_opened_total")),
		connectionsClosed: set.NewCounter(name("connections_closed_total")),
		protocolErrors:    set.NewCounter(name("protocol_errors_total")),
		writeTimeouts:     set.NewCounter(name("write_timeouts_total")),
		heartbeatTimeouts: set.NewCounter(name("heartbeat_timeouts_total")),
		idleTimeouts:      set.NewCounter(name("idle_timeouts_total")),
		frameSize:         set.NewHistogram(name("frame_size_bytes")),
		sizes:             util.NewSizeHistogram(),
	}
	set.NewGauge(name("connections"), connections)
	return m
}

func (m *transportMetrics) frameSent(code frame.Code, size int) {
	m.framesSent.Inc()
	m.bytesSent.Add(size)
	if code == frame.CodeHeartbeat {
		m.heartbeatsSent.Inc()
	}
}

func (m *transportMetrics) frameReceived(_ frame.Code, size int) {
	m.framesReceived.Inc()
	m.bytesReceived.Add(size)
	m.frameSize.Update(float64(size))
	m.sizes.Observe(size)
}

// --------------------------------------------------------------------------
// Stats
// --------------------------------------------------------------------------

// Stats is a snapshot of the transport counters of a manager
type Stats struct {
	Connections       int
	FramesSent        uint64
	FramesReceived    uint64
	BytesSent         uint64
	BytesReceived     uint64
	ProtocolErrors    uint64
	WriteTimeouts     uint64
	HeartbeatTimeouts uint64
	IdleTimeouts      uint64

	// received frame sizes in bytes
	AvgFrameSize    int
	MedianFrameSize int
	P99FrameSize    int
	MaxFrameSize    int
}

func (s Stats) String() string {
	return fmt.Sprintf("connections=%d frames(sent=%d recv=%d) bytes(sent=%d recv=%d) frame size(avg=%d p50=%d p99=%d max=%d) errors(protocol=%d write=%d heartbeat=%d idle=%d)",
		s.Connections, s.FramesSent, s.FramesReceived, s.BytesSent, s.BytesReceived,
		s.AvgFrameSize, s.MedianFrameSize, s.P99FrameSize, s.MaxFrameSize,
		s.ProtocolErrors, s.WriteTimeouts, s.HeartbeatTimeouts, s.IdleTimeouts)
}

func (m *transportMetrics) snapshot(connections int) Stats {
	return Stats{
		Connections:       connections,
		FramesSent:        m.framesSent.Get(),
		FramesReceived:    m.framesReceived.Get(),
		BytesSent:         m.bytesSent.Get(),
		BytesReceived:     m.bytesReceived.Get(),
		ProtocolErrors:    m.protocolErrors.Get(),
		WriteTimeouts:     m.writeTimeouts.Get(),
		HeartbeatTimeouts: m.heartbeatTimeouts.Get(),
		IdleTimeouts:      m.idleTimeouts.Get(),
		AvgFrameSize:      m.sizes.Mean(),
		MedianFrameSize:   m.sizes.Percentile(50),
		P99FrameSize:      m.sizes.Percentile(99),
		MaxFrameSize:      m.sizes.Max(),
	}
}
