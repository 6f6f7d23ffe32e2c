package session

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// sessionMetrics holds the counters of one dispatcher. Counters are exported
// in prometheus format through set, latencies are tracked in a go-metrics
// registry which provides rates and percentiles for Stats.
type sessionMetrics struct {
	set *metrics.Set

	callsSent        *metrics.Counter
	notifiesSent     *metrics.Counter
	callsServed      *metrics.Counter
	notifiesServed   *metrics.Counter
	errorsSent       *metrics.Counter
	callTimeouts     *metrics.Counter
	unmatchedReplies *metrics.Counter
	constHits        *metrics.Counter
	streamsSent      *metrics.Counter
	streamsReceived  *metrics.Counter
	invokeDuration   *metrics.Histogram

	registry    gometrics.Registry
	invokeTimer gometrics.Timer
	serveTimer  gometrics.Timer
}

func newSessionMetrics(sessions, pending func() float64) *sessionMetrics {
	set := metrics.NewSet()
	name := func(metric string) string {
		return "planet_rpc_" + metric
	}

	registry := gometrics.NewRegistry()
	m := &sessionMetrics{
		set:              set,
		callsSent:        set.NewCounter(name("calls_sent_total")),
		notifiesSent:     set.NewCounter(name("notifies_sent_total")),
		callsServed:      set.NewCounter(name("calls_served_total")),
		notifiesServed:   set.NewCounter(name("notifies_served_total")),
		errorsSent:       set.NewCounter(name("errors_sent_total")),
		callTimeouts:     set.NewCounter(name("call_timeouts_total")),
		unmatchedReplies: set.NewCounter(name("unmatched_replies_total")),
		constHits:        set.NewCounter(name("const_cache_hits_total")),
		streamsSent:      set.NewCounter(name("streams_sent_total")),
		streamsReceived:  set.NewCounter(name("streams_received_total")),
		invokeDuration:   set.NewHistogram(name("invoke_duration_seconds")),
		registry:         registry,
		invokeTimer:      gometrics.GetOrRegisterTimer("invoke", registry),
		serveTimer:       gometrics.GetOrRegisterTimer("serve", registry),
	}
	set.NewGauge(name("sessions"), sessions)
	set.NewGauge(name("pending_calls"), pending)
	return m
}

func (m *sessionMetrics) invoked(start time.Time) {
	m.invokeTimer.UpdateSince(start)
	m.invokeDuration.Update(time.Since(start).Seconds())
}

// --------------------------------------------------------------------------
// Stats
// --------------------------------------------------------------------------

// Stats is a snapshot of the session counters of a dispatcher
type Stats struct {
	Sessions         int
	PendingCalls     int
	CallsSent        uint64
	NotifiesSent     uint64
	CallsServed      uint64
	NotifiesServed   uint64
	ErrorsSent       uint64
	CallTimeouts     uint64
	UnmatchedReplies uint64
	ConstCacheHits   uint64
	StreamsSent      uint64
	StreamsReceived  uint64

	// latency of completed Invoke calls
	InvokeMean time.Duration
	InvokeP99  time.Duration
	InvokeRate float64 // calls per second, one minute average
}

func (s Stats) String() string {
	return fmt.Sprintf("sessions=%d pending=%d calls(sent=%d served=%d timeouts=%d) notifies(sent=%d served=%d) errors=%d unmatched=%d const hits=%d streams(sent=%d recv=%d) invoke(mean=%s p99=%s rate=%.1f/s)",
		s.Sessions, s.PendingCalls, s.CallsSent, s.CallsServed, s.CallTimeouts,
		s.NotifiesSent, s.NotifiesServed, s.ErrorsSent, s.UnmatchedReplies, s.ConstCacheHits,
		s.StreamsSent, s.StreamsReceived, s.InvokeMean, s.InvokeP99, s.InvokeRate)
}

func (m *sessionMetrics) snapshot(sessions, pending int) Stats {
	timer := m.invokeTimer.Snapshot()
	return Stats{
		Sessions:         sessions,
		PendingCalls:     pending,
		CallsSent:        m.callsSent.Get(),
		NotifiesSent:     m.notifiesSent.Get(),
		CallsServed:      m.callsServed.Get(),
		NotifiesServed:   m.notifiesServed.Get(),
		ErrorsSent:       m.errorsSent.Get(),
		CallTimeouts:     m.callTimeouts.Get(),
		UnmatchedReplies: m.unmatchedReplies.Get(),
		ConstCacheHits:   m.constHits.Get(),
		StreamsSent:      m.streamsSent.Get(),
		StreamsReceived:  m.streamsReceived.Get(),
		InvokeMean:       time.Duration(timer.Mean()),
		InvokeP99:        time.Duration(timer.Percentile(0.99)),
		InvokeRate:       timer.Rate1(),
	}
}
