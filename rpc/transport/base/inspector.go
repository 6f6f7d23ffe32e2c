package base

import (
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/planet/lib/util"
	"github.com/ValentinKolb/planet/rpc/transport"
	"github.com/ValentinKolb/planet/rpc/transport/frame"
)

// --------------------------------------------------------------------------
// Heartbeat Inspector
// --------------------------------------------------------------------------

// heartbeatLoop inspects all connections once per interval until stop is closed
func (m *Manager) heartbeatLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.peers.Range(func(_ string, c *Connection) bool {
				c.inspectHeartbeat()
				return true
			})
		case <-m.stopCh:
			return
		}
	}
}

// inspectHeartbeat runs one heartbeat round for c. A connection that
// received anything since the last round is alive. Otherwise a heartbeat is
// sent, and if the previous heartbeat is still unanswered the connection is
// closed as timed out. Any received byte counts as an answer.
func (c *Connection) inspectHeartbeat() {
	if c.State() != transport.StateConnected {
		return
	}
	if c.dirty.Swap(false) {
		return
	}
	if c.hbSent.Load() {
		inspLogger.Warningf("Heartbeat timeout on %s", c)
		c.manager.metrics.heartbeatTimeouts.Inc()
		c.shutdown(fmt.Errorf("%w: heartbeat timeout", transport.ErrConnectionClosed))
		return
	}
	if c.writerBusy() {
		// a frame is being written right now
		return
	}

	c.hbSent.Store(true)
	err := c.Submit(func() {
		if err := c.Write(frame.NewHeartbeat()); err != nil {
			inspLogger.Debugf("Failed to send heartbeat on %s: %v", c, err)
		}
	})
	if err != nil {
		inspLogger.Debugf("Dropped heartbeat on %s: %v", c, err)
	}
}

// --------------------------------------------------------------------------
// Idle Inspector
// --------------------------------------------------------------------------

// idleInspector closes connections that carried no data for longer than
// their max idle time. Connections are kept in a delay queue ordered by
// their idle deadline. The queue is only touched when a connection is
// scheduled or expires; traffic merely updates the connection's last access
// time, which is checked again when the deadline comes up.
type idleInspector struct {
	m     *Manager
	mu    sync.Mutex
	queue *util.MapHeap[uint64]
	wake  chan struct{}
}

func newIdleInspector(m *Manager) *idleInspector {
	return &idleInspector{
		m:     m,
		queue: util.NewMapHeap[uint64](),
		wake:  make(chan struct{}, 1),
	}
}

// schedule (re)computes the idle deadline of c
func (i *idleInspector) schedule(c *Connection) {
	maxIdle := c.maxIdle.Load()

	i.mu.Lock()
	if maxIdle <= 0 || c.State() >= transport.StateDisconnecting {
		i.queue.RemoveByKey(c.id)
	} else {
		i.queue.AddItem(c.id, c.lastAccess.Load()+maxIdle)
	}
	i.mu.Unlock()

	select {
	case i.wake <- struct{}{}:
	default:
	}
}

func (i *idleInspector) remove(c *Connection) {
	i.mu.Lock()
	i.queue.RemoveByKey(c.id)
	i.mu.Unlock()
}

func (i *idleInspector) run() {
	defer i.m.wg.Done()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := i.expire(time.Now())

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-timer.C:
		case <-i.wake:
		case <-i.m.stopCh:
			return
		}
	}
}

// expire closes all connections whose deadline passed and returns the time
// until the next deadline
func (i *idleInspector) expire(now time.Time) time.Duration {
	var expired []*Connection
	wait := time.Hour

	i.mu.Lock()
	for {
		item, ok := i.queue.Peek()
		if !ok {
			break
		}
		if item.Priority > now.UnixNano() {
			wait = time.Duration(item.Priority - now.UnixNano())
			break
		}
		i.queue.PopItem()

		c, ok := i.m.all.Load(item.Key)
		if !ok {
			continue
		}
		maxIdle := c.maxIdle.Load()
		if maxIdle <= 0 {
			continue
		}
		// traffic moved the deadline
		if deadline := c.lastAccess.Load() + maxIdle; deadline > now.UnixNano() {
			i.queue.AddItem(c.id, deadline)
			continue
		}
		expired = append(expired, c)
	}
	i.mu.Unlock()

	for _, c := range expired {
		idle := time.Duration(c.maxIdle.Load())
		inspLogger.Infof("Closing %s after being idle for more than %s", c, idle)
		i.m.metrics.idleTimeouts.Inc()
		c.shutdown(fmt.Errorf("%w: idle for more than %s", transport.ErrConnectionClosed, idle))
	}
	return wait
}
