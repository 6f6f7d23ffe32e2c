package base

import (
	"sync"

	"github.com/ValentinKolb/planet/lib/util"
)

// scheduler starts the reader of every registered connection. Connections
// are never started directly by the goroutine that created them; they are
// queued and picked up by the scheduler loop.
type scheduler struct {
	queue   *util.LockFreeMPSC[*Connection]
	readers sync.WaitGroup
	done    chan struct{}
}

func newScheduler() *scheduler {
	s := &scheduler{
		queue: util.NewLockFreeMPSC[*Connection](),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// register queues c. It returns false if the scheduler was closed.
func (s *scheduler) register(c *Connection) bool {
	return s.queue.PushValue(c)
}

// close stops the loop and waits until all readers returned. The
// connections must have been closed before.
func (s *scheduler) close() {
	s.queue.Close()
	<-s.done
	s.readers.Wait()
}

func (s *scheduler) run() {
	defer close(s.done)

	for c := range s.queue.Recv() {
		c := *c
		s.readers.Add(1)
		go func() {
			defer s.readers.Done()
			c.readLoop()
		}()
	}
}
