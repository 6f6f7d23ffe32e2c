package base

import (
	"runtime/debug"
	"sync"

	"github.com/ValentinKolb/planet/lib/util"
	"github.com/ValentinKolb/planet/rpc/transport"
)

// executor is the execution pool of a manager. Tasks are pushed into a
// lock-free queue by any goroutine and started by a single dispatcher
// goroutine, which limits the number of concurrently running tasks with a
// counting semaphore.
type executor struct {
	queue     *util.LockFreeMPSC[func()]
	semaphore chan struct{}
	wg        sync.WaitGroup
	done      chan struct{}
}

func newExecutor(workers int) *executor {
	if workers < 1 {
		workers = 1
	}
	e := &executor{
		queue:     util.NewLockFreeMPSC[func()](),
		semaphore: make(chan struct{}, workers),
		done:      make(chan struct{}),
	}
	go e.run()
	return e
}

// Submit queues task. It fails with transport.ErrShutdown once the executor was closed.
func (e *executor) Submit(task func()) error {
	if !e.queue.PushValue(task) {
		return transport.ErrShutdown
	}
	return nil
}

// close stops accepting tasks and waits until all queued tasks finished
func (e *executor) close() {
	e.queue.Close()
	<-e.done
	e.wg.Wait()
}

func (e *executor) run() {
	defer close(e.done)

	for task := range e.queue.Recv() {
		// Acquire a slot in the semaphore (blocks if all workers are busy)
		e.semaphore <- struct{}{}
		e.wg.Add(1)

		go func(task func()) {
			defer func() {
				if r := recover(); r != nil {
					ioLogger.Errorf("Recovered from panic in task: %v\n%s", r, debug.Stack())
				}
				<-e.semaphore
				e.wg.Done()
			}()
			task()
		}(*task)
	}
}
