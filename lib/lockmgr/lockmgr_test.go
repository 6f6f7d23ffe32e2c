package lockmgr

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/planet/lib/store"
)

func newTestLocks(t *testing.T) ILockManager {
	t.Helper()
	s := store.NewMemStore(10 * time.Millisecond)
	t.Cleanup(func() { _ = s.Close() })
	return NewLockManager(s)
}

func TestAcquireRelease(t *testing.T) {
	locks := newTestLocks(t)

	ok, owner, err := locks.AcquireLock("res", 0)
	if err != nil || !ok || len(owner) != ownerIDLength {
		t.Fatalf("acquire failed: ok=%v owner=%d bytes err=%v", ok, len(owner), err)
	}

	if ok, _, _ := locks.AcquireLock("res", 0); ok {
		t.Error("lock acquired twice")
	}
	if ok, _ := locks.ReleaseLock("res", []byte("someone else")); ok {
		t.Error("lock released by a foreign owner")
	}
	if ok, err := locks.ReleaseLock("res", owner); !ok || err != nil {
		t.Errorf("release failed: %v", err)
	}
	if ok, _, _ := locks.AcquireLock("res", 0); !ok {
		t.Error("released lock not acquirable")
	}

	// releasing a lock that does not exist succeeds
	if ok, err := locks.ReleaseLock("other", owner); !ok || err != nil {
		t.Errorf("release of a missing lock failed: %v", err)
	}
}

func TestLockTimeout(t *testing.T) {
	locks := newTestLocks(t)

	if ok, _, _ := locks.AcquireLock("res", 50*time.Millisecond); !ok {
		t.Fatal("acquire failed")
	}
	if ok, _, _ := locks.AcquireLock("res", 0); ok {
		t.Fatal("lock acquired while held")
	}
	time.Sleep(80 * time.Millisecond)
	if ok, _, _ := locks.AcquireLock("res", 0); !ok {
		t.Error("timed out lock not acquirable")
	}
}

func TestConcurrentAcquire(t *testing.T) {
	locks := newTestLocks(t)

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _, err := locks.AcquireLock("res", 0); ok && err == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if n := winners.Load(); n != 1 {
		t.Errorf("expected exactly one lock holder, got %d", n)
	}
}
