package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/planet/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("lib/store")

const defaultGCInterval = 100 * time.Millisecond

// entry stores a value with its ttl metadata (unix nanos, 0 = never)
type entry struct {
	value    []byte
	expireAt int64
	deleteAt int64
}

// ttlInfo returns whether the entry is expired and whether it is deleted at now
func (e entry) ttlInfo(now int64) (bool, bool) {
	var (
		isExpired = e.expireAt != 0 && now >= e.expireAt
		isDeleted = e.deleteAt != 0 && now >= e.deleteAt
	)
	return isExpired, isDeleted
}

type memStore struct {
	data *xsync.MapOf[string, entry]
	now  func() time.Time

	// deletions are scheduled by the writers and processed by the gc
	events  *util.LockFreeMPSC[string]
	deletes *util.MapHeap[string]
	gcMu    sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewMemStore creates a new in-memory store. Expired values are hidden on
// read, deleted keys are removed by a background gc running every gcInterval
// (0 = default).
func NewMemStore(gcInterval time.Duration) IStore {
	return newMemStore(gcInterval, time.Now)
}

func newMemStore(gcInterval time.Duration, now func() time.Time) *memStore {
	if gcInterval <= 0 {
		gcInterval = defaultGCInterval
	}
	s := &memStore{
		data:    xsync.NewMapOf[string, entry](),
		now:     now,
		events:  util.NewLockFreeMPSC[string](),
		deletes: util.NewMapHeap[string](),
	}
	s.wg.Add(1)
	go s.gcLoop(gcInterval)
	return s
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *memStore) Set(key string, value []byte) error {
	return s.SetE(key, value, 0, 0)
}

func (s *memStore) SetE(key string, value []byte, expireIn, deleteIn time.Duration) error {
	return s.compute(key, value, expireIn, deleteIn, func(new, _ entry, _ bool) (entry, bool) {
		return new, false
	})
}

func (s *memStore) SetEIfUnset(key string, value []byte, expireIn, deleteIn time.Duration) error {
	return s.compute(key, value, expireIn, deleteIn, func(new, old entry, loaded bool) (entry, bool) {
		if loaded {
			return old, false
		}
		return new, false
	})
}

func (s *memStore) Expire(key string) error {
	return s.compute(key, nil, 0, 0, func(_, old entry, loaded bool) (entry, bool) {
		if !loaded {
			return old, true
		}
		old.value = nil
		old.expireAt = s.now().UnixNano()
		return old, false
	})
}

func (s *memStore) Delete(key string) error {
	return s.compute(key, nil, 0, 0, func(_, old entry, _ bool) (entry, bool) {
		return old, true
	})
}

func (s *memStore) Get(key string) ([]byte, bool, error) {
	if err := s.check(key); err != nil {
		return nil, false, err
	}
	e, ok := s.data.Load(key)
	if !ok {
		return nil, false, nil
	}
	isExpired, isDeleted := e.ttlInfo(s.now().UnixNano())
	if isExpired || isDeleted || e.value == nil {
		return nil, false, nil
	}
	return append([]byte{}, e.value...), true, nil
}

func (s *memStore) Has(key string) (bool, error) {
	if err := s.check(key); err != nil {
		return false, err
	}
	e, ok := s.data.Load(key)
	if !ok {
		return false, nil
	}
	_, isDeleted := e.ttlInfo(s.now().UnixNano())
	return !isDeleted, nil
}

func (s *memStore) Info() Info {
	s.gcMu.Lock()
	scheduled := s.deletes.Len()
	s.gcMu.Unlock()
	return Info{Keys: s.data.Size(), Scheduled: scheduled + s.events.Len()}
}

func (s *memStore) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.events.Close()
		s.wg.Wait()
		s.data.Clear()
	})
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *memStore) check(key string) error {
	if s.closed.Load() {
		return NewError(RetCClosed, "store is closed")
	}
	if key == "" {
		return NewError(RetCInvalidOperation, "empty key")
	}
	return nil
}

// compute atomically updates the entry of key. fn sees a logically deleted
// entry as not loaded and an expired entry without value.
func (s *memStore) compute(key string, value []byte, expireIn, deleteIn time.Duration, fn func(new, old entry, loaded bool) (entry, bool)) error {
	if err := s.check(key); err != nil {
		return err
	}
	if expireIn < 0 || deleteIn < 0 {
		return NewError(RetCInvalidOperation, "negative ttl")
	}

	now := s.now().UnixNano()
	new := entry{value: append([]byte{}, value...)}
	if expireIn > 0 {
		new.expireAt = now + int64(expireIn)
	}
	if deleteIn > 0 {
		new.deleteAt = now + int64(deleteIn)
	}

	var scheduled bool
	s.data.Compute(key, func(old entry, exists bool) (entry, bool) {
		loaded := exists
		if exists {
			isExpired, isDeleted := old.ttlInfo(now)
			loaded = !isDeleted
			if isExpired {
				old.value = nil
			}
		}
		e, del := fn(new, old, loaded)
		if del {
			return e, true
		}
		scheduled = e.deleteAt != 0
		return e, false
	})

	if scheduled {
		s.events.PushValue(key)
	}
	return nil
}

// gcLoop removes deleted keys until the event queue is closed. Keys are
// rechecked before removal; a key rewritten in the meantime was queued again
// by its writer.
func (s *memStore) gcLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case key, ok := <-s.events.Recv():
			if !ok {
				return
			}
			s.schedule(*key)
		case <-ticker.C:
			s.collect()
		}
	}
}

func (s *memStore) schedule(key string) {
	e, ok := s.data.Load(key)
	if !ok || e.deleteAt == 0 {
		return
	}
	s.gcMu.Lock()
	s.deletes.AddItem(key, e.deleteAt)
	s.gcMu.Unlock()
}

func (s *memStore) collect() {
	now := s.now().UnixNano()

	s.gcMu.Lock()
	defer s.gcMu.Unlock()

	removed := 0
	for {
		item, ok := s.deletes.Peek()
		if !ok || item.Priority > now {
			break
		}
		s.data.Compute(item.Key, func(e entry, loaded bool) (entry, bool) {
			if !loaded {
				return e, true
			}
			if _, isDeleted := e.ttlInfo(now); !isDeleted {
				return e, false
			}
			removed++
			return entry{}, true
		})
		s.deletes.RemoveByKey(item.Key)
	}
	if removed > 0 {
		Logger.Debugf("gc removed %d keys", removed)
	}
}
