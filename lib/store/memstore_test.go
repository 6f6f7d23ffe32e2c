package store

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// testClock is a manually advanced clock
type testClock struct {
	now atomic.Int64
}

func (c *testClock) Now() time.Time { return time.Unix(0, c.now.Load()) }

func (c *testClock) Advance(d time.Duration) { c.now.Add(int64(d)) }

func newTestStore(t *testing.T) (*memStore, *testClock) {
	t.Helper()
	clock := &testClock{}
	clock.now.Store(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	s := newMemStore(5*time.Millisecond, clock.Now)
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func mustGet(t *testing.T, s IStore, key string) ([]byte, bool) {
	t.Helper()
	value, ok, err := s.Get(key)
	if err != nil {
		t.Fatalf("get %q failed: %v", key, err)
	}
	return value, ok
}

func mustHas(t *testing.T, s IStore, key string) bool {
	t.Helper()
	ok, err := s.Has(key)
	if err != nil {
		t.Fatalf("has %q failed: %v", key, err)
	}
	return ok
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func TestSetGet(t *testing.T) {
	s, _ := newTestStore(t)

	value := []byte("value")
	if err := s.Set("key", value); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value[0] = 'X' // the store keeps its own copy

	got, ok := mustGet(t, s, "key")
	if !ok || string(got) != "value" {
		t.Errorf("expected value, got %q (%v)", got, ok)
	}

	got[0] = 'Y' // and hands out copies
	if again, _ := mustGet(t, s, "key"); string(again) != "value" {
		t.Errorf("stored value modified through Get result: %q", again)
	}

	if _, ok := mustGet(t, s, "missing"); ok {
		t.Error("missing key found")
	}

	// empty values are values
	if err := s.Set("empty", nil); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got, ok := mustGet(t, s, "empty"); !ok || len(got) != 0 {
		t.Errorf("expected an empty value, got %q (%v)", got, ok)
	}
}

func TestExpireAndDelete(t *testing.T) {
	s, _ := newTestStore(t)

	_ = s.Set("key", []byte("v"))
	if err := s.Expire("key"); err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if _, ok := mustGet(t, s, "key"); ok {
		t.Error("expired value still readable")
	}
	if !mustHas(t, s, "key") {
		t.Error("expired key not found by Has")
	}

	if err := s.Delete("key"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if mustHas(t, s, "key") {
		t.Error("deleted key still found")
	}

	// expiring or deleting a missing key does not create it
	_ = s.Expire("ghost")
	_ = s.Delete("ghost")
	if mustHas(t, s, "ghost") || s.Info().Keys != 0 {
		t.Errorf("missing key created, info %+v", s.Info())
	}
}

func TestTTL(t *testing.T) {
	s, clock := newTestStore(t)

	if err := s.SetE("key", []byte("v"), time.Second, 2*time.Second); err != nil {
		t.Fatalf("setE failed: %v", err)
	}

	tests := []struct {
		advance   time.Duration
		wantValue bool
		wantKey   bool
	}{
		{advance: 0, wantValue: true, wantKey: true},
		{advance: 999 * time.Millisecond, wantValue: true, wantKey: true},
		{advance: time.Millisecond, wantValue: false, wantKey: true},
		{advance: time.Second, wantValue: false, wantKey: false},
	}
	for i, tt := range tests {
		clock.Advance(tt.advance)
		if _, ok := mustGet(t, s, "key"); ok != tt.wantValue {
			t.Errorf("step %d: expected value %v, got %v", i, tt.wantValue, ok)
		}
		if ok := mustHas(t, s, "key"); ok != tt.wantKey {
			t.Errorf("step %d: expected key %v, got %v", i, tt.wantKey, ok)
		}
	}

	// the gc removes the key physically
	deadline := time.Now().Add(2 * time.Second)
	for s.Info().Keys != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("deleted key not collected, info %+v", s.Info())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRewriteCancelsDeletion(t *testing.T) {
	s, clock := newTestStore(t)

	_ = s.SetE("key", []byte("old"), 0, time.Second)
	time.Sleep(20 * time.Millisecond) // let the gc schedule the deletion
	_ = s.Set("key", []byte("new"))
	clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond) // several gc cycles

	if got, ok := mustGet(t, s, "key"); !ok || string(got) != "new" {
		t.Errorf("rewritten key lost: %q (%v)", got, ok)
	}
}

func TestSetEIfUnset(t *testing.T) {
	s, clock := newTestStore(t)

	_ = s.SetEIfUnset("key", []byte("first"), 0, time.Second)
	_ = s.SetEIfUnset("key", []byte("second"), 0, 0)
	if got, _ := mustGet(t, s, "key"); string(got) != "first" {
		t.Errorf("existing key overwritten: %q", got)
	}

	// a deleted key counts as unset
	clock.Advance(time.Second)
	_ = s.SetEIfUnset("key", []byte("third"), 0, 0)
	if got, _ := mustGet(t, s, "key"); string(got) != "third" {
		t.Errorf("deleted key not replaced: %q", got)
	}

	// an expired key does not
	_ = s.Expire("key")
	_ = s.SetEIfUnset("key", []byte("fourth"), 0, 0)
	if _, ok := mustGet(t, s, "key"); ok {
		t.Error("expired key replaced")
	}
}

func TestConcurrentSetEIfUnset(t *testing.T) {
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.SetEIfUnset("key", []byte(fmt.Sprint(i)), 0, 0)
		}(i)
	}
	wg.Wait()

	first, _ := mustGet(t, s, "key")
	for i := 0; i < 10; i++ {
		if got, _ := mustGet(t, s, "key"); !bytes.Equal(got, first) {
			t.Fatalf("value changed after all writers finished: %q != %q", got, first)
		}
	}
}

func TestErrors(t *testing.T) {
	s, _ := newTestStore(t)

	tests := map[string]struct {
		op   func() error
		code RetCode
	}{
		"empty key": {op: func() error { return s.Set("", []byte("v")) }, code: RetCInvalidOperation},
		"negative":  {op: func() error { return s.SetE("k", nil, -time.Second, 0) }, code: RetCInvalidOperation},
		"get empty": {op: func() error { _, _, err := s.Get(""); return err }, code: RetCInvalidOperation},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var storeErr *Error
			if err := tt.op(); !errors.As(err, &storeErr) || storeErr.Code != tt.code {
				t.Errorf("expected code %s, got %v", tt.code, err)
			}
		})
	}

	if got := NewError(RetCInvalidOperation, "x").ErrorType(); got != "planet.InvalidOperation" {
		t.Errorf("unexpected error type %q", got)
	}

	_ = s.Close()
	var storeErr *Error
	if _, err := s.Has("key"); !errors.As(err, &storeErr) || storeErr.Code != RetCClosed {
		t.Errorf("expected closed error, got %v", err)
	}
}
