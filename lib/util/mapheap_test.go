package util

import (
	"container/heap"
	"sort"
	"testing"
)

// TestNewMapHeap tests the creation of a new MapHeap
func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap[uint64]()

	if mh == nil {
		t.Fatal("NewMapHeap() returned nil")
	}

	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}

	if _, ok := mh.Peek(); ok {
		t.Error("Peek() on an empty heap should return false")
	}
}

// TestAddItem tests adding items to the heap
func TestAddItem(t *testing.T) {
	mh := NewMapHeap[uint64]()

	mh.AddItem(1, 100)
	mh.AddItem(2, 200)
	mh.AddItem(3, 50)

	if mh.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", mh.Len())
	}

	for _, key := range []uint64{1, 2, 3} {
		if !mh.Contains(key) {
			t.Errorf("Heap should contain key %d", key)
		}
	}

	it, exists := mh.Peek()
	if !exists {
		t.Fatal("Peek() should return an item")
	}

	if it.Key != 3 || it.Priority != 50 {
		t.Errorf("Expected min item to be (3,50), got (%d,%d)", it.Key, it.Priority)
	}
}

// TestReschedule tests that AddItem on an existing key moves the item
func TestReschedule(t *testing.T) {
	mh := NewMapHeap[string]()

	mh.AddItem("a", 100)
	mh.AddItem("b", 200)

	// push a behind b
	mh.AddItem("a", 300)

	it, exists := mh.GetByKey("a")
	if !exists {
		t.Fatal("Item with key a should exist")
	}
	if it.Priority != 300 {
		t.Errorf("Item a should have priority 300, got %d", it.Priority)
	}

	head, _ := mh.Peek()
	if head.Key != "b" {
		t.Errorf("Head should now be b, got %s", head.Key)
	}

	// pull b back to the front
	mh.AddItem("b", 50)
	head, _ = mh.Peek()
	if head.Key != "b" || head.Priority != 50 {
		t.Errorf("Head should be (b,50), got (%s,%d)", head.Key, head.Priority)
	}

	if mh.Len() != 2 {
		t.Errorf("Rescheduling must not add items, len is %d", mh.Len())
	}
}

// TestRemoveByKey tests removing items by key
func TestRemoveByKey(t *testing.T) {
	mh := NewMapHeap[uint64]()

	mh.AddItem(1, 100)
	mh.AddItem(2, 200)
	mh.AddItem(3, 300)

	prio, exists := mh.RemoveByKey(2)
	if !exists {
		t.Fatal("RemoveByKey should return true for existing key")
	}
	if prio != 200 {
		t.Errorf("RemoveByKey should return priority 200, got %d", prio)
	}
	if mh.Contains(2) {
		t.Error("Key 2 should be gone")
	}

	if _, exists := mh.RemoveByKey(42); exists {
		t.Error("RemoveByKey should return false for unknown key")
	}
}

// TestPopOrder tests that items are popped in priority order
func TestPopOrder(t *testing.T) {
	mh := NewMapHeap[uint64]()

	priorities := []int64{42, 7, 99, -3, 18, 7, 1000, 0}
	for i, p := range priorities {
		mh.AddItem(uint64(i), p)
	}

	var popped []int64
	for mh.Len() > 0 {
		it := heap.Pop(mh).(*Item[uint64])
		popped = append(popped, it.Priority)
	}

	if !sort.SliceIsSorted(popped, func(i, j int) bool { return popped[i] < popped[j] }) {
		t.Errorf("Items not popped in order: %v", popped)
	}
	if len(popped) != len(priorities) {
		t.Errorf("Expected %d items, popped %d", len(priorities), len(popped))
	}
}

// TestPopItem tests the PopItem helper
func TestPopItem(t *testing.T) {
	mh := NewMapHeap[uint64]()

	if _, ok := mh.PopItem(); ok {
		t.Fatal("PopItem on empty heap should return false")
	}

	mh.AddItem(5, 10)
	mh.AddItem(6, 5)

	it, ok := mh.PopItem()
	if !ok || it.Key != 6 {
		t.Fatalf("Expected key 6 first, got %v", it)
	}
	if mh.Contains(6) {
		t.Error("Popped key must be removed from the map")
	}
}
