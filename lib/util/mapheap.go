// Package util
//
// This file provides a keyed priority queue used as a delay queue.
//
// The implementation combines a binary heap with a hash map so that the
// item with the smallest priority (e.g. the earliest deadline) is available
// in O(1) while any item can still be rescheduled or removed by its key in
// O(log n). The transport uses it to track idle deadlines of connections:
// every read or write reschedules the deadline of a connection and the idle
// inspector only has to look at the head of the heap.
//
// Complexity:
//   - O(log n) for Push, Pop, AddItem (insert or reschedule) and RemoveByKey
//   - O(1) for Peek, Contains and GetByKey
//
// The heap is not thread-safe. Callers must provide external synchronization.
//
// Example usage:
//
//	q := NewMapHeap[uint64]()
//
//	// schedule two deadlines (unix nano)
//	q.AddItem(1001, deadline1)
//	q.AddItem(1002, deadline2)
//
//	// reschedule a key
//	q.AddItem(1001, deadline3)
//
//	// pop everything that expired
//	for q.Len() > 0 {
//	    head, _ := q.Peek()
//	    if head.Priority > now {
//	        break
//	    }
//	    heap.Pop(q)
//	}
package util

import (
	"container/heap"
	"fmt"
)

// Item is an entry of the MapHeap
type Item[K comparable] struct {
	Key      K     // Unique identifier for the item
	Priority int64 // Ordering value, smaller values are popped first
	index    int   // Index in the heap, maintained by heap package
}

func (i *Item[K]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %d}", i.Key, i.Priority)
}

// MapHeap is a min-heap that also supports key based access
type MapHeap[K comparable] struct {
	items    []*Item[K]     // The actual heap slice
	itemsMap map[K]*Item[K] // Map for O(1) access by key
}

// NewMapHeap creates a new, empty MapHeap
func NewMapHeap[K comparable]() *MapHeap[K] {
	return &MapHeap[K]{
		items:    make([]*Item[K], 0),
		itemsMap: make(map[K]*Item[K]),
	}
}

// Len returns the number of items in the queue (part of heap.Interface)
func (h *MapHeap[K]) Len() int { return len(h.items) }

// Less compares items by priority (part of heap.Interface)
func (h *MapHeap[K]) Less(i, j int) bool {
	return h.items[i].Priority < h.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (h *MapHeap[K]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
// Use AddItem instead of calling this directly.
func (h *MapHeap[K]) Push(x interface{}) {
	it := x.(*Item[K])
	it.index = len(h.items)
	h.items = append(h.items, it)
	h.itemsMap[it.Key] = it
}

// Pop removes and returns the minimum item (part of heap.Interface)
// Use heap.Pop(h) instead of calling this directly.
func (h *MapHeap[K]) Pop() interface{} {
	old := h.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // Avoid memory leak
	it.index = -1
	h.items = old[:n-1]
	delete(h.itemsMap, it.Key)
	return it
}

// AddItem adds a new item or reschedules an existing one
func (h *MapHeap[K]) AddItem(key K, priority int64) {
	if it, exists := h.itemsMap[key]; exists {
		it.Priority = priority
		heap.Fix(h, it.index)
		return
	}
	heap.Push(h, &Item[K]{Key: key, Priority: priority})
}

// PopItem removes and returns the minimum item
func (h *MapHeap[K]) PopItem() (*Item[K], bool) {
	if len(h.items) == 0 {
		return nil, false
	}
	return heap.Pop(h).(*Item[K]), true
}

// RemoveByKey removes an item by its key and returns its priority
func (h *MapHeap[K]) RemoveByKey(key K) (int64, bool) {
	it, exists := h.itemsMap[key]
	if !exists {
		return 0, false
	}
	heap.Remove(h, it.index)
	return it.Priority, true
}

// Peek returns the minimum item without removing it
func (h *MapHeap[K]) Peek() (*Item[K], bool) {
	if len(h.items) == 0 {
		return nil, false
	}
	return h.items[0], true
}

// Contains checks if a key exists in the queue
func (h *MapHeap[K]) Contains(key K) bool {
	_, exists := h.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it
func (h *MapHeap[K]) GetByKey(key K) (*Item[K], bool) {
	it, exists := h.itemsMap[key]
	return it, exists
}
