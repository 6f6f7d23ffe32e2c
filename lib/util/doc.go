// Package util provides small building blocks shared by the transport, the
// session layer and the store.
//
// The package contains:
//   - mapheap: a keyed min-heap used as a delay queue (idle deadlines of connections, store deletions)
//   - lockfreempsc: a lock-free multi-producer single-consumer queue feeding the execution pool
//   - statistics: Stats for sample summaries and a lock-free SizeHistogram for frame sizes
//   - functions: seeded xxhash string keys (servant ids) and random helpers
package util
