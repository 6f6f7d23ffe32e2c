// Package server implements the serving side of a planet peer.
//
// A Node owns a connection manager, the session dispatcher on top of it and
// the servant directory. Backends are exposed through adapters
// (IServantAdapter) that translate calls into backend operations:
//
//   - kv (planet.KV at /kv): an in-memory store.IStore with expiration,
//     deletion scheduling and stream upload/download of values
//   - lock (planet.Lock at /lock): a lockmgr.ILockManager on its own store
//   - system (planet.System at /system): ping, echo, statistics, static node
//     information (const, cached by callers) and a log notification target
//
// Further servants can be added with Mount or directly through Directory.
// When a metrics endpoint is configured, the prometheus metrics of the
// transport and session layers are served over http.
package server
