// Package base implements the connection layer independent of the socket
// type. Protocol specific parts (dialing, listening, socket options) are
// injected through an IConnector; the tcp and unix packages provide them.
//
// The package focuses on:
//   - The connection state machine and the CONNECT / CONNECT_REPLY handshake
//   - Single-writer discipline with a bounded write wait
//   - Channels multiplexed over a connection, with credit based flow control
//   - A keyed registry of connections per peer
//   - Heartbeat and idle supervision
//
// Key Components:
//
//   - Manager: owns all connections of a node. GetConnection returns the live
//     connection to a peer or opens one; concurrent callers share one attempt.
//     Accepted connections are registered under the peer id sent in CONNECT,
//     replacing (and closing) an older connection of the same peer.
//
//   - Connection: one socket. Exactly one goroutine at a time holds the writer
//     token and writes to the socket; a write blocked longer than the
//     configured write wait is a fatal I/O error. Close is idempotent,
//     force-closes all channels and fires the disconnection handlers once.
//
//   - Reader: one goroutine per connection reads into a Framer and handles
//     handshake, heartbeat, data and data control frames inline. Anything that
//     may block is submitted to the execution pool.
//
//   - Scheduler and execution pool: new connections are queued and their
//     readers started by a scheduler loop. Tasks are queued in a lock-free
//     MPSC queue and run by at most Workers goroutines.
//
//   - Channels: a message that fits into one block is sent as block 0 with
//     the final flag set. Larger ones are split; the sender may have at most
//     BufferCount+1 unacknowledged blocks, and the reader acknowledges each
//     consumed block with NEXT_DATA until the final block arrived. Closing an
//     unfinished input channel sends CLOSE_DATA.
//
//   - Inspectors: the heartbeat inspector sends HEARTBEAT to silent
//     connections and closes those that stay silent for another round. The
//     idle inspector closes connections without data traffic for longer
//     than their max idle time, driven by a delay queue.
//
// Metrics of every manager are kept in a private VictoriaMetrics set.
package base
