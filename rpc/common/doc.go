// Package common holds the configuration structures and the logging setup
// shared by the transport, the session layer, the node and the command line.
//
// Key Components:
//
//   - TransportConfig: connection manager parameters such as the write-wait
//     ceiling, heartbeat interval, idle timeout, block size and socket options.
//
//   - SessionConfig: call timeout, stream wait timeout and const cache size of
//     RPC sessions.
//
//   - NodeConfig and ClientConfig: the full configuration of a serving node
//     and of a command line client. Both render themselves as a sectioned
//     table via String().
//
//   - Logger: a dragonboat logger.ILogger with a fixed column layout. InitLoggers
//     installs it as factory and sets the level of every named logger.
package common
