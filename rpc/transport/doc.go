// Package transport defines the contracts of the connection layer: a
// connection with its lifecycle states, the input and output channels
// multiplexed over it, and the listener through which a connection manager
// reports new connections, disconnections and incoming channels.
//
// Key Components:
//
//   - IConnection: one full-duplex link to a peer. It moves through
//     NotConnected, Connecting, Connected, Disconnecting and Disconnected and
//     never goes back.
//
//   - IInputChannel / IOutputChannel: a logical byte stream inside a
//     connection. Small messages travel as one final block; larger ones are
//     split into blocks and flow-controlled with DATA_CTRL frames.
//
//   - IConnectionListener: the upcall interface implemented by the session layer.
//
// Implementations live in the base package. The tcp and unix packages provide
// the socket connectors.
package transport
