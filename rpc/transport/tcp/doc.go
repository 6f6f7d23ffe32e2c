// Package tcp provides the TCP socket connector of the transport. Peer ids
// are "host:port" addresses and double as dial endpoints.
//
// UpgradeConnection applies the TCPConf and SocketConf options of the
// transport configuration (TCP_NODELAY, socket buffers, keep-alive, linger)
// to every dialed and accepted socket. See the base package for everything
// above the socket.
package tcp
