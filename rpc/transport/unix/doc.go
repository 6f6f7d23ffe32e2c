// Package unix provides the Unix domain socket connector of the transport
// for peers running on the same machine. Peer ids are socket paths.
//
// A stale socket file at the listen path is removed before listening.
//
// Compared to TCP, local sockets skip the TCP/IP stack, which lowers latency
// for co-located nodes.
package unix
