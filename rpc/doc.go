// Package rpc provides the peer-to-peer remote object runtime of planet.
// Every peer can serve objects and invoke the objects of its peers over the
// same connection.
//
// The package is organized into several subpackages:
//
//   - wire: Big-endian readers and writers for frame and message payloads.
//
//   - transport: Framed, multiplexed connections with credit based flow
//     control, heartbeats and idle detection (base), plus the TCP and Unix
//     socket connectors and the http metrics endpoint.
//
//   - serializer: The tagged value codec used for arguments and results.
//
//   - servant: Servants, their method tables and the path directory.
//
//   - session: Invoke and Notify on top of a connection, reply correlation,
//     the const result cache, streams and the dispatcher routing frames.
//
//   - server: The node bootstrap and the built-in kv, lock and system servants.
//
//   - client: Typed clients of the built-in servants.
//
//   - common: Configuration, logging and the built-in method descriptors.
package rpc
