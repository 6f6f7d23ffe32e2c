// Package session implements remote calls on top of transport connections.
//
// Every connection gets one Session, created by the Dispatcher when the
// connection is established and closed with it. A message occupies one
// channel and starts with a 12-byte header:
//
//	reserved:u32 | reqId:i32 | major:u8=1 | minor:u8=2 | code:u8 | unused:u8
//
// followed by the payload of its code:
//
//	CALL, NOTIFY  path, interface, signature, argc:i32, argc encoded values
//	REPLY         one encoded value
//	ERROR         type name, message
//	STREAM        raw stream data until the channel ends
//
// Invoke registers a waiter under a fresh request id before the CALL is
// written, so a reply can never overtake its waiter. Replies are resolved on
// the connection reader (or the goroutine reading a multi-block channel);
// CALL and NOTIFY handlers run on the execution pool of the manager. Handlers
// may therefore call back into the same session without starving the pool.
//
// Results of methods marked const are cached per session in a fastcache
// instance keyed by path and signature. io.Reader arguments and results are
// sent as streams on channels of their own and show up as io.ReadCloser on
// the other side.
//
// When the connection closes, every waiting call fails exactly once with a
// *RemoteSystemError wrapping transport.ErrConnectionClosed.
package session
