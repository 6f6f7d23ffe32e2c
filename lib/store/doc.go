// Package store provides a key-value storage interface with expiration and
// deletion scheduling and structured error reporting.
//
// Key Components:
//
//   - IStore Interface: The core abstraction for interacting with a key-value
//     store. Values can expire (the key stays visible to Has) and keys can be
//     scheduled for deletion.
//
//   - Error System: Errors carry a RetCode. Error.ErrorType maps the code to a
//     remote error type name, so store errors keep their meaning when they are
//     returned from a servant.
//
//   - Memory Store: NewMemStore keeps all entries in a concurrent map. TTLs are
//     checked on every read; a background gc removes deleted keys. Writers
//     announce scheduled deletions through a lock free queue, the gc orders
//     them in a keyed min-heap by deletion time.
//
// Usage Example:
//
//	s := store.NewMemStore(0)
//	defer s.Close()
//
//	_ = s.SetE("session:42", []byte("data"), time.Minute, time.Hour)
//	value, ok, err := s.Get("session:42")
package store
