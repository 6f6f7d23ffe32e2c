// Package wire contains the primitive big-endian encoding shared by the
// transport frames and the RPC payloads.
//
// Strings and byte slices carry an i32 length prefix. A length of -1 encodes
// null (nil), a length of 0 encodes the empty value. Strings are UTF-8.
package wire
