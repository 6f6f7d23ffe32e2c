// Package servant defines the objects that can be called remotely.
//
// A Servant is an explicit table from method signature (for example
// "get(string)") to a Handler. Method descriptors (Desc) are shared between
// the implementing side and callers: the const flag enables result caching
// on the caller side and the declared error type names decide whether a
// remote error is reported as is or as a system error.
//
// Servants are found by path through an IResolver. Directory is the node wide
// implementation, sessions keep an additional table of servants bound to
// their connection.
//
// Errors with a type name (Error, or anything implementing ITypedError) keep
// their type name on the wire. errors.Is matches Error values by type name,
// so ErrServantNotFound and ErrMethodNotFound also match errors received from
// remote peers.
package servant
