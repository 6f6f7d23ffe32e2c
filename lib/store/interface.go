package store

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the generic interface for interacting with a key–value store.
// All write operations return only an error (nil on success),
// while read operations return the requested data along with an error (nil on success).
type IStore interface {
	// Set inserts or updates a key–value pair.
	Set(key string, value []byte) (err error)
	// SetE inserts or updates a key–value pair with expiration and or deletion delays.
	// A zero value for expireIn and deleteIn means no expiration or deletion.
	SetE(key string, value []byte, expireIn, deleteIn time.Duration) (err error)
	// SetEIfUnset inserts a key–value pair if the key does not exist.
	// If the key already exists, the old value is not updated, no matter the value of expireIn and deleteIn.
	// No error is returned if the key already exists.
	SetEIfUnset(key string, value []byte, expireIn, deleteIn time.Duration) (err error)
	// Expire expires the value for a key. The key is still findable with the Has() method.
	Expire(key string) (err error)
	// Delete deletes a key–value pair. The key is removed from the store.
	Delete(key string) (err error)
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// Has returns whether a key exists in the store. It returns true even if the value for the key is expired.
	Has(key string) (loaded bool, err error)
	// Info returns metadata about the store.
	Info() Info
	// Close stops background work. Operations on a closed store fail.
	Close() error
}

// Info holds store metadata
type Info struct {
	Keys      int // number of keys (including expired ones)
	Scheduled int // number of keys with a pending deletion
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("store error (%s): %s", e.Code, e.Msg)
}

// ErrorType returns the remote error type of the error
func (e *Error) ErrorType() string {
	switch e.Code {
	case RetCInvalidOperation:
		return "planet.InvalidOperation"
	case RetCClosed:
		return "planet.StoreClosed"
	default:
		return "planet.SystemError"
	}
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Command executed successfully.
	RetCInternalError                   // 1: Command failed due to an internal error.
	RetCInvalidOperation                // 2: Invalid operation (e.g. empty key).
	RetCClosed                          // 3: The store is closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
