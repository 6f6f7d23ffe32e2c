package session

import (
	"errors"

	"github.com/ValentinKolb/planet/rpc/servant"
)

var (
	// ErrCallTimeout is returned by Invoke when no reply arrived in time. The
	// call is not cancelled on the peer; a late reply is dropped.
	ErrCallTimeout = errors.New("call timeout")
	// ErrSessionClosed is returned by operations on a closed session
	ErrSessionClosed = errors.New("session closed")
	// ErrStreamTimeout is returned when a stream channel did not arrive in time
	ErrStreamTimeout = errors.New("stream timeout")
	// ErrBadHeader is returned for malformed RPC headers
	ErrBadHeader = errors.New("bad rpc header")
	// ErrRequestIDsExhausted closes a session once all request ids were used
	ErrRequestIDsExhausted = errors.New("request ids exhausted")
)

// RemoteError is an error raised by a remote method and declared by the caller
type RemoteError struct {
	TypeName string
	Message  string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "remote " + e.TypeName
	}
	return "remote " + e.TypeName + ": " + e.Message
}

// ErrorType keeps the type name when the error is passed on to another caller
func (e *RemoteError) ErrorType() string {
	return e.TypeName
}

// Is matches servant errors of the same type name
func (e *RemoteError) Is(target error) bool {
	t, ok := target.(*servant.Error)
	return ok && t.TypeName == e.TypeName
}

// RemoteSystemError wraps failures the caller did not declare: undeclared
// remote errors and local failures such as a closed connection
type RemoteSystemError struct {
	Cause error
}

func (e *RemoteSystemError) Error() string {
	return "remote system error: " + e.Cause.Error()
}

func (e *RemoteSystemError) Unwrap() error {
	return e.Cause
}
