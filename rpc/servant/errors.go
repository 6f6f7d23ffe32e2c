package servant

import (
	"errors"
	"fmt"
)

// Type names of the errors raised by the runtime itself
const (
	TypeServantNotFound = "planet.ServantNotFound"
	TypeMethodNotFound  = "planet.MethodNotFound"
	TypeInvalidArgument = "planet.InvalidArgument"
	TypeSystemError     = "planet.SystemError"
)

var (
	// ErrServantNotFound matches errors for unknown servant paths
	ErrServantNotFound = &Error{TypeName: TypeServantNotFound}
	// ErrMethodNotFound matches errors for unknown method signatures
	ErrMethodNotFound = &Error{TypeName: TypeMethodNotFound}
	// ErrInvalidArgument matches errors for wrong argument counts or types
	ErrInvalidArgument = &Error{TypeName: TypeInvalidArgument}
	// ErrPathInUse is returned when adding a servant under a taken path
	ErrPathInUse = errors.New("servant path in use")
)

// Error is an application error with a type name. The type name travels in
// ERROR replies and decides whether the caller declared the error.
type Error struct {
	TypeName string
	Message  string
}

// NewError creates an error of type typeName
func NewError(typeName, format string, args ...any) *Error {
	return &Error{TypeName: typeName, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.TypeName
	}
	return e.TypeName + ": " + e.Message
}

// Is matches errors of the same type name
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.TypeName == e.TypeName
}

// ITypedError is implemented by errors that carry their own type name
type ITypedError interface {
	error
	ErrorType() string
}

// ErrorType returns the type name of e
func (e *Error) ErrorType() string { return e.TypeName }

// TypeNameOf returns the wire type name of err. Errors without a type name
// are system errors.
func TypeNameOf(err error) string {
	var typed ITypedError
	if errors.As(err, &typed) {
		return typed.ErrorType()
	}
	return TypeSystemError
}

// MessageOf returns the message sent for err
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
