package servant

import (
	"io"
	"time"
)

// Args are the decoded arguments of a call
type Args []any

// String returns argument i as string. A null argument is "".
func (a Args) String(i int) (string, error) {
	switch v := a.at(i).(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	default:
		return "", a.typeError(i, "string")
	}
}

// Bytes returns argument i as byte slice
func (a Args) Bytes(i int) ([]byte, error) {
	switch v := a.at(i).(type) {
	case []byte:
		return v, nil
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	default:
		return nil, a.typeError(i, "binary")
	}
}

// Int64 returns argument i as int64. All integer codes are accepted.
func (a Args) Int64(i int) (int64, error) {
	switch v := a.at(i).(type) {
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, a.typeError(i, "integer")
	}
}

// Bool returns argument i as bool
func (a Args) Bool(i int) (bool, error) {
	v, ok := a.at(i).(bool)
	if !ok {
		return false, a.typeError(i, "boolean")
	}
	return v, nil
}

// Duration returns argument i, an integer number of milliseconds, as duration
func (a Args) Duration(i int) (time.Duration, error) {
	ms, err := a.Int64(i)
	return time.Duration(ms) * time.Millisecond, err
}

// Reader returns argument i as stream
func (a Args) Reader(i int) (io.Reader, error) {
	v, ok := a.at(i).(io.Reader)
	if !ok {
		return nil, a.typeError(i, "stream")
	}
	return v, nil
}

func (a Args) at(i int) any {
	if i < 0 || i >= len(a) {
		return missing{}
	}
	return a[i]
}

func (a Args) typeError(i int, want string) error {
	if i < 0 || i >= len(a) {
		return NewError(TypeInvalidArgument, "argument %d missing", i)
	}
	return NewError(TypeInvalidArgument, "argument %d: expected %s, got %T", i, want, a[i])
}

// missing marks an argument index out of range
type missing struct{}
