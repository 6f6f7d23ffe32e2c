package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// ErrShortBuffer is returned when a read needs more bytes than are left
var ErrShortBuffer = errors.New("wire: short buffer")

// NullLength is the length prefix of a null string
const NullLength int32 = -1

// --------------------------------------------------------------------------
// Writer
// --------------------------------------------------------------------------

// Writer appends big-endian encoded values to a byte slice
type Writer struct {
	buf []byte
}

// NewWriter creates a writer with the given initial capacity
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// WrapWriter creates a writer appending to buf
func WrapWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Bytes returns the written bytes
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of written bytes
func (w *Writer) Len() int { return len(w.buf) }

// Reset discards all written bytes but keeps the buffer
func (w *Writer) Reset() { w.buf = w.buf[:0] }

func (w *Writer) WriteByte(v byte) error {
	w.buf = append(w.buf, v)
	return nil
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) WriteInt16(v int16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v))
}

func (w *Writer) WriteInt32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteInt64(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

func (w *Writer) WriteFloat32(v float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *Writer) WriteFloat64(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// WriteRaw appends b without a length prefix
func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteBytes writes an i32 length prefix followed by b. A nil slice is written as -1.
func (w *Writer) WriteBytes(b []byte) {
	if b == nil {
		w.WriteInt32(NullLength)
		return
	}
	w.WriteInt32(int32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteString writes an i32 length prefix followed by the UTF-8 bytes of s
func (w *Writer) WriteString(s string) {
	w.WriteInt32(int32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteNullableString writes s, or the null marker if s is nil
func (w *Writer) WriteNullableString(s *string) {
	if s == nil {
		w.WriteInt32(NullLength)
		return
	}
	w.WriteString(*s)
}

// --------------------------------------------------------------------------
// Reader
// --------------------------------------------------------------------------

// Reader decodes big-endian values from a byte slice
type Reader struct {
	buf []byte
	pos int
}

// NewReader creates a reader over b
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Rest returns the unread bytes without consuming them
func (r *Reader) Rest() []byte { return r.buf[r.pos:] }

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, r.Remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) ReadByte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	return b != 0, err
}

func (r *Reader) ReadInt16() (int16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) ReadFloat64() (float64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// ReadRaw reads exactly n bytes. The returned slice aliases the reader's buffer.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	return r.take(n)
}

// ReadBytes reads an i32 length prefixed byte slice. Length -1 yields nil.
// The result is a copy and does not alias the reader's buffer.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n == NullLength {
		return nil, nil
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// ReadNullableString reads an i32 length prefixed UTF-8 string, nil for the null marker
func (r *Reader) ReadNullableString() (*string, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n == NullLength {
		return nil, nil
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(b) {
		return nil, fmt.Errorf("wire: invalid UTF-8 in string of length %d", n)
	}
	s := string(b)
	return &s, nil
}

// ReadString reads a string, mapping the null marker to ""
func (r *Reader) ReadString() (string, error) {
	s, err := r.ReadNullableString()
	if err != nil || s == nil {
		return "", err
	}
	return *s, nil
}
