package frame

import (
	"io"
)

const (
	defaultFramerSize = 64 * 1024
	minReadSpace      = 4 * 1024
)

// Framer accumulates raw socket bytes and cuts them into complete frames.
//
// A frame is complete once the 20 header bytes and length-20 payload bytes are
// buffered. The unread tail is shifted to the front of the buffer once the read
// position passes the middle of the buffer or everything was consumed.
//
// A Framer is not safe for concurrent use. Each connection's reader owns one.
type Framer struct {
	buf   []byte
	start int // first unread byte
	end   int // first free byte
}

// NewFramer creates a framer with an initial buffer of size bytes (0 = default)
func NewFramer(size int) *Framer {
	if size <= 0 {
		size = defaultFramerSize
	}
	return &Framer{buf: make([]byte, size)}
}

// Buffered returns the number of unread bytes
func (f *Framer) Buffered() int {
	return f.end - f.start
}

// Write appends p to the buffer. It never fails.
func (f *Framer) Write(p []byte) (int, error) {
	f.ensureSpace(len(p))
	n := copy(f.buf[f.end:], p)
	f.end += n
	return n, nil
}

// ReadFrom performs a single Read from r into the free space of the buffer.
// It returns the number of bytes read and the reader's error, if any.
func (f *Framer) ReadFrom(r io.Reader) (int64, error) {
	f.ensureSpace(minReadSpace)
	n, err := r.Read(f.buf[f.end:])
	f.end += n
	return int64(n), err
}

// Next returns the next complete frame. ok is false when more bytes are
// needed. A *ProtocolError is returned for malformed headers, after which the
// framer must not be used any more.
//
// The payload of the returned frame is a copy and stays valid after further
// calls to Next.
func (f *Framer) Next() (fr Frame, ok bool, err error) {
	if f.Buffered() < HeaderSize {
		f.compact()
		return Frame{}, false, nil
	}

	header, err := DecodeHeader(f.buf[f.start : f.start+HeaderSize])
	if err != nil {
		return Frame{}, false, err
	}

	total := int(header.Length)
	if f.Buffered() < total {
		// make room for the rest of this frame
		f.ensureSpace(total - f.Buffered())
		return Frame{}, false, nil
	}

	var payload []byte
	if n := header.PayloadLength(); n > 0 {
		payload = make([]byte, n)
		copy(payload, f.buf[f.start+HeaderSize:f.start+total])
	}
	f.start += total
	f.compact()

	return Frame{Header: header, Payload: payload}, true, nil
}

// compact resets the positions if everything was consumed, or shifts the
// unread tail to the front once the read position passes the middle
func (f *Framer) compact() {
	if f.start == f.end {
		f.start, f.end = 0, 0
		return
	}
	if f.start > len(f.buf)/2 {
		n := copy(f.buf, f.buf[f.start:f.end])
		f.start, f.end = 0, n
	}
}

// ensureSpace guarantees at least n free bytes behind end
func (f *Framer) ensureSpace(n int) {
	if len(f.buf)-f.end >= n {
		return
	}
	// first try to reclaim consumed space
	if f.start > 0 {
		m := copy(f.buf, f.buf[f.start:f.end])
		f.start, f.end = 0, m
		if len(f.buf)-f.end >= n {
			return
		}
	}
	size := len(f.buf) * 2
	for size-f.end < n {
		size *= 2
	}
	grown := make([]byte, size)
	copy(grown, f.buf[:f.end])
	f.buf = grown
}
