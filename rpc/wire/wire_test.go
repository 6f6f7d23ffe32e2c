package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestStringEncoding(t *testing.T) {
	w := NewWriter(16)
	w.WriteString("")
	w.WriteNullableString(nil)
	w.WriteString("héllo")

	want := []byte{
		0, 0, 0, 0, // empty
		0xFF, 0xFF, 0xFF, 0xFF, // null
		0, 0, 0, 6, 'h', 0xC3, 0xA9, 'l', 'l', 'o',
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("unexpected encoding:\n got %v\nwant %v", w.Bytes(), want)
	}

	r := NewReader(w.Bytes())
	empty, err := r.ReadNullableString()
	if err != nil || empty == nil || *empty != "" {
		t.Errorf("expected empty string, got %v (%v)", empty, err)
	}
	null, err := r.ReadNullableString()
	if err != nil || null != nil {
		t.Errorf("expected null, got %v (%v)", null, err)
	}
	s, err := r.ReadString()
	if err != nil || s != "héllo" {
		t.Errorf("expected héllo, got %q (%v)", s, err)
	}
	if r.Remaining() != 0 {
		t.Errorf("expected no remaining bytes, got %d", r.Remaining())
	}
}

func TestShortBuffer(t *testing.T) {
	tests := map[string]struct {
		input []byte
		read  func(r *Reader) error
	}{
		"int32": {
			input: []byte{0, 0, 1},
			read:  func(r *Reader) error { _, err := r.ReadInt32(); return err },
		},
		"int64": {
			input: []byte{0, 0, 0, 0, 0, 0, 1},
			read:  func(r *Reader) error { _, err := r.ReadInt64(); return err },
		},
		"string": {
			// length prefix claims 5 bytes but only 3 follow
			input: []byte{0, 0, 0, 5, 'a', 'b', 'c'},
			read:  func(r *Reader) error { _, err := r.ReadString(); return err },
		},
		"negative length": {
			input: []byte{0xFF, 0xFF, 0xFF, 0xFE},
			read:  func(r *Reader) error { _, err := r.ReadBytes(); return err },
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := tc.read(NewReader(tc.input))
			if !errors.Is(err, ErrShortBuffer) {
				t.Errorf("expected ErrShortBuffer, got %v", err)
			}
		})
	}
}

func TestInvalidUTF8(t *testing.T) {
	w := NewWriter(8)
	w.WriteInt32(2)
	w.WriteRaw([]byte{0xFF, 0xFE})

	if _, err := NewReader(w.Bytes()).ReadString(); err == nil {
		t.Error("expected an error for invalid UTF-8")
	}
}

func TestNumbers(t *testing.T) {
	w := NewWriter(64)
	w.WriteByte(0x7F)
	w.WriteBool(true)
	w.WriteInt16(-2)
	w.WriteInt32(-3)
	w.WriteUint32(0x970208)
	w.WriteInt64(-4)
	w.WriteFloat32(1.5)
	w.WriteFloat64(-2.25)
	w.WriteBytes(nil)
	w.WriteBytes([]byte{1, 2})

	r := NewReader(w.Bytes())
	if b, _ := r.ReadByte(); b != 0x7F {
		t.Errorf("byte: got %d", b)
	}
	if b, _ := r.ReadBool(); !b {
		t.Error("bool: got false")
	}
	if v, _ := r.ReadInt16(); v != -2 {
		t.Errorf("int16: got %d", v)
	}
	if v, _ := r.ReadInt32(); v != -3 {
		t.Errorf("int32: got %d", v)
	}
	if v, _ := r.ReadUint32(); v != 0x970208 {
		t.Errorf("uint32: got %x", v)
	}
	if v, _ := r.ReadInt64(); v != -4 {
		t.Errorf("int64: got %d", v)
	}
	if v, _ := r.ReadFloat32(); v != 1.5 {
		t.Errorf("float32: got %f", v)
	}
	if v, _ := r.ReadFloat64(); v != -2.25 {
		t.Errorf("float64: got %f", v)
	}
	if v, _ := r.ReadBytes(); v != nil {
		t.Errorf("nil bytes: got %v", v)
	}
	if v, _ := r.ReadBytes(); !bytes.Equal(v, []byte{1, 2}) {
		t.Errorf("bytes: got %v", v)
	}
}
