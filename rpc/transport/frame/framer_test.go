package frame

import (
	"bytes"
	"io"
	"testing"
)

func TestFramerPartialReads(t *testing.T) {
	frames := []Frame{
		NewConnect("a:1"),
		NewData(1, 0, false, bytes.Repeat([]byte{1}, 100)),
		NewHeartbeat(),
		NewData(1, 1, true, []byte{2, 3}),
	}

	var stream []byte
	for _, f := range frames {
		stream = append(stream, f.Marshal()...)
	}

	// feed one byte at a time
	fr := NewFramer(32)
	var got []Frame
	for _, b := range stream {
		_, _ = fr.Write([]byte{b})
		for {
			f, ok, err := fr.Next()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ok {
				break
			}
			got = append(got, f)
		}
	}

	if len(got) != len(frames) {
		t.Fatalf("expected %d frames, got %d", len(frames), len(got))
	}
	for i := range frames {
		want := frames[i]
		want.Header.Length = uint32(want.Size())
		if got[i].Header != want.Header {
			t.Errorf("frame %d: header %+v, want %+v", i, got[i].Header, want.Header)
		}
		if !bytes.Equal(got[i].Payload, want.Payload) {
			t.Errorf("frame %d: payload mismatch", i)
		}
	}
	if fr.Buffered() != 0 {
		t.Errorf("expected empty framer, %d bytes left", fr.Buffered())
	}
}

func TestFramerManyFramesOneRead(t *testing.T) {
	var stream bytes.Buffer
	const count = 500
	for i := 0; i < count; i++ {
		_, _ = NewData(int32(i), 0, true, []byte{byte(i)}).WriteTo(&stream)
	}

	fr := NewFramer(1024)
	n := 0
	for {
		_, err := fr.ReadFrom(&stream)
		for {
			f, ok, ferr := fr.Next()
			if ferr != nil {
				t.Fatalf("unexpected error: %v", ferr)
			}
			if !ok {
				break
			}
			if f.Header.ChannelID != int32(n) || f.Payload[0] != byte(n) {
				t.Fatalf("frame %d out of order: %v", n, f)
			}
			n++
		}
		if err == io.EOF {
			break
		}
	}

	if n != count {
		t.Errorf("expected %d frames, got %d", count, n)
	}
}

func TestFramerGrowsForLargeFrames(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 300*1024)
	f := NewData(9, 0, true, payload)

	fr := NewFramer(1024)
	r := bytes.NewReader(f.Marshal())
	for {
		if _, err := fr.ReadFrom(r); err == io.EOF {
			break
		}
	}

	got, ok, err := fr.Next()
	if err != nil || !ok {
		t.Fatalf("expected the large frame, ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Error("payload of large frame corrupted")
	}
}

func TestFramerPayloadIsCopied(t *testing.T) {
	fr := NewFramer(64)
	_, _ = fr.Write(NewData(1, 0, true, []byte("first")).Marshal())
	first, _, _ := fr.Next()

	_, _ = fr.Write(NewData(1, 0, true, []byte("SECND")).Marshal())
	_, _, _ = fr.Next()

	if string(first.Payload) != "first" {
		t.Errorf("payload of earlier frame was overwritten: %q", first.Payload)
	}
}

func TestFramerRejectsCorruptMagic(t *testing.T) {
	b := NewHeartbeat().Marshal()
	b[0] = 0xAB

	fr := NewFramer(0)
	_, _ = fr.Write(b)
	f, ok, err := fr.Next()
	if ok || !IsProtocolError(err) {
		t.Fatalf("expected protocol error and no frame, got ok=%v frame=%v err=%v", ok, f, err)
	}
}
