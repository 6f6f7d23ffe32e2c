package servant

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func echoServant() *Servant {
	return New("test.Echo",
		&Method{
			Desc:   Desc{Signature: Signature("echo", "string")},
			Params: 1,
			Handler: func(_ context.Context, args Args) (any, error) {
				return args.String(0)
			},
		},
		&Method{
			Desc:   Desc{Signature: Signature("fail"), Errors: []string{"test.Failure"}},
			Params: 0,
			Handler: func(context.Context, Args) (any, error) {
				return nil, NewError("test.Failure", "failed on purpose")
			},
		},
	)
}

func TestSignature(t *testing.T) {
	if got := Signature("put", "string", "binary"); got != "put(string,binary)" {
		t.Errorf("unexpected signature %q", got)
	}
	if got := Signature("ping"); got != "ping()" {
		t.Errorf("unexpected signature %q", got)
	}
}

func TestServantMethods(t *testing.T) {
	s := echoServant()

	m, err := s.Method("echo(string)")
	if err != nil {
		t.Fatalf("method not found: %v", err)
	}
	if m.Interface != "test.Echo" {
		t.Errorf("interface not propagated, got %q", m.Interface)
	}
	if m.String() != "test.Echo.echo(string)" {
		t.Errorf("unexpected method name %q", m.String())
	}

	got, err := m.Invoke(context.Background(), []any{"hi"})
	if err != nil || got != "hi" {
		t.Errorf("expected hi, got %v (%v)", got, err)
	}

	if _, err := m.Invoke(context.Background(), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for missing arguments, got %v", err)
	}

	if _, err := s.Method("nope()"); !errors.Is(err, ErrMethodNotFound) {
		t.Errorf("expected ErrMethodNotFound, got %v", err)
	}

	if want := []string{"echo(string)", "fail()"}; !reflect.DeepEqual(s.Signatures(), want) {
		t.Errorf("signatures %v, want %v", s.Signatures(), want)
	}
}

func TestDeclaredErrors(t *testing.T) {
	m, _ := echoServant().Method("fail()")

	_, err := m.Invoke(context.Background(), nil)
	if TypeNameOf(err) != "test.Failure" || MessageOf(err) != "failed on purpose" {
		t.Errorf("unexpected error %v", err)
	}
	if !m.Declares("test.Failure") || m.Declares(TypeSystemError) {
		t.Error("unexpected declared errors")
	}

	plain := fmt.Errorf("wrapped: %w", errors.New("disk full"))
	if TypeNameOf(plain) != TypeSystemError || MessageOf(plain) != "wrapped: disk full" {
		t.Errorf("plain errors must be system errors, got %s / %s", TypeNameOf(plain), MessageOf(plain))
	}

	wrapped := fmt.Errorf("context: %w", NewError(TypeMethodNotFound, "x"))
	if TypeNameOf(wrapped) != TypeMethodNotFound {
		t.Errorf("wrapped typed errors keep their type, got %s", TypeNameOf(wrapped))
	}
	if !errors.Is(wrapped, ErrMethodNotFound) || errors.Is(wrapped, ErrServantNotFound) {
		t.Error("errors.Is must match by type name")
	}
}

func TestDirectory(t *testing.T) {
	d := NewDirectory()

	if err := d.Add("/echo", echoServant()); err != nil {
		t.Fatal(err)
	}
	if err := d.Add("/echo", echoServant()); !errors.Is(err, ErrPathInUse) {
		t.Errorf("expected ErrPathInUse, got %v", err)
	}
	if err := d.Add("/other", echoServant()); err != nil {
		t.Fatal(err)
	}

	if s, err := d.Resolve("/echo"); err != nil || s.Interface != "test.Echo" {
		t.Errorf("resolve failed: %v", err)
	}
	if _, err := d.Resolve("/missing"); !errors.Is(err, ErrServantNotFound) {
		t.Errorf("expected ErrServantNotFound, got %v", err)
	}
	if got := d.Paths(); !reflect.DeepEqual(got, []string{"/echo", "/other"}) {
		t.Errorf("unexpected paths %v", got)
	}

	if !d.Remove("/echo") || d.Remove("/echo") {
		t.Error("remove must report whether the servant existed")
	}
}

func TestArgs(t *testing.T) {
	args := Args{"k", []byte("v"), int32(7), true, nil, int8(-1)}

	if s, err := args.String(0); err != nil || s != "k" {
		t.Errorf("String: %q %v", s, err)
	}
	if b, err := args.Bytes(1); err != nil || string(b) != "v" {
		t.Errorf("Bytes: %q %v", b, err)
	}
	if n, err := args.Int64(2); err != nil || n != 7 {
		t.Errorf("Int64: %d %v", n, err)
	}
	if n, err := args.Int64(5); err != nil || n != -1 {
		t.Errorf("Int64 from byte: %d %v", n, err)
	}
	if d, err := args.Duration(2); err != nil || d.Milliseconds() != 7 {
		t.Errorf("Duration: %s %v", d, err)
	}
	if b, err := args.Bool(3); err != nil || !b {
		t.Errorf("Bool: %v %v", b, err)
	}
	if s, err := args.String(4); err != nil || s != "" {
		t.Errorf("null String: %q %v", s, err)
	}

	_, err := args.Int64(0)
	if !errors.Is(err, ErrInvalidArgument) || !strings.Contains(err.Error(), "expected integer") {
		t.Errorf("expected a type error, got %v", err)
	}
	if _, err := args.String(10); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected a missing argument error, got %v", err)
	}
	if _, err := args.Reader(0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected a type error for a non stream, got %v", err)
	}
}
