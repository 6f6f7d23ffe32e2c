package servant

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Handler executes a method call. Returned errors are sent back as ERROR
// replies, the result as REPLY. A nil result of a method without return value
// should be serializer.VoidValue.
type Handler func(ctx context.Context, args Args) (any, error)

// Desc describes a remote method as seen by callers
type Desc struct {
	// Interface is the name of the interface declaring the method
	Interface string
	// Signature identifies the method within the servant, e.g. "get(string)"
	Signature string
	// Const marks methods whose result never changes. Callers cache the
	// first successful result per session.
	Const bool
	// Errors lists the declared error type names. Other remote errors are
	// reported as system errors.
	Errors []string
}

// Declares reports whether typeName is a declared error of the method
func (d *Desc) Declares(typeName string) bool {
	for _, name := range d.Errors {
		if name == typeName {
			return true
		}
	}
	return false
}

func (d *Desc) String() string {
	return d.Interface + "." + d.Signature
}

// Method is a method implementation with its descriptor
type Method struct {
	Desc
	// Params is the number of expected arguments, -1 for any
	Params  int
	Handler Handler
}

// Servant is a local object that can be called remotely. It is an explicit
// table from method signature to handler.
type Servant struct {
	Interface string
	methods   map[string]*Method
}

// New creates a servant implementing iface with methods. The Interface of
// every method is set to iface.
func New(iface string, methods ...*Method) *Servant {
	s := &Servant{Interface: iface, methods: make(map[string]*Method, len(methods))}
	for _, m := range methods {
		m.Interface = iface
		s.methods[m.Signature] = m
	}
	return s
}

// Method returns the method with signature sig
func (s *Servant) Method(sig string) (*Method, error) {
	m, ok := s.methods[sig]
	if !ok {
		return nil, NewError(TypeMethodNotFound, "%s has no method %s", s.Interface, sig)
	}
	return m, nil
}

// Signatures returns the sorted signatures of all methods
func (s *Servant) Signatures() []string {
	sigs := make([]string, 0, len(s.methods))
	for sig := range s.methods {
		sigs = append(sigs, sig)
	}
	sort.Strings(sigs)
	return sigs
}

// Invoke checks the arguments and calls the handler of m
func (m *Method) Invoke(ctx context.Context, args []any) (any, error) {
	if m.Params >= 0 && len(args) != m.Params {
		return nil, NewError(TypeInvalidArgument, "%s expects %d arguments, got %d", m.Signature, m.Params, len(args))
	}
	return m.Handler(ctx, args)
}

// Signature builds a method signature from a name and parameter type names
func Signature(name string, params ...string) string {
	return fmt.Sprintf("%s(%s)", name, strings.Join(params, ","))
}
