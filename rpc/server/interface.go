package server

import (
	"github.com/ValentinKolb/planet/rpc/servant"
)

// IServantAdapter exposes a backend as a servant mounted by a node
type IServantAdapter interface {
	// Path returns the mount path of the servant
	Path() string
	// Servant returns the method table calling into the backend
	Servant() *servant.Servant
	// Close releases the backend
	Close() error
}
