package servant

import (
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// IResolver resolves servant paths
type IResolver interface {
	// Resolve returns the servant registered under path or an error matching ErrServantNotFound
	Resolve(path string) (*Servant, error)
}

// Directory maps paths to servants. It is safe for concurrent use.
type Directory struct {
	servants *xsync.MapOf[string, *Servant]
}

// NewDirectory creates an empty directory
func NewDirectory() *Directory {
	return &Directory{servants: xsync.NewMapOf[string, *Servant]()}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see servant.IResolver)
// --------------------------------------------------------------------------

func (d *Directory) Resolve(path string) (*Servant, error) {
	s, ok := d.servants.Load(path)
	if !ok {
		return nil, NewError(TypeServantNotFound, "no servant at %q", path)
	}
	return s, nil
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// Add registers s under path
func (d *Directory) Add(path string, s *Servant) error {
	if _, loaded := d.servants.LoadOrStore(path, s); loaded {
		return fmt.Errorf("%w: %s", ErrPathInUse, path)
	}
	return nil
}

// Remove unregisters the servant at path and reports whether one existed
func (d *Directory) Remove(path string) bool {
	_, ok := d.servants.LoadAndDelete(path)
	return ok
}

// Paths returns all registered paths in order
func (d *Directory) Paths() []string {
	var paths []string
	d.servants.Range(func(path string, _ *Servant) bool {
		paths = append(paths, path)
		return true
	})
	sort.Strings(paths)
	return paths
}
