package client

import (
	"io"
	"time"

	"github.com/ValentinKolb/planet/lib/store"
	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/session"
)

// RPCStore implements store.IStore by calling the planet.KV servant of a peer
type RPCStore struct {
	rpcClientAdapter
}

var _ store.IStore = (*RPCStore)(nil)

// NewRPCStore creates a store client on s. Every call is bounded by timeout (0 = session default).
func NewRPCStore(s *session.Session, timeout time.Duration) *RPCStore {
	return &RPCStore{
		rpcClientAdapter{
			session: s,
			path:    common.KVPath,
			timeout: timeout,
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *RPCStore) Set(key string, value []byte) error {
	_, err := i.invoke(common.KVSet, key, nonNil(value))
	return err
}

func (i *RPCStore) SetE(key string, value []byte, expireIn, deleteIn time.Duration) error {
	_, err := i.invoke(common.KVSetE, key, nonNil(value), expireIn.Milliseconds(), deleteIn.Milliseconds())
	return err
}

func (i *RPCStore) SetEIfUnset(key string, value []byte, expireIn, deleteIn time.Duration) error {
	_, err := i.invoke(common.KVSetEIfUnset, key, nonNil(value), expireIn.Milliseconds(), deleteIn.Milliseconds())
	return err
}

func (i *RPCStore) Expire(key string) error {
	_, err := i.invoke(common.KVExpire, key)
	return err
}

func (i *RPCStore) Delete(key string) error {
	_, err := i.invoke(common.KVDelete, key)
	return err
}

func (i *RPCStore) Get(key string) ([]byte, bool, error) {
	value, err := expect[[]byte](i.invoke(common.KVGet, key))
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

func (i *RPCStore) Has(key string) (bool, error) {
	return expect[bool](i.invoke(common.KVHas, key))
}

// Info returns the metadata of the remote store. Failures are logged and
// reported as empty info.
func (i *RPCStore) Info() store.Info {
	m, err := expect[map[string]any](i.invoke(common.KVInfo))
	if err != nil {
		Logger.Warningf("Failed to get store info: %v", err)
		return store.Info{}
	}
	keys, _ := m["keys"].(int64)
	scheduled, _ := m["scheduled"].(int64)
	return store.Info{Keys: int(keys), Scheduled: int(scheduled)}
}

// Close does nothing, the remote store is owned by its node
func (i *RPCStore) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Streams
// --------------------------------------------------------------------------

// Upload stores the content of r under key and returns the number of bytes stored
func (i *RPCStore) Upload(key string, r io.Reader) (int64, error) {
	return expect[int64](i.invoke(common.KVUpload, key, r))
}

// Download returns the value of key as stream. The boolean reports whether
// the key has a value; the stream must be closed by the caller.
func (i *RPCStore) Download(key string) (io.ReadCloser, bool, error) {
	rc, err := expect[io.ReadCloser](i.invoke(common.KVDownload, key))
	if err != nil || rc == nil {
		return nil, false, err
	}
	return rc, true, nil
}

// nonNil keeps empty values distinct from null
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
