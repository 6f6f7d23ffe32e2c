package server

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ValentinKolb/planet/lib/store"
	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/servant"
)

// maxUploadSize bounds the values stored through upload
const maxUploadSize = 64 << 20

// NewIStoreServerAdapter exposes s as planet.KV servant
func NewIStoreServerAdapter(s store.IStore) IServantAdapter {
	return &iStoreServerAdapterImpl{store: s}
}

type iStoreServerAdapterImpl struct {
	store store.IStore
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server/interface.go)
// --------------------------------------------------------------------------

func (a *iStoreServerAdapterImpl) Path() string {
	return common.KVPath
}

func (a *iStoreServerAdapterImpl) Close() error {
	return a.store.Close()
}

func (a *iStoreServerAdapterImpl) Servant() *servant.Servant {
	return servant.New(common.KVInterface,
		method(common.KVSet, 2, a.set),
		method(common.KVSetE, 4, a.setE),
		method(common.KVSetEIfUnset, 4, a.setEIfUnset),
		method(common.KVExpire, 1, a.expire),
		method(common.KVDelete, 1, a.delete),
		method(common.KVGet, 1, a.get),
		method(common.KVHas, 1, a.has),
		method(common.KVUpload, 2, a.upload),
		method(common.KVDownload, 1, a.download),
		method(common.KVInfo, 0, a.info),
	)
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (a *iStoreServerAdapterImpl) set(_ context.Context, args servant.Args) (any, error) {
	key, value, err := keyValue(args)
	if err != nil {
		return nil, err
	}
	return nil, a.store.Set(key, value)
}

func (a *iStoreServerAdapterImpl) setE(_ context.Context, args servant.Args) (any, error) {
	key, value, err := keyValue(args)
	if err != nil {
		return nil, err
	}
	expireIn, err := args.Duration(2)
	if err != nil {
		return nil, err
	}
	deleteIn, err := args.Duration(3)
	if err != nil {
		return nil, err
	}
	return nil, a.store.SetE(key, value, expireIn, deleteIn)
}

func (a *iStoreServerAdapterImpl) setEIfUnset(_ context.Context, args servant.Args) (any, error) {
	key, value, err := keyValue(args)
	if err != nil {
		return nil, err
	}
	expireIn, err := args.Duration(2)
	if err != nil {
		return nil, err
	}
	deleteIn, err := args.Duration(3)
	if err != nil {
		return nil, err
	}
	return nil, a.store.SetEIfUnset(key, value, expireIn, deleteIn)
}

func (a *iStoreServerAdapterImpl) expire(_ context.Context, args servant.Args) (any, error) {
	key, err := args.String(0)
	if err != nil {
		return nil, err
	}
	return nil, a.store.Expire(key)
}

func (a *iStoreServerAdapterImpl) delete(_ context.Context, args servant.Args) (any, error) {
	key, err := args.String(0)
	if err != nil {
		return nil, err
	}
	return nil, a.store.Delete(key)
}

// get returns the value or null if the key has no value
func (a *iStoreServerAdapterImpl) get(_ context.Context, args servant.Args) (any, error) {
	key, err := args.String(0)
	if err != nil {
		return nil, err
	}
	value, ok, err := a.store.Get(key)
	if err != nil || !ok {
		return nil, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (a *iStoreServerAdapterImpl) has(_ context.Context, args servant.Args) (any, error) {
	key, err := args.String(0)
	if err != nil {
		return nil, err
	}
	return a.store.Has(key)
}

// upload stores the content of a stream and returns its size
func (a *iStoreServerAdapterImpl) upload(_ context.Context, args servant.Args) (any, error) {
	key, err := args.String(0)
	if err != nil {
		return nil, err
	}
	r, err := args.Reader(1)
	if err != nil {
		return nil, err
	}
	value, err := io.ReadAll(io.LimitReader(r, maxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("upload of %q failed: %w", key, err)
	}
	if len(value) > maxUploadSize {
		return nil, servant.NewError(common.TypeInvalidOperation, "value of %q exceeds %d bytes", key, maxUploadSize)
	}
	if err := a.store.Set(key, value); err != nil {
		return nil, err
	}
	return int64(len(value)), nil
}

// download returns the value as stream or null if the key has no value
func (a *iStoreServerAdapterImpl) download(_ context.Context, args servant.Args) (any, error) {
	key, err := args.String(0)
	if err != nil {
		return nil, err
	}
	value, ok, err := a.store.Get(key)
	if err != nil || !ok {
		return nil, err
	}
	return bytes.NewReader(value), nil
}

func (a *iStoreServerAdapterImpl) info(context.Context, servant.Args) (any, error) {
	info := a.store.Info()
	return map[string]any{
		"keys":      int64(info.Keys),
		"scheduled": int64(info.Scheduled),
	}, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func method(desc *servant.Desc, params int, h servant.Handler) *servant.Method {
	return &servant.Method{Desc: *desc, Params: params, Handler: h}
}

func keyValue(args servant.Args) (string, []byte, error) {
	key, err := args.String(0)
	if err != nil {
		return "", nil, err
	}
	value, err := args.Bytes(1)
	return key, value, err
}
