package server

import (
	"context"

	"github.com/ValentinKolb/planet/lib/lockmgr"
	"github.com/ValentinKolb/planet/lib/store"
	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/servant"
)

// NewLockManagerServerAdapter exposes a lock manager on s as planet.Lock servant
func NewLockManagerServerAdapter(s store.IStore) IServantAdapter {
	return &lockMgrServerAdapter{
		store: s,
		locks: lockmgr.NewLockManager(s),
	}
}

type lockMgrServerAdapter struct {
	store store.IStore
	locks lockmgr.ILockManager
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server/interface.go)
// --------------------------------------------------------------------------

func (a *lockMgrServerAdapter) Path() string {
	return common.LockPath
}

func (a *lockMgrServerAdapter) Close() error {
	return a.store.Close()
}

func (a *lockMgrServerAdapter) Servant() *servant.Servant {
	return servant.New(common.LockInterface,
		method(common.LockAcquire, 2, a.acquire),
		method(common.LockRelease, 2, a.release),
	)
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

// acquire returns the owner id or null if the lock is held by someone else
func (a *lockMgrServerAdapter) acquire(_ context.Context, args servant.Args) (any, error) {
	key, err := args.String(0)
	if err != nil {
		return nil, err
	}
	timeout, err := args.Duration(1)
	if err != nil {
		return nil, err
	}
	ok, ownerID, err := a.locks.AcquireLock(key, timeout)
	if err != nil || !ok {
		return nil, err
	}
	return ownerID, nil
}

func (a *lockMgrServerAdapter) release(_ context.Context, args servant.Args) (any, error) {
	key, err := args.String(0)
	if err != nil {
		return nil, err
	}
	ownerID, err := args.Bytes(1)
	if err != nil {
		return nil, err
	}
	return a.locks.ReleaseLock(key, ownerID)
}
