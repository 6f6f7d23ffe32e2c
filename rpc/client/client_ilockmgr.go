package client

import (
	"time"

	"github.com/ValentinKolb/planet/lib/lockmgr"
	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/session"
)

// RPCLockMgr implements lockmgr.ILockManager by calling the planet.Lock servant of a peer
type RPCLockMgr struct {
	rpcClientAdapter
}

var _ lockmgr.ILockManager = (*RPCLockMgr)(nil)

// NewRPCLockMgr creates a lock manager client on s
func NewRPCLockMgr(s *session.Session, timeout time.Duration) *RPCLockMgr {
	return &RPCLockMgr{
		rpcClientAdapter{
			session: s,
			path:    common.LockPath,
			timeout: timeout,
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the lockmgr package in interface.go)
// --------------------------------------------------------------------------

func (i *RPCLockMgr) AcquireLock(key string, timeout time.Duration) (ok bool, ownerID []byte, err error) {
	ownerID, err = expect[[]byte](i.invoke(common.LockAcquire, key, timeout.Milliseconds()))
	if err != nil {
		return false, nil, err
	}
	return ownerID != nil, ownerID, nil
}

func (i *RPCLockMgr) ReleaseLock(key string, ownerID []byte) (ok bool, err error) {
	return expect[bool](i.invoke(common.LockRelease, key, nonNil(ownerID)))
}
