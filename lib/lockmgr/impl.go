package lockmgr

import (
	"bytes"
	"time"

	"github.com/ValentinKolb/planet/lib/store"
	"github.com/ValentinKolb/planet/lib/util"
)

// ownerIDLength is the length of a random owner id in bytes
const ownerIDLength = 32

// keyPrefix separates lock keys from other keys of a shared store
const keyPrefix = "lock:"

type lockMgrImpl struct {
	store store.IStore
}

// NewLockManager creates a lock manager keeping its locks in s
func NewLockManager(s store.IStore) ILockManager {
	return &lockMgrImpl{
		store: s,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see lockmgr/interface.go)
// --------------------------------------------------------------------------

func (lm *lockMgrImpl) AcquireLock(key string, timeout time.Duration) (bool, []byte, error) {
	ownerID, err := util.RandomBytes(ownerIDLength)
	if err != nil {
		return false, nil, err
	}

	// set the value only if it doesn't exist (atomic CAS operation)
	if err := lm.store.SetEIfUnset(keyPrefix+key, ownerID, 0, timeout); err != nil {
		return false, nil, err
	}

	value, found, err := lm.store.Get(keyPrefix + key)
	if err != nil {
		return false, nil, err
	}

	// acquired by us, not by someone else in the meantime
	if found && bytes.Equal(value, ownerID) {
		return true, ownerID, nil
	}
	return false, nil, nil
}

func (lm *lockMgrImpl) ReleaseLock(key string, ownerID []byte) (bool, error) {
	value, ok, err := lm.store.Get(keyPrefix + key)
	if err != nil || !ok {
		return err == nil, err
	}

	if !bytes.Equal(ownerID, value) {
		return false, nil
	}

	err = lm.store.Delete(keyPrefix + key)
	return err == nil, err
}
