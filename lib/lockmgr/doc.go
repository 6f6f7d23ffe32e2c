// Package lockmgr implements locks on top of a store.IStore.
//
// The lock manager keeps no state of its own: every lock is a key of the
// store ("lock:" + name) holding a random owner id. It is therefore safe to
// create several lock managers on the same store.
//
// Implementation Approach:
//
//   - Lock Acquisition: SetEIfUnset creates the key only if it does not
//     exist. A following Get confirms that the stored owner id is ours.
//
//   - Timeouts: A lock acquired with a timeout is deleted by the store once
//     the timeout passed, so a crashed holder cannot block others forever.
//
//   - Safe Release: ReleaseLock compares the stored owner id with the one
//     given before deleting the key.
//
// Usage Example:
//
//	locks := lockmgr.NewLockManager(store.NewMemStore(0))
//
//	acquired, ownerID, err := locks.AcquireLock("resource:123", 30*time.Second)
//	if err == nil && acquired {
//	    // use the resource
//	    _, _ = locks.ReleaseLock("resource:123", ownerID)
//	}
package lockmgr
