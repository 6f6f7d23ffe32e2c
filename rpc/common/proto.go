package common

import (
	"github.com/ValentinKolb/planet/rpc/servant"
)

// Version is the version of the planet runtime
const Version = "0.3.0"

// --------------------------------------------------------------------------
// Built-in Interfaces
// --------------------------------------------------------------------------

// Interface names and mount paths of the built-in servants. Durations are
// sent as milliseconds (long).
const (
	KVInterface     = "planet.KV"
	LockInterface   = "planet.Lock"
	SystemInterface = "planet.System"

	KVPath     = "/kv"
	LockPath   = "/lock"
	SystemPath = "/system"
)

// Error types declared by the built-in interfaces
const (
	TypeInvalidOperation = "planet.InvalidOperation"
	TypeStoreClosed      = "planet.StoreClosed"
)

var storeErrors = []string{TypeInvalidOperation, TypeStoreClosed}

// --------------------------------------------------------------------------
// Method Descriptors
// --------------------------------------------------------------------------

var (
	// KVSet stores a value: set(key, value)
	KVSet = kv("set", storeErrors, "string", "binary")
	// KVSetE stores a value with ttl: setE(key, value, expireInMs, deleteInMs)
	KVSetE = kv("setE", storeErrors, "string", "binary", "long", "long")
	// KVSetEIfUnset stores a value if the key is unset: setEIfUnset(key, value, expireInMs, deleteInMs)
	KVSetEIfUnset = kv("setEIfUnset", storeErrors, "string", "binary", "long", "long")
	// KVExpire expires the value of a key: expire(key)
	KVExpire = kv("expire", storeErrors, "string")
	// KVDelete deletes a key: delete(key)
	KVDelete = kv("delete", storeErrors, "string")
	// KVGet returns the value of a key or null: get(key)
	KVGet = kv("get", storeErrors, "string")
	// KVHas reports whether a key exists: has(key)
	KVHas = kv("has", storeErrors, "string")
	// KVUpload stores the content of a stream: upload(key, stream)
	KVUpload = kv("upload", storeErrors, "string", "stream")
	// KVDownload returns the value of a key as stream: download(key)
	KVDownload = kv("download", storeErrors, "string")
	// KVInfo returns store metadata as map: info()
	KVInfo = kv("info", storeErrors)

	// LockAcquire returns the owner id or null: acquire(key, timeoutMs)
	LockAcquire = lock("acquire", "string", "long")
	// LockRelease releases a lock: release(key, ownerID)
	LockRelease = lock("release", "string", "binary")

	// SystemPing answers "pong": ping()
	SystemPing = system("ping", false)
	// SystemEcho returns its argument: echo(value)
	SystemEcho = system("echo", false, "any")
	// SystemStats returns the node statistics as map: stats()
	SystemStats = system("stats", false)
	// SystemInfo returns static node information as map: info()
	SystemInfo = system("info", true)
	// SystemLog writes a message to the node log, usually sent as notification: log(message)
	SystemLog = system("log", false, "string")
)

func kv(name string, errors []string, params ...string) *servant.Desc {
	return &servant.Desc{Interface: KVInterface, Signature: servant.Signature(name, params...), Errors: errors}
}

func lock(name string, params ...string) *servant.Desc {
	return &servant.Desc{Interface: LockInterface, Signature: servant.Signature(name, params...), Errors: storeErrors}
}

func system(name string, constant bool, params ...string) *servant.Desc {
	return &servant.Desc{Interface: SystemInterface, Signature: servant.Signature(name, params...), Const: constant}
}
