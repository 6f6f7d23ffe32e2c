// Package client implements typed RPC clients for the built-in servants of a
// planet node. The clients implement the store.IStore and lockmgr.ILockManager
// interfaces on top of a session, so local and remote implementations can be
// used interchangeably.
//
// Key Components:
//
//   - Dial: Connects a non-listening peer to a node and returns a Client that
//     owns the connection manager.
//
//   - NewRPCStore: Client of the planet.KV servant. Besides store.IStore it
//     offers Upload and Download, which move values as streams.
//
//   - NewRPCLockMgr: Client of the planet.Lock servant.
//
//   - NewRPCSystem: Client of the planet.System servant (ping, echo, stats,
//     info and log).
//
// Usage Example:
//
//	c, err := client.Dial(ctx, common.ClientConfig{
//		Network: "tcp",
//		Peer:    "localhost:8080",
//	}, tcp.NewConnector(), serializer.NewBinaryCodec(serializer.NewJSONEncoder()))
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	kv := c.Store()
//	_ = kv.Set("mykey", []byte("myvalue"))
//	value, exists, _ := kv.Get("mykey")
//
//	locks := c.Locks()
//	if ok, owner, _ := locks.AcquireLock("mylock", 30*time.Second); ok {
//		defer locks.ReleaseLock("mylock", owner)
//	}
//
// Declared store errors of the peer are converted back to *store.Error, all
// other failures are returned as session errors.
//
// All clients are safe for concurrent use.
package client
