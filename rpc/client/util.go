package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/planet/lib/store"
	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/serializer"
	"github.com/ValentinKolb/planet/rpc/servant"
	"github.com/ValentinKolb/planet/rpc/session"
	"github.com/ValentinKolb/planet/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc/client")
)

// Client is a non-listening peer connected to one serving node
type Client struct {
	config     common.ClientConfig
	manager    *base.Manager
	dispatcher *session.Dispatcher
	session    *session.Session
}

// Dial connects to config.Peer. The returned client owns its connection
// manager; Close releases it.
func Dial(ctx context.Context, config common.ClientConfig, connector base.IConnector, codec serializer.IValueCodec) (*Client, error) {
	d := session.NewDispatcher(nil, codec, config.Session)
	transportConfig := config.Transport
	transportConfig.Endpoint = ""
	m := base.NewManager(connector, transportConfig, d)
	d.Bind(m)

	s, err := d.Connect(ctx, config.Peer)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Peer, err)
	}
	Logger.Debugf("Connected to %s", config.Peer)

	return &Client{
		config:     config,
		manager:    m,
		dispatcher: d,
		session:    s,
	}, nil
}

// Session returns the session with the node
func (c *Client) Session() *session.Session {
	return c.session
}

// Dispatcher returns the dispatcher of the client
func (c *Client) Dispatcher() *session.Dispatcher {
	return c.dispatcher
}

// Store returns the remote planet.KV servant as store
func (c *Client) Store() *RPCStore {
	return NewRPCStore(c.session, c.config.Session.CallTimeout)
}

// Locks returns the remote planet.Lock servant as lock manager
func (c *Client) Locks() *RPCLockMgr {
	return NewRPCLockMgr(c.session, c.config.Session.CallTimeout)
}

// System returns the remote planet.System servant
func (c *Client) System() *RPCSystem {
	return NewRPCSystem(c.session, c.config.Session.CallTimeout)
}

// Close closes the connection and the manager
func (c *Client) Close() error {
	return c.manager.Close()
}

// --------------------------------------------------------------------------
// Adapter
// --------------------------------------------------------------------------

// rpcClientAdapter stores all data needed to call one remote servant.
// Used by the RPC clients with composition pattern.
type rpcClientAdapter struct {
	session *session.Session
	path    string
	timeout time.Duration
}

// invoke calls desc on the servant, bounded by the adapter timeout
func (a *rpcClientAdapter) invoke(desc *servant.Desc, args ...any) (any, error) {
	ctx := context.Background()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	v, err := a.session.Invoke(ctx, a.path, desc, args...)
	if err != nil {
		return nil, toStoreError(err)
	}
	return v, nil
}

// toStoreError converts declared remote store errors back into *store.Error
func toStoreError(err error) error {
	var remote *session.RemoteError
	if !errors.As(err, &remote) {
		return err
	}
	switch remote.TypeName {
	case common.TypeInvalidOperation:
		return store.NewError(store.RetCInvalidOperation, remote.Message)
	case common.TypeStoreClosed:
		return store.NewError(store.RetCClosed, remote.Message)
	default:
		return err
	}
}

// expect converts a result to T. A null result is the zero value.
func expect[T any](v any, err error) (T, error) {
	var zero T
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected result type %T, expected %T", v, zero)
	}
	return t, nil
}
