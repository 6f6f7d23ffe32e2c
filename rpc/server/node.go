package server

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/planet/lib/store"
	"github.com/ValentinKolb/planet/rpc/common"
	"github.com/ValentinKolb/planet/rpc/serializer"
	"github.com/ValentinKolb/planet/rpc/servant"
	"github.com/ValentinKolb/planet/rpc/session"
	"github.com/ValentinKolb/planet/rpc/transport/base"
	"github.com/ValentinKolb/planet/rpc/transport/http"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc/server")

// Names of the built-in servants
const (
	ServantKV     = "kv"
	ServantLock   = "lock"
	ServantSystem = "system"
)

// DefaultServants are mounted when the configuration names none
var DefaultServants = []string{ServantKV, ServantLock, ServantSystem}

// Node is a serving peer: a connection manager with a dispatcher on top,
// the servant directory and the built-in servants.
//
// Usage:
//
//	n := server.NewNode(
//		*config,
//		tcp.NewConnector(),
//		serializer.NewBinaryCodec(serializer.NewJSONEncoder()),
//	)
//
//	if err := n.Serve(); err != nil {
//		panic(err)
//	}
type Node struct {
	config    common.NodeConfig
	connector base.IConnector
	codec     serializer.IValueCodec

	directory  *servant.Directory
	dispatcher *session.Dispatcher
	manager    *base.Manager
	adapters   []IServantAdapter

	metricsServer *http.MetricsServer
	started       time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// NewNode creates a node. Nothing is opened before Start or Serve.
func NewNode(config common.NodeConfig, connector base.IConnector, codec serializer.IValueCodec) *Node {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	n := &Node{
		config:    config,
		connector: connector,
		codec:     codec,
		directory: servant.NewDirectory(),
		done:      make(chan struct{}),
	}
	n.dispatcher = session.NewDispatcher(n.directory, codec, config.Session)
	n.manager = base.NewManager(connector, config.Transport, n.dispatcher)
	n.dispatcher.Bind(n.manager)
	return n
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// Start mounts the configured servants, starts listening and serves the
// metrics endpoint. It does not block.
func (n *Node) Start() error {
	n.started = time.Now()

	names := n.config.Servants
	if len(names) == 0 {
		names = DefaultServants
	}
	for _, name := range names {
		adapter, err := n.newAdapter(name)
		if err != nil {
			return err
		}
		if err := n.Mount(adapter); err != nil {
			return err
		}
	}

	if err := n.manager.Listen(); err != nil {
		return err
	}

	if n.config.MetricsEndpoint != "" {
		n.metricsServer = http.NewMetricsServer(n.WriteMetrics, n.config.LogLevel == "debug")
		if err := n.metricsServer.Start(n.config.MetricsEndpoint); err != nil {
			return err
		}
	}

	Logger.Infof("Node %s serving %v", n.manager.LocalID(), n.directory.Paths())
	return nil
}

// Serve starts the node and blocks until SIGINT or SIGTERM, then closes it
func (n *Node) Serve() error {
	Logger.Infof("Created node")
	Logger.Infof("%s", n.config.String())

	if err := n.Start(); err != nil {
		_ = n.Close()
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case s := <-sig:
		Logger.Infof("Received %s, shutting down", s)
	case <-n.done:
	}
	return n.Close()
}

// Mount adds the servant of adapter to the directory
func (n *Node) Mount(adapter IServantAdapter) error {
	if err := n.directory.Add(adapter.Path(), adapter.Servant()); err != nil {
		return err
	}
	n.adapters = append(n.adapters, adapter)
	Logger.Debugf("Mounted %s", adapter.Path())
	return nil
}

// Close stops the node: all connections are closed and the servants released
func (n *Node) Close() error {
	var errs []error
	n.closeOnce.Do(func() {
		close(n.done)
		if n.metricsServer != nil {
			errs = append(errs, n.metricsServer.Close(2*time.Second))
		}
		errs = append(errs, n.manager.Close())
		for _, a := range n.adapters {
			errs = append(errs, a.Close())
		}
		Logger.Infof("Node %s closed", n.manager.LocalID())
	})
	return errors.Join(errs...)
}

// LocalID returns the peer id of the node (the bound address once listening)
func (n *Node) LocalID() string {
	return n.manager.LocalID()
}

// MetricsAddr returns the address of the metrics endpoint ("" if disabled)
func (n *Node) MetricsAddr() string {
	if n.metricsServer == nil || n.metricsServer.Addr() == nil {
		return ""
	}
	return n.metricsServer.Addr().String()
}

// Directory returns the servant directory of the node
func (n *Node) Directory() *servant.Directory {
	return n.directory
}

// Dispatcher returns the session dispatcher of the node
func (n *Node) Dispatcher() *session.Dispatcher {
	return n.dispatcher
}

// Manager returns the connection manager of the node
func (n *Node) Manager() *base.Manager {
	return n.manager
}

// WriteMetrics writes all metrics of the node in prometheus text format
func (n *Node) WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, true)
	n.manager.Metrics().WritePrometheus(w)
	n.dispatcher.Metrics().WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (n *Node) newAdapter(name string) (IServantAdapter, error) {
	switch name {
	case ServantKV:
		return NewIStoreServerAdapter(store.NewMemStore(0)), nil
	case ServantLock:
		return NewLockManagerServerAdapter(store.NewMemStore(0)), nil
	case ServantSystem:
		return NewSystemServerAdapter(n), nil
	default:
		return nil, fmt.Errorf("unknown servant %q", name)
	}
}
