// Package node assembles the service registry each dispatchd CLI
// invocation runs against: the dispatcher state machine (restored from
// the prior invocation's persisted snapshot) and the Prometheus
// metrics service, started together for the lifetime of one command
// and stopped before the process exits.
package node

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/routeforge/dispatch-core/dispatcher"
	"github.com/routeforge/dispatch-core/evmclient"
	"github.com/routeforge/dispatch-core/shared"
	"github.com/routeforge/dispatch-core/shared/cmd"
	"github.com/routeforge/dispatch-core/shared/fileutil"
	"github.com/routeforge/dispatch-core/shared/prometheus"
	"github.com/routeforge/dispatch-core/shared/version"
)

// snapshotFileName is where a node's dispatcher state is persisted
// between the short-lived CLI invocations that make up normal
// operation (commit-root, apply-routes, activate, ...).
const snapshotFileName = "dispatcher_state.json"

var log = logrus.WithField("prefix", "node")

// Node owns the service registry for the lifetime of one dispatchd
// invocation: it registers every service at construction, the
// subcommand starts them, does its work, and closes them before the
// process exits.
type Node struct {
	cliCtx   *cli.Context
	services *shared.ServiceRegistry
	lock     sync.Mutex
	dataDir  string
}

// New parses cliCtx into a Config, wires the EVM collaborator and the
// dispatcher, and registers every service the node runs.
func New(cliCtx *cli.Context) (*Node, error) {
	cfg, err := configureFromContext(cliCtx, cliCtx.Int64(cmd.ChainIDFlag.Name))
	if err != nil {
		return nil, err
	}

	registry := shared.NewServiceRegistry()
	n := &Node{
		cliCtx:   cliCtx,
		services: registry,
		dataDir:  cfg.DataDir,
	}

	evm, err := n.buildEVMClient(cliCtx, cfg)
	if err != nil {
		return nil, err
	}

	disp := dispatcher.New(cfg.DispatcherConfig, evm)
	if err := n.restoreSnapshot(disp); err != nil {
		return nil, err
	}
	if err := registry.RegisterService(newDispatcherService(disp)); err != nil {
		return nil, errors.Wrap(err, "could not register dispatcher service")
	}

	if !cfg.DisableMonitoring {
		if err := n.registerPrometheusService(cfg); err != nil {
			return nil, err
		}
	}

	return n, nil
}

func (n *Node) snapshotPath() string {
	return filepath.Join(n.dataDir, snapshotFileName)
}

// restoreSnapshot loads a previously persisted dispatcher state, if
// one exists at the node's data directory. A fresh node (no prior
// snapshot) keeps disp's just-constructed state.
func (n *Node) restoreSnapshot(disp *dispatcher.Dispatcher) error {
	path := n.snapshotPath()
	if !fileutil.FileExists(path) {
		return nil
	}
	data, err := fileutil.ReadFileAsBytes(path)
	if err != nil {
		return errors.Wrapf(err, "could not read dispatcher snapshot %s", path)
	}
	if err := disp.LoadSnapshot(data); err != nil {
		return errors.Wrap(err, "could not load dispatcher snapshot")
	}
	log.WithField("path", path).Info("Restored dispatcher state")
	return nil
}

// PersistSnapshot writes the dispatcher's current state to the node's
// data directory. CLI subcommands call this after every mutating
// operation so the next invocation picks up where this one left off.
func (n *Node) PersistSnapshot() error {
	disp, err := n.Dispatcher()
	if err != nil {
		return err
	}
	data, err := disp.MarshalSnapshot()
	if err != nil {
		return errors.Wrap(err, "could not marshal dispatcher snapshot")
	}
	if err := fileutil.MkdirAll(n.dataDir); err != nil {
		return errors.Wrapf(err, "could not create data directory %s", n.dataDir)
	}
	if err := fileutil.WriteFile(n.snapshotPath(), data); err != nil {
		return errors.Wrap(err, "could not write dispatcher snapshot")
	}
	return nil
}

func (n *Node) buildEVMClient(cliCtx *cli.Context, cfg *Config) (evmclient.Client, error) {
	if cfg.SigningTransactor == nil {
		log.Warn("No keystore configured; using an in-memory mock EVM client, so code-hash checks see no deployed code")
		return evmclient.NewMockClient(), nil
	}
	client, err := evmclient.NewRPCClient(cliCtx.Context, cfg.RPCEndpoint, cfg.SigningTransactor)
	if err != nil {
		return nil, errors.Wrap(err, "could not build EVM client")
	}
	return client, nil
}

func (n *Node) registerPrometheusService(cfg *Config) error {
	service := prometheus.NewService(cfg.MonitoringAddr, n.services)
	return n.services.RegisterService(service)
}

// Dispatcher returns the running dispatcher instance, for CLI
// subcommands that need to invoke it directly after the node has
// wired its dependencies.
func (n *Node) Dispatcher() (*dispatcher.Dispatcher, error) {
	var svc *dispatcherService
	if err := n.services.FetchService(&svc); err != nil {
		return nil, err
	}
	return svc.disp, nil
}

// Start starts every registered service. A subcommand calls this once
// after New, performs its single operation, then calls Close before
// returning; there is no signal-driven shutdown path because no
// dispatchd invocation runs as a foreground daemon.
func (n *Node) Start() {
	n.lock.Lock()
	defer n.lock.Unlock()
	log.WithField("version", version.GetVersion()).Debug("Starting services")
	n.services.StartAll()
}

// Close stops every registered service in reverse start order.
func (n *Node) Close() {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.services.StopAll()
	log.Debug("Stopped services")
}

// dispatcherService adapts *dispatcher.Dispatcher to shared.Service so
// it can be registered (and later fetched back out by CLI subcommands
// that attach to an already-running node) alongside the metrics
// service. The dispatcher itself has no background goroutine; Start
// and Stop are no-ops, and Status reports "frozen" as an unhealthy
// terminal state.
type dispatcherService struct {
	disp *dispatcher.Dispatcher
}

func newDispatcherService(disp *dispatcher.Dispatcher) *dispatcherService {
	return &dispatcherService{disp: disp}
}

func (s *dispatcherService) Start() {}

func (s *dispatcherService) Stop() error { return nil }

func (s *dispatcherService) Status() error {
	if s.disp.Frozen() {
		return fmt.Errorf("dispatcher is frozen")
	}
	return nil
}
