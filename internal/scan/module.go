// Package scan is the discovery module: it walks a network from its
// root device, interrogates what it finds through vendor drivers, and
// persists the device inventory and topology.
package scan

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/HerbHall/taproot/internal/driver"
	"github.com/HerbHall/taproot/internal/ws"
	"github.com/HerbHall/taproot/pkg/plugin"
)

// Module is the scan plugin.
type Module struct {
	logger *zap.Logger
	cfg    plugin.Config
	bus    plugin.EventBus
	store  *Store
	hub    *ws.Hub
	orch   *Orchestrator
}

// New creates the scan module.
func New() *Module {
	return &Module{}
}

// Info returns module metadata.
func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "scan",
		Version:     "1.0.0",
		Description: "Recursive network discovery and topology assembly",
	}
}

// Init applies migrations and wires the orchestrator.
func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.cfg = deps.Config
	m.bus = deps.Bus

	if err := deps.Store.Migrate(ctx, "scan", migrations()); err != nil {
		return fmt.Errorf("scan migrations: %w", err)
	}

	m.store = NewStore(deps.Store.DB(), m.logger.Named("store"))
	m.hub = ws.NewHub(m.logger.Named("ws"))
	drivers := driver.NewRegistry(m.logger.Named("driver"))
	m.orch = NewOrchestrator(m.store, drivers, m.bus, m.hub, m.logger.Named("orchestrator"))

	mdnsEnabled := true
	if m.cfg.IsSet("mdns_enabled") {
		mdnsEnabled = m.cfg.GetBool("mdns_enabled")
	}
	community := m.cfg.GetString("snmp_community")
	m.orch.Configure(mdnsEnabled, m.cfg.GetString("interface"), community)

	m.logger.Info("scan module initialized",
		zap.Bool("mdns", mdnsEnabled),
	)
	return nil
}

// Start is a no-op; workers launch on demand per network.
func (m *Module) Start(ctx context.Context) error {
	return nil
}

// Stop aborts all running scans.
func (m *Module) Stop(ctx context.Context) error {
	m.orch.StopAll()
	return nil
}

// Health reports the module state.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	return plugin.HealthStatus{Status: "ok"}
}

// Compile-time interface checks.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)
