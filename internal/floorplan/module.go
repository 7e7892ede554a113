// Package floorplan is the rendering module: it overlays location
// polygons and device badges on uploaded floorplan pages and serves the
// result as PDF.
package floorplan

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/HerbHall/taproot/pkg/plugin"
)

// Module is the floorplan plugin.
type Module struct {
	logger *zap.Logger
	store  *Store
}

// New creates the floorplan module.
func New() *Module {
	return &Module{}
}

// Info returns module metadata.
func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "floorplan",
		Version:     "1.0.0",
		Description: "Floorplan rendering with device badges",
	}
}

// Init applies migrations and opens the store.
func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	if err := deps.Store.Migrate(ctx, "floorplan", migrations()); err != nil {
		return fmt.Errorf("floorplan migrations: %w", err)
	}
	m.store = NewStore(deps.Store.DB(), m.logger.Named("store"))
	return nil
}

// Start is a no-op; rendering happens per request.
func (m *Module) Start(ctx context.Context) error {
	return nil
}

// Stop is a no-op.
func (m *Module) Stop(ctx context.Context) error {
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
