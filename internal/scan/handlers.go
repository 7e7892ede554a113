package scan

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/HerbHall/taproot/internal/server"
	"github.com/HerbHall/taproot/pkg/models"
	"github.com/HerbHall/taproot/pkg/plugin"
)

// Routes exposes the scan surface, mounted under /api/v1/scan.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: http.MethodGet, Path: "/networks", Handler: m.handleListNetworks},
		{Method: http.MethodPost, Path: "/networks", Handler: m.handleCreateNetwork},
		{Method: http.MethodPost, Path: "/{network}/start", Handler: m.handleStart},
		{Method: http.MethodPost, Path: "/{network}/stop", Handler: m.handleStop},
		{Method: http.MethodGet, Path: "/{network}/status", Handler: m.handleStatus},
		{Method: http.MethodGet, Path: "/{network}/logs", Handler: m.handleLogs},
		{Method: http.MethodGet, Path: "/{network}/devices", Handler: m.handleDevices},
		{Method: http.MethodGet, Path: "/{network}/topology", Handler: m.handleTopology},
		{Method: http.MethodGet, Path: "/{network}/ws", Handler: m.handleWS},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (m *Module) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := m.store.ListNetworks(r.Context())
	if err != nil {
		server.InternalError(w, err.Error(), r.URL.Path)
		return
	}
	if networks == nil {
		networks = []models.Network{}
	}
	writeJSON(w, http.StatusOK, networks)
}

func (m *Module) handleCreateNetwork(w http.ResponseWriter, r *http.Request) {
	// The root password is write-only; models.Network never serializes
	// it back out.
	var req struct {
		Name         string `json:"name"`
		RootIP       string `json:"root_ip"`
		RootUsername string `json:"root_username"`
		RootPassword string `json:"root_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.BadRequest(w, "invalid network body", r.URL.Path)
		return
	}
	if req.Name == "" || req.RootIP == "" {
		server.BadRequest(w, "name and root_ip are required", r.URL.Path)
		return
	}
	n := models.Network{
		Name:         req.Name,
		RootIP:       req.RootIP,
		RootUsername: req.RootUsername,
		RootPassword: req.RootPassword,
	}
	if err := m.store.CreateNetwork(r.Context(), &n); err != nil {
		server.InternalError(w, err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (m *Module) handleStart(w http.ResponseWriter, r *http.Request) {
	networkID := r.PathValue("network")
	sc, err := m.orch.Start(r.Context(), networkID)
	switch {
	case errors.Is(err, ErrNotFound):
		server.NotFound(w, "network not found", r.URL.Path)
	case errors.Is(err, ErrScanRunning):
		server.Conflict(w, "a scan is already running for this network", r.URL.Path)
	case err != nil:
		server.InternalError(w, err.Error(), r.URL.Path)
	default:
		m.logger.Info("scan started",
			zap.String("network", networkID), zap.String("scan", sc.ID))
		writeJSON(w, http.StatusAccepted, sc)
	}
}

func (m *Module) handleStop(w http.ResponseWriter, r *http.Request) {
	networkID := r.PathValue("network")
	if !m.orch.Abort(networkID) {
		server.NotFound(w, "no running scan for this network", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

// handleStatus reports the latest scan. A "running" row whose worker
// no longer exists (server restart) is force-failed here.
func (m *Module) handleStatus(w http.ResponseWriter, r *http.Request) {
	networkID := r.PathValue("network")
	ctx := r.Context()

	sc, err := m.store.LatestScan(ctx, networkID)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "idle", "logCount": 0, "deviceCount": 0,
		})
		return
	}
	if err != nil {
		server.InternalError(w, err.Error(), r.URL.Path)
		return
	}

	active := m.orch.Active(networkID)
	if sc.Status == models.ScanStatusRunning && active == nil {
		if err := m.store.FailStaleScan(ctx, sc.ID); err == nil {
			sc.Status = models.ScanStatusFailed
			sc.Error = "interrupted by restart"
		}
	}

	logCount, _ := m.store.CountLogs(ctx, sc.ID)
	deviceCount, _ := m.store.CountDevices(ctx, networkID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      sc.Status,
		"scanId":      sc.ID,
		"logCount":    logCount,
		"deviceCount": deviceCount,
		"error":       sc.Error,
	})
}

// handleLogs returns the chronological log tail after a cursor. For a
// running scan the in-memory ring covers the most recent lines before
// their rows land.
func (m *Module) handleLogs(w http.ResponseWriter, r *http.Request) {
	networkID := r.PathValue("network")
	after := queryInt64(r, "after")

	if run := m.orch.Active(networkID); run != nil {
		writeJSON(w, http.StatusOK, run.logs.After(after))
		return
	}

	sc, err := m.store.LatestScan(r.Context(), networkID)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusOK, []models.ScanLog{})
		return
	}
	if err != nil {
		server.InternalError(w, err.Error(), r.URL.Path)
		return
	}
	logs, err := m.store.LogsAfter(r.Context(), sc.ID, after)
	if err != nil {
		server.InternalError(w, err.Error(), r.URL.Path)
		return
	}
	if logs == nil {
		logs = []models.ScanLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// handleDevices returns devices incrementally for a running scan, or
// the full inventory otherwise.
func (m *Module) handleDevices(w http.ResponseWriter, r *http.Request) {
	networkID := r.PathValue("network")
	after := int(queryInt64(r, "after"))

	if run := m.orch.Active(networkID); run != nil {
		devices := run.DevicesAfter(after)
		if devices == nil {
			devices = []models.Device{}
		}
		writeJSON(w, http.StatusOK, devices)
		return
	}

	devices, err := m.store.DevicesByNetwork(r.Context(), networkID)
	if err != nil {
		server.InternalError(w, err.Error(), r.URL.Path)
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func (m *Module) handleTopology(w http.ResponseWriter, r *http.Request) {
	networkID := r.PathValue("network")

	var mdns map[string]string
	if run := m.orch.Active(networkID); run != nil {
		mdns = run.mdnsHints
	}
	topo, err := m.orch.AssembleTopology(r.Context(), networkID, mdns)
	if err != nil {
		server.InternalError(w, err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, topo)
}

func (m *Module) handleWS(w http.ResponseWriter, r *http.Request) {
	m.hub.Serve(w, r, r.PathValue("network"))
}

func queryInt64(r *http.Request, key string) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
