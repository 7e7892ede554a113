package floorplan

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/HerbHall/taproot/internal/server"
	"github.com/HerbHall/taproot/pkg/models"
	"github.com/HerbHall/taproot/pkg/plugin"
)

// Routes exposes the floorplan surface, mounted under /api/v1/floorplan.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: http.MethodGet, Path: "/floorplans", Handler: m.handleList},
		{Method: http.MethodGet, Path: "/{id}/locations", Handler: m.handleLocations},
		{Method: http.MethodGet, Path: "/{id}/polygons", Handler: m.handlePolygons},
		{Method: http.MethodGet, Path: "/{id}/render", Handler: m.handleRender},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (m *Module) handleList(w http.ResponseWriter, r *http.Request) {
	plans, err := m.store.ListFloorplans(r.Context())
	if err != nil {
		server.InternalError(w, err.Error(), r.URL.Path)
		return
	}
	if plans == nil {
		plans = []models.Floorplan{}
	}
	writeJSON(w, http.StatusOK, plans)
}

func (m *Module) handleLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := m.store.LocationsByFloorplan(r.Context(), r.PathValue("id"))
	if err != nil {
		server.InternalError(w, err.Error(), r.URL.Path)
		return
	}
	out := make([]models.Location, 0, len(locations))
	for _, l := range locations {
		out = append(out, l)
	}
	writeJSON(w, http.StatusOK, out)
}

func (m *Module) handlePolygons(w http.ResponseWriter, r *http.Request) {
	polygons, err := m.store.PolygonsByFloorplan(r.Context(), r.PathValue("id"))
	if err != nil {
		server.InternalError(w, err.Error(), r.URL.Path)
		return
	}
	if polygons == nil {
		polygons = []models.LocationPolygon{}
	}
	writeJSON(w, http.StatusOK, polygons)
}

// handleRender draws the annotated floorplan and streams it back as
// application/pdf.
func (m *Module) handleRender(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	fp, err := m.store.GetFloorplan(ctx, id)
	if errors.Is(err, ErrNotFound) {
		server.NotFound(w, "floorplan not found", r.URL.Path)
		return
	}
	if err != nil {
		server.InternalError(w, err.Error(), r.URL.Path)
		return
	}

	polygons, err := m.store.PolygonsByFloorplan(ctx, id)
	if err != nil {
		server.InternalError(w, err.Error(), r.URL.Path)
		return
	}
	locations, err := m.store.LocationsByFloorplan(ctx, id)
	if err != nil {
		server.InternalError(w, err.Error(), r.URL.Path)
		return
	}
	devices, err := m.store.DevicesByLocation(ctx, id)
	if err != nil {
		server.InternalError(w, err.Error(), r.URL.Path)
		return
	}

	out, err := RenderPDF(fp, polygons, locations, devices)
	if err != nil {
		server.InternalError(w, err.Error(), r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	_, _ = w.Write(out)
}
