package floorplan

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/HerbHall/taproot/pkg/models"
)

// ErrNotFound is returned for missing rows.
var ErrNotFound = errors.New("not found")

// Store reads the floorplan tables. Device rows are owned by the scan
// module; this store only reads them by location.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore wraps the shared database handle.
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// GetFloorplan loads one floorplan row.
func (s *Store) GetFloorplan(ctx context.Context, id string) (*models.Floorplan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, source, page_w, page_h FROM floorplans WHERE id = ?`, id)

	var fp models.Floorplan
	err := row.Scan(&fp.ID, &fp.Name, &fp.Source, &fp.PageW, &fp.PageH)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get floorplan %s: %w", id, err)
	}
	return &fp, nil
}

// ListFloorplans returns all floorplans.
func (s *Store) ListFloorplans(ctx context.Context) ([]models.Floorplan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, source, page_w, page_h FROM floorplans ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list floorplans: %w", err)
	}
	defer rows.Close()

	var out []models.Floorplan
	for rows.Next() {
		var fp models.Floorplan
		if err := rows.Scan(&fp.ID, &fp.Name, &fp.Source, &fp.PageW, &fp.PageH); err != nil {
			return nil, fmt.Errorf("scan floorplan row: %w", err)
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

// LocationsByFloorplan returns the floorplan's locations keyed by ID.
func (s *Store) LocationsByFloorplan(ctx context.Context, floorplanID string) (map[string]models.Location, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, floorplan_id FROM locations WHERE floorplan_id = ?`, floorplanID)
	if err != nil {
		return nil, fmt.Errorf("locations by floorplan: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.Location)
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.FloorplanID); err != nil {
			return nil, fmt.Errorf("scan location row: %w", err)
		}
		out[l.ID] = l
	}
	return out, rows.Err()
}

// PolygonsByFloorplan returns the floorplan's polygons with decoded
// point lists.
func (s *Store) PolygonsByFloorplan(ctx context.Context, floorplanID string) ([]models.LocationPolygon, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, floorplan_id, location_id, points
		FROM location_polygons WHERE floorplan_id = ?
		ORDER BY id`, floorplanID)
	if err != nil {
		return nil, fmt.Errorf("polygons by floorplan: %w", err)
	}
	defer rows.Close()

	var out []models.LocationPolygon
	for rows.Next() {
		var p models.LocationPolygon
		var points string
		if err := rows.Scan(&p.ID, &p.FloorplanID, &p.LocationID, &points); err != nil {
			return nil, fmt.Errorf("scan polygon row: %w", err)
		}
		if err := json.Unmarshal([]byte(points), &p.Points); err != nil {
			s.logger.Warn("bad polygon points", zap.String("polygon", p.ID), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DevicesByLocation groups the floorplan's devices by location ID.
func (s *Store) DevicesByLocation(ctx context.Context, floorplanID string) (map[string][]models.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.primary_mac, d.hostname, d.ip, d.vendor, d.model, d.serial,
		       d.device_type, d.asset_tag, d.location_id
		FROM devices d
		JOIN locations l ON l.id = d.location_id
		WHERE l.floorplan_id = ?
		ORDER BY d.primary_mac`, floorplanID)
	if err != nil {
		return nil, fmt.Errorf("devices by location: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.Device)
	for rows.Next() {
		var d models.Device
		var deviceType string
		if err := rows.Scan(&d.PrimaryMAC, &d.Hostname, &d.IP, &d.Vendor, &d.Model,
			&d.Serial, &deviceType, &d.AssetTag, &d.LocationID); err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		d.DeviceType = models.DeviceType(deviceType)
		out[d.LocationID] = append(out[d.LocationID], d)
	}
	return out, rows.Err()
}
