package floorplan

import (
	"database/sql"

	"github.com/HerbHall/taproot/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "floorplans, locations, polygons",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS floorplans (
						id     TEXT PRIMARY KEY,
						name   TEXT NOT NULL,
						source TEXT NOT NULL DEFAULT '',
						page_w REAL NOT NULL,
						page_h REAL NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS locations (
						id           TEXT PRIMARY KEY,
						name         TEXT NOT NULL,
						floorplan_id TEXT NOT NULL REFERENCES floorplans(id) ON DELETE CASCADE
					)`,
					`CREATE INDEX IF NOT EXISTS idx_locations_floorplan ON locations(floorplan_id)`,
					`CREATE TABLE IF NOT EXISTS location_polygons (
						id           TEXT PRIMARY KEY,
						floorplan_id TEXT NOT NULL REFERENCES floorplans(id) ON DELETE CASCADE,
						location_id  TEXT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
						points       TEXT NOT NULL DEFAULT '[]'
					)`,
					`CREATE INDEX IF NOT EXISTS idx_polygons_floorplan ON location_polygons(floorplan_id)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
