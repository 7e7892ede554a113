package scan

import (
	"database/sql"

	"github.com/HerbHall/taproot/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "networks, devices, interfaces",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS networks (
						id            TEXT PRIMARY KEY,
						name          TEXT NOT NULL,
						root_ip       TEXT NOT NULL,
						root_username TEXT NOT NULL DEFAULT '',
						root_password TEXT NOT NULL DEFAULT '',
						last_scanned_at TIMESTAMP,
						device_count  INTEGER NOT NULL DEFAULT 0,
						is_online     INTEGER NOT NULL DEFAULT 0
					)`,
					`CREATE TABLE IF NOT EXISTS devices (
						primary_mac   TEXT PRIMARY KEY,
						network_id    TEXT NOT NULL REFERENCES networks(id),
						hostname      TEXT NOT NULL DEFAULT '',
						ip            TEXT NOT NULL DEFAULT '',
						vendor        TEXT NOT NULL DEFAULT '',
						model         TEXT NOT NULL DEFAULT '',
						serial        TEXT NOT NULL DEFAULT '',
						firmware      TEXT NOT NULL DEFAULT '',
						device_type   TEXT NOT NULL DEFAULT 'end-device',
						accessible    INTEGER NOT NULL DEFAULT 0,
						open_ports    TEXT NOT NULL DEFAULT '[]',
						driver        TEXT NOT NULL DEFAULT '',
						parent_interface_id TEXT NOT NULL DEFAULT '',
						upstream_interface  TEXT NOT NULL DEFAULT '',
						first_seen    TIMESTAMP NOT NULL,
						last_seen     TIMESTAMP NOT NULL,
						comment       TEXT NOT NULL DEFAULT '',
						nomad         INTEGER NOT NULL DEFAULT 0,
						skip_login    INTEGER NOT NULL DEFAULT 0,
						user_type     TEXT NOT NULL DEFAULT '',
						asset_tag     TEXT NOT NULL DEFAULT '',
						location_id   TEXT NOT NULL DEFAULT ''
					)`,
					`CREATE INDEX IF NOT EXISTS idx_devices_network ON devices(network_id)`,
					`CREATE TABLE IF NOT EXISTS interfaces (
						id           TEXT PRIMARY KEY,
						device_mac   TEXT NOT NULL REFERENCES devices(primary_mac) ON DELETE CASCADE,
						name         TEXT NOT NULL,
						mac          TEXT NOT NULL DEFAULT '',
						kind         TEXT NOT NULL DEFAULT '',
						ip           TEXT NOT NULL DEFAULT '',
						bridge       TEXT NOT NULL DEFAULT '',
						vlan         TEXT NOT NULL DEFAULT '',
						poe_watts    REAL NOT NULL DEFAULT 0,
						poe_standard TEXT NOT NULL DEFAULT '',
						link_up      INTEGER NOT NULL DEFAULT 0,
						comment      TEXT NOT NULL DEFAULT ''
					)`,
					`CREATE INDEX IF NOT EXISTS idx_interfaces_device ON interfaces(device_mac)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Version:     2,
			Description: "dhcp leases and credentials",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS dhcp_leases (
						network_id TEXT NOT NULL REFERENCES networks(id),
						mac        TEXT NOT NULL,
						ip         TEXT NOT NULL,
						hostname   TEXT NOT NULL DEFAULT ''
					)`,
					`CREATE INDEX IF NOT EXISTS idx_leases_network ON dhcp_leases(network_id)`,
					`CREATE TABLE IF NOT EXISTS credentials (
						id         TEXT PRIMARY KEY,
						username   TEXT NOT NULL,
						password   TEXT NOT NULL,
						network_id TEXT NOT NULL DEFAULT ''
					)`,
					`CREATE TABLE IF NOT EXISTS matched_credentials (
						mac           TEXT PRIMARY KEY,
						credential_id TEXT NOT NULL REFERENCES credentials(id) ON DELETE CASCADE
					)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Version:     3,
			Description: "scan history and logs",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS scans (
						id           TEXT PRIMARY KEY,
						network_id   TEXT NOT NULL REFERENCES networks(id),
						started_at   TIMESTAMP NOT NULL,
						completed_at TIMESTAMP,
						status       TEXT NOT NULL DEFAULT 'running',
						device_count INTEGER NOT NULL DEFAULT 0,
						error        TEXT NOT NULL DEFAULT ''
					)`,
					`CREATE INDEX IF NOT EXISTS idx_scans_network ON scans(network_id, started_at)`,
					`CREATE TABLE IF NOT EXISTS scan_logs (
						id      INTEGER PRIMARY KEY AUTOINCREMENT,
						scan_id TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
						ts      TIMESTAMP NOT NULL,
						level   TEXT NOT NULL,
						message TEXT NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_scan_logs_scan ON scan_logs(scan_id, id)`,
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
