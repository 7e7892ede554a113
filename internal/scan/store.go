package scan

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/taproot/pkg/models"
)

// ErrNotFound is returned for missing rows.
var ErrNotFound = errors.New("not found")

// Store is the scan module's persistence gateway. Device writes are
// idempotent on MAC; interfaces and leases are recreated per scan.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore wraps the shared database handle.
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// --- networks ---

// GetNetwork loads one network row.
func (s *Store) GetNetwork(ctx context.Context, id string) (*models.Network, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, root_ip, root_username, root_password,
		       last_scanned_at, device_count, is_online
		FROM networks WHERE id = ?`, id)

	var n models.Network
	var lastScanned sql.NullTime
	err := row.Scan(&n.ID, &n.Name, &n.RootIP, &n.RootUsername, &n.RootPassword,
		&lastScanned, &n.DeviceCount, &n.IsOnline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get network %s: %w", id, err)
	}
	if lastScanned.Valid {
		n.LastScannedAt = &lastScanned.Time
	}
	return &n, nil
}

// ListNetworks returns all networks.
func (s *Store) ListNetworks(ctx context.Context) ([]models.Network, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, root_ip, root_username, root_password,
		       last_scanned_at, device_count, is_online
		FROM networks ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", err)
	}
	defer rows.Close()

	var out []models.Network
	for rows.Next() {
		var n models.Network
		var lastScanned sql.NullTime
		if err := rows.Scan(&n.ID, &n.Name, &n.RootIP, &n.RootUsername, &n.RootPassword,
			&lastScanned, &n.DeviceCount, &n.IsOnline); err != nil {
			return nil, fmt.Errorf("scan network row: %w", err)
		}
		if lastScanned.Valid {
			n.LastScannedAt = &lastScanned.Time
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CreateNetwork inserts a network row, generating an ID when empty.
func (s *Store) CreateNetwork(ctx context.Context, n *models.Network) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO networks (id, name, root_ip, root_username, root_password)
		VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.Name, n.RootIP, n.RootUsername, n.RootPassword)
	if err != nil {
		return fmt.Errorf("create network: %w", err)
	}
	return nil
}

// UpdateNetworkAfterScan stamps the network with the scan outcome.
func (s *Store) UpdateNetworkAfterScan(ctx context.Context, id string, deviceCount int, online bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE networks
		SET last_scanned_at = ?, device_count = ?, is_online = ?
		WHERE id = ?`,
		time.Now().UTC(), deviceCount, online, id)
	if err != nil {
		return fmt.Errorf("update network %s: %w", id, err)
	}
	return nil
}

// --- credentials ---

// LoadCredentials returns the credentials to try for a network:
// network-scoped first, then global, in insertion order within each
// group. The root credential from the network row is prepended by the
// orchestrator, not stored here.
func (s *Store) LoadCredentials(ctx context.Context, networkID string) ([]models.Credential, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password, network_id FROM credentials
		WHERE network_id = ? OR network_id = ''
		ORDER BY CASE WHEN network_id = '' THEN 1 ELSE 0 END, rowid`,
		networkID)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	defer rows.Close()

	var out []models.Credential
	for rows.Next() {
		var c models.Credential
		if err := rows.Scan(&c.ID, &c.Username, &c.Password, &c.NetworkID); err != nil {
			return nil, fmt.Errorf("scan credential row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadMatchedCredentials returns the MAC -> winning credential cache.
func (s *Store) LoadMatchedCredentials(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT mac, credential_id FROM matched_credentials`)
	if err != nil {
		return nil, fmt.Errorf("load matched credentials: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var mac, credID string
		if err := rows.Scan(&mac, &credID); err != nil {
			return nil, fmt.Errorf("scan matched row: %w", err)
		}
		out[mac] = credID
	}
	return out, rows.Err()
}

// RecordMatch remembers which credential opened a device.
func (s *Store) RecordMatch(ctx context.Context, mac, credentialID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matched_credentials (mac, credential_id) VALUES (?, ?)
		ON CONFLICT(mac) DO UPDATE SET credential_id = excluded.credential_id`,
		mac, credentialID)
	if err != nil {
		return fmt.Errorf("record credential match: %w", err)
	}
	return nil
}

// --- devices ---

// UpsertDevice writes a device by MAC. On update the user-managed
// fields (comment, nomad, skip_login, user_type, asset_tag,
// location_id) and first_seen keep their stored values.
func (s *Store) UpsertDevice(ctx context.Context, d *models.Device) error {
	ports, err := json.Marshal(d.OpenPorts)
	if err != nil {
		return fmt.Errorf("encode open ports: %w", err)
	}
	if d.OpenPorts == nil {
		ports = []byte("[]")
	}
	now := time.Now().UTC()
	if d.FirstSeen.IsZero() {
		d.FirstSeen = now
	}
	d.LastSeen = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO devices (
			primary_mac, network_id, hostname, ip, vendor, model, serial,
			firmware, device_type, accessible, open_ports, driver,
			parent_interface_id, upstream_interface, first_seen, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(primary_mac) DO UPDATE SET
			network_id          = excluded.network_id,
			hostname            = excluded.hostname,
			ip                  = excluded.ip,
			vendor              = excluded.vendor,
			model               = excluded.model,
			serial              = excluded.serial,
			firmware            = excluded.firmware,
			device_type         = excluded.device_type,
			accessible          = excluded.accessible,
			open_ports          = excluded.open_ports,
			driver              = excluded.driver,
			parent_interface_id = excluded.parent_interface_id,
			upstream_interface  = excluded.upstream_interface,
			last_seen           = excluded.last_seen`,
		d.PrimaryMAC, d.NetworkID, d.Hostname, d.IP, d.Vendor, d.Model, d.Serial,
		d.Firmware, string(d.DeviceType), d.Accessible, string(ports), d.Driver,
		d.ParentInterfaceID, d.UpstreamInterface, d.FirstSeen, d.LastSeen)
	if err != nil {
		return fmt.Errorf("upsert device %s: %w", d.PrimaryMAC, err)
	}
	return nil
}

// GetDevice loads one device by MAC.
func (s *Store) GetDevice(ctx context.Context, mac string) (*models.Device, error) {
	row := s.db.QueryRowContext(ctx, deviceSelect+` WHERE primary_mac = ?`, mac)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// DevicesByNetwork returns all devices of a network ordered by MAC.
func (s *Store) DevicesByNetwork(ctx context.Context, networkID string) ([]models.Device, error) {
	rows, err := s.db.QueryContext(ctx, deviceSelect+` WHERE network_id = ? ORDER BY primary_mac`, networkID)
	if err != nil {
		return nil, fmt.Errorf("devices by network: %w", err)
	}
	defer rows.Close()

	var out []models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

const deviceSelect = `
	SELECT primary_mac, network_id, hostname, ip, vendor, model, serial,
	       firmware, device_type, accessible, open_ports, driver,
	       parent_interface_id, upstream_interface, first_seen, last_seen,
	       comment, nomad, skip_login, user_type, asset_tag, location_id
	FROM devices`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(r rowScanner) (*models.Device, error) {
	var d models.Device
	var deviceType, ports string
	err := r.Scan(&d.PrimaryMAC, &d.NetworkID, &d.Hostname, &d.IP, &d.Vendor,
		&d.Model, &d.Serial, &d.Firmware, &deviceType, &d.Accessible, &ports,
		&d.Driver, &d.ParentInterfaceID, &d.UpstreamInterface,
		&d.FirstSeen, &d.LastSeen,
		&d.Comment, &d.Nomad, &d.SkipLogin, &d.UserType, &d.AssetTag, &d.LocationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan device row: %w", err)
	}
	d.DeviceType = models.DeviceType(deviceType)
	if err := json.Unmarshal([]byte(ports), &d.OpenPorts); err != nil {
		d.OpenPorts = nil
	}
	return &d, nil
}

// --- interfaces ---

// ReplaceInterfaces deletes a device's interfaces and inserts the new
// set, assigning fresh IDs. Interface IDs are not stable across scans.
func (s *Store) ReplaceInterfaces(ctx context.Context, deviceMAC string, ifaces []models.Interface) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace interfaces: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM interfaces WHERE device_mac = ?`, deviceMAC); err != nil {
		return fmt.Errorf("clear interfaces %s: %w", deviceMAC, err)
	}
	for i := range ifaces {
		if ifaces[i].ID == "" {
			ifaces[i].ID = uuid.NewString()
		}
		ifaces[i].DeviceMAC = deviceMAC
		_, err := tx.ExecContext(ctx, `
			INSERT INTO interfaces (id, device_mac, name, mac, kind, ip,
				bridge, vlan, poe_watts, poe_standard, link_up, comment)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ifaces[i].ID, deviceMAC, ifaces[i].Name, ifaces[i].MAC, ifaces[i].Kind,
			ifaces[i].IP, ifaces[i].Bridge, ifaces[i].VLAN, ifaces[i].PoEWatts,
			ifaces[i].PoEStandard, ifaces[i].LinkUp, ifaces[i].Comment)
		if err != nil {
			return fmt.Errorf("insert interface %s/%s: %w", deviceMAC, ifaces[i].Name, err)
		}
	}
	return tx.Commit()
}

// InterfacesByNetwork returns every interface of every device in a
// network.
func (s *Store) InterfacesByNetwork(ctx context.Context, networkID string) ([]models.Interface, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.device_mac, i.name, i.mac, i.kind, i.ip,
		       i.bridge, i.vlan, i.poe_watts, i.poe_standard, i.link_up, i.comment
		FROM interfaces i
		JOIN devices d ON d.primary_mac = i.device_mac
		WHERE d.network_id = ?
		ORDER BY i.device_mac, i.name`, networkID)
	if err != nil {
		return nil, fmt.Errorf("interfaces by network: %w", err)
	}
	defer rows.Close()

	var out []models.Interface
	for rows.Next() {
		var ifc models.Interface
		if err := rows.Scan(&ifc.ID, &ifc.DeviceMAC, &ifc.Name, &ifc.MAC, &ifc.Kind,
			&ifc.IP, &ifc.Bridge, &ifc.VLAN, &ifc.PoEWatts, &ifc.PoEStandard,
			&ifc.LinkUp, &ifc.Comment); err != nil {
			return nil, fmt.Errorf("scan interface row: %w", err)
		}
		out = append(out, ifc)
	}
	return out, rows.Err()
}

// ClearScanData removes the per-scan rows (interfaces and leases) for a
// network. Devices are kept; only their ports are rewritten.
func (s *Store) ClearScanData(ctx context.Context, networkID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear scan data: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM interfaces WHERE device_mac IN
			(SELECT primary_mac FROM devices WHERE network_id = ?)`, networkID); err != nil {
		return fmt.Errorf("clear interfaces: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM dhcp_leases WHERE network_id = ?`, networkID); err != nil {
		return fmt.Errorf("clear leases: %w", err)
	}
	return tx.Commit()
}

// --- leases ---

// InsertLeases appends lease rows for a network.
func (s *Store) InsertLeases(ctx context.Context, networkID string, leases []models.DhcpLease) error {
	for _, l := range leases {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO dhcp_leases (network_id, mac, ip, hostname)
			VALUES (?, ?, ?, ?)`,
			networkID, l.MAC, l.IP, l.Hostname)
		if err != nil {
			return fmt.Errorf("insert lease %s: %w", l.MAC, err)
		}
	}
	return nil
}

// LeasesByNetwork returns the current lease set of a network.
func (s *Store) LeasesByNetwork(ctx context.Context, networkID string) ([]models.DhcpLease, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT network_id, mac, ip, hostname FROM dhcp_leases WHERE network_id = ?`, networkID)
	if err != nil {
		return nil, fmt.Errorf("leases by network: %w", err)
	}
	defer rows.Close()

	var out []models.DhcpLease
	for rows.Next() {
		var l models.DhcpLease
		if err := rows.Scan(&l.NetworkID, &l.MAC, &l.IP, &l.Hostname); err != nil {
			return nil, fmt.Errorf("scan lease row: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- scans and logs ---

// CreateScan inserts a running scan row.
func (s *Store) CreateScan(ctx context.Context, networkID string) (*models.Scan, error) {
	sc := &models.Scan{
		ID:        uuid.NewString(),
		NetworkID: networkID,
		StartedAt: time.Now().UTC(),
		Status:    models.ScanStatusRunning,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scans (id, network_id, started_at, status)
		VALUES (?, ?, ?, ?)`,
		sc.ID, sc.NetworkID, sc.StartedAt, string(sc.Status))
	if err != nil {
		return nil, fmt.Errorf("create scan: %w", err)
	}
	return sc, nil
}

// FinishScan records the terminal state of a scan.
func (s *Store) FinishScan(ctx context.Context, scanID string, status models.ScanStatus, deviceCount int, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scans SET status = ?, device_count = ?, error = ?, completed_at = ?
		WHERE id = ?`,
		string(status), deviceCount, errMsg, time.Now().UTC(), scanID)
	if err != nil {
		return fmt.Errorf("finish scan %s: %w", scanID, err)
	}
	return nil
}

// LatestScan returns the most recent scan of a network.
func (s *Store) LatestScan(ctx context.Context, networkID string) (*models.Scan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, network_id, started_at, completed_at, status, device_count, error
		FROM scans WHERE network_id = ?
		ORDER BY started_at DESC LIMIT 1`, networkID)

	var sc models.Scan
	var completed sql.NullTime
	var status string
	err := row.Scan(&sc.ID, &sc.NetworkID, &sc.StartedAt, &completed, &status,
		&sc.DeviceCount, &sc.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest scan: %w", err)
	}
	sc.Status = models.ScanStatus(status)
	if completed.Valid {
		sc.CompletedAt = &completed.Time
	}
	return &sc, nil
}

// FailStaleScan force-transitions a "running" scan left behind by a
// restart to "failed".
func (s *Store) FailStaleScan(ctx context.Context, scanID string) error {
	return s.FinishScan(ctx, scanID, models.ScanStatusFailed, 0, "interrupted by restart")
}

// InsertLog writes one log line. Callers treat failures as
// fire-and-forget; a lost log line never stalls a scan.
func (s *Store) InsertLog(ctx context.Context, line models.ScanLog) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_logs (scan_id, ts, level, message)
		VALUES (?, ?, ?, ?)`,
		line.ScanID, line.Timestamp, string(line.Level), line.Message)
	if err != nil {
		s.logger.Warn("scan log insert failed", zap.Error(err))
	}
}

// LogsAfter returns log lines with ID greater than after, oldest first.
func (s *Store) LogsAfter(ctx context.Context, scanID string, after int64) ([]models.ScanLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scan_id, ts, level, message FROM scan_logs
		WHERE scan_id = ? AND id > ?
		ORDER BY id`, scanID, after)
	if err != nil {
		return nil, fmt.Errorf("logs after: %w", err)
	}
	defer rows.Close()

	var out []models.ScanLog
	for rows.Next() {
		var l models.ScanLog
		var level string
		if err := rows.Scan(&l.ID, &l.ScanID, &l.Timestamp, &level, &l.Message); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}
		l.Level = models.LogLevel(level)
		out = append(out, l)
	}
	return out, rows.Err()
}

// CountLogs returns the number of persisted log lines for a scan.
func (s *Store) CountLogs(ctx context.Context, scanID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_logs WHERE scan_id = ?`, scanID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count logs: %w", err)
	}
	return n, nil
}

// CountDevices returns the number of devices in a network.
func (s *Store) CountDevices(ctx context.Context, networkID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM devices WHERE network_id = ?`, networkID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count devices: %w", err)
	}
	return n, nil
}
