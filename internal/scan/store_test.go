package scan

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/HerbHall/taproot/internal/store"
	"github.com/HerbHall/taproot/internal/testutil"
	"github.com/HerbHall/taproot/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	backing, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { backing.Close() })
	require.NoError(t, backing.Migrate(context.Background(), "scan", migrations()))
	return NewStore(backing.DB(), zaptest.NewLogger(t))
}

func seedNetwork(t *testing.T, s *Store) *models.Network {
	t.Helper()
	n := &models.Network{Name: "lab", RootIP: "10.0.0.1", RootUsername: "admin"}
	require.NoError(t, s.CreateNetwork(context.Background(), n))
	return n
}

// No two device rows may share a primary MAC: a re-discovered device
// updates in place.
func TestUpsertDeviceMACUniqueness(t *testing.T) {
	s := newTestStore(t)
	n := seedNetwork(t, s)
	ctx := context.Background()

	d := testutil.NewDevice(testutil.WithNetwork(n.ID))
	require.NoError(t, s.UpsertDevice(ctx, &d))

	d2 := testutil.NewDevice(testutil.WithNetwork(n.ID), testutil.WithIP("10.0.0.99"))
	require.NoError(t, s.UpsertDevice(ctx, &d2))

	devices, err := s.DevicesByNetwork(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, "10.0.0.99", devices[0].IP)
}

// User-managed fields survive a rescan untouched while scanner fields
// update.
func TestUpsertDevicePreservesUserFields(t *testing.T) {
	s := newTestStore(t)
	n := seedNetwork(t, s)
	ctx := context.Background()

	d := testutil.NewDevice(testutil.WithNetwork(n.ID))
	require.NoError(t, s.UpsertDevice(ctx, &d))

	// A user annotates the device between scans.
	_, err := s.db.ExecContext(ctx, `
		UPDATE devices SET comment = 'rack-3', nomad = 1, skip_login = 1,
			user_type = 'server', asset_tag = 'A-042', location_id = 'loc-7'
		WHERE primary_mac = ?`, d.PrimaryMAC)
	require.NoError(t, err)

	// Scan #2 sees the device at a new IP.
	rescan := testutil.NewDevice(testutil.WithNetwork(n.ID),
		testutil.WithIP("10.0.0.77"), testutil.WithHostname("nas"))
	require.NoError(t, s.UpsertDevice(ctx, &rescan))

	got, err := s.GetDevice(ctx, d.PrimaryMAC)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.77", got.IP)
	require.Equal(t, "nas", got.Hostname)
	require.Equal(t, "rack-3", got.Comment)
	require.True(t, got.Nomad)
	require.True(t, got.SkipLogin)
	require.Equal(t, "server", got.UserType)
	require.Equal(t, "A-042", got.AssetTag)
	require.Equal(t, "loc-7", got.LocationID)
}

func TestUpsertDeviceKeepsFirstSeen(t *testing.T) {
	s := newTestStore(t)
	n := seedNetwork(t, s)
	ctx := context.Background()

	d := testutil.NewDevice(testutil.WithNetwork(n.ID), testutil.WithMAC("AA:00:00:00:00:01"))
	require.NoError(t, s.UpsertDevice(ctx, &d))
	first, err := s.GetDevice(ctx, d.PrimaryMAC)
	require.NoError(t, err)

	again := testutil.NewDevice(testutil.WithNetwork(n.ID), testutil.WithMAC("AA:00:00:00:00:01"))
	require.NoError(t, s.UpsertDevice(ctx, &again))
	second, err := s.GetDevice(ctx, d.PrimaryMAC)
	require.NoError(t, err)

	require.Equal(t, first.FirstSeen, second.FirstSeen)
	require.False(t, second.LastSeen.Before(first.LastSeen))
}

func TestReplaceInterfaces(t *testing.T) {
	s := newTestStore(t)
	n := seedNetwork(t, s)
	ctx := context.Background()

	d := testutil.NewDevice(testutil.WithNetwork(n.ID), testutil.WithMAC("AA:00:00:00:00:01"),
		testutil.WithDeviceType(models.DeviceTypeSwitch))
	require.NoError(t, s.UpsertDevice(ctx, &d))

	require.NoError(t, s.ReplaceInterfaces(ctx, d.PrimaryMAC, []models.Interface{
		{Name: "ether1", VLAN: "100"},
		{Name: "ether2", VLAN: "1+T:200"},
	}))
	require.NoError(t, s.ReplaceInterfaces(ctx, d.PrimaryMAC, []models.Interface{
		{Name: "ether1", VLAN: "100"},
	}))

	ifaces, err := s.InterfacesByNetwork(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, ifaces, 1, "interfaces are recreated wholesale per scan")
	require.Equal(t, "ether1", ifaces[0].Name)
	require.NotEmpty(t, ifaces[0].ID)
}

func TestClearScanData(t *testing.T) {
	s := newTestStore(t)
	n := seedNetwork(t, s)
	ctx := context.Background()

	d := testutil.NewDevice(testutil.WithNetwork(n.ID), testutil.WithMAC("AA:00:00:00:00:01"),
		testutil.WithDeviceType(models.DeviceTypeRouter))
	require.NoError(t, s.UpsertDevice(ctx, &d))
	require.NoError(t, s.ReplaceInterfaces(ctx, d.PrimaryMAC, []models.Interface{{Name: "ether1"}}))
	require.NoError(t, s.InsertLeases(ctx, n.ID, []models.DhcpLease{
		{MAC: "AA:00:00:00:00:02", IP: "10.0.0.5", Hostname: "tv"},
	}))

	require.NoError(t, s.ClearScanData(ctx, n.ID))

	ifaces, err := s.InterfacesByNetwork(ctx, n.ID)
	require.NoError(t, err)
	require.Empty(t, ifaces)
	leases, err := s.LeasesByNetwork(ctx, n.ID)
	require.NoError(t, err)
	require.Empty(t, leases)

	// Devices outlive the clear.
	devices, err := s.DevicesByNetwork(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
}

func TestCredentialOrdering(t *testing.T) {
	s := newTestStore(t)
	n := seedNetwork(t, s)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, username, password, network_id) VALUES
		('global-1', 'admin', 'x', ''),
		('net-1', 'scoped', 'y', ?),
		('global-2', 'root', 'z', '')`, n.ID)
	require.NoError(t, err)

	creds, err := s.LoadCredentials(ctx, n.ID)
	require.NoError(t, err)
	require.Len(t, creds, 3)
	require.Equal(t, "net-1", creds[0].ID, "network-scoped credentials come first")
	require.Equal(t, "global-1", creds[1].ID)
	require.Equal(t, "global-2", creds[2].ID)
}

func TestMatchedCredentialCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, username, password, network_id)
		VALUES ('c1', 'a', 'b', ''), ('c2', 'c', 'd', '')`)
	require.NoError(t, err)

	require.NoError(t, s.RecordMatch(ctx, "AA:00:00:00:00:01", "c1"))
	require.NoError(t, s.RecordMatch(ctx, "AA:00:00:00:00:01", "c2"))

	cache, err := s.LoadMatchedCredentials(ctx)
	require.NoError(t, err)
	require.Equal(t, "c2", cache["AA:00:00:00:00:01"], "latest match wins")
}

func TestScanLifecycle(t *testing.T) {
	s := newTestStore(t)
	n := seedNetwork(t, s)
	ctx := context.Background()

	sc, err := s.CreateScan(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, models.ScanStatusRunning, sc.Status)

	latest, err := s.LatestScan(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, sc.ID, latest.ID)

	require.NoError(t, s.FinishScan(ctx, sc.ID, models.ScanStatusCompleted, 4, ""))
	latest, err = s.LatestScan(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, models.ScanStatusCompleted, latest.Status)
	require.Equal(t, 4, latest.DeviceCount)
	require.NotNil(t, latest.CompletedAt)
}

func TestStaleRunningScanFailed(t *testing.T) {
	s := newTestStore(t)
	n := seedNetwork(t, s)
	ctx := context.Background()

	sc, err := s.CreateScan(ctx, n.ID)
	require.NoError(t, err)

	require.NoError(t, s.FailStaleScan(ctx, sc.ID))
	latest, err := s.LatestScan(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, models.ScanStatusFailed, latest.Status)
	require.Equal(t, "interrupted by restart", latest.Error)
}

func TestLogsAfterCursor(t *testing.T) {
	s := newTestStore(t)
	n := seedNetwork(t, s)
	ctx := context.Background()

	sc, err := s.CreateScan(ctx, n.ID)
	require.NoError(t, err)

	for _, msg := range []string{"one", "two", "three"} {
		s.InsertLog(ctx, models.ScanLog{ScanID: sc.ID, Timestamp: sc.StartedAt, Level: models.LogInfo, Message: msg})
	}

	all, err := s.LogsAfter(ctx, sc.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	tail, err := s.LogsAfter(ctx, sc.ID, all[1].ID)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.Equal(t, "three", tail[0].Message)
}
