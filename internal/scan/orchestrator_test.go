package scan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/HerbHall/taproot/internal/driver"
	"github.com/HerbHall/taproot/internal/event"
	"github.com/HerbHall/taproot/internal/sshx"
	"github.com/HerbHall/taproot/internal/ws"
	"github.com/HerbHall/taproot/pkg/models"
)

// newTestRun wires a scan worker against a real temp store, enough for
// the persistence and recursion paths that never open a session.
func newTestRun(t *testing.T) *run {
	t.Helper()
	s := newTestStore(t)
	n := seedNetwork(t, s)
	sc, err := s.CreateScan(context.Background(), n.ID)
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	o := &Orchestrator{
		store:  s,
		bus:    event.NewBus(logger),
		hub:    ws.NewHub(logger),
		logger: logger,
		runs:   make(map[string]*run),
	}
	return &run{
		o:         o,
		network:   n,
		scan:      sc,
		logs:      newLogBuffer(),
		visited:   make(map[string]bool),
		matched:   make(map[string]string),
		jump:      sshx.NewJumpHost(logger.Named("jumphost")),
		leaseByIP: make(map[string]models.DhcpLease),
		topoLimit: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func TestOrderedCredsWinnerFirst(t *testing.T) {
	r := &run{
		creds: []models.Credential{
			{ID: "root", Username: "admin"},
			{ID: "c1", Username: "ops"},
			{ID: "c2", Username: "svc"},
		},
		matched: map[string]string{"AA:00:00:00:00:01": "c2"},
	}

	got := r.orderedCreds("AA:00:00:00:00:01")
	if len(got) != 3 {
		t.Fatalf("orderedCreds returned %d creds, want 3", len(got))
	}
	if got[0].ID != "c2" {
		t.Errorf("first credential = %q, want cached winner c2", got[0].ID)
	}
	if got[1].ID != "root" || got[2].ID != "c1" {
		t.Errorf("remaining order = %q, %q; want root, c1", got[1].ID, got[2].ID)
	}
}

func TestOrderedCredsNoMatch(t *testing.T) {
	creds := []models.Credential{{ID: "root"}, {ID: "c1"}}
	r := &run{creds: creds, matched: map[string]string{}}

	got := r.orderedCreds("AA:00:00:00:00:99")
	if len(got) != 2 || got[0].ID != "root" || got[1].ID != "c1" {
		t.Errorf("orderedCreds without a cache hit should keep the stored order, got %v", got)
	}

	// An unknown MAC (stub neighbor) never consults the cache.
	got = r.orderedCreds("")
	if len(got) != 2 || got[0].ID != "root" {
		t.Errorf("orderedCreds(\"\") should keep the stored order, got %v", got)
	}
}

func TestResolveUpstream(t *testing.T) {
	r := &run{}
	target := scanTarget{ip: "10.0.0.5", parentPort: "ether3"}

	// The driver's own verdict wins outright.
	info := &driver.DeviceInfo{UpstreamInterface: "sfp1"}
	if got := r.resolveUpstream(target, info); got != "sfp1" {
		t.Errorf("resolveUpstream = %q, want driver verdict sfp1", got)
	}

	// Else the interface carrying the IP we connected through.
	info = &driver.DeviceInfo{Interfaces: []models.Interface{
		{Name: "ether1", IP: "10.0.0.5"},
		{Name: "ether2", IP: "10.0.1.1"},
	}}
	if got := r.resolveUpstream(target, info); got != "ether1" {
		t.Errorf("resolveUpstream = %q, want connect-IP match ether1", got)
	}

	// Else the parent's name for the link.
	if got := r.resolveUpstream(target, &driver.DeviceInfo{}); got != "ether3" {
		t.Errorf("resolveUpstream = %q, want parent port ether3", got)
	}
}

// A device whose MAC is already marked (scanDevice marks the target
// before rotating credentials) must still be recorded when every login
// attempt fails.
func TestAuthExhaustedDeviceRecorded(t *testing.T) {
	r := newTestRun(t)
	ctx := context.Background()

	mac := "AA:00:00:00:00:07"
	r.visited[mac] = true
	r.persistEndDevice(ctx, scanTarget{ip: "10.0.0.7", knownMAC: mac}, []int{22})

	devices, err := r.o.store.DevicesByNetwork(ctx, r.network.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, mac, devices[0].PrimaryMAC)
	require.False(t, devices[0].Accessible)
}

// MAC-less targets reached through several paths collapse to one
// synthetic entry and one announcement.
func TestSyntheticEndDevicePersistedOnce(t *testing.T) {
	r := newTestRun(t)
	ctx := context.Background()

	target := scanTarget{ip: "10.0.0.42"}
	r.persistEndDevice(ctx, target, nil)
	r.persistEndDevice(ctx, target, nil)

	devices, err := r.o.store.DevicesByNetwork(ctx, r.network.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Len(t, r.DevicesAfter(0), 1, "second pass must not re-announce")
}

// Neighbor recursion runs at the depth the caller is actually at, and
// only the depth limit stops it.
func TestNeighborRecursionHonorsDepth(t *testing.T) {
	ctx := context.Background()
	gwInfo := func() *driver.DeviceInfo {
		return &driver.DeviceInfo{
			Hostname: "gw",
			Neighbors: []driver.Neighbor{{
				MAC:       "AA:00:00:00:00:21",
				IP:        "127.0.0.1",
				Interface: "ether2",
				Source:    driver.SourceARP,
			}},
		}
	}
	root := models.Credential{ID: rootCredentialID, Username: "admin"}
	target := scanTarget{ip: "10.0.0.1", knownMAC: "AA:00:00:00:00:20", isRoot: true}

	r := newTestRun(t)
	r.persistProbed(ctx, target, []int{22}, "routeros-api", &root, gwInfo(), 0)
	devices, err := r.o.store.DevicesByNetwork(ctx, r.network.ID)
	require.NoError(t, err)
	require.Len(t, devices, 2, "neighbors of a mid-scan device join the scan")

	capped := newTestRun(t)
	capped.persistProbed(ctx, target, []int{22}, "routeros-api", &root, gwInfo(), maxScanDepth)
	devices, err = capped.o.store.DevicesByNetwork(ctx, capped.network.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1, "recursion stops at the depth limit")
}

func TestAbortStopsActiveRun(t *testing.T) {
	o := &Orchestrator{runs: map[string]*run{}}

	if o.Abort("net-1") {
		t.Error("Abort with no active run must report false")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{network: &models.Network{ID: "net-1"}, cancel: cancel}
	o.runs["net-1"] = r

	if !o.Abort("net-1") {
		t.Fatal("Abort with an active run must report true")
	}
	if !r.aborted.Load() {
		t.Error("Abort must set the cooperative flag")
	}
	if ctx.Err() == nil {
		t.Error("Abort must cancel the run context")
	}
}
