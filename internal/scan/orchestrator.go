package scan

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/taproot/internal/driver"
	"github.com/HerbHall/taproot/internal/probe"
	"github.com/HerbHall/taproot/internal/sshx"
	"github.com/HerbHall/taproot/internal/topology"
	"github.com/HerbHall/taproot/internal/ws"
	"github.com/HerbHall/taproot/pkg/models"
	"github.com/HerbHall/taproot/pkg/plugin"
)

// maxScanDepth caps recursion so a pathological neighbor graph cannot
// walk forever.
const maxScanDepth = 16

// rootCredentialID marks the network's own root login in the
// credential rotation; it is never written to the match cache.
const rootCredentialID = "root"

// Orchestrator owns the per-network scan workers.
type Orchestrator struct {
	store   *Store
	drivers *driver.Registry
	bus     plugin.EventBus
	hub     *ws.Hub
	logger  *zap.Logger

	mdnsEnabled   bool
	mdnsIface     string
	snmpCommunity string

	mu   sync.Mutex
	runs map[string]*run
}

// NewOrchestrator wires the scan worker factory.
func NewOrchestrator(store *Store, drivers *driver.Registry, bus plugin.EventBus, hub *ws.Hub, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:   store,
		drivers: drivers,
		bus:     bus,
		hub:     hub,
		logger:  logger,
		runs:    make(map[string]*run),
	}
}

// Configure sets the environment-derived options.
func (o *Orchestrator) Configure(mdnsEnabled bool, mdnsIface, snmpCommunity string) {
	o.mdnsEnabled = mdnsEnabled
	o.mdnsIface = mdnsIface
	o.snmpCommunity = snmpCommunity
}

// ErrScanRunning is returned when a scan is already active for the
// network.
var ErrScanRunning = fmt.Errorf("scan already running")

// Start launches a scan worker for the network. One worker per network;
// a second start is rejected.
func (o *Orchestrator) Start(ctx context.Context, networkID string) (*models.Scan, error) {
	network, err := o.store.GetNetwork(ctx, networkID)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if _, active := o.runs[networkID]; active {
		o.mu.Unlock()
		return nil, ErrScanRunning
	}

	sc, err := o.store.CreateScan(ctx, networkID)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		o:       o,
		network: network,
		scan:    sc,
		logs:    newLogBuffer(),
		cancel:  cancel,
		visited: make(map[string]bool),
		jump:    sshx.NewJumpHost(o.logger.Named("jumphost")),
	}
	o.runs[networkID] = r
	o.mu.Unlock()

	scansActive.Inc()
	o.bus.PublishAsync(ctx, plugin.Event{
		Topic: TopicScanStarted, Source: "scan",
		Timestamp: time.Now(), Payload: sc,
	})
	o.hub.Broadcast(networkID, ws.Message{Type: ws.TypeStatus, Data: sc})

	go r.execute(runCtx)
	return sc, nil
}

// Abort requests cooperative cancellation of the network's scan.
func (o *Orchestrator) Abort(networkID string) bool {
	o.mu.Lock()
	r := o.runs[networkID]
	o.mu.Unlock()
	if r == nil {
		return false
	}
	r.aborted.Store(true)
	r.cancel()
	return true
}

// Active returns the running scan worker for a network, if any.
func (o *Orchestrator) Active(networkID string) *run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runs[networkID]
}

// StopAll aborts every running scan; used at shutdown.
func (o *Orchestrator) StopAll() {
	o.mu.Lock()
	ids := make([]string, 0, len(o.runs))
	for id := range o.runs {
		ids = append(ids, id)
	}
	o.mu.Unlock()
	for _, id := range ids {
		o.Abort(id)
	}
}

func (o *Orchestrator) finish(r *run) {
	o.mu.Lock()
	delete(o.runs, r.network.ID)
	o.mu.Unlock()
	scansActive.Dec()
}

// run is the state of one scan worker.
type run struct {
	o       *Orchestrator
	network *models.Network
	scan    *models.Scan
	logs    *logBuffer
	cancel  context.CancelFunc
	aborted atomic.Bool

	visited map[string]bool
	creds   []models.Credential
	matched map[string]string

	jump      *sshx.JumpHost
	mdnsHints map[string]string
	leaseByIP map[string]models.DhcpLease

	discMu     sync.Mutex
	discovered []models.Device

	topoLimit *rate.Limiter
}

// execute is the scan worker body: setup, depth-first recursion from
// the root device, teardown.
func (r *run) execute(ctx context.Context) {
	started := time.Now()
	status := models.ScanStatusCompleted
	errMsg := ""

	defer func() {
		if rec := recover(); rec != nil {
			status = models.ScanStatusFailed
			errMsg = fmt.Sprintf("panic: %v", rec)
			r.o.logger.Error("scan worker panicked",
				zap.String("network", r.network.ID), zap.Any("panic", rec))
		}
		r.jump.Close()
		r.terminate(status, errMsg, started)
	}()

	r.log(models.LogInfo, "Scan started for %s (root %s)", r.network.Name, r.network.RootIP)
	r.topoLimit = rate.NewLimiter(rate.Every(time.Second), 1)

	if err := r.setup(ctx); err != nil {
		status = models.ScanStatusFailed
		errMsg = err.Error()
		r.log(models.LogError, "Scan setup failed: %v", err)
		return
	}

	r.scanDevice(ctx, scanTarget{ip: r.network.RootIP, isRoot: true}, 0)

	if r.aborted.Load() {
		status = models.ScanStatusFailed
		errMsg = "cancelled"
		r.log(models.LogWarn, "Scan cancelled")
	}
}

// setup loads credentials, launches the mDNS sweep, and clears the
// network's per-scan rows.
func (r *run) setup(ctx context.Context) error {
	creds, err := r.o.store.LoadCredentials(ctx, r.network.ID)
	if err != nil {
		return err
	}
	// The network's root login goes first in the rotation.
	if r.network.RootUsername != "" {
		creds = append([]models.Credential{{
			ID:       rootCredentialID,
			Username: r.network.RootUsername,
			Password: r.network.RootPassword,
		}}, creds...)
	}
	if len(creds) == 0 {
		return fmt.Errorf("no credentials configured for network %s", r.network.ID)
	}
	r.creds = creds

	r.matched, err = r.o.store.LoadMatchedCredentials(ctx)
	if err != nil {
		return err
	}

	mdnsDone := make(chan map[string]string, 1)
	if r.o.mdnsEnabled {
		sweeper := probe.NewMDNSSweeper(0, r.o.mdnsIface, r.o.logger.Named("mdns"))
		go func() { mdnsDone <- sweeper.Sweep(ctx) }()
	} else {
		mdnsDone <- nil
	}

	if err := r.o.store.ClearScanData(ctx, r.network.ID); err != nil {
		return err
	}
	r.leaseByIP = make(map[string]models.DhcpLease)

	r.mdnsHints = <-mdnsDone
	if len(r.mdnsHints) > 0 {
		r.log(models.LogInfo, "mDNS sweep found %d hosts", len(r.mdnsHints))
	}
	return nil
}

func (r *run) terminate(status models.ScanStatus, errMsg string, started time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, _ := r.o.store.CountDevices(ctx, r.network.ID)
	if err := r.o.store.FinishScan(ctx, r.scan.ID, status, count, errMsg); err != nil {
		r.o.logger.Error("finish scan failed", zap.Error(err))
	}
	online := status == models.ScanStatusCompleted
	if err := r.o.store.UpdateNetworkAfterScan(ctx, r.network.ID, count, online); err != nil {
		r.o.logger.Error("update network failed", zap.Error(err))
	}

	r.scan.Status = status
	r.scan.DeviceCount = count
	r.scan.Error = errMsg
	now := time.Now().UTC()
	r.scan.CompletedAt = &now

	scansTotal.WithLabelValues(string(status)).Inc()
	scanDuration.Observe(time.Since(started).Seconds())

	if status == models.ScanStatusCompleted {
		r.log(models.LogSuccess, "Scan completed: %d devices", count)
	}
	r.broadcastTopology(ctx, true)

	r.o.bus.PublishAsync(ctx, plugin.Event{
		Topic: TopicScanCompleted, Source: "scan",
		Timestamp: now, Payload: r.scan,
	})
	r.o.hub.Broadcast(r.network.ID, ws.Message{Type: ws.TypeStatus, Data: r.scan})
	r.o.finish(r)
}

// scanTarget describes one device visit.
type scanTarget struct {
	ip string
	// knownMAC is set when a parent's neighbor table told us the MAC.
	knownMAC string
	// parentIfaceID is the interface row on the parent we hang off.
	parentIfaceID string
	// parentPort is the parent's name for that interface.
	parentPort string
	// parentMACs are the parent device's own MACs.
	parentMACs []string
	isRoot     bool
}

// scanDevice probes one device and recurses into its neighbors.
// A single device's failure never aborts the scan.
func (r *run) scanDevice(ctx context.Context, t scanTarget, depth int) {
	if r.aborted.Load() || ctx.Err() != nil || depth > maxScanDepth {
		return
	}
	if t.knownMAC != "" && r.visited[t.knownMAC] {
		return
	}

	prober := probe.NewPortProber(0, r.o.logger.Named("ports"))
	if r.jump.Supported() && !t.isRoot {
		prober.WithDialer(r.jump.Forward)
	}
	ports := prober.Open(ctx, t.ip, probe.ManagementPorts)

	if len(ports) == 0 {
		r.persistEndDevice(ctx, t, nil)
		return
	}

	mac := t.knownMAC
	if mac != "" {
		r.visited[mac] = true
	}

	// Honor the user's skip-login marker before touching SSH.
	if mac != "" {
		if existing, err := r.o.store.GetDevice(ctx, mac); err == nil && existing.SkipLogin {
			r.log(models.LogInfo, "Skipping login for %s (skip_login set)", mac)
			r.persistEndDevice(ctx, t, ports)
			return
		}
	}

	sess, winner, banner := r.connect(ctx, t, ports)
	if sess == nil {
		// No session: try the MikroTik API if its port is open and the
		// vendor hints MikroTik, else record as inaccessible.
		if hasPort(ports, driver.APIPort) && probe.VendorForMAC(mac) == "MikroTik" {
			if r.probeViaAPI(ctx, t, ports, depth) {
				return
			}
		}
		r.log(models.LogWarn, "No credentials worked for %s", t.ip)
		r.persistEndDevice(ctx, t, ports)
		return
	}
	defer sess.Close()

	r.interrogate(ctx, sess, t, ports, winner, banner, depth)
}

// connect picks the path (direct or tunneled) and rotates credentials.
// The cached winning credential for a known MAC goes strictly first.
func (r *run) connect(ctx context.Context, t scanTarget, ports []int) (*sshx.Session, *models.Credential, string) {
	if !hasPort(ports, 22) && !t.isRoot {
		return nil, nil, ""
	}

	var dial sshx.DialFunc
	switch {
	case t.isRoot:
		dial = nil // direct
	case r.jump.Supported():
		dial = r.jump.Forward
	case hasPort(ports, 22):
		dial = nil
	case r.jump.State() == sshx.JumpEstablished:
		dial = r.jump.Forward
	default:
		return nil, nil, ""
	}
	connector := sshx.NewConnector(dial, 0, r.o.logger.Named("ssh"))

	for _, cred := range r.orderedCreds(t.knownMAC) {
		if r.aborted.Load() || ctx.Err() != nil {
			return nil, nil, ""
		}
		sess, err := connector.Connect(ctx, t.ip, 22, cred.Username, cred.Password)
		if err != nil {
			credentialAttempts.WithLabelValues("failed").Inc()
			r.o.logger.Debug("credential rejected",
				zap.String("ip", t.ip), zap.String("user", cred.Username), zap.Error(err))
			continue
		}
		credentialAttempts.WithLabelValues("ok").Inc()
		c := cred
		return sess, &c, sess.Banner
	}
	return nil, nil, ""
}

// orderedCreds returns the rotation with the cached winner for mac
// moved to the front.
func (r *run) orderedCreds(mac string) []models.Credential {
	winner, ok := r.matched[mac]
	if !ok || mac == "" {
		return r.creds
	}
	out := make([]models.Credential, 0, len(r.creds))
	for _, c := range r.creds {
		if c.ID == winner {
			out = append(out, c)
		}
	}
	for _, c := range r.creds {
		if c.ID != winner {
			out = append(out, c)
		}
	}
	return out
}

// interrogate runs vendor detection and the driver against an open
// session, persists the results, and recurses into neighbors.
func (r *run) interrogate(ctx context.Context, sess *sshx.Session, t scanTarget, ports []int, winner *models.Credential, banner string, depth int) {
	hint := driver.Hint{
		OUIVendor: probe.VendorForMAC(t.knownMAC),
		Banner:    banner,
		OpenPorts: ports,
	}

	// Shell-only vendors kill the connection on exec; only probe with
	// a throwaway command when the hint allows it.
	d := r.o.drivers.Detect(hint)
	if d == nil && !probe.ShellOnly(hint.Vendor()) {
		if out, err := sess.Exec(ctx, "show version"); err == nil {
			hint.FirstOutput = out
			d = r.o.drivers.Detect(hint)
		}
	}

	// The root device doubles as the jump host for everything below it.
	if t.isRoot && r.jump.State() == sshx.JumpAbsent {
		r.establishJumpHost(ctx, winner)
	}

	if d == nil {
		r.log(models.LogWarn, "No driver for %s (banner %q)", t.ip, banner)
		r.persistEndDevice(ctx, t, ports)
		return
	}

	aux := driver.Aux{
		SNMP:        probe.NewSNMPClient(r.o.snmpCommunity, r.o.logger.Named("snmp")),
		HTTP:        r.httpClient(),
		WebUser:     winner.Username,
		WebPass:     winner.Password,
		ConnectedIP: t.ip,
		ParentMACs:  t.parentMACs,
		Logger:      r.o.logger,
	}

	info, err := d.Probe(ctx, sess, aux)
	if err != nil {
		r.log(models.LogError, "Driver %s failed on %s: %v", d.Name(), t.ip, err)
		r.persistEndDevice(ctx, t, ports)
		return
	}

	r.persistProbed(ctx, t, ports, d.Name(), winner, info, depth)
}

// persistProbed writes a successfully interrogated device and walks
// its neighbors.
func (r *run) persistProbed(ctx context.Context, t scanTarget, ports []int, driverName string, winner *models.Credential, info *driver.DeviceInfo, depth int) {
	mac := devicePrimaryMAC(t, info)
	if r.visited[mac] && mac != t.knownMAC {
		return
	}
	r.visited[mac] = true

	upstream := r.resolveUpstream(t, info)

	dev := &models.Device{
		PrimaryMAC:        mac,
		NetworkID:         r.network.ID,
		Hostname:          info.Hostname,
		IP:                t.ip,
		Vendor:            info.Vendor,
		Model:             info.Model,
		Serial:            info.Serial,
		Firmware:          info.Version,
		DeviceType:        classify(info),
		Accessible:        true,
		OpenPorts:         ports,
		Driver:            driverName,
		ParentInterfaceID: t.parentIfaceID,
		UpstreamInterface: upstream,
	}
	if dev.Hostname == "" {
		dev.Hostname = r.hostnameHint(mac, t.ip)
	}

	if err := r.o.store.UpsertDevice(ctx, dev); err != nil {
		r.log(models.LogError, "Persist %s failed: %v", mac, err)
		return
	}
	ifaces := make([]models.Interface, len(info.Interfaces))
	copy(ifaces, info.Interfaces)
	if err := r.o.store.ReplaceInterfaces(ctx, mac, ifaces); err != nil {
		r.log(models.LogError, "Persist interfaces for %s failed: %v", mac, err)
	}
	if len(info.Leases) > 0 {
		leases := make([]models.DhcpLease, len(info.Leases))
		copy(leases, info.Leases)
		for i := range leases {
			leases[i].NetworkID = r.network.ID
			r.leaseByIP[leases[i].IP] = leases[i]
		}
		if err := r.o.store.InsertLeases(ctx, r.network.ID, leases); err != nil {
			r.log(models.LogError, "Persist leases failed: %v", err)
		}
	}
	if winner != nil && winner.ID != rootCredentialID {
		if err := r.o.store.RecordMatch(ctx, mac, winner.ID); err == nil {
			r.matched[mac] = winner.ID
		}
	}

	r.announceDevice(ctx, dev)
	r.log(models.LogSuccess, "Probed %s (%s, %s) via %s",
		dev.DisplayName(), mac, dev.DeviceType, driverName)

	r.recurseNeighbors(ctx, t, dev, ifaces, info, upstream, depth)
}

// recurseNeighbors walks the device's neighbor list depth-first.
// Neighbors behind the upstream port are the rest of the network, not
// children, and are filtered out.
func (r *run) recurseNeighbors(ctx context.Context, t scanTarget, dev *models.Device, ifaces []models.Interface, info *driver.DeviceInfo, upstream string, depth int) {
	ifaceIDByName := make(map[string]string, len(ifaces))
	ownMACs := make([]string, 0, len(ifaces)+1)
	ownMACs = append(ownMACs, dev.PrimaryMAC)
	ownSet := map[string]bool{dev.PrimaryMAC: true}
	for _, ifc := range ifaces {
		ifaceIDByName[ifc.Name] = ifc.ID
		if ifc.MAC != "" && !ownSet[ifc.MAC] {
			ownSet[ifc.MAC] = true
			ownMACs = append(ownMACs, ifc.MAC)
		}
	}

	for _, n := range info.Neighbors {
		if r.aborted.Load() || ctx.Err() != nil {
			return
		}
		nmac := models.NormalizeMAC(n.MAC)
		if nmac == "" || ownSet[nmac] || r.visited[nmac] {
			continue
		}
		if upstream != "" && n.Interface == upstream {
			continue
		}

		child := scanTarget{
			ip:            n.IP,
			knownMAC:      nmac,
			parentIfaceID: ifaceIDByName[n.Interface],
			parentPort:    n.Interface,
			parentMACs:    ownMACs,
		}
		if n.IP != "" {
			r.scanDevice(ctx, child, depth+1)
			continue
		}
		if n.Source == driver.SourceBridgeHost {
			r.visited[nmac] = true
			r.persistNeighborStub(ctx, child, n)
		}
	}
}

// persistNeighborStub records a MAC-only bridge-host neighbor as an
// inaccessible end device.
func (r *run) persistNeighborStub(ctx context.Context, t scanTarget, n driver.Neighbor) {
	dev := &models.Device{
		PrimaryMAC:        t.knownMAC,
		NetworkID:         r.network.ID,
		Hostname:          n.Hostname,
		Vendor:            probe.VendorForMAC(t.knownMAC),
		Model:             n.Model,
		DeviceType:        models.DeviceTypeEndDevice,
		Accessible:        false,
		ParentInterfaceID: t.parentIfaceID,
		UpstreamInterface: t.parentPort,
	}
	if dev.Hostname == "" {
		dev.Hostname = r.hostnameHint(t.knownMAC, "")
	}
	if err := r.o.store.UpsertDevice(ctx, dev); err != nil {
		r.log(models.LogError, "Persist %s failed: %v", t.knownMAC, err)
		return
	}
	r.announceDevice(ctx, dev)
}

// persistEndDevice records an unreachable or unloginable device. The
// caller's own MAC may already be in the visited set (scanDevice marks
// it before trying credentials); only synthetic entries, which can be
// reached through several paths, dedupe against it.
func (r *run) persistEndDevice(ctx context.Context, t scanTarget, ports []int) {
	mac := t.knownMAC
	if mac == "" {
		mac = models.SyntheticMAC(t.ip)
		if r.visited[mac] {
			return
		}
	}
	r.visited[mac] = true

	dev := &models.Device{
		PrimaryMAC:        mac,
		NetworkID:         r.network.ID,
		Hostname:          r.hostnameHint(mac, t.ip),
		IP:                t.ip,
		Vendor:            probe.VendorForMAC(mac),
		DeviceType:        models.DeviceTypeEndDevice,
		Accessible:        false,
		OpenPorts:         ports,
		ParentInterfaceID: t.parentIfaceID,
		UpstreamInterface: t.parentPort,
	}
	if err := r.o.store.UpsertDevice(ctx, dev); err != nil {
		r.log(models.LogError, "Persist %s failed: %v", mac, err)
		return
	}
	r.announceDevice(ctx, dev)
	r.log(models.LogInfo, "Recorded %s as end device", dev.DisplayName())
}

// probeViaAPI interrogates a MikroTik over the binary API when SSH is
// closed. Returns true when the device was handled.
func (r *run) probeViaAPI(ctx context.Context, t scanTarget, ports []int, depth int) bool {
	var dial sshx.DialFunc
	if r.jump.Supported() && !t.isRoot {
		dial = r.jump.Forward
	}
	api := driver.NewRouterOSAPI(dial, r.o.logger)

	for _, cred := range r.orderedCreds(t.knownMAC) {
		if r.aborted.Load() || ctx.Err() != nil {
			return false
		}
		info, err := api.Probe(ctx, t.ip, cred.Username, cred.Password)
		if err != nil {
			continue
		}
		c := cred
		r.persistProbed(ctx, t, ports, "routeros-api", &c, info, depth)
		return true
	}
	return false
}

// establishJumpHost opens a second session to the root and probes
// direct-tcpip support.
func (r *run) establishJumpHost(ctx context.Context, winner *models.Credential) {
	connector := sshx.NewConnector(nil, 0, r.o.logger.Named("ssh"))
	sess, err := connector.Connect(ctx, r.network.RootIP, 22, winner.Username, winner.Password)
	if err != nil {
		r.log(models.LogWarn, "Jump host session failed: %v", err)
		return
	}
	r.jump.Establish(ctx, sess, r.network.RootIP, 22)
	if r.jump.Supported() {
		r.log(models.LogInfo, "Jump host ready via %s", r.network.RootIP)
	} else {
		r.log(models.LogInfo, "Root does not forward; downstream devices need direct routes")
	}
}

// resolveUpstream picks the device's upstream interface: what the
// driver derived, else the interface holding the IP we connected to,
// else the parent's name for the link.
func (r *run) resolveUpstream(t scanTarget, info *driver.DeviceInfo) string {
	if info.UpstreamInterface != "" {
		return info.UpstreamInterface
	}
	for _, ifc := range info.Interfaces {
		if ifc.IP != "" && ifc.IP == t.ip {
			return ifc.Name
		}
	}
	return t.parentPort
}

// hostnameHint resolves a name from DHCP leases (MAC then IP) and mDNS.
func (r *run) hostnameHint(mac, ip string) string {
	for _, l := range r.leaseByIP {
		if models.NormalizeMAC(l.MAC) == mac && l.Hostname != "" {
			return l.Hostname
		}
	}
	if ip != "" {
		if l, ok := r.leaseByIP[ip]; ok && l.Hostname != "" {
			return l.Hostname
		}
		if h, ok := r.mdnsHints[ip]; ok {
			return h
		}
	}
	return ""
}

// httpClient returns the client used for device web UIs: tunneled when
// the jump host forwards, direct otherwise. Either way self-signed
// certificates are accepted.
func (r *run) httpClient() *http.Client {
	if r.jump.Supported() {
		return r.jump.HTTPClient(15 * time.Second)
	}
	return probe.InsecureHTTPClient(15 * time.Second)
}

// announceDevice records the discovery for incremental polling and
// pushes events.
func (r *run) announceDevice(ctx context.Context, dev *models.Device) {
	devicesDiscovered.Inc()

	r.discMu.Lock()
	r.discovered = append(r.discovered, *dev)
	r.discMu.Unlock()

	r.o.bus.PublishAsync(ctx, plugin.Event{
		Topic: TopicDeviceDiscovered, Source: "scan",
		Timestamp: time.Now(), Payload: dev,
	})
	r.broadcastTopology(ctx, false)
}

// broadcastTopology pushes a fresh tree snapshot, rate-limited to one
// per second unless forced.
func (r *run) broadcastTopology(ctx context.Context, force bool) {
	if !force && !r.topoLimit.Allow() {
		return
	}
	topo, err := r.o.AssembleTopology(ctx, r.network.ID, r.mdnsHints)
	if err != nil {
		r.o.logger.Warn("topology snapshot failed", zap.Error(err))
		return
	}
	r.o.hub.Broadcast(r.network.ID, ws.Message{Type: ws.TypeTopology, Data: topo})
	r.o.bus.PublishAsync(ctx, plugin.Event{
		Topic: TopicTopologyChanged, Source: "scan",
		Timestamp: time.Now(), Payload: r.network.ID,
	})
}

// DevicesAfter returns devices discovered by this run with sequence
// numbers greater than after.
func (r *run) DevicesAfter(after int) []models.Device {
	r.discMu.Lock()
	defer r.discMu.Unlock()
	if after >= len(r.discovered) {
		return nil
	}
	out := make([]models.Device, len(r.discovered)-after)
	copy(out, r.discovered[after:])
	return out
}

// log writes a formatted line to the scan's ring buffer, the database,
// the event bus, and the WebSocket stream. Persistence failures are
// swallowed; a lost line never stalls the worker.
func (r *run) log(level models.LogLevel, format string, args ...any) {
	line := models.ScanLog{
		ScanID:    r.scan.ID,
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   fmt.Sprintf(format, args...),
	}
	line = r.logs.Append(line)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r.o.store.InsertLog(ctx, line)
	}()

	r.o.bus.PublishAsync(context.Background(), plugin.Event{
		Topic: TopicScanLog, Source: "scan",
		Timestamp: line.Timestamp, Payload: &line,
	})
	r.o.hub.Broadcast(r.network.ID, ws.Message{Type: ws.TypeLog, Data: line})
}

// AssembleTopology builds the current tree for a network.
func (o *Orchestrator) AssembleTopology(ctx context.Context, networkID string, mdns map[string]string) (*models.Topology, error) {
	devices, err := o.store.DevicesByNetwork(ctx, networkID)
	if err != nil {
		return nil, err
	}
	interfaces, err := o.store.InterfacesByNetwork(ctx, networkID)
	if err != nil {
		return nil, err
	}
	leases, err := o.store.LeasesByNetwork(ctx, networkID)
	if err != nil {
		return nil, err
	}
	return topology.Assemble(networkID, devices, interfaces, leases, mdns), nil
}

func devicePrimaryMAC(t scanTarget, info *driver.DeviceInfo) string {
	if t.knownMAC != "" {
		return t.knownMAC
	}
	macs := make([]string, 0, len(info.Interfaces))
	for _, ifc := range info.Interfaces {
		if ifc.MAC != "" && (ifc.Kind == "ether" || ifc.Kind == "") {
			macs = append(macs, ifc.MAC)
		}
	}
	if len(macs) > 0 {
		sort.Strings(macs)
		return macs[0]
	}
	return models.SyntheticMAC(t.ip)
}

func hasPort(ports []int, want int) bool {
	for _, p := range ports {
		if p == want {
			return true
		}
	}
	return false
}
