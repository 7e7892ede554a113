package driver

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/taproot/internal/sshx"
	"github.com/HerbHall/taproot/pkg/models"
)

// pingBatchSize and pingBatchBudget bound the lease re-ping that
// repopulates the router's ARP and bridge-host tables before they are
// read.
const (
	pingBatchSize   = 20
	pingBatchBudget = 2 * time.Second
)

// RouterOS drives MikroTik devices over the CLI in exec mode.
type RouterOS struct {
	logger *zap.Logger
}

// NewRouterOS creates the MikroTik CLI driver.
func NewRouterOS(logger *zap.Logger) *RouterOS {
	return &RouterOS{logger: logger.Named("routeros")}
}

func (d *RouterOS) Name() string    { return "routeros" }
func (d *RouterOS) ShellOnly() bool { return false }

func (d *RouterOS) Matches(h Hint) bool {
	if h.Vendor() == "MikroTik" {
		return true
	}
	return strings.Contains(h.Banner, "ROSSSH")
}

// Probe interrogates the router: leases first, then a lease re-ping to
// warm the ARP and bridge-host tables, then the full fact set.
func (d *RouterOS) Probe(ctx context.Context, sess *sshx.Session, aux Aux) (*DeviceInfo, error) {
	leases, err := d.terse(ctx, sess, "/ip dhcp-server lease print terse")
	if err != nil {
		return nil, fmt.Errorf("routeros lease print: %w", err)
	}
	d.pingLeases(ctx, sess, leases)

	info := &DeviceInfo{Vendor: "MikroTik"}

	if out, err := sess.Exec(ctx, "/system identity print"); err == nil {
		info.Hostname = fieldAfterColon(out, "name")
	}
	if out, err := sess.Exec(ctx, "/system resource print"); err == nil {
		info.Version = fieldAfterColon(out, "version")
		if info.Model == "" {
			info.Model = fieldAfterColon(out, "board-name")
		}
	}
	if out, err := sess.Exec(ctx, "/system routerboard print"); err == nil {
		if m := fieldAfterColon(out, "model"); m != "" {
			info.Model = m
		}
		info.Serial = fieldAfterColon(out, "serial-number")
	}

	addrs := d.terseQuiet(ctx, sess, "/ip address print terse")
	ifaceRows := d.terseQuiet(ctx, sess, "/interface print terse")
	arp := d.terseQuiet(ctx, sess, "/ip arp print terse")
	hosts := d.terseQuiet(ctx, sess, "/interface bridge host print terse")
	routes := d.terseQuiet(ctx, sess, `/ip route print terse where dst-address=0.0.0.0/0`)
	bridgePorts := d.terseQuiet(ctx, sess, "/interface bridge port print terse")
	bridgeVlans := d.terseQuiet(ctx, sess, "/interface bridge vlan print terse")
	ipNeighbors := d.terseQuiet(ctx, sess, "/ip neighbor print terse")

	// MAC -> physical port, from the bridge-host (MAC learning) table.
	// Local entries are the bridge's own MACs.
	macPort := make(map[string]string)
	for _, h := range hosts {
		if hasFlag(h, "L") {
			continue
		}
		mac := models.NormalizeMAC(h["mac-address"])
		port := h["on-interface"]
		if port == "" {
			port = h["interface"]
		}
		if mac != "" && port != "" {
			macPort[mac] = port
		}
	}

	// Bridge names accumulate in insertion order; membership checks
	// scan the slice so the order the router reports is preserved.
	var bridgeNames []string
	addBridge := func(name string) {
		for _, b := range bridgeNames {
			if b == name {
				return
			}
		}
		bridgeNames = append(bridgeNames, name)
	}
	for _, p := range bridgePorts {
		if b := p["bridge"]; b != "" {
			addBridge(b)
		}
	}
	isBridge := func(name string) bool {
		for _, b := range bridgeNames {
			if b == name {
				return true
			}
		}
		return false
	}

	// physicalPort resolves a neighbor's reported interface through the
	// bridge-host table: a neighbor "on bridge1" is really on whatever
	// port learned its MAC.
	physicalPort := func(mac, reported string) string {
		if p, ok := macPort[mac]; ok {
			return p
		}
		if isBridge(reported) {
			return ""
		}
		return reported
	}

	info.Interfaces = d.assembleInterfaces(ifaceRows, addrs, bridgePorts, bridgeVlans)
	info.UpstreamInterface = d.findUpstream(routes, arp, macPort)
	info.Leases = parseLeases(leases)
	info.Neighbors = d.assembleNeighbors(leases, arp, ipNeighbors, hosts, physicalPort)
	return info, nil
}

// pingLeases pings every bound lease so the router re-learns ARP and
// bridge-host entries for sleeping hosts. Pings run in batches; each
// batch shares one time budget and failures are ignored.
func (d *RouterOS) pingLeases(ctx context.Context, sess *sshx.Session, leases []map[string]string) {
	var ips []string
	for _, l := range leases {
		if l["status"] == "bound" && l["address"] != "" {
			ips = append(ips, l["address"])
		}
	}
	for start := 0; start < len(ips); start += pingBatchSize {
		if ctx.Err() != nil {
			return
		}
		end := start + pingBatchSize
		if end > len(ips) {
			end = len(ips)
		}
		batchCtx, cancel := context.WithTimeout(ctx, pingBatchBudget)
		var wg sync.WaitGroup
		for _, ip := range ips[start:end] {
			wg.Add(1)
			go func(ip string) {
				defer wg.Done()
				_, _ = sess.Exec(batchCtx, "/ping "+ip+" count=1")
			}(ip)
		}
		wg.Wait()
		cancel()
	}
	if len(ips) > 0 {
		d.logger.Debug("lease ping sweep done", zap.Int("hosts", len(ips)))
	}
}

func (d *RouterOS) assembleInterfaces(rows, addrs, bridgePorts, bridgeVlans []map[string]string) []models.Interface {
	// Port -> access VLAN (PVID) and owning bridge from bridge port rows.
	pvid := make(map[string]string)
	bridgeOf := make(map[string]string)
	for _, p := range bridgePorts {
		if p["interface"] == "" {
			continue
		}
		if p["pvid"] != "" {
			pvid[p["interface"]] = p["pvid"]
		}
		if p["bridge"] != "" {
			bridgeOf[p["interface"]] = p["bridge"]
		}
	}

	// Port -> tagged VLAN IDs from bridge vlan rows.
	tagged := make(map[string][]string)
	for _, v := range bridgeVlans {
		ids := v["vlan-ids"]
		if ids == "" {
			continue
		}
		for _, port := range strings.Split(v["tagged"], ",") {
			if port = strings.TrimSpace(port); port != "" {
				tagged[port] = append(tagged[port], strings.Split(ids, ",")...)
			}
		}
	}

	// Interface -> first address.
	ipByIface := make(map[string]string)
	for _, a := range addrs {
		iface := a["interface"]
		addr := strings.SplitN(a["address"], "/", 2)[0]
		if iface != "" && addr != "" {
			if _, ok := ipByIface[iface]; !ok {
				ipByIface[iface] = addr
			}
		}
	}

	var out []models.Interface
	for _, r := range rows {
		name := r["name"]
		if name == "" {
			continue
		}
		set := VLANSet{Access: pvid[name], Tagged: tagged[name]}
		out = append(out, models.Interface{
			Name:    name,
			IP:      ipByIface[name],
			MAC:     models.NormalizeMAC(r["mac-address"]),
			Kind:    r["type"],
			Bridge:  bridgeOf[name],
			VLAN:    set.String(),
			LinkUp:  hasFlag(r, "R"),
			Comment: strings.Trim(r["comment"], `"`),
		})
	}
	return out
}

// findUpstream walks default route gateway -> gateway's ARP MAC -> the
// bridge-host port that learned it.
func (d *RouterOS) findUpstream(routes, arp []map[string]string, macPort map[string]string) string {
	for _, r := range routes {
		gw := r["gateway"]
		if gw == "" {
			continue
		}
		// "10.0.0.254%ether1" and "10.0.0.254@main" forms occur.
		gw = strings.FieldsFunc(gw, func(c rune) bool { return c == '%' || c == '@' })[0]
		for _, a := range arp {
			if a["address"] != gw {
				continue
			}
			mac := models.NormalizeMAC(a["mac-address"])
			if port, ok := macPort[mac]; ok {
				return port
			}
			return a["interface"]
		}
		// No ARP entry: fall back to the route's own interface.
		if iface := r["immediate-gw"]; iface != "" {
			if i := strings.Index(iface, "%"); i >= 0 {
				return iface[i+1:]
			}
		}
	}
	return ""
}

func (d *RouterOS) assembleNeighbors(leases, arp, ipNeighbors, hosts []map[string]string, physicalPort func(mac, reported string) string) []Neighbor {
	byMAC := make(map[string]*Neighbor)
	var order []string
	get := func(mac string) *Neighbor {
		if n, ok := byMAC[mac]; ok {
			return n
		}
		n := &Neighbor{MAC: mac}
		byMAC[mac] = n
		order = append(order, mac)
		return n
	}

	for _, l := range leases {
		if l["status"] != "bound" {
			continue
		}
		mac := models.NormalizeMAC(l["mac-address"])
		if mac == "" {
			continue
		}
		n := get(mac)
		n.Source = SourceDHCP
		n.IP = l["address"]
		n.Hostname = strings.Trim(l["host-name"], `"`)
		n.Interface = physicalPort(mac, "")
	}

	for _, a := range arp {
		mac := models.NormalizeMAC(a["mac-address"])
		if mac == "" || a["address"] == "" {
			continue
		}
		n := get(mac)
		if n.Source == "" {
			n.Source = SourceARP
		}
		if n.IP == "" {
			n.IP = a["address"]
		}
		if n.Interface == "" {
			n.Interface = physicalPort(mac, a["interface"])
		}
	}

	// MNDP/CDP/LLDP advertisements carry identity and platform data.
	for _, nb := range ipNeighbors {
		mac := models.NormalizeMAC(nb["mac-address"])
		if mac == "" {
			continue
		}
		n := get(mac)
		if n.Source == "" {
			n.Source = SourceMNDP
		}
		if n.IP == "" {
			n.IP = nb["address"]
		}
		if n.Hostname == "" {
			n.Hostname = strings.Trim(nb["identity"], `"`)
		}
		if n.Model == "" {
			n.Model = nb["board"]
		}
		if n.Version == "" {
			n.Version = nb["version"]
		}
		if n.Interface == "" {
			n.Interface = physicalPort(mac, nb["interface"])
		}
	}

	for _, h := range hosts {
		if hasFlag(h, "L") {
			continue
		}
		mac := models.NormalizeMAC(h["mac-address"])
		if mac == "" {
			continue
		}
		n := get(mac)
		if n.Source == "" {
			n.Source = SourceBridgeHost
		}
		if n.Interface == "" {
			n.Interface = physicalPort(mac, "")
		}
	}

	out := make([]Neighbor, 0, len(order))
	for _, mac := range order {
		out = append(out, *byMAC[mac])
	}
	return out
}

func (d *RouterOS) terse(ctx context.Context, sess *sshx.Session, cmd string) ([]map[string]string, error) {
	out, err := sess.Exec(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return parseTerseOutput(out), nil
}

// terseQuiet tolerates command failure; a missing table (no bridge, no
// DHCP server) yields partial facts, not a dead device.
func (d *RouterOS) terseQuiet(ctx context.Context, sess *sshx.Session, cmd string) []map[string]string {
	rows, err := d.terse(ctx, sess, cmd)
	if err != nil {
		d.logger.Warn("routeros command failed", zap.String("cmd", cmd), zap.Error(err))
		return nil
	}
	return rows
}

func parseLeases(rows []map[string]string) []models.DhcpLease {
	var out []models.DhcpLease
	for _, r := range rows {
		if r["status"] != "bound" {
			continue
		}
		mac := models.NormalizeMAC(r["mac-address"])
		if mac == "" || r["address"] == "" {
			continue
		}
		out = append(out, models.DhcpLease{
			MAC:      mac,
			IP:       r["address"],
			Hostname: strings.Trim(r["host-name"], `"`),
		})
	}
	return out
}

// terseKV matches one key=value pair in terse print output. Quoted
// values keep embedded spaces; bare values run to the next space.
var terseKV = regexp.MustCompile(`([a-z0-9.-]+)=("[^"]*"|\S*)`)

// flagsKey stores the row's flag letters under a key no RouterOS
// property uses.
const flagsKey = "_flags"

// parseTerseOutput splits `print terse` output into one map per row.
// Each row starts with an index and optional single-letter flags,
// followed by key=value pairs.
func parseTerseOutput(out string) []map[string]string {
	var rows []map[string]string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pairs := terseKV.FindAllStringSubmatchIndex(line, -1)
		if len(pairs) == 0 {
			continue
		}
		row := make(map[string]string, len(pairs)+1)

		// Everything before the first pair is "<index> <flags>".
		head := strings.Fields(line[:pairs[0][0]])
		if len(head) > 1 {
			row[flagsKey] = strings.Join(head[1:], "")
		}
		for _, p := range pairs {
			key := line[p[2]:p[3]]
			val := strings.Trim(line[p[4]:p[5]], `"`)
			row[key] = val
		}
		rows = append(rows, row)
	}
	return rows
}

func hasFlag(row map[string]string, flag string) bool {
	return strings.Contains(row[flagsKey], flag)
}

// fieldAfterColon extracts "key: value" from block-style print output.
func fieldAfterColon(out, key string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, key+":")
		if !ok {
			continue
		}
		return strings.Trim(strings.TrimSpace(rest), `"`)
	}
	return ""
}
