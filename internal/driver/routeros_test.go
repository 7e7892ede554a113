package driver

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestParseTerseOutput(t *testing.T) {
	out := ` 0 D address=10.0.0.5 mac-address=AA:BB:CC:DD:EE:01 host-name="tv-livingroom" server=dhcp1 status=bound
 1   address=10.0.0.9 mac-address=AA:BB:CC:DD:EE:02 server=dhcp1 status=waiting
`
	rows := parseTerseOutput(out)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	r := rows[0]
	if r["address"] != "10.0.0.5" {
		t.Errorf("address = %q", r["address"])
	}
	if r["host-name"] != "tv-livingroom" {
		t.Errorf("host-name = %q (quotes should be stripped)", r["host-name"])
	}
	if !hasFlag(r, "D") {
		t.Error("dynamic flag not parsed")
	}
	if hasFlag(rows[1], "D") {
		t.Error("row 1 has no flags")
	}
}

func TestFieldAfterColon(t *testing.T) {
	out := `        name: gw-core
`
	if got := fieldAfterColon(out, "name"); got != "gw-core" {
		t.Errorf("fieldAfterColon = %q, want gw-core", got)
	}
	if got := fieldAfterColon(out, "missing"); got != "" {
		t.Errorf("fieldAfterColon(missing) = %q, want empty", got)
	}
}

func TestParseLeases(t *testing.T) {
	rows := parseTerseOutput(` 0 D address=10.0.0.5 mac-address=aa:bb:cc:dd:ee:01 host-name=nas status=bound
 1 D address=10.0.0.6 mac-address=aa:bb:cc:dd:ee:02 status=waiting
`)
	leases := parseLeases(rows)
	if len(leases) != 1 {
		t.Fatalf("got %d leases, want 1 (only bound)", len(leases))
	}
	if leases[0].MAC != "AA:BB:CC:DD:EE:01" {
		t.Errorf("MAC = %q, want normalized uppercase", leases[0].MAC)
	}
	if leases[0].Hostname != "nas" {
		t.Errorf("Hostname = %q", leases[0].Hostname)
	}
}

func TestFindUpstream(t *testing.T) {
	d := NewRouterOS(zaptest.NewLogger(t))

	routes := parseTerseOutput(` 0 As dst-address=0.0.0.0/0 gateway=10.0.0.254 distance=1`)
	arp := parseTerseOutput(` 0 D address=10.0.0.254 mac-address=11:22:33:44:55:66 interface=bridge1`)
	macPort := map[string]string{"11:22:33:44:55:66": "ether1"}

	if got := d.findUpstream(routes, arp, macPort); got != "ether1" {
		t.Errorf("upstream = %q, want ether1 (via bridge-host port)", got)
	}

	// Without a bridge-host entry the ARP interface is the best answer.
	if got := d.findUpstream(routes, arp, nil); got != "bridge1" {
		t.Errorf("upstream = %q, want bridge1", got)
	}
}

func TestAssembleNeighborsMergesSources(t *testing.T) {
	d := NewRouterOS(zaptest.NewLogger(t))

	leases := parseTerseOutput(` 0 D address=10.0.0.5 mac-address=AA:BB:CC:DD:EE:01 host-name=nas status=bound`)
	arp := parseTerseOutput(` 0 D address=10.0.0.5 mac-address=AA:BB:CC:DD:EE:01 interface=bridge1
 1 D address=10.0.0.7 mac-address=AA:BB:CC:DD:EE:03 interface=bridge1`)
	hosts := parseTerseOutput(` 0 D mac-address=AA:BB:CC:DD:EE:01 on-interface=ether2 bridge=bridge1
 1 D mac-address=AA:BB:CC:DD:EE:09 on-interface=ether3 bridge=bridge1
 2 L mac-address=AA:BB:CC:DD:EE:FF on-interface=bridge1 bridge=bridge1`)

	macPort := map[string]string{
		"AA:BB:CC:DD:EE:01": "ether2",
		"AA:BB:CC:DD:EE:09": "ether3",
	}
	physical := func(mac, reported string) string {
		if p, ok := macPort[mac]; ok {
			return p
		}
		if reported == "bridge1" {
			return ""
		}
		return reported
	}

	neighbors := d.assembleNeighbors(leases, arp, nil, hosts, physical)

	byMAC := make(map[string]Neighbor)
	for _, n := range neighbors {
		byMAC[n.MAC] = n
	}
	if len(byMAC) != 3 {
		t.Fatalf("got %d distinct neighbors, want 3", len(byMAC))
	}

	nas := byMAC["AA:BB:CC:DD:EE:01"]
	if nas.Source != SourceDHCP {
		t.Errorf("lease-backed neighbor source = %q, want dhcp", nas.Source)
	}
	if nas.Interface != "ether2" {
		t.Errorf("neighbor interface = %q, want physical port ether2", nas.Interface)
	}
	if nas.Hostname != "nas" {
		t.Errorf("hostname = %q", nas.Hostname)
	}

	arpOnly := byMAC["AA:BB:CC:DD:EE:03"]
	if arpOnly.Source != SourceARP {
		t.Errorf("arp neighbor source = %q", arpOnly.Source)
	}
	if arpOnly.Interface != "" {
		t.Errorf("bridge-reported interface should resolve empty, got %q", arpOnly.Interface)
	}

	silent := byMAC["AA:BB:CC:DD:EE:09"]
	if silent.Source != SourceBridgeHost {
		t.Errorf("mac-only neighbor source = %q, want bridge-host", silent.Source)
	}

	if _, ok := byMAC["AA:BB:CC:DD:EE:FF"]; ok {
		t.Error("local bridge-host entry must not become a neighbor")
	}
}

func TestAssembleInterfaces(t *testing.T) {
	d := NewRouterOS(zaptest.NewLogger(t))

	rows := parseTerseOutput(` 0 R name=ether1 type=ether mac-address=11:22:33:44:55:01
 1 R name=ether2 type=ether mac-address=11:22:33:44:55:02 comment="uplink"
 2 R name=bridge1 type=bridge mac-address=11:22:33:44:55:01`)
	addrs := parseTerseOutput(` 0   address=10.0.0.1/24 network=10.0.0.0 interface=bridge1`)
	ports := parseTerseOutput(` 0   interface=ether1 bridge=bridge1 pvid=100
 1   interface=ether2 bridge=bridge1 pvid=1`)
	vlans := parseTerseOutput(` 0   bridge=bridge1 vlan-ids=200 tagged=ether2 untagged=ether1`)

	ifaces := d.assembleInterfaces(rows, addrs, ports, vlans)
	if len(ifaces) != 3 {
		t.Fatalf("got %d interfaces, want 3", len(ifaces))
	}

	byName := make(map[string]int)
	for i, ifc := range ifaces {
		byName[ifc.Name] = i
	}

	e1 := ifaces[byName["ether1"]]
	if e1.VLAN != "100" {
		t.Errorf("ether1 vlan = %q, want 100", e1.VLAN)
	}
	if !e1.LinkUp {
		t.Error("ether1 should be running")
	}
	if e1.Bridge != "bridge1" {
		t.Errorf("ether1 bridge = %q", e1.Bridge)
	}

	e2 := ifaces[byName["ether2"]]
	if e2.VLAN != "1+T:200" {
		t.Errorf("ether2 vlan = %q, want 1+T:200", e2.VLAN)
	}
	if e2.Comment != "uplink" {
		t.Errorf("ether2 comment = %q", e2.Comment)
	}

	br := ifaces[byName["bridge1"]]
	if br.IP != "10.0.0.1" {
		t.Errorf("bridge1 ip = %q, want 10.0.0.1", br.IP)
	}
}
