package topology

import (
	"testing"

	"github.com/HerbHall/taproot/pkg/models"
)

func dev(mac, ip, parentIface string, accessible bool) models.Device {
	return models.Device{
		PrimaryMAC:        mac,
		NetworkID:         "net1",
		IP:                ip,
		ParentInterfaceID: parentIface,
		Accessible:        accessible,
		DeviceType:        models.DeviceTypeEndDevice,
	}
}

func iface(id, deviceMAC, name string) models.Interface {
	return models.Interface{ID: id, DeviceMAC: deviceMAC, Name: name}
}

func TestAssembleRootOnly(t *testing.T) {
	root := dev("AA:00:00:00:00:01", "10.0.0.1", "", true)
	root.DeviceType = models.DeviceTypeRouter

	topo := Assemble("net1", []models.Device{root}, nil, nil, nil)
	if len(topo.Roots) != 1 {
		t.Fatalf("roots = %d, want 1", len(topo.Roots))
	}
	if topo.CountDevices() != 1 {
		t.Errorf("device count = %d, want 1", topo.CountDevices())
	}
	if topo.Roots[0].Device.DeviceType != models.DeviceTypeRouter {
		t.Errorf("root type = %s", topo.Roots[0].Device.DeviceType)
	}
}

func TestAssembleParentChild(t *testing.T) {
	devices := []models.Device{
		dev("AA:00:00:00:00:01", "10.0.0.1", "", true),
		dev("AA:00:00:00:00:02", "", "if-ether2", false),
	}
	interfaces := []models.Interface{
		iface("if-ether2", "AA:00:00:00:00:01", "ether2"),
	}

	topo := Assemble("net1", devices, interfaces, nil, nil)
	if len(topo.Roots) != 1 {
		t.Fatalf("roots = %d, want 1", len(topo.Roots))
	}
	children := topo.Roots[0].Children
	if len(children) != 1 {
		t.Fatalf("children = %d, want 1", len(children))
	}
	if children[0].Interface == nil || children[0].Interface.Name != "ether2" {
		t.Errorf("child parent interface = %+v, want ether2", children[0].Interface)
	}
}

func TestAssembleHostnameFallback(t *testing.T) {
	devices := []models.Device{
		dev("AA:00:00:00:00:01", "10.0.0.5", "", false),
		dev("AA:00:00:00:00:02", "10.0.0.6", "", false),
		dev("AA:00:00:00:00:03", "10.0.0.7", "", false),
	}
	leases := []models.DhcpLease{
		{MAC: "AA:00:00:00:00:01", IP: "10.0.0.99", Hostname: "by-mac"},
		{MAC: "FF:FF:FF:FF:FF:FF", IP: "10.0.0.6", Hostname: "by-ip"},
	}
	mdns := map[string]string{"10.0.0.7": "by-mdns"}

	topo := Assemble("net1", devices, nil, leases, mdns)
	got := map[string]string{}
	for _, r := range topo.Roots {
		got[r.Device.PrimaryMAC] = r.Device.Hostname
	}
	if got["AA:00:00:00:00:01"] != "by-mac" {
		t.Errorf("lease-by-MAC hostname = %q", got["AA:00:00:00:00:01"])
	}
	if got["AA:00:00:00:00:02"] != "by-ip" {
		t.Errorf("lease-by-IP hostname = %q", got["AA:00:00:00:00:02"])
	}
	if got["AA:00:00:00:00:03"] != "by-mdns" {
		t.Errorf("mdns hostname = %q", got["AA:00:00:00:00:03"])
	}
}

func TestUnknownSwitchInference(t *testing.T) {
	devices := []models.Device{
		dev("AA:00:00:00:00:01", "10.0.0.1", "", true),
		dev("AA:00:00:00:00:02", "", "if-ether3", false),
		dev("AA:00:00:00:00:03", "", "if-ether3", false),
		dev("AA:00:00:00:00:04", "", "if-ether3", false),
	}
	interfaces := []models.Interface{
		iface("if-ether3", "AA:00:00:00:00:01", "ether3"),
	}

	topo := Assemble("net1", devices, interfaces, nil, nil)
	root := topo.Roots[0]
	if len(root.Children) != 1 {
		t.Fatalf("root children = %d, want 1 synthetic switch", len(root.Children))
	}
	syn := root.Children[0]
	if !syn.Synthetic {
		t.Fatal("expected synthetic node")
	}
	if syn.Device.DeviceType != models.DeviceTypeSwitch {
		t.Errorf("synthetic type = %s", syn.Device.DeviceType)
	}
	if len(syn.Children) != 3 {
		t.Errorf("synthetic children = %d, want 3", len(syn.Children))
	}
	// Only the four real devices count.
	if topo.CountDevices() != 4 {
		t.Errorf("CountDevices = %d, want 4", topo.CountDevices())
	}
}

func TestNoInferenceWhenOneAccessible(t *testing.T) {
	devices := []models.Device{
		dev("AA:00:00:00:00:01", "10.0.0.1", "", true),
		dev("AA:00:00:00:00:02", "10.0.0.2", "if-ether3", true),
		dev("AA:00:00:00:00:03", "", "if-ether3", false),
	}
	interfaces := []models.Interface{
		iface("if-ether3", "AA:00:00:00:00:01", "ether3"),
	}
	topo := Assemble("net1", devices, interfaces, nil, nil)
	for _, c := range topo.Roots[0].Children {
		if c.Synthetic {
			t.Fatal("no synthetic switch expected when a child is accessible")
		}
	}
}

func TestNoInferenceOnWireless(t *testing.T) {
	devices := []models.Device{
		dev("AA:00:00:00:00:01", "10.0.0.1", "", true),
		dev("AA:00:00:00:00:02", "", "if-wlan1", false),
		dev("AA:00:00:00:00:03", "", "if-wlan1", false),
	}
	interfaces := []models.Interface{
		iface("if-wlan1", "AA:00:00:00:00:01", "wlan1"),
	}
	topo := Assemble("net1", devices, interfaces, nil, nil)
	for _, c := range topo.Roots[0].Children {
		if c.Synthetic {
			t.Fatal("wireless children must not trigger switch inference")
		}
	}
}

// Tree acyclicity: a corrupt parent chain forming a cycle must still
// produce a forest where no device is reachable from itself.
func TestAssembleBreaksCycles(t *testing.T) {
	devices := []models.Device{
		dev("AA:00:00:00:00:01", "10.0.0.1", "if-b1", false),
		dev("AA:00:00:00:00:02", "10.0.0.2", "if-a1", false),
	}
	interfaces := []models.Interface{
		iface("if-a1", "AA:00:00:00:00:01", "ether1"),
		iface("if-b1", "AA:00:00:00:00:02", "ether1"),
	}

	topo := Assemble("net1", devices, interfaces, nil, nil)
	if topo.CountDevices() != 2 {
		t.Fatalf("CountDevices = %d, want 2 (cycle broken, nothing lost)", topo.CountDevices())
	}

	var walk func(n *models.TopologyNode, seen map[string]bool)
	walk = func(n *models.TopologyNode, seen map[string]bool) {
		if seen[n.Device.PrimaryMAC] {
			t.Fatalf("device %s reachable from itself", n.Device.PrimaryMAC)
		}
		seen[n.Device.PrimaryMAC] = true
		for _, c := range n.Children {
			walk(c, seen)
		}
	}
	for _, r := range topo.Roots {
		walk(r, map[string]bool{})
	}
}
