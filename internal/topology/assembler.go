// Package topology assembles the nested device tree for a network from
// persisted devices and interfaces. Assembly is a pure function of its
// inputs and safe to cache per network.
package topology

import (
	"sort"

	"github.com/HerbHall/taproot/pkg/models"
)

// Assemble builds the topology forest. Hostname gaps are filled from
// DHCP leases (by MAC, then by IP) and mDNS hints (by IP). Devices
// whose parent interface is unknown become roots. Cycles cannot occur
// with well-formed rows, but link-building still bails out defensively
// when it meets a device twice.
func Assemble(networkID string, devices []models.Device, interfaces []models.Interface, leases []models.DhcpLease, mdns map[string]string) *models.Topology {
	leaseByMAC := make(map[string]models.DhcpLease, len(leases))
	leaseByIP := make(map[string]models.DhcpLease, len(leases))
	for _, l := range leases {
		leaseByMAC[models.NormalizeMAC(l.MAC)] = l
		if l.IP != "" {
			leaseByIP[l.IP] = l
		}
	}

	ifaceByID := make(map[string]*models.Interface, len(interfaces))
	for i := range interfaces {
		ifaceByID[interfaces[i].ID] = &interfaces[i]
	}

	nodes := make(map[string]*models.TopologyNode, len(devices))
	order := make([]string, 0, len(devices))
	for i := range devices {
		d := devices[i]
		fillHostname(&d, leaseByMAC, leaseByIP, mdns)
		nodes[d.PrimaryMAC] = &models.TopologyNode{Device: &d}
		order = append(order, d.PrimaryMAC)
	}

	// Interface ID -> owning device MAC, for parent resolution.
	ifaceOwner := make(map[string]string, len(interfaces))
	for _, ifc := range interfaces {
		ifaceOwner[ifc.ID] = ifc.DeviceMAC
	}

	topo := &models.Topology{NetworkID: networkID}
	linked := make(map[string]bool, len(nodes))
	for _, mac := range order {
		node := nodes[mac]
		if linked[mac] {
			continue
		}

		parentIface := node.Device.ParentInterfaceID
		if parentIface == "" {
			topo.Roots = append(topo.Roots, node)
			linked[mac] = true
			continue
		}
		parentMAC, ok := ifaceOwner[parentIface]
		parent, haveParent := nodes[parentMAC]
		if !ok || !haveParent || parentMAC == mac {
			// Orphaned pointer or self-reference: promote to root.
			topo.Roots = append(topo.Roots, node)
			linked[mac] = true
			continue
		}
		node.Interface = ifaceByID[parentIface]
		parent.Children = append(parent.Children, node)
		linked[mac] = true
	}

	pruneUnreachable(topo, nodes)
	for _, root := range topo.Roots {
		inferUnknownSwitches(root)
		sortChildren(root)
	}
	return topo
}

func fillHostname(d *models.Device, byMAC, byIP map[string]models.DhcpLease, mdns map[string]string) {
	if d.Hostname != "" {
		return
	}
	if l, ok := byMAC[d.PrimaryMAC]; ok && l.Hostname != "" {
		d.Hostname = l.Hostname
		return
	}
	if d.IP != "" {
		if l, ok := byIP[d.IP]; ok && l.Hostname != "" {
			d.Hostname = l.Hostname
			return
		}
		if h, ok := mdns[d.IP]; ok {
			d.Hostname = h
		}
	}
}

// pruneUnreachable detects nodes that ended up in a cycle (reachable
// from no root) and promotes one representative of each cycle to a
// root so no device silently disappears from the tree.
func pruneUnreachable(topo *models.Topology, nodes map[string]*models.TopologyNode) {
	reached := make(map[*models.TopologyNode]bool, len(nodes))
	var walk func(*models.TopologyNode)
	walk = func(n *models.TopologyNode) {
		if reached[n] {
			return
		}
		reached[n] = true
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range topo.Roots {
		walk(r)
	}

	macs := make([]string, 0, len(nodes))
	for mac := range nodes {
		macs = append(macs, mac)
	}
	sort.Strings(macs)
	for _, mac := range macs {
		n := nodes[mac]
		if reached[n] {
			continue
		}
		// Break the cycle: detach this node from whichever parent
		// holds it and promote it.
		for _, other := range nodes {
			for i, c := range other.Children {
				if c == n {
					other.Children = append(other.Children[:i], other.Children[i+1:]...)
					break
				}
			}
		}
		n.Interface = nil
		topo.Roots = append(topo.Roots, n)
		walk(n)
	}
}

// inferUnknownSwitches inserts a synthetic switch node wherever two or
// more inaccessible children hang off the same wired parent interface.
// The synthetic device exists only in the tree, never in the database.
func inferUnknownSwitches(node *models.TopologyNode) {
	for _, c := range node.Children {
		inferUnknownSwitches(c)
	}

	byIface := make(map[string][]*models.TopologyNode)
	var ifaceOrder []string
	for _, c := range node.Children {
		if c.Interface == nil {
			continue
		}
		name := c.Interface.Name
		if _, seen := byIface[name]; !seen {
			ifaceOrder = append(ifaceOrder, name)
		}
		byIface[name] = append(byIface[name], c)
	}

	for _, name := range ifaceOrder {
		group := byIface[name]
		if len(group) < 2 || isWireless(name) {
			continue
		}
		allDark := true
		for _, c := range group {
			if c.Device.Accessible || c.Synthetic {
				allDark = false
				break
			}
		}
		if !allDark {
			continue
		}

		syn := &models.TopologyNode{
			Device: &models.Device{
				PrimaryMAC: "SWITCH-" + node.Device.PrimaryMAC + "-" + name,
				NetworkID:  node.Device.NetworkID,
				Hostname:   "Unknown switch",
				DeviceType: models.DeviceTypeSwitch,
			},
			Interface: group[0].Interface,
			Synthetic: true,
			Children:  group,
		}

		kept := node.Children[:0]
		for _, c := range node.Children {
			if c.Interface == nil || c.Interface.Name != name {
				kept = append(kept, c)
			}
		}
		node.Children = append(kept, syn)
	}
}

func isWireless(ifaceName string) bool {
	return len(ifaceName) >= 4 && ifaceName[:4] == "wlan"
}

// sortChildren orders siblings by IP presence, then hostname, then MAC,
// so tree output is stable across assemblies.
func sortChildren(node *models.TopologyNode) {
	sort.SliceStable(node.Children, func(i, j int) bool {
		a, b := node.Children[i].Device, node.Children[j].Device
		if (a.IP != "") != (b.IP != "") {
			return a.IP != ""
		}
		if a.Hostname != b.Hostname {
			return a.Hostname < b.Hostname
		}
		return a.PrimaryMAC < b.PrimaryMAC
	})
	for _, c := range node.Children {
		sortChildren(c)
	}
}
