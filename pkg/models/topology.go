package models

// TopologyNode is one device in the assembled topology tree. Children
// are grouped under the parent interface they hang off.
type TopologyNode struct {
	Device    *Device         `json:"device"`
	Interface *Interface      `json:"interface,omitempty"` // parent interface this node hangs off
	Synthetic bool            `json:"synthetic,omitempty"` // inferred unknown-switch node, not persisted
	Children  []*TopologyNode `json:"children,omitempty"`
}

// Topology is the full nested tree for one network: a forest rooted at
// devices with no parent interface.
type Topology struct {
	NetworkID string          `json:"network_id"`
	Roots     []*TopologyNode `json:"roots"`
}

// CountDevices returns the number of real (non-synthetic) devices in
// the tree.
func (t *Topology) CountDevices() int {
	var n int
	var walk func(*TopologyNode)
	walk = func(node *TopologyNode) {
		if !node.Synthetic {
			n++
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	for _, r := range t.Roots {
		walk(r)
	}
	return n
}
