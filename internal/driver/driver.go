// Package driver contains the per-vendor device drivers. A driver
// interrogates one authenticated session and returns everything it
// learned: identity, interfaces, neighbors, leases, and its own
// upstream port. Drivers never call back into the scanner; the
// orchestrator decides every next hop.
package driver

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/HerbHall/taproot/internal/probe"
	"github.com/HerbHall/taproot/internal/sshx"
	"github.com/HerbHall/taproot/pkg/models"
)

// Neighbor sources, in decreasing order of information content.
const (
	SourceDHCP       = "dhcp"        // bound lease: MAC + IP + hostname
	SourceARP        = "arp"         // ARP entry: MAC + IP
	SourceMNDP       = "mndp"        // MNDP/CDP/LLDP advertisement
	SourceBridgeHost = "bridge-host" // learned MAC only
)

// Neighbor is one adjacent device as seen from the probed device.
type Neighbor struct {
	MAC      string
	IP       string
	Hostname string

	// Interface is the physical port on the probed device the
	// neighbor was seen behind, already resolved through the
	// bridge-host table where applicable.
	Interface string

	Source  string
	Model   string
	Version string
}

// DeviceInfo is everything a driver learned from one device.
type DeviceInfo struct {
	Hostname string
	Vendor   string
	Model    string
	Serial   string
	Version  string

	// DeviceType is set when the vendor implies it (Ruckus APs);
	// empty means the orchestrator classifies from interfaces.
	DeviceType string

	Interfaces []models.Interface
	Neighbors  []Neighbor
	Leases     []models.DhcpLease

	// UpstreamInterface is the port this device reaches its default
	// gateway (or parent) through; neighbors seen on it are not
	// children.
	UpstreamInterface string
}

// Hint carries the evidence available before a driver is committed.
type Hint struct {
	// Vendor from the MAC OUI, known before any connection.
	OUIVendor string
	// Banner is the SSH server version string.
	Banner string
	// FirstOutput is the output of the first probe command, empty
	// until exec has been tried.
	FirstOutput string
	OpenPorts   []int
}

// Vendor resolves the hint to a vendor name: OUI first (cheap, and
// decides shell-only commitment before any exec), banner and first
// output second.
func (h Hint) Vendor() string {
	if h.OUIVendor != "" {
		return h.OUIVendor
	}
	if v := probe.VendorHint(h.Banner); v != "" {
		return v
	}
	return probe.VendorHint(h.FirstOutput)
}

// Aux bundles the side channels a driver may need beyond its session.
type Aux struct {
	SNMP *probe.SNMPClient

	// HTTP reaches the device's management UI, tunneled through the
	// jump host when the scanner has no direct route.
	HTTP     *http.Client
	WebUser  string
	WebPass  string

	// ConnectedIP is the address the session was established to.
	ConnectedIP string

	// ParentMACs are the MACs of the device we arrived from, used by
	// upstream-port heuristics.
	ParentMACs []string

	Logger *zap.Logger
}

// Driver interrogates one vendor family over SSH.
type Driver interface {
	Name() string

	// ShellOnly reports that the device drops the connection on any
	// exec channel; the orchestrator must not probe with exec.
	ShellOnly() bool

	// Matches reports whether the hint points at this driver.
	Matches(h Hint) bool

	Probe(ctx context.Context, sess *sshx.Session, aux Aux) (*DeviceInfo, error)
}

// Registry holds drivers in registration order; the first match wins.
type Registry struct {
	drivers []Driver
}

// NewRegistry returns a registry with the standard driver set.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{}
	r.Register(NewRouterOS(logger))
	r.Register(NewZyxel(logger))
	r.Register(NewThreeCom(logger))
	r.Register(NewRuckus(logger))
	return r
}

// Register appends a driver.
func (r *Registry) Register(d Driver) {
	r.drivers = append(r.drivers, d)
}

// Detect returns the first driver matching the hint, or nil.
func (r *Registry) Detect(h Hint) Driver {
	for _, d := range r.drivers {
		if d.Matches(h) {
			return d
		}
	}
	return nil
}

// ByName returns the named driver, or nil.
func (r *Registry) ByName(name string) Driver {
	for _, d := range r.drivers {
		if d.Name() == name {
			return d
		}
	}
	return nil
}
