package models

import (
	"fmt"
	"strings"
	"time"
)

// DeviceType categorizes a discovered network device.
type DeviceType string

const (
	DeviceTypeRouter      DeviceType = "router"
	DeviceTypeSwitch      DeviceType = "switch"
	DeviceTypeAccessPoint DeviceType = "access-point"
	DeviceTypeEndDevice   DeviceType = "end-device"
)

// Finer user-assignable types layered on top of the scanner's
// classification. The scanner never writes these; users do.
const (
	UserTypeServer  = "server"
	UserTypePrinter = "printer"
	UserTypeCamera  = "camera"
	UserTypePhone   = "phone"
	UserTypeIoT     = "iot"
)

// Device is a discovered network node, identified by its primary MAC.
// Device rows outlive the scan that discovered them; only interfaces
// and transient fields are rewritten on rescan.
type Device struct {
	PrimaryMAC        string     `json:"primary_mac"`
	NetworkID         string     `json:"network_id"`
	Hostname          string     `json:"hostname"`
	IP                string     `json:"ip,omitempty"`
	Vendor            string     `json:"vendor,omitempty"`
	Model             string     `json:"model,omitempty"`
	Serial            string     `json:"serial,omitempty"`
	Firmware          string     `json:"firmware,omitempty"`
	DeviceType        DeviceType `json:"device_type"`
	Accessible        bool       `json:"accessible"`
	OpenPorts         []int      `json:"open_ports"`
	Driver            string     `json:"driver,omitempty"`
	ParentInterfaceID string     `json:"parent_interface_id,omitempty"` // empty at the tree root
	UpstreamInterface string     `json:"upstream_interface,omitempty"`  // interface on this device facing the parent
	FirstSeen         time.Time  `json:"first_seen"`
	LastSeen          time.Time  `json:"last_seen"`

	// User-managed fields. Preserved verbatim across scans.
	Comment    string `json:"comment,omitempty"`
	Nomad      bool   `json:"nomad"`
	SkipLogin  bool   `json:"skip_login"`
	UserType   string `json:"user_type,omitempty"`
	AssetTag   string `json:"asset_tag,omitempty"`
	LocationID string `json:"location_id,omitempty"`
}

// Interface is a port on a device. Interfaces are deleted and recreated
// on every scan; their IDs are not stable across scans.
type Interface struct {
	ID          string `json:"id"`
	DeviceMAC   string `json:"device_mac"`
	Name        string `json:"name"`
	MAC         string `json:"mac,omitempty"`  // the port's own hardware address
	Kind        string `json:"kind,omitempty"` // ether, wlan, bridge, vlan
	IP          string `json:"ip,omitempty"`
	Bridge      string `json:"bridge,omitempty"`
	VLAN        string `json:"vlan,omitempty"` // "1000", "T:1000,1010", or "100+T:200,300"
	PoEWatts    float64 `json:"poe_watts,omitempty"`
	PoEStandard string `json:"poe_standard,omitempty"`
	LinkUp      bool   `json:"link_up"`
	Comment     string `json:"comment,omitempty"`
}

// NormalizeMAC canonicalizes a MAC address to uppercase colon-separated
// form. Accepts colon, dash, and dot groupings. Returns the input
// unchanged if it does not look like a MAC.
func NormalizeMAC(mac string) string {
	s := strings.ToUpper(strings.TrimSpace(mac))
	s = strings.ReplaceAll(s, "-", ":")
	s = strings.ReplaceAll(s, ".", "")
	if !strings.Contains(s, ":") && len(s) == 12 {
		var b strings.Builder
		for i := 0; i < 12; i += 2 {
			if i > 0 {
				b.WriteByte(':')
			}
			b.WriteString(s[i : i+2])
		}
		return b.String()
	}
	return s
}

// SyntheticMAC returns the placeholder identifier used when no MAC is
// learnable for a device, e.g. "UNKNOWN-10-0-0-5" for 10.0.0.5.
func SyntheticMAC(ip string) string {
	return "UNKNOWN-" + strings.ReplaceAll(ip, ".", "-")
}

// IsSyntheticMAC reports whether the identifier is a SyntheticMAC
// placeholder rather than a real hardware address.
func IsSyntheticMAC(mac string) bool {
	return strings.HasPrefix(mac, "UNKNOWN-")
}

// OUI returns the vendor prefix (first three octets) of a normalized
// MAC, or "" for synthetic or malformed identifiers.
func OUI(mac string) string {
	if IsSyntheticMAC(mac) || len(mac) < 8 {
		return ""
	}
	return mac[:8]
}

// DisplayName returns the best human label for a device.
func (d *Device) DisplayName() string {
	if d.Hostname != "" {
		return d.Hostname
	}
	if d.IP != "" {
		return d.IP
	}
	return d.PrimaryMAC
}

// EffectiveType returns the user override when set, else the scanned type.
func (d *Device) EffectiveType() string {
	if d.UserType != "" {
		return d.UserType
	}
	return string(d.DeviceType)
}

func (d *Device) String() string {
	return fmt.Sprintf("%s (%s, %s)", d.DisplayName(), d.PrimaryMAC, d.DeviceType)
}
