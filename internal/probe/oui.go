package probe

import (
	"strings"

	"github.com/HerbHall/taproot/pkg/models"
)

// ouiVendors maps MAC vendor prefixes (first three octets, uppercase
// colon-separated) to vendor names. The table covers the device
// families Taproot has drivers for plus common LAN gear; unknown
// prefixes resolve to "".
var ouiVendors = map[string]string{
	// MikroTik
	"4C:5E:0C": "MikroTik", "64:D1:54": "MikroTik", "6C:3B:6B": "MikroTik",
	"B8:69:F4": "MikroTik", "C4:AD:34": "MikroTik", "CC:2D:E0": "MikroTik",
	"D4:CA:6D": "MikroTik", "DC:2C:6E": "MikroTik", "E4:8D:8C": "MikroTik",
	"18:FD:74": "MikroTik", "2C:C8:1B": "MikroTik", "48:8F:5A": "MikroTik",
	// Zyxel
	"00:19:CB": "Zyxel", "00:23:F8": "Zyxel", "28:28:5D": "Zyxel",
	"4C:9E:FF": "Zyxel", "58:8B:F3": "Zyxel", "5C:E2:8C": "Zyxel",
	"60:31:97": "Zyxel", "A0:E4:CB": "Zyxel", "B8:EC:A3": "Zyxel",
	"EC:43:F6": "Zyxel", "F0:8E:DB": "Zyxel",
	// 3Com
	"00:04:76": "3Com", "00:0A:04": "3Com", "00:0F:CB": "3Com",
	"00:12:A9": "3Com", "00:18:6E": "3Com", "00:1E:C1": "3Com",
	"00:22:57": "3Com", "00:26:54": "3Com", "02:C0:8C": "3Com",
	// Ruckus
	"00:24:82": "Ruckus", "24:79:2A": "Ruckus", "2C:5D:93": "Ruckus",
	"58:93:96": "Ruckus", "8C:0C:90": "Ruckus", "C4:10:8A": "Ruckus",
	"D4:68:4D": "Ruckus", "EC:8C:A2": "Ruckus",
	// Ubiquiti
	"24:A4:3C": "Ubiquiti", "68:72:51": "Ubiquiti", "74:83:C2": "Ubiquiti",
	"B4:FB:E4": "Ubiquiti", "F0:9F:C2": "Ubiquiti",
	// Common end-device vendors, used for enrichment only.
	"00:11:32": "Synology", "00:08:9B": "QNAP",
	"B8:27:EB": "Raspberry Pi Foundation", "DC:A6:32": "Raspberry Pi Trading",
	"E4:5F:01": "Raspberry Pi Trading",
	"3C:22:FB": "Apple", "A4:83:E7": "Apple", "F0:18:98": "Apple",
	"00:50:56": "VMware", "00:0C:29": "VMware",
	"52:54:00": "QEMU",
	"18:C0:4D": "Giga-Byte", "74:56:3C": "Giga-Byte",
	"00:1B:21": "Intel", "A0:36:9F": "Intel", "E8:6A:64": "Intel",
	"F4:8E:38": "Dell", "D0:94:66": "Dell",
	"30:05:5C": "Brother", "00:80:77": "Brother",
	"00:17:C8": "Kyocera", "00:C0:EE": "Kyocera",
	"AC:CC:8E": "Axis", "00:40:8C": "Axis",
	"BC:32:5F": "Hikvision", "44:19:B6": "Hikvision",
}

// shellOnlyVendors close the SSH connection when an exec channel is
// opened; the connector must commit to shell mode before issuing any
// command against them.
var shellOnlyVendors = map[string]bool{
	"Zyxel": true,
	"3Com":  true,
}

// VendorForMAC returns the vendor name for a MAC's OUI prefix, or "".
func VendorForMAC(mac string) string {
	return ouiVendors[models.OUI(models.NormalizeMAC(mac))]
}

// ShellOnly reports whether the vendor (by name or by MAC OUI) is known
// to reject exec channels.
func ShellOnly(vendorOrMAC string) bool {
	if shellOnlyVendors[vendorOrMAC] {
		return true
	}
	if v := VendorForMAC(vendorOrMAC); v != "" {
		return shellOnlyVendors[v]
	}
	return false
}

// VendorHint extracts a driver-relevant vendor name from free-form text
// (SSH banner, first command output, SNMP sysDescr).
func VendorHint(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "mikrotik") || strings.Contains(lower, "routeros"):
		return "MikroTik"
	case strings.Contains(lower, "zyxel"):
		return "Zyxel"
	case strings.Contains(lower, "3com") || strings.Contains(lower, "comware"):
		return "3Com"
	case strings.Contains(lower, "ruckus") || strings.Contains(lower, "unleashed") || strings.Contains(lower, "smartzone"):
		return "Ruckus"
	default:
		return ""
	}
}
