package scan

import (
	"strings"

	"github.com/HerbHall/taproot/internal/driver"
	"github.com/HerbHall/taproot/pkg/models"
)

// classify decides a device's type from what the driver reported.
// Explicit hints in model or hostname win; then interface shape; then
// vendor-specific model prefixes.
func classify(info *driver.DeviceInfo) models.DeviceType {
	if info.DeviceType != "" {
		return models.DeviceType(info.DeviceType)
	}

	text := strings.ToLower(info.Model + " " + info.Hostname)
	switch {
	case containsAny(text, "router", "gateway", "rb750", "rb4011", "ccr", "hex"):
		return models.DeviceTypeRouter
	case containsAny(text, "switch", "crs", "css", "gs19", "gs20", "xgs", "baseline"):
		return models.DeviceTypeSwitch
	case containsAny(text, "access point", " ap ", "cap ac", "wap", "unleashed"):
		return models.DeviceTypeAccessPoint
	}

	var ether, wlan int
	for _, ifc := range info.Interfaces {
		switch {
		case strings.HasPrefix(ifc.Name, "wlan") || ifc.Kind == "wlan":
			wlan++
		case ifc.Kind == "ether" || strings.HasPrefix(ifc.Name, "ether"):
			ether++
		}
	}

	switch {
	case len(info.Leases) > 0:
		// Running a DHCP server is as routerish as it gets.
		return models.DeviceTypeRouter
	case wlan > 0:
		return models.DeviceTypeAccessPoint
	case ether > 2:
		return models.DeviceTypeSwitch
	default:
		return models.DeviceTypeEndDevice
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
