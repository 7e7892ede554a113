package scan

import (
	"testing"

	"github.com/HerbHall/taproot/internal/driver"
	"github.com/HerbHall/taproot/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		info driver.DeviceInfo
		want models.DeviceType
	}{
		{
			name: "driver verdict wins",
			info: driver.DeviceInfo{DeviceType: "access-point", Model: "RB750"},
			want: models.DeviceTypeAccessPoint,
		},
		{
			name: "model hint router",
			info: driver.DeviceInfo{Model: "RB750Gr3"},
			want: models.DeviceTypeRouter,
		},
		{
			name: "model hint switch",
			info: driver.DeviceInfo{Model: "CRS326-24G-2S+"},
			want: models.DeviceTypeSwitch,
		},
		{
			name: "hostname hint access point",
			info: driver.DeviceInfo{Hostname: "attic-cap ac"},
			want: models.DeviceTypeAccessPoint,
		},
		{
			name: "dhcp server means router",
			info: driver.DeviceInfo{
				Leases: []models.DhcpLease{{MAC: "AA:00:00:00:00:01", IP: "10.0.0.5"}},
				Interfaces: []models.Interface{
					{Name: "wlan1", Kind: "wlan"},
				},
			},
			want: models.DeviceTypeRouter,
		},
		{
			name: "wireless interface means access point",
			info: driver.DeviceInfo{
				Interfaces: []models.Interface{
					{Name: "wlan1", Kind: "wlan"},
					{Name: "ether1", Kind: "ether"},
				},
			},
			want: models.DeviceTypeAccessPoint,
		},
		{
			name: "many wired ports means switch",
			info: driver.DeviceInfo{
				Interfaces: []models.Interface{
					{Name: "ether1", Kind: "ether"},
					{Name: "ether2", Kind: "ether"},
					{Name: "ether3", Kind: "ether"},
				},
			},
			want: models.DeviceTypeSwitch,
		},
		{
			name: "nothing known means end device",
			info: driver.DeviceInfo{Hostname: "printer-2f"},
			want: models.DeviceTypeEndDevice,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(&tt.info); got != tt.want {
				t.Errorf("classify() = %q, want %q", got, tt.want)
			}
		})
	}
}
