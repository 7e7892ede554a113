package driver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/taproot/internal/sshx"
	"github.com/HerbHall/taproot/pkg/models"
)

var ruckusClientRow = regexp.MustCompile(
	`(?i)([0-9a-f]{2}:[0-9a-f]{2}:[0-9a-f]{2}:[0-9a-f]{2}:[0-9a-f]{2}:[0-9a-f]{2})\s+(\d{1,3}(?:\.\d{1,3}){3})`)

// Ruckus drives Unleashed and SmartZone access points over a shell
// with an "enable" preamble.
type Ruckus struct {
	logger *zap.Logger
}

// NewRuckus creates the Ruckus driver.
func NewRuckus(logger *zap.Logger) *Ruckus {
	return &Ruckus{logger: logger.Named("ruckus")}
}

func (d *Ruckus) Name() string    { return "ruckus" }
func (d *Ruckus) ShellOnly() bool { return false }

func (d *Ruckus) Matches(h Hint) bool {
	return h.Vendor() == "Ruckus"
}

func (d *Ruckus) Probe(ctx context.Context, sess *sshx.Session, aux Aux) (*DeviceInfo, error) {
	results, err := sess.RunShell(ctx, sshx.ProfileRuckus, []string{
		"show sysinfo",
		"show current-active-clients all",
	})
	if err != nil && len(results) == 0 {
		return nil, fmt.Errorf("ruckus shell: %w", err)
	}

	info := &DeviceInfo{
		Vendor:     "Ruckus",
		DeviceType: string(models.DeviceTypeAccessPoint),
	}
	for _, r := range results {
		switch r.Command {
		case "show sysinfo":
			d.parseSysinfo(r.Output, info)
		case "show current-active-clients all":
			info.Neighbors = append(info.Neighbors, parseRuckusClients(r.Output)...)
		}
	}
	return info, nil
}

func (d *Ruckus) parseSysinfo(out string, info *DeviceInfo) {
	info.Hostname = colonField(out, "System Name")
	if info.Hostname == "" {
		info.Hostname = colonField(out, "Name")
	}
	info.Model = colonField(out, "Model")
	info.Serial = colonField(out, "Serial Number")
	info.Version = colonField(out, "Version")
	if info.Version == "" {
		info.Version = colonField(out, "Software Version")
	}
}

// parseRuckusClients extracts MAC + IP per associated-client row. The
// clients are wireless, so no wired port attribution exists; they hang
// off the AP's radio.
func parseRuckusClients(out string) []Neighbor {
	var neighbors []Neighbor
	seen := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		m := ruckusClientRow.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		mac := models.NormalizeMAC(m[1])
		if seen[mac] {
			continue
		}
		seen[mac] = true
		neighbors = append(neighbors, Neighbor{
			MAC:       mac,
			IP:        m[2],
			Interface: "wlan",
			Source:    SourceARP,
		})
	}
	return neighbors
}

// Compile-time driver checks.
var (
	_ Driver = (*RouterOS)(nil)
	_ Driver = (*Zyxel)(nil)
	_ Driver = (*ThreeCom)(nil)
	_ Driver = (*Ruckus)(nil)
)
