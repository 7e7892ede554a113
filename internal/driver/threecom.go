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

var threeComModel = regexp.MustCompile(`(?i)\b(3Com\s+\S+(?:\s+Switch\s+\S+)?|Switch\s+\d{4}\S*)\b`)

// ThreeCom drives 3Com/Comware switches. The CLI exposes almost
// nothing in user view, so only "summary" runs over the shell; the
// interface table and forwarding database come from SNMP.
type ThreeCom struct {
	logger *zap.Logger
}

// NewThreeCom creates the 3Com driver.
func NewThreeCom(logger *zap.Logger) *ThreeCom {
	return &ThreeCom{logger: logger.Named("3com")}
}

func (d *ThreeCom) Name() string    { return "3com" }
func (d *ThreeCom) ShellOnly() bool { return true }

func (d *ThreeCom) Matches(h Hint) bool {
	return h.Vendor() == "3Com"
}

func (d *ThreeCom) Probe(ctx context.Context, sess *sshx.Session, aux Aux) (*DeviceInfo, error) {
	results, err := sess.RunShell(ctx, sshx.Profile3Com, []string{"summary"})
	if err != nil && len(results) == 0 {
		return nil, fmt.Errorf("3com shell: %w", err)
	}

	info := &DeviceInfo{
		Vendor:     "3Com",
		DeviceType: string(models.DeviceTypeSwitch),
	}
	if len(results) > 0 {
		d.parseSummary(results[0].Output, info)
	}

	if aux.SNMP == nil {
		return info, nil
	}
	d.collectSNMP(ctx, aux, info)
	return info, nil
}

// parseSummary reads the user-view "summary" banner: system name,
// software version, product, and hardware revision.
func (d *ThreeCom) parseSummary(out string, info *DeviceInfo) {
	info.Hostname = colonField(out, "System Name")
	info.Version = colonField(out, "Software Version")
	info.Model = threeComModel.FindString(out)
	if rev := colonField(out, "Hardware Version"); rev != "" && info.Model != "" {
		info.Model += " rev " + rev
	}
	if info.Version == "" {
		// Older firmware prints "3Com OS V3.01.21s56" instead.
		for _, line := range strings.Split(out, "\n") {
			line = strings.TrimSpace(line)
			if rest, ok := strings.CutPrefix(line, "3Com OS "); ok {
				info.Version = rest
				break
			}
		}
	}
}

// collectSNMP fills interfaces and learned MACs from IF-MIB and
// BRIDGE-MIB, keeping ethernet rows only.
func (d *ThreeCom) collectSNMP(ctx context.Context, aux Aux, info *DeviceInfo) {
	target := aux.ConnectedIP

	ifaces, err := aux.SNMP.Interfaces(ctx, target, true)
	if err != nil {
		d.logger.Warn("3com snmp interfaces failed",
			zap.String("target", target), zap.Error(err))
		return
	}
	ifName := make(map[int]string, len(ifaces))
	for _, ifc := range ifaces {
		ifName[ifc.Index] = ifc.Description
		info.Interfaces = append(info.Interfaces, models.Interface{
			Name:   ifc.Description,
			MAC:    ifc.PhysAddress,
			Kind:   "ether",
			LinkUp: ifc.OperUp,
		})
	}

	fdb, err := aux.SNMP.ForwardingTable(ctx, target)
	if err != nil {
		d.logger.Warn("3com snmp fdb failed",
			zap.String("target", target), zap.Error(err))
		return
	}

	// The switch's own port MACs appear in the FDB; skip them.
	own := make(map[string]bool, len(ifaces))
	for _, ifc := range ifaces {
		if ifc.PhysAddress != "" {
			own[ifc.PhysAddress] = true
		}
	}
	parents := make(map[string]bool, len(aux.ParentMACs))
	for _, m := range aux.ParentMACs {
		parents[models.NormalizeMAC(m)] = true
	}

	for _, e := range fdb {
		mac := models.NormalizeMAC(e.MAC)
		if mac == "" || own[mac] {
			continue
		}
		port := ifName[e.IfIndex]
		if parents[mac] && info.UpstreamInterface == "" {
			info.UpstreamInterface = port
		}
		info.Neighbors = append(info.Neighbors, Neighbor{
			MAC:       mac,
			Interface: port,
			Source:    SourceBridgeHost,
		})
	}
}
