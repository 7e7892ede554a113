package driver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/taproot/internal/sshx"
	"github.com/HerbHall/taproot/pkg/models"
)

// zyxelCommands is the scripted sequence issued over one shell channel.
// Zyxel switches drop the connection on any exec request, so all five
// run in shell mode.
var zyxelCommands = []string{
	"show system-information",
	"show mac address-table all",
	"show interfaces status",
	"show running-config",
	"show vlan",
}

// zyxelSerialPattern matches the serial embedded in the web UI's
// FirstPage.html when the CLI omits it.
var zyxelSerialPattern = regexp.MustCompile(`S\d{3}[A-Z]\d+`)

var macInLine = regexp.MustCompile(`(?i)\b([0-9a-f]{2}:[0-9a-f]{2}:[0-9a-f]{2}:[0-9a-f]{2}:[0-9a-f]{2}:[0-9a-f]{2})\b`)

// Zyxel drives ZyNOS-family switches in shell mode.
type Zyxel struct {
	logger *zap.Logger
}

// NewZyxel creates the Zyxel driver.
func NewZyxel(logger *zap.Logger) *Zyxel {
	return &Zyxel{logger: logger.Named("zyxel")}
}

func (d *Zyxel) Name() string    { return "zyxel" }
func (d *Zyxel) ShellOnly() bool { return true }

func (d *Zyxel) Matches(h Hint) bool {
	return h.Vendor() == "Zyxel"
}

func (d *Zyxel) Probe(ctx context.Context, sess *sshx.Session, aux Aux) (*DeviceInfo, error) {
	results, err := sess.RunShell(ctx, sshx.ProfileZyxel, zyxelCommands)
	if err != nil && len(results) == 0 {
		return nil, fmt.Errorf("zyxel shell: %w", err)
	}
	outputs := make(map[string]string, len(results))
	for _, r := range results {
		outputs[r.Command] = r.Output
	}

	info := &DeviceInfo{Vendor: "Zyxel"}

	sysinfo := outputs["show system-information"]
	info.Hostname = colonField(sysinfo, "System Name")
	info.Model = colonField(sysinfo, "Product Model")
	info.Serial = colonField(sysinfo, "Serial Number")
	info.Version = colonField(sysinfo, "ZyNOS F/W Version")
	if info.Version == "" {
		info.Version = colonField(sysinfo, "F/W Version")
	}
	if strings.HasPrefix(strings.ToUpper(info.Model), "GS") ||
		strings.HasPrefix(strings.ToUpper(info.Model), "XGS") {
		info.DeviceType = string(models.DeviceTypeSwitch)
	}

	macTable := parseZyxelMACTable(outputs["show mac address-table all"])
	linkUp := parseZyxelLinkStatus(outputs["show interfaces status"])
	vlans := parseZyxelVLANs(outputs["show vlan"])

	info.UpstreamInterface = zyxelUpstream(macTable, aux.ParentMACs)

	ports := sortedPortNames(macTable, linkUp, vlans)
	for _, port := range ports {
		info.Interfaces = append(info.Interfaces, models.Interface{
			Name:   port,
			Kind:   "ether",
			VLAN:   vlans[port].String(),
			LinkUp: linkUp[port],
		})
	}

	for _, port := range ports {
		for _, mac := range macTable[port] {
			info.Neighbors = append(info.Neighbors, Neighbor{
				MAC:       mac,
				Interface: port,
				Source:    SourceBridgeHost,
			})
		}
	}

	if info.Serial == "" {
		if serial := d.fetchWebSerial(ctx, aux); serial != "" {
			info.Serial = serial
		}
	}
	return info, nil
}

// fetchWebSerial pulls /FirstPage.html from the management UI, HTTPS
// first then HTTP, basic-auth with the SSH credentials. Reached via
// the jump host when aux.HTTP is tunneled.
func (d *Zyxel) fetchWebSerial(ctx context.Context, aux Aux) string {
	if aux.HTTP == nil || aux.ConnectedIP == "" {
		return ""
	}
	for _, scheme := range []string{"https", "http"} {
		url := scheme + "://" + aux.ConnectedIP + "/FirstPage.html"
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		req.SetBasicAuth(aux.WebUser, aux.WebPass)
		resp, err := aux.HTTP.Do(req)
		if err != nil {
			d.logger.Debug("zyxel web serial fetch failed",
				zap.String("url", url), zap.Error(err))
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if err != nil || resp.StatusCode != http.StatusOK {
			continue
		}
		if serial := zyxelSerialPattern.FindString(string(body)); serial != "" {
			d.logger.Info("zyxel serial recovered from web ui",
				zap.String("serial", serial))
			return serial
		}
	}
	return ""
}

// parseZyxelMACTable returns learned MACs per port from
// "show mac address-table all" output. Rows carry a leading port
// number and a MAC somewhere in the line; CPU entries have no port.
func parseZyxelMACTable(out string) map[string][]string {
	table := make(map[string][]string)
	for _, line := range strings.Split(out, "\n") {
		m := macInLine.FindString(line)
		if m == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		port := fields[0]
		table[port] = append(table[port], models.NormalizeMAC(m))
	}
	return table
}

// parseZyxelLinkStatus reads "show interfaces status" rows: a leading
// port number followed by a speed or "Down".
func parseZyxelLinkStatus(out string) map[string]bool {
	status := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		lower := strings.ToLower(line)
		status[fields[0]] = !strings.Contains(lower, "down") &&
			(strings.Contains(lower, "up") || strings.Contains(lower, "m/f") ||
				strings.Contains(lower, "100m") || strings.Contains(lower, "1g") ||
				strings.Contains(lower, "10g"))
	}
	return status
}

// parseZyxelVLANs reads "show vlan" rows of the form
//
//	VID  Name   Tagged Ports   Untagged Ports
//	100  mgmt   25-26          1-24
//
// into per-port access + tagged sets.
func parseZyxelVLANs(out string) map[string]VLANSet {
	sets := make(map[string]VLANSet)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		vid := fields[0]
		tagged := expandPortRange(fields[len(fields)-2])
		untagged := expandPortRange(fields[len(fields)-1])
		for _, p := range tagged {
			s := sets[p]
			s.Tagged = append(s.Tagged, vid)
			sets[p] = s
		}
		for _, p := range untagged {
			s := sets[p]
			s.Access = vid
			sets[p] = s
		}
	}
	return sets
}

// colonField extracts "Label  : value" lines from banner-style command
// output. The label match is case-insensitive and tolerates padding
// before the colon.
func colonField(out, label string) string {
	lower := strings.ToLower(label)
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToLower(trimmed), lower) {
			continue
		}
		rest := strings.TrimSpace(trimmed[len(label):])
		rest, ok := strings.CutPrefix(rest, ":")
		if !ok {
			continue
		}
		return strings.TrimSpace(rest)
	}
	return ""
}

// expandPortRange turns "1-4,7" into ["1","2","3","4","7"]. A lone "-"
// means no ports.
func expandPortRange(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "-" {
			continue
		}
		lo, hi, found := strings.Cut(part, "-")
		if !found {
			out = append(out, part)
			continue
		}
		a, errA := strconv.Atoi(lo)
		b, errB := strconv.Atoi(hi)
		if errA != nil || errB != nil || b < a {
			continue
		}
		for i := a; i <= b; i++ {
			out = append(out, strconv.Itoa(i))
		}
	}
	return out
}

// zyxelUpstream picks the uplink port. A port whose MAC table contains
// one of the parent's MACs wins; otherwise a port that learned at
// least three MACs and more than twice the average of the other ports
// is assumed to face the rest of the network.
func zyxelUpstream(macTable map[string][]string, parentMACs []string) string {
	parents := make(map[string]bool, len(parentMACs))
	for _, m := range parentMACs {
		parents[models.NormalizeMAC(m)] = true
	}
	for _, port := range sortedPortNames(macTable, nil, nil) {
		for _, mac := range macTable[port] {
			if parents[mac] {
				return port
			}
		}
	}

	total := 0
	for _, macs := range macTable {
		total += len(macs)
	}
	best, bestCount := "", 0
	for _, port := range sortedPortNames(macTable, nil, nil) {
		count := len(macTable[port])
		if count > bestCount {
			best, bestCount = port, count
		}
	}
	if bestCount < 3 || len(macTable) < 2 {
		return ""
	}
	othersAvg := float64(total-bestCount) / float64(len(macTable)-1)
	if float64(bestCount) > 2*othersAvg {
		return best
	}
	return ""
}

// sortedPortNames merges the port keys of up to three maps into one
// numerically sorted list.
func sortedPortNames(macTable map[string][]string, linkUp map[string]bool, vlans map[string]VLANSet) []string {
	seen := make(map[string]bool)
	var ports []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			ports = append(ports, p)
		}
	}
	for p := range macTable {
		add(p)
	}
	for p := range linkUp {
		add(p)
	}
	for p := range vlans {
		add(p)
	}
	for i := 1; i < len(ports); i++ {
		for j := i; j > 0; j-- {
			a, _ := strconv.Atoi(ports[j-1])
			b, _ := strconv.Atoi(ports[j])
			if a <= b {
				break
			}
			ports[j-1], ports[j] = ports[j], ports[j-1]
		}
	}
	return ports
}
