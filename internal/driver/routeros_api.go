package driver

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-routeros/routeros/v3"
	"github.com/go-routeros/routeros/v3/proto"
	"go.uber.org/zap"

	"github.com/HerbHall/taproot/internal/sshx"
	"github.com/HerbHall/taproot/pkg/models"
)

// APIPort is the MikroTik binary API port.
const APIPort = 8728

// apiProbeBudget bounds one full API interrogation.
const apiProbeBudget = 60 * time.Second

// RouterOSAPI drives MikroTik devices over the binary API, used when
// SSH is closed but TCP 8728 is open. It collects the same facts as
// the CLI driver and reuses its assembly logic.
type RouterOSAPI struct {
	dial   sshx.DialFunc
	cli    *RouterOS
	logger *zap.Logger
}

// NewRouterOSAPI creates the API driver. dial may be a jump-host
// forwarder; nil means direct TCP.
func NewRouterOSAPI(dial sshx.DialFunc, logger *zap.Logger) *RouterOSAPI {
	if dial == nil {
		d := &net.Dialer{}
		dial = d.DialContext
	}
	return &RouterOSAPI{
		dial:   dial,
		cli:    NewRouterOS(logger),
		logger: logger.Named("routeros-api"),
	}
}

// Probe logs in to the API and interrogates the device.
func (d *RouterOSAPI) Probe(ctx context.Context, ip string, username, password string) (*DeviceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, apiProbeBudget)
	defer cancel()

	addr := net.JoinHostPort(ip, strconv.Itoa(APIPort))
	conn, err := d.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("api dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := routeros.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("api client %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Login(username, password); err != nil {
		return nil, fmt.Errorf("api login %s: %w", addr, err)
	}

	info := &DeviceInfo{Vendor: "MikroTik"}

	if rows := d.query(client, "/system/identity/print"); len(rows) > 0 {
		info.Hostname = rows[0]["name"]
	}
	if rows := d.query(client, "/system/resource/print"); len(rows) > 0 {
		info.Version = rows[0]["version"]
		info.Model = rows[0]["board-name"]
	}
	if rows := d.query(client, "/system/routerboard/print"); len(rows) > 0 {
		if m := rows[0]["model"]; m != "" {
			info.Model = m
		}
		info.Serial = rows[0]["serial-number"]
	}

	leases := d.query(client, "/ip/dhcp-server/lease/print")
	addrs := d.query(client, "/ip/address/print")
	ifaceRows := d.query(client, "/interface/print")
	arp := d.query(client, "/ip/arp/print")
	hosts := d.query(client, "/interface/bridge/host/print")
	routes := d.query(client, "/ip/route/print", "?dst-address=0.0.0.0/0")
	bridgePorts := d.query(client, "/interface/bridge/port/print")
	bridgeVlans := d.query(client, "/interface/bridge/vlan/print")
	ipNeighbors := d.query(client, "/ip/neighbor/print")

	macPort := make(map[string]string)
	for _, h := range hosts {
		if hasFlag(h, "L") {
			continue
		}
		mac := models.NormalizeMAC(h["mac-address"])
		port := h["on-interface"]
		if port == "" {
			port = h["interface"]
		}
		if mac != "" && port != "" {
			macPort[mac] = port
		}
	}

	var bridgeNames []string
	for _, p := range bridgePorts {
		b := p["bridge"]
		if b == "" {
			continue
		}
		known := false
		for _, name := range bridgeNames {
			if name == b {
				known = true
				break
			}
		}
		if !known {
			bridgeNames = append(bridgeNames, b)
		}
	}
	physicalPort := func(mac, reported string) string {
		if p, ok := macPort[mac]; ok {
			return p
		}
		for _, b := range bridgeNames {
			if b == reported {
				return ""
			}
		}
		return reported
	}

	info.Interfaces = d.cli.assembleInterfaces(ifaceRows, addrs, bridgePorts, bridgeVlans)
	info.UpstreamInterface = d.cli.findUpstream(routes, arp, macPort)
	info.Leases = parseLeases(leases)
	info.Neighbors = d.cli.assembleNeighbors(leases, arp, ipNeighbors, hosts, physicalPort)
	return info, nil
}

// query runs one API command, tolerating failure the same way the CLI
// driver tolerates missing tables.
func (d *RouterOSAPI) query(client *routeros.Client, sentence ...string) []map[string]string {
	reply, err := client.Run(sentence...)
	if err != nil {
		d.logger.Warn("api command failed",
			zap.String("cmd", sentence[0]), zap.Error(err))
		return nil
	}
	rows := make([]map[string]string, 0, len(reply.Re))
	for _, re := range reply.Re {
		rows = append(rows, apiRow(re))
	}
	return rows
}

// apiRow converts an API sentence into the row shape the CLI parser
// produces, translating boolean properties into the CLI's flag letters
// so the shared assembly code reads both.
func apiRow(re *proto.Sentence) map[string]string {
	row := make(map[string]string, len(re.Map)+1)
	for k, v := range re.Map {
		row[k] = v
	}
	var flags strings.Builder
	if row["local"] == "true" {
		flags.WriteString("L")
	}
	if row["dynamic"] == "true" {
		flags.WriteString("D")
	}
	if row["running"] == "true" {
		flags.WriteString("R")
	}
	if row["disabled"] == "true" {
		flags.WriteString("X")
	}
	if flags.Len() > 0 {
		row[flagsKey] = flags.String()
	}
	return row
}
