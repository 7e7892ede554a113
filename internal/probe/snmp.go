package probe

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/HerbHall/taproot/pkg/models"
)

// SNMPv2-MIB system group (1.3.6.1.2.1.1).
const (
	oidSysDescr    = "1.3.6.1.2.1.1.1.0"
	oidSysObjectID = "1.3.6.1.2.1.1.2.0"
	oidSysName     = "1.3.6.1.2.1.1.5.0"
	oidSysLocation = "1.3.6.1.2.1.1.6.0"
)

// IF-MIB interface table (1.3.6.1.2.1.2.2.1).
const (
	oidIfDescr       = "1.3.6.1.2.1.2.2.1.2"
	oidIfType        = "1.3.6.1.2.1.2.2.1.3"
	oidIfPhysAddress = "1.3.6.1.2.1.2.2.1.6"
	oidIfOperStatus  = "1.3.6.1.2.1.2.2.1.8"
)

// BRIDGE-MIB forwarding database (1.3.6.1.2.1.17.4.3.1) and base port
// table (1.3.6.1.2.1.17.1.4.1).
const (
	oidDot1dTpFdbAddress    = "1.3.6.1.2.1.17.4.3.1.1"
	oidDot1dTpFdbPort       = "1.3.6.1.2.1.17.4.3.1.2"
	oidDot1dBasePortIfIndex = "1.3.6.1.2.1.17.1.4.1.2"
)

// ifTypeEthernet is the IANA ifType for ethernetCsmacd.
const ifTypeEthernet = 6

// SNMPSystemInfo holds the system group fields the scanner cares about.
type SNMPSystemInfo struct {
	Description string
	ObjectID    string
	Name        string
	Location    string
}

// SNMPInterface is one IF-MIB row.
type SNMPInterface struct {
	Index       int
	Description string
	Type        int
	PhysAddress string
	OperUp      bool
}

// FdbEntry is one learned MAC from the bridge forwarding database,
// resolved to the ifIndex of the port it was seen on.
type FdbEntry struct {
	MAC     string
	IfIndex int
}

// SNMPClient issues SNMP v2c queries against one target.
type SNMPClient struct {
	community string
	logger    *zap.Logger
}

// NewSNMPClient creates a client using the given community ("public"
// when empty).
func NewSNMPClient(community string, logger *zap.Logger) *SNMPClient {
	if community == "" {
		community = "public"
	}
	return &SNMPClient{community: community, logger: logger}
}

func (c *SNMPClient) session(ctx context.Context, target string) *gosnmp.GoSNMP {
	g := &gosnmp.GoSNMP{
		Target:    target,
		Port:      161,
		Version:   gosnmp.Version2c,
		Community: c.community,
		Timeout:   3 * time.Second,
		Retries:   3,
		Context:   ctx,
	}
	return g
}

// SystemInfo retrieves the system group from the target.
func (c *SNMPClient) SystemInfo(ctx context.Context, target string) (*SNMPSystemInfo, error) {
	g := c.session(ctx, target)
	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s: %w", target, err)
	}
	defer func() { _ = g.Conn.Close() }()

	result, err := g.Get([]string{oidSysDescr, oidSysObjectID, oidSysName, oidSysLocation})
	if err != nil {
		return nil, fmt.Errorf("snmp get system group: %w", err)
	}

	info := &SNMPSystemInfo{}
	for _, pdu := range result.Variables {
		switch pdu.Name {
		case "." + oidSysDescr:
			info.Description = pduString(pdu)
		case "." + oidSysObjectID:
			info.ObjectID = pduString(pdu)
		case "." + oidSysName:
			info.Name = pduString(pdu)
		case "." + oidSysLocation:
			info.Location = pduString(pdu)
		}
	}
	return info, nil
}

// Interfaces walks the IF-MIB interface table. When ethernetOnly is
// set, rows whose ifType is not ethernetCsmacd (6) are dropped.
func (c *SNMPClient) Interfaces(ctx context.Context, target string, ethernetOnly bool) ([]SNMPInterface, error) {
	g := c.session(ctx, target)
	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s: %w", target, err)
	}
	defer func() { _ = g.Conn.Close() }()

	rows := make(map[int]*SNMPInterface)
	row := func(idx int) *SNMPInterface {
		if r, ok := rows[idx]; ok {
			return r
		}
		r := &SNMPInterface{Index: idx}
		rows[idx] = r
		return r
	}

	walks := []struct {
		oid   string
		apply func(idx int, pdu gosnmp.SnmpPDU)
	}{
		{oidIfDescr, func(idx int, pdu gosnmp.SnmpPDU) { row(idx).Description = pduString(pdu) }},
		{oidIfType, func(idx int, pdu gosnmp.SnmpPDU) { row(idx).Type = pduInt(pdu) }},
		{oidIfPhysAddress, func(idx int, pdu gosnmp.SnmpPDU) { row(idx).PhysAddress = pduMAC(pdu) }},
		{oidIfOperStatus, func(idx int, pdu gosnmp.SnmpPDU) { row(idx).OperUp = pduInt(pdu) == 1 }},
	}
	for _, w := range walks {
		oid := w.oid
		apply := w.apply
		err := g.BulkWalk(oid, func(pdu gosnmp.SnmpPDU) error {
			idx, err := lastIndex(pdu.Name)
			if err != nil {
				return nil
			}
			apply(idx, pdu)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("snmp walk %s: %w", oid, err)
		}
	}

	out := make([]SNMPInterface, 0, len(rows))
	for _, r := range rows {
		if ethernetOnly && r.Type != ifTypeEthernet {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

// ForwardingTable walks dot1dTpFdbTable and resolves bridge port
// numbers to ifIndex values via dot1dBasePortIfIndex.
func (c *SNMPClient) ForwardingTable(ctx context.Context, target string) ([]FdbEntry, error) {
	g := c.session(ctx, target)
	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s: %w", target, err)
	}
	defer func() { _ = g.Conn.Close() }()

	// Bridge port -> ifIndex.
	portToIf := make(map[int]int)
	err := g.BulkWalk(oidDot1dBasePortIfIndex, func(pdu gosnmp.SnmpPDU) error {
		port, err := lastIndex(pdu.Name)
		if err != nil {
			return nil
		}
		portToIf[port] = pduInt(pdu)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snmp walk base port table: %w", err)
	}

	// MAC (keyed by its six-octet OID suffix) -> bridge port.
	macPort := make(map[string]int)
	err = g.BulkWalk(oidDot1dTpFdbPort, func(pdu gosnmp.SnmpPDU) error {
		mac, ok := fdbSuffixMAC(pdu.Name, oidDot1dTpFdbPort)
		if !ok {
			return nil
		}
		macPort[mac] = pduInt(pdu)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snmp walk fdb table: %w", err)
	}

	entries := make([]FdbEntry, 0, len(macPort))
	for mac, port := range macPort {
		ifIdx, ok := portToIf[port]
		if !ok {
			ifIdx = port
		}
		entries = append(entries, FdbEntry{MAC: mac, IfIndex: ifIdx})
	}

	c.logger.Debug("snmp forwarding table",
		zap.String("target", target),
		zap.Int("entries", len(entries)),
	)
	return entries, nil
}

// fdbSuffixMAC decodes the six decimal OID components after the base
// OID into a normalized MAC address.
func fdbSuffixMAC(name, base string) (string, bool) {
	suffix := strings.TrimPrefix(strings.TrimPrefix(name, "."), base)
	suffix = strings.TrimPrefix(suffix, ".")
	parts := strings.Split(suffix, ".")
	if len(parts) != 6 {
		return "", false
	}
	octets := make([]string, 6)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 255 {
			return "", false
		}
		octets[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(octets, ":"), true
}

// lastIndex returns the final OID component as an int.
func lastIndex(name string) (int, error) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return 0, fmt.Errorf("no index in oid %q", name)
	}
	return strconv.Atoi(name[i+1:])
}

func pduString(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	default:
		return ""
	}
}

func pduInt(pdu gosnmp.SnmpPDU) int {
	switch v := pdu.Value.(type) {
	case int:
		return v
	case uint:
		return int(v)
	case int64:
		return int(v)
	case uint64:
		return int(v)
	default:
		return 0
	}
}

// pduMAC decodes an OctetString physical address into normalized MAC form.
func pduMAC(pdu gosnmp.SnmpPDU) string {
	b, ok := pdu.Value.([]byte)
	if !ok || len(b) != 6 {
		return ""
	}
	parts := make([]string, 6)
	for i, o := range b {
		parts[i] = fmt.Sprintf("%02X", o)
	}
	return models.NormalizeMAC(strings.Join(parts, ":"))
}
