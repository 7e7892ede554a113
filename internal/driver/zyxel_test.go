package driver

import (
	"reflect"
	"testing"
)

func TestParseZyxelMACTable(t *testing.T) {
	out := `Port    VLAN ID  MAC Address        Type
 1      1        00:11:22:33:44:55  Dynamic
 1      1        00:11:22:33:44:66  Dynamic
24      100      aa:bb:cc:dd:ee:ff  Dynamic
CPU     1        00:19:cb:00:00:01  Static
`
	table := parseZyxelMACTable(out)
	if len(table["1"]) != 2 {
		t.Errorf("port 1 macs = %v, want 2 entries", table["1"])
	}
	if got := table["24"]; len(got) != 1 || got[0] != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("port 24 = %v, want normalized single entry", got)
	}
	if _, ok := table["CPU"]; ok {
		t.Error("CPU row must be skipped")
	}
}

func TestParseZyxelVLANs(t *testing.T) {
	out := `VID  Name      Tagged Ports  Untagged Ports
100  mgmt      25-26         1-3
200  cameras   25-26         -
`
	sets := parseZyxelVLANs(out)
	if got := sets["2"]; got.Access != "100" || len(got.Tagged) != 0 {
		t.Errorf("port 2 = %+v, want access 100", got)
	}
	if got := sets["25"]; !reflect.DeepEqual(got.Tagged, []string{"100", "200"}) {
		t.Errorf("port 25 tagged = %v, want [100 200]", got.Tagged)
	}
	if got := sets["26"].String(); got != "T:100,200" {
		t.Errorf("port 26 serialized = %q", got)
	}
}

func TestExpandPortRange(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"-", nil},
		{"7", []string{"7"}},
		{"1-4", []string{"1", "2", "3", "4"}},
		{"1-3,7", []string{"1", "2", "3", "7"}},
		{"4-1", nil},
	}
	for _, tt := range tests {
		if got := expandPortRange(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("expandPortRange(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestZyxelUpstreamParentMAC(t *testing.T) {
	table := map[string][]string{
		"1":  {"AA:BB:CC:DD:EE:01"},
		"24": {"11:22:33:44:55:66", "AA:AA:AA:AA:AA:01"},
	}
	got := zyxelUpstream(table, []string{"11:22:33:44:55:66"})
	if got != "24" {
		t.Errorf("upstream = %q, want 24 (parent MAC seen there)", got)
	}
}

func TestZyxelUpstreamDensityHeuristic(t *testing.T) {
	table := map[string][]string{
		"1":  {"AA:BB:CC:DD:EE:01"},
		"2":  {"AA:BB:CC:DD:EE:02"},
		"24": {"00:00:00:00:00:01", "00:00:00:00:00:02", "00:00:00:00:00:03", "00:00:00:00:00:04", "00:00:00:00:00:05"},
	}
	if got := zyxelUpstream(table, nil); got != "24" {
		t.Errorf("upstream = %q, want 24 (MAC density)", got)
	}

	// Even distribution: no port stands out, no upstream guessed.
	flat := map[string][]string{
		"1": {"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02", "AA:BB:CC:DD:EE:03"},
		"2": {"AA:BB:CC:DD:EE:04", "AA:BB:CC:DD:EE:05", "AA:BB:CC:DD:EE:06"},
	}
	if got := zyxelUpstream(flat, nil); got != "" {
		t.Errorf("upstream = %q, want none for flat distribution", got)
	}
}

func TestZyxelSerialPattern(t *testing.T) {
	html := `<html><td>Serial Number</td><td>S150Z45000123</td></html>`
	if got := zyxelSerialPattern.FindString(html); got != "S150Z45000123" {
		t.Errorf("serial = %q, want S150Z45000123", got)
	}
	if zyxelSerialPattern.FindString("no serial here") != "" {
		t.Error("false positive serial match")
	}
}

func TestColonField(t *testing.T) {
	out := `System Name     : sw-floor2
Product Model   : GS1920-24
`
	if got := colonField(out, "System Name"); got != "sw-floor2" {
		t.Errorf("System Name = %q", got)
	}
	if got := colonField(out, "Product Model"); got != "GS1920-24" {
		t.Errorf("Product Model = %q", got)
	}
	if got := colonField(out, "Serial Number"); got != "" {
		t.Errorf("missing field = %q, want empty", got)
	}
}
