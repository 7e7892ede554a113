package driver

import (
	"reflect"
	"testing"
)

func TestParseVLANs(t *testing.T) {
	tests := []struct {
		in   string
		want VLANSet
	}{
		{"", VLANSet{}},
		{"1000", VLANSet{Access: "1000"}},
		{"T:1000,1010", VLANSet{Tagged: []string{"1000", "1010"}}},
		{"100+T:200,300", VLANSet{Access: "100", Tagged: []string{"200", "300"}}},
		{"  100 + T:200 , 300 ", VLANSet{Access: "100", Tagged: []string{"200", "300"}}},
	}
	for _, tt := range tests {
		got := ParseVLANs(tt.in)
		if got.Access != tt.want.Access || !reflect.DeepEqual(got.Tagged, tt.want.Tagged) {
			t.Errorf("ParseVLANs(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

// Every serialized VLAN string must re-parse to an identical set.
func TestVLANRoundTrip(t *testing.T) {
	sets := []VLANSet{
		{},
		{Access: "1"},
		{Access: "1000"},
		{Tagged: []string{"1000", "1010"}},
		{Tagged: []string{"300", "200", "1000"}},
		{Access: "100", Tagged: []string{"200", "300"}},
		{Access: "4094", Tagged: []string{"1"}},
	}
	for _, set := range sets {
		encoded := set.String()
		got := ParseVLANs(encoded)
		if got.String() != encoded {
			t.Errorf("round trip %+v: encoded %q, re-encoded %q", set, encoded, got.String())
		}
		if got.Access != set.Access {
			t.Errorf("round trip %+v: access %q != %q", set, got.Access, set.Access)
		}
	}
}

func TestVLANStringCanonicalOrder(t *testing.T) {
	a := VLANSet{Tagged: []string{"1010", "1000"}}
	b := VLANSet{Tagged: []string{"1000", "1010"}}
	if a.String() != b.String() {
		t.Errorf("tagged order not canonical: %q vs %q", a.String(), b.String())
	}
	if a.String() != "T:1000,1010" {
		t.Errorf("String() = %q, want T:1000,1010", a.String())
	}
}
