package driver

import (
	"sort"
	"strconv"
	"strings"
)

// VLANSet is the per-port VLAN membership: at most one untagged
// (access) VLAN plus any number of tagged VLANs.
type VLANSet struct {
	Access string
	Tagged []string
}

// ParseVLANs decodes the serialized port-VLAN string. Accepted forms:
//
//	"1000"            access VLAN only
//	"T:1000,1010"     tagged VLANs only
//	"100+T:200,300"   access plus tagged
//
// Empty input yields the zero set.
func ParseVLANs(s string) VLANSet {
	var set VLANSet
	s = strings.TrimSpace(s)
	if s == "" {
		return set
	}
	for _, part := range strings.Split(s, "+") {
		part = strings.TrimSpace(part)
		if rest, ok := strings.CutPrefix(part, "T:"); ok {
			for _, v := range strings.Split(rest, ",") {
				if v = strings.TrimSpace(v); v != "" {
					set.Tagged = append(set.Tagged, v)
				}
			}
			continue
		}
		if part != "" {
			set.Access = part
		}
	}
	return set
}

// String serializes the set back to the wire form. Tagged VLANs are
// emitted in numeric order so the encoding is canonical.
func (v VLANSet) String() string {
	tagged := append([]string(nil), v.Tagged...)
	sort.Slice(tagged, func(i, j int) bool {
		a, _ := strconv.Atoi(tagged[i])
		b, _ := strconv.Atoi(tagged[j])
		if a != b {
			return a < b
		}
		return tagged[i] < tagged[j]
	})

	switch {
	case v.Access == "" && len(tagged) == 0:
		return ""
	case len(tagged) == 0:
		return v.Access
	case v.Access == "":
		return "T:" + strings.Join(tagged, ",")
	default:
		return v.Access + "+T:" + strings.Join(tagged, ",")
	}
}

// IsZero reports whether the set carries no membership at all.
func (v VLANSet) IsZero() bool {
	return v.Access == "" && len(v.Tagged) == 0
}
