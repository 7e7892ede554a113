package driver

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestRegistryDetect(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	tests := []struct {
		name string
		hint Hint
		want string
	}{
		{"oui mikrotik", Hint{OUIVendor: "MikroTik"}, "routeros"},
		{"rosssh banner", Hint{Banner: "SSH-2.0-ROSSSH"}, "routeros"},
		{"oui zyxel", Hint{OUIVendor: "Zyxel"}, "zyxel"},
		{"zyxel output", Hint{FirstOutput: "ZyXEL GS1920-24 CLI"}, "zyxel"},
		{"comware output", Hint{FirstOutput: "Comware Platform Software"}, "3com"},
		{"ruckus output", Hint{FirstOutput: "Ruckus Unleashed"}, "ruckus"},
		{"unknown", Hint{Banner: "SSH-2.0-OpenSSH_8.9"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.Detect(tt.hint)
			got := ""
			if d != nil {
				got = d.Name()
			}
			if got != tt.want {
				t.Errorf("Detect(%+v) = %q, want %q", tt.hint, got, tt.want)
			}
		})
	}
}

func TestShellOnlyCommitment(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	for name, want := range map[string]bool{
		"routeros": false,
		"zyxel":    true,
		"3com":     true,
		"ruckus":   false,
	} {
		d := r.ByName(name)
		if d == nil {
			t.Fatalf("driver %q not registered", name)
		}
		if d.ShellOnly() != want {
			t.Errorf("%s ShellOnly = %v, want %v", name, d.ShellOnly(), want)
		}
	}
}
