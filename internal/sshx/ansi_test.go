package sshx

import "testing"

func TestStripTerminal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"csi color", "\x1b[32mup\x1b[0m", "up"},
		{"cursor move", "\x1b[2J\x1b[Hswitch#", "switch#"},
		{"vt100 save restore", "\x1b7text\x1b8", "text"},
		{"carriage returns", "line1\r\nline2\r", "line1\nline2"},
		{"stray seven line", "out\n7\nmore", "out\nmore"},
		{"lone escape", "ab\x1bcd", "abd"},
		{"private mode", "\x1b[?25lprompt>", "prompt>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripTerminal(tt.in); got != tt.want {
				t.Errorf("StripTerminal(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
