package sshx

import (
	"regexp"
	"strings"
)

// csiSequence matches ANSI CSI escape sequences (cursor movement,
// erase, color) emitted by device PTYs.
var csiSequence = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

// vt100TwoByte matches two-byte VT100 escapes such as ESC 7 (save
// cursor), ESC 8 (restore cursor), and ESC = (keypad mode).
var vt100TwoByte = regexp.MustCompile(`\x1b[0-9A-Za-z=><]`)

// StripTerminal removes terminal control noise from PTY output:
// ANSI CSI sequences, two-byte VT100 escapes, carriage returns, and
// the stray "7" / "8" artifacts some firmware leaves behind when it
// splits a save-cursor escape across packets.
func StripTerminal(s string) string {
	s = csiSequence.ReplaceAllString(s, "")
	s = vt100TwoByte.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r", "")

	// A lone ESC whose second byte never arrived.
	s = strings.ReplaceAll(s, "\x1b", "")

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "7" || trimmed == "8" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
