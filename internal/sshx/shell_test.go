package sshx

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestPromptProfiles(t *testing.T) {
	tests := []struct {
		profile *PromptProfile
		tail    string
		match   bool
	}{
		{ProfileMikroTik, "[admin@gw-core] > ", true},
		{ProfileMikroTik, "[admin@MikroTik] >", true},
		{ProfileMikroTik, "interface print\nflags: R - running", false},
		{ProfileZyxel, "GS1920# ", true},
		{ProfileZyxel, "sw-floor2#", true},
		{ProfileZyxel, "Port 1: up", false},
		{Profile3Com, "<core-3com>", true},
		{Profile3Com, "stack#", true},
		{ProfileRuckus, "ruckus> ", true},
		{ProfileRuckus, "ruckus-ap# ", true},
		{ProfileRuckus, "... still printing", false},
	}
	for _, tt := range tests {
		got := tt.profile.Prompt.MatchString(tt.tail)
		if got != tt.match {
			t.Errorf("%s prompt match %q = %v, want %v", tt.profile.Name, tt.tail, got, tt.match)
		}
	}
}

func TestPaginationMarkers(t *testing.T) {
	tests := []struct {
		profile *PromptProfile
		tail    string
		match   bool
	}{
		{ProfileZyxel, "port 24 up\n---- more ----", true},
		{ProfileZyxel, "More: <space>", true},
		{Profile3Com, "  ---- More ----", true},
		{ProfileRuckus, "--More--", true},
		{ProfileRuckus, "Press any key to continue", true},
		{ProfileZyxel, "port 24 up", false},
	}
	for _, tt := range tests {
		got := tt.profile.Pagination.MatchString(tt.tail)
		if got != tt.match {
			t.Errorf("%s pagination match %q = %v, want %v", tt.profile.Name, tt.tail, got, tt.match)
		}
	}
}

func TestCleanOutput(t *testing.T) {
	out := "show mac address-table\nMAC                Port\n00:11:22:33:44:55  3\nGS1920# "
	got := cleanOutput(out, "show mac address-table", ProfileZyxel)
	want := "MAC                Port\n00:11:22:33:44:55  3"
	if got != want {
		t.Errorf("cleanOutput = %q, want %q", got, want)
	}
}

func TestCleanOutputDropsPagerResidue(t *testing.T) {
	out := "show interfaces\nport 1 up\n---- more ----port 2 down\nsw#"
	got := cleanOutput(out, "show interfaces", ProfileZyxel)
	want := "port 1 up\nport 2 down"
	if got != want {
		t.Errorf("cleanOutput = %q, want %q", got, want)
	}
}

// The shell timing contract: 45 s output-settle budget per command,
// and the plain-shell retry fits inside the 20 s abandon window.
func TestShellTimingContract(t *testing.T) {
	if commandTimeout != 45*time.Second {
		t.Errorf("commandTimeout = %v, want 45s", commandTimeout)
	}
	if promptWait*2 != shellAbandon {
		t.Errorf("promptWait %v leaves no room for the plain-shell retry within %v", promptWait, shellAbandon)
	}
}

// Take must hand over every byte exactly once even while the reader
// goroutine keeps appending.
func TestShellBufTakeConservesBytes(t *testing.T) {
	var b shellBuf
	const n = 5000
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			_, _ = b.Write([]byte("x"))
		}
	}()

	var got strings.Builder
	for {
		got.WriteString(b.Take())
		select {
		case <-done:
			got.WriteString(b.Take())
			if got.Len() != n {
				t.Fatalf("took %d bytes, want %d", got.Len(), n)
			}
			if b.String() != "" {
				t.Errorf("buffer not empty after final Take: %q", b.String())
			}
			return
		default:
		}
	}
}

func TestJumpHostAbsent(t *testing.T) {
	j := NewJumpHost(zaptest.NewLogger(t))
	if j.State() != JumpAbsent {
		t.Fatalf("initial state = %v, want absent", j.State())
	}
	if j.Supported() {
		t.Error("Supported() = true with no session")
	}
}

// Forward takes the lock only to read the relay state, so concurrent
// callers never queue behind one another.
func TestForwardConcurrentCallers(t *testing.T) {
	j := NewJumpHost(zaptest.NewLogger(t))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := j.Forward(context.Background(), "tcp", "10.0.0.2:22")
			if !errors.Is(err, ErrNoJumpHost) {
				t.Errorf("Forward without a relay = %v, want ErrNoJumpHost", err)
			}
		}()
	}
	wg.Wait()
}
