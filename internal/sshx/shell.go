package sshx

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// Shell timing. A device that shows no prompt within promptWait after
// the PTY opens gets one retry on a plain (non-PTY) shell; if that is
// also silent the device is abandoned at shellAbandon total.
const (
	promptWait     = 10 * time.Second
	shellAbandon   = 20 * time.Second
	commandTimeout = 45 * time.Second
	pollInterval   = 100 * time.Millisecond
)

// PromptProfile describes how one vendor's CLI signals readiness.
type PromptProfile struct {
	Name string

	// Prompt matches the end of stripped output when the CLI is idle.
	Prompt *regexp.Regexp

	// Pagination matches a pager stop ("--More--"); PageResponse is
	// written to advance it. Nil disables pagination handling.
	Pagination   *regexp.Regexp
	PageResponse []byte

	// Preamble commands are issued once after the first prompt
	// (e.g. "enable" on Ruckus Unleashed).
	Preamble []string
}

var (
	// ProfileMikroTik matches "[admin@hostname] > " and the plain
	// "hostname > " form older RouterOS prints on narrow terminals.
	ProfileMikroTik = &PromptProfile{
		Name:   "mikrotik",
		Prompt: regexp.MustCompile(`(?m)(\[[^\[\]\n]+\] >|[\w.-]+ ?>)\s*$`),
	}

	// ProfileZyxel matches the "hostname# " privileged prompt.
	ProfileZyxel = &PromptProfile{
		Name:         "zyxel",
		Prompt:       regexp.MustCompile(`(?m)[\w.-]+#\s*$`),
		Pagination:   regexp.MustCompile(`(?i)-+\s*more\s*-+|More: <space>`),
		PageResponse: []byte(" "),
	}

	// Profile3Com matches the Comware "<hostname>" and "hostname#" forms.
	Profile3Com = &PromptProfile{
		Name:         "3com",
		Prompt:       regexp.MustCompile(`(?m)(<[\w.-]+>|[\w.-]+#)\s*$`),
		Pagination:   regexp.MustCompile(`(?i)-+\s*more\s*-+`),
		PageResponse: []byte(" "),
	}

	// ProfileRuckus matches both the ">" user prompt and the "#"
	// privileged prompt; "enable" is issued up front.
	ProfileRuckus = &PromptProfile{
		Name:         "ruckus",
		Prompt:       regexp.MustCompile(`(?m)ruckus[\w-]*[>#]\s*$|[\w-]+[>#]\s*$`),
		Pagination:   regexp.MustCompile(`(?i)--more--|press any key`),
		PageResponse: []byte(" "),
		Preamble:     []string{"enable"},
	}
)

// CommandResult is the cleaned output of one scripted command.
type CommandResult struct {
	Command string
	Output  string
}

// shellBuf accumulates PTY output from the reader goroutine.
type shellBuf struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *shellBuf) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *shellBuf) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *shellBuf) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// Take atomically returns everything buffered so far and truncates.
// The reader goroutine appends concurrently; a separate String then
// Reset would drop bytes arriving between the two calls.
func (b *shellBuf) Take() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	b.buf.Reset()
	return s
}

// shell is one open shell channel with its output reader.
type shell struct {
	sess  *ssh.Session
	stdin io.WriteCloser
	out   *shellBuf
}

func (s *Session) openShell(withPTY bool) (*shell, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open shell channel: %w", err)
	}

	if withPTY {
		modes := ssh.TerminalModes{
			ssh.ECHO:          0,
			ssh.TTY_OP_ISPEED: 115200,
			ssh.TTY_OP_OSPEED: 115200,
		}
		if err := sess.RequestPty("vt100", 24, 132, modes); err != nil {
			sess.Close()
			return nil, fmt.Errorf("request pty: %w", err)
		}
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("shell stdin: %w", err)
	}

	out := &shellBuf{}
	sess.Stdout = out
	sess.Stderr = out

	if err := sess.Shell(); err != nil {
		sess.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}
	return &shell{sess: sess, stdin: stdin, out: out}, nil
}

func (sh *shell) close() {
	_ = sh.stdin.Close()
	_ = sh.sess.Close()
}

// RunShell executes commands over an interactive shell channel,
// detecting the CLI prompt with the profile's regex and advancing any
// pager. It first tries a vt100 PTY; a device that stays silent gets
// one retry on a plain shell before being abandoned.
func (s *Session) RunShell(ctx context.Context, profile *PromptProfile, commands []string) ([]CommandResult, error) {
	deadline := time.Now().Add(shellAbandon)

	sh, err := s.openShell(true)
	if err != nil {
		s.logger.Debug("pty shell failed, trying plain",
			zap.String("profile", profile.Name), zap.Error(err))
		sh, err = s.openShell(false)
		if err != nil {
			return nil, err
		}
	}
	defer sh.close()

	if err := sh.waitPrompt(ctx, profile, promptWait); err != nil {
		// Some firmware accepts the PTY request and then hangs; retry
		// once on a plain shell within the overall budget.
		sh.close()
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("shell prompt: %w", err)
		}
		s.logger.Debug("no prompt on pty shell, retrying plain",
			zap.String("profile", profile.Name))
		sh, err = s.openShell(false)
		if err != nil {
			return nil, err
		}
		defer sh.close()
		if err := sh.waitPrompt(ctx, profile, remaining); err != nil {
			return nil, fmt.Errorf("shell prompt: %w", err)
		}
	}

	for _, pre := range profile.Preamble {
		if _, err := sh.run(ctx, profile, pre); err != nil {
			return nil, fmt.Errorf("preamble %q: %w", pre, err)
		}
	}

	results := make([]CommandResult, 0, len(commands))
	for _, cmd := range commands {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		out, err := sh.run(ctx, profile, cmd)
		if err != nil {
			return results, fmt.Errorf("shell command %q: %w", cmd, err)
		}
		results = append(results, CommandResult{Command: cmd, Output: out})
	}
	return results, nil
}

// waitPrompt blocks until the stripped output tail matches the prompt.
func (sh *shell) waitPrompt(ctx context.Context, profile *PromptProfile, budget time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	for {
		stripped := StripTerminal(sh.out.String())
		if profile.Prompt.MatchString(stripped) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// run issues one command and collects output up to the next prompt,
// feeding the pager whenever a pagination marker appears at the tail.
func (sh *shell) run(ctx context.Context, profile *PromptProfile, cmd string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	sh.out.Reset()
	if _, err := io.WriteString(sh.stdin, cmd+"\r"); err != nil {
		return "", err
	}

	var paged strings.Builder
	for {
		stripped := StripTerminal(sh.out.String())

		if profile.Prompt.MatchString(stripped) {
			paged.WriteString(stripped)
			return cleanOutput(paged.String(), cmd, profile), nil
		}

		if profile.Pagination != nil && profile.Pagination.MatchString(tail(stripped, 256)) {
			// Bank what we have minus the pager line, then advance.
			banked := StripTerminal(sh.out.Take())
			paged.WriteString(profile.Pagination.ReplaceAllString(banked, ""))
			if _, err := sh.stdin.Write(profile.PageResponse); err != nil {
				return "", err
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// cleanOutput drops the echoed command line, the trailing prompt line,
// and residual pagination markers.
func cleanOutput(s, cmd string, profile *PromptProfile) string {
	if profile.Pagination != nil {
		s = profile.Pagination.ReplaceAllString(s, "")
	}
	lines := strings.Split(s, "\n")

	// Echoed command, possibly wrapped by a narrow terminal.
	for len(lines) > 0 && strings.Contains(cmd, strings.TrimSpace(lines[0])) && strings.TrimSpace(lines[0]) != "" {
		lines = lines[1:]
	}
	// Trailing prompt.
	for len(lines) > 0 && profile.Prompt.MatchString(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
