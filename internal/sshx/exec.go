package sshx

import (
	"context"
	"fmt"
	"time"
)

// DefaultExecTimeout bounds a single exec-channel command.
const DefaultExecTimeout = 10 * time.Second

// Exec runs one command over a fresh exec channel and returns combined
// stdout+stderr. Suitable for devices whose SSH server supports exec
// requests (RouterOS, Ruckus); shell-only firmware drops the
// connection instead, in which case the caller falls back to Shell.
func (s *Session) Exec(ctx context.Context, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultExecTimeout)
	defer cancel()

	sess, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("open exec channel: %w", err)
	}
	defer sess.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := sess.CombinedOutput(command)
		done <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		// Closing the channel unblocks CombinedOutput.
		_ = sess.Close()
		return "", fmt.Errorf("exec %q: %w", command, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("exec %q: %w", command, r.err)
		}
		return StripTerminal(string(r.out)), nil
	}
}
