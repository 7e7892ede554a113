package sshx

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// probeTimeout bounds the direct-tcpip capability test.
const probeTimeout = 5 * time.Second

// JumpState tracks whether the root device can relay TCP for us.
type JumpState int

const (
	// JumpAbsent: no jump session established yet.
	JumpAbsent JumpState = iota
	// JumpEstablished: session open, forwarding capability untested.
	JumpEstablished
	// JumpSupported: direct-tcpip probe succeeded.
	JumpSupported
	// JumpUnsupported: direct-tcpip probe failed; dial direct instead.
	JumpUnsupported
)

func (s JumpState) String() string {
	switch s {
	case JumpAbsent:
		return "absent"
	case JumpEstablished:
		return "established"
	case JumpSupported:
		return "supported"
	case JumpUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// ErrNoJumpHost is returned by Forward when tunneling is unavailable.
var ErrNoJumpHost = errors.New("jump host unavailable")

// JumpHost relays TCP connections through the root device's SSH server
// via direct-tcpip channels, reaching devices the scanner host has no
// route to. A dedicated second session is used so channel traffic never
// competes with the root device's command session.
type JumpHost struct {
	mu     sync.Mutex
	state  JumpState
	sess   *Session
	logger *zap.Logger
}

// NewJumpHost creates an empty manager in the absent state.
func NewJumpHost(logger *zap.Logger) *JumpHost {
	return &JumpHost{state: JumpAbsent, logger: logger}
}

// Establish adopts sess as the relay session and probes whether its
// server honors direct-tcpip by opening a channel back to probeAddr
// (the root's own SSH port). The probe result is sticky for the life
// of the session.
func (j *JumpHost) Establish(ctx context.Context, sess *Session, probeIP string, probePort int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.sess != nil {
		_ = j.sess.Close()
	}
	j.sess = sess
	j.state = JumpEstablished

	addr := net.JoinHostPort(probeIP, strconv.Itoa(probePort))
	conn, err := dialThrough(ctx, sess.Client(), addr, probeTimeout)
	if err != nil {
		j.state = JumpUnsupported
		j.logger.Info("jump host does not support forwarding",
			zap.String("probe", addr), zap.Error(err))
		return
	}
	conn.Close()
	j.state = JumpSupported
	j.logger.Info("jump host forwarding available", zap.String("probe", addr))
}

// State returns the current relay state.
func (j *JumpHost) State() JumpState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Supported reports whether Forward will tunnel.
func (j *JumpHost) Supported() bool {
	return j.State() == JumpSupported
}

// Forward opens a tunneled TCP connection to addr through the jump
// session. Callers fall back to direct dialing on ErrNoJumpHost. The
// lock covers only the state read; concurrent port probes dial their
// direct-tcpip channels in parallel.
func (j *JumpHost) Forward(ctx context.Context, network, addr string) (net.Conn, error) {
	j.mu.Lock()
	state, sess := j.state, j.sess
	j.mu.Unlock()

	if state != JumpSupported || sess == nil {
		return nil, ErrNoJumpHost
	}
	if network != "tcp" {
		return nil, fmt.Errorf("jump host: unsupported network %q", network)
	}

	deadline := probeTimeout
	if d, ok := ctx.Deadline(); ok {
		if r := time.Until(d); r < deadline {
			deadline = r
		}
	}
	return dialThrough(ctx, sess.Client(), addr, deadline)
}

// dialThrough opens a direct-tcpip channel with a timeout; the x/crypto
// Dial has none of its own.
func dialThrough(ctx context.Context, client *ssh.Client, addr string, timeout time.Duration) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := client.Dial("tcp", addr)
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		return r.conn, r.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("direct-tcpip %s: timeout after %s", addr, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// HTTPClient returns a client whose connections ride the tunnel.
// Device management UIs present self-signed certificates, and keep-
// alive is disabled because each request consumes one SSH channel.
func (j *JumpHost) HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:       j.Forward,
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // device self-signed certs
			DisableKeepAlives: true,
		},
	}
}

// Close tears down the relay session and returns to the absent state.
func (j *JumpHost) Close() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.sess != nil {
		_ = j.sess.Close()
		j.sess = nil
	}
	j.state = JumpAbsent
}
