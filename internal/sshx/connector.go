// Package sshx provides SSH session establishment against aged network
// gear: legacy key exchange, credential retry, exec and scripted-shell
// channel modes, and jump-host tunneling over direct-tcpip.
package sshx

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// Defaults for session establishment.
const (
	DefaultConnectTimeout = 15 * time.Second
	connectAttempts       = 3
	connectRetryGap       = 500 * time.Millisecond
)

// legacyKeyExchanges covers the KEX algorithms old switches still
// offer. Order matters: modern first, ancient last.
var legacyKeyExchanges = []string{
	"curve25519-sha256",
	"curve25519-sha256@libssh.org",
	"ecdh-sha2-nistp256",
	"diffie-hellman-group14-sha256",
	"diffie-hellman-group14-sha1",
	"diffie-hellman-group1-sha1",
	"diffie-hellman-group-exchange-sha1",
}

// legacyCiphers adds CBC modes for devices predating CTR support.
var legacyCiphers = []string{
	"aes128-gcm@openssh.com",
	"aes128-ctr", "aes192-ctr", "aes256-ctr",
	"aes128-cbc", "aes256-cbc", "3des-cbc",
}

// DialFunc establishes the underlying TCP stream for an SSH session.
// The default is a plain net.Dialer; the jump-host manager supplies a
// tunneled variant.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Session is an authenticated SSH connection to one device.
type Session struct {
	client *ssh.Client
	logger *zap.Logger

	// Banner is the server's SSH version string, e.g. "SSH-2.0-ROSSSH".
	// Used for vendor detection before any command is issued.
	Banner string
}

// Connector establishes SSH sessions with retry and legacy algorithm
// support.
type Connector struct {
	dial    DialFunc
	timeout time.Duration
	logger  *zap.Logger
}

// NewConnector creates a connector using the given dialer (nil for a
// plain TCP dialer) and per-attempt timeout (0 for the default 15 s).
func NewConnector(dial DialFunc, timeout time.Duration, logger *zap.Logger) *Connector {
	if dial == nil {
		d := &net.Dialer{}
		dial = d.DialContext
	}
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	return &Connector{dial: dial, timeout: timeout, logger: logger}
}

// Connect authenticates against ip:port with the given credentials.
// Up to three attempts are made with a 500 ms gap. Target devices use
// self-issued host keys, so verification is disabled.
func (c *Connector) Connect(ctx context.Context, ip string, port int, username, password string) (*Session, error) {
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(ip, strconv.Itoa(port))

	cfg := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // devices use self-issued keys
		Timeout:         c.timeout,
	}
	cfg.KeyExchanges = legacyKeyExchanges
	cfg.Ciphers = legacyCiphers

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		sess, err := c.connectOnce(ctx, addr, cfg)
		if err == nil {
			return sess, nil
		}
		lastErr = err

		// Auth rejections are final for this credential; only
		// transport-level failures are worth retrying.
		if isAuthError(err) {
			break
		}

		c.logger.Debug("ssh connect attempt failed",
			zap.String("addr", addr),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < connectAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(connectRetryGap):
			}
		}
	}
	return nil, fmt.Errorf("ssh connect %s: %w", addr, lastErr)
}

func (c *Connector) connectOnce(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*Session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dial(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	// Enforce the handshake deadline on the raw conn; ssh.ClientConfig
	// Timeout only covers the TCP dial when ssh.Dial is used directly.
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return &Session{
		client: ssh.NewClient(sshConn, chans, reqs),
		logger: c.logger,
		Banner: string(sshConn.ServerVersion()),
	}, nil
}

// Close terminates the session.
func (s *Session) Close() error {
	return s.client.Close()
}

// Client exposes the underlying ssh.Client for tunneling.
func (s *Session) Client() *ssh.Client {
	return s.client
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain") ||
		strings.Contains(msg, "permission denied")
}
