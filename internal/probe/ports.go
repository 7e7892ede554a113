// Package probe contains the stateless network probes used during
// discovery: TCP port probing, one-shot mDNS sweeps, SNMP queries, and
// MAC-OUI vendor lookup.
package probe

import (
	"context"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ManagementPorts are the TCP ports tried on every candidate device.
var ManagementPorts = []int{
	22,   // SSH
	23,   // Telnet
	80,   // HTTP management UI
	161,  // SNMP over TCP
	443,  // HTTPS management UI
	8080, // HTTP alt
	8291, // Winbox (MikroTik RouterOS)
	8443, // HTTPS alt
	8728, // MikroTik API
}

// PortProber performs concurrent TCP connect probes against one host.
type PortProber struct {
	timeout time.Duration
	logger  *zap.Logger

	// dial is swapped in tests.
	dial func(ctx context.Context, addr string, timeout time.Duration) bool
}

// NewPortProber creates a prober with the given per-port timeout
// (default 3 s).
func NewPortProber(timeout time.Duration, logger *zap.Logger) *PortProber {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	p := &PortProber{timeout: timeout, logger: logger}
	p.dial = p.tcpConnect
	return p
}

// Open returns the sorted subset of ports that completed a TCP
// handshake within the timeout. Individual port failures (refused,
// unreachable, timeout) are swallowed; there are no retries.
func (p *PortProber) Open(ctx context.Context, ip string, ports []int) []int {
	var mu sync.Mutex
	var wg sync.WaitGroup
	var open []int

	for _, port := range ports {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			addr := net.JoinHostPort(ip, strconv.Itoa(port))
			if p.dial(ctx, addr, p.timeout) {
				mu.Lock()
				open = append(open, port)
				mu.Unlock()
			}
		}(port)
	}
	wg.Wait()

	sort.Ints(open)

	p.logger.Debug("port probe complete",
		zap.String("ip", ip),
		zap.Ints("open", open),
	)
	return open
}

// WithDialer swaps the TCP dialer, letting probes ride a jump-host
// tunnel when the scanner has no direct route.
func (p *PortProber) WithDialer(dial func(ctx context.Context, network, addr string) (net.Conn, error)) *PortProber {
	p.dial = func(ctx context.Context, addr string, timeout time.Duration) bool {
		dctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		conn, err := dial(dctx, "tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
	return p
}

func (p *PortProber) tcpConnect(ctx context.Context, addr string, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
