package probe

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

// mdnsServices are the service types browsed during a sweep. The
// workstation and device-info types cover most hostname-advertising
// LAN gear; the rest catch printers, NAS boxes, and cameras.
var mdnsServices = []string{
	"_workstation._tcp",
	"_device-info._tcp",
	"_ssh._tcp",
	"_http._tcp",
	"_ipp._tcp",
	"_smb._tcp",
	"_airplay._tcp",
}

// MDNSSweeper performs a one-shot LAN sweep collecting hostname hints
// by IP. Results enrich devices that expose no other name source.
type MDNSSweeper struct {
	budget time.Duration
	iface  string // optional interface name to bind, "" for all
	logger *zap.Logger
}

// NewMDNSSweeper creates a sweeper with the given time budget
// (default 5 s). iface optionally restricts the sweep to one network
// interface (VPN-attached deployments).
func NewMDNSSweeper(budget time.Duration, iface string, logger *zap.Logger) *MDNSSweeper {
	if budget <= 0 {
		budget = 5 * time.Second
	}
	return &MDNSSweeper{budget: budget, iface: iface, logger: logger}
}

// Sweep browses the mDNS service types and returns a map of IP to
// hostname. The whole sweep shares one deadline; failures of a single
// service browse are swallowed.
func (s *MDNSSweeper) Sweep(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	var opts []zeroconf.ClientOption
	if s.iface != "" {
		if ifi, err := net.InterfaceByName(s.iface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*ifi}))
		} else {
			s.logger.Warn("mdns interface not found, using all",
				zap.String("iface", s.iface), zap.Error(err))
		}
	}

	hints := make(map[string]string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, service := range mdnsServices {
		resolver, err := zeroconf.NewResolver(opts...)
		if err != nil {
			s.logger.Warn("mdns resolver failed", zap.Error(err))
			continue
		}

		entries := make(chan *zeroconf.ServiceEntry, 32)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range entries {
				host := strings.TrimSuffix(e.HostName, ".local.")
				host = strings.TrimSuffix(host, ".")
				if host == "" {
					continue
				}
				mu.Lock()
				for _, ip := range e.AddrIPv4 {
					if _, seen := hints[ip.String()]; !seen {
						hints[ip.String()] = host
					}
				}
				mu.Unlock()
			}
		}()

		if err := resolver.Browse(ctx, service, "local.", entries); err != nil {
			s.logger.Debug("mdns browse failed",
				zap.String("service", service), zap.Error(err))
		}
	}

	<-ctx.Done()
	wg.Wait()

	s.logger.Info("mdns sweep complete", zap.Int("hosts", len(hints)))
	return hints
}
