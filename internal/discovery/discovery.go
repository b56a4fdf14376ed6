// Package discovery scans a subnet for reachable devices and suggests
// monitoring configurations for them.
package discovery

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/fuomag9/webstatus/internal/models"
	"github.com/fuomag9/webstatus/internal/probe"
)

// maxSubnetSize caps the number of addresses a single scan may cover, a /20
// for IPv4.
const maxSubnetSize = 4096

const (
	defaultConcurrency = 50
	hostnameTimeout    = 1 * time.Second
)

// Device is one reachable host found by a scan.
type Device struct {
	IP               string   `json:"ip"`
	Hostname         string   `json:"hostname,omitempty"`
	Status           string   `json:"status"`
	PingResponseTime *float64 `json:"ping_response_time"` // seconds
	HTTPEnabled      bool     `json:"http_enabled"`
	HTTPSEnabled     bool     `json:"https_enabled"`
	SuggestedType    string   `json:"suggested_type"`
	SuggestedName    string   `json:"suggested_name"`
}

// Suggestion is a ready-to-create monitoring configuration for a device.
type Suggestion struct {
	Name             string `json:"name"`
	Type             string `json:"type"`
	Address          string `json:"address"`
	CheckInterval    int    `json:"check_interval"`
	FailureThreshold int    `json:"failure_threshold"`
}

// Prober is the slice of the probe layer discovery needs.
type Prober interface {
	Check(ctx context.Context, target *models.Target) *probe.Result
}

// Scanner sweeps subnets with a bounded level of concurrency.
type Scanner struct {
	prober      Prober
	concurrency int64
	log         zerolog.Logger
}

// NewScanner creates a Scanner.
func NewScanner(prober Prober, log zerolog.Logger) *Scanner {
	return &Scanner{
		prober:      prober,
		concurrency: defaultConcurrency,
		log:         log.With().Str("component", "discovery").Logger(),
	}
}

// ScanSubnet pings every host address in the CIDR subnet and probes HTTP and
// HTTPS on responders. Unreachable hosts are omitted from the result.
func (s *Scanner) ScanSubnet(ctx context.Context, subnet string, checkHTTP bool) ([]Device, error) {
	prefix, err := netip.ParsePrefix(subnet)
	if err != nil {
		return nil, fmt.Errorf("invalid subnet %q: %w", subnet, err)
	}
	prefix = prefix.Masked()

	total := addressCount(prefix)
	if total > maxSubnetSize {
		return nil, fmt.Errorf("subnet too large: %d addresses (max %d)", total, maxSubnetSize)
	}

	hosts := enumerateHosts(prefix)
	if len(hosts) == 0 {
		return nil, fmt.Errorf("subnet %q contains no scannable addresses", subnet)
	}

	s.log.Info().Str("subnet", prefix.String()).Int("hosts", len(hosts)).Msg("starting discovery scan")

	sem := semaphore.NewWeighted(s.concurrency)
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var devices []Device

	for _, ip := range hosts {
		ip := ip
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			dev := s.scanHost(gctx, ip.String(), checkHTTP)
			if dev != nil {
				mu.Lock()
				devices = append(devices, *dev)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.log.Info().Str("subnet", prefix.String()).Int("found", len(devices)).Msg("discovery scan complete")
	return devices, nil
}

// ScanHost probes a single address. Returns nil when the host does not
// answer pings.
func (s *Scanner) ScanHost(ctx context.Context, ip string, checkHTTP bool) (*Device, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", ip, err)
	}
	return s.scanHost(ctx, addr.String(), checkHTTP), nil
}

func (s *Scanner) scanHost(ctx context.Context, ip string, checkHTTP bool) *Device {
	res := s.prober.Check(ctx, &models.Target{Type: models.KindPing, Address: ip})
	if !res.Success {
		return nil
	}

	dev := &Device{
		IP:               ip,
		Status:           models.StatusUp,
		PingResponseTime: res.ResponseTime,
		SuggestedType:    models.KindPing,
		SuggestedName:    ip,
	}

	if hostname := s.resolveHostname(ctx, ip); hostname != "" {
		dev.Hostname = hostname
		dev.SuggestedName = hostname
	}

	if checkHTTP {
		if r := s.prober.Check(ctx, &models.Target{Type: models.KindHTTPS, Address: ip}); r.Success {
			dev.HTTPSEnabled = true
		}
		if r := s.prober.Check(ctx, &models.Target{Type: models.KindHTTP, Address: ip}); r.Success {
			dev.HTTPEnabled = true
		}
		switch {
		case dev.HTTPSEnabled:
			dev.SuggestedType = models.KindHTTPS
		case dev.HTTPEnabled:
			dev.SuggestedType = models.KindHTTP
		}
	}

	return dev
}

// resolveHostname does a bounded reverse lookup; failure is not an error,
// the device just keeps its IP as its name.
func (s *Scanner) resolveHostname(ctx context.Context, ip string) string {
	rctx, cancel := context.WithTimeout(ctx, hostnameTimeout)
	defer cancel()

	names, err := net.DefaultResolver.LookupAddr(rctx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	name := names[0]
	if len(name) > 0 && name[len(name)-1] == '.' {
		name = name[:len(name)-1]
	}
	return name
}

// Suggest builds a monitoring configuration from a discovered device.
func Suggest(dev Device) Suggestion {
	name := dev.SuggestedName
	if name == "" {
		name = dev.IP
	}
	kind := dev.SuggestedType
	if kind == "" {
		kind = models.KindPing
	}
	return Suggestion{
		Name:             name,
		Type:             kind,
		Address:          dev.IP,
		CheckInterval:    60,
		FailureThreshold: 3,
	}
}

// enumerateHosts lists the host addresses of a prefix, skipping the network
// and broadcast addresses of IPv4 subnets larger than two addresses. The
// caller bounds the prefix size before enumeration.
func enumerateHosts(prefix netip.Prefix) []netip.Addr {
	var hosts []netip.Addr
	for addr := prefix.Addr(); prefix.Contains(addr); addr = addr.Next() {
		hosts = append(hosts, addr)
	}

	if prefix.Addr().Is4() && len(hosts) > 2 {
		hosts = hosts[1 : len(hosts)-1]
	}
	return hosts
}

// addressCount returns the number of addresses the prefix covers, saturating
// above the scan limit.
func addressCount(prefix netip.Prefix) int {
	hostBits := prefix.Addr().BitLen() - prefix.Bits()
	if hostBits > 20 {
		return maxSubnetSize + 1
	}
	return 1 << hostBits
}
