package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-ping/ping"

	"github.com/fuomag9/webstatus/internal/config"
	"github.com/fuomag9/webstatus/internal/models"
)

// PingChecker performs ICMP ping checks with a TCP connect fallback for
// environments where raw/UDP ICMP sockets are unavailable.
type PingChecker struct {
	perPacketTimeout time.Duration
	packetCount      int
	minSuccess       int
}

func newPingChecker(cfg config.MonitoringConfig) *PingChecker {
	return &PingChecker{
		perPacketTimeout: time.Duration(cfg.PingTimeout) * time.Second,
		packetCount:      cfg.PingPacketCount,
		minSuccess:       cfg.PingMinSuccess,
	}
}

func (p *PingChecker) Kind() string {
	return models.KindPing
}

func (p *PingChecker) Validate(target *models.Target) error {
	if strings.TrimSpace(target.Address) == "" {
		return fmt.Errorf("address is required")
	}
	return nil
}

func (p *PingChecker) Check(ctx context.Context, target *models.Target) *Result {
	result := &Result{Timestamp: time.Now().UTC()}
	address := strings.TrimSpace(target.Address)
	if address == "" {
		result.Err = "no address specified"
		return result
	}

	pinger, err := ping.NewPinger(address)
	if err != nil {
		result.Err = fmt.Sprintf("failed to resolve %s: %v", address, err)
		return result
	}

	pinger.Count = p.packetCount
	// Total budget: every packet gets its per-packet timeout, plus the
	// default ~1s interval between sends.
	pinger.Timeout = p.perPacketTimeout*time.Duration(p.packetCount) +
		time.Duration(p.packetCount)*time.Second
	pinger.SetPrivileged(false) // unprivileged UDP mode

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case <-ctx.Done():
		pinger.Stop()
		result.Err = "ping cancelled"
		return result
	case err = <-done:
	}

	if err != nil {
		if icmpUnavailable(err) {
			// No ICMP capability here. A TCP connect on port 80 still tells
			// us whether the host is alive.
			return checkTCPFallback(ctx, address, p.perPacketTimeout)
		}
		result.Err = fmt.Sprintf("ping failed: %v", err)
		return result
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv < p.minSuccess {
		result.Err = fmt.Sprintf("%.0f%% packet loss (%d/%d received)",
			stats.PacketLoss, stats.PacketsRecv, stats.PacketsSent)
		return result
	}

	result.Success = true
	if stats.AvgRtt > 0 {
		result.ResponseTime = seconds(stats.AvgRtt)
	} else {
		result.ResponseTime = seconds(time.Since(start))
	}
	return result
}

// icmpUnavailable reports whether the ping failure means the environment
// cannot send ICMP/UDP echo at all, as opposed to the host being down.
func icmpUnavailable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "operation not permitted") ||
		strings.Contains(msg, "socket: protocol not supported")
}
