package probe

import (
	"context"
	"fmt"
	"net"
	"time"
)

// checkTCPFallback probes reachability with a TCP connect on port 80. Used
// when ICMP is unavailable on the host running the monitor.
func checkTCPFallback(ctx context.Context, address string, timeout time.Duration) *Result {
	result := &Result{Timestamp: time.Now().UTC()}

	dialer := &net.Dialer{Timeout: timeout}

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(address, "80"))
	if err != nil {
		result.Err = fmt.Sprintf("tcp fallback failed: %v", err)
		return result
	}
	conn.Close()

	result.Success = true
	result.ResponseTime = seconds(time.Since(start))
	return result
}
