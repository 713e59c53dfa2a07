package probe

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ICMPExecutor probes hosts with ICMP echo requests through pro-bing.
// Unprivileged mode uses UDP datagram sockets and works without root on
// most systems; privileged mode opens raw sockets.
type ICMPExecutor struct {
	timeout    time.Duration
	count      int
	privileged bool
}

// NewICMPExecutor creates an ICMP executor from the given options.
func NewICMPExecutor(opts Options) *ICMPExecutor {
	return &ICMPExecutor{
		timeout:    time.Duration(opts.Timeout * float64(time.Second)),
		count:      opts.Count,
		privileged: opts.Privileged,
	}
}

// Probe sends the configured number of echo requests and waits at most the
// configured timeout for replies.
func (e *ICMPExecutor) Probe(ctx context.Context, address string) Outcome {
	pinger, err := probing.NewPinger(address)
	if err != nil {
		return Outcome{Err: fmt.Sprintf("%s: %v", ErrProbeError, err)}
	}

	pinger.Count = e.count
	pinger.Timeout = e.timeout
	pinger.SetPrivileged(e.privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		if ctx.Err() != nil {
			return Outcome{Err: ErrTimeout}
		}
		return Outcome{Err: fmt.Sprintf("%s: %v", ErrProbeError, err)}
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return Outcome{Err: ErrTimeout}
	}

	rtt := float64(stats.AvgRtt) / float64(time.Millisecond)
	return Outcome{Online: true, RTTMillis: &rtt}
}
