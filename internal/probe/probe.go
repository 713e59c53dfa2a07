// Package probe implements reachability probes against single host
// addresses. Two executors are provided: an ICMP executor built on pro-bing
// and a fallback that shells out to the operating system ping binary.
package probe

import "context"

// Error classifications recorded in an Outcome. An empty Err with
// Online=false means the host simply did not answer.
const (
	ErrTimeout    = "timeout"
	ErrProbeError = "probe-error"
)

// Outcome is the result of probing one address.
type Outcome struct {
	Online bool
	// RTTMillis is the measured round-trip time in milliseconds, nil when
	// the executor cannot measure it.
	RTTMillis *float64
	Err       string
}

// Executor tests a single address for reachability. Implementations must
// honor their configured timeout and never block indefinitely; mechanism
// failures (permissions, missing binary) are reported through Outcome.Err
// rather than swallowed into a plain offline result.
type Executor interface {
	Probe(ctx context.Context, address string) Outcome
}

// Options configures an executor.
type Options struct {
	// Timeout is the per-host probe deadline.
	Timeout float64 // seconds
	// Count is the number of echo requests per probe.
	Count int
	// Privileged selects raw-socket ICMP instead of UDP datagram pings.
	// Only meaningful for the ICMP executor.
	Privileged bool
}
