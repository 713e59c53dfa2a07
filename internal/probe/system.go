package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// SystemExecutor shells out to the platform ping binary and interprets its
// exit code: 0 means reachable, anything else means no reply or failure.
// It measures no RTT. Useful where ICMP sockets are unavailable.
type SystemExecutor struct {
	timeout time.Duration
	count   int
}

// NewSystemExecutor creates an executor backed by the OS ping command.
func NewSystemExecutor(opts Options) *SystemExecutor {
	return &SystemExecutor{
		timeout: time.Duration(opts.Timeout * float64(time.Second)),
		count:   opts.Count,
	}
}

// Probe runs one ping invocation against the address. The process is killed
// if it outlives the timeout plus a small cushion for startup overhead.
func (e *SystemExecutor) Probe(ctx context.Context, address string) Outcome {
	args := pingArgs(runtime.GOOS, address, e.count, e.timeout)

	cctx, cancel := context.WithTimeout(ctx, e.timeout+500*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(cctx, "ping", args...)
	cmd.Stdout = nil
	var stderr strings.Builder
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return Outcome{Online: true}
	}

	if cctx.Err() != nil {
		return Outcome{Err: ErrTimeout}
	}
	if errors.Is(err, exec.ErrNotFound) {
		return Outcome{Err: fmt.Sprintf("%s: ping binary not found", ErrProbeError)}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Non-zero exit with quiet stderr is the ordinary no-reply case.
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return Outcome{Err: fmt.Sprintf("%s: %s", ErrProbeError, firstLine(msg))}
		}
		return Outcome{}
	}

	return Outcome{Err: fmt.Sprintf("%s: %v", ErrProbeError, err)}
}

// pingArgs builds the argument list for the platform ping binary. Timeout
// flags differ per OS: Windows takes milliseconds with -w, Linux whole
// seconds with -W, macOS milliseconds with -W.
func pingArgs(goos, address string, count int, timeout time.Duration) []string {
	var args []string

	if strings.Contains(address, ":") {
		args = append(args, "-6")
	}

	timeoutMillis := int(timeout / time.Millisecond)
	if timeoutMillis < 1 {
		timeoutMillis = 1
	}
	timeoutSecs := int(timeout / time.Second)
	if timeoutSecs < 1 {
		timeoutSecs = 1
	}

	switch goos {
	case "windows":
		args = append(args, "-n", strconv.Itoa(count), "-w", strconv.Itoa(timeoutMillis))
	case "darwin":
		args = append(args, "-c", strconv.Itoa(count), "-W", strconv.Itoa(timeoutMillis))
	default:
		args = append(args, "-c", strconv.Itoa(count), "-W", strconv.Itoa(timeoutSecs))
	}

	return append(args, address)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
