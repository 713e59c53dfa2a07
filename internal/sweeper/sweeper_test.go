package sweeper

import (
	"context"
	"math/rand"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/m0h1nd4/parallel-ping-sweeper/internal/config"
	"github.com/m0h1nd4/parallel-ping-sweeper/internal/hosts"
	"github.com/m0h1nd4/parallel-ping-sweeper/internal/probe"
)

type stubExecutor func(ctx context.Context, address string) probe.Outcome

func (s stubExecutor) Probe(ctx context.Context, address string) probe.Outcome {
	return s(ctx, address)
}

func testConfig() config.SweepConfig {
	return config.SweepConfig{
		Concurrency: 8,
		TimeoutS:    1.0,
		Count:       1,
		Probe:       "icmp",
	}
}

func mustNetwork(t *testing.T, s string) hosts.Network {
	t.Helper()
	n, err := hosts.ParseNetwork(s)
	if err != nil {
		t.Fatalf("ParseNetwork(%q) failed: %v", s, err)
	}
	return n
}

func run(t *testing.T, cfg config.SweepConfig, network string, executor probe.Executor) *Result {
	t.Helper()
	s := New(cfg, executor, zap.NewNop().Sugar())
	result, err := s.Run(context.Background(), mustNetwork(t, network))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return result
}

func TestRun_EveryHostExactlyOnceInOrder(t *testing.T) {
	// Workers complete out of order; the result must not.
	executor := stubExecutor(func(ctx context.Context, address string) probe.Outcome {
		time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
		return probe.Outcome{Online: true}
	})

	result := run(t, testConfig(), "192.168.1.0/28", executor)

	if len(result.Outcomes) != 14 {
		t.Fatalf("expected 14 outcomes, got %d", len(result.Outcomes))
	}

	seen := make(map[string]bool)
	var prev netip.Addr
	for i, outcome := range result.Outcomes {
		if seen[outcome.IP] {
			t.Errorf("duplicate outcome for %s", outcome.IP)
		}
		seen[outcome.IP] = true

		addr, err := netip.ParseAddr(outcome.IP)
		if err != nil {
			t.Fatalf("outcome %d has unparsable address %q", i, outcome.IP)
		}
		if i > 0 && addr.Compare(prev) <= 0 {
			t.Errorf("outcome %d (%s) not in ascending order after %s", i, outcome.IP, prev)
		}
		prev = addr
	}

	if result.Outcomes[0].IP != "192.168.1.1" || result.Outcomes[13].IP != "192.168.1.14" {
		t.Errorf("unexpected bounds: first %s last %s", result.Outcomes[0].IP, result.Outcomes[13].IP)
	}
}

func TestRun_OnlineCountMatchesOutcomes(t *testing.T) {
	executor := stubExecutor(func(ctx context.Context, address string) probe.Outcome {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		return probe.Outcome{Online: rand.Intn(2) == 0}
	})

	result := run(t, testConfig(), "10.1.0.0/26", executor)

	if len(result.Outcomes) != 62 {
		t.Fatalf("expected 62 outcomes, got %d", len(result.Outcomes))
	}

	online := 0
	for _, outcome := range result.Outcomes {
		if outcome.Online {
			online++
		}
	}
	if result.OnlineCount != online {
		t.Errorf("OnlineCount = %d, but %d outcomes are online", result.OnlineCount, online)
	}
}

func TestRun_ConcurrencyCeiling(t *testing.T) {
	var current, peak int64

	executor := stubExecutor(func(ctx context.Context, address string) probe.Outcome {
		n := atomic.AddInt64(&current, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return probe.Outcome{Online: false}
	})

	cfg := testConfig()
	cfg.Concurrency = 3
	run(t, cfg, "10.2.0.0/27", executor)

	if got := atomic.LoadInt64(&peak); got > 3 {
		t.Errorf("peak in-flight probes = %d, ceiling is 3", got)
	}
	if got := atomic.LoadInt64(&peak); got == 0 {
		t.Error("stub executor was never invoked")
	}
}

func TestRun_HungProbeRecordedAsTimeout(t *testing.T) {
	executor := stubExecutor(func(ctx context.Context, address string) probe.Outcome {
		// Never answers on its own; only the scheduler's deadline frees it.
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		return probe.Outcome{Online: true}
	})

	cfg := testConfig()
	cfg.TimeoutS = 0.1

	start := time.Now()
	result := run(t, cfg, "192.168.1.0/30", executor)
	elapsed := time.Since(start)

	for _, outcome := range result.Outcomes {
		if outcome.Online {
			t.Errorf("%s: hung probe reported online", outcome.IP)
		}
		if outcome.Err != "timeout" {
			t.Errorf("%s: expected error %q, got %q", outcome.IP, "timeout", outcome.Err)
		}
	}
	if result.OnlineCount != 0 {
		t.Errorf("OnlineCount = %d, want 0", result.OnlineCount)
	}
	if elapsed > 3*time.Second {
		t.Errorf("sweep took %s, hung probes must be bounded by the timeout", elapsed)
	}
}

func TestRun_ExecutorErrorsAreAbsorbed(t *testing.T) {
	executor := stubExecutor(func(ctx context.Context, address string) probe.Outcome {
		return probe.Outcome{Err: "probe-error: socket: permission denied"}
	})

	result := run(t, testConfig(), "192.168.1.0/29", executor)

	if len(result.Outcomes) != 6 {
		t.Fatalf("expected 6 outcomes, got %d", len(result.Outcomes))
	}
	for _, outcome := range result.Outcomes {
		if outcome.Online {
			t.Errorf("%s: failed probe reported online", outcome.IP)
		}
		if !strings.HasPrefix(outcome.Err, "probe-error") {
			t.Errorf("%s: expected probe-error classification, got %q", outcome.IP, outcome.Err)
		}
	}
}

func TestRun_MixedOutcomes(t *testing.T) {
	rtt := 5.2
	executor := stubExecutor(func(ctx context.Context, address string) probe.Outcome {
		if address == "192.168.1.1" {
			return probe.Outcome{Online: true, RTTMillis: &rtt}
		}
		return probe.Outcome{Err: "timeout"}
	})

	result := run(t, testConfig(), "192.168.1.0/30", executor)

	if result.OnlineCount != 1 {
		t.Errorf("OnlineCount = %d, want 1", result.OnlineCount)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(result.Outcomes))
	}

	first := result.Outcomes[0]
	if first.IP != "192.168.1.1" || !first.Online || first.RTTMillis == nil || *first.RTTMillis != 5.2 || first.Err != "" {
		t.Errorf("unexpected first outcome: %+v", first)
	}

	second := result.Outcomes[1]
	if second.IP != "192.168.1.2" || second.Online || second.RTTMillis != nil || second.Err != "timeout" {
		t.Errorf("unexpected second outcome: %+v", second)
	}
}

func TestRun_RateLimitedSweepStillCoversEveryHost(t *testing.T) {
	var invocations int64
	executor := stubExecutor(func(ctx context.Context, address string) probe.Outcome {
		atomic.AddInt64(&invocations, 1)
		return probe.Outcome{Online: true}
	})

	cfg := testConfig()
	cfg.RateLimit = 1000
	result := run(t, cfg, "10.3.0.0/28", executor)

	if len(result.Outcomes) != 14 {
		t.Errorf("expected 14 outcomes, got %d", len(result.Outcomes))
	}
	if got := atomic.LoadInt64(&invocations); got != 14 {
		t.Errorf("executor invoked %d times, want 14", got)
	}
}

func TestRun_InvalidNetworkNeverDispatches(t *testing.T) {
	var invoked int64
	executor := stubExecutor(func(ctx context.Context, address string) probe.Outcome {
		atomic.AddInt64(&invoked, 1)
		return probe.Outcome{}
	})

	_, err := hosts.ParseNetwork("not-a-network")
	if err == nil {
		t.Fatal("expected parse error for invalid network")
	}

	// Parsing is the gate: a sweep can only be constructed from a parsed
	// network, so no probes can ever be dispatched for invalid input.
	if atomic.LoadInt64(&invoked) != 0 {
		t.Error("executor invoked for invalid network")
	}
	_ = executor
}

func TestCollector_ConcurrentRecordsAreLossless(t *testing.T) {
	c := newCollector()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.record(i, HostOutcome{IP: "10.0.0.1", Online: i%2 == 0})
		}(i)
	}
	wg.Wait()

	result := c.aggregate(hosts.Network{}, config.SweepConfig{})
	if len(result.Outcomes) != 200 {
		t.Fatalf("expected 200 outcomes, got %d", len(result.Outcomes))
	}
	if result.OnlineCount != 100 {
		t.Errorf("OnlineCount = %d, want 100", result.OnlineCount)
	}
}
