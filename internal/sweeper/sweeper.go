// Package sweeper implements the concurrent reachability sweep: bounded
// probe dispatch over an enumerated address stream and order-preserving
// aggregation of the outcomes.
package sweeper

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/m0h1nd4/parallel-ping-sweeper/internal/config"
	"github.com/m0h1nd4/parallel-ping-sweeper/internal/hosts"
	"github.com/m0h1nd4/parallel-ping-sweeper/internal/probe"
)

// probeGrace is the cushion added to the per-probe deadline so the executor
// gets a chance to report its own timeout before the scheduler abandons it.
const probeGrace = 500 * time.Millisecond

// Sweeper runs bounded-concurrency sweeps over CIDR blocks.
type Sweeper struct {
	config   config.SweepConfig
	executor probe.Executor
	logger   *zap.SugaredLogger
	limiter  *rate.Limiter
	progress bool
}

// New creates a Sweeper. The executor is invoked once per enumerated host;
// a rate limiter gates probe admissions when the config asks for one.
func New(cfg config.SweepConfig, executor probe.Executor, logger *zap.SugaredLogger) *Sweeper {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}

	return &Sweeper{
		config:   cfg,
		executor: executor,
		logger:   logger,
		limiter:  limiter,
	}
}

// NewExecutor builds the probe executor the config selects.
func NewExecutor(cfg config.SweepConfig) probe.Executor {
	opts := probe.Options{
		Timeout:    cfg.TimeoutS,
		Count:      cfg.Count,
		Privileged: cfg.Privileged,
	}
	if cfg.Probe == "system" {
		return probe.NewSystemExecutor(opts)
	}
	return probe.NewICMPExecutor(opts)
}

// SetProgress toggles the console progress bar. Off by default; the CLI
// enables it for interactive runs.
func (s *Sweeper) SetProgress(enabled bool) {
	s.progress = enabled && !s.config.Quiet
}

type task struct {
	index int
	addr  string
}

// Run sweeps every usable host of the network and returns the aggregated
// result in enumeration order. Individual probe failures never abort the
// sweep; the only error path is a failing enumerator.
func (s *Sweeper) Run(ctx context.Context, network hosts.Network) (*Result, error) {
	enum := hosts.NewEnumerator(network)
	stream, err := enum.Stream(ctx)
	if err != nil {
		return nil, err
	}

	total := enum.Count()
	start := time.Now()
	s.logger.Infow("Starting sweep",
		"network", network.String(),
		"hosts", total,
		"concurrency", s.config.Concurrency,
		"timeout_s", s.config.TimeoutS,
	)

	var bar *progressbar.ProgressBar
	if s.progress && total > 0 && total <= math.MaxInt32 {
		bar = newBar(int(total))
	}

	collector := newCollector()
	tasks := make(chan task)

	var workerWg sync.WaitGroup
	for i := 0; i < s.config.Concurrency; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			s.worker(ctx, tasks, collector, bar)
		}()
	}

	// Feed the pool directly from the enumerator so admission follows
	// enumeration order and the pool stays saturated until the block is
	// exhausted.
	index := 0
	for addr := range stream {
		tasks <- task{index: index, addr: addr}
		index++
	}
	close(tasks)
	workerWg.Wait()

	if bar != nil {
		_ = bar.Finish()
	}

	result := collector.aggregate(network, s.config)
	s.logger.Infow("Sweep complete",
		"network", network.String(),
		"hosts", len(result.Outcomes),
		"online", result.OnlineCount,
		"duration", time.Since(start).String(),
	)

	return result, nil
}

func (s *Sweeper) worker(ctx context.Context, tasks <-chan task, collector *collector, bar *progressbar.ProgressBar) {
	for t := range tasks {
		outcome := s.admitAndProbe(ctx, t.addr)
		collector.record(t.index, HostOutcome{
			IP:        t.addr,
			Online:    outcome.Online,
			RTTMillis: outcome.RTTMillis,
			Err:       outcome.Err,
		})
		if bar != nil {
			_ = bar.Add(1)
		}
	}
}

func (s *Sweeper) admitAndProbe(ctx context.Context, addr string) probe.Outcome {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return probe.Outcome{Err: fmt.Sprintf("%s: %v", probe.ErrProbeError, err)}
		}
	}
	return s.probeOne(ctx, addr)
}

// probeOne enforces the per-probe deadline independently of the executor: a
// hung probe is abandoned after timeout plus grace so it never occupies a
// pool slot for the rest of the sweep.
func (s *Sweeper) probeOne(ctx context.Context, addr string) probe.Outcome {
	deadline := time.Duration(s.config.TimeoutS*float64(time.Second)) + probeGrace
	pctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	done := make(chan probe.Outcome, 1)
	go func() {
		done <- s.executor.Probe(pctx, addr)
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-pctx.Done():
		return probe.Outcome{Err: probe.ErrTimeout}
	}
}

func newBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("sweeping"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionClearOnFinish(),
	)
}
