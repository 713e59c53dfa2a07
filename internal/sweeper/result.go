package sweeper

import (
	"sort"
	"sync"
	"time"

	"github.com/m0h1nd4/parallel-ping-sweeper/internal/config"
	"github.com/m0h1nd4/parallel-ping-sweeper/internal/hosts"
)

// HostOutcome is the recorded result of probing one host.
type HostOutcome struct {
	IP        string
	Online    bool
	RTTMillis *float64
	Err       string
}

// Result is the aggregated output of one sweep. Outcomes are in enumeration
// order. Immutable once the sweep completes.
type Result struct {
	Network     hosts.Network
	Config      config.SweepConfig
	GeneratedAt time.Time
	Outcomes    []HostOutcome
	OnlineCount int
}

type indexedOutcome struct {
	index   int
	outcome HostOutcome
}

// collector gathers outcomes from concurrently completing probes. Insertion
// is mutex-guarded so completions never race or drop an update.
type collector struct {
	mu        sync.Mutex
	collected []indexedOutcome
}

func newCollector() *collector {
	return &collector{}
}

func (c *collector) record(index int, outcome HostOutcome) {
	c.mu.Lock()
	c.collected = append(c.collected, indexedOutcome{index: index, outcome: outcome})
	c.mu.Unlock()
}

// aggregate folds the out-of-order completions back into enumeration order
// and derives the online count. Called once, after all workers have exited.
func (c *collector) aggregate(network hosts.Network, cfg config.SweepConfig) *Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	sort.Slice(c.collected, func(i, j int) bool {
		return c.collected[i].index < c.collected[j].index
	})

	outcomes := make([]HostOutcome, 0, len(c.collected))
	online := 0
	for _, entry := range c.collected {
		outcomes = append(outcomes, entry.outcome)
		if entry.outcome.Online {
			online++
		}
	}

	return &Result{
		Network:     network,
		Config:      cfg,
		GeneratedAt: time.Now().UTC(),
		Outcomes:    outcomes,
		OnlineCount: online,
	}
}
