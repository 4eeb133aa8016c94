package probe

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"gametunnel/internal/storage/models"
)

// Outcome holds the result of one probe attempt against one endpoint.
// A failed probe carries Err and an undefined latency.
type Outcome struct {
	Endpoint  *models.Endpoint
	LatencyMS float64
	Err       error
	At        time.Time
}

// Succeeded reports whether the probe completed its round trip.
func (o *Outcome) Succeeded() bool { return o.Err == nil }

// ProberConfig holds configuration for the Prober.
type ProberConfig struct {
	Workers  int64
	Timeout  time.Duration
	Strategy Strategy
}

// Prober issues one probe per endpoint, concurrently, bounded by a worker
// pool so a large endpoint list cannot cause unbounded fan-out.
type Prober struct {
	config ProberConfig
}

// NewProber creates a new Prober.
func NewProber(cfg ProberConfig) *Prober {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Strategy == nil {
		cfg.Strategy = &TCPStrategy{}
	}
	return &Prober{config: cfg}
}

// ProbeOne probes a single endpoint with the configured timeout.
func (p *Prober) ProbeOne(ctx context.Context, endpoint *models.Endpoint) Outcome {
	probeCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	latencyMS, err := p.config.Strategy.Probe(probeCtx, endpoint)
	return Outcome{
		Endpoint:  endpoint,
		LatencyMS: latencyMS,
		Err:       err,
		At:        time.Now(),
	}
}

// Run executes one probe round: every endpoint is probed concurrently and
// the call returns only when all probes have resolved or timed out, so the
// caller can score the round as a unit. Outcomes are returned in endpoint
// order. Individual failures are recorded in their Outcome, never returned
// as an error; cancellation of ctx aborts outstanding probes.
func (p *Prober) Run(ctx context.Context, endpoints []*models.Endpoint) []Outcome {
	outcomes := make([]Outcome, len(endpoints))

	sem := semaphore.NewWeighted(p.config.Workers)
	var wg sync.WaitGroup

	for i, endpoint := range endpoints {
		wg.Add(1)
		go func(idx int, ep *models.Endpoint) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[idx] = Outcome{Endpoint: ep, Err: err, At: time.Now()}
				return
			}
			defer sem.Release(1)

			outcomes[idx] = p.ProbeOne(ctx, ep)
		}(i, endpoint)
	}

	wg.Wait()
	return outcomes
}

// Strategy returns the name of the configured probe strategy.
func (p *Prober) StrategyName() string { return p.config.Strategy.Name() }
