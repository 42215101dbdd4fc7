package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Pool runs per-claim work on a bounded number of goroutines and keeps
// counters for the stats endpoints.
type Pool struct {
	concurrency int

	startedAtUnixNano int64
	lastRunUnixNano   atomic.Int64
	totalRuns         atomic.Int64
	totalProcessed    atomic.Int64
	totalErrors       atomic.Int64
	totalSkipped      atomic.Int64
	inFlight          atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func New(concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Pool{concurrency: concurrency, startedAtUnixNano: time.Now().UTC().UnixNano()}
}

func (p *Pool) WithConcurrency(n int) *Pool {
	if n > 0 {
		p.concurrency = n
	}
	return p
}

func (p *Pool) Concurrency() int { return p.concurrency }

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastRunAt      *time.Time `json:"lastRunAt,omitempty"`
	TotalRuns      int64      `json:"totalRuns"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalErrors    int64      `json:"totalErrors"`
	TotalSkipped   int64      `json:"totalSkipped"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (p *Pool) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalRuns:      p.totalRuns.Load(),
		TotalProcessed: p.totalProcessed.Load(),
		TotalErrors:    p.totalErrors.Load(),
		TotalSkipped:   p.totalSkipped.Load(),
		InFlight:       p.inFlight.Load(),
	}
	if n := p.lastRunUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastRunAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

// Run calls fn for every index in [0, n) with at most Concurrency calls in
// flight and waits for all of them. Once ctx is done no new call is started;
// skip is called for every index that was not dispatched.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error, skip func(i int)) {
	p.totalRuns.Add(1)
	p.lastRunUnixNano.Store(time.Now().UTC().UnixNano())

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			p.skip(i, skip)
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			p.skip(i, skip)
			continue
		}
		if ctx.Err() != nil {
			<-sem
			p.skip(i, skip)
			continue
		}

		wg.Add(1)
		p.inFlight.Add(1)
		go func(i int) {
			defer func() {
				p.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := fn(ctx, i); err != nil {
				p.totalErrors.Add(1)
				p.lastErrorMu.Lock()
				p.lastError = err.Error()
				p.lastErrorMu.Unlock()
			}
			p.totalProcessed.Add(1)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) skip(i int, skip func(i int)) {
	p.totalSkipped.Add(1)
	if skip != nil {
		skip(i)
	}
}
