// Package provider implements the provider pool spec.md §4.7 describes:
// a health filter gating the reliability tracker's circuit breaker, and a
// per-provider golang.org/x/time/rate limiter sitting in front of it so a
// provider that is merely rate-limiting doesn't trip the breaker as fast
// (SPEC_FULL.md §4.7's supplement). Grounded on the teacher's provider
// fan-out (bkyoung-code-reviewer/internal/usecase/review/orchestrator.go),
// generalized from one hardcoded WaitGroup loop into a reusable component.
package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mprcore/reviewd/internal/reliability"
)

// Provider is the minimal interface the pool dispatches to. HealthCheck
// should be cheap and fast: it gates whether the provider is even
// considered for dispatch this run.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error
}

// HealthResult records the outcome of one provider's health check.
type HealthResult struct {
	Name     string
	Healthy  bool
	Error    string
	Duration time.Duration
}

// Pool owns a reliability tracker and a per-provider rate limiter, and
// exposes the health-filter and circuit-gating operations the executor
// needs before dispatching calls.
type Pool struct {
	tracker  *reliability.Tracker
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	newLimiter func() *rate.Limiter
}

// NewPool builds a Pool. ratePerSecond/burst configure the default
// per-provider token bucket; a provider with no recorded calls yet starts
// with a full bucket.
func NewPool(tracker *reliability.Tracker, ratePerSecond float64, burst int) *Pool {
	if ratePerSecond <= 0 {
		ratePerSecond = 2
	}
	if burst <= 0 {
		burst = 2
	}
	return &Pool{
		tracker:  tracker,
		limiters: make(map[string]*rate.Limiter),
		newLimiter: func() *rate.Limiter {
			return rate.NewLimiter(rate.Limit(ratePerSecond), burst)
		},
	}
}

// Tracker exposes the pool's reliability tracker so the executor can
// record call outcomes after dispatch.
func (p *Pool) Tracker() *reliability.Tracker {
	return p.tracker
}

func (p *Pool) limiterFor(name string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[name]
	if !ok {
		l = p.newLimiter()
		p.limiters[name] = l
	}
	return l
}

// Allow reports whether name's rate limiter currently has a token
// available, without blocking. The executor calls this before a dispatch
// attempt so a provider that's merely rate-limiting (not failing) gets
// throttled locally rather than tripping the circuit breaker on a response
// it was never going to get to send.
func (p *Pool) Allow(name string) bool {
	return p.limiterFor(name).Allow()
}

// IsHealthy reports whether name's circuit breaker currently permits a
// call. It is the single gate spec.md's isCircuitOpen(name) names.
func (p *Pool) IsHealthy(name string) bool {
	return !p.tracker.IsCircuitOpen(name)
}

// FilterHealthyProviders issues a concurrent health check against each
// provider under ctx's deadline, cooperatively cancelling the rest once
// ctx is done, and returns the subset that both passed their health check
// and have a closed (or probing half-open) circuit, along with every
// individual result for logging/metrics.
func FilterHealthyProviders(ctx context.Context, pool *Pool, providers []Provider, timeout time.Duration) ([]Provider, []HealthResult) {
	type outcome struct {
		provider Provider
		result   HealthResult
	}

	checkCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		checkCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results := make(chan outcome, len(providers))
	var wg sync.WaitGroup

	for _, p := range providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			start := time.Now()
			err := p.HealthCheck(checkCtx)
			res := HealthResult{Name: p.Name(), Duration: time.Since(start)}
			if err != nil {
				res.Healthy = false
				res.Error = err.Error()
			} else {
				res.Healthy = true
			}
			results <- outcome{provider: p, result: res}
		}(p)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var healthy []Provider
	var all []HealthResult
	for o := range results {
		all = append(all, o.result)
		if o.result.Healthy && (pool == nil || pool.IsHealthy(o.result.Name)) {
			healthy = append(healthy, o.provider)
		}
	}

	return healthy, all
}
