// Package executor implements the LLM dispatch phase spec.md §4.8
// describes: concurrent calls under a semaphore, per-call retry on
// rate-limiting with capped exponential backoff, and budget enforcement
// via internal/cost. Grounded on the teacher's provider fan-out
// (bkyoung-code-reviewer/internal/usecase/review/orchestrator.go, lines
// ~476-636: a sync.WaitGroup plus a buffered channel of result structs),
// generalized to golang.org/x/sync/errgroup per SPEC_FULL.md §4.8 —
// results are still collected through a mutex-guarded slice exactly as
// the teacher collects into its channel, since errgroup alone only
// propagates the first error and this executor needs every result.
package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mprcore/reviewd/internal/cost"
	"github.com/mprcore/reviewd/internal/domain"
	"github.com/mprcore/reviewd/internal/provider"
	"github.com/mprcore/reviewd/internal/reliability"
)

// Call status strings, matching spec.md §4.7's ProviderResult.status enum.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusTimeout     = "timeout"
	StatusRateLimited = "rate-limited"
)

// maxBackoff is the cap spec.md §4.8 names for rate-limited retry backoff.
const maxBackoff = 30 * time.Second

// CallError carries the status classification a Provider.Review failure
// maps to, so the executor's retry policy (retry on rate-limited only)
// and the reliability tracker (which outcome to record) both have
// something structured to inspect instead of parsing an error string.
type CallError struct {
	Status string
	Err    error
}

func (e *CallError) Error() string { return e.Status + ": " + e.Err.Error() }
func (e *CallError) Unwrap() error { return e.Err }

// Response is what a successful Provider.Review call returns.
type Response struct {
	Review        domain.Review
	Tokens        int
	PricePerToken float64
}

// Provider is the executor's view of a provider: health-checkable (so the
// pool's FilterHealthyProviders can use it directly) and reviewable.
type Provider interface {
	provider.Provider
	Review(ctx context.Context, prompt string) (Response, error)
}

// Task is one (provider, prompt) pair to dispatch.
type Task struct {
	Provider Provider
	Prompt   string
}

// Result is one task's outcome, always returned regardless of success —
// spec.md §4.8: "all completions (success or not) are returned; the
// caller decides what to do".
type Result struct {
	Provider       string
	Review         domain.Review
	Status         string
	Err            error
	DurationMillis int64
}

// Executor dispatches tasks concurrently under a semaphore, retries
// rate-limited calls with capped exponential backoff, records every
// outcome in the reliability tracker, and enforces a cost budget.
type Executor struct {
	pool        *provider.Pool
	cost        *cost.Tracker
	maxParallel int
	retries     int
	callTimeout time.Duration
}

// New builds an Executor. maxParallel <= 0 defaults to 4; retries <= 0
// means no retry attempts beyond the first (providerRetries=1).
func New(pool *provider.Pool, costTracker *cost.Tracker, maxParallel, retries int, callTimeout time.Duration) *Executor {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	if retries <= 0 {
		retries = 1
	}
	return &Executor{pool: pool, cost: costTracker, maxParallel: maxParallel, retries: retries, callTimeout: callTimeout}
}

// Dispatch runs every task under the configured semaphore, with its own
// per-call deadline, retrying rate-limited responses up to retries-1
// additional times with backoff doubling each attempt (capped at
// maxBackoff). A single ctx deadline governs the whole batch: once it
// fires, outstanding calls return StatusTimeout and no further retries are
// attempted. Budget enforcement happens per successful call; once the
// tracker reports ErrBudgetExceeded, no further tasks in this Dispatch
// call are started (already-dispatched ones still finish and their
// results are kept).
func (e *Executor) Dispatch(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(int64(e.maxParallel))
	var mu sync.Mutex
	var results []Result
	var budgetExceeded atomicBool

	g, gctx := errgroup.WithContext(ctx)

	for _, task := range tasks {
		task := task
		g.Go(func() error {
			if budgetExceeded.Load() {
				return nil
			}
			if err := sem.Acquire(gctx, 1); err != nil {
				mu.Lock()
				results = append(results, Result{Provider: task.Provider.Name(), Status: StatusTimeout, Err: err})
				mu.Unlock()
				return nil
			}
			defer sem.Release(1)

			result := e.callWithRetry(gctx, task)

			mu.Lock()
			results = append(results, result)
			mu.Unlock()

			if e.pool != nil {
				e.pool.Tracker().RecordOutcome(task.Provider.Name(), outcomeFor(result))
			}

			if result.Status == StatusSuccess && e.cost != nil {
				// Pricing is unknown at this layer (the provider response
				// doesn't flow through here on the Result type), so budget
				// accounting for this call happened inside callWithRetry
				// via recordCost; nothing further to do here.
				if e.cost.Exceeded() {
					budgetExceeded.Store(true)
				}
			}
			return nil
		})
	}

	_ = g.Wait()

	return results
}

// callWithRetry issues one task, retrying on StatusRateLimited up to
// e.retries-1 additional times with exponential backoff. It never retries
// StatusError or StatusTimeout, per spec.md §4.8.
func (e *Executor) callWithRetry(ctx context.Context, task Task) Result {
	backoff := time.Second
	var last Result

	for attempt := 0; attempt < e.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Result{Provider: task.Provider.Name(), Status: StatusTimeout, Err: ctx.Err()}
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		last = e.callOnce(ctx, task)
		if last.Status != StatusRateLimited {
			return last
		}
	}

	return last
}

func (e *Executor) callOnce(ctx context.Context, task Task) Result {
	callCtx := ctx
	var cancel context.CancelFunc
	if e.callTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := task.Provider.Review(callCtx, task.Prompt)
	duration := time.Since(start)

	if err != nil {
		status := StatusError
		var callErr *CallError
		if errors.As(err, &callErr) {
			status = callErr.Status
		} else if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			status = StatusTimeout
		}
		return Result{Provider: task.Provider.Name(), Status: status, Err: err, DurationMillis: duration.Milliseconds()}
	}

	if e.cost != nil {
		_ = e.cost.RecordCall(resp.Tokens, resp.PricePerToken)
	}

	return Result{
		Provider:       task.Provider.Name(),
		Review:         resp.Review,
		Status:         StatusSuccess,
		DurationMillis: duration.Milliseconds(),
	}
}

func outcomeFor(r Result) reliability.Outcome {
	o := reliability.Outcome{
		Success:   r.Status == StatusSuccess,
		LatencyMS: r.DurationMillis,
	}
	if r.Err != nil {
		o.ErrorMessage = r.Err.Error()
	}
	return o
}

// atomicBool is a tiny CAS-free flag; retries/semaphores here don't need
// anything heavier since it's only ever set true, never back to false.
type atomicBool struct {
	mu sync.Mutex
	v  bool
}

func (b *atomicBool) Load() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.v
}

func (b *atomicBool) Store(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.v = v
}
