// Package cost implements the budget tracker spec.md §4.9/§8 describes:
// a mutex-guarded running total checked atomically on every recorded
// call, so the orchestrator can enforce budgetMaxUsd. Grounded on spec.md's
// own description — the teacher repo has no per-run cost cap (its
// "UpdateRunCost" call in orchestrator.go just persists a running number
// for reporting, with no budget ceiling) — so this is new, not adapted.
package cost

import (
	"errors"
	"sync"
)

// ErrBudgetExceeded is returned by RecordCost once the running total
// crosses the configured cap. The call that triggered it has already been
// made (and its cost already incurred) so the total is still committed;
// the error's only job is to tell the caller to stop issuing further
// calls, matching spec.md §8's "ε covers the single call that triggered
// the cap" invariant.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Tracker is the orchestrator-owned running cost total for one review run.
type Tracker struct {
	mu           sync.Mutex
	total        float64
	budgetMaxUSD float64
}

// NewTracker builds a Tracker with the given cap. A cap <= 0 means
// unlimited: RecordCost never returns ErrBudgetExceeded.
func NewTracker(budgetMaxUSD float64) *Tracker {
	return &Tracker{budgetMaxUSD: budgetMaxUSD}
}

// RecordCost adds amount to the running total and reports whether the
// cap has now been crossed. The addition always happens — cost already
// spent on a provider call can't be un-spent — so after ErrBudgetExceeded
// the caller's job is to stop dispatching further calls, not to retry.
func (t *Tracker) RecordCost(amount float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total += amount
	if t.budgetMaxUSD > 0 && t.total > t.budgetMaxUSD {
		return ErrBudgetExceeded
	}
	return nil
}

// RecordCall is a convenience wrapper computing amount = tokens ×
// pricePerToken before delegating to RecordCost.
func (t *Tracker) RecordCall(tokens int, pricePerToken float64) error {
	return t.RecordCost(float64(tokens) * pricePerToken)
}

// Total returns the current running cost.
func (t *Tracker) Total() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Exceeded reports whether the cap has already been crossed, without
// recording a new cost.
func (t *Tracker) Exceeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.budgetMaxUSD > 0 && t.total > t.budgetMaxUSD
}
