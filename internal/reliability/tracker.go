// Package reliability implements the per-provider outcome tracker spec.md
// §4.7 describes: a rolling window of recent call outcomes, a circuit
// breaker derived from it, and a ranking function the orchestrator uses to
// sort providers before dispatch. Grounded on the teacher's orchestrator
// fan-out (bkyoung-code-reviewer/internal/usecase/review/orchestrator.go),
// which already tracks per-provider success/failure inline but has no
// dedicated breaker or ranking — this package generalizes that bookkeeping
// into its own owned-by-the-orchestrator component, per spec.md's "no
// process-global singletons" rule for mutable state.
package reliability

import (
	"sync"
	"time"
)

// CircuitState is one of the three states spec.md §4.7's state machine names.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// failureThreshold is the consecutive-failure count that trips the breaker.
const failureThreshold = 5

// Outcome is a single recorded call result for one provider.
type Outcome struct {
	Success      bool
	LatencyMS    int64
	ErrorMessage string
}

// providerState is everything the tracker keeps for one provider name.
type providerState struct {
	window              []Outcome
	consecutiveFailures int
	circuit             CircuitState
	openedAt            time.Time
}

// Tracker records per-provider outcomes under a per-provider lock and
// derives success rate, average latency, and circuit-breaker state from
// them. windowSize bounds memory; cooldown is how long a tripped breaker
// stays open before a probe call is allowed through.
type Tracker struct {
	mu         sync.Mutex
	states     map[string]*providerState
	windowSize int
	cooldown   time.Duration
	now        func() time.Time
}

// NewTracker builds a Tracker. windowSize <= 0 defaults to 20 (the last 20
// outcomes); cooldown <= 0 defaults to 60s.
func NewTracker(windowSize int, cooldown time.Duration) *Tracker {
	if windowSize <= 0 {
		windowSize = 20
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &Tracker{
		states:     make(map[string]*providerState),
		windowSize: windowSize,
		cooldown:   cooldown,
		now:        time.Now,
	}
}

func (t *Tracker) stateFor(name string) *providerState {
	s, ok := t.states[name]
	if !ok {
		s = &providerState{circuit: CircuitClosed}
		t.states[name] = s
	}
	return s
}

// RecordOutcome appends outcome to name's rolling window, evicting the
// oldest entry once windowSize is exceeded, and updates the circuit state:
// failureThreshold consecutive failures trips closed/half-open to open; any
// success in half-open closes the breaker; a failure while half-open
// reopens it and resets the cooldown clock.
func (t *Tracker) RecordOutcome(name string, outcome Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stateFor(name)
	s.window = append(s.window, outcome)
	if len(s.window) > t.windowSize {
		s.window = s.window[len(s.window)-t.windowSize:]
	}

	if outcome.Success {
		s.consecutiveFailures = 0
		if s.circuit == CircuitHalfOpen || s.circuit == CircuitOpen {
			s.circuit = CircuitClosed
		}
		return
	}

	s.consecutiveFailures++
	if s.circuit == CircuitHalfOpen {
		s.circuit = CircuitOpen
		s.openedAt = t.now()
		return
	}
	if s.consecutiveFailures >= failureThreshold && s.circuit == CircuitClosed {
		s.circuit = CircuitOpen
		s.openedAt = t.now()
	}
}

// IsCircuitOpen is the gate every call must pass before dispatching to
// name. An open breaker whose cooldown has elapsed transitions to
// half-open and allows exactly this one probe call through (returns
// false); subsequent calls also see half-open (and are themselves also
// allowed through) until RecordOutcome closes or reopens it. A provider
// never seen before reports as not open (circuit starts closed).
func (t *Tracker) IsCircuitOpen(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stateFor(name)
	if s.circuit != CircuitOpen {
		return s.circuit == CircuitOpen
	}
	if t.now().Sub(s.openedAt) >= t.cooldown {
		s.circuit = CircuitHalfOpen
		return false
	}
	return true
}

// SuccessRate returns the fraction of successful outcomes in name's
// current window, or 1.0 if no outcomes have been recorded yet (an unseen
// provider is assumed healthy until proven otherwise).
func (t *Tracker) SuccessRate(name string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[name]
	if !ok || len(s.window) == 0 {
		return 1.0
	}
	successes := 0
	for _, o := range s.window {
		if o.Success {
			successes++
		}
	}
	return float64(successes) / float64(len(s.window))
}

// AvgLatency returns the mean latency across name's current window, or 0
// if nothing has been recorded.
func (t *Tracker) AvgLatency(name string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[name]
	if !ok || len(s.window) == 0 {
		return 0
	}
	var total int64
	for _, o := range s.window {
		total += o.LatencyMS
	}
	return time.Duration(total/int64(len(s.window))) * time.Millisecond
}

// State returns name's current circuit state without mutating it (unlike
// IsCircuitOpen, this never triggers the open→half-open transition).
func (t *Tracker) State(name string) CircuitState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateFor(name).circuit
}
