package reliability_test

import (
	"testing"
	"time"

	"github.com/mprcore/reviewd/internal/reliability"
	"github.com/stretchr/testify/assert"
)

func TestTracker_UnseenProviderStartsClosedAndHealthy(t *testing.T) {
	tr := reliability.NewTracker(0, 0)

	assert.False(t, tr.IsCircuitOpen("anthropic"))
	assert.Equal(t, 1.0, tr.SuccessRate("anthropic"))
	assert.Equal(t, reliability.CircuitClosed, tr.State("anthropic"))
}

func TestTracker_TripsOpenAfterFiveConsecutiveFailures(t *testing.T) {
	tr := reliability.NewTracker(0, time.Hour)

	for i := 0; i < 4; i++ {
		tr.RecordOutcome("openai", reliability.Outcome{Success: false})
		assert.False(t, tr.IsCircuitOpen("openai"), "should stay closed before the 5th failure")
	}
	tr.RecordOutcome("openai", reliability.Outcome{Success: false})

	assert.True(t, tr.IsCircuitOpen("openai"))
	assert.Equal(t, reliability.CircuitOpen, tr.State("openai"))
}

func TestTracker_SuccessResetsConsecutiveFailureCount(t *testing.T) {
	tr := reliability.NewTracker(0, time.Hour)

	tr.RecordOutcome("gemini", reliability.Outcome{Success: false})
	tr.RecordOutcome("gemini", reliability.Outcome{Success: false})
	tr.RecordOutcome("gemini", reliability.Outcome{Success: true})
	tr.RecordOutcome("gemini", reliability.Outcome{Success: false})
	tr.RecordOutcome("gemini", reliability.Outcome{Success: false})
	tr.RecordOutcome("gemini", reliability.Outcome{Success: false})

	assert.False(t, tr.IsCircuitOpen("gemini"), "the intervening success should have reset the streak")
}

func TestTracker_OpenTransitionsToHalfOpenAfterCooldownAndAllowsProbe(t *testing.T) {
	tr := reliability.NewTracker(0, 10*time.Millisecond)

	for i := 0; i < 5; i++ {
		tr.RecordOutcome("slow", reliability.Outcome{Success: false})
	}
	assert.True(t, tr.IsCircuitOpen("slow"))

	time.Sleep(15 * time.Millisecond)

	assert.False(t, tr.IsCircuitOpen("slow"), "cooldown elapsed, probe call should be allowed")
	assert.Equal(t, reliability.CircuitHalfOpen, tr.State("slow"))
}

func TestTracker_HalfOpenClosesOnSuccess(t *testing.T) {
	tr := reliability.NewTracker(0, 10*time.Millisecond)

	for i := 0; i < 5; i++ {
		tr.RecordOutcome("flaky", reliability.Outcome{Success: false})
	}
	time.Sleep(15 * time.Millisecond)
	tr.IsCircuitOpen("flaky") // triggers open -> half-open

	tr.RecordOutcome("flaky", reliability.Outcome{Success: true})

	assert.Equal(t, reliability.CircuitClosed, tr.State("flaky"))
	assert.False(t, tr.IsCircuitOpen("flaky"))
}

func TestTracker_HalfOpenReopensOnFailure(t *testing.T) {
	tr := reliability.NewTracker(0, 10*time.Millisecond)

	for i := 0; i < 5; i++ {
		tr.RecordOutcome("flaky", reliability.Outcome{Success: false})
	}
	time.Sleep(15 * time.Millisecond)
	tr.IsCircuitOpen("flaky") // triggers open -> half-open

	tr.RecordOutcome("flaky", reliability.Outcome{Success: false})

	assert.Equal(t, reliability.CircuitOpen, tr.State("flaky"))
}

func TestTracker_WindowEvictsOldestOutcome(t *testing.T) {
	tr := reliability.NewTracker(2, time.Hour)

	tr.RecordOutcome("p", reliability.Outcome{Success: false})
	tr.RecordOutcome("p", reliability.Outcome{Success: true})
	tr.RecordOutcome("p", reliability.Outcome{Success: true})

	assert.Equal(t, 1.0, tr.SuccessRate("p"), "the oldest (failing) outcome should have been evicted")
}

func TestTracker_AvgLatency(t *testing.T) {
	tr := reliability.NewTracker(0, time.Hour)

	tr.RecordOutcome("p", reliability.Outcome{Success: true, LatencyMS: 100})
	tr.RecordOutcome("p", reliability.Outcome{Success: true, LatencyMS: 300})

	assert.Equal(t, 200*time.Millisecond, tr.AvgLatency("p"))
}
