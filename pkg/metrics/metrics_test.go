package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopagent/cartwright/pkg/events"
)

func TestRegistryCountsOutcomes(t *testing.T) {
	r := NewRegistry(500)

	r.RecordStage("run-1", events.StageEvent{Stage: events.EventS3Sourcing, DtS: 0.2, OK: true})
	r.RecordStage("run-2", events.StageEvent{Stage: events.EventS3Sourcing, DtS: 0.4, OK: true})
	r.RecordStage("run-3", events.StageEvent{Stage: events.EventS3Sourcing, DtS: 0.6, OK: false})

	snap := r.Snapshot()
	stats, present := snap.Stages[events.EventS3Sourcing]
	require.True(t, present)
	assert.Equal(t, 2, stats.OK)
	assert.Equal(t, 1, stats.Err)
	assert.Equal(t, 3, stats.Samples)
	assert.InDelta(t, 0.4, stats.AvgS, 1e-9)
}

func TestRegistryP95ByRank(t *testing.T) {
	r := NewRegistry(500)
	// Durations 0.01 .. 1.00; rank index int(0.95*100)-1 = 94 -> 0.95.
	for i := 1; i <= 100; i++ {
		r.RecordStage("run", events.StageEvent{
			Stage: events.EventS1Capture,
			DtS:   float64(i) / 100,
			OK:    true,
		})
	}

	stats := r.Snapshot().Stages[events.EventS1Capture]
	assert.InDelta(t, 0.95, stats.P95S, 1e-9)
}

func TestRegistrySingleSampleP95(t *testing.T) {
	r := NewRegistry(500)
	r.RecordStage("run", events.StageEvent{Stage: events.EventS5Checkout, DtS: 0.123, OK: true})

	stats := r.Snapshot().Stages[events.EventS5Checkout]
	assert.Equal(t, 0.123, stats.P95S)
	assert.Equal(t, 0.123, stats.AvgS)
}

func TestRegistryBoundsSamples(t *testing.T) {
	r := NewRegistry(10)
	for i := 0; i < 25; i++ {
		r.RecordStage("run", events.StageEvent{Stage: events.EventS2Confirm, DtS: float64(i), OK: true})
	}

	stats := r.Snapshot().Stages[events.EventS2Confirm]
	assert.Equal(t, 10, stats.Samples)
	// Ring keeps the newest 10 samples: 15..24.
	assert.InDelta(t, 19.5, stats.AvgS, 1e-9)
	// Counters are unbounded even when samples roll over.
	assert.Equal(t, 25, stats.OK)
}

func TestRegistryTokenCounters(t *testing.T) {
	r := NewRegistry(500)

	r.RecordToken(events.TokenEvent{State: events.StageS3, Role: events.RolePrompt, NTokens: 120})
	r.RecordToken(events.TokenEvent{State: events.StageS3, Role: events.RoleCompletion, NTokens: 40})
	r.RecordToken(events.TokenEvent{State: events.StageS3, Role: events.RolePrompt, NTokens: 30})

	snap := r.Snapshot()
	tokens, present := snap.Tokens[events.StageS3]
	require.True(t, present)
	assert.Equal(t, 150, tokens.Prompt)
	assert.Equal(t, 40, tokens.Completion)
	assert.Equal(t, 1, tokens.Calls, "only completion charges count as calls")
}

func TestRingOrderAfterWrap(t *testing.T) {
	rg := newRing(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		rg.push(v)
	}
	assert.Equal(t, []float64{3, 4, 5}, rg.values())
}
