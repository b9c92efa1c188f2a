package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopagent/cartwright/pkg/config"
	"github.com/shopagent/cartwright/pkg/events"
)

func testConfig(policy config.TokenPolicy) *config.Config {
	cfg := config.DefaultConfig()
	cfg.TokenPolicy = policy
	return cfg
}

func TestCountTokensHeuristic(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{"empty text costs nothing", "", 0},
		{"short text floors at one", "hi", 1},
		{"four chars per token", "abcdefgh", 2},
		{"remainder truncates", "abcdefghij", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CountTokens(tt.text, "heuristic-model"))
		})
	}
}

func TestCountTokensEmptyIsFreeForAnyModel(t *testing.T) {
	assert.Equal(t, 0, CountTokens("", "gpt-4o-mini"))
}

func TestEnforceBeforeCall(t *testing.T) {
	b := New("run-1", testConfig(config.TokenPolicyTruncate), nil)

	// S1 cap is 800.
	assert.Equal(t, DecisionOK, b.EnforceBeforeCall(events.StageS1, 800))
	assert.Equal(t, DecisionTruncate, b.EnforceBeforeCall(events.StageS1, 801))

	b.Charge(events.StageS1, events.RolePrompt, 700, "test", "model")
	assert.Equal(t, DecisionOK, b.EnforceBeforeCall(events.StageS1, 100))
	assert.Equal(t, DecisionTruncate, b.EnforceBeforeCall(events.StageS1, 101))
}

func TestEnforcePolicySelectsConfiguredPolicy(t *testing.T) {
	for _, policy := range []config.TokenPolicy{
		config.TokenPolicyWarn,
		config.TokenPolicyTruncate,
		config.TokenPolicyFallback,
		config.TokenPolicyBlock,
	} {
		b := New("run-1", testConfig(policy), nil)
		assert.Equal(t, Decision(policy), b.EnforceBeforeCall(events.StageS1, 10_000))
	}
}

func TestChargeClampsAtCap(t *testing.T) {
	var seen []events.TokenEvent
	b := New("run-9", testConfig(config.TokenPolicyTruncate), func(ev events.TokenEvent) {
		seen = append(seen, ev)
	})

	// First charge blows through the S1 cap of 800.
	over := b.Charge(events.StageS1, events.RolePrompt, 900, "openai", "gpt-4o-mini")
	assert.True(t, over)
	assert.Equal(t, 800, b.Used(events.StageS1))
	assert.Equal(t, 0, b.Remaining(events.StageS1))

	// A later charge cannot push usage past the cap.
	over = b.Charge(events.StageS1, events.RoleCompletion, 50, "openai", "gpt-4o-mini")
	assert.True(t, over)
	assert.Equal(t, 800, b.Used(events.StageS1))

	require.Len(t, seen, 2)
	assert.Equal(t, "run-9", seen[0].RunID)
	assert.Equal(t, events.StageS1, seen[0].State)
	assert.Equal(t, events.RolePrompt, seen[0].Role)
	assert.Equal(t, 900, seen[0].NTokens)
	assert.Equal(t, 800, seen[0].BudgetCap)
	assert.True(t, seen[0].OverBudget)
	assert.Equal(t, string(config.TokenPolicyTruncate), seen[0].Policy)
}

func TestChargeWithinBudget(t *testing.T) {
	var seen []events.TokenEvent
	b := New("run-2", testConfig(config.TokenPolicyTruncate), func(ev events.TokenEvent) {
		seen = append(seen, ev)
	})

	over := b.Charge(events.StageS3, events.RolePrompt, 200, "openai", "gpt-4o-mini")
	assert.False(t, over)
	assert.Equal(t, 200, b.Used(events.StageS3))
	assert.Equal(t, 1300, b.Remaining(events.StageS3))

	require.Len(t, seen, 1)
	assert.False(t, seen[0].OverBudget)
}

func TestChargeZeroTokensStillEmitsEvent(t *testing.T) {
	var seen []events.TokenEvent
	b := New("run-3", testConfig(config.TokenPolicyFallback), func(ev events.TokenEvent) {
		seen = append(seen, ev)
	})

	over := b.Charge(events.StageS3, events.RolePrompt, 0, "openai", "gpt-4o-mini")
	assert.False(t, over)
	assert.Equal(t, 0, b.Used(events.StageS3))
	require.Len(t, seen, 1)
	assert.Equal(t, 0, seen[0].NTokens)
}

func TestCompletionAllowance(t *testing.T) {
	b := New("run-4", testConfig(config.TokenPolicyTruncate), nil)

	// S3 cap 1500, safety 32: fresh stage leaves 1500-100-32.
	assert.Equal(t, 1368, b.CompletionAllowance(events.StageS3, 100))

	b.Charge(events.StageS3, events.RolePrompt, 1450, "openai", "gpt-4o-mini")
	assert.Equal(t, 0, b.CompletionAllowance(events.StageS3, 100))
}

func TestUnmeteredStageIsAlwaysAdmitted(t *testing.T) {
	b := New("run-5", testConfig(config.TokenPolicyBlock), nil)

	assert.Equal(t, DecisionOK, b.EnforceBeforeCall("S9", 1_000_000))
	over := b.Charge("S9", events.RolePrompt, 123, "openai", "gpt-4o-mini")
	assert.False(t, over)
	assert.Equal(t, 123, b.Used("S9"))
}
