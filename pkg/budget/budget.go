package budget

import (
	"errors"
	"sync"
	"time"

	"github.com/shopagent/cartwright/pkg/config"
	"github.com/shopagent/cartwright/pkg/events"
)

// ErrTokenBudgetBlock is returned by callers honoring a block decision.
// The sub-operation fails; the stage degrades to its deterministic path.
var ErrTokenBudgetBlock = errors.New("token budget blocked")

// Decision is the outcome of pre-call enforcement.
type Decision string

const (
	// DecisionOK admits the call unchanged.
	DecisionOK Decision = "ok"
	// DecisionWarn admits the call but flags the overrun.
	DecisionWarn Decision = Decision(config.TokenPolicyWarn)
	// DecisionTruncate admits the call with a reduced completion allowance.
	DecisionTruncate Decision = Decision(config.TokenPolicyTruncate)
	// DecisionFallback skips the call; the deterministic result stands.
	DecisionFallback Decision = Decision(config.TokenPolicyFallback)
	// DecisionBlock refuses the call outright.
	DecisionBlock Decision = Decision(config.TokenPolicyBlock)
)

// Budgeter tracks token usage for one saga run. Usage only ever grows and
// is clamped at each stage cap, so Remaining never goes negative. Safe for
// concurrent use.
type Budgeter struct {
	runID   string
	policy  config.TokenPolicy
	safety  int
	budgets map[string]config.TokenBudget
	onEvent func(events.TokenEvent)

	mu   sync.Mutex
	used map[string]int
}

// New creates a budgeter for one run. onEvent receives every charge record
// and may be nil.
func New(runID string, cfg *config.Config, onEvent func(events.TokenEvent)) *Budgeter {
	return &Budgeter{
		runID:   runID,
		policy:  cfg.TokenPolicy,
		safety:  cfg.OutputSafety,
		budgets: cfg.Budgets,
		onEvent: onEvent,
		used:    make(map[string]int),
	}
}

// EnforceBeforeCall decides whether a call planned to cost planned tokens
// may proceed for the stage. Within budget the decision is ok; past the
// cap it is the configured policy. Stages without a budget are unmetered.
func (b *Budgeter) EnforceBeforeCall(stage string, planned int) Decision {
	budget, metered := b.budgets[stage]
	if !metered || budget.Cap <= 0 {
		return DecisionOK
	}

	b.mu.Lock()
	used := b.used[stage]
	b.mu.Unlock()

	if used+planned <= budget.Cap {
		return DecisionOK
	}
	return Decision(b.policy)
}

// Charge records n tokens of usage against the stage and emits a token
// event. Usage is clamped to the cap; OverBudget is set when the charge
// crossed it. Returns whether the charge was over budget.
func (b *Budgeter) Charge(stage, role string, n int, provider, model string) bool {
	budget := b.budgets[stage]

	b.mu.Lock()
	used := b.used[stage]
	over := budget.Cap > 0 && used+n > budget.Cap

	grant := n
	if budget.Cap > 0 {
		if room := budget.Cap - used; room < grant {
			grant = room
		}
		if grant < 0 {
			grant = 0
		}
	}
	b.used[stage] = used + grant
	b.mu.Unlock()

	if b.onEvent != nil {
		b.onEvent(events.TokenEvent{
			Ts:         float64(time.Now().UnixNano()) / 1e9,
			RunID:      b.runID,
			State:      stage,
			Provider:   provider,
			Model:      model,
			Role:       role,
			NTokens:    n,
			BudgetCap:  budget.Cap,
			OverBudget: over,
			Policy:     string(b.policy),
		})
	}
	return over
}

// Used returns the tokens recorded against the stage so far.
func (b *Budgeter) Used(stage string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used[stage]
}

// Remaining returns the tokens left under the stage cap, never negative.
// Unmetered stages report zero remaining.
func (b *Budgeter) Remaining(stage string) int {
	budget := b.budgets[stage]

	b.mu.Lock()
	defer b.mu.Unlock()

	left := budget.Cap - b.used[stage]
	if left < 0 {
		return 0
	}
	return left
}

// CompletionAllowance returns the max_tokens value a truncated call may
// bind: the stage remainder minus the prompt cost and the output safety
// reserve, floored at zero.
func (b *Budgeter) CompletionAllowance(stage string, promptTokens int) int {
	allowance := b.Remaining(stage) - promptTokens - b.safety
	if allowance < 0 {
		return 0
	}
	return allowance
}

// Policy returns the enforcement policy in effect.
func (b *Budgeter) Policy() config.TokenPolicy { return b.policy }
