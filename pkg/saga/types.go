// Package saga orchestrates the five-stage purchase pipeline: vision
// capture, intent confirmation, offer sourcing, trust evaluation and
// checkout. The engine runs stages sequentially under per-stage deadlines
// and records every event, message and token charge for the run.
package saga

import (
	"math"
	"time"

	"github.com/shopagent/cartwright/pkg/budget"
	"github.com/shopagent/cartwright/pkg/config"
	"github.com/shopagent/cartwright/pkg/events"
	"github.com/shopagent/cartwright/pkg/models"
)

// RunInput is one saga request. The override fields apply to this run
// only; nil or zero values leave the configured defaults in place.
type RunInput struct {
	ImageName         string               `json:"image_name"`
	UserText          string               `json:"user_text,omitempty"`
	PreferredOfferURL string               `json:"preferred_offer_url,omitempty"`
	IdempotencyKey    string               `json:"idempotency_key,omitempty"`
	Payment           *models.PaymentInput `json:"payment,omitempty"`

	TokenBudgets       map[string]config.TokenBudget `json:"token_budgets,omitempty"`
	TokenPolicy        config.TokenPolicy            `json:"token_policy,omitempty"`
	CompTopK           *int                          `json:"comp_top_k,omitempty"`
	CompPriceWindowPct *float64                      `json:"comp_price_window_pct,omitempty"`
	CompLatencyCapMS   *int                          `json:"comp_latency_cap_ms,omitempty"`
}

// Result is the saga output payload: everything the pipeline produced up
// to the point it stopped, plus the full event and message logs.
type Result struct {
	RunID      string                    `json:"run_id"`
	Hypothesis *models.ProductHypothesis `json:"hypothesis,omitempty"`
	Intent     *models.PurchaseIntent    `json:"intent,omitempty"`
	Offers     []models.Offer            `json:"offers"`
	Offer      *models.Offer             `json:"offer,omitempty"`
	Trust      *models.TrustAssessment   `json:"trust,omitempty"`
	Receipt    *models.Receipt           `json:"receipt,omitempty"`
	Profile    models.CheckoutProfile    `json:"checkout_profile"`
	Log        []events.StageEvent       `json:"log"`
	Messages   []events.Message          `json:"messages"`
	DurationS  float64                   `json:"duration_s"`
}

// runContext carries one run's mutable state between stages. Stages own
// it exclusively while they execute; the engine never runs two stages of
// the same run concurrently.
type runContext struct {
	input    RunInput
	cfg      *config.Config
	recorder *events.Recorder
	budgeter *budget.Budgeter

	hypothesis *models.ProductHypothesis
	intent     *models.PurchaseIntent
	offers     []models.Offer
	best       *models.Offer
	trust      *models.TrustAssessment
	receipt    *models.Receipt
}

// message appends one inter-agent hop to the run log.
func (rc *runContext) message(stage, sender, recipient, content string, extras map[string]any) {
	rc.recorder.Message(events.Message{
		Stage:     stage,
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		Ts:        round3(float64(time.Now().UnixNano()) / 1e9),
		Extras:    extras,
	})
}

func round3(x float64) float64 { return math.Round(x*1e3) / 1e3 }

func round4(x float64) float64 { return math.Round(x*1e4) / 1e4 }
