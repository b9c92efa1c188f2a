package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shopagent/cartwright/pkg/budget"
	"github.com/shopagent/cartwright/pkg/checkout"
	"github.com/shopagent/cartwright/pkg/config"
	"github.com/shopagent/cartwright/pkg/events"
	"github.com/shopagent/cartwright/pkg/intent"
	"github.com/shopagent/cartwright/pkg/models"
	"github.com/shopagent/cartwright/pkg/sourcing"
	"github.com/shopagent/cartwright/pkg/trust"
	"github.com/shopagent/cartwright/pkg/vision"
)

// ResultSink receives the terminal record of every run. audit.Logger
// satisfies it.
type ResultSink interface {
	RecordResult(runID string, ok bool, stages int, durationS float64, errKind string)
}

// Options bundles the stage capabilities the engine runs.
type Options struct {
	Vision  vision.Provider
	Intent  intent.Provider
	Sourcer *sourcing.Sourcer
	Trust   *trust.Evaluator
	Gate    *checkout.Gate
	Sinks   []events.Sink
	Results []ResultSink
}

// Engine wires the stage capabilities into the saga pipeline. Safe for
// concurrent use; each run gets its own recorder and budgeter.
type Engine struct {
	cfg     *config.Config
	vision  vision.Provider
	intent  intent.Provider
	sourcer *sourcing.Sourcer
	trust   *trust.Evaluator
	gate    *checkout.Gate
	sinks   []events.Sink
	results []ResultSink
	log     *slog.Logger
}

// NewEngine creates the engine. All capabilities in opts are required
// except Sinks and Results.
func NewEngine(cfg *config.Config, opts Options) *Engine {
	return &Engine{
		cfg:     cfg,
		vision:  opts.Vision,
		intent:  opts.Intent,
		sourcer: opts.Sourcer,
		trust:   opts.Trust,
		gate:    opts.Gate,
		sinks:   opts.Sinks,
		results: opts.Results,
		log:     slog.With("component", "saga_engine"),
	}
}

// RunPreview executes capture through trust and returns the preview
// payload without touching checkout.
func (e *Engine) RunPreview(ctx context.Context, in RunInput) (*Result, error) {
	return e.Execute(ctx, uuid.New().String(), in, false)
}

// RunFull executes the whole saga including checkout. Payment input is
// required.
func (e *Engine) RunFull(ctx context.Context, in RunInput) (*Result, error) {
	return e.Execute(ctx, uuid.New().String(), in, true)
}

// Execute runs the saga under a caller-supplied run ID; the async pool
// uses it so the submitted ID and the payload ID agree. A partial Result
// is returned alongside the error when a stage fails.
func (e *Engine) Execute(ctx context.Context, runID string, in RunInput, withCheckout bool) (*Result, error) {
	if err := validateInput(in, withCheckout); err != nil {
		return nil, err
	}

	cfg := e.runConfig(in)
	rec := events.NewRecorder(runID, e.sinks...)
	rc := &runContext{input: in, cfg: cfg, recorder: rec}
	rc.budgeter = budget.New(runID, cfg, rec.Token)

	type step struct {
		event string
		fn    func(context.Context, *runContext) error
	}
	steps := []step{
		{events.EventS1Capture, e.stageCapture},
		{events.EventS2Confirm, e.stageConfirm},
		{events.EventS3Sourcing, e.stageSourcing},
		{events.EventS4Trust, e.stageTrust},
	}
	if withCheckout {
		steps = append(steps, step{events.EventS5Checkout, e.stageCheckout})
	}

	e.log.Info("Saga run starting",
		"run_id", runID,
		"stages", len(steps),
		"image", in.ImageName)

	t0 := time.Now()
	completed := 0
	var runErr error
	for _, s := range steps {
		stage := s
		runErr = runStage(ctx, rc, stage.event, func(sctx context.Context) error {
			return stage.fn(sctx, rc)
		})
		if runErr != nil {
			break
		}
		completed++
	}
	durationS := round4(time.Since(t0).Seconds())

	errKind := ""
	if runErr != nil {
		errKind = string(KindOf(runErr))
	}
	for _, sink := range e.results {
		sink.RecordResult(runID, runErr == nil, completed, durationS, errKind)
	}

	res := &Result{
		RunID:      runID,
		Hypothesis: rc.hypothesis,
		Intent:     rc.intent,
		Offers:     rc.offers,
		Offer:      rc.best,
		Trust:      rc.trust,
		Receipt:    rc.receipt,
		Profile:    models.DefaultCheckoutProfile(),
		Log:        rec.Log(),
		Messages:   rec.Messages(),
		DurationS:  durationS,
	}
	if runErr != nil {
		e.log.Warn("Saga run failed",
			"run_id", runID,
			"completed_stages", completed,
			"error_kind", errKind,
			"error", runErr)
		return res, runErr
	}
	e.log.Info("Saga run completed",
		"run_id", runID,
		"stages", completed,
		"duration_s", durationS)
	return res, nil
}

func validateInput(in RunInput, withCheckout bool) error {
	if in.ImageName == "" {
		return &Error{Kind: KindInvalidInput, Err: errors.New("image_name is required")}
	}
	if withCheckout && in.Payment == nil {
		return &Error{Kind: KindInvalidInput, Err: errors.New("payment input is required for checkout")}
	}
	if in.TokenPolicy != "" && !in.TokenPolicy.IsValid() {
		return &Error{Kind: KindInvalidInput, Err: fmt.Errorf("unknown token policy %q", in.TokenPolicy)}
	}
	for stage, b := range in.TokenBudgets {
		if b.Cap <= 0 || b.Est < 0 || b.Est > b.Cap {
			return &Error{Kind: KindInvalidInput, Err: fmt.Errorf("invalid token budget override for %s", stage)}
		}
	}
	return nil
}

// runConfig derives this run's effective configuration from the shared
// one plus the request overrides. The shared config is never mutated.
func (e *Engine) runConfig(in RunInput) *config.Config {
	cfg := *e.cfg
	if in.TokenPolicy != "" {
		cfg.TokenPolicy = in.TokenPolicy
	}
	if len(in.TokenBudgets) > 0 {
		budgets := make(map[string]config.TokenBudget, len(cfg.Budgets))
		for stage, b := range cfg.Budgets {
			budgets[stage] = b
		}
		for stage, b := range in.TokenBudgets {
			budgets[stage] = b
		}
		cfg.Budgets = budgets
	}
	if in.CompTopK != nil {
		cfg.Compensation.TopK = *in.CompTopK
	}
	if in.CompPriceWindowPct != nil {
		cfg.Compensation.PriceWindowPct = *in.CompPriceWindowPct
	}
	if in.CompLatencyCapMS != nil {
		cfg.Compensation.ExtraLatencyCapMS = *in.CompLatencyCapMS
	}
	return &cfg
}

func (e *Engine) stageCapture(ctx context.Context, rc *runContext) error {
	t0 := time.Now()
	hypo, err := e.vision.Detect(ctx, rc.input.ImageName)
	if err != nil {
		return &Error{Kind: KindProvider, Stage: events.EventS1Capture, Err: err}
	}
	rc.hypothesis = &hypo

	rc.recorder.Stage(events.StageEvent{
		Stage: events.EventS1Capture,
		DtS:   round4(time.Since(t0).Seconds()),
		OK:    true,
		Annotations: map[string]any{
			"label":      hypo.Label,
			"brand":      hypo.Brand,
			"color":      hypo.Color,
			"confidence": round3(hypo.Confidence),
		},
	})

	detected := hypo.Label
	if hypo.Brand != "" {
		detected = hypo.Brand + " " + hypo.Label
	}
	rc.message(events.EventS1Capture, events.AgentVision, events.AgentIntent,
		"Detected "+detected,
		map[string]any{"confidence": round3(hypo.Confidence)})
	return nil
}

func (e *Engine) stageConfirm(ctx context.Context, rc *runContext) error {
	t0 := time.Now()
	pi, err := e.intent.Extract(ctx, *rc.hypothesis, rc.input.UserText)
	if err != nil {
		return &Error{Kind: KindProvider, Stage: events.EventS2Confirm, Err: err}
	}
	rc.intent = &pi

	ann := map[string]any{
		"item":     pi.ItemName,
		"color":    pi.Color,
		"quantity": pi.Quantity,
	}
	if pi.BudgetUSD != nil {
		ann["budget"] = *pi.BudgetUSD
	}
	rc.recorder.Stage(events.StageEvent{
		Stage:       events.EventS2Confirm,
		DtS:         round4(time.Since(t0).Seconds()),
		OK:          true,
		Annotations: ann,
	})

	content := fmt.Sprintf("Need %dx %s", pi.Quantity, pi.ItemName)
	if pi.Color != "" {
		content += " in " + pi.Color
	}
	var extras map[string]any
	if pi.BudgetUSD != nil {
		extras = map[string]any{"budget": *pi.BudgetUSD}
	}
	rc.message(events.EventS2Confirm, events.AgentIntent, events.AgentSourcing, content, extras)
	if rc.input.UserText != "" {
		rc.message(events.EventS2Confirm, events.AgentIntent, events.AgentUser,
			"Understood your preference.", nil)
	}
	return nil
}

func (e *Engine) stageSourcing(ctx context.Context, rc *runContext) error {
	t0 := time.Now()
	res, err := e.sourcer.Source(ctx, *rc.intent, rc.input.PreferredOfferURL, rc.budgeter)
	if err != nil {
		return &Error{Kind: KindProvider, Stage: events.EventS3Sourcing, Err: err}
	}

	rc.recorder.Stage(events.StageEvent{
		Stage: events.EventS3Branch,
		DtS:   round4(time.Since(t0).Seconds()),
		OK:    true,
		Annotations: map[string]any{
			"strict_count": res.StrictCount,
			"fuzzy_count":  res.FuzzyCount,
		},
	})

	if len(res.Offers) == 0 {
		rc.message(events.EventS3Sourcing, events.AgentSourcing, events.AgentTrust,
			"No offers matched the intent.", nil)
		return &Error{Kind: KindNoOffers, Stage: events.EventS3Sourcing,
			Err: errors.New("no offers matched the intent")}
	}
	rc.offers = res.Offers
	rc.best = res.Best

	rc.recorder.Stage(events.StageEvent{
		Stage: events.EventS3Sourcing,
		DtS:   0,
		OK:    true,
		Annotations: map[string]any{
			"offer_count": len(res.Offers),
			"best_vendor": res.Best.Vendor,
			"best_price":  res.Best.PriceUSD,
		},
	})
	rc.message(events.EventS3Sourcing, events.AgentSourcing, events.AgentTrust,
		fmt.Sprintf("Top candidate %s at $%.2f", res.Best.Vendor, res.Best.PriceUSD),
		map[string]any{"offer_count": len(res.Offers)})
	return nil
}

func (e *Engine) stageTrust(ctx context.Context, rc *runContext) error {
	if rc.best == nil {
		// Soft failure: the saga continues without an assessment.
		rc.recorder.Stage(events.StageEvent{
			Stage:       events.EventS4Trust,
			DtS:         0,
			OK:          false,
			Annotations: map[string]any{"reason": "no_offer"},
		})
		rc.message(events.EventS4Trust, events.AgentTrust, events.AgentCheckout,
			"No offer available for trust evaluation.", nil)
		return nil
	}

	t0 := time.Now()
	assessment := e.trust.Assess(ctx, *rc.best)
	trust.CrossCheck(&assessment, *rc.best, rc.hypothesis, rc.cfg.Trust.MarketplacePrefix)

	rc.recorder.Stage(events.StageEvent{
		Stage: events.EventS4Trust,
		DtS:   round4(time.Since(t0).Seconds()),
		OK:    true,
		Annotations: map[string]any{
			"vendor": assessment.Vendor,
			"risk":   assessment.Risk.String(),
		},
	})
	var extras map[string]any
	if assessment.PriceZScore != nil {
		extras = map[string]any{"price_z": *assessment.PriceZScore}
	}
	rc.message(events.EventS4Trust, events.AgentTrust, events.AgentCheckout,
		fmt.Sprintf("%s evaluated as %s", assessment.Vendor, assessment.Risk), extras)
	if len(assessment.ReplicaTerms) > 0 {
		rc.message(events.EventS4Trust, events.AgentTrust, events.AgentSourcing,
			"Replica cues detected",
			map[string]any{"details": assessment.ReplicaTerms})
	}

	if trust.ShouldCompensate(assessment.Risk, len(rc.offers)) {
		opts := trust.CompensationOptions{
			TopK:           rc.cfg.Compensation.TopK,
			PriceWindowPct: rc.cfg.Compensation.PriceWindowPct,
			LatencyCap:     time.Duration(rc.cfg.Compensation.ExtraLatencyCapMS) * time.Millisecond,
		}
		outcome := e.trust.Compensate(ctx, *rc.best, rc.offers, assessment, opts)
		for _, attempt := range outcome.Attempts {
			ann := map[string]any{
				"candidate_vendor": attempt.Vendor,
				"candidate_risk":   attempt.Risk.String(),
				"switched":         attempt.Switched,
			}
			if attempt.PriceDeltaPct != nil {
				ann["price_delta_pct"] = *attempt.PriceDeltaPct
			} else {
				ann["price_delta_pct"] = nil
			}
			rc.recorder.Stage(events.StageEvent{
				Stage:       events.EventS4Compensate,
				DtS:         round4(attempt.DtS),
				OK:          true,
				Annotations: ann,
			})
		}
		if outcome.Switched {
			swapped := outcome.Best
			rc.best = &swapped
			assessment = outcome.Trust
			rc.message(events.EventS4Trust, events.AgentTrust, events.AgentSourcing,
				"Switched to "+outcome.Best.Vendor+" due to lower risk",
				map[string]any{"candidate_risk": outcome.Trust.Risk.String()})
		}
	}

	rc.offers = trust.ReorderForBest(rc.offers, *rc.best)
	rc.trust = &assessment
	return nil
}

func (e *Engine) stageCheckout(_ context.Context, rc *runContext) error {
	if rc.best == nil || rc.input.Payment == nil {
		// Soft failure: no receipt, no error.
		rc.recorder.Stage(events.StageEvent{
			Stage:       events.EventS5Checkout,
			DtS:         0,
			OK:          false,
			Annotations: map[string]any{"reason": "missing_payment_or_offer"},
		})
		rc.message(events.EventS5Checkout, events.AgentCheckout, events.AgentUser,
			"Checkout blocked: missing payment or offer.", nil)
		return nil
	}

	t0 := time.Now()
	receipt, err := e.gate.Pay(*rc.best, *rc.input.Payment, rc.input.IdempotencyKey)
	if err != nil {
		return err
	}
	rc.receipt = &receipt

	rc.recorder.Stage(events.StageEvent{
		Stage: events.EventS5Checkout,
		DtS:   round4(time.Since(t0).Seconds()),
		OK:    true,
		Annotations: map[string]any{
			"vendor":   receipt.Vendor,
			"amount":   receipt.AmountUSD,
			"order_id": receipt.OrderID,
		},
	})
	rc.message(events.EventS5Checkout, events.AgentCheckout, events.AgentUser,
		"Order confirmed with "+receipt.Vendor,
		map[string]any{"amount": receipt.AmountUSD, "order_id": receipt.OrderID})
	return nil
}
