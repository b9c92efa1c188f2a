package trust

import (
	"context"
	"math"
	"time"

	"github.com/shopagent/cartwright/pkg/models"
)

// CompensationOptions bound the alternate-offer scan.
type CompensationOptions struct {
	TopK           int     // candidates evaluated at most
	PriceWindowPct float64 // max price increase over the baseline, in percent (10 = 10%)
	LatencyCap     time.Duration
}

// Attempt records one evaluated compensation candidate.
type Attempt struct {
	Vendor        string
	Risk          models.Risk
	PriceDeltaPct *float64 // nil when the baseline price is zero
	Switched      bool
	DtS           float64
}

// Outcome is the result of a compensation scan.
type Outcome struct {
	Best     models.Offer
	Trust    models.TrustAssessment
	Attempts []Attempt
	Switched bool
}

// Compensate searches the alternatives for a strictly safer offer within
// the price window and the latency cap. Candidates are evaluated
// sequentially so the first safer candidate wins and the elapsed-time
// budget stays meaningful. The scan stops at the first switch, after
// TopK attempts, or when the cap runs out, whichever comes first.
func (e *Evaluator) Compensate(ctx context.Context, best models.Offer, offers []models.Offer, current models.TrustAssessment, opts CompensationOptions) Outcome {
	outcome := Outcome{Best: best, Trust: current}

	start := time.Now()
	baseline := best.PriceUSD
	bestKey := models.NormalizeURL(best.URL)
	attempts := 0

	for _, candidate := range offers {
		if attempts >= opts.TopK {
			break
		}
		if models.NormalizeURL(candidate.URL) == bestKey {
			continue
		}
		if time.Since(start) > opts.LatencyCap {
			break
		}

		priceOK := true
		var deltaPct *float64
		if baseline > 0 {
			delta := round2(100.0 * (candidate.PriceUSD - baseline) / baseline)
			deltaPct = &delta
			// Below baseline always passes; above must fit the window.
			priceOK = candidate.PriceUSD <= baseline*(1+opts.PriceWindowPct/100.0)
		}

		t0 := time.Now()
		candidateTrust := e.Assess(ctx, candidate)
		safer := candidateTrust.Risk.Less(outcome.Trust.Risk)
		switched := safer && priceOK

		outcome.Attempts = append(outcome.Attempts, Attempt{
			Vendor:        candidate.Vendor,
			Risk:          candidateTrust.Risk,
			PriceDeltaPct: deltaPct,
			Switched:      switched,
			DtS:           time.Since(t0).Seconds(),
		})
		attempts++

		if switched {
			outcome.Best = candidate
			outcome.Trust = candidateTrust
			outcome.Switched = true
			break
		}
	}
	return outcome
}

// ShouldCompensate reports whether the scan applies: elevated risk and
// at least one alternative to consider.
func ShouldCompensate(risk models.Risk, offerCount int) bool {
	return risk >= models.RiskMedium && offerCount > 1
}

// ReorderForBest moves the chosen offer to index 0, preserving the
// relative order of the rest.
func ReorderForBest(offers []models.Offer, best models.Offer) []models.Offer {
	key := models.NormalizeURL(best.URL)
	reordered := make([]models.Offer, 0, len(offers))
	reordered = append(reordered, best)
	for _, o := range offers {
		if models.NormalizeURL(o.URL) != key {
			reordered = append(reordered, o)
		}
	}
	return reordered
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
