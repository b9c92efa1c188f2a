// Package trust evaluates vendor risk for an offer. The core is an
// additive rule score over a vendor profile, enriched with robust
// z-score anomalies from the price-reference store and cross-checks
// against the vision hypothesis. Risk only ever rises: every signal
// raises the band through the max combinator, never lowers it.
package trust

import (
	"context"
	"math"
	"strings"

	"github.com/shopagent/cartwright/pkg/config"
	"github.com/shopagent/cartwright/pkg/models"
	"github.com/shopagent/cartwright/pkg/pricerefs"
)

// Profile is the telemetry kept per known vendor.
type Profile struct {
	TLS                   bool
	DomainAgeDays         int
	HasPolicyPages        bool
	HistoricalIssues      bool
	HappyReviewsPct       float64
	AcceptsReturns        bool
	AverageRefundTimeDays int
}

// builtinProfiles covers the mock marketplace vendors.
var builtinProfiles = map[string]Profile{
	"Mockazon":  {TLS: true, DomainAgeDays: 2400, HasPolicyPages: true, HappyReviewsPct: 0.92, AcceptsReturns: true, AverageRefundTimeDays: 5},
	"Shoply":    {TLS: true, DomainAgeDays: 1100, HasPolicyPages: true, HappyReviewsPct: 0.88, AcceptsReturns: true, AverageRefundTimeDays: 7},
	"SuperMart": {TLS: true, DomainAgeDays: 3200, HasPolicyPages: true, HappyReviewsPct: 0.85, AcceptsReturns: true, AverageRefundTimeDays: 6},
	"MegaBuy":   {TLS: true, DomainAgeDays: 650, HasPolicyPages: true, HappyReviewsPct: 0.81, AcceptsReturns: true, AverageRefundTimeDays: 8},
	"GigaDeal":  {TLS: true, DomainAgeDays: 120, HasPolicyPages: false, HistoricalIssues: true, HappyReviewsPct: 0.64, AcceptsReturns: false, AverageRefundTimeDays: 14},
}

// defaultProfile is the pessimistic stance for vendors never seen before.
var defaultProfile = Profile{
	TLS:                   false,
	DomainAgeDays:         45,
	HasPolicyPages:        false,
	HistoricalIssues:      true,
	HappyReviewsPct:       0.50,
	AcceptsReturns:        false,
	AverageRefundTimeDays: 21,
}

// suspiciousVendorTerms and suspiciousURLTerms trigger the name/url rule.
var (
	suspiciousVendorTerms = []string{"scam", "fraud", "unknown", "dealz", "click"}
	suspiciousURLTerms    = []string{"scam", "click", "malware", "unknown"}
)

// replicaTerms force risk to high when found in listing text.
var replicaTerms = []string{
	"replica", "knockoff", "fake", "dupe", "inspired",
	"lookalike", "mirror quality", "aaa", "copy", "compatible with", "style",
}

// Risk band thresholds over the additive score.
const (
	lowCeiling    = 1.0
	mediumCeiling = 3.5
)

// Anomaly thresholds.
const (
	priceZSuspicious = -2.0 // unusually cheap
	weightZExtreme   = 3.0
	dimensionZLoose  = 3.0
)

// Adjuster may revise an assessment, typically via an LLM. Failures are
// ignored; the deterministic assessment stands.
type Adjuster interface {
	Adjust(ctx context.Context, offer models.Offer, assessment models.TrustAssessment, profile Profile) (models.TrustAssessment, error)
}

// Evaluator assesses offers against vendor profiles and reference
// statistics. Immutable after construction.
type Evaluator struct {
	profiles map[string]Profile
	refs     *pricerefs.Store // nil disables anomaly enrichment
	adjuster Adjuster         // nil disables LLM adjustment
}

// NewEvaluator builds an evaluator. Vendor overrides from configuration
// are merged over the built-in profile table; refs and adjuster may be
// nil.
func NewEvaluator(overrides map[string]config.VendorConfig, refs *pricerefs.Store, adjuster Adjuster) *Evaluator {
	profiles := make(map[string]Profile, len(builtinProfiles)+len(overrides))
	for name, p := range builtinProfiles {
		profiles[name] = p
	}
	for name, v := range overrides {
		profiles[name] = Profile{
			TLS:                   v.TLS,
			DomainAgeDays:         v.DomainAgeDays,
			HasPolicyPages:        v.HasPolicyPages,
			HistoricalIssues:      v.HistoricalIssues,
			HappyReviewsPct:       v.HappyReviewsPct,
			AcceptsReturns:        v.AcceptsReturns,
			AverageRefundTimeDays: v.AverageRefundTimeDays,
		}
	}
	return &Evaluator{profiles: profiles, refs: refs, adjuster: adjuster}
}

// ProfileFor returns the vendor's profile, or the pessimistic default.
func (e *Evaluator) ProfileFor(vendor string) Profile {
	if p, ok := e.profiles[vendor]; ok {
		return p
	}
	return defaultProfile
}

// Assess computes the deterministic assessment for one offer: rule score
// over the vendor profile plus anomaly enrichment when reference
// statistics are available.
func (e *Evaluator) Assess(ctx context.Context, offer models.Offer) models.TrustAssessment {
	profile := e.ProfileFor(offer.Vendor)
	assessment := models.TrustAssessment{
		Vendor:                offer.Vendor,
		TLS:                   profile.TLS,
		DomainAgeDays:         profile.DomainAgeDays,
		HasPolicyPages:        profile.HasPolicyPages,
		Risk:                  riskBand(ruleScore(profile, offer)),
		HappyReviewsPct:       profile.HappyReviewsPct,
		AcceptsReturns:        profile.AcceptsReturns,
		AverageRefundTimeDays: profile.AverageRefundTimeDays,
		HistoricalIssues:      profile.HistoricalIssues,
	}

	e.enrichAnomalies(offer, &assessment)

	if e.adjuster != nil {
		if adjusted, err := e.adjuster.Adjust(ctx, offer, assessment, profile); err == nil {
			// Adjustment may only raise risk; the rule-based band is the floor.
			adjusted.Risk = assessment.Risk.Raise(adjusted.Risk)
			assessment = adjusted
		}
	}
	return assessment
}

// enrichAnomalies attaches robust z-scores and raises risk on extremes.
func (e *Evaluator) enrichAnomalies(offer models.Offer, assessment *models.TrustAssessment) {
	if e.refs == nil {
		return
	}
	if z, ok := e.refs.PriceZ(offer); ok {
		assessment.PriceZScore = &z
		if z <= priceZSuspicious {
			assessment.Risk = assessment.Risk.Raise(models.RiskHigh)
		}
	}
	if z, ok := e.refs.WeightZ(offer); ok {
		assessment.WeightZScore = &z
		if math.Abs(z) >= weightZExtreme {
			assessment.Risk = assessment.Risk.Raise(models.RiskHigh)
		}
	}
	if dims := e.refs.DimensionZs(offer); len(dims) > 0 {
		assessment.DimensionZScores = dims
		for _, z := range dims {
			if math.Abs(z) >= dimensionZLoose {
				assessment.Risk = assessment.Risk.Raise(models.RiskMedium)
				break
			}
		}
	}
}

// ruleScore accumulates the additive vendor risk score.
func ruleScore(profile Profile, offer models.Offer) float64 {
	var score float64

	if !profile.TLS {
		score += 2
	}
	if !profile.HasPolicyPages {
		score += 1
	}
	if profile.DomainAgeDays < 365 {
		score += 1
	}
	if profile.DomainAgeDays < 90 {
		score += 1
	}

	if profile.HistoricalIssues {
		score += 2
	}
	if profile.HappyReviewsPct < 0.75 {
		score += 1
	}
	if profile.HappyReviewsPct < 0.60 {
		score += 1
	}

	if !profile.AcceptsReturns {
		score += 2
	} else if profile.AverageRefundTimeDays > 14 {
		score += 1
	} else if profile.AverageRefundTimeDays > 10 {
		score += 0.5
	}

	if containsAny(offer.Vendor, suspiciousVendorTerms) || containsAny(offer.URL, suspiciousURLTerms) {
		score += 2
	}
	return score
}

func riskBand(score float64) models.Risk {
	switch {
	case score <= lowCeiling:
		return models.RiskLow
	case score <= mediumCeiling:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

func containsAny(s string, terms []string) bool {
	lower := strings.ToLower(s)
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
