package trust

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopagent/cartwright/pkg/models"
)

// CrossCheck validates the best offer against the vision hypothesis and
// the listing text, raising risk for each mismatch it records:
//
//   - listing domain outside the configured marketplace → at least medium
//   - vision brand absent from vendor name and title   → at least medium
//   - vision color absent from title+description       → at least medium
//   - any replica cue in title+description+keywords    → high
//
// The assessment is mutated in place.
func CrossCheck(assessment *models.TrustAssessment, offer models.Offer, hypo *models.ProductHypothesis, marketplacePrefix string) {
	var reasons []string

	if domainName, ok := offer.Attributes["domain_name"].(string); ok && domainName != "" && marketplacePrefix != "" {
		if !strings.HasPrefix(strings.ToLower(domainName), strings.ToLower(marketplacePrefix)) {
			assessment.DomainMismatch = true
			reasons = append(reasons, fmt.Sprintf("Domain is not a %s marketplace", marketplacePrefix))
		}
	}

	var brandMismatch, colorMismatch bool
	if hypo != nil && hypo.Brand != "" {
		brand := strings.ToLower(hypo.Brand)
		vendor := strings.ToLower(offer.Vendor)
		title := strings.ToLower(offer.Title)
		if !strings.Contains(vendor, brand) && !strings.Contains(title, brand) {
			brandMismatch = true
			assessment.BrandMismatch = true
			reasons = append(reasons, "Vision brand differs from listing")
		}
	}
	if hypo != nil && hypo.Color != "" {
		blob := strings.ToLower(offer.Title + " " + offer.Description)
		if !strings.Contains(blob, strings.ToLower(hypo.Color)) {
			colorMismatch = true
			reasons = append(reasons, "Vision color not present in listing")
		}
	}
	assessment.VisionMismatch = brandMismatch || colorMismatch

	if hits := ReplicaHits(offer); len(hits) > 0 {
		assessment.ReplicaTerms = hits
		reasons = append(reasons, "Replica cues: "+strings.Join(hits, ", "))
	}

	if len(reasons) > 0 {
		assessment.AuthReasons = append(assessment.AuthReasons, reasons...)
	}

	if len(assessment.ReplicaTerms) > 0 {
		assessment.Risk = assessment.Risk.Raise(models.RiskHigh)
	}
	if assessment.DomainMismatch {
		assessment.Risk = assessment.Risk.Raise(models.RiskMedium)
	}
	if assessment.VisionMismatch {
		assessment.Risk = assessment.Risk.Raise(models.RiskMedium)
	}
}

// ReplicaHits scans the offer's title, description and keywords for
// replica cues, returning the sorted, deduplicated hits.
func ReplicaHits(offer models.Offer) []string {
	blob := strings.ToLower(strings.Join(append([]string{offer.Title, offer.Description}, offer.Keywords...), " "))
	seen := make(map[string]bool)
	for _, term := range replicaTerms {
		if strings.Contains(blob, term) {
			seen[term] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}
	hits := make([]string, 0, len(seen))
	for term := range seen {
		hits = append(hits, term)
	}
	sort.Strings(hits)
	return hits
}
