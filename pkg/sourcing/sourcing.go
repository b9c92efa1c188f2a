// Package sourcing searches the catalog for offers matching a purchase
// intent. Two strategies run concurrently: a strict filter that enforces
// category, brand and item-name tokens, and a fuzzy filter that degrades
// gracefully to broader matches. Their shortlists are merged by
// normalized URL, keeping the higher score.
package sourcing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/shopagent/cartwright/pkg/budget"
	"github.com/shopagent/cartwright/pkg/catalog"
	"github.com/shopagent/cartwright/pkg/models"
)

// CatalogProvider serves the immutable listing inventory.
type CatalogProvider interface {
	Load() ([]catalog.Item, error)
}

// Reranker reorders a shortlist, typically via an LLM. Errors leave the
// deterministic ordering in place.
type Reranker interface {
	Rerank(ctx context.Context, pi models.PurchaseIntent, offers []models.Offer, b *budget.Budgeter) ([]models.Offer, error)
}

// Scoring weights and bonuses.
const (
	priceWeight = 0.6
	shipWeight  = 0.2
	etaWeight   = 0.2

	brandBonus  = 0.25
	colorBonus  = 0.15
	nameBonus   = 0.20
	budgetBonus = 0.10

	// fallbackScore is assigned to budget-fallback offers, which were
	// never ranked against a candidate set.
	fallbackScore = 0.5

	// normEpsilon treats near-identical value ranges as flat.
	normEpsilon = 1e-9
)

// Result is the outcome of one sourcing pass.
type Result struct {
	Offers      []models.Offer // merged, sorted descending by score
	Best        *models.Offer  // preferred-URL match or Offers[0]
	StrictCount int
	FuzzyCount  int
}

// Sourcer runs the two-strategy offer search.
type Sourcer struct {
	catalog  CatalogProvider
	topK     int
	reranker Reranker // nil disables reranking
}

// New creates a sourcer keeping topK merged offers. reranker may be nil.
func New(provider CatalogProvider, topK int, reranker Reranker) *Sourcer {
	return &Sourcer{catalog: provider, topK: topK, reranker: reranker}
}

// Source runs strict and fuzzy concurrently and merges their shortlists.
// If either branch fails, both results are discarded and the legacy
// single fuzzy pass produces the fallback.
func (s *Sourcer) Source(ctx context.Context, pi models.PurchaseIntent, preferredURL string, b *budget.Budgeter) (Result, error) {
	items, err := s.catalog.Load()
	if err != nil {
		return Result{}, fmt.Errorf("catalog unavailable: %w", err)
	}

	type branchResult struct {
		idx    int
		offers []models.Offer
		err    error
	}

	strategies := []func() ([]models.Offer, error){
		func() ([]models.Offer, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return s.scoreCandidates(pi, filterStrict(pi, items), items), nil
		},
		func() ([]models.Offer, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return s.scoreCandidates(pi, filterFuzzy(pi, items), items), nil
		},
	}

	results := make(chan branchResult, len(strategies))
	for i, strategy := range strategies {
		go func(idx int, run func() ([]models.Offer, error)) {
			offers, err := run()
			results <- branchResult{idx: idx, offers: offers, err: err}
		}(i, strategy)
	}

	branches := make([][]models.Offer, len(strategies))
	var branchErr error
	for range strategies {
		r := <-results
		branches[r.idx] = r.offers
		if r.err != nil && branchErr == nil {
			branchErr = r.err
		}
	}

	strict, fuzzy := branches[0], branches[1]
	if branchErr != nil {
		// Legacy single-path fallback: one fuzzy pass, strict dropped.
		slog.Warn("Sourcing branch failed, using legacy single path", "error", branchErr)
		strict = nil
		fuzzy = s.scoreCandidates(pi, filterFuzzy(pi, items), items)
	}

	merged := merge(strict, fuzzy)
	if len(merged) > s.topK {
		merged = merged[:s.topK]
	}
	if s.reranker != nil && len(merged) > 1 {
		reranked, rerr := s.reranker.Rerank(ctx, pi, merged, b)
		if rerr != nil {
			// Deterministic ordering stands; budget blocks land here too.
			slog.Warn("Offer rerank failed, keeping deterministic order", "error", rerr)
		} else {
			merged = reranked
		}
	}
	return Result{
		Offers:      merged,
		Best:        pickBest(merged, preferredURL),
		StrictCount: len(strict),
		FuzzyCount:  len(fuzzy),
	}, nil
}

// filterStrict keeps items matching the intent's category, brand token,
// and at least one item-name token longer than two characters.
func filterStrict(pi models.PurchaseIntent, items []catalog.Item) []catalog.Item {
	kept := items
	if pi.Category != "" {
		kept = filterItems(kept, func(it catalog.Item) bool { return it.Category == pi.Category })
	}
	if pi.Brand != "" {
		brand := strings.ToLower(pi.Brand)
		kept = filterItems(kept, func(it catalog.Item) bool { return itemHasTerm(it, brand) })
	}
	if tokens := nameTokens(pi.ItemName); len(tokens) > 0 {
		kept = filterItems(kept, func(it catalog.Item) bool {
			for _, tok := range tokens {
				if itemHasTerm(it, tok) {
					return true
				}
			}
			return false
		})
	}
	return kept
}

// filterFuzzy narrows by category, then the full item-name substring,
// then individual tokens, falling back to the broader set whenever a
// narrowing yields nothing.
func filterFuzzy(pi models.PurchaseIntent, items []catalog.Item) []catalog.Item {
	kept := items
	if pi.Category != "" {
		byCat := filterItems(items, func(it catalog.Item) bool { return it.Category == pi.Category })
		if len(byCat) > 0 {
			kept = byCat
		}
	}

	query := strings.ToLower(strings.TrimSpace(pi.ItemName))
	if query == "" {
		return kept
	}

	matches := filterItems(kept, func(it catalog.Item) bool { return itemHasTerm(it, query) })
	if len(matches) == 0 {
		tokens := nameTokens(pi.ItemName)
		matches = filterItems(kept, func(it catalog.Item) bool {
			for _, tok := range tokens {
				if itemHasTerm(it, tok) {
					return true
				}
			}
			return false
		})
	}
	if len(matches) > 0 {
		return matches
	}
	return kept
}

// scoreCandidates scores a strategy's candidates, shortlists them within
// the budget, and applies the budget fallback when nothing survives.
func (s *Sourcer) scoreCandidates(pi models.PurchaseIntent, candidates, all []catalog.Item) []models.Offer {
	prices := make([]float64, len(candidates))
	ships := make([]float64, len(candidates))
	etas := make([]float64, len(candidates))
	for i, it := range candidates {
		prices[i] = it.PriceUSD
		ships[i] = float64(it.ShippingDays)
		etas[i] = float64(it.ETADays)
	}
	priceNorm := minMaxNorm(prices)
	shipNorm := minMaxNorm(ships)
	etaNorm := minMaxNorm(etas)

	offers := make([]models.Offer, 0, len(candidates))
	for i, it := range candidates {
		offer := it.Offer()
		base := priceWeight*(1-priceNorm[i]) + shipWeight*(1-shipNorm[i]) + etaWeight*(1-etaNorm[i])
		offer.Score = round4(base + matchBonus(pi, it))
		offers = append(offers, offer)
	}
	sort.SliceStable(offers, func(i, j int) bool { return offers[i].Score > offers[j].Score })

	if pi.BudgetUSD != nil {
		within := offers[:0]
		for _, o := range offers {
			if o.PriceUSD <= *pi.BudgetUSD {
				within = append(within, o)
			}
		}
		offers = within
	}
	if len(offers) > s.topK {
		offers = offers[:s.topK]
	}

	if len(offers) == 0 && pi.BudgetUSD != nil {
		offers = budgetFallback(*pi.BudgetUSD, all, s.topK)
	}

	return offers
}

// budgetFallback returns up to topK cheapest catalog items within the
// budget at a fixed score.
func budgetFallback(budgetUSD float64, items []catalog.Item, topK int) []models.Offer {
	within := filterItems(items, func(it catalog.Item) bool { return it.PriceUSD <= budgetUSD })
	sort.SliceStable(within, func(i, j int) bool { return within[i].PriceUSD < within[j].PriceUSD })
	if len(within) > topK {
		within = within[:topK]
	}
	offers := make([]models.Offer, 0, len(within))
	for _, it := range within {
		offer := it.Offer()
		offer.Score = fallbackScore
		offers = append(offers, offer)
	}
	return offers
}

// merge deduplicates both shortlists by normalized URL, keeping the
// higher score per URL, and sorts descending by score.
func merge(strict, fuzzy []models.Offer) []models.Offer {
	byURL := make(map[string]models.Offer, len(strict)+len(fuzzy))
	add := func(offers []models.Offer) {
		for _, o := range offers {
			key := models.NormalizeURL(o.URL)
			if existing, ok := byURL[key]; !ok || o.Score > existing.Score {
				byURL[key] = o
			}
		}
	}
	add(strict)
	add(fuzzy)

	merged := make([]models.Offer, 0, len(byURL))
	for _, o := range byURL {
		merged = append(merged, o)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].URL < merged[j].URL
	})
	return merged
}

// pickBest returns the preferred-URL match when one exists, otherwise
// the highest-scoring offer. Nil for an empty list.
func pickBest(offers []models.Offer, preferredURL string) *models.Offer {
	if len(offers) == 0 {
		return nil
	}
	if preferredURL != "" {
		target := models.NormalizeURL(preferredURL)
		for i := range offers {
			if models.NormalizeURL(offers[i].URL) == target {
				return &offers[i]
			}
		}
	}
	return &offers[0]
}

func matchBonus(pi models.PurchaseIntent, it catalog.Item) float64 {
	var bonus float64
	if pi.Brand != "" && itemHasTerm(it, strings.ToLower(pi.Brand)) {
		bonus += brandBonus
	}
	if pi.Color != "" && itemHasTerm(it, strings.ToLower(pi.Color)) {
		bonus += colorBonus
	}
	if pi.ItemName != "" && itemHasTerm(it, strings.ToLower(pi.ItemName)) {
		bonus += nameBonus
	}
	if pi.BudgetUSD != nil && it.PriceUSD > 0 && it.PriceUSD <= *pi.BudgetUSD {
		bonus += budgetBonus
	}
	return bonus
}

// itemHasTerm reports whether the lowercase term appears in the item's
// title or any keyword.
func itemHasTerm(it catalog.Item, term string) bool {
	if term == "" {
		return false
	}
	if strings.Contains(strings.ToLower(it.Title), term) {
		return true
	}
	for _, kw := range it.Keywords {
		if strings.Contains(strings.ToLower(kw), term) {
			return true
		}
	}
	return false
}

// nameTokens splits the item name into lowercase tokens longer than two
// characters.
func nameTokens(name string) []string {
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(name)) {
		if len(tok) > 2 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// minMaxNorm rescales values to [0,1]; a flat range normalizes to 0.5.
func minMaxNorm(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	mn, mx := values[0], values[0]
	for _, v := range values[1:] {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	norm := make([]float64, len(values))
	if mx-mn < normEpsilon {
		for i := range norm {
			norm[i] = 0.5
		}
		return norm
	}
	for i, v := range values {
		norm[i] = (v - mn) / (mx - mn)
	}
	return norm
}

func filterItems(items []catalog.Item, keep func(catalog.Item) bool) []catalog.Item {
	var kept []catalog.Item
	for _, it := range items {
		if keep(it) {
			kept = append(kept, it)
		}
	}
	return kept
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
