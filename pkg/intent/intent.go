// Package intent confirms what the shopper wants to buy. The default
// path is a fixed grammar over the user's free text seeded by the S1
// hypothesis; an optional LLM extractor can replace it, falling back to
// the grammar on any failure.
package intent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopagent/cartwright/pkg/models"
	"github.com/shopagent/cartwright/pkg/vision"
)

// Provider extracts a purchase intent from the hypothesis and user text.
type Provider interface {
	Extract(ctx context.Context, hypo models.ProductHypothesis, userText string) (models.PurchaseIntent, error)
}

var colorVocab = []string{
	"black", "white", "blue", "red", "green", "yellow",
	"pink", "purple", "grey", "gray", "orange", "silver", "gold",
}

var sizeVocab = []string{"s", "m", "l", "xl"}

var (
	qtyUnitsRe   = regexp.MustCompile(`(\d+)\s*(qty|quantity|units?)`)
	qtyCompactRe = regexp.MustCompile(`(qty|quantity)\s*[:\-]?\s*(\d+)`)
	bareIntRe    = regexp.MustCompile(`\b(\d+)\b`)

	budgetPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:budget|under|below|less than)\s*\$?\s*(\d+(?:\.\d{1,2})?)`),
		regexp.MustCompile(`\$\s*(\d+(?:\.\d{1,2})?)`),
		regexp.MustCompile(`(\d+(?:\.\d{1,2})?)\s*usd`),
	}
)

// Parser is the deterministic grammar. It never fails: missing cues
// simply leave intent fields unset.
type Parser struct{}

// NewParser creates the grammar parser.
func NewParser() *Parser { return &Parser{} }

// Extract applies the grammar to the lowercased user text. Choice
// phrases ("same item", "different color", ...) adjust which hypothesis
// fields carry over into the intent.
func (p *Parser) Extract(_ context.Context, hypo models.ProductHypothesis, userText string) (models.PurchaseIntent, error) {
	text := strings.ToLower(strings.TrimSpace(userText))
	qty := extractQuantity(text)
	budget := extractBudget(text)
	item := hypo.Display()
	category := hypo.Category
	brand := hypo.Brand

	// Unrecognized object with no category: nothing to infer choices
	// from, keep only what the text says.
	if strings.ToLower(hypo.Label) == vision.UnknownLabel && category == "" {
		return models.PurchaseIntent{
			ItemName:  item,
			Color:     scanVocab(text, colorVocab),
			Quantity:  qty,
			BudgetUSD: budget,
			Brand:     brand,
		}, nil
	}

	base := models.PurchaseIntent{
		ItemName:  item,
		Quantity:  qty,
		BudgetUSD: budget,
		Brand:     brand,
		Category:  category,
	}

	switch {
	case strings.Contains(text, "same") && strings.Contains(text, strings.ToLower(item)),
		strings.Contains(text, "same item"),
		strings.Contains(text, "same product"),
		strings.Contains(text, "same one"):
		// Same item: keep the detected color and brand.
		base.Color = hypo.Color
		return base, nil

	case strings.Contains(text, "different color") || strings.Contains(text, "other color"):
		// Different color: drop the detected color, adopt a hint if any.
		base.Color = scanVocabWord(text, colorVocab)
		return base, nil

	case strings.Contains(text, "different") && strings.Contains(text, "same brand"):
		// Different item, same brand.
		if brand != "" {
			base.ItemName = brand + " " + item
		}
		return base, nil
	}

	if strings.Contains(text, "different brand") {
		base.Brand = ""
	}

	base.Color = scanVocab(text, colorVocab)
	if base.Color == "" {
		base.Color = hypo.Color
	}
	base.Size = scanSize(text)
	return base, nil
}

// extractQuantity finds the requested quantity, defaulting to 1.
func extractQuantity(text string) int {
	if m := qtyUnitsRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	if m := qtyCompactRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil {
			return n
		}
	}
	if m := bareIntRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 1
}

// extractBudget finds a USD budget, or nil when the text has none.
func extractBudget(text string) *float64 {
	for _, re := range budgetPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &v
		}
	}
	return nil
}

// scanVocab returns the first vocabulary entry contained in the text.
func scanVocab(text string, vocab []string) string {
	for _, word := range vocab {
		if strings.Contains(text, word) {
			return word
		}
	}
	return ""
}

// scanVocabWord is like scanVocab but requires a whole-word match.
func scanVocabWord(text string, vocab []string) string {
	for _, word := range vocab {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
		if re.MatchString(text) {
			return word
		}
	}
	return ""
}

// scanSize matches a whole-word size token and uppercases it.
func scanSize(text string) string {
	padded := " " + text + " "
	for _, s := range sizeVocab {
		if strings.Contains(padded, fmt.Sprintf(" %s ", s)) {
			return strings.ToUpper(s)
		}
	}
	return ""
}
