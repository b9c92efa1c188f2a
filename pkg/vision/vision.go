// Package vision produces the S1 product hypothesis for an input image.
// The default detector is deterministic: it reads cues from the image
// name (object keywords, brand substrings, a color vocabulary) so the
// pipeline behaves identically run to run. An optional LLM refiner can
// polish the hypothesis when the feature is enabled.
package vision

import (
	"context"
	"path"
	"strings"

	"github.com/shopagent/cartwright/pkg/models"
)

// Provider turns an image reference into a product hypothesis.
type Provider interface {
	Detect(ctx context.Context, imageName string) (models.ProductHypothesis, error)
}

// UnknownLabel is the low-confidence default when no object cue matches.
const UnknownLabel = "object"

// fallbackConfidence is assigned to heuristic detections.
const fallbackConfidence = 0.5

type objectConfig struct {
	displayName string
	category    string
}

// objectTable maps detectable object labels to their display name and
// catalog category.
var objectTable = map[string]objectConfig{
	"bottle":     {"water bottle", "drinkware"},
	"cup":        {"cup", "drinkware"},
	"pen":        {"pen", "office_supplies"},
	"book":       {"book", "media"},
	"laptop":     {"laptop", "electronics"},
	"keyboard":   {"keyboard", "electronics"},
	"mouse":      {"computer mouse", "electronics"},
	"cell phone": {"smartphone", "electronics"},
	"backpack":   {"backpack", "bags"},
	"sneaker":    {"sneaker", "footwear"},
}

// brandTable maps lowercase brand substrings to their display form.
var brandTable = map[string]string{
	"nike":         "Nike",
	"adidas":       "Adidas",
	"puma":         "Puma",
	"reebok":       "Reebok",
	"under armour": "Under Armour",
	"new balance":  "New Balance",
	"camelbak":     "CamelBak",
	"contigo":      "Contigo",
	"pilot":        "Pilot",
	"bic":          "BIC",
	"sharpie":      "Sharpie",
	"stabilo":      "Stabilo",
	"logitech":     "Logitech",
	"razer":        "Razer",
	"hp":           "HP",
	"hewlett":      "HP",
	"lenovo":       "Lenovo",
	"dell":         "Dell",
	"asus":         "ASUS",
	"acer":         "Acer",
	"apple":        "Apple",
	"samsung":      "Samsung",
	"sony":         "Sony",
	"anker":        "Anker",
}

// brandDefaultLabel supplies an object label when only a brand cue is
// present (apparel brands default to footwear).
var brandDefaultLabel = map[string]string{
	"nike":         "sneaker",
	"adidas":       "sneaker",
	"puma":         "sneaker",
	"reebok":       "sneaker",
	"under armour": "sneaker",
	"new balance":  "sneaker",
}

// colorVocab is scanned against the image name for a color cue.
var colorVocab = []string{
	"black", "white", "blue", "red", "green", "yellow",
	"pink", "purple", "grey", "gray", "orange", "silver", "gold",
}

// Detector is the deterministic image-name detector.
type Detector struct{}

// NewDetector creates the deterministic detector.
func NewDetector() *Detector { return &Detector{} }

// Detect builds a hypothesis from cues in the image name. A name with no
// object cue yields the label "object" so downstream stages can still
// proceed on the user's text alone.
func (d *Detector) Detect(_ context.Context, imageName string) (models.ProductHypothesis, error) {
	base := strings.ToLower(path.Base(strings.ReplaceAll(imageName, "\\", "/")))

	label := UnknownLabel
	var brand string
	for raw, nice := range brandTable {
		if strings.Contains(base, raw) {
			brand = nice
			break
		}
	}
	for key := range objectTable {
		if strings.Contains(base, key) {
			label = key
			break
		}
	}
	if label == UnknownLabel && brand != "" {
		if fallback, ok := brandDefaultLabel[strings.ToLower(brand)]; ok {
			label = fallback
		}
	}

	var color string
	for _, c := range colorVocab {
		if strings.Contains(base, c) {
			color = c
			break
		}
	}

	return buildHypothesis(label, fallbackConfidence, brand, color), nil
}

func buildHypothesis(label string, confidence float64, brand, color string) models.ProductHypothesis {
	cfg, ok := objectTable[label]
	if !ok {
		cfg = objectConfig{displayName: label}
	}
	return models.ProductHypothesis{
		Label:       label,
		Brand:       brand,
		Confidence:  confidence,
		Category:    cfg.category,
		DisplayName: cfg.displayName,
		Color:       color,
	}
}

// LabelConfig returns the display name and category for an object label,
// defaulting to the label itself with no category.
func LabelConfig(label string) (displayName, category string) {
	if cfg, ok := objectTable[label]; ok {
		return cfg.displayName, cfg.category
	}
	return label, ""
}
