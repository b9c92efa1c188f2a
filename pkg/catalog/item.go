// Package catalog provides the marketplace listing inventory the sourcing
// stage searches. The catalog is loaded once and immutable afterwards.
package catalog

import "github.com/shopagent/cartwright/pkg/models"

// Item is one marketplace listing. Field names mirror the offer payload;
// an Item becomes an Offer once sourcing attaches a score.
type Item struct {
	Vendor       string         `json:"vendor"`
	Title        string         `json:"title"`
	PriceUSD     float64        `json:"price_usd"`
	ShippingDays int            `json:"shipping_days"`
	ETADays      int            `json:"eta_days"`
	URL          string         `json:"url"`
	Category     string         `json:"category,omitempty"`
	Keywords     []string       `json:"keywords,omitempty"`
	Description  string         `json:"description,omitempty"`
	ImageURL     string         `json:"image_url,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
}

// Offer converts the listing to an unscored offer. Tags default to the
// keywords when the listing carries none.
func (it Item) Offer() models.Offer {
	tags := it.Tags
	if len(tags) == 0 {
		tags = it.Keywords
	}
	return models.Offer{
		Vendor:       it.Vendor,
		Title:        it.Title,
		PriceUSD:     it.PriceUSD,
		ShippingDays: it.ShippingDays,
		ETADays:      it.ETADays,
		URL:          it.URL,
		Category:     it.Category,
		Keywords:     it.Keywords,
		Description:  it.Description,
		ImageURL:     it.ImageURL,
		Attributes:   it.Attributes,
		Tags:         tags,
	}
}
