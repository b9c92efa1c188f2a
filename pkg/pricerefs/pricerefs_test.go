package pricerefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopagent/cartwright/pkg/catalog"
	"github.com/shopagent/cartwright/pkg/models"
)

func refsStore() *Store {
	return NewStore(map[string]map[string]Stats{
		"nike|drinkware": {
			MetricPrice:  {Median: 20.0, Spread: 2.0},
			MetricWeight: {Median: 0.35, Spread: 0.05},
		},
		"nike|": {
			MetricPrice: {Median: 60.0, Spread: 10.0},
		},
		"|drinkware": {
			MetricPrice:  {Median: 15.0, Spread: 5.0},
			MetricHeight: {Median: 25.0, Spread: 2.0},
		},
		"|": {
			MetricPrice: {Median: 30.0, Spread: 0},
		},
	})
}

func TestPriceZUsesMostSpecificBucket(t *testing.T) {
	s := refsStore()

	offer := models.Offer{Title: "Nike Hyperfuel Water Bottle", Category: "drinkware", PriceUSD: 24.0}
	z, ok := s.PriceZ(offer)
	require.True(t, ok)
	assert.InDelta(t, 2.0, z, 1e-9) // (24-20)/2 against nike|drinkware
}

func TestPriceZFallbackChain(t *testing.T) {
	s := refsStore()

	// nike|footwear is absent; falls back to brand-only bucket.
	z, ok := s.PriceZ(models.Offer{Title: "Nike Air Max 270", Category: "footwear", PriceUSD: 80.0})
	require.True(t, ok)
	assert.InDelta(t, 2.0, z, 1e-9) // (80-60)/10 against nike|

	// Unknown brand in a known category uses the category bucket.
	z, ok = s.PriceZ(models.Offer{Title: "Generic Flask", Category: "drinkware", PriceUSD: 5.0})
	require.True(t, ok)
	assert.InDelta(t, -2.0, z, 1e-9) // (5-15)/5 against |drinkware

	// Nothing matches but the global bucket; zero spread counts as 1.0.
	z, ok = s.PriceZ(models.Offer{Title: "Widget Thing", Category: "gadgets", PriceUSD: 31.0})
	require.True(t, ok)
	assert.InDelta(t, 1.0, z, 1e-9)
}

func TestMetricFallbackSkipsBucketsWithoutMetric(t *testing.T) {
	s := refsStore()

	// nike|drinkware has no height stats; |drinkware does.
	offer := models.Offer{
		Title:      "Nike Hyperfuel Water Bottle",
		Category:   "drinkware",
		PriceUSD:   24.0,
		Attributes: map[string]any{"height": 29.0},
	}
	zs := s.DimensionZs(offer)
	require.Contains(t, zs, MetricHeight)
	assert.InDelta(t, 2.0, zs[MetricHeight], 1e-9) // (29-25)/2
	assert.NotContains(t, zs, MetricWidth)
}

func TestWeightZMissingAttribute(t *testing.T) {
	s := refsStore()
	_, ok := s.WeightZ(models.Offer{Title: "Nike Hyperfuel", Category: "drinkware"})
	assert.False(t, ok)
}

func TestEmptyStoreReturnsNoScores(t *testing.T) {
	s := NewStore(nil)
	_, ok := s.PriceZ(models.Offer{Title: "Nike Bottle", PriceUSD: 10})
	assert.False(t, ok)
}

func TestBrandFromTitle(t *testing.T) {
	assert.Equal(t, "Nike", BrandFromTitle("Nike Hyperfuel Water Bottle"))
	assert.Equal(t, "CamelBak", BrandFromTitle("  CamelBak Chute Mag"))
	assert.Equal(t, "Sharpie", BrandFromTitle("-Sharpie_ Marker"))
	assert.Equal(t, "", BrandFromTitle("   "))
}

func TestBuildFromCatalog(t *testing.T) {
	items := []catalog.Item{
		{Vendor: "Mockazon", Title: "Logitech MX Keys Wireless Keyboard", PriceUSD: 89, URL: "u1",
			Category: "electronics", Attributes: map[string]any{"weight": 0.81}},
		{Vendor: "Shoply", Title: "Logitech M330 Silent Wireless Mouse", PriceUSD: 45, URL: "u2",
			Category: "electronics", Attributes: map[string]any{"weight": 0.09}},
		{Vendor: "GigaDeal", Title: "Samsung Galaxy S24 Smartphone", PriceUSD: 999, URL: "u3",
			Category: "electronics"},
	}
	s := Build(items)

	// logitech|electronics: prices [45, 89] -> median 67, MAD 22.
	z, ok := s.PriceZ(models.Offer{Title: "Logitech MX Keys Wireless Keyboard", Category: "electronics", PriceUSD: 89})
	require.True(t, ok)
	assert.InDelta(t, 1.0, z, 1e-9)

	// A catalog item scores near zero against its own bucket.
	z, ok = s.PriceZ(models.Offer{Title: "Samsung Galaxy S24 Smartphone", Category: "electronics", PriceUSD: 999})
	require.True(t, ok)
	assert.InDelta(t, 0.0, z, 1e-9)

	// Global bucket exists for anything else.
	stats := s.Lookup("", "")
	require.NotNil(t, stats)
	assert.InDelta(t, 89.0, stats[MetricPrice].Median, 1e-9)
}
