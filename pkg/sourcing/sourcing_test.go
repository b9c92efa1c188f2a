package sourcing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopagent/cartwright/pkg/budget"
	"github.com/shopagent/cartwright/pkg/catalog"
	"github.com/shopagent/cartwright/pkg/models"
)

type fakeCatalog struct {
	items []catalog.Item
	err   error
}

func (f *fakeCatalog) Load() ([]catalog.Item, error) { return f.items, f.err }

func drinkwareItems() []catalog.Item {
	return []catalog.Item{
		{Vendor: "Mockazon", Title: "Nike Hyperfuel Water Bottle Blue", PriceUSD: 21.50, ShippingDays: 2, ETADays: 4,
			URL: "https://mockazon.example/p/hyperfuel", Category: "drinkware", Keywords: []string{"nike", "water bottle", "blue"}},
		{Vendor: "Shoply", Title: "CamelBak Chute Water Bottle", PriceUSD: 18.99, ShippingDays: 3, ETADays: 6,
			URL: "https://shoply.example/p/chute", Category: "drinkware", Keywords: []string{"water bottle"}},
		{Vendor: "GigaDeal", Title: "Sports Water Bottle", PriceUSD: 9.99, ShippingDays: 7, ETADays: 12,
			URL: "https://gigadeal.example/p/sports", Category: "drinkware", Keywords: []string{"water bottle"}},
	}
}

func electronicsItems() []catalog.Item {
	return []catalog.Item{
		{Vendor: "Mockazon", Title: "UltraBook Laptop 14", PriceUSD: 899, ShippingDays: 2, ETADays: 4,
			URL: "https://mockazon.example/p/ultrabook", Category: "electronics", Keywords: []string{"laptop"}},
		{Vendor: "Shoply", Title: "Refurb Laptop 13", PriceUSD: 189, ShippingDays: 3, ETADays: 6,
			URL: "https://shoply.example/p/refurb-13", Category: "electronics", Keywords: []string{"laptop"}},
		{Vendor: "MegaBuy", Title: "Student Laptop 11", PriceUSD: 159, ShippingDays: 4, ETADays: 8,
			URL: "https://megabuy.example/p/student-11", Category: "electronics", Keywords: []string{"laptop"}},
	}
}

func waterBottleIntent() models.PurchaseIntent {
	return models.PurchaseIntent{ItemName: "water bottle", Quantity: 1, Category: "drinkware"}
}

func TestSourceMergesAndSortsByScore(t *testing.T) {
	s := New(&fakeCatalog{items: drinkwareItems()}, 5, nil)

	res, err := s.Source(context.Background(), waterBottleIntent(), "", nil)
	require.NoError(t, err)

	require.NotEmpty(t, res.Offers)
	require.NotNil(t, res.Best)
	assert.Equal(t, res.Offers[0], *res.Best)
	for i := 1; i < len(res.Offers); i++ {
		assert.GreaterOrEqual(t, res.Offers[i-1].Score, res.Offers[i].Score)
	}

	// Dedup stability: distinct normalized URLs after the merge.
	seen := make(map[string]bool)
	for _, o := range res.Offers {
		key := models.NormalizeURL(o.URL)
		assert.False(t, seen[key], "duplicate offer %s", o.URL)
		seen[key] = true
	}
}

func TestSourceBrandAndColorBonusesWin(t *testing.T) {
	pi := waterBottleIntent()
	pi.Brand = "Nike"
	pi.Color = "blue"
	budgetUSD := 40.0
	pi.BudgetUSD = &budgetUSD

	s := New(&fakeCatalog{items: drinkwareItems()}, 5, nil)
	res, err := s.Source(context.Background(), pi, "", nil)
	require.NoError(t, err)

	require.NotNil(t, res.Best)
	assert.Equal(t, "Mockazon", res.Best.Vendor)
}

func TestSourcePreferredURLSelectsBest(t *testing.T) {
	s := New(&fakeCatalog{items: drinkwareItems()}, 5, nil)

	res, err := s.Source(context.Background(), waterBottleIntent(), "HTTPS://shoply.example/p/chute/", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Best)
	assert.Equal(t, "Shoply", res.Best.Vendor)
}

func TestSourceBudgetFiltersOffers(t *testing.T) {
	pi := models.PurchaseIntent{ItemName: "laptop", Quantity: 1, Category: "electronics"}
	budgetUSD := 200.0
	pi.BudgetUSD = &budgetUSD

	s := New(&fakeCatalog{items: electronicsItems()}, 5, nil)
	res, err := s.Source(context.Background(), pi, "", nil)
	require.NoError(t, err)

	require.Len(t, res.Offers, 2)
	for _, o := range res.Offers {
		assert.LessOrEqual(t, o.PriceUSD, budgetUSD)
	}
}

func TestSourceBudgetFallbackToCheapest(t *testing.T) {
	// Nothing in the category matches the name, so the shortlist is empty
	// and the fallback scans the whole catalog for items within budget.
	items := []catalog.Item{
		{Vendor: "Mockazon", Title: "Gaming Laptop", PriceUSD: 1400, ShippingDays: 2, ETADays: 4,
			URL: "https://mockazon.example/p/gaming", Category: "electronics", Keywords: []string{"laptop"}},
		{Vendor: "MegaBuy", Title: "Budget Keyboard", PriceUSD: 25, ShippingDays: 3, ETADays: 5,
			URL: "https://megabuy.example/p/keyboard", Category: "electronics", Keywords: []string{"keyboard"}},
	}
	pi := models.PurchaseIntent{ItemName: "laptop", Quantity: 1, Category: "electronics"}
	budgetUSD := 100.0
	pi.BudgetUSD = &budgetUSD

	s := New(&fakeCatalog{items: items}, 5, nil)
	res, err := s.Source(context.Background(), pi, "", nil)
	require.NoError(t, err)

	require.Len(t, res.Offers, 1)
	assert.Equal(t, "MegaBuy", res.Offers[0].Vendor)
	assert.Equal(t, fallbackScore, res.Offers[0].Score)
	assert.LessOrEqual(t, res.Offers[0].PriceUSD, budgetUSD)
}

func TestSourceEmptyWhenNothingAffordable(t *testing.T) {
	pi := waterBottleIntent()
	budgetUSD := 1.0
	pi.BudgetUSD = &budgetUSD

	s := New(&fakeCatalog{items: drinkwareItems()}, 5, nil)
	res, err := s.Source(context.Background(), pi, "", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Offers)
	assert.Nil(t, res.Best)
}

func TestSourceCatalogUnavailable(t *testing.T) {
	s := New(&fakeCatalog{err: errors.New("disk gone")}, 5, nil)
	_, err := s.Source(context.Background(), waterBottleIntent(), "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog unavailable")
}

func TestSourceTopKLimit(t *testing.T) {
	s := New(&fakeCatalog{items: drinkwareItems()}, 2, nil)
	res, err := s.Source(context.Background(), waterBottleIntent(), "", nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Offers), 2)
}

// stubReranker flips the order, or fails.
type stubReranker struct {
	err    error
	called int
}

func (r *stubReranker) Rerank(_ context.Context, _ models.PurchaseIntent, offers []models.Offer, _ *budget.Budgeter) ([]models.Offer, error) {
	r.called++
	if r.err != nil {
		return nil, r.err
	}
	reversed := make([]models.Offer, len(offers))
	for i, o := range offers {
		reversed[len(offers)-1-i] = o
	}
	return reversed, nil
}

func TestSourceAppliesReranker(t *testing.T) {
	rr := &stubReranker{}
	s := New(&fakeCatalog{items: drinkwareItems()}, 5, rr)

	res, err := s.Source(context.Background(), waterBottleIntent(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rr.called)

	// Last deterministic offer is now first, and Best follows the new order.
	require.NotEmpty(t, res.Offers)
	assert.Equal(t, res.Offers[0], *res.Best)
	for i := 1; i < len(res.Offers); i++ {
		assert.LessOrEqual(t, res.Offers[i-1].Score, res.Offers[i].Score)
	}
}

func TestSourceRerankerFailureKeepsOrder(t *testing.T) {
	rr := &stubReranker{err: errors.New("model offline")}
	s := New(&fakeCatalog{items: drinkwareItems()}, 5, rr)

	res, err := s.Source(context.Background(), waterBottleIntent(), "", nil)
	require.NoError(t, err)
	for i := 1; i < len(res.Offers); i++ {
		assert.GreaterOrEqual(t, res.Offers[i-1].Score, res.Offers[i].Score)
	}
}

func TestApplyRanking(t *testing.T) {
	offers := []models.Offer{
		{Vendor: "A", URL: "https://a"},
		{Vendor: "B", URL: "https://b"},
		{Vendor: "C", URL: "https://c"},
	}

	tests := []struct {
		name    string
		indices []int
		want    []string
	}{
		{"full permutation", []int{2, 0, 1}, []string{"C", "A", "B"}},
		{"missing appended in order", []int{1}, []string{"B", "A", "C"}},
		{"out of range dropped", []int{5, -1, 2}, []string{"C", "A", "B"}},
		{"duplicates keep first occurrence", []int{1, 1, 0}, []string{"B", "A", "C"}},
		{"empty keeps original", nil, []string{"A", "B", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyRanking(offers, tt.indices)
			vendors := make([]string, len(got))
			for i, o := range got {
				vendors[i] = o.Vendor
			}
			assert.Equal(t, tt.want, vendors)
		})
	}
}

func TestMinMaxNormFlatRange(t *testing.T) {
	norm := minMaxNorm([]float64{7, 7, 7})
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, norm)
	assert.Nil(t, minMaxNorm(nil))
}

func TestMergeKeepsHigherScore(t *testing.T) {
	strict := []models.Offer{{Vendor: "A", URL: "https://a/", Score: 0.9}}
	fuzzy := []models.Offer{
		{Vendor: "A", URL: "https://A", Score: 0.4},
		{Vendor: "B", URL: "https://b", Score: 0.7},
	}

	merged := merge(strict, fuzzy)
	require.Len(t, merged, 2)
	assert.Equal(t, "A", merged[0].Vendor)
	assert.Equal(t, 0.9, merged[0].Score)
	assert.Equal(t, "B", merged[1].Vendor)
}
