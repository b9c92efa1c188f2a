package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopagent/cartwright/pkg/models"
)

func bottleHypothesis() models.ProductHypothesis {
	return models.ProductHypothesis{
		Label:       "bottle",
		Brand:       "Nike",
		Color:       "blue",
		Category:    "drinkware",
		DisplayName: "water bottle",
		Confidence:  0.5,
	}
}

func TestParserSameItemKeepsHypothesisColor(t *testing.T) {
	p := NewParser()
	pi, err := p.Extract(context.Background(), bottleHypothesis(), "same water bottle qty 2 budget $40")
	require.NoError(t, err)

	assert.Equal(t, "water bottle", pi.ItemName)
	assert.Equal(t, "blue", pi.Color)
	assert.Equal(t, 2, pi.Quantity)
	require.NotNil(t, pi.BudgetUSD)
	assert.Equal(t, 40.0, *pi.BudgetUSD)
	assert.Equal(t, "Nike", pi.Brand)
	assert.Equal(t, "drinkware", pi.Category)
}

func TestParserDifferentColor(t *testing.T) {
	p := NewParser()
	pi, err := p.Extract(context.Background(), bottleHypothesis(), "different color please, maybe red")
	require.NoError(t, err)
	assert.Equal(t, "red", pi.Color)

	pi, err = p.Extract(context.Background(), bottleHypothesis(), "a different color")
	require.NoError(t, err)
	assert.Empty(t, pi.Color)
}

func TestParserDifferentItemSameBrand(t *testing.T) {
	p := NewParser()
	pi, err := p.Extract(context.Background(), bottleHypothesis(), "something different but same brand")
	require.NoError(t, err)
	assert.Equal(t, "Nike water bottle", pi.ItemName)
	assert.Equal(t, "Nike", pi.Brand)
}

func TestParserDifferentBrandDropsBrand(t *testing.T) {
	p := NewParser()
	pi, err := p.Extract(context.Background(), bottleHypothesis(), "a different brand under $25")
	require.NoError(t, err)
	assert.Empty(t, pi.Brand)
	require.NotNil(t, pi.BudgetUSD)
	assert.Equal(t, 25.0, *pi.BudgetUSD)
}

func TestParserQuantityGrammar(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"3 qty", 3},
		{"2 units", 2},
		{"qty: 4", 4},
		{"quantity - 6", 6},
		{"give me 5", 5},
		{"no number here", 1},
		{"", 1},
	}
	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			pi, err := p.Extract(context.Background(), bottleHypothesis(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pi.Quantity)
		})
	}
}

func TestParserBudgetGrammar(t *testing.T) {
	tests := []struct {
		text string
		want *float64
	}{
		{"budget $40", f64(40)},
		{"under 19.99", f64(19.99)},
		{"less than $ 15", f64(15)},
		{"$12.50", f64(12.5)},
		{"30 usd", f64(30)},
		{"no budget mentioned", nil},
	}
	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			pi, err := p.Extract(context.Background(), bottleHypothesis(), tt.text)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, pi.BudgetUSD)
			} else {
				require.NotNil(t, pi.BudgetUSD)
				assert.Equal(t, *tt.want, *pi.BudgetUSD)
			}
		})
	}
}

func TestParserUnknownObjectUsesTextOnly(t *testing.T) {
	hypo := models.ProductHypothesis{Label: "object", DisplayName: "object", Confidence: 0.5}
	p := NewParser()
	pi, err := p.Extract(context.Background(), hypo, "a green one, qty 2")
	require.NoError(t, err)
	assert.Equal(t, "object", pi.ItemName)
	assert.Equal(t, "green", pi.Color)
	assert.Equal(t, 2, pi.Quantity)
	assert.Empty(t, pi.Category)
	assert.Empty(t, pi.Size)
}

func TestParserSizeToken(t *testing.T) {
	p := NewParser()
	pi, err := p.Extract(context.Background(), bottleHypothesis(), "need it in xl thanks")
	require.NoError(t, err)
	assert.Equal(t, "XL", pi.Size)

	// "l" must match as a whole word, not inside other words.
	pi, err = p.Extract(context.Background(), bottleHypothesis(), "a lovely item")
	require.NoError(t, err)
	assert.Empty(t, pi.Size)
}

func TestParserEmptyTextFallsBackToHypothesis(t *testing.T) {
	p := NewParser()
	pi, err := p.Extract(context.Background(), bottleHypothesis(), "")
	require.NoError(t, err)
	assert.Equal(t, "water bottle", pi.ItemName)
	assert.Equal(t, "blue", pi.Color)
	assert.Equal(t, 1, pi.Quantity)
	assert.Nil(t, pi.BudgetUSD)
}

func f64(v float64) *float64 { return &v }
