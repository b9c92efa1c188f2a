// Package models holds the domain records exchanged between saga stages.
// All types are plain data: stages communicate by value through the run
// context, never by sharing mutable state.
package models

import "strings"

// BBox is a pixel-space bounding box from the vision provider.
type BBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// ProductHypothesis is the S1 output: what the vision provider believes
// the image shows. Label is always set; everything else is best-effort.
type ProductHypothesis struct {
	Label       string  `json:"label"`
	Brand       string  `json:"brand,omitempty"`
	BBox        *BBox   `json:"bbox,omitempty"`
	Confidence  float64 `json:"confidence"`
	Category    string  `json:"category,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	Color       string  `json:"color,omitempty"`
}

// Display returns the human-facing item name: display name, then label,
// then "item".
func (h ProductHypothesis) Display() string {
	if h.DisplayName != "" {
		return h.DisplayName
	}
	if h.Label != "" {
		return h.Label
	}
	return "item"
}

// PurchaseIntent is the S2 output: the confirmed shopping request.
type PurchaseIntent struct {
	ItemName  string   `json:"item_name"`
	Color     string   `json:"color,omitempty"`
	Size      string   `json:"size,omitempty"`
	Quantity  int      `json:"quantity"` // >= 1
	BudgetUSD *float64 `json:"budget_usd,omitempty"`
	Brand     string   `json:"brand,omitempty"`
	Category  string   `json:"category,omitempty"`
}

// Offer is a scored catalog candidate produced by S3. URL is the canonical
// identity for deduplication (lowercased, trailing slash stripped).
type Offer struct {
	Vendor       string         `json:"vendor"`
	Title        string         `json:"title"`
	PriceUSD     float64        `json:"price_usd"`
	ShippingDays int            `json:"shipping_days"`
	ETADays      int            `json:"eta_days"`
	URL          string         `json:"url"`
	Score        float64        `json:"score"`
	Category     string         `json:"category,omitempty"`
	Keywords     []string       `json:"keywords,omitempty"`
	Description  string         `json:"description,omitempty"`
	ImageURL     string         `json:"image_url,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"` // weight, height, width, length, domain_name
	Tags         []string       `json:"tags,omitempty"`
}

// Risk is the ordered trust band. Comparisons MUST use the numeric order
// below, never the string values.
type Risk int

const (
	RiskLow Risk = iota
	RiskMedium
	RiskHigh
)

var riskNames = [...]string{"low", "medium", "high"}

func (r Risk) String() string {
	if r < RiskLow || r > RiskHigh {
		return "unknown"
	}
	return riskNames[r]
}

// ParseRisk maps a band name to its Risk value. Unknown names map to
// RiskHigh, the pessimistic default.
func ParseRisk(s string) Risk {
	for i, name := range riskNames {
		if s == name {
			return Risk(i)
		}
	}
	return RiskHigh
}

// Raise returns the higher of the two bands. Raising is monotonic: no
// sequence of Raise calls ever lowers the current band.
func (r Risk) Raise(target Risk) Risk {
	if target > r {
		return target
	}
	return r
}

// Less reports whether r is strictly safer than other.
func (r Risk) Less(other Risk) bool { return r < other }

// MarshalText / UnmarshalText keep the wire format as the band name.
func (r Risk) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Risk) UnmarshalText(text []byte) error {
	*r = ParseRisk(string(text))
	return nil
}

// TrustAssessment is the S4 output for a single offer. The profile echo
// fields (TLS through HistoricalIssues) always reflect the vendor profile
// used; the anomaly and cross-check fields are set only when computed.
type TrustAssessment struct {
	Vendor                string             `json:"vendor"`
	TLS                   bool               `json:"tls"`
	DomainAgeDays         int                `json:"domain_age_days"`
	HasPolicyPages        bool               `json:"has_policy_pages"`
	Risk                  Risk               `json:"risk"`
	HappyReviewsPct       float64            `json:"happy_reviews_pct"`
	AcceptsReturns        bool               `json:"accepts_returns"`
	AverageRefundTimeDays int                `json:"average_refund_time_days"`
	HistoricalIssues      bool               `json:"historical_issues"`
	AuthReasons           []string           `json:"auth_reasons,omitempty"`
	PriceZScore           *float64           `json:"price_zscore,omitempty"`
	WeightZScore          *float64           `json:"weight_zscore,omitempty"`
	DimensionZScores      map[string]float64 `json:"dimension_zscores,omitempty"`
	BrandMismatch         bool               `json:"brand_mismatch,omitempty"`
	DomainMismatch        bool               `json:"domain_mismatch,omitempty"`
	VisionMismatch        bool               `json:"vision_mismatch,omitempty"`
	ReplicaTerms          []string           `json:"replica_terms,omitempty"`
}

// PaymentInput is the raw card data presented to S5. AmountUSD is advisory:
// the receipt amount is always taken from the offer.
type PaymentInput struct {
	CardNumber string  `json:"card_number"`
	ExpiryMMYY string  `json:"expiry_mm_yy"`
	CVV        string  `json:"cvv"`
	AmountUSD  float64 `json:"amount_usd"`
}

// Receipt is the S5 output. OrderID is the first 12 hex chars of the
// canonical payload hash; IdempotencyKey re-presents the same receipt.
type Receipt struct {
	OrderID        string  `json:"order_id"`
	IdempotencyKey string  `json:"idempotency_key"`
	AmountUSD      float64 `json:"amount_usd"`
	Vendor         string  `json:"vendor,omitempty"`
	CardBrand      string  `json:"card_brand,omitempty"`
	MaskedCard     string  `json:"masked_card,omitempty"`
}

// Address, PaymentMethod and ShippingOption compose the static checkout
// profile echoed with every saga payload.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type PaymentMethod struct {
	Brand       string `json:"brand"`
	Last4       string `json:"last4"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
}

type ShippingOption struct {
	Carrier         string  `json:"carrier"`
	Service         string  `json:"service"`
	ETABusinessDays int     `json:"eta_business_days"`
	CostUSD         float64 `json:"cost_usd"`
}

type CheckoutProfile struct {
	Address  Address        `json:"address"`
	Payment  PaymentMethod  `json:"payment"`
	Shipping ShippingOption `json:"shipping"`
}

// DefaultCheckoutProfile returns the demo shopper profile attached to saga
// responses.
func DefaultCheckoutProfile() CheckoutProfile {
	return CheckoutProfile{
		Address: Address{
			Name:       "Ada Lovelace",
			Line1:      "1254 Chat Road",
			City:       "San Francisco",
			State:      "CA",
			PostalCode: "94131",
			Country:    "USA",
			Phone:      "+1 (415) 555-1254",
		},
		Payment: PaymentMethod{
			Brand:       "visa",
			Last4:       "4242",
			ExpiryMonth: 12,
			ExpiryYear:  2029,
		},
		Shipping: ShippingOption{
			Carrier:         "USPS",
			Service:         "Ground Advantage",
			ETABusinessDays: 3,
			CostUSD:         0.0,
		},
	}
}

// NormalizeURL canonicalizes an offer URL for deduplication and preferred
// offer matching: trailing slashes stripped, lowercased.
func NormalizeURL(url string) string {
	return strings.ToLower(strings.TrimRight(url, "/"))
}
