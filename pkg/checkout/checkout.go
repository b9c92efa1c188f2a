// Package checkout admits and settles the final payment. Admission is a
// fixed pipeline of checks, each failing with a specific step code; a
// passing payment produces an idempotent receipt keyed by the canonical
// order payload hash.
package checkout

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopagent/cartwright/pkg/config"
	"github.com/shopagent/cartwright/pkg/models"
)

// Step identifies which admission check refused the payment.
type Step string

const (
	StepAmount     Step = "amount"
	StepVendor     Step = "vendor_blacklist"
	StepCardNumber Step = "card_number"
	StepCardLength Step = "card_length"
	StepVelocity   Step = "velocity"
	StepExpiry     Step = "expiry"
	StepExpired    Step = "expired"
	StepLuhn       Step = "luhn"
	StepCVV        Step = "cvv"
)

// AdmissionError reports a refused payment with the failing step.
type AdmissionError struct {
	Step   Step
	Reason string
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("payment refused at %s: %s", e.Step, e.Reason)
}

// orderIDLength is the hex prefix of the payload hash used as order id.
const orderIDLength = 12

// Gate runs the admission pipeline and settles payments against the
// shared store.
type Gate struct {
	maxAmountUSD float64
	maxAttempts  int
	blacklist    map[string]bool
	store        *Store
	now          func() time.Time
}

// NewGate creates a gate over the store with the configured limits.
func NewGate(cfg config.CheckoutConfig, store *Store) *Gate {
	blacklist := make(map[string]bool, len(cfg.Blacklist))
	for _, vendor := range cfg.Blacklist {
		blacklist[vendor] = true
	}
	return &Gate{
		maxAmountUSD: cfg.MaxAmountUSD,
		maxAttempts:  cfg.VelocityMaxAttempts,
		blacklist:    blacklist,
		store:        store,
		now:          time.Now,
	}
}

// Pay validates the offer and payment, then returns the receipt. The
// receipt amount is always the offer price, never the client-supplied
// amount. Re-presenting a stored idempotency key returns the stored
// receipt unchanged; an empty key defaults to the payload hash.
//
// Admission order: amount, vendor blacklist, card digits, brand/length,
// velocity, expiry format, expiry in future, Luhn, CVV. The card's
// failed-attempt counter is bumped by expiry/Luhn/CVV failures and reset
// on success.
func (g *Gate) Pay(offer models.Offer, payment models.PaymentInput, idempotencyKey string) (models.Receipt, error) {
	if offer.PriceUSD <= 0 {
		return models.Receipt{}, &AdmissionError{Step: StepAmount, Reason: "invalid offer amount"}
	}
	if offer.PriceUSD > g.maxAmountUSD {
		return models.Receipt{}, &AdmissionError{Step: StepAmount, Reason: "amount exceeds checkout limit"}
	}
	if g.blacklist[offer.Vendor] {
		return models.Receipt{}, &AdmissionError{Step: StepVendor, Reason: "vendor not allowed"}
	}

	digits := cardDigits(payment.CardNumber)
	if len(digits) < 13 {
		return models.Receipt{}, &AdmissionError{Step: StepCardNumber, Reason: "card number too short"}
	}
	brand := detectBrand(digits)
	if !brandLengthValid(digits, brand) {
		return models.Receipt{}, &AdmissionError{Step: StepCardLength, Reason: "invalid card length for " + brand}
	}
	if g.store.Velocity(digits) > g.maxAttempts {
		return models.Receipt{}, &AdmissionError{Step: StepVelocity, Reason: "card flagged for excessive failed attempts"}
	}

	if !expiryFormatValid(payment.ExpiryMMYY) {
		g.store.BumpVelocity(digits)
		return models.Receipt{}, &AdmissionError{Step: StepExpiry, Reason: "invalid expiry"}
	}
	if !expiryInFuture(payment.ExpiryMMYY, g.now()) {
		g.store.BumpVelocity(digits)
		return models.Receipt{}, &AdmissionError{Step: StepExpired, Reason: "card expired"}
	}
	if !luhnValid(digits) {
		g.store.BumpVelocity(digits)
		return models.Receipt{}, &AdmissionError{Step: StepLuhn, Reason: "invalid card"}
	}
	if !cvvValid(payment.CVV) {
		g.store.BumpVelocity(digits)
		return models.Receipt{}, &AdmissionError{Step: StepCVV, Reason: "invalid cvv"}
	}
	g.store.ResetVelocity(digits)

	masked := maskCard(digits)
	payloadHash := canonicalHash(offer, masked, brand)
	if idempotencyKey == "" {
		idempotencyKey = payloadHash
	}

	receipt := models.Receipt{
		OrderID:        payloadHash[:orderIDLength],
		IdempotencyKey: idempotencyKey,
		AmountUSD:      offer.PriceUSD,
		Vendor:         offer.Vendor,
		CardBrand:      brand,
		MaskedCard:     masked,
	}
	return g.store.PutIfAbsent(idempotencyKey, receipt), nil
}

// canonicalHash is the SHA-256 of the sorted-key JSON of the order
// payload. Its 12-char prefix becomes the order id; the full hex is the
// default idempotency key.
func canonicalHash(offer models.Offer, maskedCard, brand string) string {
	payload, _ := json.Marshal(map[string]any{
		"amount":    offer.PriceUSD,
		"card":      maskedCard,
		"card_type": brand,
		"title":     offer.Title,
		"vendor":    offer.Vendor,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
