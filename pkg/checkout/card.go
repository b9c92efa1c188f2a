package checkout

import (
	"regexp"
	"strings"
	"time"
)

// Card brands detected from the leading digits.
const (
	BrandVisa       = "visa"
	BrandMastercard = "mastercard"
	BrandAmex       = "amex"
	BrandDiscover   = "discover"
	BrandUnknown    = "unknown"
)

var (
	expiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvRe    = regexp.MustCompile(`^\d{3}$`)
)

// cardDigits strips every non-digit character from the card number.
func cardDigits(cardNumber string) string {
	var b strings.Builder
	for _, ch := range cardNumber {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// detectBrand classifies the card by its leading digits.
func detectBrand(digits string) string {
	switch {
	case strings.HasPrefix(digits, "4"):
		return BrandVisa
	case len(digits) >= 2 && digits[0] == '5' && digits[1] >= '1' && digits[1] <= '5':
		return BrandMastercard
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return BrandAmex
	case strings.HasPrefix(digits, "6"):
		return BrandDiscover
	default:
		return BrandUnknown
	}
}

// brandLengthValid enforces the PAN length per brand: amex 15,
// visa/mastercard/discover 16, unknown anywhere in [13,19].
func brandLengthValid(digits, brand string) bool {
	length := len(digits)
	switch brand {
	case BrandAmex:
		return length == 15
	case BrandVisa, BrandMastercard, BrandDiscover:
		return length == 16
	default:
		return length >= 13 && length <= 19
	}
}

// luhnValid runs the Luhn checksum over the digit string.
func luhnValid(digits string) bool {
	if digits == "" {
		return false
	}
	parity := len(digits) % 2
	checksum := 0
	for i, ch := range digits {
		d := int(ch - '0')
		if i%2 == parity {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		checksum += d
	}
	return checksum%10 == 0
}

// expiryFormatValid checks the MM/YY shape with a real month.
func expiryFormatValid(expiry string) bool {
	return expiryRe.MatchString(expiry)
}

// expiryInFuture reports whether MM/YY is the reference month or later.
// Years are interpreted as 2000+YY; the reference clock is UTC.
func expiryInFuture(expiry string, reference time.Time) bool {
	if !expiryFormatValid(expiry) {
		return false
	}
	month := int(expiry[0]-'0')*10 + int(expiry[1]-'0')
	year := 2000 + int(expiry[3]-'0')*10 + int(expiry[4]-'0')

	ref := reference.UTC()
	if year != ref.Year() {
		return year > ref.Year()
	}
	return month >= int(ref.Month())
}

// cvvValid requires exactly three digits.
func cvvValid(cvv string) bool {
	return cvvRe.MatchString(cvv)
}

// maskCard hides all but the last four digits.
func maskCard(digits string) string {
	if len(digits) <= 4 {
		return digits
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
