// Package recipient canonicalizes raw phone input for the supported locale
// (India, +91). Normalization is pure and deterministic; nothing ambiguous is
// ever passed downstream.
package recipient

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/delivery-router/internal/domain"
)

const countryCode = "91"

// Digits strips every non-digit character from raw.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize canonicalizes raw into +91XXXXXXXXXX form.
//
// Accepted shapes: a 12-digit string already carrying the 91 country code, a
// 10-digit subscriber number, or either of those with a leading trunk zero.
// Anything else is rejected with domain.ErrInvalidRecipient.
func Normalize(raw string) (string, error) {
	digits := Digits(raw)

	if len(digits) == 12 && strings.HasPrefix(digits, countryCode) {
		return "+" + digits, nil
	}

	digits = strings.TrimPrefix(digits, "0")
	if len(digits) == 12 && strings.HasPrefix(digits, countryCode) {
		return "+" + digits, nil
	}
	if len(digits) == 10 {
		return "+" + countryCode + digits, nil
	}

	return "", fmt.Errorf("%w: %q", domain.ErrInvalidRecipient, raw)
}
