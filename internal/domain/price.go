package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrInvalidPrice = errors.New("invalid price")

// ParsePrice converts a display price such as "89€", "1 299,50 €" or "12.5"
// into a decimal amount. Currency symbols and whitespace are dropped and a
// decimal comma is read as a decimal point; when a comma is present, dots are
// treated as thousands separators.
func ParsePrice(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative amount %q", ErrInvalidPrice, s)
	}
	return d, nil
}

// FormatPrice renders an amount the way catalog prices are written: whole
// amounts without decimals ("89€"), others with two decimals and a decimal
// comma ("75,40€").
func FormatPrice(d decimal.Decimal, symbol string) string {
	if d.Equal(d.Truncate(0)) {
		return d.Truncate(0).String() + symbol
	}
	return strings.Replace(d.StringFixed(2), ".", ",", 1) + symbol
}
