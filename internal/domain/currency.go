package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an upper-case 3 or 4 letter code. Crypto codes such as USDT are
// accepted alongside ISO codes.
type Currency string

func (c Currency) IsValid() bool {
	if len(c) < 3 || len(c) > 4 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("ParseCurrency %q: %w", s, ErrInvalidCurrency)
	}
	return c, nil
}

var settleTolerance = decimal.New(1, -2)

// RoundMoney rounds half away from zero to two decimal places. For the
// non-negative amounts the engine settles this is half-up.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// RateScale is the number of decimals a stored rate keeps.
const RateScale = 8

// ValidRate reports whether r is positive and fits RateScale exactly.
func ValidRate(r decimal.Decimal) bool {
	return r.IsPositive() && r.Equal(r.Truncate(RateScale))
}

// ParseAmount parses a strictly positive amount and rounds it to cents.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("ParseAmount %q: %w", s, ErrInvalidAmount)
	}
	d = RoundMoney(d)
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("ParseAmount %q: %w", s, ErrInvalidAmount)
	}
	return d, nil
}
