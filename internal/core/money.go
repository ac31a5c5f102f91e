// Package core provides amount parsing and formatting utilities.
//
// This file contains functions for turning user-entered amounts into
// decimals and for rendering them back for display.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// AmountTier buckets an amount for display emphasis.
type AmountTier string

const (
	TierLow    AmountTier = "low"
	TierMedium AmountTier = "medium"
	TierHigh   AmountTier = "high"
)

var (
	tierHighFloor  = decimal.NewFromInt(100)
	tierMediumLow  = decimal.NewFromInt(10)
	currencySymbol = map[string]string{
		"USD": "$",
		"EUR": "€",
		"GBP": "£",
	}
)

// ParseAmount converts a user-entered decimal string to a non-negative amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. A blank
// string yields zero, matching an untouched numeric field. Signs, letters and
// repeated separators are rejected.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("")      -> 0, nil
//	ParseAmount("-1")    -> 0, ErrNegativeAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrNegativeAmount
	}
	if strings.HasPrefix(s, "+") {
		return decimal.Zero, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	digits := 0
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
			digits++
		}
	}
	if digits == 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Tier returns the display bucket: high from 100 up, medium strictly between
// 10 and 100, low otherwise.
func Tier(amount decimal.Decimal) AmountTier {
	switch {
	case amount.GreaterThanOrEqual(tierHighFloor):
		return TierHigh
	case amount.GreaterThan(tierMediumLow):
		return TierMedium
	default:
		return TierLow
	}
}

// FormatAmount renders an amount with two decimals and thousands separators,
// prefixed by the currency symbol when known or by the ISO code otherwise.
func FormatAmount(amount decimal.Decimal, currencyCode string) string {
	neg := amount.IsNegative()
	s := amount.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	body := b.String() + "." + frac

	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	prefix := code + " "
	if sym, ok := currencySymbol[code]; ok {
		prefix = sym
	}
	if code == "" {
		prefix = ""
	}
	if neg {
		return "-" + prefix + body
	}
	return prefix + body
}
