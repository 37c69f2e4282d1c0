package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a monetary token from statement text into a
// fixed-point decimal with two digits of precision. It tolerates currency
// symbols, thousands separators and the common negative conventions
// (leading or trailing minus, parentheses).
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	negative := false

	// Parenthesis-negative convention: (123.45)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	// Trailing minus convention: 123.45-
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}

	// Strip currency symbols, separators and stray whitespace
	replacer := strings.NewReplacer(
		"$", "", "£", "", "€", "",
		",", "", " ", "", " ", "",
	)
	s = replacer.Replace(s)
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}

	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string contains no digits")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format %q: %w", s, err)
	}

	if negative {
		d = d.Neg()
	}

	return d.Round(2), nil
}

// AmountSigned reports whether the raw token carries an explicit sign by
// any of the recognized conventions.
func AmountSigned(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return true
	}
	return strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") ||
		strings.HasSuffix(s, "-")
}

// fallbackDateLayouts are tried when the bank profile's layout does not
// match the token. Order matters: more specific layouts first.
var fallbackDateLayouts = []string{
	"01/02/2006",
	"01/02/06",
	"2006-01-02",
	"01-02-2006",
	"02/01/2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseStatementDate parses a date token using the profile layout first,
// then common statement layouts.
func ParseStatementDate(s, profileLayout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	if profileLayout != "" {
		if t, err := time.Parse(profileLayout, s); err == nil {
			return t, nil
		}
	}

	var lastErr error
	for _, layout := range fallbackDateLayouts {
		if layout == profileLayout {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date %q: %w", s, lastErr)
}
