// Package models defines data structures for Kabufolio
package models

import (
	"fmt"
	"strings"
)

// ReportingCurrency is the single currency all portfolio aggregates are
// expressed in. Fixed for the whole system; consumed as configuration,
// never computed.
const ReportingCurrency = "JPY"

// Currency describes one supported currency: its display symbol and the
// number of decimal places conventionally shown.
type Currency struct {
	Code     string `json:"code"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// currencies is a static enumerated mapping, not polymorphic dispatch.
var currencies = map[string]Currency{
	"JPY": {Code: "JPY", Symbol: "¥", Decimals: 0},
	"USD": {Code: "USD", Symbol: "$", Decimals: 2},
	"EUR": {Code: "EUR", Symbol: "€", Decimals: 2},
	"GBP": {Code: "GBP", Symbol: "£", Decimals: 2},
	"AUD": {Code: "AUD", Symbol: "A$", Decimals: 2},
	"CAD": {Code: "CAD", Symbol: "C$", Decimals: 2},
	"CHF": {Code: "CHF", Symbol: "Fr", Decimals: 2},
	"HKD": {Code: "HKD", Symbol: "HK$", Decimals: 2},
	"SGD": {Code: "SGD", Symbol: "S$", Decimals: 2},
	"CNY": {Code: "CNY", Symbol: "¥", Decimals: 2},
	"KRW": {Code: "KRW", Symbol: "₩", Decimals: 0},
	"INR": {Code: "INR", Symbol: "₹", Decimals: 2},
}

// CurrencyInfo returns the reference entry for a currency code.
// Unknown codes get a generic entry with 2 decimals so formatting still works.
func CurrencyInfo(code string) Currency {
	if c, ok := currencies[strings.ToUpper(code)]; ok {
		return c
	}
	return Currency{Code: strings.ToUpper(code), Symbol: code + " ", Decimals: 2}
}

// IsSupportedCurrency reports whether code is in the reference table.
func IsSupportedCurrency(code string) bool {
	_, ok := currencies[strings.ToUpper(code)]
	return ok
}

// FormatAmount formats an amount using the currency's symbol and decimal
// convention (e.g. "¥1,950,000" stays plain here — no thousand separators,
// keep it machine-friendly).
func FormatAmount(code string, amount float64) string {
	c := CurrencyInfo(code)
	return fmt.Sprintf("%s%.*f", c.Symbol, c.Decimals, amount)
}

// FXPair builds the pair key used by the market data provider, e.g.
// FXPair("USD", "JPY") == "USDJPY".
func FXPair(from, to string) string {
	return strings.ToUpper(from) + strings.ToUpper(to)
}

// DateLayout is the canonical date form used throughout the system.
const DateLayout = "2006-01-02"

// NormalizeDate canonicalizes a transaction date string. Both separator
// conventions "2023/01/15" and "2023-01-15" are accepted; anything else is
// a data-integrity error and must fail fast rather than contaminate
// downstream arithmetic.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty transaction date")
	}
	// Strip a time component if a persistence layer appended one.
	if idx := strings.IndexByte(s, 'T'); idx == 10 {
		s = s[:10]
	}
	normalized := strings.ReplaceAll(s, "/", "-")
	parts := strings.Split(normalized, "-")
	if len(parts) != 3 || len(parts[0]) != 4 {
		return "", fmt.Errorf("invalid date %q: want YYYY-MM-DD or YYYY/MM/DD", s)
	}
	// Zero-pad single-digit month/day so string comparison stays ordered.
	normalized = fmt.Sprintf("%s-%02s-%02s", parts[0], parts[1], parts[2])
	if _, err := ParseDate(normalized); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return normalized, nil
}
