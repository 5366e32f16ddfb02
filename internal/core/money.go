// Package core provides money parsing and handling utilities.
//
// This file contains the lenient Amount carried by records coming from the
// record store and the strict parser used for user input.
package core

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Amount is a transaction amount exactly as it was received. Records written
// by older clients may carry numbers, numeric strings, null or garbage; the
// raw text is preserved and Decimal coerces it on demand.
type Amount struct {
	raw string
}

// NewAmount returns an Amount holding d.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{raw: d.String()}
}

// AmountOf returns an Amount holding the raw text s without validating it.
func AmountOf(s string) Amount {
	return Amount{raw: s}
}

// Decimal returns the numeric value of the amount. Missing or non-numeric
// values are zero.
func (a Amount) Decimal() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(a.raw))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Valid reports whether the raw value is numeric.
func (a Amount) Valid() bool {
	_, err := decimal.NewFromString(strings.TrimSpace(a.raw))
	return err == nil
}

// String returns the raw text.
func (a Amount) String() string {
	return a.raw
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.raw == "" {
		return []byte("null"), nil
	}
	if a.Valid() {
		return []byte(a.Decimal().String()), nil
	}
	return json.Marshal(a.raw)
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null":
		a.raw = ""
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		a.raw = str
	default:
		a.raw = s
	}
	return nil
}

// ParseAmount converts user input to a positive decimal rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. Signs, exponents and anything
// other than digits are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil
//	ParseAmount("0")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	if parts[0] == "" {
		parts[0] = "0"
	}
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	d, err := decimal.NewFromString(strings.Join(parts, "."))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
