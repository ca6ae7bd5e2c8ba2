// Package core provides money parsing and handling utilities.
//
// Amounts are always integer minor units. Rupiah has no fractional subunit in
// this domain, so user input is reduced to its digits before parsing.
package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// RupiahSymbol is the fixed currency symbol used in documents.
	RupiahSymbol = "Rp"
	nbsp         = "\u00a0"
)

var idPrinter = message.NewPrinter(language.Indonesian)

// StripNonDigits removes every character that is not an ASCII digit.
func StripNonDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// ParseDigits interprets the digits contained in s as an amount in minor units.
//
// Everything that is not a digit is ignored, so "Rp 5.000.000" parses as
// 5000000. An empty result is treated as zero; more digits than an int64
// holds clamp to math.MaxInt64.
//
// Examples:
//
//	ParseDigits("5.000.000") -> 5000000
//	ParseDigits("abc")       -> 0
//	ParseDigits("")          -> 0
func ParseDigits(s string) int64 {
	digits := StripNonDigits(s)
	if digits == "" {
		return 0
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt64
	}
	if err != nil {
		return 0
	}
	return v
}

// FormatGrouped formats n with id-ID digit grouping, e.g. 5000000 -> "5.000.000".
func FormatGrouped(n int64) string {
	return idPrinter.Sprintf("%d", n)
}

// FormatRupiah formats n as an id-ID currency string with no decimals,
// e.g. 5000000 -> "Rp 5.000.000" (non-breaking space after the symbol).
func FormatRupiah(n int64) string {
	if n < 0 {
		return "-" + RupiahSymbol + nbsp + FormatGrouped(-n)
	}
	return RupiahSymbol + nbsp + FormatGrouped(n)
}

// String returns the grouped representation without currency symbol.
func (m Money) String() string {
	return FormatGrouped(m.Minor)
}
