package validate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reID      = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reBarcode = regexp.MustCompile(`^[0-9A-Za-z-]{0,32}$`)
	reMethod  = regexp.MustCompile(`^(cash|card)$`)
)

// ID validates a simple resource identifier (product/line ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

func Barcode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reBarcode.MatchString(s)
}

// Name validates a displayable product name with a reasonable max length.
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 80 {
		return "", false
	}
	return s, true
}

// Qty parses a line quantity. Zero is allowed (a mid-edit line); negatives
// and garbage are not.
func Qty(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, false
	}
	if n > 999 {
		n = 999 // clamp to avoid abuse
	}
	return n, true
}

// Money parses a non-negative decimal amount.
func Money(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// Rate parses a tax rate and clamps it into [0,1].
func Rate(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return ClampRate(d), true
}

// ClampRate forces a tax rate into [0,1]. Persisted snapshots may carry
// out-of-range values from older versions.
func ClampRate(d decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(one) {
		return one
	}
	return d
}

// Points parses a loyalty point count; non-negative integers only.
func Points(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Method validates a payment method enum.
func Method(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, reMethod.MatchString(s)
}
