package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const Symbol = "₹"

var (
	Zero    = decimal.Zero
	hundred = decimal.NewFromInt(100)
)

// Parse reads a decimal amount, accepting grouping commas and an optional rupee sign.
func Parse(raw string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, Symbol)
	clean = strings.ReplaceAll(clean, ",", "")
	if clean == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return d, nil
}

func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// Share returns pct percent of amount rounded to paise.
func Share(amount decimal.Decimal, pct int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(pct)).Div(hundred).Round(2)
}

// Percent returns part/whole*100, or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// FormatINR renders an amount with the rupee sign and Indian digit grouping
// (1,30,000). Fractions are kept to two places and trailing zeros dropped.
func FormatINR(d decimal.Decimal) string {
	return Symbol + Group(d)
}

// Group renders an amount with Indian digit grouping and no currency sign.
func Group(d decimal.Decimal) string {
	text := d.Round(2).String()
	sign := ""
	if strings.HasPrefix(text, "-") {
		sign = "-"
		text = text[1:]
	}
	whole, frac, _ := strings.Cut(text, ".")
	out := sign + groupIndian(whole)
	if frac != "" {
		out += "." + frac
	}
	return out
}

func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head := digits[:len(digits)-3]
	tail := digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}
