package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatINR(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "0", want: "₹0"},
		{in: "999", want: "₹999"},
		{in: "1000", want: "₹1,000"},
		{in: "130000", want: "₹1,30,000"},
		{in: "12345678", want: "₹1,23,45,678"},
		{in: "-20000", want: "₹-20,000"},
		{in: "1234.5", want: "₹1,234.5"},
		{in: "1234.567", want: "₹1,234.57"},
	}
	for _, tc := range tests {
		got := FormatINR(decimal.RequireFromString(tc.in))
		if got != tc.want {
			t.Fatalf("FormatINR(%s) got=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestParse(t *testing.T) {
	got, err := Parse("₹1,30,000.50")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("130000.50")) {
		t.Fatalf("got %s", got)
	}
	if _, err := Parse("abc"); err == nil {
		t.Fatalf("expected invalid amount to fail")
	}
	if _, err := Parse("  "); err == nil {
		t.Fatalf("expected empty amount to fail")
	}
}

func TestShareAndPercent(t *testing.T) {
	amount := decimal.NewFromInt(1001)
	if got := Share(amount, 70); !got.Equal(decimal.RequireFromString("700.7")) {
		t.Fatalf("share got %s", got)
	}
	if got := Percent(decimal.NewFromInt(5), decimal.Zero); !got.IsZero() {
		t.Fatalf("expected zero for empty whole, got %s", got)
	}
	if got := Percent(decimal.NewFromInt(5000), decimal.NewFromInt(100000)); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("percent got %s", got)
	}
}
