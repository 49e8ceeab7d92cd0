package cli

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var indianGrouping = regexp.MustCompile(`^(\d{1,2},)*\d{1,3}$`)

// Amounts keep two decimals, Indian digit grouping and their value.
func TestProperty_IndianCurrencyFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("FormatIndianCurrency produces valid Indian format", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatIndianCurrency(amount)

			prefix := "₹"
			if amount < 0 && formatted != "₹0.00" {
				prefix = "-₹"
			}
			if !strings.HasPrefix(formatted, prefix) {
				t.Logf("expected %s prefix for %f, got %s", prefix, amount, formatted)
				return false
			}

			parts := strings.Split(strings.TrimPrefix(formatted, prefix), ".")
			if len(parts) != 2 || len(parts[1]) != 2 {
				t.Logf("expected 2 decimal places for %f, got %s", amount, formatted)
				return false
			}
			if !indianGrouping.MatchString(parts[0]) {
				t.Logf("invalid Indian grouping for %f: %s", amount, formatted)
				return false
			}
			return true
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("FormatIndianCurrency preserves value", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatIndianCurrency(amount)
			parsed := parseIndianCurrency(formatted)

			if math.Abs(parsed-math.Round(amount*100)/100) > 0.01 {
				t.Logf("value not preserved: original=%f, formatted=%s, parsed=%f", amount, formatted, parsed)
				return false
			}
			return true
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.Property("FormatPercent signs positive values", prop.ForAll(
		func(value float64) bool {
			formatted := FormatPercent(value)
			if !strings.HasSuffix(formatted, "%") {
				return false
			}
			return value <= 0 || strings.HasPrefix(formatted, "+")
		},
		gen.Float64Range(-100, 100),
	))

	properties.Property("FormatVolume uses correct units", prop.ForAll(
		func(volume int64) bool {
			formatted := FormatVolume(volume)
			switch {
			case volume >= 10000000:
				return strings.HasSuffix(formatted, " Cr")
			case volume >= 100000:
				return strings.HasSuffix(formatted, " L")
			case volume >= 1000:
				return strings.HasSuffix(formatted, " K")
			}
			return formatted == strconv.FormatInt(volume, 10)
		},
		gen.Int64Range(0, 1e12),
	))

	properties.TestingRun(t)
}

func parseIndianCurrency(s string) float64 {
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "₹")
	s = strings.ReplaceAll(s, ",", "")

	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	if negative {
		parsed = -parsed
	}
	return parsed
}

func TestIndianNumberFormatExamples(t *testing.T) {
	testCases := []struct {
		amount   float64
		expected string
	}{
		{0, "₹0.00"},
		{1, "₹1.00"},
		{100, "₹100.00"},
		{1000, "₹1,000.00"},
		{100000, "₹1,00,000.00"},      // 1 lakh
		{1000000, "₹10,00,000.00"},    // 10 lakhs
		{10000000, "₹1,00,00,000.00"}, // 1 crore
		{-1234.56, "-₹1,234.56"},
		{12345678.90, "₹1,23,45,678.90"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			if result := FormatIndianCurrency(tc.amount); result != tc.expected {
				t.Errorf("FormatIndianCurrency(%f) = %s, want %s", tc.amount, result, tc.expected)
			}
		})
	}
}

func TestFormatPercentExamples(t *testing.T) {
	testCases := []struct {
		value    float64
		expected string
	}{
		{0, "0.00%"},
		{1.5, "+1.50%"},
		{-2.5, "-2.50%"},
		{100, "+100.00%"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			if result := FormatPercent(tc.value); result != tc.expected {
				t.Errorf("FormatPercent(%f) = %s, want %s", tc.value, result, tc.expected)
			}
		})
	}
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		price, level float64
		want         string
	}{
		{110, 100, "+10.00%"},
		{95, 100, "-5.00%"},
		{100, 100, "0.00%"},
		{10, 0, "-"},
	}
	for _, tt := range tests {
		if got := FormatDistance(tt.price, tt.level); got != tt.want {
			t.Errorf("FormatDistance(%v, %v) = %s, want %s", tt.price, tt.level, got, tt.want)
		}
	}
}

func TestFormatDateTimeUsesIST(t *testing.T) {
	ts := time.Date(2024, 3, 11, 11, 0, 0, 0, time.UTC)
	if got := FormatDateTime(ts); got != "11-Mar-2024 16:30:00 IST" {
		t.Errorf("FormatDateTime() = %s", got)
	}
	if got := FormatDate(ts); got != "11-Mar-2024" {
		t.Errorf("FormatDate() = %s", got)
	}
	if got := FormatDate(time.Time{}); got != "-" {
		t.Errorf("FormatDate(zero) = %s", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		250 * time.Millisecond:   "250ms",
		12500 * time.Millisecond: "12.5s",
		135 * time.Second:        "2m 15s",
	}
	for d, want := range tests {
		if got := FormatDuration(d); got != want {
			t.Errorf("FormatDuration(%v) = %s, want %s", d, got, want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("RELIANCE.NS", 8); got != "RELIA..." {
		t.Errorf("TruncateString() = %s", got)
	}
	if got := TruncateString("TCS.NS", 8); got != "TCS.NS" {
		t.Errorf("TruncateString() = %s", got)
	}
}
