package utils

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numericShape = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})*(,\d+)?$|^-?\d+([.,]\d+)?$`)

// ParseAmountCents parses a vendor amount string into integer cents.
// Vendor files use the European format: comma as decimal separator, dot as
// optional thousands separator ("1.234,56" -> 123456, "12,50" -> 1250).
// Plain dot-decimal values also pass through ("12.5" -> 1250). Rounding is
// half away from zero so large ingest volumes carry no systematic bias.
func ParseAmountCents(s string) (int64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "€")
	cleaned = strings.TrimSuffix(cleaned, "€")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if !numericShape.MatchString(cleaned) {
		return 0, fmt.Errorf("amount %q is not numeric", s)
	}

	if strings.Contains(cleaned, ",") {
		// Comma decimal; any dots are thousands separators.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else if dots := strings.Count(cleaned, "."); dots > 1 {
		// "1.234.567" without a decimal part.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse amount %q: %w", s, err)
	}

	return int64(math.Round(value * 100)), nil
}

// ParseDistanceUnits parses a vendor distance string (km, comma-decimal)
// into integer centi-kilometres. Values that fail the numeric shape check
// contribute zero rather than an error; aggregation must never abort on a
// single garbled row.
func ParseDistanceUnits(s string) int64 {
	units, err := ParseAmountCents(s)
	if err != nil || units < 0 {
		return 0
	}
	return units
}

// FormatCents renders integer cents as a decimal string ("123456" ->
// "1234.56") for report output.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
