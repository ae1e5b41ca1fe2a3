package ingest

import (
	"regexp"
	"strings"
)

// platePattern matches German-style plates embedded in free text:
// 1-3 letters, hyphen, 1-3 letters, optional space, 1-4 digits, optional
// trailing letter ("B-MU 1234", "M-AB123E").
var platePattern = regexp.MustCompile(`[A-ZÄÖÜ]{1,3}-[A-ZÄÖÜ]{1,3} ?\d{1,4}[A-Z]?`)

// Payment descriptions occasionally embed correlation UUIDs whose hex
// segments are plate-shaped. A match is rejected when the surrounding
// text looks like UUID material; better no plate than a wrong one.
var (
	canonicalUUID = regexp.MustCompile(`[0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12}`)
	hexRunHyphen  = regexp.MustCompile(`[0-9A-Fa-f]{4,}-|-[0-9A-Fa-f]{4,}`)
	hexRunBefore  = regexp.MustCompile(`[0-9A-Fa-f]{4,}$`)
	hexRunAfter   = regexp.MustCompile(`^-?[0-9A-Fa-f]{4,}`)
)

var incentiveMarkers = []string{"incentive", "bonus", "campaign", "promotion"}

const uuidWindow = 20

// NormalizePlate uppercases a plate and strips all internal whitespace.
func NormalizePlate(plate string) string {
	upper := strings.ToUpper(strings.TrimSpace(plate))
	return strings.Join(strings.Fields(upper), "")
}

// ExtractLicensePlate pulls a license plate out of a free-text payment
// description. It returns false when no plate-shaped substring is found
// or when the first candidate sits in UUID-looking surroundings.
func ExtractLicensePlate(description string) (string, bool) {
	upper := strings.ToUpper(description)

	loc := platePattern.FindStringIndex(upper)
	if loc == nil {
		return "", false
	}

	if looksLikeUUIDContext(upper, loc[0], loc[1]) {
		return "", false
	}

	return NormalizePlate(upper[loc[0]:loc[1]]), true
}

// ExtractIncentivePlate is the gated variant used for campaign-style
// rows: extraction is only attempted when the description reads like a
// vehicle-based incentive ("... bonus ... 50 trips ...").
func ExtractIncentivePlate(description string) (string, bool) {
	lower := strings.ToLower(description)

	if !strings.Contains(lower, "trips") {
		return "", false
	}

	gated := false
	for _, marker := range incentiveMarkers {
		if strings.Contains(lower, marker) {
			gated = true
			break
		}
	}
	if !gated {
		return "", false
	}

	return ExtractLicensePlate(description)
}

// looksLikeUUIDContext inspects the text around a plate candidate. The
// candidate is rejected when a canonical UUID overlaps its neighbourhood
// or when the adjacent text carries hyphenated hex runs.
func looksLikeUUIDContext(text string, start, end int) bool {
	windowStart := start - uuidWindow
	if windowStart < 0 {
		windowStart = 0
	}
	windowEnd := end + uuidWindow
	if windowEnd > len(text) {
		windowEnd = len(text)
	}

	if canonicalUUID.MatchString(text[windowStart:windowEnd]) {
		return true
	}

	prefix := text[windowStart:start]
	suffix := text[end:windowEnd]

	// A hex run glued directly to the candidate means the "plate" is a
	// fragment of an identifier, not a vehicle.
	if hexRunBefore.MatchString(prefix) || hexRunAfter.MatchString(suffix) {
		return true
	}

	return hexRunHyphen.MatchString(prefix) || hexRunHyphen.MatchString(suffix)
}
