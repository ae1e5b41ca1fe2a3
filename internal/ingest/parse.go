package ingest

import (
	"regexp"
	"strings"
	"time"
)

// Vendor exports disagree on timestamp formats, so parsing walks a fixed
// chain: ISO-8601 first, then the locale-specific layouts observed in the
// wild, then a date-only fallback. A value none of them accept drops the
// row; it never aborts the file.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006",
}

// Matches a trailing UTC offset plus timezone name suffix
// ("... +0000 UTC", "... +0200 Europe/Berlin") that some exports append
// after the fractional-second timestamp.
var offsetZoneSuffix = regexp.MustCompile(`\s+[+-]\d{4}(\s+[A-Za-z][A-Za-z0-9_/+-]*)?$`)

// ParseTimestamp parses one vendor timestamp value. The second return is
// false when no known layout accepts the value.
func ParseTimestamp(s string) (time.Time, bool) {
	value := strings.TrimSpace(s)
	if value == "" {
		return time.Time{}, false
	}

	stripped := offsetZoneSuffix.ReplaceAllString(value, "")

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
		if stripped != value {
			if t, err := time.Parse(layout, stripped); err == nil {
				return t, true
			}
		}
	}

	return time.Time{}, false
}

// headerIndex maps normalized column names to their positions in the
// header row.
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\uFEFF")
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return index
}

// rowValue returns the trimmed cell under the first column name that
// exists in the row, or "" when none do.
func rowValue(row []string, index map[string]int, columns ...string) string {
	for _, column := range columns {
		if i, ok := index[column]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
	}
	return ""
}

// rawRow preserves the original row verbatim, keyed by header name, for
// later reprocessing.
func rawRow(row []string, header []string) map[string]string {
	raw := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(row) {
			raw[strings.TrimSpace(name)] = row[i]
		}
	}
	return raw
}
