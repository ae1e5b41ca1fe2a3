package ingest

import (
	"strings"

	"fleetrecon/internal/models"
)

// classifierRules are tested in order against the normalized header line;
// the first rule whose markers are all present wins. The marker pairs are
// the column-name combinations that distinguish the known vendor layouts
// from each other.
var classifierRules = []struct {
	markers        []string
	classification Classification
}{
	{
		markers:        []string{"license plate", "ride price"},
		classification: Classification{models.PlatformBolt, models.FileTypeTrips},
	},
	{
		markers:        []string{"paid to company"},
		classification: Classification{models.PlatformUber, models.FileTypePayments},
	},
	{
		markers:        []string{"trip uuid", "trip status"},
		classification: Classification{models.PlatformUber, models.FileTypeTrips},
	},
	{
		markers:        []string{"payout description", "balance"},
		classification: Classification{models.PlatformBolt, models.FileTypePayments},
	},
	{
		markers:        []string{"campaign", "driver"},
		classification: Classification{models.PlatformUber, models.FileTypeCampaign},
	},
}

// Classify inspects a CSV header line and decides which vendor layout the
// file follows. It is total: any string, including an empty or garbled
// header, resolves to "no match" rather than an error.
func Classify(header string) (Classification, bool) {
	normalized := strings.TrimPrefix(header, "\uFEFF")
	normalized = strings.ToLower(strings.TrimSpace(normalized))

	if normalized == "" {
		return Classification{}, false
	}

	for _, rule := range classifierRules {
		matched := true
		for _, marker := range rule.markers {
			if !strings.Contains(normalized, marker) {
				matched = false
				break
			}
		}
		if matched {
			return rule.classification, true
		}
	}

	return Classification{}, false
}

// ClassifyFile reads the first line out of raw file bytes and classifies
// it. Files without a line break are treated as a single header line.
func ClassifyFile(data []byte) (Classification, bool) {
	header := string(data)
	if idx := strings.IndexAny(header, "\r\n"); idx >= 0 {
		header = header[:idx]
	}
	return Classify(header)
}
