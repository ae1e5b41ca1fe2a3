package ingest

import (
	"testing"

	"fleetrecon/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		platform models.Platform
		fileType models.FileType
		matched  bool
	}{
		{
			name:     "bolt trips",
			header:   "Driver,Vehicle's license plate,Order time,Order status,Ride price",
			platform: models.PlatformBolt,
			fileType: models.FileTypeTrips,
			matched:  true,
		},
		{
			name:     "uber payments",
			header:   "Company name,Event time,Description,Paid to company",
			platform: models.PlatformUber,
			fileType: models.FileTypePayments,
			matched:  true,
		},
		{
			name:     "uber trips",
			header:   "Trip UUID,Trip status,Request time,License plate,Driver name",
			platform: models.PlatformUber,
			fileType: models.FileTypeTrips,
			matched:  true,
		},
		{
			name:     "bolt payments",
			header:   "Date,Payout description,Amount,Balance,Driver",
			platform: models.PlatformBolt,
			fileType: models.FileTypePayments,
			matched:  true,
		},
		{
			name:     "uber campaign",
			header:   "Campaign,Driver,Amount,Payment date",
			platform: models.PlatformUber,
			fileType: models.FileTypeCampaign,
			matched:  true,
		},
		{
			name:     "bom and whitespace stripped",
			header:   "\uFEFF  Driver,Vehicle's license plate,Order time,Ride price  ",
			platform: models.PlatformBolt,
			fileType: models.FileTypeTrips,
			matched:  true,
		},
		{
			name:    "unknown layout",
			header:  "foo,bar,baz",
			matched: false,
		},
		{
			name:    "empty header",
			header:  "",
			matched: false,
		},
		{
			name:    "garbled bytes",
			header:  "\x00\x01\x02",
			matched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := Classify(tt.header)
			if ok != tt.matched {
				t.Fatalf("Classify(%q) matched = %v, want %v", tt.header, ok, tt.matched)
			}
			if !tt.matched {
				return
			}
			if c.Platform != tt.platform || c.FileType != tt.fileType {
				t.Errorf("Classify(%q) = %s/%s, want %s/%s", tt.header, c.Platform, c.FileType, tt.platform, tt.fileType)
			}
		})
	}
}

// The uber trips header also contains "license plate"; the bolt trips rule
// must not fire because it additionally requires a price column.
func TestClassifyRulePriority(t *testing.T) {
	header := "Trip UUID,Trip status,Request time,License plate,Driver name"
	c, ok := Classify(header)
	if !ok {
		t.Fatal("expected a classification")
	}
	if c.Platform != models.PlatformUber || c.FileType != models.FileTypeTrips {
		t.Errorf("got %s/%s, want uber/trips", c.Platform, c.FileType)
	}
}

func TestClassifyFile(t *testing.T) {
	data := []byte("Date,Payout description,Amount,Balance,Driver\r\n2024-06-01,Payout B-XY 123,12,50,100,00,John\r\n")
	c, ok := ClassifyFile(data)
	if !ok {
		t.Fatal("expected a classification")
	}
	if c.Platform != models.PlatformBolt || c.FileType != models.FileTypePayments {
		t.Errorf("got %s/%s, want bolt/payments", c.Platform, c.FileType)
	}

	if _, ok := ClassifyFile([]byte("just one unrecognized line")); ok {
		t.Error("expected no classification for unknown single-line file")
	}
}
