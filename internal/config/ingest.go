package config

import (
	"time"
)

// IngestConfig carries the ingest batch size and the shift heuristics.
// The gap threshold, day window and default trip duration have no
// confirmed business justification yet, so they stay configurable instead
// of being hard-coded at the call sites.
type IngestConfig struct {
	BatchSize           int           `yaml:"batch_size"`
	ShiftGapThreshold   time.Duration `yaml:"shift_gap_threshold"`
	DayWindowStartHour  int           `yaml:"day_window_start_hour"`
	DayWindowEndHour    int           `yaml:"day_window_end_hour"`
	DefaultTripMinutes  int           `yaml:"default_trip_minutes"`
	CrossRefWindow      time.Duration `yaml:"cross_ref_window"`
	BonusTierUpperTrips int           `yaml:"bonus_tier_upper_trips"`
	BonusTierLowerTrips int           `yaml:"bonus_tier_lower_trips"`
	BonusTierUpperCents int64         `yaml:"bonus_tier_upper_cents"`
	BonusTierLowerCents int64         `yaml:"bonus_tier_lower_cents"`
}

func loadIngestConfig() *IngestConfig {
	return &IngestConfig{
		BatchSize:           getEnvAsInt("INGEST_BATCH_SIZE", 1000),
		ShiftGapThreshold:   getEnvAsDuration("SHIFT_GAP_THRESHOLD", 5*time.Hour),
		DayWindowStartHour:  getEnvAsInt("SHIFT_DAY_WINDOW_START", 6),
		DayWindowEndHour:    getEnvAsInt("SHIFT_DAY_WINDOW_END", 18),
		DefaultTripMinutes:  getEnvAsInt("SHIFT_DEFAULT_TRIP_MINUTES", 15),
		CrossRefWindow:      getEnvAsDuration("INGEST_CROSS_REF_WINDOW", 72*time.Hour),
		BonusTierUpperTrips: getEnvAsInt("BONUS_TIER_UPPER_TRIPS", 700),
		BonusTierLowerTrips: getEnvAsInt("BONUS_TIER_LOWER_TRIPS", 250),
		BonusTierUpperCents: int64(getEnvAsInt("BONUS_TIER_UPPER_CENTS", 40000)),
		BonusTierLowerCents: int64(getEnvAsInt("BONUS_TIER_LOWER_CENTS", 25000)),
	}
}
