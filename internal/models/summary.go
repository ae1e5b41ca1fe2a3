package models

import "time"

// MonthlyStats is the per-vehicle, per-calendar-month reconciliation cell.
// Bonus, PaidAmount and Difference are integer cents.
type MonthlyStats struct {
	Count      int   `json:"count"`
	Bonus      int64 `json:"bonus"`
	PaidAmount int64 `json:"paid_amount"`
	Difference int64 `json:"difference"`
}

// DriverSummary is the derived per-vehicle reconciliation aggregate. It is
// recomputed on demand from the persisted trip and transaction sets and
// never stored.
type DriverSummary struct {
	LicensePlate    string                   `json:"license_plate"`
	Months          map[string]*MonthlyStats `json:"months"`
	TotalTrips      int                      `json:"total_trips"`
	TotalBonus      int64                    `json:"total_bonus"`
	TotalPaid       int64                    `json:"total_paid"`
	TotalDifference int64                    `json:"total_difference"`
}

// DateRange is the inclusive min/max order time observed across an ingest.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// IngestResult summarizes one multi-file ingest call.
type IngestResult struct {
	TripsAdded        int        `json:"trips_added"`
	TransactionsAdded int        `json:"transactions_added"`
	CompanyName       string     `json:"company_name,omitempty"`
	DateRange         *DateRange `json:"date_range,omitempty"`
	UnclassifiedFiles int        `json:"unclassified_files"`
	PlatesBackfilled  int        `json:"plates_backfilled"`
}
