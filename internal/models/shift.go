package models

import "time"

type ShiftType string

const (
	ShiftTypeDay   ShiftType = "day"
	ShiftTypeNight ShiftType = "night"
)

// Shift is a maximal run of one driver+vehicle's consecutive transactions
// with no idle gap exceeding the configured threshold. Shifts are derived
// on every query and never persisted; for a given transaction set the
// result is deterministic.
type Shift struct {
	DriverName    string    `json:"driver_name"`
	LicensePlate  string    `json:"license_plate"`
	ShiftStart    time.Time `json:"shift_start"`
	ShiftEnd      time.Time `json:"shift_end"`
	ShiftType     ShiftType `json:"shift_type"`
	Revenue       int64     `json:"revenue"`
	DistanceUnits int64     `json:"distance_units"`
	HoursWorked   float64   `json:"hours_worked"`
	TripCount     int       `json:"trip_count"`
}

// ShiftSummary rolls the detected shifts up for the dashboard. Averages
// are 0 when no shifts were detected.
type ShiftSummary struct {
	TotalShifts      int     `json:"total_shifts"`
	DayShifts        int     `json:"day_shifts"`
	NightShifts      int     `json:"night_shifts"`
	AvgDurationHours float64 `json:"avg_duration_hours"`
	AvgRevenue       int64   `json:"avg_revenue"`
	TotalRevenue     int64   `json:"total_revenue"`
	TotalHours       float64 `json:"total_hours"`
	TotalDistance    int64   `json:"total_distance_units"`
}
