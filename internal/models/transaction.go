package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transaction is one payment or payout line from a vendor payment report.
// All monetary fields are integer minor currency units (cents); floats are
// parsed exactly once at ingest and never re-derived downstream.
//
// LicensePlate may be empty at creation time (campaign and financial
// summary rows are keyed by driver name only) and is back-filled by the
// cross-reference pass. Transactions are otherwise never mutated.
type Transaction struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID       string             `json:"session_id" bson:"session_id"`
	LicensePlate    string             `json:"license_plate" bson:"license_plate"`
	DriverName      string             `json:"driver_name,omitempty" bson:"driver_name,omitempty"`
	TransactionTime time.Time          `json:"transaction_time" bson:"transaction_time"`
	Amount          int64              `json:"amount" bson:"amount"`
	Description     string             `json:"description,omitempty" bson:"description,omitempty"`
	TripUUID        string             `json:"trip_uuid,omitempty" bson:"trip_uuid,omitempty"`
	Revenue         int64              `json:"revenue,omitempty" bson:"revenue,omitempty"`
	FarePrice       int64              `json:"fare_price,omitempty" bson:"fare_price,omitempty"`
	DistanceUnits   int64              `json:"distance_units,omitempty" bson:"distance_units,omitempty"`
	TripStart       *time.Time         `json:"trip_start,omitempty" bson:"trip_start,omitempty"`
	TripEnd         *time.Time         `json:"trip_end,omitempty" bson:"trip_end,omitempty"`
	Platform        Platform           `json:"platform" bson:"platform"`
	RawData         map[string]string  `json:"raw_data,omitempty" bson:"raw_data,omitempty"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
}

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
