package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Platform string

const (
	PlatformUber Platform = "uber"
	PlatformBolt Platform = "bolt"
)

// Trip statuses that count toward the monthly bonus. Uber exports
// "completed", Bolt exports "finished"; everything else is ignored.
const (
	TripStatusCompleted = "completed"
	TripStatusFinished  = "finished"
)

// Trip is one ride event parsed from a vendor trip export. Trips are never
// mutated after ingest; a session reset deletes them en masse.
type Trip struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID    string             `json:"session_id" bson:"session_id"`
	TripID       string             `json:"trip_id,omitempty" bson:"trip_id,omitempty"`
	LicensePlate string             `json:"license_plate" bson:"license_plate"`
	DriverName   string             `json:"driver_name,omitempty" bson:"driver_name,omitempty"`
	OrderTime    time.Time          `json:"order_time" bson:"order_time"`
	TripStatus   string             `json:"trip_status" bson:"trip_status"`
	Platform     Platform           `json:"platform" bson:"platform"`
	RawData      map[string]string  `json:"raw_data,omitempty" bson:"raw_data,omitempty"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
}

// IsCompleted reports whether the trip counts toward bonus computation.
func (t *Trip) IsCompleted() bool {
	switch normalizeStatus(t.TripStatus) {
	case TripStatusCompleted, TripStatusFinished:
		return true
	}
	return false
}

// DriverPlateRange is the activity span of one (platform, driver, plate)
// combination, computed storage-side from the trip set. The cross-reference
// pass uses it to back-fill plates on driver-keyed transactions.
type DriverPlateRange struct {
	Platform     Platform  `json:"platform" bson:"platform"`
	DriverName   string    `json:"driver_name" bson:"driver_name"`
	LicensePlate string    `json:"license_plate" bson:"license_plate"`
	FirstTrip    time.Time `json:"first_trip" bson:"first_trip"`
	LastTrip     time.Time `json:"last_trip" bson:"last_trip"`
	TripCount    int64     `json:"trip_count" bson:"trip_count"`
}
