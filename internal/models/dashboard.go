package models

// RevenueBucket is one group-by row of the performance aggregator. Key is
// the grouping value: a day ("2024-06-01"), a month ("2024-06"), a driver
// name or a license plate depending on the query.
type RevenueBucket struct {
	Key           string `json:"key" bson:"_id"`
	Revenue       int64  `json:"revenue" bson:"revenue"`
	DistanceUnits int64  `json:"distance_units" bson:"distance_units"`
	TripCount     int64  `json:"trip_count" bson:"trip_count"`
}

// VehicleMonthCount is one (plate, month) completed-trip count computed
// storage-side; the dashboard applies the bonus tier table to it.
type VehicleMonthCount struct {
	LicensePlate string `json:"license_plate" bson:"license_plate"`
	Month        string `json:"month" bson:"month"`
	Count        int64  `json:"count" bson:"count"`
}

// VehicleMonthBonus is one (plate, month) row with the tier table applied.
type VehicleMonthBonus struct {
	LicensePlate string `json:"license_plate"`
	Month        string `json:"month"`
	Count        int64  `json:"count"`
	Bonus        int64  `json:"bonus"`
}

// Dashboard is the operational performance view: revenue rollups by day,
// month, driver and vehicle plus shift-derived efficiency ratios.
type Dashboard struct {
	ByDay     []*RevenueBucket `json:"by_day"`
	ByMonth   []*RevenueBucket `json:"by_month"`
	ByDriver  []*RevenueBucket `json:"by_driver"`
	ByVehicle []*RevenueBucket `json:"by_vehicle"`

	VehicleBonuses []*VehicleMonthBonus `json:"vehicle_bonuses"`

	Shifts *ShiftSummary `json:"shifts"`

	// Cents per worked hour and per kilometre, derived from the shift
	// rollup; 0 when there is no activity in range.
	RevenuePerHour float64 `json:"revenue_per_hour"`
	RevenuePerKm   float64 `json:"revenue_per_km"`
	RevenuePerDay  float64 `json:"revenue_per_day"`
}
