package interfaces

import (
	"context"
	"time"

	"fleetrecon/internal/models"
	"fleetrecon/internal/utils"
)

type TripRepository interface {
	// Ingest path. InsertMany is idempotent: rows colliding with the
	// (session, plate, order time) unique index are skipped, and the
	// return value counts only the rows actually inserted.
	InsertMany(ctx context.Context, trips []*models.Trip) (int, error)

	// Queries
	GetBySession(ctx context.Context, sessionID string, params *utils.PaginationParams) ([]*models.Trip, int64, error)
	GetBySessionRange(ctx context.Context, sessionID string, from, to time.Time) ([]*models.Trip, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)

	// Aggregations
	GetDriverPlateRanges(ctx context.Context, sessionID string) ([]*models.DriverPlateRange, error)
	CompletedTripCountsByVehicleMonth(ctx context.Context, sessionID string, from, to time.Time) ([]*models.VehicleMonthCount, error)

	// Session reset
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
}
