package interfaces

import (
	"context"
	"time"

	"fleetrecon/internal/models"
	"fleetrecon/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TransactionRepository interface {
	// Ingest path. Same idempotency contract as trips, against the
	// (session, plate, time, amount) unique index.
	InsertMany(ctx context.Context, transactions []*models.Transaction) (int, error)

	// Queries. Zero from/to values leave that bound open.
	GetBySession(ctx context.Context, sessionID string, params *utils.PaginationParams) ([]*models.Transaction, int64, error)
	GetBySessionRange(ctx context.Context, sessionID string, from, to time.Time) ([]*models.Transaction, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)

	// Cross-reference back-fill. ExistsByKey checks the unique-index key;
	// the back-fill pass uses it to recognize a plateless re-ingest of a
	// row whose stored copy already carries the plate, and DeleteByID to
	// drop that duplicate. BulkSetPlates tolerates duplicate-key rejects
	// the same way InsertMany does and reports the rows it did update.
	GetMissingPlate(ctx context.Context, sessionID string) ([]*models.Transaction, error)
	ExistsByKey(ctx context.Context, sessionID, licensePlate string, transactionTime time.Time, amount int64) (bool, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) error
	BulkSetPlates(ctx context.Context, plates map[primitive.ObjectID]string) (int64, error)

	// Performance aggregations
	RevenueByDay(ctx context.Context, sessionID string, from, to time.Time) ([]*models.RevenueBucket, error)
	RevenueByMonth(ctx context.Context, sessionID string, from, to time.Time) ([]*models.RevenueBucket, error)
	RevenueByDriver(ctx context.Context, sessionID string, from, to time.Time) ([]*models.RevenueBucket, error)
	RevenueByVehicle(ctx context.Context, sessionID string, from, to time.Time) ([]*models.RevenueBucket, error)

	// Session reset
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
}
