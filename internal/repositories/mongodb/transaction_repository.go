package mongodb

import (
	"context"
	"fmt"
	"time"

	"fleetrecon/internal/models"
	"fleetrecon/internal/repositories/interfaces"
	"fleetrecon/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type transactionRepository struct {
	collection *mongo.Collection
}

func NewTransactionRepository(db *mongo.Database) interfaces.TransactionRepository {
	return &transactionRepository{
		collection: db.Collection("transactions"),
	}
}

func (r *transactionRepository) InsertMany(ctx context.Context, transactions []*models.Transaction) (int, error) {
	if len(transactions) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, 0, len(transactions))
	for _, tx := range transactions {
		if tx.ID.IsZero() {
			tx.ID = primitive.NewObjectID()
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = time.Now()
		}
		docs = append(docs, tx)
	}

	opts := options.InsertMany().SetOrdered(false)
	result, err := r.collection.InsertMany(ctx, docs, opts)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return 0, fmt.Errorf("failed to insert transactions: %w", err)
	}

	if result == nil {
		return 0, nil
	}
	return len(result.InsertedIDs), nil
}

func (r *transactionRepository) GetBySession(ctx context.Context, sessionID string, params *utils.PaginationParams) ([]*models.Transaction, int64, error) {
	filter := bson.M{"session_id": sessionID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var transactions []*models.Transaction
	if err := cursor.All(ctx, &transactions); err != nil {
		return nil, 0, fmt.Errorf("failed to decode transactions: %w", err)
	}

	return transactions, total, nil
}

func (r *transactionRepository) GetBySessionRange(ctx context.Context, sessionID string, from, to time.Time) ([]*models.Transaction, error) {
	filter := bson.M{"session_id": sessionID}
	if bounds := timeBounds(from, to); bounds != nil {
		filter["transaction_time"] = bounds
	}

	opts := options.Find().SetSort(bson.D{{Key: "transaction_time", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var transactions []*models.Transaction
	if err := cursor.All(ctx, &transactions); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}

	return transactions, nil
}

func (r *transactionRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (r *transactionRepository) GetMissingPlate(ctx context.Context, sessionID string) ([]*models.Transaction, error) {
	filter := bson.M{
		"session_id":    sessionID,
		"license_plate": "",
		"driver_name":   bson.M{"$ne": ""},
	}

	opts := options.Find().SetSort(bson.D{{Key: "transaction_time", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get plateless transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var transactions []*models.Transaction
	if err := cursor.All(ctx, &transactions); err != nil {
		return nil, fmt.Errorf("failed to decode plateless transactions: %w", err)
	}

	return transactions, nil
}

func (r *transactionRepository) ExistsByKey(ctx context.Context, sessionID, licensePlate string, transactionTime time.Time, amount int64) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"session_id":       sessionID,
		"license_plate":    licensePlate,
		"transaction_time": transactionTime,
		"amount":           amount,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check transaction key: %w", err)
	}
	return count > 0, nil
}

func (r *transactionRepository) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) BulkSetPlates(ctx context.Context, plates map[primitive.ObjectID]string) (int64, error) {
	if len(plates) == 0 {
		return 0, nil
	}

	writes := make([]mongo.WriteModel, 0, len(plates))
	for id, plate := range plates {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id}).
			SetUpdate(bson.M{"$set": bson.M{"license_plate": plate}}))
	}

	// Unordered, and duplicate-key rejects are tolerated like InsertMany:
	// a plate assignment that would collide with an existing row is
	// skipped while the remaining updates still apply.
	opts := options.BulkWrite().SetOrdered(false)
	result, err := r.collection.BulkWrite(ctx, writes, opts)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return 0, fmt.Errorf("failed to back-fill plates: %w", err)
	}

	if result == nil {
		return 0, nil
	}
	return result.ModifiedCount, nil
}

func (r *transactionRepository) RevenueByDay(ctx context.Context, sessionID string, from, to time.Time) ([]*models.RevenueBucket, error) {
	key := bson.M{"$dateToString": bson.M{
		"format": "%Y-%m-%d",
		"date":   "$transaction_time",
	}}
	return r.revenueBuckets(ctx, sessionID, from, to, key, nil)
}

func (r *transactionRepository) RevenueByMonth(ctx context.Context, sessionID string, from, to time.Time) ([]*models.RevenueBucket, error) {
	key := bson.M{"$dateToString": bson.M{
		"format": "%Y-%m",
		"date":   "$transaction_time",
	}}
	return r.revenueBuckets(ctx, sessionID, from, to, key, nil)
}

func (r *transactionRepository) RevenueByDriver(ctx context.Context, sessionID string, from, to time.Time) ([]*models.RevenueBucket, error) {
	return r.revenueBuckets(ctx, sessionID, from, to, "$driver_name", bson.M{"driver_name": bson.M{"$ne": ""}})
}

func (r *transactionRepository) RevenueByVehicle(ctx context.Context, sessionID string, from, to time.Time) ([]*models.RevenueBucket, error) {
	return r.revenueBuckets(ctx, sessionID, from, to, "$license_plate", bson.M{"license_plate": bson.M{"$ne": ""}})
}

// revenueBuckets runs the shared group-by pipeline: amounts summed into
// integer cents, distance into centi-kilometres, one row per grouping key,
// sorted by key so the output order is stable.
func (r *transactionRepository) revenueBuckets(ctx context.Context, sessionID string, from, to time.Time, groupKey interface{}, extraMatch bson.M) ([]*models.RevenueBucket, error) {
	match := bson.M{"session_id": sessionID}
	if bounds := timeBounds(from, to); bounds != nil {
		match["transaction_time"] = bounds
	}
	for k, v := range extraMatch {
		match[k] = v
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":            groupKey,
			"revenue":        bson.M{"$sum": "$amount"},
			"distance_units": bson.M{"$sum": "$distance_units"},
			"trip_count":     bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate revenue: %w", err)
	}
	defer cursor.Close(ctx)

	var buckets []*models.RevenueBucket
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, fmt.Errorf("failed to decode revenue buckets: %w", err)
	}

	return buckets, nil
}

func (r *transactionRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}
	return result.DeletedCount, nil
}
