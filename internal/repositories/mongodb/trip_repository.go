package mongodb

import (
	"context"
	"fmt"
	"time"

	"fleetrecon/internal/models"
	"fleetrecon/internal/repositories/interfaces"
	"fleetrecon/internal/utils"
	"fleetrecon/pkg/cache"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type tripRepository struct {
	collection *mongo.Collection
	cache      *cache.RedisCache
}

func NewTripRepository(db *mongo.Database, cache *cache.RedisCache) interfaces.TripRepository {
	return &tripRepository{
		collection: db.Collection("trips"),
		cache:      cache,
	}
}

func (r *tripRepository) InsertMany(ctx context.Context, trips []*models.Trip) (int, error) {
	if len(trips) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, 0, len(trips))
	for _, trip := range trips {
		if trip.ID.IsZero() {
			trip.ID = primitive.NewObjectID()
		}
		if trip.CreatedAt.IsZero() {
			trip.CreatedAt = time.Now()
		}
		docs = append(docs, trip)
	}

	// Unordered insert: rows colliding with the unique (session, plate,
	// order time) index are dropped, the rest go through. This is what
	// makes re-ingesting the same file idempotent.
	opts := options.InsertMany().SetOrdered(false)
	result, err := r.collection.InsertMany(ctx, docs, opts)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return 0, fmt.Errorf("failed to insert trips: %w", err)
	}

	r.invalidateCountCache(ctx, trips[0].SessionID)

	if result == nil {
		return 0, nil
	}
	return len(result.InsertedIDs), nil
}

func (r *tripRepository) GetBySession(ctx context.Context, sessionID string, params *utils.PaginationParams) ([]*models.Trip, int64, error) {
	filter := bson.M{"session_id": sessionID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count trips: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get trips: %w", err)
	}
	defer cursor.Close(ctx)

	var trips []*models.Trip
	if err := cursor.All(ctx, &trips); err != nil {
		return nil, 0, fmt.Errorf("failed to decode trips: %w", err)
	}

	return trips, total, nil
}

func (r *tripRepository) GetBySessionRange(ctx context.Context, sessionID string, from, to time.Time) ([]*models.Trip, error) {
	filter := bson.M{"session_id": sessionID}
	if bounds := timeBounds(from, to); bounds != nil {
		filter["order_time"] = bounds
	}

	opts := options.Find().SetSort(bson.D{{Key: "order_time", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get trips: %w", err)
	}
	defer cursor.Close(ctx)

	var trips []*models.Trip
	if err := cursor.All(ctx, &trips); err != nil {
		return nil, fmt.Errorf("failed to decode trips: %w", err)
	}

	return trips, nil
}

func (r *tripRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	if r.cache != nil {
		var cached int64
		if err := r.cache.Get(ctx, tripCountCacheKey(sessionID), &cached); err == nil {
			return cached, nil
		}
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("failed to count trips: %w", err)
	}

	if r.cache != nil {
		r.cache.Set(ctx, tripCountCacheKey(sessionID), count, 5*time.Minute)
	}

	return count, nil
}

func (r *tripRepository) GetDriverPlateRanges(ctx context.Context, sessionID string) ([]*models.DriverPlateRange, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"session_id":    sessionID,
			"license_plate": bson.M{"$ne": ""},
			"driver_name":   bson.M{"$ne": ""},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"platform":      "$platform",
				"driver_name":   "$driver_name",
				"license_plate": "$license_plate",
			},
			"first_trip": bson.M{"$min": "$order_time"},
			"last_trip":  bson.M{"$max": "$order_time"},
			"trip_count": bson.M{"$sum": 1},
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":           0,
			"platform":      "$_id.platform",
			"driver_name":   "$_id.driver_name",
			"license_plate": "$_id.license_plate",
			"first_trip":    1,
			"last_trip":     1,
			"trip_count":    1,
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "driver_name", Value: 1},
			{Key: "first_trip", Value: 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to get driver plate ranges: %w", err)
	}
	defer cursor.Close(ctx)

	var ranges []*models.DriverPlateRange
	if err := cursor.All(ctx, &ranges); err != nil {
		return nil, fmt.Errorf("failed to decode driver plate ranges: %w", err)
	}

	return ranges, nil
}

func (r *tripRepository) CompletedTripCountsByVehicleMonth(ctx context.Context, sessionID string, from, to time.Time) ([]*models.VehicleMonthCount, error) {
	match := bson.M{
		"session_id":    sessionID,
		"license_plate": bson.M{"$ne": ""},
		"$expr": bson.M{
			"$in": []interface{}{
				bson.M{"$toLower": "$trip_status"},
				[]string{models.TripStatusCompleted, models.TripStatusFinished},
			},
		},
	}
	if bounds := timeBounds(from, to); bounds != nil {
		match["order_time"] = bounds
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"license_plate": "$license_plate",
				"month": bson.M{"$dateToString": bson.M{
					"format": "%Y-%m",
					"date":   "$order_time",
				}},
			},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":           0,
			"license_plate": "$_id.license_plate",
			"month":         "$_id.month",
			"count":         1,
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "license_plate", Value: 1},
			{Key: "month", Value: 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to get completed trip counts: %w", err)
	}
	defer cursor.Close(ctx)

	var counts []*models.VehicleMonthCount
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("failed to decode completed trip counts: %w", err)
	}

	return counts, nil
}

func (r *tripRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete trips: %w", err)
	}

	r.invalidateCountCache(ctx, sessionID)

	return result.DeletedCount, nil
}

func (r *tripRepository) invalidateCountCache(ctx context.Context, sessionID string) {
	if r.cache != nil {
		r.cache.Delete(ctx, tripCountCacheKey(sessionID))
	}
}

func tripCountCacheKey(sessionID string) string {
	return "trip_count:" + sessionID
}

// timeBounds builds an order-time filter from optional bounds; zero values
// leave that side open. Returns nil when both are zero.
func timeBounds(from, to time.Time) bson.M {
	bounds := bson.M{}
	if !from.IsZero() {
		bounds["$gte"] = from
	}
	if !to.IsZero() {
		bounds["$lte"] = to
	}
	if len(bounds) == 0 {
		return nil
	}
	return bounds
}
