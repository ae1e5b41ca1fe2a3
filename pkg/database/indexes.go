package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the collection indexes the ingest pipeline relies
// on. The unique indexes make re-ingestion idempotent: inserting the same
// record twice is rejected at the storage layer, not just by the in-run
// dedup sets.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	tripIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "session_id", Value: 1},
				{Key: "license_plate", Value: 1},
				{Key: "order_time", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_session_plate_time"),
		},
		{
			Keys: bson.D{
				{Key: "session_id", Value: 1},
				{Key: "order_time", Value: 1},
			},
			Options: options.Index().SetName("session_order_time"),
		},
	}

	transactionIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "session_id", Value: 1},
				{Key: "license_plate", Value: 1},
				{Key: "transaction_time", Value: 1},
				{Key: "amount", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_session_plate_time_amount"),
		},
		{
			Keys: bson.D{
				{Key: "session_id", Value: 1},
				{Key: "transaction_time", Value: 1},
			},
			Options: options.Index().SetName("session_transaction_time"),
		},
		{
			Keys: bson.D{
				{Key: "session_id", Value: 1},
				{Key: "driver_name", Value: 1},
			},
			Options: options.Index().SetName("session_driver"),
		},
	}

	uploadIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "session_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("session_created"),
		},
	}

	if _, err := db.Collection("trips").Indexes().CreateMany(ctx, tripIndexes); err != nil {
		return fmt.Errorf("failed to create trip indexes: %w", err)
	}
	if _, err := db.Collection("transactions").Indexes().CreateMany(ctx, transactionIndexes); err != nil {
		return fmt.Errorf("failed to create transaction indexes: %w", err)
	}
	if _, err := db.Collection("uploads").Indexes().CreateMany(ctx, uploadIndexes); err != nil {
		return fmt.Errorf("failed to create upload indexes: %w", err)
	}

	return nil
}
