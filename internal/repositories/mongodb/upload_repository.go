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
)

type uploadRepository struct {
	collection *mongo.Collection
	cache      *cache.RedisCache
}

func NewUploadRepository(db *mongo.Database, cache *cache.RedisCache) interfaces.UploadRepository {
	return &uploadRepository{
		collection: db.Collection("uploads"),
		cache:      cache,
	}
}

func (r *uploadRepository) Create(ctx context.Context, upload *models.UploadedFile) error {
	upload.ID = primitive.NewObjectID()
	upload.CreatedAt = time.Now()
	upload.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, upload)
	if err != nil {
		return fmt.Errorf("failed to create upload record: %w", err)
	}

	return nil
}

func (r *uploadRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.UploadedFile, error) {
	if upload := r.getUploadFromCache(ctx, id.Hex()); upload != nil {
		return upload, nil
	}

	var upload models.UploadedFile
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&upload)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("upload not found")
		}
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}

	r.cacheUpload(ctx, &upload)

	return &upload, nil
}

func (r *uploadRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to update upload: %w", err)
	}

	if r.cache != nil {
		r.cache.Delete(ctx, uploadCacheKey(id.Hex()))
	}

	return nil
}

func (r *uploadRepository) ListBySession(ctx context.Context, sessionID string, params *utils.PaginationParams) ([]*models.UploadedFile, int64, error) {
	filter := bson.M{"session_id": sessionID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count uploads: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer cursor.Close(ctx)

	var uploads []*models.UploadedFile
	if err := cursor.All(ctx, &uploads); err != nil {
		return nil, 0, fmt.Errorf("failed to decode uploads: %w", err)
	}

	return uploads, total, nil
}

func (r *uploadRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete uploads: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *uploadRepository) cacheUpload(ctx context.Context, upload *models.UploadedFile) {
	if r.cache == nil {
		return
	}
	r.cache.Set(ctx, uploadCacheKey(upload.ID.Hex()), upload, 10*time.Minute)
}

func (r *uploadRepository) getUploadFromCache(ctx context.Context, id string) *models.UploadedFile {
	if r.cache == nil {
		return nil
	}
	var upload models.UploadedFile
	if err := r.cache.Get(ctx, uploadCacheKey(id), &upload); err != nil {
		return nil
	}
	return &upload
}

func uploadCacheKey(id string) string {
	return "upload:" + id
}
