package interfaces

import (
	"context"

	"fleetrecon/internal/models"
	"fleetrecon/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UploadRepository interface {
	Create(ctx context.Context, upload *models.UploadedFile) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.UploadedFile, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error
	ListBySession(ctx context.Context, sessionID string, params *utils.PaginationParams) ([]*models.UploadedFile, int64, error)
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
}
