package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FileType string

const (
	FileTypeTrips    FileType = "trips"
	FileTypePayments FileType = "payments"
	FileTypeCampaign FileType = "campaign"
	FileTypeOther    FileType = "other"
)

type UploadStatus string

const (
	UploadStatusProcessed    UploadStatus = "processed"
	UploadStatusUnclassified UploadStatus = "unclassified"
	UploadStatusFailed       UploadStatus = "failed"
)

// UploadedFile records one file received in an ingest call. The original
// bytes are archived verbatim under StorageKey so a session can be
// reprocessed from source without a fresh upload.
type UploadedFile struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID   string             `json:"session_id" bson:"session_id"`
	Filename    string             `json:"filename" bson:"filename"`
	StorageKey  string             `json:"storage_key" bson:"storage_key"`
	Platform    Platform           `json:"platform,omitempty" bson:"platform,omitempty"`
	FileType    FileType           `json:"file_type" bson:"file_type"`
	Size        int64              `json:"size" bson:"size"`
	RecordCount int                `json:"record_count" bson:"record_count"`
	Status      UploadStatus       `json:"status" bson:"status"`
	Error       string             `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}
