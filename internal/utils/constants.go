package utils

// Application Constants
const (
	AppName    = "FleetRecon"
	AppVersion = "1.0.0"

	// Default values
	DefaultTimeZone = "UTC"
	DefaultCurrency = "EUR"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Ingest
	DefaultBatchSize    = 1000
	MaxUploadSize       = 64 * 1024 * 1024 // 64MB per file
	MaxFilesPerIngest   = 50
	MonthKeyFormat      = "2006-01"
	DayKeyFormat        = "2006-01-02"
	UploadArchivePrefix = "originals"
)

// Response status
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Common error messages
const (
	ErrValidationFailed = "Validation failed"
	ErrInternalServer   = "Internal server error"
	ErrNotFound         = "Resource not found"
)
