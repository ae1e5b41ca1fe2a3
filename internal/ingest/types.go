package ingest

import (
	"context"
	"fmt"
	"time"

	"fleetrecon/internal/models"
)

// Classification identifies which vendor layout a CSV file follows.
type Classification struct {
	Platform models.Platform
	FileType models.FileType
}

// TripSink and TransactionSink persist one extracted batch. Extractors
// call the sink and wait for it to return before parsing further rows;
// this is the backpressure that keeps memory bounded on large files.
type (
	TripSink        func(ctx context.Context, trips []*models.Trip) error
	TransactionSink func(ctx context.Context, transactions []*models.Transaction) error
)

// Sinks bundles the batch callbacks handed to an extractor.
type Sinks struct {
	Trips        TripSink
	Transactions TransactionSink
}

// FileResult summarizes one extracted file.
type FileResult struct {
	Count       int
	Platform    models.Platform
	FirstTime   time.Time
	LastTime    time.Time
	CompanyName string
}

func (r *FileResult) observeTime(t time.Time) {
	if r.FirstTime.IsZero() || t.Before(r.FirstTime) {
		r.FirstTime = t
	}
	if r.LastTime.IsZero() || t.After(r.LastTime) {
		r.LastTime = t
	}
}

// Run is the mutable state shared by every extractor within one ingest
// call: the session scope, the batch size and the dedup key sets. One Run
// instance is threaded through all files of the call; runs are never
// shared across sessions or across calls.
type Run struct {
	SessionID string
	BatchSize int

	tripKeys        map[string]struct{}
	transactionKeys map[string]struct{}
}

func NewRun(sessionID string, batchSize int) *Run {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Run{
		SessionID:       sessionID,
		BatchSize:       batchSize,
		tripKeys:        make(map[string]struct{}),
		transactionKeys: make(map[string]struct{}),
	}
}

// SeenTrip records the key and reports whether it was already present.
func (r *Run) SeenTrip(plate string, orderTime time.Time) bool {
	key := fmt.Sprintf("%s|%d", plate, orderTime.UnixMilli())
	if _, ok := r.tripKeys[key]; ok {
		return true
	}
	r.tripKeys[key] = struct{}{}
	return false
}

// SeenTransaction records the key and reports whether it was already
// present. The key mirrors the storage uniqueness invariant
// (plate, time, amount).
func (r *Run) SeenTransaction(plate string, transactionTime time.Time, amount int64) bool {
	key := fmt.Sprintf("%s|%d|%d", plate, transactionTime.UnixMilli(), amount)
	if _, ok := r.transactionKeys[key]; ok {
		return true
	}
	r.transactionKeys[key] = struct{}{}
	return false
}

// Extractor turns one classified CSV file into canonical records, flushing
// them through the sinks in fixed-size batches.
type Extractor func(ctx context.Context, data []byte, run *Run, sinks *Sinks) (*FileResult, error)

var extractors = map[Classification]Extractor{
	{models.PlatformBolt, models.FileTypeTrips}:    extractBoltTrips,
	{models.PlatformUber, models.FileTypeTrips}:    extractUberTrips,
	{models.PlatformBolt, models.FileTypePayments}: extractBoltPayments,
	{models.PlatformUber, models.FileTypePayments}: extractUberPayments,
	{models.PlatformUber, models.FileTypeCampaign}: extractUberCampaign,
}

// ExtractorFor returns the extraction routine for a classified layout.
func ExtractorFor(c Classification) (Extractor, bool) {
	e, ok := extractors[c]
	return e, ok
}
