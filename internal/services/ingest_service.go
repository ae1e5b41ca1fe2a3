package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"fleetrecon/internal/config"
	"fleetrecon/internal/ingest"
	"fleetrecon/internal/models"
	"fleetrecon/internal/repositories/interfaces"
	"fleetrecon/internal/utils"
	"fleetrecon/pkg/logger"
	"fleetrecon/pkg/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNoFiles is returned when an ingest call carries zero files.
var ErrNoFiles = errors.New("no files provided")

// UploadFile is one (filename, raw bytes) pair of an ingest call.
type UploadFile struct {
	Filename string
	Data     []byte
}

// ProgressSink receives best-effort ingest progress events. The websocket
// hub implements it; tests substitute a recorder.
type ProgressSink interface {
	PublishProgress(sessionID string, event *models.ProgressEvent)
}

type IngestService interface {
	// IngestFiles classifies, archives and extracts a batch of vendor
	// files for one session, then back-fills missing plates by
	// cross-referencing the trip data. Re-running the same files is
	// idempotent.
	IngestFiles(ctx context.Context, sessionID string, files []UploadFile) (*models.IngestResult, error)

	// ReprocessUpload re-runs extraction from the archived original
	// bytes of one earlier upload.
	ReprocessUpload(ctx context.Context, uploadID primitive.ObjectID) (*models.IngestResult, error)

	ListUploads(ctx context.Context, sessionID string, params *utils.PaginationParams) ([]*models.UploadedFile, int64, error)

	// ResetSession deletes a session's trips, transactions, upload
	// records and archived originals.
	ResetSession(ctx context.Context, sessionID string) error
}

type ingestService struct {
	tripRepo        interfaces.TripRepository
	transactionRepo interfaces.TransactionRepository
	uploadRepo      interfaces.UploadRepository
	archive         storage.ArchiveProvider
	progress        ProgressSink
	cfg             *config.IngestConfig
	logger          *logger.Logger
}

func NewIngestService(
	tripRepo interfaces.TripRepository,
	transactionRepo interfaces.TransactionRepository,
	uploadRepo interfaces.UploadRepository,
	archive storage.ArchiveProvider,
	progress ProgressSink,
	cfg *config.IngestConfig,
	logger *logger.Logger,
) IngestService {
	return &ingestService{
		tripRepo:        tripRepo,
		transactionRepo: transactionRepo,
		uploadRepo:      uploadRepo,
		archive:         archive,
		progress:        progress,
		cfg:             cfg,
		logger:          logger,
	}
}

// classifiedFile pairs one incoming file with its classification and its
// already-created upload record.
type classifiedFile struct {
	file           UploadFile
	classification ingest.Classification
	upload         *models.UploadedFile
}

func (s *ingestService) IngestFiles(ctx context.Context, sessionID string, files []UploadFile) (*models.IngestResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	log := s.logger.WithSessionID(sessionID)
	result := &models.IngestResult{}

	// One step per file for classification, one per file for extraction
	// (skipped files still advance) and one for the cross-reference pass.
	reporter := newProgressReporter(s.progress, sessionID, 2*len(files)+1)

	var classified []*classifiedFile
	for _, file := range files {
		cf, err := s.classifyAndArchive(ctx, sessionID, file)
		if err != nil {
			return nil, err
		}
		if cf.upload.Status == models.UploadStatusUnclassified {
			result.UnclassifiedFiles++
		} else {
			classified = append(classified, cf)
		}
		reporter.step("classify", fmt.Sprintf("Classified %s", file.Filename))
	}

	// Trips are extracted before payments and campaigns so the plate
	// ranges used by the cross-reference pass are complete.
	ordered := make([]*classifiedFile, 0, len(classified))
	for _, fileType := range []models.FileType{models.FileTypeTrips, models.FileTypePayments, models.FileTypeCampaign} {
		for _, cf := range classified {
			if cf.classification.FileType == fileType {
				ordered = append(ordered, cf)
			}
		}
	}

	run := ingest.NewRun(sessionID, s.cfg.BatchSize)

	for i := 0; i < result.UnclassifiedFiles; i++ {
		reporter.step("extract", "Skipped unclassified file")
	}

	for _, cf := range ordered {
		fileResult, err := s.extractFile(ctx, run, cf, result, reporter)
		if err != nil {
			if updateErr := s.uploadRepo.Update(ctx, cf.upload.ID, map[string]interface{}{
				"status": models.UploadStatusFailed,
				"error":  err.Error(),
			}); updateErr != nil {
				log.WithError(updateErr).Error("Failed to mark upload as failed")
			}
			return nil, fmt.Errorf("failed to extract %s: %w", cf.file.Filename, err)
		}

		if result.CompanyName == "" {
			result.CompanyName = fileResult.CompanyName
		}
		mergeDateRange(result, fileResult)

		if err := s.uploadRepo.Update(ctx, cf.upload.ID, map[string]interface{}{
			"record_count": fileResult.Count,
			"status":       models.UploadStatusProcessed,
		}); err != nil {
			log.WithError(err).Error("Failed to update upload record")
		}
		reporter.step("extract", fmt.Sprintf("Extracted %s (%d records)", cf.file.Filename, fileResult.Count))
	}

	backfilled, dropped, err := s.crossReferencePlates(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	result.PlatesBackfilled = backfilled
	result.TransactionsAdded -= dropped
	if result.TransactionsAdded < 0 {
		result.TransactionsAdded = 0
	}
	reporter.step("cross_reference", fmt.Sprintf("Back-filled %d plates", backfilled))

	reporter.finish(fmt.Sprintf("Ingested %d trips and %d transactions", result.TripsAdded, result.TransactionsAdded))

	log.LogIngestEvent(sessionID, "ingest_completed", map[string]interface{}{
		"trips_added":        result.TripsAdded,
		"transactions_added": result.TransactionsAdded,
		"unclassified_files": result.UnclassifiedFiles,
		"plates_backfilled":  result.PlatesBackfilled,
	})

	return result, nil
}

func (s *ingestService) classifyAndArchive(ctx context.Context, sessionID string, file UploadFile) (*classifiedFile, error) {
	classification, ok := ingest.ClassifyFile(file.Data)

	upload := &models.UploadedFile{
		SessionID: sessionID,
		Filename:  file.Filename,
		Size:      int64(len(file.Data)),
		FileType:  models.FileTypeOther,
		Status:    models.UploadStatusUnclassified,
	}
	if ok {
		upload.Platform = classification.Platform
		upload.FileType = classification.FileType
		upload.Status = models.UploadStatusProcessed
	}

	key := fmt.Sprintf("%s/%s/%s%s", utils.UploadArchivePrefix, sessionID, uuid.New().String(), path.Ext(file.Filename))
	if _, err := s.archive.Put(ctx, &storage.PutRequest{
		Key:         key,
		Reader:      bytes.NewReader(file.Data),
		ContentType: "text/csv",
		Size:        int64(len(file.Data)),
		Metadata:    map[string]string{"filename": file.Filename},
	}); err != nil {
		return nil, fmt.Errorf("failed to archive %s: %w", file.Filename, err)
	}
	upload.StorageKey = key

	if err := s.uploadRepo.Create(ctx, upload); err != nil {
		return nil, fmt.Errorf("failed to record upload %s: %w", file.Filename, err)
	}

	s.logger.LogFileClassification(sessionID, file.Filename, string(upload.Platform), string(upload.FileType))

	return &classifiedFile{file: file, classification: classification, upload: upload}, nil
}

func (s *ingestService) extractFile(ctx context.Context, run *ingest.Run, cf *classifiedFile, result *models.IngestResult, reporter *progressReporter) (*ingest.FileResult, error) {
	extractor, ok := ingest.ExtractorFor(cf.classification)
	if !ok {
		return nil, fmt.Errorf("no extractor for %s/%s", cf.classification.Platform, cf.classification.FileType)
	}

	sinks := &ingest.Sinks{
		Trips: func(ctx context.Context, trips []*models.Trip) error {
			inserted, err := s.tripRepo.InsertMany(ctx, trips)
			if err != nil {
				return err
			}
			result.TripsAdded += inserted
			reporter.batchFlushed(len(trips), "extract")
			return nil
		},
		Transactions: func(ctx context.Context, transactions []*models.Transaction) error {
			inserted, err := s.transactionRepo.InsertMany(ctx, transactions)
			if err != nil {
				return err
			}
			result.TransactionsAdded += inserted
			reporter.batchFlushed(len(transactions), "extract")
			return nil
		},
	}

	return extractor(ctx, cf.file.Data, run, sinks)
}

// crossReferencePlates assigns plates to driver-keyed transactions by
// matching the (platform, driver) pair against the trip activity spans,
// padded by the configured window. Among multiple matching vehicles the
// one with the most trips wins; ties break on plate order so repeated runs
// agree.
//
// A re-ingested copy of an already back-filled transaction reappears with
// an empty plate: the stored row carries the resolved plate, so the unique
// index cannot reject the plateless duplicate at insert time. Assigning
// the plate here would collide with the stored row, so such copies are
// deleted instead and reported as dropped.
func (s *ingestService) crossReferencePlates(ctx context.Context, sessionID string) (backfilled, dropped int, err error) {
	missing, err := s.transactionRepo.GetMissingPlate(ctx, sessionID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load plateless transactions: %w", err)
	}
	if len(missing) == 0 {
		return 0, 0, nil
	}

	ranges, err := s.tripRepo.GetDriverPlateRanges(ctx, sessionID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load driver plate ranges: %w", err)
	}
	if len(ranges) == 0 {
		return 0, 0, nil
	}

	byDriver := make(map[string][]*models.DriverPlateRange)
	for _, r := range ranges {
		key := string(r.Platform) + "|" + r.DriverName
		byDriver[key] = append(byDriver[key], r)
	}

	plates := make(map[primitive.ObjectID]string)
	for _, tx := range missing {
		candidates := byDriver[string(tx.Platform)+"|"+tx.DriverName]

		var best *models.DriverPlateRange
		for _, r := range candidates {
			from := r.FirstTrip.Add(-s.cfg.CrossRefWindow)
			to := r.LastTrip.Add(s.cfg.CrossRefWindow)
			if tx.TransactionTime.Before(from) || tx.TransactionTime.After(to) {
				continue
			}
			if best == nil ||
				r.TripCount > best.TripCount ||
				(r.TripCount == best.TripCount && r.LicensePlate < best.LicensePlate) {
				best = r
			}
		}
		if best == nil {
			continue
		}

		exists, err := s.transactionRepo.ExistsByKey(ctx, sessionID, best.LicensePlate, tx.TransactionTime, tx.Amount)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to check back-fill target: %w", err)
		}
		if exists {
			if err := s.transactionRepo.DeleteByID(ctx, tx.ID); err != nil {
				return 0, 0, fmt.Errorf("failed to drop duplicate transaction: %w", err)
			}
			dropped++
			continue
		}
		plates[tx.ID] = best.LicensePlate
	}

	updated, err := s.transactionRepo.BulkSetPlates(ctx, plates)
	if err != nil {
		return 0, 0, err
	}

	return int(updated), dropped, nil
}

func (s *ingestService) ReprocessUpload(ctx context.Context, uploadID primitive.ObjectID) (*models.IngestResult, error) {
	upload, err := s.uploadRepo.GetByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	object, err := s.archive.Get(ctx, upload.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archived file: %w", err)
	}
	defer object.Reader.Close()

	data, err := io.ReadAll(object.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read archived file: %w", err)
	}

	classification, ok := ingest.ClassifyFile(data)
	if !ok {
		return nil, fmt.Errorf("archived file %s is unclassifiable", upload.Filename)
	}

	result := &models.IngestResult{}
	reporter := newProgressReporter(s.progress, upload.SessionID, 2)

	run := ingest.NewRun(upload.SessionID, s.cfg.BatchSize)
	cf := &classifiedFile{
		file:           UploadFile{Filename: upload.Filename, Data: data},
		classification: classification,
		upload:         upload,
	}

	fileResult, err := s.extractFile(ctx, run, cf, result, reporter)
	if err != nil {
		if updateErr := s.uploadRepo.Update(ctx, upload.ID, map[string]interface{}{
			"status": models.UploadStatusFailed,
			"error":  err.Error(),
		}); updateErr != nil {
			s.logger.WithError(updateErr).Error("Failed to mark upload as failed")
		}
		return nil, fmt.Errorf("failed to reprocess %s: %w", upload.Filename, err)
	}

	mergeDateRange(result, fileResult)
	result.CompanyName = fileResult.CompanyName

	if err := s.uploadRepo.Update(ctx, upload.ID, map[string]interface{}{
		"record_count": fileResult.Count,
		"status":       models.UploadStatusProcessed,
		"error":        "",
	}); err != nil {
		s.logger.WithError(err).Error("Failed to update upload record")
	}
	reporter.step("extract", fmt.Sprintf("Extracted %s (%d records)", upload.Filename, fileResult.Count))

	backfilled, dropped, err := s.crossReferencePlates(ctx, upload.SessionID)
	if err != nil {
		return nil, err
	}
	result.PlatesBackfilled = backfilled
	result.TransactionsAdded -= dropped
	if result.TransactionsAdded < 0 {
		result.TransactionsAdded = 0
	}
	reporter.step("cross_reference", fmt.Sprintf("Back-filled %d plates", backfilled))

	reporter.finish(fmt.Sprintf("Reprocessed %s (%d records)", upload.Filename, fileResult.Count))

	return result, nil
}

func (s *ingestService) ListUploads(ctx context.Context, sessionID string, params *utils.PaginationParams) ([]*models.UploadedFile, int64, error) {
	return s.uploadRepo.ListBySession(ctx, sessionID, params)
}

func (s *ingestService) ResetSession(ctx context.Context, sessionID string) error {
	trips, err := s.tripRepo.DeleteBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	transactions, err := s.transactionRepo.DeleteBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	uploads, err := s.uploadRepo.DeleteBySession(ctx, sessionID)
	if err != nil {
		return err
	}

	prefix := fmt.Sprintf("%s/%s/", utils.UploadArchivePrefix, sessionID)
	objects, err := s.archive.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to list archived files: %w", err)
	}
	for _, object := range objects {
		if err := s.archive.Delete(ctx, object.Key); err != nil {
			return fmt.Errorf("failed to delete archived file %s: %w", object.Key, err)
		}
	}

	s.logger.LogIngestEvent(sessionID, "session_reset", map[string]interface{}{
		"trips_deleted":        trips,
		"transactions_deleted": transactions,
		"uploads_deleted":      uploads,
		"archives_deleted":     len(objects),
	})

	return nil
}

func mergeDateRange(result *models.IngestResult, fileResult *ingest.FileResult) {
	if fileResult.FirstTime.IsZero() {
		return
	}
	if result.DateRange == nil {
		result.DateRange = &models.DateRange{From: fileResult.FirstTime, To: fileResult.LastTime}
		return
	}
	if fileResult.FirstTime.Before(result.DateRange.From) {
		result.DateRange.From = fileResult.FirstTime
	}
	if fileResult.LastTime.After(result.DateRange.To) {
		result.DateRange.To = fileResult.LastTime
	}
}

// progressReporter turns pipeline milestones into best-effort progress
// events. One continuous step counter spans classification, extraction
// and cross-referencing; percent only ever grows and the terminal event
// is always exactly 100.
type progressReporter struct {
	sink      ProgressSink
	sessionID string

	total   int
	done    int
	records int
	percent int
}

func newProgressReporter(sink ProgressSink, sessionID string, total int) *progressReporter {
	if total < 1 {
		total = 1
	}
	return &progressReporter{sink: sink, sessionID: sessionID, total: total}
}

func (r *progressReporter) step(phase, message string) {
	r.done++
	r.emit(phase, message)
}

func (r *progressReporter) batchFlushed(records int, phase string) {
	r.records += records
	r.emit(phase, fmt.Sprintf("%d records processed", r.records))
}

func (r *progressReporter) finish(message string) {
	r.done = r.total
	r.percent = 100
	r.send("done", message)
}

func (r *progressReporter) emit(phase, message string) {
	// 99 is the ceiling before the terminal event.
	percent := r.done * 99 / r.total
	if percent > r.percent {
		r.percent = percent
	}
	r.send(phase, message)
}

func (r *progressReporter) send(phase, message string) {
	if r.sink == nil {
		return
	}
	r.sink.PublishProgress(r.sessionID, &models.ProgressEvent{
		Phase:     phase,
		Total:     r.total,
		Processed: r.done,
		Percent:   r.percent,
		Message:   message,
	})
}
