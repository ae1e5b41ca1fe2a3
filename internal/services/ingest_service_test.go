package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"fleetrecon/internal/models"
	"fleetrecon/internal/utils"
	"fleetrecon/pkg/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeTripRepo mimics the storage uniqueness invariant in memory.
type fakeTripRepo struct {
	mu    sync.Mutex
	trips []*models.Trip
	keys  map[string]bool
}

func newFakeTripRepo() *fakeTripRepo {
	return &fakeTripRepo{keys: make(map[string]bool)}
}

func (r *fakeTripRepo) InsertMany(ctx context.Context, trips []*models.Trip) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := 0
	for _, trip := range trips {
		key := fmt.Sprintf("%s|%s|%d", trip.SessionID, trip.LicensePlate, trip.OrderTime.UnixMilli())
		if r.keys[key] {
			continue
		}
		r.keys[key] = true
		trip.ID = primitive.NewObjectID()
		r.trips = append(r.trips, trip)
		inserted++
	}
	return inserted, nil
}

func (r *fakeTripRepo) GetBySession(ctx context.Context, sessionID string, params *utils.PaginationParams) ([]*models.Trip, int64, error) {
	trips, err := r.GetBySessionRange(ctx, sessionID, time.Time{}, time.Time{})
	return trips, int64(len(trips)), err
}

func (r *fakeTripRepo) GetBySessionRange(ctx context.Context, sessionID string, from, to time.Time) ([]*models.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Trip
	for _, trip := range r.trips {
		if trip.SessionID != sessionID {
			continue
		}
		if !from.IsZero() && trip.OrderTime.Before(from) {
			continue
		}
		if !to.IsZero() && trip.OrderTime.After(to) {
			continue
		}
		out = append(out, trip)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderTime.Before(out[j].OrderTime) })
	return out, nil
}

func (r *fakeTripRepo) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	trips, _ := r.GetBySessionRange(ctx, sessionID, time.Time{}, time.Time{})
	return int64(len(trips)), nil
}

func (r *fakeTripRepo) GetDriverPlateRanges(ctx context.Context, sessionID string) ([]*models.DriverPlateRange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ranges := make(map[string]*models.DriverPlateRange)
	for _, trip := range r.trips {
		if trip.SessionID != sessionID || trip.LicensePlate == "" || trip.DriverName == "" {
			continue
		}
		key := string(trip.Platform) + "|" + trip.DriverName + "|" + trip.LicensePlate
		rng, ok := ranges[key]
		if !ok {
			rng = &models.DriverPlateRange{
				Platform:     trip.Platform,
				DriverName:   trip.DriverName,
				LicensePlate: trip.LicensePlate,
				FirstTrip:    trip.OrderTime,
				LastTrip:     trip.OrderTime,
			}
			ranges[key] = rng
		}
		if trip.OrderTime.Before(rng.FirstTrip) {
			rng.FirstTrip = trip.OrderTime
		}
		if trip.OrderTime.After(rng.LastTrip) {
			rng.LastTrip = trip.OrderTime
		}
		rng.TripCount++
	}

	var out []*models.DriverPlateRange
	for _, rng := range ranges {
		out = append(out, rng)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LicensePlate < out[j].LicensePlate })
	return out, nil
}

func (r *fakeTripRepo) CompletedTripCountsByVehicleMonth(ctx context.Context, sessionID string, from, to time.Time) ([]*models.VehicleMonthCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]*models.VehicleMonthCount)
	for _, trip := range r.trips {
		if trip.SessionID != sessionID || trip.LicensePlate == "" || !trip.IsCompleted() {
			continue
		}
		month := utils.MonthKey(trip.OrderTime)
		key := trip.LicensePlate + "|" + month
		c, ok := counts[key]
		if !ok {
			c = &models.VehicleMonthCount{LicensePlate: trip.LicensePlate, Month: month}
			counts[key] = c
		}
		c.Count++
	}
	var out []*models.VehicleMonthCount
	for _, c := range counts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LicensePlate != out[j].LicensePlate {
			return out[i].LicensePlate < out[j].LicensePlate
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func (r *fakeTripRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*models.Trip
	var deleted int64
	for _, trip := range r.trips {
		if trip.SessionID == sessionID {
			deleted++
			continue
		}
		kept = append(kept, trip)
	}
	r.trips = kept
	return deleted, nil
}

// fakeTransactionRepo mirrors the (session, plate, time, amount) unique
// index. Uniqueness is evaluated against the rows' current field values,
// so a plate mutated by BulkSetPlates changes which inserts and updates
// the index rejects, exactly as the real index behaves.
type fakeTransactionRepo struct {
	mu           sync.Mutex
	transactions []*models.Transaction
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{}
}

func txUniqueKey(tx *models.Transaction) string {
	return fmt.Sprintf("%s|%s|%d|%d", tx.SessionID, tx.LicensePlate, tx.TransactionTime.UnixMilli(), tx.Amount)
}

func (r *fakeTransactionRepo) hasKeyLocked(key string) bool {
	for _, tx := range r.transactions {
		if txUniqueKey(tx) == key {
			return true
		}
	}
	return false
}

func (r *fakeTransactionRepo) InsertMany(ctx context.Context, transactions []*models.Transaction) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := 0
	for _, tx := range transactions {
		if r.hasKeyLocked(txUniqueKey(tx)) {
			continue
		}
		tx.ID = primitive.NewObjectID()
		r.transactions = append(r.transactions, tx)
		inserted++
	}
	return inserted, nil
}

func (r *fakeTransactionRepo) GetBySession(ctx context.Context, sessionID string, params *utils.PaginationParams) ([]*models.Transaction, int64, error) {
	txs, err := r.GetBySessionRange(ctx, sessionID, time.Time{}, time.Time{})
	return txs, int64(len(txs)), err
}

func (r *fakeTransactionRepo) GetBySessionRange(ctx context.Context, sessionID string, from, to time.Time) ([]*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Transaction
	for _, tx := range r.transactions {
		if tx.SessionID != sessionID {
			continue
		}
		if !from.IsZero() && tx.TransactionTime.Before(from) {
			continue
		}
		if !to.IsZero() && tx.TransactionTime.After(to) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionTime.Before(out[j].TransactionTime) })
	return out, nil
}

func (r *fakeTransactionRepo) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	txs, _ := r.GetBySessionRange(ctx, sessionID, time.Time{}, time.Time{})
	return int64(len(txs)), nil
}

func (r *fakeTransactionRepo) GetMissingPlate(ctx context.Context, sessionID string) ([]*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Transaction
	for _, tx := range r.transactions {
		if tx.SessionID == sessionID && tx.LicensePlate == "" && tx.DriverName != "" {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) ExistsByKey(ctx context.Context, sessionID, licensePlate string, transactionTime time.Time, amount int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%d|%d", sessionID, licensePlate, transactionTime.UnixMilli(), amount)
	return r.hasKeyLocked(key), nil
}

func (r *fakeTransactionRepo) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, tx := range r.transactions {
		if tx.ID == id {
			r.transactions = append(r.transactions[:i], r.transactions[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeTransactionRepo) BulkSetPlates(ctx context.Context, plates map[primitive.ObjectID]string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for _, tx := range r.transactions {
		plate, ok := plates[tx.ID]
		if !ok || tx.LicensePlate == plate {
			continue
		}
		// An update that would collide on the unique key is rejected by
		// the index and swallowed by the repository, so the fake skips it.
		candidate := *tx
		candidate.LicensePlate = plate
		if r.hasKeyLocked(txUniqueKey(&candidate)) {
			continue
		}
		tx.LicensePlate = plate
		updated++
	}
	return updated, nil
}

func (r *fakeTransactionRepo) RevenueByDay(ctx context.Context, sessionID string, from, to time.Time) ([]*models.RevenueBucket, error) {
	return r.buckets(ctx, sessionID, from, to, func(tx *models.Transaction) string { return utils.DayKey(tx.TransactionTime) })
}

func (r *fakeTransactionRepo) RevenueByMonth(ctx context.Context, sessionID string, from, to time.Time) ([]*models.RevenueBucket, error) {
	return r.buckets(ctx, sessionID, from, to, func(tx *models.Transaction) string { return utils.MonthKey(tx.TransactionTime) })
}

func (r *fakeTransactionRepo) RevenueByDriver(ctx context.Context, sessionID string, from, to time.Time) ([]*models.RevenueBucket, error) {
	return r.buckets(ctx, sessionID, from, to, func(tx *models.Transaction) string { return tx.DriverName })
}

func (r *fakeTransactionRepo) RevenueByVehicle(ctx context.Context, sessionID string, from, to time.Time) ([]*models.RevenueBucket, error) {
	return r.buckets(ctx, sessionID, from, to, func(tx *models.Transaction) string { return tx.LicensePlate })
}

func (r *fakeTransactionRepo) buckets(ctx context.Context, sessionID string, from, to time.Time, keyOf func(*models.Transaction) string) ([]*models.RevenueBucket, error) {
	transactions, err := r.GetBySessionRange(ctx, sessionID, from, to)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string]*models.RevenueBucket)
	for _, tx := range transactions {
		key := keyOf(tx)
		if key == "" {
			continue
		}
		bucket, ok := grouped[key]
		if !ok {
			bucket = &models.RevenueBucket{Key: key}
			grouped[key] = bucket
		}
		bucket.Revenue += tx.Amount
		bucket.DistanceUnits += tx.DistanceUnits
		bucket.TripCount++
	}
	var out []*models.RevenueBucket
	for _, bucket := range grouped {
		out = append(out, bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *fakeTransactionRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*models.Transaction
	var deleted int64
	for _, tx := range r.transactions {
		if tx.SessionID == sessionID {
			deleted++
			continue
		}
		kept = append(kept, tx)
	}
	r.transactions = kept
	return deleted, nil
}

type fakeUploadRepo struct {
	mu      sync.Mutex
	uploads map[primitive.ObjectID]*models.UploadedFile
}

func newFakeUploadRepo() *fakeUploadRepo {
	return &fakeUploadRepo{uploads: make(map[primitive.ObjectID]*models.UploadedFile)}
}

func (r *fakeUploadRepo) Create(ctx context.Context, upload *models.UploadedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	upload.ID = primitive.NewObjectID()
	upload.CreatedAt = time.Now()
	r.uploads[upload.ID] = upload
	return nil
}

func (r *fakeUploadRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.UploadedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	upload, ok := r.uploads[id]
	if !ok {
		return nil, fmt.Errorf("upload not found")
	}
	return upload, nil
}

func (r *fakeUploadRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	upload, ok := r.uploads[id]
	if !ok {
		return fmt.Errorf("upload not found")
	}
	if v, ok := updates["record_count"].(int); ok {
		upload.RecordCount = v
	}
	if v, ok := updates["status"].(models.UploadStatus); ok {
		upload.Status = v
	}
	if v, ok := updates["error"].(string); ok {
		upload.Error = v
	}
	return nil
}

func (r *fakeUploadRepo) ListBySession(ctx context.Context, sessionID string, params *utils.PaginationParams) ([]*models.UploadedFile, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.UploadedFile
	for _, upload := range r.uploads {
		if upload.SessionID == sessionID {
			out = append(out, upload)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, int64(len(out)), nil
}

func (r *fakeUploadRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, upload := range r.uploads {
		if upload.SessionID == sessionID {
			delete(r.uploads, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: make(map[string][]byte)}
}

func (a *fakeArchive) Put(ctx context.Context, request *storage.PutRequest) (*storage.PutResponse, error) {
	data, err := io.ReadAll(request.Reader)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[request.Key] = data
	return &storage.PutResponse{Key: request.Key, Size: int64(len(data))}, nil
}

func (a *fakeArchive) Get(ctx context.Context, key string) (*storage.GetResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return &storage.GetResponse{
		Reader: io.NopCloser(bytes.NewReader(data)),
		Size:   int64(len(data)),
	}, nil
}

func (a *fakeArchive) Delete(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.objects, key)
	return nil
}

func (a *fakeArchive) Exists(ctx context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.objects[key]
	return ok, nil
}

func (a *fakeArchive) List(ctx context.Context, prefix string) ([]*storage.ObjectInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*storage.ObjectInfo
	for key, data := range a.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, &storage.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return out, nil
}

type progressRecorder struct {
	mu     sync.Mutex
	events []*models.ProgressEvent
}

func (p *progressRecorder) PublishProgress(sessionID string, event *models.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *event
	p.events = append(p.events, &copied)
}

type ingestFixture struct {
	tripRepo        *fakeTripRepo
	transactionRepo *fakeTransactionRepo
	uploadRepo      *fakeUploadRepo
	archive         *fakeArchive
	progress        *progressRecorder
	service         IngestService
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	f := &ingestFixture{
		tripRepo:        newFakeTripRepo(),
		transactionRepo: newFakeTransactionRepo(),
		uploadRepo:      newFakeUploadRepo(),
		archive:         newFakeArchive(),
		progress:        &progressRecorder{},
	}
	f.service = NewIngestService(f.tripRepo, f.transactionRepo, f.uploadRepo, f.archive, f.progress, testIngestConfig(), testLogger(t))
	return f
}

func boltTripsCSV() []byte {
	return []byte(strings.Join([]string{
		"Driver,Vehicle's license plate,Order time,Order status,Ride price",
		"John Doe,B-MU 1234,2024-06-01 08:00:00,finished,\"12,50\"",
		"John Doe,B-MU 1234,2024-06-01 09:00:00,finished,\"8,00\"",
		"John Doe,B-MU 1234,2024-06-02 10:00:00,finished,\"9,00\"",
	}, "\n"))
}

func uberPaymentsCSV() []byte {
	return []byte(strings.Join([]string{
		"Company name,Event time,Description,Paid to company,Driver name",
		"Fleet GmbH,2024-06-03 12:00:00,Payout for B-MU 1234,\"123,45\",John Doe",
	}, "\n"))
}

func TestIngestFilesEndToEnd(t *testing.T) {
	f := newIngestFixture(t)

	result, err := f.service.IngestFiles(context.Background(), "session-1", []UploadFile{
		{Filename: "trips.csv", Data: boltTripsCSV()},
		{Filename: "payments.csv", Data: uberPaymentsCSV()},
		{Filename: "notes.txt", Data: []byte("not,a,vendor,file")},
	})
	if err != nil {
		t.Fatalf("IngestFiles: %v", err)
	}

	if result.TripsAdded != 3 {
		t.Errorf("TripsAdded = %d, want 3", result.TripsAdded)
	}
	if result.TransactionsAdded != 1 {
		t.Errorf("TransactionsAdded = %d, want 1", result.TransactionsAdded)
	}
	if result.UnclassifiedFiles != 1 {
		t.Errorf("UnclassifiedFiles = %d, want 1", result.UnclassifiedFiles)
	}
	if result.CompanyName != "Fleet GmbH" {
		t.Errorf("CompanyName = %q, want Fleet GmbH", result.CompanyName)
	}
	if result.DateRange == nil {
		t.Fatal("missing date range")
	}
	wantFrom := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	wantTo := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	if !result.DateRange.From.Equal(wantFrom) || !result.DateRange.To.Equal(wantTo) {
		t.Errorf("date range = [%v, %v], want [%v, %v]", result.DateRange.From, result.DateRange.To, wantFrom, wantTo)
	}

	uploads, total, err := f.service.ListUploads(context.Background(), "session-1", &utils.PaginationParams{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("ListUploads: %v", err)
	}
	if total != 3 || len(uploads) != 3 {
		t.Fatalf("got %d uploads, want 3", total)
	}
	statuses := make(map[string]models.UploadStatus)
	for _, upload := range uploads {
		statuses[upload.Filename] = upload.Status
	}
	if statuses["trips.csv"] != models.UploadStatusProcessed {
		t.Errorf("trips.csv status = %s", statuses["trips.csv"])
	}
	if statuses["notes.txt"] != models.UploadStatusUnclassified {
		t.Errorf("notes.txt status = %s", statuses["notes.txt"])
	}

	// All three originals are archived regardless of classification.
	objects, err := f.archive.List(context.Background(), "originals/session-1/")
	if err != nil {
		t.Fatalf("archive list: %v", err)
	}
	if len(objects) != 3 {
		t.Errorf("archived %d objects, want 3", len(objects))
	}
}

func TestIngestFilesNoFiles(t *testing.T) {
	f := newIngestFixture(t)

	if _, err := f.service.IngestFiles(context.Background(), "session-1", nil); err != ErrNoFiles {
		t.Fatalf("err = %v, want ErrNoFiles", err)
	}
}

func TestIngestFilesIdempotentReRun(t *testing.T) {
	f := newIngestFixture(t)

	files := []UploadFile{
		{Filename: "trips.csv", Data: boltTripsCSV()},
		{Filename: "payments.csv", Data: uberPaymentsCSV()},
	}

	first, err := f.service.IngestFiles(context.Background(), "session-1", files)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if first.TripsAdded != 3 || first.TransactionsAdded != 1 {
		t.Fatalf("first ingest added %d/%d", first.TripsAdded, first.TransactionsAdded)
	}

	second, err := f.service.IngestFiles(context.Background(), "session-1", files)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second.TripsAdded != 0 || second.TransactionsAdded != 0 {
		t.Errorf("re-ingest added %d trips and %d transactions, want 0/0", second.TripsAdded, second.TransactionsAdded)
	}

	count, _ := f.tripRepo.CountBySession(context.Background(), "session-1")
	if count != 3 {
		t.Errorf("stored trips = %d, want 3", count)
	}
}

func TestIngestFilesCrossReferenceBackfill(t *testing.T) {
	f := newIngestFixture(t)

	uberTrips := []byte(strings.Join([]string{
		"Trip UUID,Trip status,Request time,License plate,Driver name",
		"550e8400-e29b-41d4-a716-446655440000,completed,2024-06-01 08:00:00,B-MU 1234,John Doe",
		"660e8400-e29b-41d4-a716-446655440001,completed,2024-06-10 09:00:00,B-MU 1234,John Doe",
	}, "\n"))

	campaign := []byte(strings.Join([]string{
		"Campaign,Driver,Amount,Payment date",
		"June quest reward,John Doe,\"40,00\",2024-06-05",
	}, "\n"))

	result, err := f.service.IngestFiles(context.Background(), "session-1", []UploadFile{
		{Filename: "trips.csv", Data: uberTrips},
		{Filename: "campaign.csv", Data: campaign},
	})
	if err != nil {
		t.Fatalf("IngestFiles: %v", err)
	}
	if result.PlatesBackfilled != 1 {
		t.Fatalf("PlatesBackfilled = %d, want 1", result.PlatesBackfilled)
	}

	transactions, err := f.transactionRepo.GetBySessionRange(context.Background(), "session-1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("GetBySessionRange: %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("got %d transactions, want 1", len(transactions))
	}
	if transactions[0].LicensePlate != "B-MU1234" {
		t.Errorf("back-filled plate = %q, want B-MU1234", transactions[0].LicensePlate)
	}
}

// Re-ingesting a file whose transactions were already back-filled must
// stay idempotent: the stored row now carries a plate, so the plateless
// copy slips past the unique index and has to be dropped by the
// cross-reference pass instead of colliding with it.
func TestIngestFilesReRunAfterBackfill(t *testing.T) {
	f := newIngestFixture(t)

	files := []UploadFile{
		{Filename: "trips.csv", Data: []byte(strings.Join([]string{
			"Trip UUID,Trip status,Request time,License plate,Driver name",
			"550e8400-e29b-41d4-a716-446655440000,completed,2024-06-01 08:00:00,B-MU 1234,John Doe",
			"660e8400-e29b-41d4-a716-446655440001,completed,2024-06-10 09:00:00,B-MU 1234,John Doe",
		}, "\n"))},
		{Filename: "campaign.csv", Data: []byte(strings.Join([]string{
			"Campaign,Driver,Amount,Payment date",
			"June quest reward,John Doe,\"40,00\",2024-06-05",
		}, "\n"))},
	}

	first, err := f.service.IngestFiles(context.Background(), "session-1", files)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if first.TransactionsAdded != 1 || first.PlatesBackfilled != 1 {
		t.Fatalf("first ingest = %d transactions, %d back-filled, want 1/1", first.TransactionsAdded, first.PlatesBackfilled)
	}

	second, err := f.service.IngestFiles(context.Background(), "session-1", files)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second.TripsAdded != 0 || second.TransactionsAdded != 0 {
		t.Errorf("re-ingest added %d trips and %d transactions, want 0/0", second.TripsAdded, second.TransactionsAdded)
	}
	if second.PlatesBackfilled != 0 {
		t.Errorf("re-ingest back-filled %d plates, want 0", second.PlatesBackfilled)
	}

	transactions, err := f.transactionRepo.GetBySessionRange(context.Background(), "session-1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("GetBySessionRange: %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("stored %d transactions after re-ingest, want 1", len(transactions))
	}
	if transactions[0].LicensePlate != "B-MU1234" {
		t.Errorf("stored plate = %q, want B-MU1234", transactions[0].LicensePlate)
	}
}

func TestIngestFilesProgressIsMonotonicAndTerminal(t *testing.T) {
	f := newIngestFixture(t)

	_, err := f.service.IngestFiles(context.Background(), "session-1", []UploadFile{
		{Filename: "trips.csv", Data: boltTripsCSV()},
		{Filename: "payments.csv", Data: uberPaymentsCSV()},
	})
	if err != nil {
		t.Fatalf("IngestFiles: %v", err)
	}

	events := f.progress.events
	if len(events) == 0 {
		t.Fatal("no progress events emitted")
	}

	last := 0
	for i, event := range events {
		if event.Percent < last {
			t.Fatalf("event %d regressed: %d -> %d", i, last, event.Percent)
		}
		if event.Percent < 0 || event.Percent > 100 {
			t.Fatalf("event %d percent out of range: %d", i, event.Percent)
		}
		last = event.Percent
	}

	terminal := events[len(events)-1]
	if terminal.Percent != 100 || terminal.Phase != "done" {
		t.Errorf("terminal event = %+v, want phase done at 100", terminal)
	}
}

type failingUpdateUploadRepo struct {
	*fakeUploadRepo
}

func (r *failingUpdateUploadRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	return fmt.Errorf("update rejected")
}

// Upload bookkeeping is advisory: a failing status update must not fail
// the ingest call that already persisted its records.
func TestIngestFilesSurvivesUploadUpdateFailure(t *testing.T) {
	tripRepo := newFakeTripRepo()
	transactionRepo := newFakeTransactionRepo()
	uploadRepo := &failingUpdateUploadRepo{fakeUploadRepo: newFakeUploadRepo()}
	service := NewIngestService(tripRepo, transactionRepo, uploadRepo, newFakeArchive(), &progressRecorder{}, testIngestConfig(), testLogger(t))

	result, err := service.IngestFiles(context.Background(), "session-1", []UploadFile{
		{Filename: "trips.csv", Data: boltTripsCSV()},
	})
	if err != nil {
		t.Fatalf("IngestFiles: %v", err)
	}
	if result.TripsAdded != 3 {
		t.Errorf("TripsAdded = %d, want 3", result.TripsAdded)
	}
}

func TestReprocessUpload(t *testing.T) {
	f := newIngestFixture(t)

	result, err := f.service.IngestFiles(context.Background(), "session-1", []UploadFile{
		{Filename: "trips.csv", Data: boltTripsCSV()},
	})
	if err != nil {
		t.Fatalf("IngestFiles: %v", err)
	}
	if result.TripsAdded != 3 {
		t.Fatalf("TripsAdded = %d, want 3", result.TripsAdded)
	}

	uploads, _, err := f.uploadRepo.ListBySession(context.Background(), "session-1", nil)
	if err != nil || len(uploads) != 1 {
		t.Fatalf("expected one upload record, got %d (err %v)", len(uploads), err)
	}

	// Reprocessing from the archive hits the same uniqueness keys.
	again, err := f.service.ReprocessUpload(context.Background(), uploads[0].ID)
	if err != nil {
		t.Fatalf("ReprocessUpload: %v", err)
	}
	if again.TripsAdded != 0 {
		t.Errorf("reprocess added %d trips, want 0", again.TripsAdded)
	}

	count, _ := f.tripRepo.CountBySession(context.Background(), "session-1")
	if count != 3 {
		t.Errorf("stored trips = %d, want 3", count)
	}
}

func TestResetSession(t *testing.T) {
	f := newIngestFixture(t)

	_, err := f.service.IngestFiles(context.Background(), "session-1", []UploadFile{
		{Filename: "trips.csv", Data: boltTripsCSV()},
		{Filename: "payments.csv", Data: uberPaymentsCSV()},
	})
	if err != nil {
		t.Fatalf("IngestFiles: %v", err)
	}

	if err := f.service.ResetSession(context.Background(), "session-1"); err != nil {
		t.Fatalf("ResetSession: %v", err)
	}

	trips, _ := f.tripRepo.CountBySession(context.Background(), "session-1")
	transactions, _ := f.transactionRepo.CountBySession(context.Background(), "session-1")
	if trips != 0 || transactions != 0 {
		t.Errorf("after reset: %d trips, %d transactions, want 0/0", trips, transactions)
	}

	_, total, _ := f.uploadRepo.ListBySession(context.Background(), "session-1", nil)
	if total != 0 {
		t.Errorf("after reset: %d uploads, want 0", total)
	}

	objects, _ := f.archive.List(context.Background(), "originals/session-1/")
	if len(objects) != 0 {
		t.Errorf("after reset: %d archived objects, want 0", len(objects))
	}
}
