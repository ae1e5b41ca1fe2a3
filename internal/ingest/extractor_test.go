package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"fleetrecon/internal/models"
)

type collectingSinks struct {
	tripBatches        [][]*models.Trip
	transactionBatches [][]*models.Transaction
	failAfter          int
	calls              int
}

func (c *collectingSinks) sinks() *Sinks {
	return &Sinks{
		Trips: func(ctx context.Context, trips []*models.Trip) error {
			c.calls++
			if c.failAfter > 0 && c.calls > c.failAfter {
				return context.Canceled
			}
			batch := make([]*models.Trip, len(trips))
			copy(batch, trips)
			c.tripBatches = append(c.tripBatches, batch)
			return nil
		},
		Transactions: func(ctx context.Context, transactions []*models.Transaction) error {
			c.calls++
			batch := make([]*models.Transaction, len(transactions))
			copy(batch, transactions)
			c.transactionBatches = append(c.transactionBatches, batch)
			return nil
		},
	}
}

func (c *collectingSinks) allTrips() []*models.Trip {
	var all []*models.Trip
	for _, batch := range c.tripBatches {
		all = append(all, batch...)
	}
	return all
}

func (c *collectingSinks) allTransactions() []*models.Transaction {
	var all []*models.Transaction
	for _, batch := range c.transactionBatches {
		all = append(all, batch...)
	}
	return all
}

func TestExtractBoltTrips(t *testing.T) {
	data := []byte(strings.Join([]string{
		"Driver,Vehicle's license plate,Order time,Order status,Ride price",
		"John Doe,B-MU 1234,2024-06-01 08:00:00,finished,\"12,50\"",
		"John Doe,B-MU 1234,2024-06-01 09:00:00,finished,\"8,00\"",
		"John Doe,B-MU 1234,2024-06-01 08:00:00,finished,\"12,50\"", // duplicate
		"Jane Roe,,2024-06-01 10:00:00,finished,\"5,00\"",           // no plate
		"Jane Roe,M-AB 12,not a time,finished,\"5,00\"",             // bad time
		"Jane Roe,M-AB 12,2024-06-01 23:00:00,rider cancelled,\"0,00\"",
	}, "\n"))

	collector := &collectingSinks{}
	run := NewRun("session-1", 10)

	result, err := extractBoltTrips(context.Background(), data, run, collector.sinks())
	if err != nil {
		t.Fatalf("extractBoltTrips: %v", err)
	}

	trips := collector.allTrips()
	if len(trips) != 3 {
		t.Fatalf("got %d trips, want 3", len(trips))
	}
	if result.Count != 3 {
		t.Errorf("result.Count = %d, want 3", result.Count)
	}

	first := trips[0]
	if first.LicensePlate != "B-MU1234" {
		t.Errorf("plate = %q, want B-MU1234", first.LicensePlate)
	}
	if first.Platform != models.PlatformBolt {
		t.Errorf("platform = %q, want bolt", first.Platform)
	}
	if !first.IsCompleted() {
		t.Error("finished trip should count as completed")
	}
	if first.RawData["Ride price"] != "12,50" {
		t.Errorf("raw data not preserved: %v", first.RawData)
	}

	cancelled := trips[2]
	if cancelled.IsCompleted() {
		t.Error("cancelled trip must not count as completed")
	}

	wantFirst := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	wantLast := time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC)
	if !result.FirstTime.Equal(wantFirst) || !result.LastTime.Equal(wantLast) {
		t.Errorf("date range = [%v, %v], want [%v, %v]", result.FirstTime, result.LastTime, wantFirst, wantLast)
	}
}

func TestExtractBoltTripsBatching(t *testing.T) {
	var rows []string
	rows = append(rows, "Driver,Vehicle's license plate,Order time,Order status,Ride price")
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rows = append(rows, "John,B-MU 1,"+base.Add(time.Duration(i)*time.Minute).Format("2006-01-02 15:04:05")+",finished,\"1,00\"")
	}

	collector := &collectingSinks{}
	run := NewRun("session-1", 2)

	result, err := extractBoltTrips(context.Background(), []byte(strings.Join(rows, "\n")), run, collector.sinks())
	if err != nil {
		t.Fatalf("extractBoltTrips: %v", err)
	}

	if result.Count != 5 {
		t.Fatalf("result.Count = %d, want 5", result.Count)
	}
	if len(collector.tripBatches) != 3 {
		t.Fatalf("got %d batches, want 3", len(collector.tripBatches))
	}
	for i, want := range []int{2, 2, 1} {
		if len(collector.tripBatches[i]) != want {
			t.Errorf("batch %d has %d trips, want %d", i, len(collector.tripBatches[i]), want)
		}
	}
}

func TestExtractBoltTripsSinkFailureAborts(t *testing.T) {
	var rows []string
	rows = append(rows, "Driver,Vehicle's license plate,Order time,Order status,Ride price")
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		rows = append(rows, "John,B-MU 1,"+base.Add(time.Duration(i)*time.Minute).Format("2006-01-02 15:04:05")+",finished,\"1,00\"")
	}

	collector := &collectingSinks{failAfter: 1}
	run := NewRun("session-1", 2)

	_, err := extractBoltTrips(context.Background(), []byte(strings.Join(rows, "\n")), run, collector.sinks())
	if err == nil {
		t.Fatal("expected error when a batch flush fails")
	}
	// The first batch stays flushed.
	if len(collector.tripBatches) != 1 {
		t.Errorf("got %d flushed batches, want 1", len(collector.tripBatches))
	}
}

func TestExtractUberTrips(t *testing.T) {
	data := []byte(strings.Join([]string{
		"Trip UUID,Trip status,Request time,License plate,Driver name",
		"550e8400-e29b-41d4-a716-446655440000,completed,2024-06-02 10:00:00,B-MU 1234,John Doe",
		"660e8400-e29b-41d4-a716-446655440001,driver_cancelled,2024-06-02 11:00:00,B-MU 1234,John Doe",
	}, "\n"))

	collector := &collectingSinks{}
	run := NewRun("session-1", 10)

	result, err := extractUberTrips(context.Background(), data, run, collector.sinks())
	if err != nil {
		t.Fatalf("extractUberTrips: %v", err)
	}

	trips := collector.allTrips()
	if len(trips) != 2 || result.Count != 2 {
		t.Fatalf("got %d trips (count %d), want 2", len(trips), result.Count)
	}
	if trips[0].TripID != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("trip uuid not kept: %q", trips[0].TripID)
	}
	if trips[0].Platform != models.PlatformUber {
		t.Errorf("platform = %q, want uber", trips[0].Platform)
	}
	if !trips[0].IsCompleted() || trips[1].IsCompleted() {
		t.Error("completed flag wrong for uber statuses")
	}
}

func TestExtractUberPayments(t *testing.T) {
	data := []byte(strings.Join([]string{
		"Company name,Event time,Description,Paid to company,Total revenue,Driver name",
		"Fleet GmbH,2024-06-03 12:00:00,Payout for B-MU 1234,\"123,45\",\"150,00\",John Doe",
		",2024-06-03 13:00:00,Weekly adjustment,\"10,00\",,Jane Roe",
		"Fleet GmbH,2024-06-03 14:00:00,Bad amount row,not a number,,John Doe",
	}, "\n"))

	collector := &collectingSinks{}
	run := NewRun("session-1", 10)

	result, err := extractUberPayments(context.Background(), data, run, collector.sinks())
	if err != nil {
		t.Fatalf("extractUberPayments: %v", err)
	}

	transactions := collector.allTransactions()
	if len(transactions) != 2 || result.Count != 2 {
		t.Fatalf("got %d transactions (count %d), want 2", len(transactions), result.Count)
	}
	if result.CompanyName != "Fleet GmbH" {
		t.Errorf("company name = %q, want Fleet GmbH", result.CompanyName)
	}

	if transactions[0].Amount != 12345 {
		t.Errorf("amount = %d cents, want 12345", transactions[0].Amount)
	}
	if transactions[0].Revenue != 15000 {
		t.Errorf("revenue = %d cents, want 15000", transactions[0].Revenue)
	}
	if transactions[1].Revenue != 0 {
		t.Errorf("revenueless row got revenue %d", transactions[1].Revenue)
	}
	if transactions[0].LicensePlate != "B-MU1234" {
		t.Errorf("plate from description = %q, want B-MU1234", transactions[0].LicensePlate)
	}
	if transactions[1].LicensePlate != "" {
		t.Errorf("descriptionless row should have no plate, got %q", transactions[1].LicensePlate)
	}
}

func TestExtractBoltPayments(t *testing.T) {
	data := []byte(strings.Join([]string{
		"Date,Payout description,Amount,Balance,Driver",
		"2024-06-04,Payout B-XY 123 weekly,\"55,50\",\"100,00\",John Doe",
		"2024-06-04,Compensation,\"5,00\",\"105,00\",John Doe",
	}, "\n"))

	collector := &collectingSinks{}
	run := NewRun("session-1", 10)

	result, err := extractBoltPayments(context.Background(), data, run, collector.sinks())
	if err != nil {
		t.Fatalf("extractBoltPayments: %v", err)
	}

	transactions := collector.allTransactions()
	if len(transactions) != 2 || result.Count != 2 {
		t.Fatalf("got %d transactions (count %d), want 2", len(transactions), result.Count)
	}
	if transactions[0].LicensePlate != "B-XY123" {
		t.Errorf("plate = %q, want B-XY123", transactions[0].LicensePlate)
	}
	if transactions[0].Amount != 5550 {
		t.Errorf("amount = %d, want 5550", transactions[0].Amount)
	}
	if transactions[1].LicensePlate != "" {
		t.Errorf("plateless payout got plate %q", transactions[1].LicensePlate)
	}
	if transactions[0].Platform != models.PlatformBolt {
		t.Errorf("platform = %q, want bolt", transactions[0].Platform)
	}
}

func TestExtractUberCampaign(t *testing.T) {
	data := []byte(strings.Join([]string{
		"Campaign,Driver,Amount,Payment date",
		"Bonus for 50 trips with B-MU 1234,John Doe,\"40,00\",2024-06-05",
		"June quest reward,Jane Roe,\"25,00\",2024-06-05",
	}, "\n"))

	collector := &collectingSinks{}
	run := NewRun("session-1", 10)

	result, err := extractUberCampaign(context.Background(), data, run, collector.sinks())
	if err != nil {
		t.Fatalf("extractUberCampaign: %v", err)
	}

	transactions := collector.allTransactions()
	if len(transactions) != 2 || result.Count != 2 {
		t.Fatalf("got %d transactions (count %d), want 2", len(transactions), result.Count)
	}
	if transactions[0].LicensePlate != "B-MU1234" {
		t.Errorf("gated plate = %q, want B-MU1234", transactions[0].LicensePlate)
	}
	if transactions[1].LicensePlate != "" {
		t.Errorf("ungated campaign row got plate %q", transactions[1].LicensePlate)
	}
	if transactions[1].DriverName != "Jane Roe" {
		t.Errorf("driver = %q, want Jane Roe", transactions[1].DriverName)
	}
}

// One Run instance threaded through two files suppresses cross-file
// duplicates, and a fresh Run does not.
func TestRunDedupAcrossFiles(t *testing.T) {
	data := []byte(strings.Join([]string{
		"Driver,Vehicle's license plate,Order time,Order status,Ride price",
		"John,B-MU 1,2024-06-01 08:00:00,finished,\"1,00\"",
	}, "\n"))

	collector := &collectingSinks{}
	run := NewRun("session-1", 10)

	for i := 0; i < 2; i++ {
		if _, err := extractBoltTrips(context.Background(), data, run, collector.sinks()); err != nil {
			t.Fatalf("extractBoltTrips: %v", err)
		}
	}
	if got := len(collector.allTrips()); got != 1 {
		t.Errorf("shared run persisted %d trips, want 1", got)
	}

	fresh := &collectingSinks{}
	if _, err := extractBoltTrips(context.Background(), data, NewRun("session-1", 10), fresh.sinks()); err != nil {
		t.Fatalf("extractBoltTrips: %v", err)
	}
	if got := len(fresh.allTrips()); got != 1 {
		t.Errorf("fresh run persisted %d trips, want 1", got)
	}
}
