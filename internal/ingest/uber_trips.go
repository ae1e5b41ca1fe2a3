package ingest

import (
	"context"
	"fmt"
	"time"

	"fleetrecon/internal/models"
)

// extractUberTrips parses an Uber trip activity report. The trip UUID is
// kept for traceability but plays no part in deduplication; the dedup key
// is (plate, request time), same as for Bolt.
func extractUberTrips(ctx context.Context, data []byte, run *Run, sinks *Sinks) (*FileResult, error) {
	result := &FileResult{Platform: models.PlatformUber}
	batch := make([]*models.Trip, 0, run.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := sinks.Trips(ctx, batch); err != nil {
			return fmt.Errorf("failed to store trip batch: %w", err)
		}
		batch = make([]*models.Trip, 0, run.BatchSize)
		return nil
	}

	err := forEachRow(data, func(index map[string]int, header, row []string) error {
		plate := rowValue(row, index, "license plate")
		if plate == "" {
			return nil
		}
		orderTime, ok := ParseTimestamp(rowValue(row, index, "request time", "begin trip time"))
		if !ok {
			return nil
		}

		plate = NormalizePlate(plate)
		if run.SeenTrip(plate, orderTime) {
			return nil
		}

		batch = append(batch, &models.Trip{
			SessionID:    run.SessionID,
			TripID:       rowValue(row, index, "trip uuid"),
			LicensePlate: plate,
			DriverName:   rowValue(row, index, "driver name"),
			OrderTime:    orderTime,
			TripStatus:   rowValue(row, index, "trip status"),
			Platform:     models.PlatformUber,
			RawData:      rawRow(row, header),
			CreatedAt:    time.Now(),
		})
		result.Count++
		result.observeTime(orderTime)

		if len(batch) >= run.BatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := flush(); err != nil {
		return nil, err
	}
	return result, nil
}
