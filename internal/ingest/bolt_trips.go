package ingest

import (
	"context"
	"fmt"
	"time"

	"fleetrecon/internal/models"
)

// extractBoltTrips parses a Bolt ride report. Every row carries the
// vehicle plate directly, so no description resolution is needed; rows
// without a plate or a parseable order time are dropped silently.
func extractBoltTrips(ctx context.Context, data []byte, run *Run, sinks *Sinks) (*FileResult, error) {
	result := &FileResult{Platform: models.PlatformBolt}
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
		plate := rowValue(row, index, "vehicle's license plate", "license plate")
		if plate == "" {
			return nil
		}
		orderTime, ok := ParseTimestamp(rowValue(row, index, "order time", "payment time"))
		if !ok {
			return nil
		}

		plate = NormalizePlate(plate)
		if run.SeenTrip(plate, orderTime) {
			return nil
		}

		batch = append(batch, &models.Trip{
			SessionID:    run.SessionID,
			LicensePlate: plate,
			DriverName:   rowValue(row, index, "driver"),
			OrderTime:    orderTime,
			TripStatus:   rowValue(row, index, "order status"),
			Platform:     models.PlatformBolt,
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
