package ingest

import (
	"context"
	"fmt"
	"time"

	"fleetrecon/internal/models"
	"fleetrecon/internal/utils"
)

// extractUberPayments parses an Uber partner payment report. The company
// payout lives in "paid to company"; a plate column is present in some
// report variants and otherwise the plate is resolved out of the free-text
// description. The first non-empty company name is surfaced on the result.
func extractUberPayments(ctx context.Context, data []byte, run *Run, sinks *Sinks) (*FileResult, error) {
	result := &FileResult{Platform: models.PlatformUber}
	batch := make([]*models.Transaction, 0, run.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := sinks.Transactions(ctx, batch); err != nil {
			return fmt.Errorf("failed to store transaction batch: %w", err)
		}
		batch = make([]*models.Transaction, 0, run.BatchSize)
		return nil
	}

	err := forEachRow(data, func(index map[string]int, header, row []string) error {
		amount, parseErr := utils.ParseAmountCents(rowValue(row, index, "paid to company"))
		if parseErr != nil {
			return nil
		}
		transactionTime, ok := ParseTimestamp(rowValue(row, index, "event time"))
		if !ok {
			return nil
		}

		if result.CompanyName == "" {
			result.CompanyName = rowValue(row, index, "company name")
		}

		description := rowValue(row, index, "description")

		plate := rowValue(row, index, "license plate")
		if plate != "" {
			plate = NormalizePlate(plate)
		} else if resolved, found := ExtractLicensePlate(description); found {
			plate = resolved
		}

		if run.SeenTransaction(plate, transactionTime, amount) {
			return nil
		}

		tx := &models.Transaction{
			SessionID:       run.SessionID,
			LicensePlate:    plate,
			DriverName:      rowValue(row, index, "driver name", "driver"),
			TransactionTime: transactionTime,
			Amount:          amount,
			Description:     description,
			TripUUID:        rowValue(row, index, "trip uuid"),
			Platform:        models.PlatformUber,
			RawData:         rawRow(row, header),
			CreatedAt:       time.Now(),
		}

		if fare, err := utils.ParseAmountCents(rowValue(row, index, "fare")); err == nil {
			tx.FarePrice = fare
		}
		if revenue, err := utils.ParseAmountCents(rowValue(row, index, "total revenue", "revenue")); err == nil {
			tx.Revenue = revenue
		}
		tx.DistanceUnits = utils.ParseDistanceUnits(rowValue(row, index, "trip distance", "distance"))
		if begin, ok := ParseTimestamp(rowValue(row, index, "begin trip time")); ok {
			tx.TripStart = &begin
		}
		if end, ok := ParseTimestamp(rowValue(row, index, "dropoff time", "end trip time")); ok {
			tx.TripEnd = &end
		}

		batch = append(batch, tx)
		result.Count++
		result.observeTime(transactionTime)

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
