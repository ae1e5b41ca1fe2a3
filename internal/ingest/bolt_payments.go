package ingest

import (
	"context"
	"fmt"
	"time"

	"fleetrecon/internal/models"
	"fleetrecon/internal/utils"
)

// extractBoltPayments parses a Bolt payout statement. The payout
// description is the only place a vehicle plate appears, so plate
// resolution runs on every row; rows whose description carries no
// plate-shaped text simply stay unkeyed by vehicle.
func extractBoltPayments(ctx context.Context, data []byte, run *Run, sinks *Sinks) (*FileResult, error) {
	result := &FileResult{Platform: models.PlatformBolt}
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
		amount, parseErr := utils.ParseAmountCents(rowValue(row, index, "amount"))
		if parseErr != nil {
			return nil
		}
		transactionTime, ok := ParseTimestamp(rowValue(row, index, "date"))
		if !ok {
			return nil
		}

		description := rowValue(row, index, "payout description")

		plate := ""
		if resolved, found := ExtractLicensePlate(description); found {
			plate = resolved
		}

		if run.SeenTransaction(plate, transactionTime, amount) {
			return nil
		}

		batch = append(batch, &models.Transaction{
			SessionID:       run.SessionID,
			LicensePlate:    plate,
			DriverName:      rowValue(row, index, "driver"),
			TransactionTime: transactionTime,
			Amount:          amount,
			Description:     description,
			Platform:        models.PlatformBolt,
			RawData:         rawRow(row, header),
			CreatedAt:       time.Now(),
		})
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
