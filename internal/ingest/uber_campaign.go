package ingest

import (
	"context"
	"fmt"
	"time"

	"fleetrecon/internal/models"
	"fleetrecon/internal/utils"
)

// extractUberCampaign parses an Uber incentive payout report. Campaign
// rows are keyed by driver name; the plate is only attempted through the
// gated incentive resolver and is usually back-filled afterwards by the
// cross-reference pass against the trip data.
func extractUberCampaign(ctx context.Context, data []byte, run *Run, sinks *Sinks) (*FileResult, error) {
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
		amount, parseErr := utils.ParseAmountCents(rowValue(row, index, "amount"))
		if parseErr != nil {
			return nil
		}
		transactionTime, ok := ParseTimestamp(rowValue(row, index, "payment date", "date"))
		if !ok {
			return nil
		}

		campaign := rowValue(row, index, "campaign")

		plate := ""
		if resolved, found := ExtractIncentivePlate(campaign); found {
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
			Description:     campaign,
			Platform:        models.PlatformUber,
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
