package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fleetrecon/internal/config"
	"fleetrecon/internal/ingest"
	"fleetrecon/internal/models"
	"fleetrecon/internal/repositories/interfaces"
	"fleetrecon/internal/utils"
	"fleetrecon/pkg/logger"
)

type ReconcileService interface {
	// GetDriverSummaries loads a session's trips and transactions
	// (optionally date-bounded) and reconciles them.
	GetDriverSummaries(ctx context.Context, sessionID string, from, to time.Time) ([]*models.DriverSummary, error)

	// ComputeDriverSummaries is the pure engine: no storage access, no
	// side effects, output independent of input ordering.
	ComputeDriverSummaries(trips []*models.Trip, transactions []*models.Transaction) []*models.DriverSummary

	// BonusForTripCount applies the tier table to one month's completed
	// trip count.
	BonusForTripCount(count int) int64
}

type reconcileService struct {
	tripRepo        interfaces.TripRepository
	transactionRepo interfaces.TransactionRepository
	cfg             *config.IngestConfig
	logger          *logger.Logger
}

func NewReconcileService(tripRepo interfaces.TripRepository, transactionRepo interfaces.TransactionRepository, cfg *config.IngestConfig, logger *logger.Logger) ReconcileService {
	return &reconcileService{
		tripRepo:        tripRepo,
		transactionRepo: transactionRepo,
		cfg:             cfg,
		logger:          logger,
	}
}

func (s *reconcileService) GetDriverSummaries(ctx context.Context, sessionID string, from, to time.Time) ([]*models.DriverSummary, error) {
	trips, err := s.tripRepo.GetBySessionRange(ctx, sessionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load trips for reconciliation: %w", err)
	}

	transactions, err := s.transactionRepo.GetBySessionRange(ctx, sessionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for reconciliation: %w", err)
	}

	summaries := s.ComputeDriverSummaries(trips, transactions)

	s.logger.WithSessionID(sessionID).WithFields(map[string]interface{}{
		"trips":        len(trips),
		"transactions": len(transactions),
		"vehicles":     len(summaries),
	}).Debug("Reconciliation computed")

	return summaries, nil
}

// ComputeDriverSummaries nets the theoretical bonus against the payouts
// actually observed, per vehicle per calendar month. Only completed trips
// count toward the tier table; every transaction with a plate counts
// toward paidAmount. Both sides key on the normalized plate, so mixed-case
// or spaced plate spellings collapse into one vehicle.
func (s *reconcileService) ComputeDriverSummaries(trips []*models.Trip, transactions []*models.Transaction) []*models.DriverSummary {
	byPlate := make(map[string]*models.DriverSummary)

	summaryFor := func(plate string) *models.DriverSummary {
		summary, ok := byPlate[plate]
		if !ok {
			summary = &models.DriverSummary{
				LicensePlate: plate,
				Months:       make(map[string]*models.MonthlyStats),
			}
			byPlate[plate] = summary
		}
		return summary
	}

	monthFor := func(summary *models.DriverSummary, key string) *models.MonthlyStats {
		stats, ok := summary.Months[key]
		if !ok {
			stats = &models.MonthlyStats{}
			summary.Months[key] = stats
		}
		return stats
	}

	for _, trip := range trips {
		if !trip.IsCompleted() {
			continue
		}
		plate := ingest.NormalizePlate(trip.LicensePlate)
		if plate == "" {
			continue
		}
		summary := summaryFor(plate)
		monthFor(summary, utils.MonthKey(trip.OrderTime)).Count++
	}

	for _, tx := range transactions {
		plate := ingest.NormalizePlate(tx.LicensePlate)
		if plate == "" {
			continue
		}
		summary := summaryFor(plate)
		monthFor(summary, utils.MonthKey(tx.TransactionTime)).PaidAmount += tx.Amount
	}

	plates := make([]string, 0, len(byPlate))
	for plate := range byPlate {
		plates = append(plates, plate)
	}
	sort.Strings(plates)

	summaries := make([]*models.DriverSummary, 0, len(plates))
	for _, plate := range plates {
		summary := byPlate[plate]
		for _, stats := range summary.Months {
			stats.Bonus = s.BonusForTripCount(stats.Count)
			stats.Difference = stats.Bonus - stats.PaidAmount

			summary.TotalTrips += stats.Count
			summary.TotalBonus += stats.Bonus
			summary.TotalPaid += stats.PaidAmount
			summary.TotalDifference += stats.Difference
		}
		summaries = append(summaries, summary)
	}

	return summaries
}

// Tier boundaries are inclusive: exactly 250 completed trips earns the
// lower tier, exactly 700 the upper.
func (s *reconcileService) BonusForTripCount(count int) int64 {
	switch {
	case count >= s.cfg.BonusTierUpperTrips:
		return s.cfg.BonusTierUpperCents
	case count >= s.cfg.BonusTierLowerTrips:
		return s.cfg.BonusTierLowerCents
	default:
		return 0
	}
}
