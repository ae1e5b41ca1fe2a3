package services

import (
	"context"
	"fmt"
	"time"

	"fleetrecon/internal/models"
	"fleetrecon/internal/repositories/interfaces"
	"fleetrecon/pkg/logger"
)

type PerformanceService interface {
	// GetDashboard assembles the revenue rollups, the bonus projection
	// and the shift-derived ratios for one session and date range. Zero
	// from/to values leave that bound open; a non-zero end is stretched
	// to end of day so the range is inclusive.
	GetDashboard(ctx context.Context, sessionID string, from, to time.Time) (*models.Dashboard, error)
}

type performanceService struct {
	tripRepo        interfaces.TripRepository
	transactionRepo interfaces.TransactionRepository
	shiftService    ShiftService
	reconcile       ReconcileService
	logger          *logger.Logger
}

func NewPerformanceService(tripRepo interfaces.TripRepository, transactionRepo interfaces.TransactionRepository, shiftService ShiftService, reconcile ReconcileService, logger *logger.Logger) PerformanceService {
	return &performanceService{
		tripRepo:        tripRepo,
		transactionRepo: transactionRepo,
		shiftService:    shiftService,
		reconcile:       reconcile,
		logger:          logger,
	}
}

func (s *performanceService) GetDashboard(ctx context.Context, sessionID string, from, to time.Time) (*models.Dashboard, error) {
	byDay, err := s.transactionRepo.RevenueByDay(ctx, sessionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate revenue by day: %w", err)
	}
	byMonth, err := s.transactionRepo.RevenueByMonth(ctx, sessionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate revenue by month: %w", err)
	}
	byDriver, err := s.transactionRepo.RevenueByDriver(ctx, sessionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate revenue by driver: %w", err)
	}
	byVehicle, err := s.transactionRepo.RevenueByVehicle(ctx, sessionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate revenue by vehicle: %w", err)
	}

	counts, err := s.tripRepo.CompletedTripCountsByVehicleMonth(ctx, sessionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed trips: %w", err)
	}
	bonuses := make([]*models.VehicleMonthBonus, 0, len(counts))
	for _, c := range counts {
		bonuses = append(bonuses, &models.VehicleMonthBonus{
			LicensePlate: c.LicensePlate,
			Month:        c.Month,
			Count:        c.Count,
			Bonus:        s.reconcile.BonusForTripCount(int(c.Count)),
		})
	}

	_, shiftSummary, err := s.shiftService.GetShifts(ctx, sessionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize shifts: %w", err)
	}

	dashboard := &models.Dashboard{
		ByDay:          byDay,
		ByMonth:        byMonth,
		ByDriver:       byDriver,
		ByVehicle:      byVehicle,
		VehicleBonuses: bonuses,
		Shifts:         shiftSummary,
	}

	var totalRevenue int64
	for _, bucket := range byDay {
		totalRevenue += bucket.Revenue
	}

	if shiftSummary.TotalHours > 0 {
		dashboard.RevenuePerHour = float64(totalRevenue) / shiftSummary.TotalHours
	}
	if shiftSummary.TotalDistance > 0 {
		// Distance is stored in centi-kilometres.
		dashboard.RevenuePerKm = float64(totalRevenue) / (float64(shiftSummary.TotalDistance) / 100)
	}
	if len(byDay) > 0 {
		dashboard.RevenuePerDay = float64(totalRevenue) / float64(len(byDay))
	}

	return dashboard, nil
}
