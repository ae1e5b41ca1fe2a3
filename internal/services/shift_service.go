package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fleetrecon/internal/config"
	"fleetrecon/internal/models"
	"fleetrecon/internal/repositories/interfaces"
	"fleetrecon/pkg/logger"
)

type ShiftService interface {
	// GetShifts loads a session's transactions (optionally date-bounded),
	// segments them into shifts and rolls up the summary.
	GetShifts(ctx context.Context, sessionID string, from, to time.Time) ([]*models.Shift, *models.ShiftSummary, error)

	// DetectShifts is the pure segmentation engine; the input slice is
	// not modified.
	DetectShifts(transactions []*models.Transaction) []*models.Shift

	Summarize(shifts []*models.Shift) *models.ShiftSummary
}

type shiftService struct {
	transactionRepo interfaces.TransactionRepository
	cfg             *config.IngestConfig
	logger          *logger.Logger
}

func NewShiftService(transactionRepo interfaces.TransactionRepository, cfg *config.IngestConfig, logger *logger.Logger) ShiftService {
	return &shiftService{
		transactionRepo: transactionRepo,
		cfg:             cfg,
		logger:          logger,
	}
}

func (s *shiftService) GetShifts(ctx context.Context, sessionID string, from, to time.Time) ([]*models.Shift, *models.ShiftSummary, error) {
	transactions, err := s.transactionRepo.GetBySessionRange(ctx, sessionID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load transactions for shift detection: %w", err)
	}

	shifts := s.DetectShifts(transactions)
	summary := s.Summarize(shifts)

	s.logger.WithSessionID(sessionID).WithFields(map[string]interface{}{
		"transactions": len(transactions),
		"shifts":       summary.TotalShifts,
	}).Debug("Shifts detected")

	return shifts, summary, nil
}

// DetectShifts reconstructs work shifts from the flat transaction stream.
// The stream is sorted by (driver, plate, time) first, which makes the
// result independent of input order; a new shift opens on every key change
// and on every idle gap longer than the configured threshold.
func (s *shiftService) DetectShifts(transactions []*models.Transaction) []*models.Shift {
	rows := make([]*models.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.DriverName == "" && tx.LicensePlate == "" {
			continue
		}
		rows = append(rows, tx)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].DriverName != rows[j].DriverName {
			return rows[i].DriverName < rows[j].DriverName
		}
		if rows[i].LicensePlate != rows[j].LicensePlate {
			return rows[i].LicensePlate < rows[j].LicensePlate
		}
		return rows[i].TransactionTime.Before(rows[j].TransactionTime)
	})

	var shifts []*models.Shift
	var current *builderShift

	for _, tx := range rows {
		if current != nil &&
			(tx.DriverName != current.driverName ||
				tx.LicensePlate != current.licensePlate ||
				tx.TransactionTime.Sub(current.lastTime) > s.cfg.ShiftGapThreshold) {
			shifts = append(shifts, current.finish(s.cfg))
			current = nil
		}

		if current == nil {
			current = &builderShift{
				driverName:   tx.DriverName,
				licensePlate: tx.LicensePlate,
				firstTime:    tx.TransactionTime,
			}
		}

		current.add(tx, s.cfg)
	}
	if current != nil {
		shifts = append(shifts, current.finish(s.cfg))
	}

	return shifts
}

func (s *shiftService) Summarize(shifts []*models.Shift) *models.ShiftSummary {
	summary := &models.ShiftSummary{TotalShifts: len(shifts)}

	for _, shift := range shifts {
		if shift.ShiftType == models.ShiftTypeDay {
			summary.DayShifts++
		} else {
			summary.NightShifts++
		}
		summary.TotalRevenue += shift.Revenue
		summary.TotalHours += shift.HoursWorked
		summary.TotalDistance += shift.DistanceUnits
	}

	if len(shifts) > 0 {
		summary.AvgDurationHours = summary.TotalHours / float64(len(shifts))
		summary.AvgRevenue = summary.TotalRevenue / int64(len(shifts))
	}

	return summary
}

// builderShift accumulates one shift while walking the sorted stream.
type builderShift struct {
	driverName   string
	licensePlate string
	firstTime    time.Time
	lastTime     time.Time

	revenue       int64
	distanceUnits int64
	tripCount     int

	// Sum of per-trip durations where the row carries a usable
	// start/end pair; hoursFromTrips stays false when none did and the
	// whole-shift span is used instead.
	tripHours      float64
	hoursFromTrips bool

	dayMinutes   float64
	nightMinutes float64
}

func (b *builderShift) add(tx *models.Transaction, cfg *config.IngestConfig) {
	b.lastTime = tx.TransactionTime
	b.revenue += tx.Amount
	b.distanceUnits += tx.DistanceUnits
	b.tripCount++

	tripStart := tx.TransactionTime
	tripMinutes := float64(cfg.DefaultTripMinutes)
	if tx.TripStart != nil && tx.TripEnd != nil && tx.TripEnd.After(*tx.TripStart) {
		tripStart = *tx.TripStart
		tripMinutes = tx.TripEnd.Sub(*tx.TripStart).Minutes()
		b.tripHours += tripMinutes / 60
		b.hoursFromTrips = true
	}

	if hour := tripStart.Hour(); hour >= cfg.DayWindowStartHour && hour < cfg.DayWindowEndHour {
		b.dayMinutes += tripMinutes
	} else {
		b.nightMinutes += tripMinutes
	}
}

func (b *builderShift) finish(cfg *config.IngestConfig) *models.Shift {
	hours := b.tripHours
	if !b.hoursFromTrips {
		hours = b.lastTime.Sub(b.firstTime).Hours()
	}

	shiftType := models.ShiftTypeNight
	if b.dayMinutes >= b.nightMinutes {
		shiftType = models.ShiftTypeDay
	}

	return &models.Shift{
		DriverName:    b.driverName,
		LicensePlate:  b.licensePlate,
		ShiftStart:    b.firstTime,
		ShiftEnd:      b.lastTime,
		ShiftType:     shiftType,
		Revenue:       b.revenue,
		DistanceUnits: b.distanceUnits,
		HoursWorked:   hours,
		TripCount:     b.tripCount,
	}
}
