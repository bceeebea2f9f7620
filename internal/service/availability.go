package service

import (
	"context"

	"booking-service/internal/util"

	"go.uber.org/zap"
)

// AvailabilityService answers read-only seat availability queries. Answers
// may be served from a short-lived cache and are advisory; the booking path
// re-derives availability under lock before committing.
type AvailabilityService struct {
	catalog Catalog
	ledger  Ledger
	cache   AvailabilityCache
	logger  *zap.Logger
}

// NewAvailabilityService creates a new availability service. cache may be
// nil, in which case every query recomputes from the ledger.
func NewAvailabilityService(catalog Catalog, ledger Ledger, cache AvailabilityCache) *AvailabilityService {
	return &AvailabilityService{
		catalog: catalog,
		ledger:  ledger,
		cache:   cache,
		logger:  util.GetLogger(),
	}
}

// Availability returns the number of seats still bookable on a schedule:
// bus capacity minus seats held by pending and success orders, floored at
// zero.
func (s *AvailabilityService) Availability(ctx context.Context, scheduleID int64) (int, error) {
	ctx, span := util.StartSpan(ctx, "AvailabilityService.Availability")
	defer span.End()

	if s.cache != nil {
		if available, ok, err := s.cache.GetAvailability(ctx, scheduleID); err != nil {
			s.logger.Warn("availability cache read failed",
				zap.Int64("schedule_id", scheduleID), zap.Error(err))
		} else if ok {
			util.AvailabilityCacheHits.Inc()
			return available, nil
		}
		util.AvailabilityCacheMisses.Inc()
	}

	available, err := s.compute(ctx, scheduleID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.SetAvailability(ctx, scheduleID, available); err != nil {
			s.logger.Warn("availability cache write failed",
				zap.Int64("schedule_id", scheduleID), zap.Error(err))
		}
	}
	return available, nil
}

func (s *AvailabilityService) compute(ctx context.Context, scheduleID int64) (int, error) {
	sched, err := s.catalog.GetSchedule(ctx, scheduleID)
	if err != nil {
		return 0, err
	}
	bus, err := s.catalog.GetBus(ctx, sched.BusID)
	if err != nil {
		return 0, err
	}
	active, err := s.ledger.CountActiveSeats(ctx, scheduleID)
	if err != nil {
		return 0, err
	}

	available := bus.Capacity - active
	if available < 0 {
		available = 0
	}
	return available, nil
}
