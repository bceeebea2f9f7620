package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"booking-service/internal/domain"
	"booking-service/internal/models"
	"booking-service/internal/store"
	"booking-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingService coordinates a booking attempt: input validation, an
// advisory operational check, then the locked admission-and-write unit in
// the ledger. Any abort leaves the ledger untouched.
type BookingService struct {
	catalog  Catalog
	ledger   Ledger
	cache    AvailabilityCache
	events   EventSink
	logger   *zap.Logger
	maxSeats int
}

// NewBookingService creates a new booking service. cache and events may be
// nil.
func NewBookingService(catalog Catalog, ledger Ledger, cache AvailabilityCache, events EventSink, maxSeats int) *BookingService {
	if maxSeats < 1 {
		maxSeats = 4
	}
	return &BookingService{
		catalog:  catalog,
		ledger:   ledger,
		cache:    cache,
		events:   events,
		logger:   util.GetLogger(),
		maxSeats: maxSeats,
	}
}

// BookingRequest is one booking attempt. Quantity is implied by the number
// of passenger lines.
type BookingRequest struct {
	ScheduleID      int64                   `json:"schedule_id"`
	UserID          int64                   `json:"-"`
	Passengers      []models.PassengerInput `json:"passengers"`
	PaymentMethod   string                  `json:"payment_method"`
	PaymentProofRef string                  `json:"payment_proof"`
}

// AttemptBooking runs one booking attempt end to end and returns the
// committed order with its seats, or a typed error with no persisted side
// effects.
func (s *BookingService) AttemptBooking(ctx context.Context, req *BookingRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.AttemptBooking")
	defer span.End()

	if err := s.validateBookingRequest(req); err != nil {
		util.BookingsRejectedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	// Advisory check before taking the lock; a doomed attempt should not
	// consume contention. The authoritative re-check happens under lock.
	if err := s.checkOperational(ctx, req.ScheduleID); err != nil {
		util.BookingsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	start := time.Now()
	order, err := s.ledger.CreateOrder(ctx, store.BookingParams{
		ScheduleID:    req.ScheduleID,
		UserID:        req.UserID,
		Passengers:    req.Passengers,
		PaymentMethod: req.PaymentMethod,
		PaymentProof:  req.PaymentProofRef,
	})
	util.AdmissionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.BookingsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	util.BookingsCreatedTotal.Inc()
	util.SeatsBookedTotal.Add(float64(order.Quantity))
	s.logger.Info("booking committed",
		zap.Int64("order_id", order.ID),
		zap.String("order_code", order.Code),
		zap.Int64("schedule_id", req.ScheduleID),
		zap.Int("quantity", order.Quantity))

	s.invalidateAvailability(ctx, req.ScheduleID)

	if s.events != nil {
		event := &models.OrderCreatedEvent{
			BaseEvent:  newBaseEvent(models.EventTypeOrderCreated),
			OrderID:    order.ID,
			OrderCode:  order.Code,
			UserID:     order.UserID,
			ScheduleID: req.ScheduleID,
			Quantity:   order.Quantity,
			TotalCost:  order.TotalCost,
		}
		if err := s.events.PublishOrderCreated(ctx, event); err != nil {
			s.logger.Error("failed to publish OrderCreated event", zap.Error(err))
		}
	}

	return order, nil
}

// GetOrder retrieves an order with its seats.
func (s *BookingService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.ledger.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	seats, err := s.ledger.GetSeatsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Seats = seats
	return order, nil
}

// validateBookingRequest collects every violated input field.
func (s *BookingService) validateBookingRequest(req *BookingRequest) error {
	var fields []domain.FieldError

	quantity := len(req.Passengers)
	if quantity < 1 || quantity > s.maxSeats {
		fields = append(fields, domain.FieldError{
			Field:   "quantity",
			Message: fmt.Sprintf("must be between 1 and %d", s.maxSeats),
		})
	}

	for i, p := range req.Passengers {
		prefix := fmt.Sprintf("passengers[%d].", i)

		name := strings.TrimSpace(p.Name)
		if name == "" {
			fields = append(fields, domain.FieldError{Field: prefix + "name", Message: "required"})
		} else if len(name) > 255 {
			fields = append(fields, domain.FieldError{Field: prefix + "name", Message: "must be at most 255 characters"})
		}

		if p.Age < 1 || p.Age > 120 {
			fields = append(fields, domain.FieldError{Field: prefix + "age", Message: "must be between 1 and 120"})
		}

		if !models.ValidTitle(p.Title) {
			fields = append(fields, domain.FieldError{Field: prefix + "title", Message: "must be one of Mx, Ms, Mrs, Mr"})
		}
	}

	if !models.ValidPaymentMethod(req.PaymentMethod) {
		fields = append(fields, domain.FieldError{Field: "payment_method", Message: "must be one of bank_transfer, credit_card, e_wallet"})
	}

	if strings.TrimSpace(req.PaymentProofRef) == "" {
		fields = append(fields, domain.FieldError{Field: "payment_proof", Message: "required"})
	}

	if len(fields) > 0 {
		return domain.ValidationError{Fields: fields}
	}
	return nil
}

// checkOperational reads the schedule, its bus and both terminals and
// reports every failing precondition.
func (s *BookingService) checkOperational(ctx context.Context, scheduleID int64) error {
	sched, err := s.catalog.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	bus, err := s.catalog.GetBus(ctx, sched.BusID)
	if err != nil {
		return err
	}
	departure, err := s.catalog.GetTerminal(ctx, sched.DepartureID)
	if err != nil {
		return err
	}
	arrival, err := s.catalog.GetTerminal(ctx, sched.ArrivalID)
	if err != nil {
		return err
	}

	if reasons := models.NotBookableReasons(sched, bus, departure, arrival, time.Now()); len(reasons) > 0 {
		return domain.NotBookableError{Reasons: reasons}
	}
	return nil
}

func (s *BookingService) invalidateAvailability(ctx context.Context, scheduleID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAvailability(ctx, scheduleID); err != nil {
		s.logger.Warn("failed to invalidate availability cache",
			zap.Int64("schedule_id", scheduleID), zap.Error(err))
	}
}

func rejectReason(err error) string {
	switch {
	case domain.IsValidation(err):
		return "validation"
	case domain.IsNotBookable(err):
		return "not_bookable"
	case domain.IsInsufficientCapacity(err):
		return "insufficient_capacity"
	case domain.IsContention(err):
		return "contention"
	case domain.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
