package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"booking-service/internal/domain"
	"booking-service/internal/models"
	"booking-service/internal/store"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

const maxCommentLength = 500

// LifecycleService handles post-creation order transitions: owner
// cancellation, owner edits while pending, and staff overrides. Capacity is
// never re-admitted here; cancelling simply stops the seats from counting.
type LifecycleService struct {
	ledger Ledger
	cache  AvailabilityCache
	events EventSink
	logger *zap.Logger
}

// NewLifecycleService creates a new lifecycle service. cache and events may
// be nil.
func NewLifecycleService(ledger Ledger, cache AvailabilityCache, events EventSink) *LifecycleService {
	return &LifecycleService{
		ledger: ledger,
		cache:  cache,
		events: events,
		logger: util.GetLogger(),
	}
}

// OwnerCancel cancels the caller's own pending order. Cancelled seats stop
// counting against capacity immediately; nothing else about the order
// changes.
func (s *LifecycleService) OwnerCancel(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "LifecycleService.OwnerCancel")
	defer span.End()

	order, err := s.ledger.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.AuthorizationError{Msg: "order belongs to another user"}
	}
	if order.Status != models.OrderStatusPending {
		return nil, domain.AuthorizationError{Msg: fmt.Sprintf("order is %s; only pending orders can be cancelled", order.Status)}
	}

	// Conditional update; a concurrent staff override between the read
	// above and here makes this a no-op rather than a clobber.
	cancelled, err := s.ledger.CancelPendingOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		return nil, domain.AuthorizationError{Msg: "order is no longer pending"}
	}
	order.Status = models.OrderStatusCancelled

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("order cancelled by owner",
		zap.Int64("order_id", orderID),
		zap.String("order_code", order.Code))

	s.invalidateForOrder(ctx, orderID)

	if s.events != nil {
		event := &models.OrderCancelledEvent{
			BaseEvent: newBaseEvent(models.EventTypeOrderCancelled),
			OrderID:   order.ID,
			OrderCode: order.Code,
			UserID:    order.UserID,
			Quantity:  order.Quantity,
		}
		if err := s.events.PublishOrderCancelled(ctx, event); err != nil {
			s.logger.Error("failed to publish OrderCancelled event", zap.Error(err))
		}
	}

	return order, nil
}

// StaffSetStatus overrides an order's status to any valid value, regardless
// of owner or current status.
func (s *LifecycleService) StaffSetStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "LifecycleService.StaffSetStatus")
	defer span.End()

	if !models.ValidOrderStatus(status) {
		return nil, domain.ValidationError{Fields: []domain.FieldError{
			{Field: "status", Message: "must be one of pending, success, cancelled, failed"},
		}}
	}

	order, err := s.ledger.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	oldStatus := order.Status

	if err := s.ledger.SetOrderStatus(ctx, orderID, status); err != nil {
		return nil, err
	}
	order.Status = status

	util.StatusOverridesTotal.WithLabelValues(status).Inc()
	s.logger.Info("order status overridden",
		zap.Int64("order_id", orderID),
		zap.String("old_status", oldStatus),
		zap.String("new_status", status))

	// Moving between active and inactive statuses shifts availability.
	s.invalidateForOrder(ctx, orderID)

	if s.events != nil && oldStatus != status {
		event := &models.OrderStatusChangedEvent{
			BaseEvent: newBaseEvent(models.EventTypeOrderStatusChanged),
			OrderID:   order.ID,
			OrderCode: order.Code,
			OldStatus: oldStatus,
			NewStatus: status,
		}
		if err := s.events.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Error("failed to publish OrderStatusChanged event", zap.Error(err))
		}
	}

	return order, nil
}

// StaffEditComment sets or clears the staff annotation on an order.
func (s *LifecycleService) StaffEditComment(ctx context.Context, orderID int64, comment string) error {
	ctx, span := util.StartSpan(ctx, "LifecycleService.StaffEditComment")
	defer span.End()

	if utf8.RuneCountInString(comment) > maxCommentLength {
		return domain.ValidationError{Fields: []domain.FieldError{
			{Field: "comment", Message: fmt.Sprintf("must be at most %d characters", maxCommentLength)},
		}}
	}

	return s.ledger.SetOrderComment(ctx, orderID, comment)
}

// OrderEditRequest carries an owner's edit to a pending order. Passenger
// lines replace the existing ones; quantity cannot change. An empty proof
// reference keeps the existing one.
type OrderEditRequest struct {
	OrderID         int64                   `json:"-"`
	UserID          int64                   `json:"-"`
	Passengers      []models.PassengerInput `json:"passengers"`
	PaymentMethod   string                  `json:"payment_method"`
	PaymentProofRef string                  `json:"payment_proof"`
}

// OwnerEditPendingOrder updates passenger details and payment metadata of
// the caller's own pending order.
func (s *LifecycleService) OwnerEditPendingOrder(ctx context.Context, req *OrderEditRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "LifecycleService.OwnerEditPendingOrder")
	defer span.End()

	order, err := s.ledger.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != req.UserID {
		return nil, domain.AuthorizationError{Msg: "order belongs to another user"}
	}

	if err := s.validateEditRequest(req, order.Quantity); err != nil {
		return nil, err
	}

	err = s.ledger.UpdatePendingOrder(ctx, store.OrderEditParams{
		OrderID:       req.OrderID,
		UserID:        req.UserID,
		Passengers:    req.Passengers,
		PaymentMethod: req.PaymentMethod,
		PaymentProof:  req.PaymentProofRef,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("pending order edited by owner",
		zap.Int64("order_id", req.OrderID),
		zap.String("order_code", order.Code))

	updated, err := s.ledger.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	seats, err := s.ledger.GetSeatsByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	updated.Seats = seats
	return updated, nil
}

func (s *LifecycleService) validateEditRequest(req *OrderEditRequest, quantity int) error {
	var fields []domain.FieldError

	if len(req.Passengers) != quantity {
		fields = append(fields, domain.FieldError{
			Field:   "passengers",
			Message: fmt.Sprintf("must contain exactly %d entries", quantity),
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

	if len(fields) > 0 {
		return domain.ValidationError{Fields: fields}
	}
	return nil
}

func (s *LifecycleService) invalidateForOrder(ctx context.Context, orderID int64) {
	if s.cache == nil {
		return
	}
	scheduleID, err := s.ledger.GetOrderScheduleID(ctx, orderID)
	if err != nil {
		s.logger.Warn("failed to resolve schedule for cache invalidation",
			zap.Int64("order_id", orderID), zap.Error(err))
		return
	}
	if err := s.cache.InvalidateAvailability(ctx, scheduleID); err != nil {
		s.logger.Warn("failed to invalidate availability cache",
			zap.Int64("schedule_id", scheduleID), zap.Error(err))
	}
}
