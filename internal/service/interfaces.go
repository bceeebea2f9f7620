package service

import (
	"context"

	"booking-service/internal/models"
	"booking-service/internal/store"
)

// Catalog provides fresh reads of externally-owned route data. Value
// objects come back fully materialized; no lazy loading happens
// mid-computation.
type Catalog interface {
	GetSchedule(ctx context.Context, id int64) (*models.Schedule, error)
	GetBus(ctx context.Context, id int64) (*models.Bus, error)
	GetTerminal(ctx context.Context, id int64) (*models.Terminal, error)
}

// Ledger is the persisted record of orders and seats. CreateOrder is the
// single atomic admission unit: lock, recheck, write, or nothing.
type Ledger interface {
	CreateOrder(ctx context.Context, p store.BookingParams) (*models.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetSeatsByOrderID(ctx context.Context, orderID int64) ([]models.Seat, error)
	GetOrderScheduleID(ctx context.Context, orderID int64) (int64, error)
	CountActiveSeats(ctx context.Context, scheduleID int64) (int, error)
	CancelPendingOrder(ctx context.Context, orderID, userID int64) (bool, error)
	SetOrderStatus(ctx context.Context, orderID int64, status string) error
	SetOrderComment(ctx context.Context, orderID int64, comment string) error
	UpdatePendingOrder(ctx context.Context, p store.OrderEditParams) error
}

// EventSink receives lifecycle events. Publishing is best-effort; failures
// are logged, never propagated to the caller.
type EventSink interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// AvailabilityCache serves advisory availability reads. May be nil-free by
// construction; callers treat a miss and an absent cache identically.
type AvailabilityCache interface {
	GetAvailability(ctx context.Context, scheduleID int64) (int, bool, error)
	SetAvailability(ctx context.Context, scheduleID int64, seats int) error
	InvalidateAvailability(ctx context.Context, scheduleID int64) error
}
