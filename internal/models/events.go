package models

import "time"

// Event types published on the order-events topic.
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderCancelled     = "ORDER_CANCELLED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent is published when a booking commits.
type OrderCreatedEvent struct {
	BaseEvent
	OrderID    int64  `json:"order_id"`
	OrderCode  string `json:"order_code"`
	UserID     int64  `json:"user_id"`
	ScheduleID int64  `json:"schedule_id"`
	Quantity   int    `json:"quantity"`
	TotalCost  int64  `json:"total_cost"`
}

// OrderCancelledEvent is published when the owner cancels a pending order.
type OrderCancelledEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	OrderCode string `json:"order_code"`
	UserID    int64  `json:"user_id"`
	Quantity  int    `json:"quantity"`
}

// OrderStatusChangedEvent is published on a staff status override.
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	OrderCode string `json:"order_code"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}
