package worker

import (
	"context"

	"booking-service/internal/broker"
	"booking-service/internal/models"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

// EventLog tracks which events have already been handled, so redelivered
// messages produce exactly one notification.
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// NotificationWorker consumes booking lifecycle events and emits customer
// notifications. Notifications here are structured log lines; a delivery
// channel would hang off the same handlers.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	eventLog     EventLog
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker.
func NewNotificationWorker(consumer *broker.Consumer, eventLog EventLog) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		eventLog: eventLog,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(w.handleOrderCreated)
	eventHandler.OnOrderCancelled(w.handleOrderCancelled)
	eventHandler.OnOrderStatusChanged(w.handleOrderStatusChanged)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	done, err := w.alreadyProcessed(ctx, event.EventID)
	if err != nil || done {
		return err
	}

	w.logger.Info("notification: booking confirmed",
		zap.String("order_code", event.OrderCode),
		zap.Int64("user_id", event.UserID),
		zap.Int("quantity", event.Quantity),
		zap.Int64("total_cost", event.TotalCost))

	return w.eventLog.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

func (w *NotificationWorker) handleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	done, err := w.alreadyProcessed(ctx, event.EventID)
	if err != nil || done {
		return err
	}

	w.logger.Info("notification: booking cancelled",
		zap.String("order_code", event.OrderCode),
		zap.Int64("user_id", event.UserID),
		zap.Int("quantity", event.Quantity))

	return w.eventLog.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

func (w *NotificationWorker) handleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	done, err := w.alreadyProcessed(ctx, event.EventID)
	if err != nil || done {
		return err
	}

	w.logger.Info("notification: booking status changed",
		zap.String("order_code", event.OrderCode),
		zap.String("old_status", event.OldStatus),
		zap.String("new_status", event.NewStatus))

	return w.eventLog.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

func (w *NotificationWorker) alreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	processed, err := w.eventLog.IsEventProcessed(ctx, eventID)
	if err != nil {
		w.logger.Error("failed to check event log", zap.String("event_id", eventID), zap.Error(err))
		return false, err
	}
	if processed {
		w.logger.Debug("event already processed, skipping", zap.String("event_id", eventID))
		return true, nil
	}
	return false, nil
}
