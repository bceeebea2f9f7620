package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"booking-service/internal/domain"
	"booking-service/internal/models"
)

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundError{Resource: "order", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetSeatsByOrderID retrieves all seats for an order
func (s *Store) GetSeatsByOrderID(ctx context.Context, orderID int64) ([]models.Seat, error) {
	var seats []models.Seat
	err := s.db.SelectContext(ctx, &seats,
		"SELECT * FROM order_seats WHERE order_id = $1 ORDER BY id", orderID)
	return seats, err
}

// GetOrderScheduleID resolves the schedule an order was booked against.
func (s *Store) GetOrderScheduleID(ctx context.Context, orderID int64) (int64, error) {
	var scheduleID int64
	err := s.db.GetContext(ctx, &scheduleID,
		"SELECT schedule_id FROM order_seats WHERE order_id = $1 LIMIT 1", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NotFoundError{Resource: "order", ID: orderID}
	}
	return scheduleID, err
}

// CancelPendingOrder flips a pending order to cancelled, conditionally on
// owner and current status so a concurrent staff edit cannot be clobbered.
// Returns false when no row matched.
func (s *Store) CancelPendingOrder(ctx context.Context, orderID, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3 AND status = $4",
		models.OrderStatusCancelled, orderID, userID, models.OrderStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// SetOrderStatus updates order status unconditionally (staff override).
func (s *Store) SetOrderStatus(ctx context.Context, orderID int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.NotFoundError{Resource: "order", ID: orderID}
	}
	return nil
}

// SetOrderComment updates the staff annotation on an order.
func (s *Store) SetOrderComment(ctx context.Context, orderID int64, comment string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET comment = $1, updated_at = NOW() WHERE id = $2",
		comment, orderID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.NotFoundError{Resource: "order", ID: orderID}
	}
	return nil
}

// OrderEditParams is the input to UpdatePendingOrder.
type OrderEditParams struct {
	OrderID       int64
	UserID        int64
	Passengers    []models.PassengerInput
	PaymentMethod string
	PaymentProof  string // empty keeps the existing proof
}

// UpdatePendingOrder replaces passenger details and payment metadata of a
// pending order in one transaction. Quantity never changes; capacity was
// already reserved at creation, so no admission re-check happens here.
func (s *Store) UpdatePendingOrder(ctx context.Context, p OrderEditParams) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	err = tx.GetContext(ctx, &status,
		"SELECT status FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE",
		p.OrderID, p.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Resource: "order", ID: p.OrderID}
	}
	if err != nil {
		return err
	}
	if status != models.OrderStatusPending {
		return domain.AuthorizationError{Msg: fmt.Sprintf("order is %s; only pending orders can be edited", status)}
	}

	var seatIDs []int64
	err = tx.SelectContext(ctx, &seatIDs,
		"SELECT id FROM order_seats WHERE order_id = $1 ORDER BY id", p.OrderID)
	if err != nil {
		return err
	}
	if len(seatIDs) != len(p.Passengers) {
		return fmt.Errorf("order %d has %d seats, got %d passenger lines", p.OrderID, len(seatIDs), len(p.Passengers))
	}

	for i, passenger := range p.Passengers {
		_, err = tx.ExecContext(ctx,
			"UPDATE order_seats SET title = $1, name = $2, age = $3, updated_at = NOW() WHERE id = $4",
			passenger.Title, passenger.Name, passenger.Age, seatIDs[i])
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET payment_method = $1,
			payment_proof = CASE WHEN $2 = '' THEN payment_proof ELSE $2 END,
			updated_at = NOW()
		WHERE id = $3`,
		p.PaymentMethod, p.PaymentProof, p.OrderID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// OrderFilter narrows and orders a ListOrders query. Zero values mean "no
// filter". SortBy is checked against a whitelist.
type OrderFilter struct {
	UserID        int64
	Status        string
	PaymentMethod string
	Code          string
	Departure     string
	Arrival       string
	After         *time.Time
	Before        *time.Time
	SortBy        string
	SortDir       string
	Page          int
	PerPage       int
}

var orderSortColumns = map[string]bool{
	"created_at":     true,
	"code":           true,
	"status":         true,
	"quantity":       true,
	"total_cost":     true,
	"departure_time": true,
}

// ListOrders returns a page of orders plus the unpaged total.
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int, error) {
	var where []string
	var args []interface{}

	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID > 0 {
		add("user_id = $%d", f.UserID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.PaymentMethod != "" {
		add("payment_method = $%d", f.PaymentMethod)
	}
	if f.Code != "" {
		add("code ILIKE $%d", "%"+f.Code+"%")
	}
	if f.Departure != "" {
		args = append(args, "%"+f.Departure+"%")
		where = append(where, fmt.Sprintf("(departure_terminal ILIKE $%d OR departure_location ILIKE $%d)", len(args), len(args)))
	}
	if f.Arrival != "" {
		args = append(args, "%"+f.Arrival+"%")
		where = append(where, fmt.Sprintf("(arrival_terminal ILIKE $%d OR arrival_location ILIKE $%d)", len(args), len(args)))
	}
	if f.After != nil {
		add("created_at >= $%d", *f.After)
	}
	if f.Before != nil {
		add("created_at <= $%d", *f.Before)
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM orders"+whereSQL, args...); err != nil {
		return nil, 0, err
	}

	sortBy := f.SortBy
	if !orderSortColumns[sortBy] {
		sortBy = "created_at"
	}
	sortDir := "DESC"
	if strings.EqualFold(f.SortDir, "asc") {
		sortDir = "ASC"
	}

	perPage := f.PerPage
	if perPage < 1 {
		perPage = 10
	}
	page := f.Page
	if page < 1 {
		page = 1
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf("SELECT * FROM orders%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		whereSQL, sortBy, sortDir, len(args)-1, len(args))

	var orders []models.Order
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UserOrderStats summarizes a user's order history for the dashboard.
type UserOrderStats struct {
	Orders     int   `db:"orders" json:"orders"`
	Seats      int   `db:"seats" json:"seats"`
	TotalSpent int64 `db:"total_spent" json:"total_spent"`
}

// GetUserOrderStats totals a user's orders, booked seats, and spend on
// successful orders.
func (s *Store) GetUserOrderStats(ctx context.Context, userID int64) (*UserOrderStats, error) {
	var stats UserOrderStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT COUNT(*) AS orders,
			COALESCE(SUM(quantity), 0) AS seats,
			COALESCE(SUM(CASE WHEN status = $1 THEN total_cost ELSE 0 END), 0) AS total_spent
		FROM orders WHERE user_id = $2`,
		models.OrderStatusSuccess, userID)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
