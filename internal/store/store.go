package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"booking-service/internal/domain"
	"booking-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// pqLockNotAvailable is the Postgres error code surfaced when lock_timeout
// expires while waiting on a row lock.
const pqLockNotAvailable = "55P03"

type Store struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewStore creates a new database store
func NewStore(databaseURL string, lockTimeout time.Duration) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, lockTimeout: lockTimeout}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetSchedule retrieves a schedule by ID
func (s *Store) GetSchedule(ctx context.Context, id int64) (*models.Schedule, error) {
	var sched models.Schedule
	err := s.db.GetContext(ctx, &sched, "SELECT * FROM schedules WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundError{Resource: "schedule", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

// GetBus retrieves a bus by ID
func (s *Store) GetBus(ctx context.Context, id int64) (*models.Bus, error) {
	var bus models.Bus
	err := s.db.GetContext(ctx, &bus, "SELECT * FROM buses WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundError{Resource: "bus", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &bus, nil
}

// GetTerminal retrieves a terminal by ID
func (s *Store) GetTerminal(ctx context.Context, id int64) (*models.Terminal, error) {
	var term models.Terminal
	err := s.db.GetContext(ctx, &term, "SELECT * FROM terminals WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundError{Resource: "terminal", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &term, nil
}

// CountActiveSeats counts seats held by pending or success orders on a
// schedule. Outside a booking transaction this is an advisory read only.
func (s *Store) CountActiveSeats(ctx context.Context, scheduleID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, countActiveSeatsQuery,
		scheduleID, models.OrderStatusPending, models.OrderStatusSuccess)
	return count, err
}

const countActiveSeatsQuery = `
	SELECT COUNT(*)
	FROM order_seats s
	JOIN orders o ON o.id = s.order_id
	WHERE s.schedule_id = $1 AND o.status IN ($2, $3)`

// BookingParams is the input to CreateOrder, already validated by the
// coordinator.
type BookingParams struct {
	ScheduleID    int64
	UserID        int64
	Passengers    []models.PassengerInput
	PaymentMethod string
	PaymentProof  string
}

// CreateOrder runs the admission check and the order/seat writes in one
// transaction. The schedule row and its bus row are locked FOR UPDATE, the
// operational state and the active seat count are re-read under that lock,
// and the per-schedule code sequences are bumped while it is held. Every
// failure path rolls back with no rows written.
func (s *Store) CreateOrder(ctx context.Context, p BookingParams) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, err
		}
	}

	var sched models.Schedule
	err = tx.GetContext(ctx, &sched, "SELECT * FROM schedules WHERE id = $1 FOR UPDATE", p.ScheduleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundError{Resource: "schedule", ID: p.ScheduleID}
	}
	if err != nil {
		return nil, asContention(err)
	}

	var bus models.Bus
	if err := tx.GetContext(ctx, &bus, "SELECT * FROM buses WHERE id = $1 FOR UPDATE", sched.BusID); err != nil {
		return nil, asContention(err)
	}

	var departure, arrival models.Terminal
	if err := tx.GetContext(ctx, &departure, "SELECT * FROM terminals WHERE id = $1", sched.DepartureID); err != nil {
		return nil, err
	}
	if err := tx.GetContext(ctx, &arrival, "SELECT * FROM terminals WHERE id = $1", sched.ArrivalID); err != nil {
		return nil, err
	}

	// Fresh re-check under the lock; the pre-lock check may be stale.
	if reasons := models.NotBookableReasons(&sched, &bus, &departure, &arrival, time.Now()); len(reasons) > 0 {
		return nil, domain.NotBookableError{Reasons: reasons}
	}

	var booked int
	err = tx.GetContext(ctx, &booked, countActiveSeatsQuery,
		sched.ID, models.OrderStatusPending, models.OrderStatusSuccess)
	if err != nil {
		return nil, err
	}

	available := bus.Capacity - booked
	if available < 0 {
		available = 0
	}
	if len(p.Passengers) > available {
		return nil, domain.InsufficientCapacityError{Requested: len(p.Passengers), Available: available}
	}

	var orderSeq int64
	err = tx.GetContext(ctx, &orderSeq,
		"UPDATE schedules SET order_seq = order_seq + 1, updated_at = NOW() WHERE id = $1 RETURNING order_seq", sched.ID)
	if err != nil {
		return nil, err
	}

	var seatSeq int64
	err = tx.GetContext(ctx, &seatSeq,
		"UPDATE schedules SET seat_seq = seat_seq + $1 WHERE id = $2 RETURNING seat_seq",
		len(p.Passengers), sched.ID)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		Code:              fmt.Sprintf("%s-O-%d", sched.Code, orderSeq),
		UserID:            p.UserID,
		Status:            models.OrderStatusPending,
		BusCode:           bus.Code,
		BusName:           bus.Name,
		ScheduleCode:      sched.Code,
		RouteName:         sched.Name,
		DepartureTerminal: departure.Name,
		DepartureLocation: models.TerminalLocation(&departure),
		DepartureTime:     sched.DepartureTime,
		ArrivalTerminal:   arrival.Name,
		ArrivalLocation:   models.TerminalLocation(&arrival),
		ArrivalTime:       sched.ArrivalTime,
		PaymentMethod:     p.PaymentMethod,
		PaymentProof:      p.PaymentProof,
		Quantity:          len(p.Passengers),
		TotalCost:         int64(len(p.Passengers)) * sched.Price,
	}

	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (code, user_id, status, bus_code, bus_name, schedule_code, route_name,
			departure_terminal, departure_location, departure_time,
			arrival_terminal, arrival_location, arrival_time,
			payment_method, payment_proof, quantity, total_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`,
		order.Code, order.UserID, order.Status, order.BusCode, order.BusName,
		order.ScheduleCode, order.RouteName,
		order.DepartureTerminal, order.DepartureLocation, order.DepartureTime,
		order.ArrivalTerminal, order.ArrivalLocation, order.ArrivalTime,
		order.PaymentMethod, order.PaymentProof, order.Quantity, order.TotalCost)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	firstSeatSeq := seatSeq - int64(len(p.Passengers)) + 1
	order.Seats = make([]models.Seat, 0, len(p.Passengers))
	for i, passenger := range p.Passengers {
		seat := models.Seat{
			Code:       fmt.Sprintf("%s-S-%d", sched.Code, firstSeatSeq+int64(i)),
			OrderID:    order.ID,
			ScheduleID: sched.ID,
			Name:       passenger.Name,
			Age:        passenger.Age,
			Title:      passenger.Title,
			Cost:       sched.Price,
		}
		err = tx.GetContext(ctx, &seat.ID, `
			INSERT INTO order_seats (code, order_id, schedule_id, name, age, title, cost)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			seat.Code, seat.OrderID, seat.ScheduleID, seat.Name, seat.Age, seat.Title, seat.Cost)
		if err != nil {
			return nil, fmt.Errorf("failed to insert seat: %w", err)
		}
		order.Seats = append(order.Seats, seat)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

// asContention maps a lock_timeout expiry to the retryable error kind.
func asContention(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqLockNotAvailable {
		return domain.ContentionError{Err: err}
	}
	return err
}
