package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"booking-service/internal/domain"
	"booking-service/internal/models"
	"booking-service/internal/store"
)

// fakeCatalog serves schedules, buses and terminals from maps.
type fakeCatalog struct {
	mu        sync.Mutex
	schedules map[int64]*models.Schedule
	buses     map[int64]*models.Bus
	terminals map[int64]*models.Terminal
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		schedules: make(map[int64]*models.Schedule),
		buses:     make(map[int64]*models.Bus),
		terminals: make(map[int64]*models.Terminal),
	}
}

func (c *fakeCatalog) GetSchedule(ctx context.Context, id int64) (*models.Schedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sched, ok := c.schedules[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "schedule", ID: id}
	}
	cp := *sched
	return &cp, nil
}

func (c *fakeCatalog) GetBus(ctx context.Context, id int64) (*models.Bus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bus, ok := c.buses[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "bus", ID: id}
	}
	cp := *bus
	return &cp, nil
}

func (c *fakeCatalog) GetTerminal(ctx context.Context, id int64) (*models.Terminal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	term, ok := c.terminals[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "terminal", ID: id}
	}
	cp := *term
	return &cp, nil
}

// fakeLedger is an in-memory ledger. A single mutex serializes CreateOrder
// the way the schedule row lock does, so concurrent attempts admit one at a
// time against the same counted state.
type fakeLedger struct {
	mu      sync.Mutex
	catalog *fakeCatalog

	orders map[int64]*models.Order
	seats  map[int64][]models.Seat // by order ID

	nextOrderID int64
	nextSeatID  int64

	// failSeatWrite makes CreateOrder fail after admission but before any
	// state is kept, exercising the all-or-nothing path.
	failSeatWrite bool
}

func newFakeLedger(catalog *fakeCatalog) *fakeLedger {
	return &fakeLedger{
		catalog: catalog,
		orders:  make(map[int64]*models.Order),
		seats:   make(map[int64][]models.Seat),
	}
}

func (l *fakeLedger) CreateOrder(ctx context.Context, p store.BookingParams) (*models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sched, err := l.catalog.GetSchedule(ctx, p.ScheduleID)
	if err != nil {
		return nil, err
	}
	bus, err := l.catalog.GetBus(ctx, sched.BusID)
	if err != nil {
		return nil, err
	}
	departure, err := l.catalog.GetTerminal(ctx, sched.DepartureID)
	if err != nil {
		return nil, err
	}
	arrival, err := l.catalog.GetTerminal(ctx, sched.ArrivalID)
	if err != nil {
		return nil, err
	}

	if reasons := models.NotBookableReasons(sched, bus, departure, arrival, time.Now()); len(reasons) > 0 {
		return nil, domain.NotBookableError{Reasons: reasons}
	}

	available := bus.Capacity - l.countActiveSeatsLocked(p.ScheduleID)
	if available < 0 {
		available = 0
	}
	if len(p.Passengers) > available {
		return nil, domain.InsufficientCapacityError{Requested: len(p.Passengers), Available: available}
	}

	if l.failSeatWrite {
		return nil, errors.New("seat write failed")
	}

	l.catalog.mu.Lock()
	l.catalog.schedules[sched.ID].OrderSeq++
	orderSeq := l.catalog.schedules[sched.ID].OrderSeq
	l.catalog.schedules[sched.ID].SeatSeq += int64(len(p.Passengers))
	seatSeq := l.catalog.schedules[sched.ID].SeatSeq
	l.catalog.mu.Unlock()

	l.nextOrderID++
	order := &models.Order{
		ID:                l.nextOrderID,
		Code:              fmt.Sprintf("%s-O-%d", sched.Code, orderSeq),
		UserID:            p.UserID,
		Status:            models.OrderStatusPending,
		BusCode:           bus.Code,
		BusName:           bus.Name,
		ScheduleCode:      sched.Code,
		RouteName:         sched.Name,
		DepartureTerminal: departure.Name,
		DepartureLocation: models.TerminalLocation(departure),
		DepartureTime:     sched.DepartureTime,
		ArrivalTerminal:   arrival.Name,
		ArrivalLocation:   models.TerminalLocation(arrival),
		ArrivalTime:       sched.ArrivalTime,
		PaymentMethod:     p.PaymentMethod,
		PaymentProof:      p.PaymentProof,
		Quantity:          len(p.Passengers),
		TotalCost:         int64(len(p.Passengers)) * sched.Price,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}

	firstSeatSeq := seatSeq - int64(len(p.Passengers)) + 1
	seats := make([]models.Seat, 0, len(p.Passengers))
	for i, passenger := range p.Passengers {
		l.nextSeatID++
		seats = append(seats, models.Seat{
			ID:         l.nextSeatID,
			Code:       fmt.Sprintf("%s-S-%d", sched.Code, firstSeatSeq+int64(i)),
			OrderID:    order.ID,
			ScheduleID: sched.ID,
			Name:       passenger.Name,
			Age:        passenger.Age,
			Title:      passenger.Title,
			Cost:       sched.Price,
		})
	}

	l.orders[order.ID] = order
	l.seats[order.ID] = seats

	cp := *order
	cp.Seats = append([]models.Seat(nil), seats...)
	return &cp, nil
}

func (l *fakeLedger) countActiveSeatsLocked(scheduleID int64) int {
	count := 0
	for orderID, seats := range l.seats {
		order := l.orders[orderID]
		if order.Status != models.OrderStatusPending && order.Status != models.OrderStatusSuccess {
			continue
		}
		for _, seat := range seats {
			if seat.ScheduleID == scheduleID {
				count++
			}
		}
	}
	return count
}

func (l *fakeLedger) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "order", ID: id}
	}
	cp := *order
	return &cp, nil
}

func (l *fakeLedger) GetSeatsByOrderID(ctx context.Context, orderID int64) ([]models.Seat, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Seat(nil), l.seats[orderID]...), nil
}

func (l *fakeLedger) GetOrderScheduleID(ctx context.Context, orderID int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	seats := l.seats[orderID]
	if len(seats) == 0 {
		return 0, domain.NotFoundError{Resource: "order", ID: orderID}
	}
	return seats[0].ScheduleID, nil
}

func (l *fakeLedger) CountActiveSeats(ctx context.Context, scheduleID int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.countActiveSeatsLocked(scheduleID), nil
}

func (l *fakeLedger) CancelPendingOrder(ctx context.Context, orderID, userID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[orderID]
	if !ok || order.UserID != userID || order.Status != models.OrderStatusPending {
		return false, nil
	}
	order.Status = models.OrderStatusCancelled
	return true, nil
}

func (l *fakeLedger) SetOrderStatus(ctx context.Context, orderID int64, status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[orderID]
	if !ok {
		return domain.NotFoundError{Resource: "order", ID: orderID}
	}
	order.Status = status
	return nil
}

func (l *fakeLedger) SetOrderComment(ctx context.Context, orderID int64, comment string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[orderID]
	if !ok {
		return domain.NotFoundError{Resource: "order", ID: orderID}
	}
	order.Comment = comment
	return nil
}

func (l *fakeLedger) UpdatePendingOrder(ctx context.Context, p store.OrderEditParams) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[p.OrderID]
	if !ok || order.UserID != p.UserID {
		return domain.NotFoundError{Resource: "order", ID: p.OrderID}
	}
	if order.Status != models.OrderStatusPending {
		return domain.AuthorizationError{Msg: fmt.Sprintf("order is %s; only pending orders can be edited", order.Status)}
	}
	seats := l.seats[p.OrderID]
	if len(seats) != len(p.Passengers) {
		return fmt.Errorf("order %d has %d seats, got %d passenger lines", p.OrderID, len(seats), len(p.Passengers))
	}
	for i := range seats {
		seats[i].Title = p.Passengers[i].Title
		seats[i].Name = p.Passengers[i].Name
		seats[i].Age = p.Passengers[i].Age
	}
	order.PaymentMethod = p.PaymentMethod
	if p.PaymentProof != "" {
		order.PaymentProof = p.PaymentProof
	}
	return nil
}

// fakeEvents records every published event.
type fakeEvents struct {
	mu            sync.Mutex
	created       []*models.OrderCreatedEvent
	cancelled     []*models.OrderCancelledEvent
	statusChanged []*models.OrderStatusChangedEvent
}

func (e *fakeEvents) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created = append(e.created, event)
	return nil
}

func (e *fakeEvents) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelled = append(e.cancelled, event)
	return nil
}

func (e *fakeEvents) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statusChanged = append(e.statusChanged, event)
	return nil
}

// fakeCache is an in-memory availability cache with call counters.
type fakeCache struct {
	mu            sync.Mutex
	values        map[int64]int
	sets          int
	invalidations int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[int64]int)}
}

func (c *fakeCache) GetAvailability(ctx context.Context, scheduleID int64) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[scheduleID]
	return v, ok, nil
}

func (c *fakeCache) SetAvailability(ctx context.Context, scheduleID int64, seats int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[scheduleID] = seats
	c.sets++
	return nil
}

func (c *fakeCache) InvalidateAvailability(ctx context.Context, scheduleID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, scheduleID)
	c.invalidations++
	return nil
}

// newTestWorld wires a bookable schedule 1 on bus 1 (capacity as given)
// between terminals 1 and 2, departing tomorrow.
func newTestWorld(capacity int) (*fakeCatalog, *fakeLedger) {
	catalog := newFakeCatalog()
	catalog.schedules[1] = &models.Schedule{
		ID:            1,
		Code:          "SCH-001",
		BusID:         1,
		Name:          "Jakarta - Bandung",
		Status:        models.OpStatusOperational,
		Price:         150000,
		DepartureID:   1,
		DepartureTime: time.Now().Add(24 * time.Hour),
		ArrivalID:     2,
		ArrivalTime:   time.Now().Add(27 * time.Hour),
	}
	catalog.buses[1] = &models.Bus{
		ID:       1,
		Code:     "BUS-001",
		Name:     "Pandawa 87",
		Status:   models.OpStatusOperational,
		Capacity: capacity,
	}
	catalog.terminals[1] = &models.Terminal{
		ID: 1, Code: "TRM-001", Status: models.OpStatusOperational,
		Name: "Kampung Rambutan", Region: "Jakarta Timur", Province: "DKI Jakarta",
	}
	catalog.terminals[2] = &models.Terminal{
		ID: 2, Code: "TRM-002", Status: models.OpStatusOperational,
		Name: "Leuwipanjang", Region: "Bandung", Province: "Jawa Barat",
	}
	return catalog, newFakeLedger(catalog)
}

func bookingParamsFor(scheduleID, userID int64, quantity int) store.BookingParams {
	return store.BookingParams{
		ScheduleID:    scheduleID,
		UserID:        userID,
		Passengers:    passengers(quantity),
		PaymentMethod: models.PaymentBankTransfer,
		PaymentProof:  "proof",
	}
}

func passengers(n int) []models.PassengerInput {
	out := make([]models.PassengerInput, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.PassengerInput{
			Title: models.TitleMr,
			Name:  fmt.Sprintf("Passenger %d", i+1),
			Age:   30,
		})
	}
	return out
}
