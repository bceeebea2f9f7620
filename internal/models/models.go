package models

import "time"

// Schedule represents a bus run between two terminals. The order_seq and
// seat_seq counters back code generation and are only ever bumped while the
// schedule row is locked for a booking.
type Schedule struct {
	ID            int64     `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	BusID         int64     `db:"bus_id" json:"bus_id"`
	Name          string    `db:"name" json:"name"`
	Status        string    `db:"status" json:"status"`
	Price         int64     `db:"price" json:"price"`
	DepartureID   int64     `db:"departure_id" json:"departure_id"`
	DepartureTime time.Time `db:"departure_time" json:"departure_time"`
	ArrivalID     int64     `db:"arrival_id" json:"arrival_id"`
	ArrivalTime   time.Time `db:"arrival_time" json:"arrival_time"`
	OrderSeq      int64     `db:"order_seq" json:"-"`
	SeatSeq       int64     `db:"seat_seq" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Bus carries the capacity ceiling for every schedule it runs.
type Bus struct {
	ID          int64     `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	PlateNumber string    `db:"plate_number" json:"plate_number"`
	Status      string    `db:"status" json:"status"`
	Capacity    int       `db:"capacity" json:"capacity"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Terminal is a departure or arrival location.
type Terminal struct {
	ID        int64     `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Status    string    `db:"status" json:"status"`
	Name      string    `db:"name" json:"name"`
	Region    string    `db:"region" json:"region"`
	Province  string    `db:"province" json:"province"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order is the reservation record. Route, bus and terminal details are
// snapshotted at booking time so invoices stay stable when the catalog
// changes later. Status is the only field mutated after creation, except
// for the owner-editable payment metadata while still pending.
type Order struct {
	ID                int64     `db:"id" json:"id"`
	Code              string    `db:"code" json:"code"`
	UserID            int64     `db:"user_id" json:"user_id"`
	Status            string    `db:"status" json:"status"`
	BusCode           string    `db:"bus_code" json:"bus_code"`
	BusName           string    `db:"bus_name" json:"bus_name"`
	ScheduleCode      string    `db:"schedule_code" json:"schedule_code"`
	RouteName         string    `db:"route_name" json:"route_name"`
	DepartureTerminal string    `db:"departure_terminal" json:"departure_terminal"`
	DepartureLocation string    `db:"departure_location" json:"departure_location"`
	DepartureTime     time.Time `db:"departure_time" json:"departure_time"`
	ArrivalTerminal   string    `db:"arrival_terminal" json:"arrival_terminal"`
	ArrivalLocation   string    `db:"arrival_location" json:"arrival_location"`
	ArrivalTime       time.Time `db:"arrival_time" json:"arrival_time"`
	PaymentMethod     string    `db:"payment_method" json:"payment_method"`
	PaymentProof      string    `db:"payment_proof" json:"payment_proof,omitempty"`
	Quantity          int       `db:"quantity" json:"quantity"`
	TotalCost         int64     `db:"total_cost" json:"total_cost"`
	Comment           string    `db:"comment" json:"comment,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`

	Seats []Seat `db:"-" json:"seats,omitempty"`
}

// Seat is one booked seat line of an order, with the per-seat cost captured
// at booking time.
type Seat struct {
	ID         int64     `db:"id" json:"id"`
	Code       string    `db:"code" json:"code"`
	OrderID    int64     `db:"order_id" json:"order_id"`
	ScheduleID int64     `db:"schedule_id" json:"schedule_id"`
	Name       string    `db:"name" json:"name"`
	Age        int       `db:"age" json:"age"`
	Title      string    `db:"title" json:"title"`
	Cost       int64     `db:"cost" json:"cost"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// PassengerInput carries one passenger line of a booking or edit request.
type PassengerInput struct {
	Title string `json:"title"`
	Name  string `json:"name"`
	Age   int    `json:"age"`
}

// Order statuses. pending and success consume capacity; cancelled and
// failed do not.
const (
	OrderStatusPending   = "pending"
	OrderStatusSuccess   = "success"
	OrderStatusCancelled = "cancelled"
	OrderStatusFailed    = "failed"
)

// Operating statuses for schedules, buses and terminals. Anything other
// than operational blocks booking.
const (
	OpStatusUnknown     = "unknown"
	OpStatusOperational = "operational"
	OpStatusMaintenance = "maintenance"
	OpStatusUnavailable = "unavailable"
)

// Payment methods. A claimed method only; no verification happens here.
const (
	PaymentBankTransfer = "bank_transfer"
	PaymentCreditCard   = "credit_card"
	PaymentEWallet      = "e_wallet"
)

// Passenger titles.
const (
	TitleMx  = "Mx"
	TitleMs  = "Ms"
	TitleMrs = "Mrs"
	TitleMr  = "Mr"
)

// ActiveOrderStatuses are the statuses that consume seat capacity.
var ActiveOrderStatuses = []string{OrderStatusPending, OrderStatusSuccess}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusSuccess, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// ValidPaymentMethod reports whether m is a known payment method.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentBankTransfer, PaymentCreditCard, PaymentEWallet:
		return true
	}
	return false
}

// ValidTitle reports whether t is a known passenger title.
func ValidTitle(t string) bool {
	switch t {
	case TitleMx, TitleMs, TitleMrs, TitleMr:
		return true
	}
	return false
}

// NotBookableReasons returns every operational precondition the given
// schedule fails at the given instant, in a stable order. Empty means
// bookable.
func NotBookableReasons(sched *Schedule, bus *Bus, departure, arrival *Terminal, now time.Time) []string {
	var reasons []string

	if !sched.DepartureTime.After(now) {
		reasons = append(reasons, "this route has already departed")
	}
	if sched.Status != OpStatusOperational {
		reasons = append(reasons, "this route is currently not operational")
	}
	if bus.Status != OpStatusOperational {
		reasons = append(reasons, "the bus for this route is currently not operational")
	}
	if departure.Status != OpStatusOperational {
		reasons = append(reasons, "the departure terminal is currently not operational")
	}
	if arrival.Status != OpStatusOperational {
		reasons = append(reasons, "the arrival terminal is currently not operational")
	}

	return reasons
}

// TerminalLocation renders the snapshot location string stored on orders.
func TerminalLocation(t *Terminal) string {
	return t.Region + ", " + t.Province
}
