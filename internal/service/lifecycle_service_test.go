package service

import (
	"context"
	"strings"
	"testing"

	"booking-service/internal/domain"
	"booking-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerCancelPendingOrder(t *testing.T) {
	_, ledger := newTestWorld(10)
	events := &fakeEvents{}
	cache := newFakeCache()
	cache.values[1] = 8
	svc := NewLifecycleService(ledger, cache, events)
	ctx := context.Background()

	created, err := ledger.CreateOrder(ctx, bookingParamsFor(1, 7, 2))
	require.NoError(t, err)

	order, err := svc.OwnerCancel(ctx, created.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)

	// Cancelled seats stop counting immediately.
	active, err := ledger.CountActiveSeats(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, active)

	require.Len(t, events.cancelled, 1)
	assert.Equal(t, created.Code, events.cancelled[0].OrderCode)
	assert.Equal(t, 1, cache.invalidations)
}

func TestOwnerCancelRejectsOtherUsersOrder(t *testing.T) {
	_, ledger := newTestWorld(10)
	svc := NewLifecycleService(ledger, nil, nil)
	ctx := context.Background()

	created, err := ledger.CreateOrder(ctx, bookingParamsFor(1, 7, 1))
	require.NoError(t, err)

	_, err = svc.OwnerCancel(ctx, created.ID, 8)

	var authErr domain.AuthorizationError
	require.ErrorAs(t, err, &authErr)

	// Untouched.
	order, err := ledger.GetOrderByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
}

func TestOwnerCancelRejectsNonPendingOrder(t *testing.T) {
	_, ledger := newTestWorld(10)
	svc := NewLifecycleService(ledger, nil, nil)
	ctx := context.Background()

	created, err := ledger.CreateOrder(ctx, bookingParamsFor(1, 7, 1))
	require.NoError(t, err)
	require.NoError(t, ledger.SetOrderStatus(ctx, created.ID, models.OrderStatusSuccess))

	_, err = svc.OwnerCancel(ctx, created.ID, 7)

	var authErr domain.AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestOwnerCancelUnknownOrder(t *testing.T) {
	_, ledger := newTestWorld(10)
	svc := NewLifecycleService(ledger, nil, nil)

	_, err := svc.OwnerCancel(context.Background(), 404, 7)

	var notFoundErr domain.NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestStaffSetStatus(t *testing.T) {
	_, ledger := newTestWorld(10)
	events := &fakeEvents{}
	svc := NewLifecycleService(ledger, nil, events)
	ctx := context.Background()

	created, err := ledger.CreateOrder(ctx, bookingParamsFor(1, 7, 2))
	require.NoError(t, err)

	order, err := svc.StaffSetStatus(ctx, created.ID, models.OrderStatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusSuccess, order.Status)

	require.Len(t, events.statusChanged, 1)
	assert.Equal(t, models.OrderStatusPending, events.statusChanged[0].OldStatus)
	assert.Equal(t, models.OrderStatusSuccess, events.statusChanged[0].NewStatus)

	// Staff can move any status to any status, including reviving a
	// cancelled order.
	_, err = svc.StaffSetStatus(ctx, created.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	order, err = svc.StaffSetStatus(ctx, created.ID, models.OrderStatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
}

func TestStaffSetStatusRejectsUnknownStatus(t *testing.T) {
	_, ledger := newTestWorld(10)
	svc := NewLifecycleService(ledger, nil, nil)

	_, err := svc.StaffSetStatus(context.Background(), 1, "refunded")

	var validationErr domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "status", validationErr.Fields[0].Field)
}

func TestStaffSetStatusFreesCapacity(t *testing.T) {
	catalog, ledger := newTestWorld(4)
	lifecycle := NewLifecycleService(ledger, nil, nil)
	booking := NewBookingService(catalog, ledger, nil, nil, 4)
	ctx := context.Background()

	created, err := ledger.CreateOrder(ctx, bookingParamsFor(1, 7, 4))
	require.NoError(t, err)

	// Full bus.
	_, err = booking.AttemptBooking(ctx, &BookingRequest{
		ScheduleID: 1, UserID: 8, Passengers: passengers(1),
		PaymentMethod: models.PaymentBankTransfer, PaymentProofRef: "p",
	})
	var capacityErr domain.InsufficientCapacityError
	require.ErrorAs(t, err, &capacityErr)

	_, err = lifecycle.StaffSetStatus(ctx, created.ID, models.OrderStatusFailed)
	require.NoError(t, err)

	// Failed orders release their seats.
	_, err = booking.AttemptBooking(ctx, &BookingRequest{
		ScheduleID: 1, UserID: 8, Passengers: passengers(4),
		PaymentMethod: models.PaymentBankTransfer, PaymentProofRef: "p",
	})
	assert.NoError(t, err)
}

func TestStaffEditComment(t *testing.T) {
	_, ledger := newTestWorld(10)
	svc := NewLifecycleService(ledger, nil, nil)
	ctx := context.Background()

	created, err := ledger.CreateOrder(ctx, bookingParamsFor(1, 7, 1))
	require.NoError(t, err)

	require.NoError(t, svc.StaffEditComment(ctx, created.ID, "verified transfer ref 8891"))
	order, err := ledger.GetOrderByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "verified transfer ref 8891", order.Comment)

	// Clearing is allowed.
	require.NoError(t, svc.StaffEditComment(ctx, created.ID, ""))
	order, err = ledger.GetOrderByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, order.Comment)
}

func TestStaffEditCommentTooLong(t *testing.T) {
	_, ledger := newTestWorld(10)
	svc := NewLifecycleService(ledger, nil, nil)

	err := svc.StaffEditComment(context.Background(), 1, strings.Repeat("x", 501))

	var validationErr domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "comment", validationErr.Fields[0].Field)
}

func TestOwnerEditPendingOrder(t *testing.T) {
	_, ledger := newTestWorld(10)
	svc := NewLifecycleService(ledger, nil, nil)
	ctx := context.Background()

	created, err := ledger.CreateOrder(ctx, bookingParamsFor(1, 7, 2))
	require.NoError(t, err)

	order, err := svc.OwnerEditPendingOrder(ctx, &OrderEditRequest{
		OrderID: created.ID,
		UserID:  7,
		Passengers: []models.PassengerInput{
			{Title: models.TitleMs, Name: "Dewi Lestari", Age: 28},
			{Title: models.TitleMr, Name: "Andi Lestari", Age: 30},
		},
		PaymentMethod:   models.PaymentEWallet,
		PaymentProofRef: "proof-v2",
	})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentEWallet, order.PaymentMethod)
	assert.Equal(t, "proof-v2", order.PaymentProof)
	require.Len(t, order.Seats, 2)
	assert.Equal(t, "Dewi Lestari", order.Seats[0].Name)
	assert.Equal(t, models.TitleMs, order.Seats[0].Title)

	// Quantity and seat codes are untouched by an edit.
	assert.Equal(t, 2, order.Quantity)
	assert.Equal(t, created.Seats[0].Code, order.Seats[0].Code)
}

func TestOwnerEditKeepsProofWhenOmitted(t *testing.T) {
	_, ledger := newTestWorld(10)
	svc := NewLifecycleService(ledger, nil, nil)
	ctx := context.Background()

	created, err := ledger.CreateOrder(ctx, bookingParamsFor(1, 7, 1))
	require.NoError(t, err)

	order, err := svc.OwnerEditPendingOrder(ctx, &OrderEditRequest{
		OrderID:       created.ID,
		UserID:        7,
		Passengers:    passengers(1),
		PaymentMethod: models.PaymentCreditCard,
	})
	require.NoError(t, err)
	assert.Equal(t, "proof", order.PaymentProof)
}

func TestOwnerEditRejectsQuantityChange(t *testing.T) {
	_, ledger := newTestWorld(10)
	svc := NewLifecycleService(ledger, nil, nil)
	ctx := context.Background()

	created, err := ledger.CreateOrder(ctx, bookingParamsFor(1, 7, 2))
	require.NoError(t, err)

	_, err = svc.OwnerEditPendingOrder(ctx, &OrderEditRequest{
		OrderID:         created.ID,
		UserID:          7,
		Passengers:      passengers(3),
		PaymentMethod:   models.PaymentBankTransfer,
		PaymentProofRef: "p",
	})

	var validationErr domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "passengers", validationErr.Fields[0].Field)
}

func TestOwnerEditRejectsNonPendingOrder(t *testing.T) {
	_, ledger := newTestWorld(10)
	svc := NewLifecycleService(ledger, nil, nil)
	ctx := context.Background()

	created, err := ledger.CreateOrder(ctx, bookingParamsFor(1, 7, 1))
	require.NoError(t, err)
	require.NoError(t, ledger.SetOrderStatus(ctx, created.ID, models.OrderStatusSuccess))

	_, err = svc.OwnerEditPendingOrder(ctx, &OrderEditRequest{
		OrderID:         created.ID,
		UserID:          7,
		Passengers:      passengers(1),
		PaymentMethod:   models.PaymentBankTransfer,
		PaymentProofRef: "p",
	})

	var authErr domain.AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestOwnerEditRejectsOtherUsersOrder(t *testing.T) {
	_, ledger := newTestWorld(10)
	svc := NewLifecycleService(ledger, nil, nil)
	ctx := context.Background()

	created, err := ledger.CreateOrder(ctx, bookingParamsFor(1, 7, 1))
	require.NoError(t, err)

	_, err = svc.OwnerEditPendingOrder(ctx, &OrderEditRequest{
		OrderID:         created.ID,
		UserID:          8,
		Passengers:      passengers(1),
		PaymentMethod:   models.PaymentBankTransfer,
		PaymentProofRef: "p",
	})

	var authErr domain.AuthorizationError
	require.ErrorAs(t, err, &authErr)
}
