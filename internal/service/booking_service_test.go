package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/domain/valueobject"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
)

func TestBookingService_CreateBooking(t *testing.T) {
	bookings := new(mockBookingStore)
	catalog := new(mockCatalogStore)
	svc := NewBookingService(bookings, catalog, new(mockEscrowManager), nil)
	ctx := context.Background()

	buyerID, sellerID, pkgID := uuid.New(), uuid.New(), uuid.New()
	scheduledAt := time.Now().Add(48 * time.Hour)

	catalog.On("GetPackage", ctx, pkgID).Return(&models.ServicePackage{
		ID: pkgID, SellerID: sellerID, Price: d("300.00"), DurationMinutes: 60,
	}, nil)
	bookings.On("Create", ctx, mock.AnythingOfType("*models.Booking")).Return(nil)

	booking, err := svc.CreateBooking(ctx, buyerID, CreateBookingParams{PackageID: pkgID, ScheduledAt: scheduledAt})
	require.NoError(t, err)

	assert.Equal(t, sellerID, booking.SellerID)
	assert.True(t, booking.GrossAmount.Equal(d("300.00")))
	assert.Equal(t, string(valueobject.BookingStatusCreated), booking.Status)
	assert.NotEmpty(t, booking.PaymentRef)
}

func TestBookingService_CreateBooking_PastTime(t *testing.T) {
	svc := NewBookingService(new(mockBookingStore), new(mockCatalogStore), new(mockEscrowManager), nil)

	_, err := svc.CreateBooking(context.Background(), uuid.New(), CreateBookingParams{
		PackageID:   uuid.New(),
		ScheduledAt: time.Now().Add(-time.Hour),
	})
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))
}

func testBooking(status valueobject.BookingStatus) *models.Booking {
	return &models.Booking{
		ID:          uuid.New(),
		BuyerID:     uuid.New(),
		SellerID:    uuid.New(),
		GrossAmount: d("300.00"),
		Status:      string(status),
	}
}

func TestBookingService_RequestTransition_CompletedReleasesEscrow(t *testing.T) {
	bookings := new(mockBookingStore)
	escrow := new(mockEscrowManager)
	svc := NewBookingService(bookings, new(mockCatalogStore), escrow, nil)
	ctx := context.Background()

	booking := testBooking(valueobject.BookingStatusInProgress)
	tx := &models.Transaction{ID: uuid.New(), Amount: d("300.00")}

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	bookings.On("UpdateStatus", ctx, booking.ID, valueobject.BookingStatusInProgress, valueobject.BookingStatusCompleted).Return(nil)
	bookings.On("AddStatusChange", ctx, mock.AnythingOfType("*models.StatusChange")).Return(nil)
	escrow.On("GetByFulfillable", ctx, (*uuid.UUID)(nil), &booking.ID).Return(tx, nil)
	escrow.On("Release", ctx, tx.ID).Return(tx, nil)

	updated, err := svc.RequestTransition(ctx, booking.ID, valueobject.BookingStatusCompleted, booking.BuyerID, valueobject.RoleBuyer)
	require.NoError(t, err)
	assert.Equal(t, string(valueobject.BookingStatusCompleted), updated.Status)
	escrow.AssertExpectations(t)
}

func TestBookingService_RequestTransition_SellerCannotComplete(t *testing.T) {
	bookings := new(mockBookingStore)
	svc := NewBookingService(bookings, new(mockCatalogStore), new(mockEscrowManager), nil)
	ctx := context.Background()

	booking := testBooking(valueobject.BookingStatusInProgress)
	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)

	_, err := svc.RequestTransition(ctx, booking.ID, valueobject.BookingStatusCompleted, booking.SellerID, valueobject.RoleSeller)
	assert.True(t, apperror.IsForbidden(err))
}

func TestBookingService_RequestTransition_CancelledRepeatRefundsEscrow(t *testing.T) {
	bookings := new(mockBookingStore)
	escrow := new(mockEscrowManager)
	svc := NewBookingService(bookings, new(mockCatalogStore), escrow, nil)
	ctx := context.Background()

	// Отмена записана, но возврат денег при прошлой попытке оборвался.
	booking := testBooking(valueobject.BookingStatusCancelled)
	tx := &models.Transaction{ID: uuid.New(), Amount: d("300.00"), Status: string(valueobject.TransactionStatusEscrow)}

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	escrow.On("GetByFulfillable", ctx, (*uuid.UUID)(nil), &booking.ID).Return(tx, nil)
	escrow.On("Refund", ctx, tx.ID, tx.Amount).Return(tx, nil)

	_, err := svc.RequestTransition(ctx, booking.ID, valueobject.BookingStatusCancelled, booking.BuyerID, valueobject.RoleBuyer)
	require.NoError(t, err)
	bookings.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	escrow.AssertExpectations(t)
}

func TestBookingService_RequestTransition_CancelledRefundsEscrow(t *testing.T) {
	bookings := new(mockBookingStore)
	escrow := new(mockEscrowManager)
	svc := NewBookingService(bookings, new(mockCatalogStore), escrow, nil)
	ctx := context.Background()

	booking := testBooking(valueobject.BookingStatusConfirmed)
	tx := &models.Transaction{ID: uuid.New(), Amount: d("300.00")}

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	bookings.On("UpdateStatus", ctx, booking.ID, valueobject.BookingStatusConfirmed, valueobject.BookingStatusCancelled).Return(nil)
	bookings.On("AddStatusChange", ctx, mock.AnythingOfType("*models.StatusChange")).Return(nil)
	escrow.On("GetByFulfillable", ctx, (*uuid.UUID)(nil), &booking.ID).Return(tx, nil)
	escrow.On("Refund", ctx, tx.ID, tx.Amount).Return(tx, nil)

	_, err := svc.RequestTransition(ctx, booking.ID, valueobject.BookingStatusCancelled, booking.BuyerID, valueobject.RoleBuyer)
	require.NoError(t, err)
	escrow.AssertExpectations(t)
}
