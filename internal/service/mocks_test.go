package service

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/domain/valueobject"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/logger"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	os.Exit(m.Run())
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// eventRecorder собирает опубликованные события вместо отправки в websocket.
type eventRecorder struct {
	events []recordedEvent
}

type recordedEvent struct {
	UserID uuid.UUID
	Event  string
}

func (r *eventRecorder) Publish(userID uuid.UUID, event string, data any) {
	r.events = append(r.events, recordedEvent{UserID: userID, Event: event})
}

func (r *eventRecorder) has(userID uuid.UUID, event string) bool {
	for _, e := range r.events {
		if e.UserID == userID && e.Event == event {
			return true
		}
	}
	return false
}

type mockOrderStore struct {
	mock.Mock
}

func (m *mockOrderStore) Create(ctx context.Context, o *models.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOrderStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderStore) GetByPaymentRef(ctx context.Context, ref string) (*models.Order, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.OrderStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *mockOrderStore) AddStatusChange(ctx context.Context, c *models.StatusChange) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockOrderStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Order), args.Error(1)
}

type mockBookingStore struct {
	mock.Mock
}

func (m *mockBookingStore) Create(ctx context.Context, b *models.Booking) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *mockBookingStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingStore) GetByPaymentRef(ctx context.Context, ref string) (*models.Booking, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.BookingStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *mockBookingStore) AddStatusChange(ctx context.Context, c *models.StatusChange) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockBookingStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Booking), args.Error(1)
}

type mockCatalogStore struct {
	mock.Mock
}

func (m *mockCatalogStore) GetVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProductVariant), args.Error(1)
}

func (m *mockCatalogStore) GetVariantSeller(ctx context.Context, variantID uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, variantID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockCatalogStore) GetPackage(ctx context.Context, id uuid.UUID) (*models.ServicePackage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServicePackage), args.Error(1)
}

func (m *mockCatalogStore) GetQuote(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}

type mockEscrowManager struct {
	mock.Mock
}

func (m *mockEscrowManager) Release(ctx context.Context, txID uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, txID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockEscrowManager) Refund(ctx context.Context, txID uuid.UUID, amount decimal.Decimal) (*models.Transaction, error) {
	args := m.Called(ctx, txID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockEscrowManager) GetByFulfillable(ctx context.Context, orderID, bookingID *uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, orderID, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

type mockTransactionStore struct {
	mock.Mock
}

func (m *mockTransactionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockTransactionStore) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockTransactionStore) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockTransactionStore) CreateEscrow(ctx context.Context, t *models.Transaction) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *mockTransactionStore) Release(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockTransactionStore) Refund(ctx context.Context, id uuid.UUID, refundAmount, remainderPayout decimal.Decimal) (*models.Transaction, error) {
	args := m.Called(ctx, id, refundAmount, remainderPayout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockTransactionStore) ListLedgerEntries(ctx context.Context, txID uuid.UUID) ([]models.LedgerEntry, error) {
	args := m.Called(ctx, txID)
	return args.Get(0).([]models.LedgerEntry), args.Error(1)
}

type mockSellerDirectory struct {
	mock.Mock
}

func (m *mockSellerDirectory) GetSellerCommissionRate(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, sellerID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockSellerDirectory) GetSellerBalance(ctx context.Context, sellerID uuid.UUID) (*models.SellerBalance, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SellerBalance), args.Error(1)
}

type mockReturnStore struct {
	mock.Mock
}

func (m *mockReturnStore) Create(ctx context.Context, req *models.ReturnRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockReturnStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReturnRequest), args.Error(1)
}

func (m *mockReturnStore) HasOpenForTransaction(ctx context.Context, txID uuid.UUID) (bool, error) {
	args := m.Called(ctx, txID)
	return args.Bool(0), args.Error(1)
}

func (m *mockReturnStore) SetSellerResponse(ctx context.Context, id uuid.UUID, decision valueobject.SellerDecision, newStatus valueobject.ReturnStatus, proposed *decimal.Decimal, response *string) error {
	args := m.Called(ctx, id, decision, newStatus, proposed, response)
	return args.Error(0)
}

func (m *mockReturnStore) SetAdminDecision(ctx context.Context, id uuid.UUID, from, to valueobject.ReturnStatus, approved *decimal.Decimal, notes *string) error {
	args := m.Called(ctx, id, from, to, approved, notes)
	return args.Error(0)
}

func (m *mockReturnStore) SetStatus(ctx context.Context, id uuid.UUID, from, to valueobject.ReturnStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *mockReturnStore) MarkClawbackRequired(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockReturnStore) AddEvidence(ctx context.Context, e *models.ReturnEvidence) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockReturnStore) ListEvidence(ctx context.Context, returnID uuid.UUID) ([]models.ReturnEvidence, error) {
	args := m.Called(ctx, returnID)
	return args.Get(0).([]models.ReturnEvidence), args.Error(1)
}

func (m *mockReturnStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ReturnRequest, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.ReturnRequest), args.Error(1)
}

type mockReturnEscrow struct {
	mock.Mock
}

func (m *mockReturnEscrow) GetTransaction(ctx context.Context, txID uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, txID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockReturnEscrow) GetByFulfillable(ctx context.Context, orderID, bookingID *uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, orderID, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockReturnEscrow) Refund(ctx context.Context, txID uuid.UUID, amount decimal.Decimal) (*models.Transaction, error) {
	args := m.Called(ctx, txID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

type mockPaymentConfirmer struct {
	mock.Mock
}

func (m *mockPaymentConfirmer) ConfirmPayment(ctx context.Context, p ConfirmPaymentParams) (*models.Transaction, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockPaymentConfirmer) GetByFulfillable(ctx context.Context, orderID, bookingID *uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, orderID, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

type mockOrderFSM struct {
	mock.Mock
}

func (m *mockOrderFSM) RequestTransition(ctx context.Context, orderID uuid.UUID, target valueobject.OrderStatus, actorID uuid.UUID, role valueobject.Role) (*models.Order, error) {
	args := m.Called(ctx, orderID, target, actorID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

type mockBookingFSM struct {
	mock.Mock
}

func (m *mockBookingFSM) RequestTransition(ctx context.Context, bookingID uuid.UUID, target valueobject.BookingStatus, actorID uuid.UUID, role valueobject.Role) (*models.Booking, error) {
	args := m.Called(ctx, bookingID, target, actorID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
