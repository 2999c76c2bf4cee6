package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/domain/valueobject"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository/common"
)

func TestOrderService_CreateOrder_FromCatalogPrice(t *testing.T) {
	orders := new(mockOrderStore)
	catalog := new(mockCatalogStore)
	svc := NewOrderService(orders, catalog, new(mockEscrowManager), nil)
	ctx := context.Background()

	buyerID, sellerID, variantID := uuid.New(), uuid.New(), uuid.New()
	catalog.On("GetVariant", ctx, variantID).Return(&models.ProductVariant{ID: variantID, Price: d("49.90")}, nil)
	catalog.On("GetVariantSeller", ctx, variantID).Return(sellerID, nil)
	orders.On("Create", ctx, mock.AnythingOfType("*models.Order")).Return(nil)

	order, err := svc.CreateOrder(ctx, buyerID, CreateOrderParams{VariantID: variantID, Quantity: 3})
	require.NoError(t, err)

	assert.Equal(t, buyerID, order.BuyerID)
	assert.Equal(t, sellerID, order.SellerID)
	assert.True(t, order.GrossAmount.Equal(d("149.70")), "gross = %s", order.GrossAmount)
	assert.Equal(t, string(valueobject.OrderStatusCreated), order.Status)
	assert.NotEmpty(t, order.PaymentRef)
}

func TestOrderService_CreateOrder_AcceptedQuoteOverridesPrice(t *testing.T) {
	orders := new(mockOrderStore)
	catalog := new(mockCatalogStore)
	svc := NewOrderService(orders, catalog, new(mockEscrowManager), nil)
	ctx := context.Background()

	buyerID, sellerID, variantID, quoteID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	catalog.On("GetVariant", ctx, variantID).Return(&models.ProductVariant{ID: variantID, Price: d("100")}, nil)
	catalog.On("GetVariantSeller", ctx, variantID).Return(sellerID, nil)
	catalog.On("GetQuote", ctx, quoteID).Return(&models.Quote{
		ID: quoteID, SellerID: sellerID, BuyerID: buyerID,
		Price: d("75.00"), Status: models.QuoteStatusAccepted,
	}, nil)
	orders.On("Create", ctx, mock.AnythingOfType("*models.Order")).Return(nil)

	order, err := svc.CreateOrder(ctx, buyerID, CreateOrderParams{VariantID: variantID, Quantity: 2, QuoteID: &quoteID})
	require.NoError(t, err)
	assert.True(t, order.GrossAmount.Equal(d("75.00")), "gross = %s", order.GrossAmount)
}

func TestOrderService_CreateOrder_QuoteNotAccepted(t *testing.T) {
	orders := new(mockOrderStore)
	catalog := new(mockCatalogStore)
	svc := NewOrderService(orders, catalog, new(mockEscrowManager), nil)
	ctx := context.Background()

	buyerID, sellerID, variantID, quoteID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	catalog.On("GetVariant", ctx, variantID).Return(&models.ProductVariant{ID: variantID, Price: d("100")}, nil)
	catalog.On("GetVariantSeller", ctx, variantID).Return(sellerID, nil)
	catalog.On("GetQuote", ctx, quoteID).Return(&models.Quote{
		ID: quoteID, SellerID: sellerID, BuyerID: buyerID,
		Price: d("75.00"), Status: models.QuoteStatusPending,
	}, nil)

	_, err := svc.CreateOrder(ctx, buyerID, CreateOrderParams{VariantID: variantID, Quantity: 1, QuoteID: &quoteID})
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))
}

func TestOrderService_CreateOrder_ForeignQuote(t *testing.T) {
	orders := new(mockOrderStore)
	catalog := new(mockCatalogStore)
	svc := NewOrderService(orders, catalog, new(mockEscrowManager), nil)
	ctx := context.Background()

	buyerID, sellerID, variantID, quoteID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	catalog.On("GetVariant", ctx, variantID).Return(&models.ProductVariant{ID: variantID, Price: d("100")}, nil)
	catalog.On("GetVariantSeller", ctx, variantID).Return(sellerID, nil)
	catalog.On("GetQuote", ctx, quoteID).Return(&models.Quote{
		ID: quoteID, SellerID: sellerID, BuyerID: uuid.New(),
		Price: d("75.00"), Status: models.QuoteStatusAccepted,
	}, nil)

	_, err := svc.CreateOrder(ctx, buyerID, CreateOrderParams{VariantID: variantID, Quantity: 1, QuoteID: &quoteID})
	assert.True(t, apperror.IsForbidden(err))
}

func TestOrderService_CreateOrder_InvalidQuantity(t *testing.T) {
	svc := NewOrderService(new(mockOrderStore), new(mockCatalogStore), new(mockEscrowManager), nil)

	_, err := svc.CreateOrder(context.Background(), uuid.New(), CreateOrderParams{VariantID: uuid.New(), Quantity: 0})
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))
}

func testOrder(status valueobject.OrderStatus) *models.Order {
	return &models.Order{
		ID:          uuid.New(),
		BuyerID:     uuid.New(),
		SellerID:    uuid.New(),
		GrossAmount: d("100.00"),
		Status:      string(status),
	}
}

func TestOrderService_RequestTransition_InvalidEdge(t *testing.T) {
	orders := new(mockOrderStore)
	svc := NewOrderService(orders, new(mockCatalogStore), new(mockEscrowManager), nil)
	ctx := context.Background()

	order := testOrder(valueobject.OrderStatusCreated)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	_, err := svc.RequestTransition(ctx, order.ID, valueobject.OrderStatusShipped, order.SellerID, valueobject.RoleSeller)
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidTransition))
}

func TestOrderService_RequestTransition_RoleNotAllowedForEdge(t *testing.T) {
	orders := new(mockOrderStore)
	svc := NewOrderService(orders, new(mockCatalogStore), new(mockEscrowManager), nil)
	ctx := context.Background()

	// Покупатель не может сам объявить заказ оплаченным.
	order := testOrder(valueobject.OrderStatusCreated)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	_, err := svc.RequestTransition(ctx, order.ID, valueobject.OrderStatusPaid, order.BuyerID, valueobject.RoleBuyer)
	assert.True(t, apperror.IsForbidden(err))
}

func TestOrderService_RequestTransition_StrangerForbidden(t *testing.T) {
	orders := new(mockOrderStore)
	svc := NewOrderService(orders, new(mockCatalogStore), new(mockEscrowManager), nil)
	ctx := context.Background()

	order := testOrder(valueobject.OrderStatusPaid)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	_, err := svc.RequestTransition(ctx, order.ID, valueobject.OrderStatusProcessing, uuid.New(), valueobject.RoleSeller)
	assert.True(t, apperror.IsForbidden(err))
}

func TestOrderService_RequestTransition_CASConflict(t *testing.T) {
	orders := new(mockOrderStore)
	svc := NewOrderService(orders, new(mockCatalogStore), new(mockEscrowManager), nil)
	ctx := context.Background()

	order := testOrder(valueobject.OrderStatusPaid)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	orders.On("UpdateStatus", ctx, order.ID, valueobject.OrderStatusPaid, valueobject.OrderStatusProcessing).
		Return(common.ErrStatusConflict)

	_, err := svc.RequestTransition(ctx, order.ID, valueobject.OrderStatusProcessing, order.SellerID, valueobject.RoleSeller)
	assert.True(t, apperror.IsConflict(err))
}

func TestOrderService_RequestTransition_CompletedReleasesEscrow(t *testing.T) {
	orders := new(mockOrderStore)
	escrow := new(mockEscrowManager)
	events := &eventRecorder{}
	svc := NewOrderService(orders, new(mockCatalogStore), escrow, events)
	ctx := context.Background()

	order := testOrder(valueobject.OrderStatusDelivered)
	tx := &models.Transaction{ID: uuid.New(), Amount: d("100.00")}

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	orders.On("UpdateStatus", ctx, order.ID, valueobject.OrderStatusDelivered, valueobject.OrderStatusCompleted).Return(nil)
	orders.On("AddStatusChange", ctx, mock.AnythingOfType("*models.StatusChange")).Return(nil)
	escrow.On("GetByFulfillable", ctx, &order.ID, (*uuid.UUID)(nil)).Return(tx, nil)
	escrow.On("Release", ctx, tx.ID).Return(tx, nil)

	updated, err := svc.RequestTransition(ctx, order.ID, valueobject.OrderStatusCompleted, order.BuyerID, valueobject.RoleBuyer)
	require.NoError(t, err)
	assert.Equal(t, string(valueobject.OrderStatusCompleted), updated.Status)
	assert.True(t, events.has(order.BuyerID, "order.status_changed"))
	assert.True(t, events.has(order.SellerID, "order.status_changed"))
	escrow.AssertExpectations(t)
}

func TestOrderService_RequestTransition_CancelledRefundsEscrow(t *testing.T) {
	orders := new(mockOrderStore)
	escrow := new(mockEscrowManager)
	svc := NewOrderService(orders, new(mockCatalogStore), escrow, nil)
	ctx := context.Background()

	order := testOrder(valueobject.OrderStatusPaid)
	tx := &models.Transaction{ID: uuid.New(), Amount: d("100.00")}

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	orders.On("UpdateStatus", ctx, order.ID, valueobject.OrderStatusPaid, valueobject.OrderStatusCancelled).Return(nil)
	orders.On("AddStatusChange", ctx, mock.AnythingOfType("*models.StatusChange")).Return(nil)
	escrow.On("GetByFulfillable", ctx, &order.ID, (*uuid.UUID)(nil)).Return(tx, nil)
	escrow.On("Refund", ctx, tx.ID, tx.Amount).Return(tx, nil)

	_, err := svc.RequestTransition(ctx, order.ID, valueobject.OrderStatusCancelled, order.BuyerID, valueobject.RoleBuyer)
	require.NoError(t, err)
	escrow.AssertExpectations(t)
}

func TestOrderService_RequestTransition_CancelUnpaidSkipsRefund(t *testing.T) {
	orders := new(mockOrderStore)
	escrow := new(mockEscrowManager)
	svc := NewOrderService(orders, new(mockCatalogStore), escrow, nil)
	ctx := context.Background()

	order := testOrder(valueobject.OrderStatusCreated)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	orders.On("UpdateStatus", ctx, order.ID, valueobject.OrderStatusCreated, valueobject.OrderStatusCancelled).Return(nil)
	orders.On("AddStatusChange", ctx, mock.AnythingOfType("*models.StatusChange")).Return(nil)
	escrow.On("GetByFulfillable", ctx, &order.ID, (*uuid.UUID)(nil)).Return(nil, apperror.ErrTransactionNotFound)

	_, err := svc.RequestTransition(ctx, order.ID, valueobject.OrderStatusCancelled, order.BuyerID, valueobject.RoleBuyer)
	require.NoError(t, err)
	escrow.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderService_RequestTransition_CompletedRepeatReleasesEscrow(t *testing.T) {
	orders := new(mockOrderStore)
	escrow := new(mockEscrowManager)
	svc := NewOrderService(orders, new(mockCatalogStore), escrow, nil)
	ctx := context.Background()

	// Статус completed записан предыдущей попыткой, а выпуск escrow
	// оборвался: транзакция всё ещё в escrow.
	order := testOrder(valueobject.OrderStatusCompleted)
	tx := &models.Transaction{ID: uuid.New(), Amount: d("100.00"), Status: string(valueobject.TransactionStatusEscrow)}

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	escrow.On("GetByFulfillable", ctx, &order.ID, (*uuid.UUID)(nil)).Return(tx, nil)
	escrow.On("Release", ctx, tx.ID).Return(tx, nil)

	updated, err := svc.RequestTransition(ctx, order.ID, valueobject.OrderStatusCompleted, order.BuyerID, valueobject.RoleBuyer)
	require.NoError(t, err)
	assert.Equal(t, string(valueobject.OrderStatusCompleted), updated.Status)
	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	escrow.AssertExpectations(t)
}

func TestOrderService_RequestTransition_ReleaseFailureThenRetry(t *testing.T) {
	orders := new(mockOrderStore)
	escrow := new(mockEscrowManager)
	svc := NewOrderService(orders, new(mockCatalogStore), escrow, nil)
	ctx := context.Background()

	order := testOrder(valueobject.OrderStatusDelivered)
	tx := &models.Transaction{ID: uuid.New(), Amount: d("100.00"), Status: string(valueobject.TransactionStatusEscrow)}

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	orders.On("UpdateStatus", ctx, order.ID, valueobject.OrderStatusDelivered, valueobject.OrderStatusCompleted).Return(nil).Once()
	orders.On("AddStatusChange", ctx, mock.AnythingOfType("*models.StatusChange")).Return(nil)
	escrow.On("GetByFulfillable", ctx, &order.ID, (*uuid.UUID)(nil)).Return(tx, nil)
	escrow.On("Release", ctx, tx.ID).Return(nil, apperror.New(apperror.ErrCodeInternal, "обрыв соединения с базой")).Once()

	_, err := svc.RequestTransition(ctx, order.ID, valueobject.OrderStatusCompleted, order.BuyerID, valueobject.RoleBuyer)
	require.Error(t, err)

	// Повтор не упирается в терминальный статус, а добивает выпуск.
	escrow.On("Release", ctx, tx.ID).Return(tx, nil).Once()

	updated, err := svc.RequestTransition(ctx, order.ID, valueobject.OrderStatusCompleted, order.BuyerID, valueobject.RoleBuyer)
	require.NoError(t, err)
	assert.Equal(t, string(valueobject.OrderStatusCompleted), updated.Status)
	escrow.AssertNumberOfCalls(t, "Release", 2)
}

func TestOrderService_RequestTransition_CompletedRepeatAfterReleaseIsNoop(t *testing.T) {
	orders := new(mockOrderStore)
	escrow := new(mockEscrowManager)
	svc := NewOrderService(orders, new(mockCatalogStore), escrow, nil)
	ctx := context.Background()

	order := testOrder(valueobject.OrderStatusCompleted)
	tx := &models.Transaction{ID: uuid.New(), Amount: d("100.00"), Status: string(valueobject.TransactionStatusReleased)}

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	escrow.On("GetByFulfillable", ctx, &order.ID, (*uuid.UUID)(nil)).Return(tx, nil)
	escrow.On("Release", ctx, tx.ID).
		Return(nil, apperror.New(apperror.ErrCodeInvalidState, "транзакция не находится в escrow"))

	_, err := svc.RequestTransition(ctx, order.ID, valueobject.OrderStatusCompleted, order.BuyerID, valueobject.RoleBuyer)
	assert.NoError(t, err)
}

func TestOrderService_GetOrder_Access(t *testing.T) {
	orders := new(mockOrderStore)
	svc := NewOrderService(orders, new(mockCatalogStore), new(mockEscrowManager), nil)
	ctx := context.Background()

	order := testOrder(valueobject.OrderStatusPaid)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	_, err := svc.GetOrder(ctx, order.ID, order.BuyerID, valueobject.RoleBuyer)
	assert.NoError(t, err)

	_, err = svc.GetOrder(ctx, order.ID, uuid.New(), valueobject.RoleAdmin)
	assert.NoError(t, err)

	_, err = svc.GetOrder(ctx, order.ID, uuid.New(), valueobject.RoleBuyer)
	assert.True(t, apperror.IsForbidden(err))
}
