package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository/common"
)

// mockCatalogManager расширяет каталожный мок до полного контракта.
type mockCatalogManager struct {
	mockCatalogStore
}

func (m *mockCatalogManager) CreateProduct(ctx context.Context, p *models.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockCatalogManager) CreateVariant(ctx context.Context, v *models.ProductVariant) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *mockCatalogManager) CreatePackage(ctx context.Context, p *models.ServicePackage) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockCatalogManager) CreateQuote(ctx context.Context, q *models.Quote) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func (m *mockCatalogManager) UpdateQuoteStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockCatalogManager) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *mockCatalogManager) ListProductsBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Product, error) {
	args := m.Called(ctx, sellerID)
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *mockCatalogManager) ListVariants(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).([]models.ProductVariant), args.Error(1)
}

func (m *mockCatalogManager) ListPackagesBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.ServicePackage, error) {
	args := m.Called(ctx, sellerID)
	return args.Get(0).([]models.ServicePackage), args.Error(1)
}

func (m *mockCatalogManager) ListBoostPackages(ctx context.Context) ([]models.BoostPackage, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.BoostPackage), args.Error(1)
}

func TestCatalogService_CreateProduct(t *testing.T) {
	catalog := new(mockCatalogManager)
	svc := NewCatalogService(catalog)
	ctx := context.Background()
	sellerID := uuid.New()

	catalog.On("CreateProduct", ctx, mock.AnythingOfType("*models.Product")).Return(nil)
	catalog.On("CreateVariant", ctx, mock.AnythingOfType("*models.ProductVariant")).Return(nil)

	product, variants, err := svc.CreateProduct(ctx, sellerID, CreateProductParams{
		Title: "Кофе в зёрнах",
		Variants: []CreateVariantParams{
			{Name: "250 г", Price: d("450")},
			{Name: "1 кг", Price: d("1490.005")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, sellerID, product.SellerID)
	require.Len(t, variants, 2)
	assert.True(t, variants[1].Price.Equal(d("1490.01")), "price = %s", variants[1].Price)
}

func TestCatalogService_CreateProduct_Validation(t *testing.T) {
	svc := NewCatalogService(new(mockCatalogManager))
	ctx := context.Background()

	_, _, err := svc.CreateProduct(ctx, uuid.New(), CreateProductParams{Title: "Без вариантов"})
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))

	_, _, err = svc.CreateProduct(ctx, uuid.New(), CreateProductParams{
		Title:    "Бесплатный",
		Variants: []CreateVariantParams{{Name: "x", Price: d("0")}},
	})
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))
}

func TestCatalogService_CreateQuote_OwnershipRequired(t *testing.T) {
	catalog := new(mockCatalogManager)
	svc := NewCatalogService(catalog)
	ctx := context.Background()

	sellerID, variantID := uuid.New(), uuid.New()
	catalog.On("GetVariantSeller", ctx, variantID).Return(uuid.New(), nil)

	_, err := svc.CreateQuote(ctx, sellerID, CreateQuoteParams{
		BuyerID: uuid.New(), VariantID: &variantID, Price: d("100"),
	})
	assert.True(t, apperror.IsForbidden(err))
}

func TestCatalogService_CreateQuote_WithTTL(t *testing.T) {
	catalog := new(mockCatalogManager)
	svc := NewCatalogService(catalog)
	ctx := context.Background()

	sellerID, variantID := uuid.New(), uuid.New()
	catalog.On("GetVariantSeller", ctx, variantID).Return(sellerID, nil)
	catalog.On("CreateQuote", ctx, mock.AnythingOfType("*models.Quote")).Return(nil)

	quote, err := svc.CreateQuote(ctx, sellerID, CreateQuoteParams{
		BuyerID: uuid.New(), VariantID: &variantID, Price: d("100"), TTL: time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusPending, quote.Status)
	require.NotNil(t, quote.ExpiresAt)
	assert.True(t, quote.ExpiresAt.After(time.Now()))
}

func TestCatalogService_RespondQuote_Expired(t *testing.T) {
	catalog := new(mockCatalogManager)
	svc := NewCatalogService(catalog)
	ctx := context.Background()

	buyerID := uuid.New()
	expired := time.Now().Add(-time.Minute)
	quote := &models.Quote{ID: uuid.New(), BuyerID: buyerID, Status: models.QuoteStatusPending, ExpiresAt: &expired}
	catalog.On("GetQuote", ctx, quote.ID).Return(quote, nil)

	_, err := svc.RespondQuote(ctx, buyerID, quote.ID, true)
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidState))
}

func TestCatalogService_RespondQuote_Accept(t *testing.T) {
	catalog := new(mockCatalogManager)
	svc := NewCatalogService(catalog)
	ctx := context.Background()

	buyerID := uuid.New()
	quote := &models.Quote{ID: uuid.New(), BuyerID: buyerID, Status: models.QuoteStatusPending}
	catalog.On("GetQuote", ctx, quote.ID).Return(quote, nil)
	catalog.On("UpdateQuoteStatus", ctx, quote.ID, models.QuoteStatusAccepted).Return(nil)

	updated, err := svc.RespondQuote(ctx, buyerID, quote.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusAccepted, updated.Status)
}

func TestCatalogService_RespondQuote_AlreadyDecided(t *testing.T) {
	catalog := new(mockCatalogManager)
	svc := NewCatalogService(catalog)
	ctx := context.Background()

	buyerID := uuid.New()
	quote := &models.Quote{ID: uuid.New(), BuyerID: buyerID, Status: models.QuoteStatusPending}
	catalog.On("GetQuote", ctx, quote.ID).Return(quote, nil)
	catalog.On("UpdateQuoteStatus", ctx, quote.ID, models.QuoteStatusRejected).Return(common.ErrStatusConflict)

	_, err := svc.RespondQuote(ctx, buyerID, quote.ID, false)
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidState))
}
