package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/domain/valueobject"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository/common"
)

// CatalogManager — полный контракт хранилища каталога и предложений.
type CatalogManager interface {
	CatalogStore
	CreateProduct(ctx context.Context, p *models.Product) error
	CreateVariant(ctx context.Context, v *models.ProductVariant) error
	CreatePackage(ctx context.Context, p *models.ServicePackage) error
	CreateQuote(ctx context.Context, q *models.Quote) error
	UpdateQuoteStatus(ctx context.Context, id uuid.UUID, status string) error
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProductsBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Product, error)
	ListVariants(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error)
	ListPackagesBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.ServicePackage, error)
	ListBoostPackages(ctx context.Context) ([]models.BoostPackage, error)
}

// CatalogService — витрина продавца: товары с вариантами, пакеты услуг,
// индивидуальные предложения и пакеты продвижения.
type CatalogService struct {
	catalog CatalogManager
}

func NewCatalogService(catalog CatalogManager) *CatalogService {
	return &CatalogService{catalog: catalog}
}

// CreateProductParams — товар и его варианты одним запросом.
type CreateProductParams struct {
	Title       string
	Description string
	Variants    []CreateVariantParams
}

type CreateVariantParams struct {
	Name  string
	Price decimal.Decimal
}

func (s *CatalogService) CreateProduct(ctx context.Context, sellerID uuid.UUID, p CreateProductParams) (*models.Product, []models.ProductVariant, error) {
	if p.Title == "" {
		return nil, nil, apperror.New(apperror.ErrCodeValidation, "название товара обязательно")
	}
	if len(p.Variants) == 0 {
		return nil, nil, apperror.New(apperror.ErrCodeValidation, "нужен хотя бы один вариант товара")
	}
	for _, v := range p.Variants {
		if v.Price.Sign() <= 0 {
			return nil, nil, apperror.New(apperror.ErrCodeValidation, "цена варианта должна быть положительной")
		}
	}

	product := &models.Product{
		SellerID:    sellerID,
		Title:       p.Title,
		Description: p.Description,
	}
	if err := s.catalog.CreateProduct(ctx, product); err != nil {
		return nil, nil, err
	}

	variants := make([]models.ProductVariant, 0, len(p.Variants))
	for _, v := range p.Variants {
		variant := models.ProductVariant{
			ProductID: product.ID,
			Name:      v.Name,
			Price:     valueobject.Round2(v.Price),
		}
		if err := s.catalog.CreateVariant(ctx, &variant); err != nil {
			return nil, nil, err
		}
		variants = append(variants, variant)
	}
	return product, variants, nil
}

type CreatePackageParams struct {
	Title           string
	Description     string
	Price           decimal.Decimal
	DurationMinutes int
}

func (s *CatalogService) CreatePackage(ctx context.Context, sellerID uuid.UUID, p CreatePackageParams) (*models.ServicePackage, error) {
	if p.Title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название пакета обязательно")
	}
	if p.Price.Sign() <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "цена пакета должна быть положительной")
	}
	if p.DurationMinutes <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "длительность должна быть положительной")
	}

	pkg := &models.ServicePackage{
		SellerID:        sellerID,
		Title:           p.Title,
		Description:     p.Description,
		Price:           valueobject.Round2(p.Price),
		DurationMinutes: p.DurationMinutes,
	}
	if err := s.catalog.CreatePackage(ctx, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

// CreateQuoteParams — индивидуальное предложение продавца покупателю.
// Заполняется ровно одна ссылка на вариант или пакет.
type CreateQuoteParams struct {
	BuyerID   uuid.UUID
	VariantID *uuid.UUID
	PackageID *uuid.UUID
	Price     decimal.Decimal
	TTL       time.Duration
}

func (s *CatalogService) CreateQuote(ctx context.Context, sellerID uuid.UUID, p CreateQuoteParams) (*models.Quote, error) {
	if (p.VariantID == nil) == (p.PackageID == nil) {
		return nil, apperror.New(apperror.ErrCodeValidation, "предложение привязывается ровно к одному варианту или пакету")
	}
	if p.Price.Sign() <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "цена предложения должна быть положительной")
	}

	if p.VariantID != nil {
		owner, err := s.catalog.GetVariantSeller(ctx, *p.VariantID)
		if err != nil {
			return nil, apperror.New(apperror.ErrCodeNotFound, "вариант товара не найден")
		}
		if owner != sellerID {
			return nil, apperror.ErrForbidden
		}
	} else {
		pkg, err := s.catalog.GetPackage(ctx, *p.PackageID)
		if err != nil {
			return nil, apperror.New(apperror.ErrCodeNotFound, "пакет услуги не найден")
		}
		if pkg.SellerID != sellerID {
			return nil, apperror.ErrForbidden
		}
	}

	quote := &models.Quote{
		SellerID:  sellerID,
		BuyerID:   p.BuyerID,
		VariantID: p.VariantID,
		PackageID: p.PackageID,
		Price:     valueobject.Round2(p.Price),
		Status:    models.QuoteStatusPending,
	}
	if p.TTL > 0 {
		exp := time.Now().Add(p.TTL)
		quote.ExpiresAt = &exp
	}
	if err := s.catalog.CreateQuote(ctx, quote); err != nil {
		return nil, err
	}
	return quote, nil
}

// RespondQuote — решение покупателя по предложению.
func (s *CatalogService) RespondQuote(ctx context.Context, buyerID, quoteID uuid.UUID, accept bool) (*models.Quote, error) {
	quote, err := s.catalog.GetQuote(ctx, quoteID)
	if err != nil {
		if errors.Is(err, repository.ErrQuoteNotFound) {
			return nil, apperror.ErrQuoteNotFound
		}
		return nil, err
	}
	if quote.BuyerID != buyerID {
		return nil, apperror.ErrForbidden
	}
	if quote.ExpiresAt != nil && time.Now().After(*quote.ExpiresAt) {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "срок предложения истёк")
	}

	status := models.QuoteStatusRejected
	if accept {
		status = models.QuoteStatusAccepted
	}
	if err := s.catalog.UpdateQuoteStatus(ctx, quoteID, status); err != nil {
		if errors.Is(err, common.ErrStatusConflict) {
			return nil, apperror.New(apperror.ErrCodeInvalidState, "решение по предложению уже принято")
		}
		return nil, err
	}
	quote.Status = status
	return quote, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, []models.ProductVariant, error) {
	product, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, nil, apperror.New(apperror.ErrCodeNotFound, "товар не найден")
		}
		return nil, nil, err
	}
	variants, err := s.catalog.ListVariants(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return product, variants, nil
}

func (s *CatalogService) ListSellerProducts(ctx context.Context, sellerID uuid.UUID) ([]models.Product, error) {
	return s.catalog.ListProductsBySeller(ctx, sellerID)
}

func (s *CatalogService) ListSellerPackages(ctx context.Context, sellerID uuid.UUID) ([]models.ServicePackage, error) {
	return s.catalog.ListPackagesBySeller(ctx, sellerID)
}

func (s *CatalogService) ListBoostPackages(ctx context.Context) ([]models.BoostPackage, error) {
	return s.catalog.ListBoostPackages(ctx)
}
