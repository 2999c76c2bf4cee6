package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository/common"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("product variant not found")
	ErrPackageNotFound = errors.New("service package not found")
	ErrQuoteNotFound   = errors.New("quote not found")
)

type CatalogRepository struct {
	db *sqlx.DB
}

func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (seller_id, title, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, p.SellerID, p.Title, p.Description).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog repository: create product %w", err)
	}
	return nil
}

func (r *CatalogRepository) CreateVariant(ctx context.Context, v *models.ProductVariant) error {
	query := `
		INSERT INTO product_variants (product_id, name, price)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, v.ProductID, v.Name, v.Price).Scan(&v.ID); err != nil {
		return fmt.Errorf("catalog repository: create variant %w", err)
	}
	return nil
}

func (r *CatalogRepository) CreatePackage(ctx context.Context, p *models.ServicePackage) error {
	query := `
		INSERT INTO service_packages (seller_id, title, description, price, duration_minutes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, p.SellerID, p.Title, p.Description, p.Price, p.DurationMinutes).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("catalog repository: create package %w", err)
	}
	return nil
}

func (r *CatalogRepository) GetVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	return common.GetByID[models.ProductVariant](ctx, r.db, "product_variants", id, ErrVariantNotFound)
}

// GetVariantSeller возвращает продавца, которому принадлежит вариант товара.
func (r *CatalogRepository) GetVariantSeller(ctx context.Context, variantID uuid.UUID) (uuid.UUID, error) {
	var sellerID uuid.UUID
	err := r.db.GetContext(ctx, &sellerID, `
		SELECT p.seller_id FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
	`, variantID)
	if err != nil {
		return uuid.Nil, ErrVariantNotFound
	}
	return sellerID, nil
}

func (r *CatalogRepository) GetPackage(ctx context.Context, id uuid.UUID) (*models.ServicePackage, error) {
	return common.GetByID[models.ServicePackage](ctx, r.db, "service_packages", id, ErrPackageNotFound)
}

func (r *CatalogRepository) GetQuote(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	return common.GetByID[models.Quote](ctx, r.db, "quotes", id, ErrQuoteNotFound)
}

func (r *CatalogRepository) CreateQuote(ctx context.Context, q *models.Quote) error {
	query := `
		INSERT INTO quotes (seller_id, buyer_id, variant_id, package_id, price, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		q.SellerID, q.BuyerID, q.VariantID, q.PackageID, q.Price, q.Status, q.ExpiresAt).
		Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return fmt.Errorf("catalog repository: create quote %w", err)
	}
	return nil
}

// UpdateQuoteStatus переводит предложение из pending в конечный статус.
func (r *CatalogRepository) UpdateQuoteStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE quotes SET status = $2 WHERE id = $1 AND status = $3`,
		id, status, models.QuoteStatusPending)
	if err != nil {
		return fmt.Errorf("catalog repository: update quote status %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("catalog repository: update quote status %w", err)
	}
	if n == 0 {
		if _, getErr := r.GetQuote(ctx, id); getErr != nil {
			return getErr
		}
		return common.ErrStatusConflict
	}
	return nil
}

func (r *CatalogRepository) ListProductsBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.SelectContext(ctx, &products,
		`SELECT * FROM products WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
	return products, err
}

func (r *CatalogRepository) ListVariants(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	err := r.db.SelectContext(ctx, &variants,
		`SELECT * FROM product_variants WHERE product_id = $1 ORDER BY price`, productID)
	return variants, err
}

func (r *CatalogRepository) ListPackagesBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.ServicePackage, error) {
	var packages []models.ServicePackage
	err := r.db.SelectContext(ctx, &packages,
		`SELECT * FROM service_packages WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
	return packages, err
}

func (r *CatalogRepository) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return common.GetByID[models.Product](ctx, r.db, "products", id, ErrProductNotFound)
}

// ListBoostPackages возвращает доступные пакеты продвижения.
func (r *CatalogRepository) ListBoostPackages(ctx context.Context) ([]models.BoostPackage, error) {
	var packages []models.BoostPackage
	err := r.db.SelectContext(ctx, &packages, `SELECT * FROM boost_packages ORDER BY price`)
	return packages, err
}
