package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/domain/valueobject"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository/common"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (buyer_id, seller_id, variant_id, quantity, quote_id, gross_amount, payment_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		o.BuyerID, o.SellerID, o.VariantID, o.Quantity, o.QuoteID, o.GrossAmount, o.PaymentRef, o.Status).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("order repository: create %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return common.GetByID[models.Order](ctx, r.db, "orders", id, ErrOrderNotFound)
}

func (r *OrderRepository) GetByPaymentRef(ctx context.Context, ref string) (*models.Order, error) {
	return common.GetByField[models.Order](ctx, r.db, "orders", "payment_ref", ref, ErrOrderNotFound)
}

// UpdateStatus выполняет атомарный CAS по статусу: переход записывается
// только если текущий статус в базе совпадает с ожидаемым. Проигравший
// гонку получает ErrStatusConflict и должен повторить операцию целиком.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("order repository: update status %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("order repository: update status rows %w", err)
	}
	if affected == 0 {
		// Либо заказ исчез, либо статус уже другой.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return common.ErrStatusConflict
	}
	return nil
}

// AddStatusChange пишет строку аудита смены статуса.
func (r *OrderRepository) AddStatusChange(ctx context.Context, c *models.StatusChange) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO status_changes (order_id, booking_id, from_status, to_status, actor_role, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.OrderID, c.BookingID, c.FromStatus, c.ToStatus, c.ActorRole, c.ActorID)
	if err != nil {
		return fmt.Errorf("order repository: add status change %w", err)
	}
	return nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return orders, err
}
