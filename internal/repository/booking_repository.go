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

var ErrBookingNotFound = errors.New("booking not found")

type BookingRepository struct {
	db *sqlx.DB
}

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO bookings (buyer_id, seller_id, package_id, scheduled_at, quote_id, gross_amount, payment_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		b.BuyerID, b.SellerID, b.PackageID, b.ScheduledAt, b.QuoteID, b.GrossAmount, b.PaymentRef, b.Status).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("booking repository: create %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return common.GetByID[models.Booking](ctx, r.db, "bookings", id, ErrBookingNotFound)
}

func (r *BookingRepository) GetByPaymentRef(ctx context.Context, ref string) (*models.Booking, error) {
	return common.GetByField[models.Booking](ctx, r.db, "bookings", "payment_ref", ref, ErrBookingNotFound)
}

// UpdateStatus — тот же CAS-контракт, что и у заказов.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.BookingStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("booking repository: update status %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("booking repository: update status rows %w", err)
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return common.ErrStatusConflict
	}
	return nil
}

func (r *BookingRepository) AddStatusChange(ctx context.Context, c *models.StatusChange) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO status_changes (order_id, booking_id, from_status, to_status, actor_role, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.OrderID, c.BookingID, c.FromStatus, c.ToStatus, c.ActorRole, c.ActorID)
	if err != nil {
		return fmt.Errorf("booking repository: add status change %w", err)
	}
	return nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT * FROM bookings
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return bookings, err
}
