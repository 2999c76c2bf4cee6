package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/domain/valueobject"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository/common"
)

var ErrReturnNotFound = errors.New("return request not found")

type ReturnRepository struct {
	db *sqlx.DB
}

func NewReturnRepository(db *sqlx.DB) *ReturnRepository {
	return &ReturnRepository{db: db}
}

func (r *ReturnRepository) Create(ctx context.Context, req *models.ReturnRequest) error {
	query := `
		INSERT INTO return_requests
			(order_id, booking_id, transaction_id, buyer_id, seller_id,
			 reason, description, requested_refund_amount, status, seller_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		req.OrderID, req.BookingID, req.TransactionID, req.BuyerID, req.SellerID,
		req.Reason, req.Description, req.RequestedRefundAmount, req.Status, req.SellerStatus).
		Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.ErrDuplicate
		}
		return fmt.Errorf("return repository: create %w", err)
	}
	return nil
}

func (r *ReturnRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	return common.GetByID[models.ReturnRequest](ctx, r.db, "return_requests", id, ErrReturnNotFound)
}

// HasOpenForTransaction проверяет, нет ли уже незавершённого возврата по транзакции.
func (r *ReturnRepository) HasOpenForTransaction(ctx context.Context, txID uuid.UUID) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM return_requests
		WHERE transaction_id = $1 AND status NOT IN ('refunded', 'completed')
	`, txID)
	if err != nil {
		return false, fmt.Errorf("return repository: has open %w", err)
	}
	return count > 0, nil
}

// SetSellerResponse записывает ответ продавца. CAS по статусу pending:
// повторный ответ или гонка с решением админа отклоняются.
func (r *ReturnRepository) SetSellerResponse(ctx context.Context, id uuid.UUID, decision valueobject.SellerDecision, newStatus valueobject.ReturnStatus, proposed *decimal.Decimal, response *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE return_requests
		SET status = $2, seller_status = $3, seller_proposed_refund_amount = $4,
		    seller_response = $5, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, string(newStatus), string(decision), proposed, response)
	if err != nil {
		return fmt.Errorf("return repository: seller response %w", err)
	}
	return casOutcome(ctx, r, id, res)
}

// SetAdminDecision записывает решение админа. Источник CAS — текущий
// статус, утверждённая сумма после записи больше никогда не меняется.
func (r *ReturnRepository) SetAdminDecision(ctx context.Context, id uuid.UUID, from, to valueobject.ReturnStatus, approved *decimal.Decimal, notes *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE return_requests
		SET status = $3, approved_refund_amount = COALESCE(approved_refund_amount, $4),
		    admin_notes = $5, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), approved, notes)
	if err != nil {
		return fmt.Errorf("return repository: admin decision %w", err)
	}
	return casOutcome(ctx, r, id, res)
}

// SetStatus — CAS-переход между статусами возврата без изменения сумм.
func (r *ReturnRepository) SetStatus(ctx context.Context, id uuid.UUID, from, to valueobject.ReturnStatus) error {
	var resolved interface{}
	if valueobject.ReturnStatus(to).IsTerminal() {
		resolved = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE return_requests
		SET status = $3, resolved_at = COALESCE($4, resolved_at), updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), resolved)
	if err != nil {
		return fmt.Errorf("return repository: set status %w", err)
	}
	return casOutcome(ctx, r, id, res)
}

// MarkClawbackRequired помечает возврат, требующий ручного удержания с продавца.
func (r *ReturnRepository) MarkClawbackRequired(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE return_requests SET requires_clawback = TRUE, updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("return repository: mark clawback %w", err)
	}
	return nil
}

func (r *ReturnRepository) AddEvidence(ctx context.Context, e *models.ReturnEvidence) error {
	query := `
		INSERT INTO return_evidence (return_request_id, file_path, content_type, size_bytes, uploaded_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, e.ReturnRequestID, e.FilePath, e.ContentType, e.SizeBytes, e.UploadedBy).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("return repository: add evidence %w", err)
	}
	return nil
}

func (r *ReturnRepository) ListEvidence(ctx context.Context, returnID uuid.UUID) ([]models.ReturnEvidence, error) {
	var evidence []models.ReturnEvidence
	err := r.db.SelectContext(ctx, &evidence, `
		SELECT * FROM return_evidence WHERE return_request_id = $1 ORDER BY created_at
	`, returnID)
	return evidence, err
}

func (r *ReturnRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ReturnRequest, error) {
	var requests []models.ReturnRequest
	err := r.db.SelectContext(ctx, &requests, `
		SELECT * FROM return_requests
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return requests, err
}

func casOutcome(ctx context.Context, r *ReturnRepository, id uuid.UUID, res interface{ RowsAffected() (int64, error) }) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("return repository: rows affected %w", err)
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return common.ErrStatusConflict
	}
	return nil
}
