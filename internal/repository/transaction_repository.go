package repository

import (
	"context"
	"database/sql"
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

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrNotInEscrow — транзакция не в статусе escrow, денежная операция невозможна.
	ErrNotInEscrow = errors.New("transaction is not in escrow")
)

type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return common.GetByID[models.Transaction](ctx, r.db, "transactions", id, ErrTransactionNotFound)
}

func (r *TransactionRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error) {
	return common.GetByField[models.Transaction](ctx, r.db, "transactions", "order_id", orderID, ErrTransactionNotFound)
}

func (r *TransactionRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Transaction, error) {
	return common.GetByField[models.Transaction](ctx, r.db, "transactions", "booking_id", bookingID, ErrTransactionNotFound)
}

// CreateEscrow вставляет транзакцию сразу в статусе escrow вместе со
// строкой журнала заморозки. Уникальные индексы по order_id/booking_id
// гарантируют одну транзакцию на сделку: повторная вставка под гонкой
// возвращает ErrDuplicate, и вызывающий перечитывает существующую.
func (r *TransactionRepository) CreateEscrow(ctx context.Context, t *models.Transaction) error {
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO transactions
				(order_id, booking_id, seller_id, buyer_id, gateway_ref, payment_method,
				 amount, commission_rate, commission_amount, seller_payout, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at
		`
		err := tx.QueryRowContext(ctx, query,
			t.OrderID, t.BookingID, t.SellerID, t.BuyerID, t.GatewayRef, t.PaymentMethod,
			t.Amount, t.CommissionRate, t.CommissionAmount, t.SellerPayout,
			string(valueobject.TransactionStatusEscrow)).
			Scan(&t.ID, &t.CreatedAt)
		if err != nil {
			return err
		}
		t.Status = string(valueobject.TransactionStatusEscrow)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (transaction_id, user_id, type, amount, description)
			VALUES ($1, $2, $3, $4, $5)
		`, t.ID, t.BuyerID, models.LedgerTypeEscrowHold, t.Amount, "Заморозка оплаты на счёте платформы")
		return err
	})
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.ErrDuplicate
		}
		return fmt.Errorf("transaction repository: create escrow %w", err)
	}
	return nil
}

// Release переводит транзакцию escrow -> released и зачисляет выплату
// продавцу. Проверка статуса выполняется под блокировкой строки, так что
// два конкурентных release не пройдут оба.
func (r *TransactionRepository) Release(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var t models.Transaction
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &t, `SELECT * FROM transactions WHERE id = $1 FOR UPDATE`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTransactionNotFound
			}
			return err
		}
		if t.Status != string(valueobject.TransactionStatusEscrow) {
			return ErrNotInEscrow
		}

		now := time.Now()
		_, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET status = $2, released_at = $3, released_payout = seller_payout
			WHERE id = $1
		`, id, string(valueobject.TransactionStatusReleased), now)
		if err != nil {
			return err
		}
		t.Status = string(valueobject.TransactionStatusReleased)
		t.ReleasedAt = &now
		payout := t.SellerPayout
		t.ReleasedPayout = &payout

		if err := creditSeller(ctx, tx, t.SellerID, t.SellerPayout); err != nil {
			return err
		}

		if err := addLedgerEntry(ctx, tx, t.ID, t.BuyerID, models.LedgerTypeEscrowRelease, t.Amount,
			"Снятие заморозки по завершённой сделке"); err != nil {
			return err
		}
		return addLedgerEntry(ctx, tx, t.ID, t.SellerID, models.LedgerTypePayout, t.SellerPayout,
			"Выплата продавцу за вычетом комиссии")
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Refund переводит транзакцию escrow -> refunded. Сумма возврата может
// быть частичной: остаток выплачивается продавцу, комиссия по остатку
// пересчитана вызывающим по снимку ставки и передаётся готовыми числами.
func (r *TransactionRepository) Refund(ctx context.Context, id uuid.UUID, refundAmount, remainderPayout decimal.Decimal) (*models.Transaction, error) {
	var t models.Transaction
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &t, `SELECT * FROM transactions WHERE id = $1 FOR UPDATE`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTransactionNotFound
			}
			return err
		}
		if t.Status != string(valueobject.TransactionStatusEscrow) {
			return ErrNotInEscrow
		}

		now := time.Now()
		_, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET status = $2, refunded_at = $3, refunded_amount = $4, released_payout = $5
			WHERE id = $1
		`, id, string(valueobject.TransactionStatusRefunded), now, refundAmount, remainderPayout)
		if err != nil {
			return err
		}
		t.Status = string(valueobject.TransactionStatusRefunded)
		t.RefundedAt = &now
		t.RefundedAmount = &refundAmount
		t.ReleasedPayout = &remainderPayout

		if err := addLedgerEntry(ctx, tx, t.ID, t.BuyerID, models.LedgerTypeEscrowRefund, refundAmount,
			"Возврат средств покупателю"); err != nil {
			return err
		}

		if remainderPayout.Sign() > 0 {
			if err := creditSeller(ctx, tx, t.SellerID, remainderPayout); err != nil {
				return err
			}
			if err := addLedgerEntry(ctx, tx, t.ID, t.SellerID, models.LedgerTypePayout, remainderPayout,
				"Выплата продавцу по невозвращённой части"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListLedgerEntries возвращает журнал движения средств по транзакции.
func (r *TransactionRepository) ListLedgerEntries(ctx context.Context, txID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM ledger_entries WHERE transaction_id = $1 ORDER BY created_at
	`, txID)
	return entries, err
}

func creditSeller(ctx context.Context, tx *sqlx.Tx, sellerID uuid.UUID, amount decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO seller_balances (seller_id, available)
		VALUES ($1, $2)
		ON CONFLICT (seller_id) DO UPDATE
		SET available = seller_balances.available + $2, updated_at = NOW()
	`, sellerID, amount)
	return err
}

func addLedgerEntry(ctx context.Context, tx *sqlx.Tx, txID, userID uuid.UUID, entryType string, amount decimal.Decimal, description string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (transaction_id, user_id, type, amount, description)
		VALUES ($1, $2, $3, $4, $5)
	`, txID, userID, entryType, amount, description)
	return err
}
