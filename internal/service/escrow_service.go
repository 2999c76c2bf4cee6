package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/domain/valueobject"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository/common"
)

// TransactionStore — контракт хранилища транзакций для менеджера escrow.
type TransactionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error)
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Transaction, error)
	CreateEscrow(ctx context.Context, t *models.Transaction) error
	Release(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Refund(ctx context.Context, id uuid.UUID, refundAmount, remainderPayout decimal.Decimal) (*models.Transaction, error)
	ListLedgerEntries(ctx context.Context, txID uuid.UUID) ([]models.LedgerEntry, error)
}

// SellerDirectory — доступ к ставке комиссии и балансу продавца.
type SellerDirectory interface {
	GetSellerCommissionRate(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error)
	GetSellerBalance(ctx context.Context, sellerID uuid.UUID) (*models.SellerBalance, error)
}

// EscrowService владеет движением денег: подтверждение оплаты, выпуск
// средств продавцу и возврат покупателю. Транзакции создаются только здесь.
type EscrowService struct {
	transactions TransactionStore
	sellers      SellerDirectory
}

func NewEscrowService(transactions TransactionStore, sellers SellerDirectory) *EscrowService {
	return &EscrowService{transactions: transactions, sellers: sellers}
}

// ConfirmPaymentParams — параметры подтверждения оплаты от шлюза.
// Заполняется ровно одна из ссылок OrderID/BookingID.
type ConfirmPaymentParams struct {
	OrderID       *uuid.UUID
	BookingID     *uuid.UUID
	SellerID      uuid.UUID
	BuyerID       uuid.UUID
	Amount        decimal.Decimal
	GatewayRef    string
	PaymentMethod *string
}

// ConfirmPayment создаёт escrow-транзакцию по подтверждённой оплате.
// Идемпотентна по сделке: повторное подтверждение с той же суммой
// возвращает существующую транзакцию без побочных эффектов, повторное
// подтверждение с другой суммой — ошибка AmountMismatch, требующая
// ручной сверки.
func (s *EscrowService) ConfirmPayment(ctx context.Context, p ConfirmPaymentParams) (*models.Transaction, error) {
	if (p.OrderID == nil) == (p.BookingID == nil) {
		return nil, apperror.New(apperror.ErrCodeValidation, "транзакция привязывается ровно к одному заказу или бронированию")
	}

	amount, err := valueobject.NewGrossAmount(p.Amount)
	if err != nil {
		return nil, err
	}

	if existing, err := s.findExisting(ctx, p); err == nil {
		return s.matchExisting(existing, amount)
	} else if !errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, err
	}

	// Снимок ставки комиссии делается здесь и больше не пересчитывается,
	// даже если ставка продавца изменится до завершения сделки.
	rate, err := s.sellers.GetSellerCommissionRate(ctx, p.SellerID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить ставку комиссии продавца")
	}

	split, err := valueobject.SplitCommission(amount, rate)
	if err != nil {
		return nil, err
	}

	t := &models.Transaction{
		OrderID:          p.OrderID,
		BookingID:        p.BookingID,
		SellerID:         p.SellerID,
		BuyerID:          p.BuyerID,
		GatewayRef:       p.GatewayRef,
		PaymentMethod:    p.PaymentMethod,
		Amount:           amount,
		CommissionRate:   rate,
		CommissionAmount: split.Commission,
		SellerPayout:     split.SellerPayout,
	}

	if err := s.transactions.CreateEscrow(ctx, t); err != nil {
		if errors.Is(err, common.ErrDuplicate) {
			// Гонка двух подтверждений: вставку выиграл другой писатель,
			// перечитываем его результат и сверяем сумму.
			existing, getErr := s.findExisting(ctx, p)
			if getErr != nil {
				return nil, getErr
			}
			return s.matchExisting(existing, amount)
		}
		return nil, err
	}
	return t, nil
}

// Release выпускает средства продавцу. Легален только из escrow,
// повторный вызов возвращает InvalidState без изменения состояния.
func (s *EscrowService) Release(ctx context.Context, txID uuid.UUID) (*models.Transaction, error) {
	t, err := s.transactions.Release(ctx, txID)
	if err != nil {
		return nil, s.mapStateErr(err)
	}
	return t, nil
}

// Refund возвращает покупателю указанную сумму. При частичном возврате
// остаток выплачивается продавцу: комиссия пересчитывается на уменьшенную
// сумму по исходной снятой ставке, а не по актуальной ставке продавца.
func (s *EscrowService) Refund(ctx context.Context, txID uuid.UUID, amount decimal.Decimal) (*models.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, txID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.ErrTransactionNotFound
		}
		return nil, err
	}

	amount = valueobject.Round2(amount)
	if amount.Sign() <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма возврата должна быть положительной")
	}
	if amount.GreaterThan(t.Amount) {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма возврата превышает сумму транзакции")
	}

	remainderPayout := decimal.Zero
	if remainder := t.Amount.Sub(amount); remainder.Sign() > 0 {
		split, err := valueobject.SplitCommission(remainder, t.CommissionRate)
		if err != nil {
			return nil, err
		}
		remainderPayout = split.SellerPayout
	}

	updated, err := s.transactions.Refund(ctx, txID, amount, remainderPayout)
	if err != nil {
		return nil, s.mapStateErr(err)
	}
	return updated, nil
}

func (s *EscrowService) GetTransaction(ctx context.Context, txID uuid.UUID) (*models.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, txID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

// GetByFulfillable возвращает транзакцию по заказу или бронированию.
func (s *EscrowService) GetByFulfillable(ctx context.Context, orderID, bookingID *uuid.UUID) (*models.Transaction, error) {
	p := ConfirmPaymentParams{OrderID: orderID, BookingID: bookingID}
	t, err := s.findExisting(ctx, p)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *EscrowService) GetSellerBalance(ctx context.Context, sellerID uuid.UUID) (*models.SellerBalance, error) {
	return s.sellers.GetSellerBalance(ctx, sellerID)
}

func (s *EscrowService) ListLedgerEntries(ctx context.Context, txID uuid.UUID) ([]models.LedgerEntry, error) {
	return s.transactions.ListLedgerEntries(ctx, txID)
}

func (s *EscrowService) findExisting(ctx context.Context, p ConfirmPaymentParams) (*models.Transaction, error) {
	if p.OrderID != nil {
		return s.transactions.GetByOrderID(ctx, *p.OrderID)
	}
	return s.transactions.GetByBookingID(ctx, *p.BookingID)
}

func (s *EscrowService) matchExisting(existing *models.Transaction, amount decimal.Decimal) (*models.Transaction, error) {
	if valueobject.SameAmount(existing.Amount, amount) {
		return existing, nil
	}
	return nil, apperror.New(apperror.ErrCodeAmountMismatch,
		"повторное подтверждение оплаты с другой суммой, требуется ручная сверка")
}

func (s *EscrowService) mapStateErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrTransactionNotFound):
		return apperror.ErrTransactionNotFound
	case errors.Is(err, repository.ErrNotInEscrow):
		return apperror.New(apperror.ErrCodeInvalidState, "транзакция не находится в escrow")
	default:
		return err
	}
}
