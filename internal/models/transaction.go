package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Типы записей журнала движения средств
const (
	LedgerTypeEscrowHold    = "escrow_hold"
	LedgerTypeEscrowRelease = "escrow_release"
	LedgerTypeEscrowRefund  = "escrow_refund"
	LedgerTypePayout        = "payout"
)

// Transaction — денежное событие сделки, ровно одна на заказ или
// бронирование. Создаётся только менеджером escrow при подтверждении
// оплаты, удаляется только политикой архивации.
type Transaction struct {
	ID uuid.UUID `db:"id" json:"id"`

	// Взаимоисключающие ссылки на родителя.
	OrderID   *uuid.UUID `db:"order_id" json:"order_id,omitempty"`
	BookingID *uuid.UUID `db:"booking_id" json:"booking_id,omitempty"`

	SellerID uuid.UUID `db:"seller_id" json:"seller_id"`
	BuyerID  uuid.UUID `db:"buyer_id" json:"buyer_id"`

	// Ссылка платёжного шлюза, естественный ключ идемпотентности.
	GatewayRef    string  `db:"gateway_ref" json:"gateway_ref"`
	PaymentMethod *string `db:"payment_method" json:"payment_method,omitempty"`

	Amount decimal.Decimal `db:"amount" json:"amount"`

	// Снимок ставки комиссии на момент создания транзакции.
	// Никогда не пересчитывается из актуальной ставки продавца.
	CommissionRate   decimal.Decimal `db:"commission_rate" json:"commission_rate"`
	CommissionAmount decimal.Decimal `db:"commission_amount" json:"commission_amount"`
	SellerPayout     decimal.Decimal `db:"seller_payout" json:"seller_payout"`

	// Для частичного возврата: сколько вернули покупателю и сколько
	// из остатка ушло продавцу (за вычетом комиссии по снимку ставки).
	RefundedAmount *decimal.Decimal `db:"refunded_amount" json:"refunded_amount,omitempty"`
	ReleasedPayout *decimal.Decimal `db:"released_payout" json:"released_payout,omitempty"`

	Status     string     `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ReleasedAt *time.Time `db:"released_at" json:"released_at,omitempty"`
	RefundedAt *time.Time `db:"refunded_at" json:"refunded_at,omitempty"`
}

// LedgerEntry — строка журнала движения средств, пишется рядом с каждым
// переходом транзакции. Только добавление, без изменений задним числом.
type LedgerEntry struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	TransactionID uuid.UUID       `db:"transaction_id" json:"transaction_id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	Type          string          `db:"type" json:"type"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Description   string          `db:"description" json:"description"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
