package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order описывает заказ товара. Жизненным циклом после создания
// владеет машина состояний, статус меняется только через CAS.
type Order struct {
	ID       uuid.UUID `db:"id" json:"id"`
	BuyerID  uuid.UUID `db:"buyer_id" json:"buyer_id"`
	SellerID uuid.UUID `db:"seller_id" json:"seller_id"`

	VariantID uuid.UUID `db:"variant_id" json:"variant_id"`
	Quantity  int       `db:"quantity" json:"quantity"`

	// Если указано принятое коммерческое предложение, GrossAmount
	// обязан совпадать с его ценой, а не с каталожной.
	QuoteID     *uuid.UUID      `db:"quote_id" json:"quote_id,omitempty"`
	GrossAmount decimal.Decimal `db:"gross_amount" json:"gross_amount"`

	// Ссылка, под которой платёжный шлюз знает этот заказ.
	PaymentRef string `db:"payment_ref" json:"payment_ref"`

	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StatusChange — запись аудита смены статуса заказа или бронирования.
type StatusChange struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	OrderID    *uuid.UUID `db:"order_id" json:"order_id,omitempty"`
	BookingID  *uuid.UUID `db:"booking_id" json:"booking_id,omitempty"`
	FromStatus string     `db:"from_status" json:"from_status"`
	ToStatus   string     `db:"to_status" json:"to_status"`
	ActorRole  string     `db:"actor_role" json:"actor_role"`
	ActorID    *uuid.UUID `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
