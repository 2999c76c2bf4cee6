package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Booking описывает бронирование услуги. Структурно параллелен заказу:
// та же денежная механика, свой набор статусов.
type Booking struct {
	ID       uuid.UUID `db:"id" json:"id"`
	BuyerID  uuid.UUID `db:"buyer_id" json:"buyer_id"`
	SellerID uuid.UUID `db:"seller_id" json:"seller_id"`

	PackageID   uuid.UUID `db:"package_id" json:"package_id"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`

	QuoteID     *uuid.UUID      `db:"quote_id" json:"quote_id,omitempty"`
	GrossAmount decimal.Decimal `db:"gross_amount" json:"gross_amount"`

	PaymentRef string `db:"payment_ref" json:"payment_ref"`

	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
