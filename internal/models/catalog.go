package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product описывает товар продавца.
type Product struct {
	ID          uuid.UUID `db:"id" json:"id"`
	SellerID    uuid.UUID `db:"seller_id" json:"seller_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ProductVariant — вариант товара со своей ценой.
type ProductVariant struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	ProductID uuid.UUID       `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
}

// ServicePackage — пакет услуги продавца для бронирований.
type ServicePackage struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	SellerID        uuid.UUID       `db:"seller_id" json:"seller_id"`
	Title           string          `db:"title" json:"title"`
	Description     string          `db:"description" json:"description"`
	Price           decimal.Decimal `db:"price" json:"price"`
	DurationMinutes int             `db:"duration_minutes" json:"duration_minutes"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Статусы коммерческого предложения
const (
	QuoteStatusPending  = "pending"
	QuoteStatusAccepted = "accepted"
	QuoteStatusRejected = "rejected"
	QuoteStatusExpired  = "expired"
)

// Quote — согласованная цена продавца для конкретного покупателя.
// Принятое предложение замещает каталожную цену при создании сделки.
type Quote struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	SellerID  uuid.UUID       `db:"seller_id" json:"seller_id"`
	BuyerID   uuid.UUID       `db:"buyer_id" json:"buyer_id"`
	VariantID *uuid.UUID      `db:"variant_id" json:"variant_id,omitempty"`
	PackageID *uuid.UUID      `db:"package_id" json:"package_id,omitempty"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	ExpiresAt *time.Time      `db:"expires_at" json:"expires_at,omitempty"`
}

// BoostPackage — платное продвижение, потребляется как конфигурация.
type BoostPackage struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Price        decimal.Decimal `db:"price" json:"price"`
	DurationDays int             `db:"duration_days" json:"duration_days"`
}
