package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Роли пользователей
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// User представляет участника маркетплейса.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Role         string    `db:"role" json:"role"`
	// Актуальная ставка комиссии продавца в процентах. В расчётах не
	// используется напрямую: на транзакцию пишется её снимок.
	CommissionRate *decimal.Decimal `db:"commission_rate" json:"commission_rate,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// Session — выданный refresh токен. Удаление сессии отзывает токен.
type Session struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	UserAgent    *string   `db:"user_agent" json:"user_agent,omitempty"`
	IPAddress    *string   `db:"ip_address" json:"ip_address,omitempty"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// SellerBalance — доступный баланс продавца, пополняется при release.
type SellerBalance struct {
	SellerID  uuid.UUID       `db:"seller_id" json:"seller_id"`
	Available decimal.Decimal `db:"available" json:"available"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
