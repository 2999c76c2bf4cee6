package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository/common"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrNotSeller     = errors.New("user is not a seller")
	ErrRateNotNumber = errors.New("seller commission rate is not set")
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, name, role, commission_rate)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, u.Email, u.PasswordHash, u.Name, u.Role, u.CommissionRate).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("user repository: create %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return common.GetByID[models.User](ctx, r.db, "users", id, ErrUserNotFound)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return common.GetByField[models.User](ctx, r.db, "users", "email", email, ErrUserNotFound)
}

// GetSellerCommissionRate возвращает актуальную ставку комиссии продавца.
// Снимок ставки делается вызывающей стороной в момент создания транзакции.
func (r *UserRepository) GetSellerCommissionRate(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error) {
	var rate sql.NullString
	err := r.db.GetContext(ctx, &rate, `SELECT commission_rate FROM users WHERE id = $1 AND role = 'seller'`, sellerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrNotSeller
		}
		return decimal.Zero, fmt.Errorf("user repository: get commission rate %w", err)
	}
	if !rate.Valid {
		return decimal.Zero, ErrRateNotNumber
	}
	parsed, err := decimal.NewFromString(rate.String)
	if err != nil {
		return decimal.Zero, fmt.Errorf("user repository: parse commission rate %w", err)
	}
	return parsed, nil
}

// CreateSession сохраняет выданный refresh токен.
func (r *UserRepository) CreateSession(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (user_id, refresh_token, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, s.UserID, s.RefreshToken, s.UserAgent, s.IPAddress, s.ExpiresAt).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("user repository: create session %w", err)
	}
	return nil
}

// DeleteSession отзывает refresh токен. Отсутствие строки не ошибка.
func (r *UserRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, refreshToken); err != nil {
		return fmt.Errorf("user repository: delete session %w", err)
	}
	return nil
}

// HasSession проверяет, что refresh токен выдан и не отозван.
func (r *UserRepository) HasSession(ctx context.Context, refreshToken string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE refresh_token = $1 AND expires_at > NOW())`, refreshToken)
	if err != nil {
		return false, fmt.Errorf("user repository: has session %w", err)
	}
	return exists, nil
}

// GetSellerBalance возвращает баланс продавца, создаёт строку при первом запросе.
func (r *UserRepository) GetSellerBalance(ctx context.Context, sellerID uuid.UUID) (*models.SellerBalance, error) {
	var balance models.SellerBalance
	query := `
		INSERT INTO seller_balances (seller_id, available)
		VALUES ($1, 0)
		ON CONFLICT (seller_id) DO UPDATE SET updated_at = NOW()
		RETURNING seller_id, available, updated_at
	`
	if err := r.db.GetContext(ctx, &balance, query, sellerID); err != nil {
		return nil, fmt.Errorf("user repository: get seller balance %w", err)
	}
	return &balance, nil
}
