package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/models"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/pkg/apperror"
	"github.com/ranukawijayapala-vaaney/vaaney-backend/internal/repository"
)

type mockAuthRepo struct {
	mock.Mock
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockAuthRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) CreateSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockAuthRepo) DeleteSession(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *mockAuthRepo) HasSession(ctx context.Context, refreshToken string) (bool, error) {
	args := m.Called(ctx, refreshToken)
	return args.Bool(0), args.Error(1)
}

func newTestTokenManager() *TokenManager {
	return NewTokenManager(
		"test-access-secret-for-unit-tests",
		"test-refresh-secret-for-unit-tests",
		15*time.Minute,
		30*24*time.Hour,
	)
}

func TestAuthService_Register_Buyer(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager(), d("10"))
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil)
	repo.On("CreateSession", ctx, mock.AnythingOfType("*models.Session")).Return(nil)

	res, err := svc.Register(ctx, RegisterInput{
		Email:    "  Buyer@Example.COM ",
		Password: "password123",
		Name:     "Покупатель",
		Role:     models.RoleBuyer,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "buyer@example.com", res.User.Email)
	assert.Nil(t, res.User.CommissionRate)
	assert.NotEmpty(t, res.TokenPair.AccessToken)
	assert.NotEmpty(t, res.TokenPair.RefreshToken)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(res.User.PasswordHash), []byte("password123")))
}

func TestAuthService_Register_SellerGetsDefaultRate(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager(), d("12.5"))
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil)
	repo.On("CreateSession", ctx, mock.AnythingOfType("*models.Session")).Return(nil)

	res, err := svc.Register(ctx, RegisterInput{
		Email:    "seller@example.com",
		Password: "password123",
		Name:     "Продавец",
		Role:     models.RoleSeller,
	}, nil)
	require.NoError(t, err)

	require.NotNil(t, res.User.CommissionRate)
	assert.True(t, res.User.CommissionRate.Equal(d("12.5")))
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc := NewAuthService(new(mockAuthRepo), newTestTokenManager(), d("10"))
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "no-at-sign", Password: "password123"}, nil)
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))

	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "short"}, nil)
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))

	// Админом нельзя зарегистрироваться через публичный endpoint.
	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "password123", Role: models.RoleAdmin}, nil)
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))
}

func TestAuthService_Register_EmailTaken(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager(), d("10"))
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(repository.ErrEmailTaken)

	_, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "password123"}, nil)
	assert.True(t, apperror.IsConflict(err))
}

func TestAuthService_Login(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager(), d("10"))
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{ID: uuid.New(), Email: "a@b.c", PasswordHash: string(hash), Role: models.RoleBuyer}

	repo.On("GetByEmail", ctx, "a@b.c").Return(user, nil)
	repo.On("CreateSession", ctx, mock.AnythingOfType("*models.Session")).Return(nil)

	res, err := svc.Login(ctx, LoginInput{Email: "a@b.c", Password: "password123"}, map[string]string{"ip": "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)
	assert.NotEmpty(t, res.TokenPair.AccessToken)
}

func TestAuthService_Login_BadCredentials(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager(), d("10"))
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	user := &models.User{ID: uuid.New(), Email: "a@b.c", PasswordHash: string(hash)}

	repo.On("GetByEmail", ctx, "a@b.c").Return(user, nil)
	repo.On("GetByEmail", ctx, "ghost@b.c").Return(nil, repository.ErrUserNotFound)

	// Неверный пароль и несуществующий email дают одинаковую ошибку.
	_, err := svc.Login(ctx, LoginInput{Email: "a@b.c", Password: "wrong-password"}, nil)
	assert.True(t, apperror.Is(err, apperror.ErrCodeUnauthorized))

	_, err = svc.Login(ctx, LoginInput{Email: "ghost@b.c", Password: "password123"}, nil)
	assert.True(t, apperror.Is(err, apperror.ErrCodeUnauthorized))
}

func TestAuthService_Refresh_RotatesToken(t *testing.T) {
	repo := new(mockAuthRepo)
	tokens := newTestTokenManager()
	svc := NewAuthService(repo, tokens, d("10"))
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Role: models.RoleBuyer}
	pair, _, err := tokens.GeneratePair(user)
	require.NoError(t, err)

	repo.On("HasSession", ctx, pair.RefreshToken).Return(true, nil)
	repo.On("GetByID", ctx, user.ID).Return(user, nil)
	repo.On("DeleteSession", ctx, pair.RefreshToken).Return(nil)
	repo.On("CreateSession", ctx, mock.AnythingOfType("*models.Session")).Return(nil)

	newPair, err := svc.Refresh(ctx, pair.RefreshToken, nil)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)
	repo.AssertCalled(t, "DeleteSession", ctx, pair.RefreshToken)
}

func TestAuthService_Refresh_RevokedToken(t *testing.T) {
	repo := new(mockAuthRepo)
	tokens := newTestTokenManager()
	svc := NewAuthService(repo, tokens, d("10"))
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Role: models.RoleBuyer}
	pair, _, err := tokens.GeneratePair(user)
	require.NoError(t, err)

	repo.On("HasSession", ctx, pair.RefreshToken).Return(false, nil)

	_, err = svc.Refresh(ctx, pair.RefreshToken, nil)
	assert.True(t, apperror.Is(err, apperror.ErrCodeUnauthorized))
}

func TestAuthService_Refresh_GarbageToken(t *testing.T) {
	svc := NewAuthService(new(mockAuthRepo), newTestTokenManager(), d("10"))

	_, err := svc.Refresh(context.Background(), "not-a-jwt", nil)
	assert.True(t, apperror.Is(err, apperror.ErrCodeUnauthorized))
}

func TestTokenManager_ParseAccess(t *testing.T) {
	tokens := newTestTokenManager()
	user := &models.User{ID: uuid.New(), Role: models.RoleSeller}

	pair, _, err := tokens.GeneratePair(user)
	require.NoError(t, err)

	userID, role, err := tokens.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, models.RoleSeller, role)

	// Refresh токен подписан другим секретом и как access не проходит.
	_, _, err = tokens.ParseAccess(pair.RefreshToken)
	assert.Error(t, err)
}
