package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrovoz/agromarket-backend/internal/models"
	"github.com/agrovoz/agromarket-backend/internal/pkg/apperror"
	"github.com/agrovoz/agromarket-backend/internal/repository"
)

type mockAuthRepo struct {
	mock.Mock
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil {
		user.ID = uuid.New()
	}
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

func (m *mockAuthRepo) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *mockAuthRepo) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *mockAuthRepo) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockAuthRepo) CreateSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockAuthRepo) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockAuthRepo) DeleteSession(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func newTestTokenManager() *TokenManager {
	return NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 720*time.Hour)
}

func TestAuthService_Register_Success(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager())
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "ivan@agrovoz.ru").Return(nil, repository.ErrUserNotFound)
	repo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "ivan@agrovoz.ru" && u.Role == models.RoleProvider && u.PasswordHash != "секретный пароль"
	})).Return(nil)
	repo.On("UpsertProfile", ctx, mock.Anything).Return(nil)
	repo.On("CreateSession", ctx, mock.Anything).Return(nil)

	result, err := svc.Register(ctx, RegisterInput{
		Email:    "ivan@agrovoz.ru",
		Password: "секретный пароль",
		Role:     models.RoleProvider,
	}, nil)
	assert.NoError(t, err)
	assert.NotEmpty(t, result.TokenPair.AccessToken)
	assert.NotEmpty(t, result.TokenPair.RefreshToken)
	assert.Equal(t, "ivan", result.User.Username)
	repo.AssertExpectations(t)
}

func TestAuthService_Register_EmailTaken(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager())
	ctx := context.Background()

	existing := &models.User{ID: uuid.New(), Email: "ivan@agrovoz.ru"}
	repo.On("GetByEmail", ctx, "ivan@agrovoz.ru").Return(existing, nil)

	_, err := svc.Register(ctx, RegisterInput{
		Email:    "ivan@agrovoz.ru",
		Password: "секретный пароль",
	}, nil)
	assert.True(t, apperror.IsConflict(err))
}

func TestAuthService_Register_AdminRoleRejected(t *testing.T) {
	svc := NewAuthService(new(mockAuthRepo), newTestTokenManager())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "ivan@agrovoz.ru",
		Password: "секретный пароль",
		Role:     models.RoleAdmin,
	}, nil)
	assert.True(t, apperror.IsValidation(err))
}

func TestAuthService_Register_ShortPassword(t *testing.T) {
	svc := NewAuthService(new(mockAuthRepo), newTestTokenManager())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "ivan@agrovoz.ru",
		Password: "1234567",
	}, nil)
	assert.True(t, apperror.IsValidation(err))
}

func TestAuthService_Login_Success(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager())
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("секретный пароль"), bcrypt.DefaultCost)
	user := &models.User{ID: uuid.New(), Email: "ivan@agrovoz.ru", PasswordHash: string(hash), Role: models.RoleSeeker, IsActive: true}

	repo.On("GetByEmail", ctx, "ivan@agrovoz.ru").Return(user, nil)
	repo.On("UpdateLastLoginAt", ctx, user.ID).Return(nil)
	repo.On("CreateSession", ctx, mock.Anything).Return(nil)
	repo.On("GetProfile", ctx, user.ID).Return(&models.Profile{UserID: user.ID, DisplayName: "Иван"}, nil)

	result, err := svc.Login(ctx, LoginInput{Email: "ivan@agrovoz.ru", Password: "секретный пароль"}, map[string]string{"ip": "10.0.0.1"})
	assert.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotEmpty(t, result.TokenPair.AccessToken)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager())
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("секретный пароль"), bcrypt.DefaultCost)
	user := &models.User{ID: uuid.New(), Email: "ivan@agrovoz.ru", PasswordHash: string(hash), IsActive: true}
	repo.On("GetByEmail", ctx, "ivan@agrovoz.ru").Return(user, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "ivan@agrovoz.ru", Password: "другой пароль"}, nil)
	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeUnauthorized, apperror.CodeOf(err))
}

func TestAuthService_Login_InactiveAccount(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager())
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "ivan@agrovoz.ru", IsActive: false}
	repo.On("GetByEmail", ctx, "ivan@agrovoz.ru").Return(user, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "ivan@agrovoz.ru", Password: "секретный пароль"}, nil)
	assert.True(t, apperror.IsForbidden(err))
}

func TestAuthService_Refresh_RotatesSession(t *testing.T) {
	repo := new(mockAuthRepo)
	tm := newTestTokenManager()
	svc := NewAuthService(repo, tm)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "ivan@agrovoz.ru", Role: models.RoleSeeker, IsActive: true}
	pair, _, err := tm.GeneratePair(user)
	assert.NoError(t, err)

	repo.On("GetSessionByToken", ctx, pair.RefreshToken).Return(&models.Session{UserID: user.ID, RefreshToken: pair.RefreshToken}, nil)
	repo.On("GetByID", ctx, user.ID).Return(user, nil)
	repo.On("DeleteSession", ctx, pair.RefreshToken).Return(nil)
	repo.On("CreateSession", ctx, mock.Anything).Return(nil)

	newPair, err := svc.Refresh(ctx, pair.RefreshToken, nil)
	assert.NoError(t, err)
	assert.NotEmpty(t, newPair.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)
	repo.AssertExpectations(t)
}

func TestAuthService_Refresh_AfterLogout(t *testing.T) {
	repo := new(mockAuthRepo)
	tm := newTestTokenManager()
	svc := NewAuthService(repo, tm)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "ivan@agrovoz.ru", Role: models.RoleSeeker}
	pair, _, err := tm.GeneratePair(user)
	assert.NoError(t, err)

	repo.On("GetSessionByToken", ctx, pair.RefreshToken).Return(nil, repository.ErrSessionNotFound)

	_, err = svc.Refresh(ctx, pair.RefreshToken, nil)
	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeUnauthorized, apperror.CodeOf(err))
}

func TestAuthService_Refresh_GarbageToken(t *testing.T) {
	svc := NewAuthService(new(mockAuthRepo), newTestTokenManager())

	_, err := svc.Refresh(context.Background(), "не-jwt-вовсе", nil)
	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeUnauthorized, apperror.CodeOf(err))
}

func TestAuthService_Logout_UnknownSession(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, newTestTokenManager())
	ctx := context.Background()

	repo.On("DeleteSession", ctx, "stale-token").Return(repository.ErrSessionNotFound)

	err := svc.Logout(ctx, "stale-token")
	assert.True(t, apperror.IsNotFound(err))
}
