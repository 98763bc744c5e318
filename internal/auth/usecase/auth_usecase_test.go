package usecase

import (
	"testing"
	"time"

	authdomain "codentor-backend/internal/auth/domain"
	authdto "codentor-backend/internal/auth/dto"
	"codentor-backend/internal/auth/repository"
	"codentor-backend/pkg/config"
	"codentor-backend/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUsecase(t *testing.T) AuthUsecase {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&authdomain.User{}, &authdomain.RefreshToken{}))

	return NewAuthUsecase(repository.NewUserRepository(db), &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 24 * time.Hour,
	})
}

func TestRegisterLoginAndValidate(t *testing.T) {
	uc := newTestUsecase(t)

	reg, err := uc.Register(&authdto.RegisterRequest{Email: "Ana@Example.com", Password: "secret1", Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", reg.User.Email)

	_, err = uc.Register(&authdto.RegisterRequest{Email: "ana@example.com", Password: "secret1", Name: "Ana"})
	assert.ErrorIs(t, err, authdomain.ErrEmailTaken)

	_, err = uc.Login(&authdto.LoginRequest{Email: "ana@example.com", Password: "wrong!!"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)

	login, err := uc.Login(&authdto.LoginRequest{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)

	user, err := uc.ValidateToken(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, user.ID)

	_, err = uc.ValidateToken(login.RefreshToken)
	assert.ErrorIs(t, err, authdomain.ErrInvalidToken, "refresh tokens are not access tokens")
}

func TestRefreshRotatesToken(t *testing.T) {
	uc := newTestUsecase(t)

	reg, err := uc.Register(&authdto.RegisterRequest{Email: "bo@example.com", Password: "secret1", Name: "Bo"})
	require.NoError(t, err)

	next, err := uc.RefreshToken(reg.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, reg.RefreshToken, next.RefreshToken)

	_, err = uc.RefreshToken(reg.RefreshToken)
	assert.ErrorIs(t, err, authdomain.ErrInvalidToken)

	require.NoError(t, uc.Logout(next.RefreshToken))
	_, err = uc.RefreshToken(next.RefreshToken)
	assert.ErrorIs(t, err, authdomain.ErrInvalidToken)
}

func TestLogoutAllRevokesEveryDevice(t *testing.T) {
	uc := newTestUsecase(t)

	reg, err := uc.Register(&authdto.RegisterRequest{Email: "cy@example.com", Password: "secret1", Name: "Cy"})
	require.NoError(t, err)
	laptop, err := uc.Login(&authdto.LoginRequest{Email: "cy@example.com", Password: "secret1"})
	require.NoError(t, err)

	other, err := uc.Register(&authdto.RegisterRequest{Email: "di@example.com", Password: "secret1", Name: "Di"})
	require.NoError(t, err)

	require.NoError(t, uc.LogoutAll(reg.User.ID))

	_, err = uc.RefreshToken(reg.RefreshToken)
	assert.ErrorIs(t, err, authdomain.ErrInvalidToken)
	_, err = uc.RefreshToken(laptop.RefreshToken)
	assert.ErrorIs(t, err, authdomain.ErrInvalidToken)

	_, err = uc.RefreshToken(other.RefreshToken)
	assert.NoError(t, err, "other users keep their sessions")
}

func TestLinkTelegram(t *testing.T) {
	uc := newTestUsecase(t)

	reg, err := uc.Register(&authdto.RegisterRequest{Email: "cy@example.com", Password: "secret1", Name: "Cy"})
	require.NoError(t, err)

	chatID := int64(424242)
	user, err := uc.LinkTelegram(reg.User.ID, &chatID)
	require.NoError(t, err)
	require.NotNil(t, user.TelegramChatID)
	assert.Equal(t, chatID, *user.TelegramChatID)

	user, err = uc.LinkTelegram(reg.User.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, user.TelegramChatID)

	_, err = uc.GetUser("missing")
	assert.ErrorIs(t, err, authdomain.ErrUserNotFound)
}
