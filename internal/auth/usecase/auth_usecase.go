package usecase

import (
	"fmt"
	"strings"
	"time"

	authdomain "codentor-backend/internal/auth/domain"
	authdto "codentor-backend/internal/auth/dto"
	"codentor-backend/internal/auth/repository"
	"codentor-backend/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo repository.UserRepository
	config   *config.Config
}

func NewAuthUsecase(userRepo repository.UserRepository, cfg *config.Config) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		config:   cfg,
	}
}

func (u *authUsecase) Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error) {
	user, err := u.userRepo.FindByEmail(strings.ToLower(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || !repository.CheckPasswordHash(req.Password, user.Password) {
		return nil, authdomain.ErrInvalidCredentials
	}

	return u.generateTokens(user)
}

func (u *authUsecase) Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error) {
	email := strings.ToLower(req.Email)
	existing, err := u.userRepo.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, authdomain.ErrEmailTaken
	}

	hashedPassword, err := repository.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &authdomain.User{
		Email:    email,
		Password: hashedPassword,
		Name:     req.Name,
	}
	if err := u.userRepo.Create(user); err != nil {
		return nil, err
	}

	return u.generateTokens(user)
}

func (u *authUsecase) RefreshToken(refreshToken string) (*authdto.TokenResponse, error) {
	userID, err := u.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	stored, err := u.userRepo.FindRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.ExpiresAt.Before(time.Now()) {
		return nil, authdomain.ErrInvalidToken
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, authdomain.ErrUserNotFound
	}

	// Rotate: the presented token is single use.
	if err := u.userRepo.DeleteRefreshToken(refreshToken); err != nil {
		return nil, err
	}
	return u.generateTokens(user)
}

func (u *authUsecase) Logout(refreshToken string) error {
	return u.userRepo.DeleteRefreshToken(refreshToken)
}

func (u *authUsecase) LogoutAll(userID string) error {
	return u.userRepo.DeleteRefreshTokensByUser(userID)
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.User, error) {
	userID, err := u.parseToken(tokenString, tokenTypeAccess)
	if err != nil {
		return nil, err
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, authdomain.ErrInvalidToken
	}
	return user, nil
}

func (u *authUsecase) GetUser(userID string) (*authdomain.User, error) {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, authdomain.ErrUserNotFound
	}
	return user, nil
}

func (u *authUsecase) LinkTelegram(userID string, chatID *int64) (*authdomain.User, error) {
	if err := u.userRepo.SetTelegramChatID(userID, chatID); err != nil {
		return nil, err
	}
	return u.GetUser(userID)
}

func (u *authUsecase) generateTokens(user *authdomain.User) (*authdto.TokenResponse, error) {
	now := time.Now()

	accessToken, err := u.sign(jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"typ":     tokenTypeAccess,
		"exp":     now.Add(u.config.JWTAccessExpiry).Unix(),
		"iat":     now.Unix(),
	})
	if err != nil {
		return nil, err
	}

	refreshToken, err := u.sign(jwt.MapClaims{
		"user_id":  user.ID,
		"token_id": uuid.New().String(),
		"typ":      tokenTypeRefresh,
		"exp":      now.Add(u.config.JWTRefreshExpiry).Unix(),
		"iat":      now.Unix(),
	})
	if err != nil {
		return nil, err
	}

	if err := u.userRepo.SaveRefreshToken(&authdomain.RefreshToken{
		Token:     refreshToken,
		UserID:    user.ID,
		ExpiresAt: now.Add(u.config.JWTRefreshExpiry),
	}); err != nil {
		return nil, err
	}

	return &authdto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

func (u *authUsecase) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(u.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// parseToken verifies signature, expiry and token type and returns the user id.
func (u *authUsecase) parseToken(tokenString, wantType string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", authdomain.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", authdomain.ErrInvalidToken
	}
	if typ, _ := claims["typ"].(string); typ != wantType {
		return "", authdomain.ErrInvalidToken
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", authdomain.ErrInvalidToken
	}
	return userID, nil
}
