package usecase

import (
	authdomain "codentor-backend/internal/auth/domain"
	authdto "codentor-backend/internal/auth/dto"
)

// AuthUsecase defines the interface for authentication business logic
type AuthUsecase interface {
	Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error)
	RefreshToken(refreshToken string) (*authdto.TokenResponse, error)
	Logout(refreshToken string) error
	// LogoutAll revokes every refresh token the user holds.
	LogoutAll(userID string) error
	ValidateToken(token string) (*authdomain.User, error)
	GetUser(userID string) (*authdomain.User, error)
	LinkTelegram(userID string, chatID *int64) (*authdomain.User, error)
}
