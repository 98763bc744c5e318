package domain

import (
	"time"

	"codentor-backend/pkg/apperror"
)

type User struct {
	ID       string `json:"id" gorm:"primaryKey"`
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Password string `json:"-"` // Never return password in JSON
	Name     string `json:"name"`
	// TelegramChatID is set once the user links the reminder bot.
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type RefreshToken struct {
	Token     string    `json:"token" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index"`
	ExpiresAt time.Time `json:"expires_at"`
}

var (
	ErrInvalidCredentials = apperror.Unauthenticated("invalid email or password")
	ErrEmailTaken         = apperror.Conflict("email already registered")
	ErrInvalidToken       = apperror.Unauthenticated("invalid or expired token")
	ErrUserNotFound       = apperror.NotFound("user not found")
)
