package repository

import (
	"errors"
	"strings"
	"time"

	authdomain "codentor-backend/internal/auth/domain"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) Create(user *authdomain.User) error {
	now := time.Now().UTC()
	user.ID = uuid.New().String()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return authdomain.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *userRepository) FindByEmail(email string) (*authdomain.User, error) {
	return first[authdomain.User](r.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))))
}

func (r *userRepository) FindByID(id string) (*authdomain.User, error) {
	return first[authdomain.User](r.db.Where("id = ?", id))
}

func (r *userRepository) SetTelegramChatID(userID string, chatID *int64) error {
	return r.db.Model(&authdomain.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"telegram_chat_id": chatID, "updated_at": time.Now().UTC()}).Error
}

// SaveRefreshToken stores a new refresh token and prunes the user's expired
// ones. Other devices keep their tokens.
func (r *userRepository) SaveRefreshToken(token *authdomain.RefreshToken) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND expires_at < ?", token.UserID, time.Now()).Delete(&authdomain.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Create(token).Error
	})
}

func (r *userRepository) FindRefreshToken(token string) (*authdomain.RefreshToken, error) {
	return first[authdomain.RefreshToken](r.db.Where("token = ?", token))
}

func (r *userRepository) DeleteRefreshToken(token string) error {
	return r.db.Where("token = ?", token).Delete(&authdomain.RefreshToken{}).Error
}

func (r *userRepository) DeleteRefreshTokensByUser(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&authdomain.RefreshToken{}).Error
}

// first returns the first row matching q, or nil when there is none.
func first[T any](q *gorm.DB) (*T, error) {
	var row T
	if err := q.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
