package repository

import (
	"time"

	authdomain "codentor-backend/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FCMTokenRepository stores Firebase device tokens per user.
type FCMTokenRepository interface {
	SaveToken(userID, token, deviceInfo string) error
	GetTokensByUserID(userID string) ([]authdomain.FCMToken, error)
	DeleteToken(token string) error
	DeleteUserToken(userID, token string) error
}

type fcmTokenRepository struct {
	db *gorm.DB
}

func NewFCMTokenRepository(db *gorm.DB) FCMTokenRepository {
	return &fcmTokenRepository{db: db}
}

// SaveToken saves or updates an FCM token for a user (atomic upsert).
// A token moving to another account follows the latest login.
func (r *fcmTokenRepository) SaveToken(userID, token, deviceInfo string) error {
	now := time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "device_info", "updated_at"}),
	}).Create(&authdomain.FCMToken{
		ID:         uuid.New().String(),
		UserID:     userID,
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}).Error
}

func (r *fcmTokenRepository) GetTokensByUserID(userID string) ([]authdomain.FCMToken, error) {
	var tokens []authdomain.FCMToken
	if err := r.db.Where("user_id = ?", userID).Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeleteToken removes a token regardless of owner; used to prune tokens FCM rejected.
func (r *fcmTokenRepository) DeleteToken(token string) error {
	return r.db.Where("token = ?", token).Delete(&authdomain.FCMToken{}).Error
}

func (r *fcmTokenRepository) DeleteUserToken(userID, token string) error {
	return r.db.Where("user_id = ? AND token = ?", userID, token).Delete(&authdomain.FCMToken{}).Error
}
