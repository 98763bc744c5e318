package repository

import (
	"time"

	authdomain "codentor-backend/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PushSubscriptionRepository interface {
	Save(sub *authdomain.PushSubscription) error
	FindByUserID(userID string) ([]authdomain.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
	DeleteUserEndpoint(userID, endpoint string) error
}

type pushSubscriptionRepository struct {
	db *gorm.DB
}

func NewPushSubscriptionRepository(db *gorm.DB) PushSubscriptionRepository {
	return &pushSubscriptionRepository{db: db}
}

// Save upserts on endpoint; browsers rotate keys for the same endpoint.
func (r *pushSubscriptionRepository) Save(sub *authdomain.PushSubscription) error {
	now := time.Now()
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth", "user_agent", "updated_at"}),
	}).Create(sub).Error
}

func (r *pushSubscriptionRepository) FindByUserID(userID string) ([]authdomain.PushSubscription, error) {
	var subs []authdomain.PushSubscription
	if err := r.db.Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *pushSubscriptionRepository) DeleteByEndpoint(endpoint string) error {
	return r.db.Where("endpoint = ?", endpoint).Delete(&authdomain.PushSubscription{}).Error
}

func (r *pushSubscriptionRepository) DeleteUserEndpoint(userID, endpoint string) error {
	return r.db.Where("user_id = ? AND endpoint = ?", userID, endpoint).Delete(&authdomain.PushSubscription{}).Error
}
