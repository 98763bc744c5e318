package repository

import (
	"time"

	"codentor-backend/internal/notification/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(n *domain.Notification) error
	FindByUserID(userID string, unreadOnly bool, limit, offset int) ([]*domain.Notification, int64, error)
	CountUnread(userID string) (int64, error)
	// MarkRead reports false when the notification does not belong to userID.
	MarkRead(userID, id string) (bool, error)
	MarkAllRead(userID string) (int64, error)
}

type gormNotificationRepository struct {
	db *gorm.DB
}

func NewGormNotificationRepository(db *gorm.DB) NotificationRepository {
	return &gormNotificationRepository{db: db}
}

func (r *gormNotificationRepository) Create(n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return r.db.Create(n).Error
}

func (r *gormNotificationRepository) FindByUserID(userID string, unreadOnly bool, limit, offset int) ([]*domain.Notification, int64, error) {
	query := r.db.Model(&domain.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	notifications := make([]*domain.Notification, 0)
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *gormNotificationRepository) CountUnread(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&domain.Notification{}).Where("user_id = ? AND read = ?", userID, false).Count(&count).Error
	return count, err
}

func (r *gormNotificationRepository) MarkRead(userID, id string) (bool, error) {
	result := r.db.Model(&domain.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormNotificationRepository) MarkAllRead(userID string) (int64, error) {
	result := r.db.Model(&domain.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	return result.RowsAffected, result.Error
}
