package domain

import "time"

// FCMToken represents a Firebase Cloud Messaging device token for push notifications
type FCMToken struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	UserID     string    `json:"user_id" gorm:"index;not null"`
	Token      string    `json:"-" gorm:"uniqueIndex;not null"` // Don't expose token in JSON
	DeviceInfo string    `json:"device_info"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PushSubscription is a browser Web Push endpoint with its encryption keys.
type PushSubscription struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	Endpoint  string    `json:"endpoint" gorm:"uniqueIndex;not null"`
	P256dh    string    `json:"-" gorm:"not null"`
	Auth      string    `json:"-" gorm:"not null"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
