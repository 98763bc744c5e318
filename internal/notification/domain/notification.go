package domain

import (
	"time"

	"codentor-backend/pkg/apperror"
)

const (
	TypeReminder = "reminder"
	TypeDueSoon  = "due_soon"
	TypeTest     = "test"
)

// ActorSystem marks notifications raised by the backend rather than a user.
const ActorSystem = "system"

// Notification is an in-app notification shown in the bell menu.
type Notification struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"userId" gorm:"index;not null"`
	ActorID   *string   `json:"actorId,omitempty" gorm:"index"`
	TaskID    *string   `json:"taskId,omitempty" gorm:"index"`
	Type      string    `json:"type" gorm:"not null"`
	Title     string    `json:"title" gorm:"not null"`
	Message   string    `json:"message"`
	Read      bool      `json:"read" gorm:"not null;default:false;index"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskRef is the task summary embedded in realtime notification events.
type TaskRef struct {
	Title   string     `json:"title"`
	DueDate *time.Time `json:"dueDate"`
}

// Event is the realtime payload: {"notification": {..., "task": {...}}}.
type Event struct {
	Notification EventBody `json:"notification"`
}

type EventBody struct {
	Notification
	Task *TaskRef `json:"task,omitempty"`
}

var ErrNotificationNotFound = apperror.NotFound("notification not found")
