package domain

import (
	"time"

	"codentor-backend/pkg/apperror"
)

// Priority represents task priority level
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Task is a to-do item, optionally mirrored to a Google Calendar event.
type Task struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	UserID      string     `json:"userId" gorm:"index;not null;uniqueIndex:idx_task_user_event,priority:1"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description"`
	Link        string     `json:"link,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty" gorm:"index"`
	Priority    Priority   `json:"priority" gorm:"default:medium"`
	Status      TaskStatus `json:"status" gorm:"default:pending;index"`
	Tags        []string   `json:"tags" gorm:"serializer:json"`

	GoogleCalendarEventID *string `json:"googleCalendarEventId,omitempty" gorm:"uniqueIndex:idx_task_user_event,priority:2"`

	ReminderStage   ReminderStage `json:"reminderStage" gorm:"not null;default:0"`
	ReminderSent    bool          `json:"reminderSent" gorm:"not null;default:false"`
	Reminder24hSent bool          `json:"reminder24hSent" gorm:"column:reminder_24h_sent;not null;default:false"`
	Reminder1hSent  bool          `json:"reminder1hSent" gorm:"column:reminder_1h_sent;not null;default:false"`
	Reminder5mSent  bool          `json:"reminder5mSent" gorm:"column:reminder_5m_sent;not null;default:false"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Linked reports whether the task mirrors a calendar event.
func (t *Task) Linked() bool {
	return t.GoogleCalendarEventID != nil && *t.GoogleCalendarEventID != ""
}

// ResetReminders rearms every reminder window, used when the due date moves.
func (t *Task) ResetReminders() {
	t.ReminderStage = StageNotDue
	t.ReminderSent = false
	t.Reminder24hSent = false
	t.Reminder1hSent = false
	t.Reminder5mSent = false
}

var (
	ErrTaskNotFound    = apperror.NotFound("task not found")
	ErrTitleRequired   = apperror.Validation("title is required")
	ErrInvalidPriority = apperror.Validation("priority must be one of high, medium, low")
	ErrInvalidStatus   = apperror.Validation("status must be one of pending, in-progress, completed")
	ErrInvalidDueDate  = apperror.Validation("dueDate must be an RFC 3339 timestamp")
)
