package usecase

import (
	"context"
	"time"

	caldomain "codentor-backend/internal/calendar/domain"
	"codentor-backend/internal/task/domain"
)

// TaskUsecase defines the interface for task business logic
type TaskUsecase interface {
	CreateTask(userID string, req CreateTaskRequest) (*domain.Task, error)

	// GetTaskByID hides tasks owned by other users behind ErrTaskNotFound.
	GetTaskByID(userID, taskID string) (*domain.Task, error)

	GetUserTasks(userID string, status *string, limit, offset int) ([]*domain.Task, int64, error)

	// GetTasksDueBetween lists open tasks due in [from, to].
	GetTasksDueBetween(userID string, from, to time.Time) ([]*domain.Task, error)

	// UpdateTask applies a partial update. Moving the due date rearms reminders.
	UpdateTask(userID, taskID string, updates TaskUpdateRequest) (*domain.Task, error)

	// DeleteTask removes the task and, best effort, its calendar event.
	DeleteTask(ctx context.Context, userID, taskID string) error
}

type CreateTaskRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Link        string   `json:"link"`
	DueDate     *string  `json:"dueDate"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
}

// TaskUpdateRequest represents the fields that can be updated. An empty
// dueDate string clears the due date.
type TaskUpdateRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Link        *string   `json:"link,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

// CalendarGateway is the slice of the calendar service tasks depend on.
type CalendarGateway interface {
	CreateEvent(ctx context.Context, userID string, in caldomain.EventInput) (string, error)
	UpdateEvent(ctx context.Context, userID, eventID string, in caldomain.EventInput) error
	DeleteEvent(ctx context.Context, userID, eventID string) error
	ListEvents(ctx context.Context, userID string, timeMin, timeMax time.Time) ([]caldomain.Event, error)
}
