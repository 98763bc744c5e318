package repository

import (
	"time"

	"codentor-backend/internal/task/domain"
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	Create(task *domain.Task) error

	// FindByID returns nil, nil when the task does not exist.
	FindByID(id string) (*domain.Task, error)

	// FindByUserID pages through a user's tasks, soonest due first.
	FindByUserID(userID string, status *domain.TaskStatus, limit, offset int) ([]*domain.Task, int64, error)

	// FindDueBetween lists a user's open tasks due in [from, to].
	FindDueBetween(userID string, from, to time.Time) ([]*domain.Task, error)

	// Update writes the user-editable columns. Reminder columns are only
	// written when resetReminders is set, so an edit never undoes a
	// concurrent reminder claim.
	Update(task *domain.Task, resetReminders bool) error

	Delete(id string) error

	// FindReminderCandidates returns open tasks due in [now, now+24h] whose
	// reminder stage is behind the window they are in.
	FindReminderCandidates(now time.Time) ([]*domain.Task, error)

	// ClaimReminder moves a task from one stage to another only if it is
	// still at from. It reports whether this caller won the transition.
	ClaimReminder(id string, from, to domain.ReminderStage) (bool, error)

	// CalendarEventIDs returns the set of calendar event ids the user's
	// tasks are linked to.
	CalendarEventIDs(userID string) (map[string]struct{}, error)

	// FindUnlinkedDueBetween lists tasks with no calendar link due in [from, to].
	FindUnlinkedDueBetween(userID string, from, to time.Time) ([]*domain.Task, error)

	SetCalendarEventID(id string, eventID *string) error
}
