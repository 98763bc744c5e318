package usecase

import (
	"context"
	"strings"
	"time"

	"codentor-backend/internal/task/domain"
	"codentor-backend/internal/task/repository"
	"codentor-backend/pkg/logger"
)

// taskUsecase implements TaskUsecase interface
type taskUsecase struct {
	taskRepo repository.TaskRepository
	calendar CalendarGateway
}

// NewTaskUsecase creates a task usecase. calendar may be nil when Google
// Calendar is not configured.
func NewTaskUsecase(taskRepo repository.TaskRepository, calendar CalendarGateway) TaskUsecase {
	return &taskUsecase{taskRepo: taskRepo, calendar: calendar}
}

func (u *taskUsecase) CreateTask(userID string, req CreateTaskRequest) (*domain.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrTitleRequired
	}

	task := &domain.Task{
		UserID:      userID,
		Title:       title,
		Description: req.Description,
		Link:        req.Link,
		Priority:    domain.PriorityMedium,
		Status:      domain.TaskStatusPending,
		Tags:        cleanTags(req.Tags),
	}

	if req.Priority != "" {
		task.Priority = domain.Priority(req.Priority)
		if !task.Priority.Valid() {
			return nil, domain.ErrInvalidPriority
		}
	}
	if req.Status != "" {
		task.Status = domain.TaskStatus(req.Status)
		if !task.Status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
	}

	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}
	task.DueDate = due

	if err := u.taskRepo.Create(task); err != nil {
		return nil, err
	}
	return task, nil
}

func (u *taskUsecase) GetTaskByID(userID, taskID string) (*domain.Task, error) {
	task, err := u.taskRepo.FindByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.UserID != userID {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

func (u *taskUsecase) GetUserTasks(userID string, status *string, limit, offset int) ([]*domain.Task, int64, error) {
	var statusFilter *domain.TaskStatus
	if status != nil && *status != "" {
		s := domain.TaskStatus(*status)
		if !s.Valid() {
			return nil, 0, domain.ErrInvalidStatus
		}
		statusFilter = &s
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	tasks, total, err := u.taskRepo.FindByUserID(userID, statusFilter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	return tasks, total, nil
}

func (u *taskUsecase) GetTasksDueBetween(userID string, from, to time.Time) ([]*domain.Task, error) {
	return u.taskRepo.FindDueBetween(userID, from, to)
}

func (u *taskUsecase) UpdateTask(userID, taskID string, updates TaskUpdateRequest) (*domain.Task, error) {
	task, err := u.GetTaskByID(userID, taskID)
	if err != nil {
		return nil, err
	}

	if updates.Title != nil {
		title := strings.TrimSpace(*updates.Title)
		if title == "" {
			return nil, domain.ErrTitleRequired
		}
		task.Title = title
	}
	if updates.Description != nil {
		task.Description = *updates.Description
	}
	if updates.Link != nil {
		task.Link = *updates.Link
	}
	if updates.Priority != nil {
		p := domain.Priority(*updates.Priority)
		if !p.Valid() {
			return nil, domain.ErrInvalidPriority
		}
		task.Priority = p
	}
	if updates.Status != nil {
		s := domain.TaskStatus(*updates.Status)
		if !s.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		task.Status = s
	}
	if updates.Tags != nil {
		task.Tags = cleanTags(*updates.Tags)
	}

	resetReminders := false
	if updates.DueDate != nil {
		due, err := parseDueDate(updates.DueDate)
		if err != nil {
			return nil, err
		}
		if !sameInstant(task.DueDate, due) {
			task.DueDate = due
			task.ResetReminders()
			resetReminders = true
		}
	}

	if err := u.taskRepo.Update(task, resetReminders); err != nil {
		return nil, err
	}
	return task, nil
}

func (u *taskUsecase) DeleteTask(ctx context.Context, userID, taskID string) error {
	task, err := u.GetTaskByID(userID, taskID)
	if err != nil {
		return err
	}

	if task.Linked() && u.calendar != nil {
		if err := u.calendar.DeleteEvent(ctx, userID, *task.GoogleCalendarEventID); err != nil {
			logger.WithContext(ctx).WithError(err).
				WithField("task_id", task.ID).
				Warn("[Task] Failed to delete calendar event, deleting task anyway")
		}
	}

	return u.taskRepo.Delete(task.ID)
}

func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(*raw))
	if err != nil {
		return nil, domain.ErrInvalidDueDate
	}
	utc := t.UTC()
	return &utc, nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
