package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	caldomain "codentor-backend/internal/calendar/domain"
	"codentor-backend/internal/task/domain"
	"codentor-backend/internal/task/repository"
	"codentor-backend/pkg/apperror"
	"codentor-backend/pkg/fuzzy"
	"codentor-backend/pkg/logger"

	"gorm.io/gorm"
)

const untitledEvent = "Untitled Event"

// SyncAction is a single-task export to Google Calendar.
type SyncAction string

const (
	SyncActionCreate SyncAction = "create"
	SyncActionUpdate SyncAction = "update"
	SyncActionDelete SyncAction = "delete"
)

var (
	ErrAlreadyLinked    = apperror.Conflict("task is already linked to a calendar event")
	ErrNotLinked        = apperror.Validation("task is not linked to a calendar event")
	ErrDueDateRequired  = apperror.Validation("task needs a due date to be synced")
	ErrInvalidAction    = apperror.Validation("action must be one of create, update, delete")
	ErrCalendarDisabled = apperror.Configuration("google calendar is not configured")
)

type SyncOptions struct {
	// Window is how far ahead ImportFromCalendar looks.
	Window time.Duration
	// DedupEnabled links an incoming event to an existing unlinked task with
	// a similar title due at about the same time instead of importing it.
	DedupEnabled bool
	Threshold    float64
	Tolerance    time.Duration
}

func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		Window:       30 * 24 * time.Hour,
		DedupEnabled: true,
		Threshold:    0.8,
		Tolerance:    15 * time.Minute,
	}
}

type ImportResult struct {
	ImportedCount int `json:"importedCount"`
	LinkedCount   int `json:"linkedCount"`
}

type SyncUsecase interface {
	ImportFromCalendar(ctx context.Context, userID string) (*ImportResult, error)
	ApplyAction(ctx context.Context, userID, taskID string, action SyncAction) (*domain.Task, error)
}

type syncUsecase struct {
	taskRepo repository.TaskRepository
	calendar CalendarGateway
	opts     SyncOptions
	now      func() time.Time
}

func NewSyncUsecase(taskRepo repository.TaskRepository, calendar CalendarGateway, opts SyncOptions) SyncUsecase {
	if opts.Window <= 0 {
		opts.Window = DefaultSyncOptions().Window
	}
	return &syncUsecase{taskRepo: taskRepo, calendar: calendar, opts: opts, now: time.Now}
}

func (s *syncUsecase) ImportFromCalendar(ctx context.Context, userID string) (*ImportResult, error) {
	if s.calendar == nil {
		return nil, ErrCalendarDisabled
	}
	log := logger.WithContext(ctx).WithField("user_id", userID)

	now := s.now().UTC()
	events, err := s.calendar.ListEvents(ctx, userID, now, now.Add(s.opts.Window))
	if err != nil {
		return nil, err
	}

	known, err := s.taskRepo.CalendarEventIDs(userID)
	if err != nil {
		return nil, err
	}

	var candidates []*domain.Task
	if s.opts.DedupEnabled {
		candidates, err = s.taskRepo.FindUnlinkedDueBetween(userID,
			now.Add(-s.opts.Tolerance), now.Add(s.opts.Window+s.opts.Tolerance))
		if err != nil {
			return nil, err
		}
	}

	result := &ImportResult{}
	for _, ev := range events {
		if ev.ID == "" || ev.AllDay || ev.Start == nil {
			continue
		}
		if _, ok := known[ev.ID]; ok {
			continue
		}

		if match := s.matchExisting(candidates, ev); match != nil {
			eventID := ev.ID
			if err := s.taskRepo.SetCalendarEventID(match.ID, &eventID); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					continue
				}
				return result, err
			}
			match.GoogleCalendarEventID = &eventID
			known[ev.ID] = struct{}{}
			result.LinkedCount++
			log.WithFields(map[string]interface{}{"task_id": match.ID, "event_id": ev.ID}).
				Info("[Sync] Linked calendar event to existing task")
			continue
		}

		task := taskFromEvent(userID, ev)
		if err := s.taskRepo.Create(task); err != nil {
			// A concurrent import got there first.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				known[ev.ID] = struct{}{}
				continue
			}
			return result, err
		}
		known[ev.ID] = struct{}{}
		result.ImportedCount++
	}

	log.WithFields(map[string]interface{}{
		"events":   len(events),
		"imported": result.ImportedCount,
		"linked":   result.LinkedCount,
	}).Info("[Sync] Calendar import finished")
	return result, nil
}

// matchExisting picks the most similar unlinked task due within the
// tolerance of the event start.
func (s *syncUsecase) matchExisting(candidates []*domain.Task, ev caldomain.Event) *domain.Task {
	var best *domain.Task
	bestScore := 0.0
	for _, t := range candidates {
		if t.Linked() || t.DueDate == nil {
			continue
		}
		if absDuration(t.DueDate.Sub(*ev.Start)) > s.opts.Tolerance {
			continue
		}
		score := fuzzy.Similarity(t.Title, eventTitle(ev))
		if score >= s.opts.Threshold && score > bestScore {
			best, bestScore = t, score
		}
	}
	return best
}

func (s *syncUsecase) ApplyAction(ctx context.Context, userID, taskID string, action SyncAction) (*domain.Task, error) {
	if s.calendar == nil {
		return nil, ErrCalendarDisabled
	}
	switch action {
	case SyncActionCreate, SyncActionUpdate, SyncActionDelete:
	default:
		return nil, ErrInvalidAction
	}

	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.UserID != userID {
		return nil, domain.ErrTaskNotFound
	}

	switch action {
	case SyncActionCreate:
		if task.Linked() {
			return nil, ErrAlreadyLinked
		}
		if task.DueDate == nil {
			return nil, ErrDueDateRequired
		}
		eventID, err := s.calendar.CreateEvent(ctx, userID, eventInput(task))
		if err != nil {
			return nil, err
		}
		if err := s.taskRepo.SetCalendarEventID(task.ID, &eventID); err != nil {
			return nil, err
		}
		task.GoogleCalendarEventID = &eventID

	case SyncActionUpdate:
		if !task.Linked() {
			return nil, ErrNotLinked
		}
		if task.DueDate == nil {
			return nil, ErrDueDateRequired
		}
		if err := s.calendar.UpdateEvent(ctx, userID, *task.GoogleCalendarEventID, eventInput(task)); err != nil {
			return nil, err
		}

	case SyncActionDelete:
		if !task.Linked() {
			return nil, ErrNotLinked
		}
		if err := s.calendar.DeleteEvent(ctx, userID, *task.GoogleCalendarEventID); err != nil {
			return nil, err
		}
		if err := s.taskRepo.SetCalendarEventID(task.ID, nil); err != nil {
			return nil, err
		}
		task.GoogleCalendarEventID = nil
	}

	return task, nil
}

func taskFromEvent(userID string, ev caldomain.Event) *domain.Task {
	due := ev.Start.UTC()
	eventID := ev.ID
	return &domain.Task{
		UserID:                userID,
		Title:                 eventTitle(ev),
		Description:           ev.Description,
		Link:                  ev.HTMLURL,
		DueDate:               &due,
		Priority:              domain.PriorityMedium,
		Status:                domain.TaskStatusPending,
		Tags:                  []string{},
		GoogleCalendarEventID: &eventID,
	}
}

func eventInput(task *domain.Task) caldomain.EventInput {
	return caldomain.EventInput{
		Title:       task.Title,
		Description: task.Description,
		Start:       *task.DueDate,
	}
}

func eventTitle(ev caldomain.Event) string {
	if title := strings.TrimSpace(ev.Title); title != "" {
		return title
	}
	return untitledEvent
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
