package repository

import (
	"errors"
	"time"

	"codentor-backend/internal/task/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// contentColumns are the columns a task edit may touch.
var contentColumns = []string{
	"title", "description", "link", "due_date", "priority", "status", "tags",
	"google_calendar_event_id", "updated_at",
}

var reminderColumns = []string{
	"reminder_stage", "reminder_sent", "reminder_24h_sent", "reminder_1h_sent", "reminder_5m_sent",
}

// gormTaskRepository implements TaskRepository using GORM
type gormTaskRepository struct {
	db *gorm.DB
}

func NewGormTaskRepository(db *gorm.DB) TaskRepository {
	return &gormTaskRepository{db: db}
}

// Times are stored in UTC so range queries compare consistently on sqlite.
func normalize(task *domain.Task) {
	if task.DueDate != nil {
		utc := task.DueDate.UTC()
		task.DueDate = &utc
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}
}

func (r *gormTaskRepository) Create(task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	normalize(task)
	return r.db.Create(task).Error
}

func (r *gormTaskRepository) FindByID(id string) (*domain.Task, error) {
	var task domain.Task
	err := r.db.Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *gormTaskRepository) FindByUserID(userID string, status *domain.TaskStatus, limit, offset int) ([]*domain.Task, int64, error) {
	var tasks []*domain.Task
	var total int64

	query := r.db.Model(&domain.Task{}).Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Soonest due first, undated tasks last, newest first among equals.
	err := query.Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date ASC, created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (r *gormTaskRepository) FindDueBetween(userID string, from, to time.Time) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := r.db.
		Where("user_id = ? AND status <> ? AND due_date >= ? AND due_date <= ?",
			userID, domain.TaskStatusCompleted, from.UTC(), to.UTC()).
		Order("due_date ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *gormTaskRepository) Update(task *domain.Task, resetReminders bool) error {
	task.UpdatedAt = time.Now().UTC()
	normalize(task)

	columns := contentColumns
	if resetReminders {
		columns = append(append([]string{}, contentColumns...), reminderColumns...)
	}
	return r.db.Model(task).Select(columns).Updates(task).Error
}

func (r *gormTaskRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&domain.Task{}).Error
}

func (r *gormTaskRepository) FindReminderCandidates(now time.Time) ([]*domain.Task, error) {
	now = now.UTC()
	var tasks []*domain.Task
	err := r.db.
		Where("status <> ? AND due_date IS NOT NULL AND due_date >= ? AND due_date <= ?",
			domain.TaskStatusCompleted, now, now.Add(domain.Window24h)).
		Where(
			r.db.Where("reminder_stage < ?", domain.StageDue24h).
				Or("reminder_stage < ? AND due_date <= ?", domain.StageDue1h, now.Add(domain.Window1h)).
				Or("reminder_stage < ? AND due_date <= ?", domain.StageSent, now.Add(domain.Window5m)),
		).
		Order("due_date ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *gormTaskRepository) ClaimReminder(id string, from, to domain.ReminderStage) (bool, error) {
	result := r.db.Model(&domain.Task{}).
		Where("id = ? AND reminder_stage = ?", id, from).
		Updates(map[string]interface{}{
			"reminder_stage":    to,
			"reminder_sent":     true,
			"reminder_24h_sent": to >= domain.StageDue24h,
			"reminder_1h_sent":  to >= domain.StageDue1h,
			"reminder_5m_sent":  to >= domain.StageSent,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *gormTaskRepository) CalendarEventIDs(userID string) (map[string]struct{}, error) {
	var ids []string
	err := r.db.Model(&domain.Task{}).
		Where("user_id = ? AND google_calendar_event_id IS NOT NULL", userID).
		Pluck("google_calendar_event_id", &ids).Error
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (r *gormTaskRepository) FindUnlinkedDueBetween(userID string, from, to time.Time) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := r.db.
		Where("user_id = ? AND google_calendar_event_id IS NULL AND due_date >= ? AND due_date <= ?",
			userID, from.UTC(), to.UTC()).
		Find(&tasks).Error
	return tasks, err
}

func (r *gormTaskRepository) SetCalendarEventID(id string, eventID *string) error {
	return r.db.Model(&domain.Task{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"google_calendar_event_id": eventID, "updated_at": time.Now().UTC()}).Error
}
