package repository

import (
	"testing"
	"time"

	"codentor-backend/internal/task/domain"
	"codentor-backend/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) (TaskRepository, *gorm.DB) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Task{}))
	return NewGormTaskRepository(db), db
}

func dueIn(d time.Duration) *time.Time {
	due := time.Now().Add(d).Truncate(time.Second)
	return &due
}

func TestReminderCandidates(t *testing.T) {
	repo, _ := newTestRepo(t)

	fresh := &domain.Task{UserID: "u1", Title: "fresh", DueDate: dueIn(23 * time.Hour)}
	soon := &domain.Task{UserID: "u1", Title: "soon", DueDate: dueIn(30 * time.Minute), ReminderStage: domain.StageDue24h}
	handled := &domain.Task{UserID: "u1", Title: "handled", DueDate: dueIn(3 * time.Hour), ReminderStage: domain.StageDue24h}
	far := &domain.Task{UserID: "u1", Title: "far", DueDate: dueIn(48 * time.Hour)}
	past := &domain.Task{UserID: "u1", Title: "past", DueDate: dueIn(-time.Hour)}
	done := &domain.Task{UserID: "u1", Title: "done", DueDate: dueIn(time.Hour), Status: domain.TaskStatusCompleted}
	undated := &domain.Task{UserID: "u1", Title: "undated"}

	for _, task := range []*domain.Task{fresh, soon, handled, far, past, done, undated} {
		if task.Status == "" {
			task.Status = domain.TaskStatusPending
		}
		require.NoError(t, repo.Create(task))
	}

	got, err := repo.FindReminderCandidates(time.Now())
	require.NoError(t, err)

	titles := make([]string, 0, len(got))
	for _, task := range got {
		titles = append(titles, task.Title)
	}
	assert.ElementsMatch(t, []string{"fresh", "soon"}, titles)
}

func TestClaimReminderIsCompareAndSwap(t *testing.T) {
	repo, _ := newTestRepo(t)

	task := &domain.Task{UserID: "u1", Title: "ship", DueDate: dueIn(30 * time.Minute), Status: domain.TaskStatusPending}
	require.NoError(t, repo.Create(task))

	won, err := repo.ClaimReminder(task.ID, domain.StageNotDue, domain.StageDue1h)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.ClaimReminder(task.ID, domain.StageNotDue, domain.StageDue1h)
	require.NoError(t, err)
	assert.False(t, won, "second claim from the same stage must lose")

	stored, err := repo.FindByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageDue1h, stored.ReminderStage)
	assert.True(t, stored.ReminderSent)
	assert.True(t, stored.Reminder24hSent)
	assert.True(t, stored.Reminder1hSent)
	assert.False(t, stored.Reminder5mSent)
}

func TestUpdateKeepsConcurrentClaim(t *testing.T) {
	repo, _ := newTestRepo(t)

	task := &domain.Task{UserID: "u1", Title: "draft", DueDate: dueIn(30 * time.Minute), Status: domain.TaskStatusPending}
	require.NoError(t, repo.Create(task))

	// The scanner claims while the user has a stale copy open.
	won, err := repo.ClaimReminder(task.ID, domain.StageNotDue, domain.StageDue1h)
	require.NoError(t, err)
	require.True(t, won)

	task.Title = "final"
	require.NoError(t, repo.Update(task, false))

	stored, err := repo.FindByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", stored.Title)
	assert.Equal(t, domain.StageDue1h, stored.ReminderStage)

	stored.DueDate = dueIn(5 * time.Hour)
	stored.ResetReminders()
	require.NoError(t, repo.Update(stored, true))

	stored, err = repo.FindByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageNotDue, stored.ReminderStage)
	assert.False(t, stored.ReminderSent)
}

func TestCalendarLinks(t *testing.T) {
	repo, db := newTestRepo(t)

	eventID := "evt-1"
	linked := &domain.Task{UserID: "u1", Title: "linked", DueDate: dueIn(time.Hour), GoogleCalendarEventID: &eventID, Status: domain.TaskStatusPending}
	unlinked := &domain.Task{UserID: "u1", Title: "unlinked", DueDate: dueIn(2 * time.Hour), Status: domain.TaskStatusPending, Tags: []string{"a", "b"}}
	other := &domain.Task{UserID: "u2", Title: "other", DueDate: dueIn(time.Hour), Status: domain.TaskStatusPending}
	for _, task := range []*domain.Task{linked, unlinked, other} {
		require.NoError(t, repo.Create(task))
	}

	ids, err := repo.CalendarEventIDs("u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"evt-1": {}}, ids)

	tasks, err := repo.FindUnlinkedDueBetween("u1", time.Now(), time.Now().Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "unlinked", tasks[0].Title)
	assert.Equal(t, []string{"a", "b"}, tasks[0].Tags)

	// The same event cannot be linked twice for one user.
	dup := &domain.Task{UserID: "u1", Title: "dup", GoogleCalendarEventID: &eventID, Status: domain.TaskStatusPending}
	assert.ErrorIs(t, repo.Create(dup), gorm.ErrDuplicatedKey)

	require.NoError(t, repo.SetCalendarEventID(unlinked.ID, &[]string{"evt-2"}[0]))
	ids, err = repo.CalendarEventIDs("u1")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	var count int64
	require.NoError(t, db.Model(&domain.Task{}).Where("user_id = ?", "u2").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFindByUserIDOrdersByDueDate(t *testing.T) {
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.Create(&domain.Task{UserID: "u1", Title: "later", DueDate: dueIn(5 * time.Hour), Status: domain.TaskStatusPending}))
	require.NoError(t, repo.Create(&domain.Task{UserID: "u1", Title: "undated", Status: domain.TaskStatusPending}))
	require.NoError(t, repo.Create(&domain.Task{UserID: "u1", Title: "sooner", DueDate: dueIn(time.Hour), Status: domain.TaskStatusCompleted}))

	tasks, total, err := repo.FindByUserID("u1", nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"sooner", "later", "undated"}, []string{tasks[0].Title, tasks[1].Title, tasks[2].Title})

	status := domain.TaskStatusPending
	_, total, err = repo.FindByUserID("u1", &status, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	due, err := repo.FindDueBetween("u1", time.Now(), time.Now().Add(6*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1, "completed tasks are excluded")
	assert.Equal(t, "later", due[0].Title)
}
