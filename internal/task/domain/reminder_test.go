package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTargetStage(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		left time.Duration
		want ReminderStage
	}{
		{"overdue", -time.Minute, StageNotDue},
		{"due now", 0, StageSent},
		{"five minutes", 5 * time.Minute, StageSent},
		{"thirty minutes", 30 * time.Minute, StageDue1h},
		{"exactly one hour", time.Hour, StageDue1h},
		{"twenty three hours", 23 * time.Hour, StageDue24h},
		{"exactly a day", 24 * time.Hour, StageDue24h},
		{"beyond a day", 24*time.Hour + time.Second, StageNotDue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TargetStage(now.Add(tt.left), now))
		})
	}
}

func TestNextReminder(t *testing.T) {
	now := time.Now()
	due := now.Add(30 * time.Minute)

	task := &Task{DueDate: &due, Status: TaskStatusPending}
	stage, ok := task.NextReminder(now)
	assert.True(t, ok)
	assert.Equal(t, StageDue1h, stage)
	assert.Equal(t, ReminderTypeDueSoon, TypeFor(stage))

	task.ReminderStage = StageDue1h
	_, ok = task.NextReminder(now)
	assert.False(t, ok, "stage already reached")

	task.Status = TaskStatusCompleted
	task.ReminderStage = StageNotDue
	_, ok = task.NextReminder(now)
	assert.False(t, ok, "completed tasks are never reminded")

	assert.Equal(t, ReminderTypeReminder, TypeFor(StageDue24h))
}

func TestResetReminders(t *testing.T) {
	task := &Task{ReminderStage: StageSent, ReminderSent: true, Reminder24hSent: true, Reminder1hSent: true, Reminder5mSent: true}
	task.ResetReminders()
	assert.Equal(t, StageNotDue, task.ReminderStage)
	assert.False(t, task.ReminderSent || task.Reminder24hSent || task.Reminder1hSent || task.Reminder5mSent)
}
