package domain

import "time"

// ReminderStage is how far a task has progressed through its reminder
// windows. Stages only move forward until the due date changes.
type ReminderStage int

const (
	StageNotDue ReminderStage = iota
	StageDue24h
	StageDue1h
	StageSent
)

const (
	Window24h = 24 * time.Hour
	Window1h  = time.Hour
	Window5m  = 5 * time.Minute
)

func (s ReminderStage) String() string {
	switch s {
	case StageDue24h:
		return "due_24h"
	case StageDue1h:
		return "due_1h"
	case StageSent:
		return "sent"
	default:
		return "not_due"
	}
}

// ReminderType is the kind of notification a reminder produces.
type ReminderType string

const (
	ReminderTypeReminder ReminderType = "reminder"
	ReminderTypeDueSoon  ReminderType = "due_soon"
)

// TargetStage is the stage a task due at due should be in at now. Overdue
// tasks and tasks further than 24h out are StageNotDue.
func TargetStage(due, now time.Time) ReminderStage {
	left := due.Sub(now)
	switch {
	case left < 0:
		return StageNotDue
	case left <= Window5m:
		return StageSent
	case left <= Window1h:
		return StageDue1h
	case left <= Window24h:
		return StageDue24h
	default:
		return StageNotDue
	}
}

// TypeFor maps a stage to the notification type sent when entering it.
func TypeFor(stage ReminderStage) ReminderType {
	if stage >= StageDue1h {
		return ReminderTypeDueSoon
	}
	return ReminderTypeReminder
}

// NextReminder is the stage transition a scan should claim for t, if any.
func (t *Task) NextReminder(now time.Time) (ReminderStage, bool) {
	if t.DueDate == nil || t.Status == TaskStatusCompleted {
		return StageNotDue, false
	}
	target := TargetStage(*t.DueDate, now)
	if target == StageNotDue || target <= t.ReminderStage {
		return StageNotDue, false
	}
	return target, true
}
