package reminder

import (
	"time"

	"studyplan/internal/model"
)

// DefaultMinutesBefore applies when a task enables reminders without
// choosing a lead time (24 hours).
const DefaultMinutesBefore = 1440

// Time returns the moment the reminder for t becomes due.
func Time(t model.Task, defaultMinutes int) time.Time {
	minutes := defaultMinutes
	if t.ReminderMinutesBefore != nil {
		minutes = *t.ReminderMinutesBefore
	}
	return t.DueDate.Add(-time.Duration(minutes) * time.Minute)
}

// IsDue reports whether t should be notified at now: reminders are enabled,
// the task is open, the reminder time has passed and no notification was
// sent for it yet.
func IsDue(t model.Task, now time.Time, defaultMinutes int) bool {
	if !t.ReminderEnabled || t.Status == model.TaskDone {
		return false
	}
	at := Time(t, defaultMinutes)
	if at.After(now) {
		return false
	}
	if t.ReminderLastNotifiedAt != nil && !t.ReminderLastNotifiedAt.Before(at) {
		return false
	}
	return true
}
