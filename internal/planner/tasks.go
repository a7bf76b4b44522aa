package planner

import (
	"context"
	"strings"
	"time"

	"studyplan/internal/apperr"
	appLog "studyplan/internal/log"
	"studyplan/internal/model"
	"studyplan/internal/reminder"
)

func (s *Service) CreateTask(ctx context.Context, owner string, in NewTask) (model.Task, error) {
	if err := requireOwner(owner); err != nil {
		return model.Task{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return model.Task{}, err
	}
	due, err := parseDate("dueDate", in.DueDate)
	if err != nil {
		return model.Task{}, err
	}
	t := model.Task{
		OwnerID:               owner,
		Title:                 strings.TrimSpace(in.Title),
		Description:           in.Description,
		DueDate:               due,
		Status:                in.Status,
		ReminderEnabled:       in.ReminderEnabled,
		ReminderMinutesBefore: in.ReminderMinutesBefore,
	}
	if t.Status == "" {
		t.Status = model.TaskTodo
	}
	if _, err := s.tasks.Insert(ctx, &t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func (s *Service) ListTasks(ctx context.Context, owner string) ([]model.Task, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return s.tasks.ByOwner(ctx, owner)
}

func (s *Service) UpdateTask(ctx context.Context, owner, id string, patch TaskPatch) (model.Task, error) {
	if err := requireOwner(owner); err != nil {
		return model.Task{}, err
	}
	if err := s.validate.Struct(patch); err != nil {
		return model.Task{}, err
	}
	if _, err := s.tasks.GetOwned(ctx, owner, id); err != nil {
		return model.Task{}, err
	}
	return s.tasks.Patch(ctx, id, func(t *model.Task) error {
		if patch.Title != nil {
			t.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.DueDate != nil {
			due, err := parseDate("dueDate", *patch.DueDate)
			if err != nil {
				return err
			}
			t.DueDate = due
		}
		if patch.Status != nil {
			t.Status = *patch.Status
		}
		return nil
	})
}

func (s *Service) DeleteTask(ctx context.Context, owner, id string) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	if _, err := s.tasks.GetOwned(ctx, owner, id); err != nil {
		return err
	}
	return s.tasks.Delete(ctx, id)
}

// UpdateTaskReminder enables, disables or retimes the reminder of a task.
func (s *Service) UpdateTaskReminder(ctx context.Context, owner, id string, patch ReminderPatch) (model.Task, error) {
	if err := requireOwner(owner); err != nil {
		return model.Task{}, err
	}
	if err := s.validate.Struct(patch); err != nil {
		return model.Task{}, err
	}
	if _, err := s.tasks.GetOwned(ctx, owner, id); err != nil {
		return model.Task{}, err
	}
	return s.tasks.Patch(ctx, id, func(t *model.Task) error {
		if patch.Enabled != nil {
			t.ReminderEnabled = *patch.Enabled
		}
		if patch.MinutesBefore != nil {
			m := *patch.MinutesBefore
			t.ReminderMinutesBefore = &m
		}
		return nil
	})
}

// DueReminders lists owner's tasks whose reminder is due at now and has not
// been notified yet.
func (s *Service) DueReminders(ctx context.Context, owner string, now time.Time) ([]model.Task, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]model.Task, 0)
	for _, t := range tasks {
		if reminder.IsDue(t, now, s.defaultReminderMinutes) {
			out = append(out, t)
		}
	}
	return out, nil
}

// MarkReminderNotified records that the reminder of a task was delivered at
// now.
func (s *Service) MarkReminderNotified(ctx context.Context, owner, id string, now time.Time) (model.Task, error) {
	if err := requireOwner(owner); err != nil {
		return model.Task{}, err
	}
	if _, err := s.tasks.GetOwned(ctx, owner, id); err != nil {
		return model.Task{}, err
	}
	return s.markNotified(ctx, id, now)
}

func (s *Service) markNotified(ctx context.Context, id string, now time.Time) (model.Task, error) {
	return s.tasks.Patch(ctx, id, func(t *model.Task) error {
		at := now
		t.ReminderLastNotifiedAt = &at
		return nil
	})
}

// SweepReminders hands every due reminder across all owners to deliver and
// marks it notified once deliver succeeds. It returns the marked tasks. A
// reminder whose delivery or marking fails stays due and is retried by the
// next sweep, so delivery is at-least-once.
func (s *Service) SweepReminders(ctx context.Context, now time.Time, deliver func(context.Context, model.Task) error) ([]model.Task, error) {
	candidates, err := s.tasks.ByIndex(ctx, model.IndexByReminder, model.ReminderIndexKey)
	if err != nil {
		return nil, err
	}
	out := make([]model.Task, 0)
	for _, t := range candidates {
		if !reminder.IsDue(t, now, s.defaultReminderMinutes) {
			continue
		}
		if err := deliver(ctx, t); err != nil {
			appLog.Error("reminder delivery failed", err, "task_id", t.ID)
			continue
		}
		marked, err := s.markNotified(ctx, t.ID, now)
		if err != nil {
			if apperr.IsNotFound(err) {
				continue
			}
			appLog.Error("reminder mark failed", err, "task_id", t.ID)
			continue
		}
		out = append(out, marked)
	}
	return out, nil
}
