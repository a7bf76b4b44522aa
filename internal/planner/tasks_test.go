package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyplan/internal/apperr"
	"studyplan/internal/model"
)

func intPtr(i int) *int { return &i }

func TestTaskCRUD(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, owner, NewTask{Title: "  Read chapter 3 ", DueDate: "2024-06-12"})
	require.NoError(t, err)
	assert.Equal(t, "Read chapter 3", task.Title)
	assert.Equal(t, model.TaskTodo, task.Status)

	status := model.TaskInProgress
	updated, err := s.UpdateTask(ctx, owner, task.ID, TaskPatch{Status: &status, DueDate: strPtr("2024-06-14T18:00:00Z")})
	require.NoError(t, err)
	assert.Equal(t, model.TaskInProgress, updated.Status)
	assert.Equal(t, "Read chapter 3", updated.Title)
	assert.True(t, updated.DueDate.Equal(time.Date(2024, 6, 14, 18, 0, 0, 0, time.UTC)))

	list, err := s.ListTasks(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.TaskInProgress, list[0].Status)

	require.NoError(t, s.DeleteTask(ctx, owner, task.ID))
	list, err = s.ListTasks(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTaskValidation(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.CreateTask(ctx, owner, NewTask{Title: "", DueDate: "2024-06-12"})
	assert.True(t, apperr.IsValidation(err))
	_, err = s.CreateTask(ctx, owner, NewTask{Title: "x", DueDate: "12/06/2024"})
	assert.True(t, apperr.IsValidation(err))
	_, err = s.CreateTask(ctx, owner, NewTask{Title: "x", DueDate: "2024-06-12", Status: "blocked"})
	assert.True(t, apperr.IsValidation(err))
	_, err = s.CreateTask(ctx, owner, NewTask{Title: "x", DueDate: "2024-06-12", ReminderMinutesBefore: intPtr(-5)})
	assert.True(t, apperr.IsValidation(err))

	task, err := s.CreateTask(ctx, owner, NewTask{Title: "x", DueDate: "2024-06-12"})
	require.NoError(t, err)
	_, err = s.UpdateTask(ctx, owner, task.ID, TaskPatch{Title: strPtr(" ")})
	assert.True(t, apperr.IsValidation(err))

	list, err := s.ListTasks(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "x", list[0].Title)
}

func TestTaskOwnership(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	task, err := s.CreateTask(ctx, owner, NewTask{Title: "mine", DueDate: "2024-06-12"})
	require.NoError(t, err)

	_, err = s.UpdateTask(ctx, "intruder", task.ID, TaskPatch{Title: strPtr("theirs")})
	assert.True(t, apperr.IsNotFound(err))
	assert.True(t, apperr.IsNotFound(s.DeleteTask(ctx, "intruder", task.ID)))
	_, err = s.UpdateTaskReminder(ctx, "intruder", task.ID, ReminderPatch{Enabled: boolPtr(true)})
	assert.True(t, apperr.IsNotFound(err))

	list, err := s.ListTasks(ctx, "intruder")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReminders(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	due := time.Date(2024, 6, 12, 12, 0, 0, 0, time.UTC)

	withDefault, err := s.CreateTask(ctx, owner, NewTask{Title: "default", DueDate: "2024-06-12T12:00:00Z", ReminderEnabled: true})
	require.NoError(t, err)
	custom, err := s.CreateTask(ctx, owner, NewTask{Title: "custom", DueDate: "2024-06-12T12:00:00Z"})
	require.NoError(t, err)
	_, err = s.UpdateTaskReminder(ctx, owner, custom.ID, ReminderPatch{Enabled: boolPtr(true), MinutesBefore: intPtr(60)})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, owner, NewTask{Title: "off", DueDate: "2024-06-12T12:00:00Z"})
	require.NoError(t, err)

	_, err = s.UpdateTaskReminder(ctx, owner, custom.ID, ReminderPatch{MinutesBefore: intPtr(-1)})
	assert.True(t, apperr.IsValidation(err))

	dueIDs := func(now time.Time) []string {
		tasks, err := s.DueReminders(ctx, owner, now)
		require.NoError(t, err)
		ids := make([]string, 0, len(tasks))
		for _, t := range tasks {
			ids = append(ids, t.ID)
		}
		return ids
	}

	assert.Empty(t, dueIDs(due.Add(-25*time.Hour)))
	assert.Equal(t, []string{withDefault.ID}, dueIDs(due.Add(-2*time.Hour)))
	assert.ElementsMatch(t, []string{withDefault.ID, custom.ID}, dueIDs(due.Add(-30*time.Minute)))

	marked, err := s.MarkReminderNotified(ctx, owner, withDefault.ID, due.Add(-30*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, marked.ReminderLastNotifiedAt)
	assert.Equal(t, []string{custom.ID}, dueIDs(due.Add(-20*time.Minute)))
}

func TestSweepRemindersAcrossOwners(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)

	a, err := s.CreateTask(ctx, "alice", NewTask{Title: "a", DueDate: "2024-06-12T12:00:00Z", ReminderEnabled: true})
	require.NoError(t, err)
	b, err := s.CreateTask(ctx, "bob", NewTask{Title: "b", DueDate: "2024-06-12T06:00:00Z", ReminderEnabled: true})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, "bob", NewTask{Title: "later", DueDate: "2024-06-20T06:00:00Z", ReminderEnabled: true})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, "bob", NewTask{Title: "done", DueDate: "2024-06-12T06:00:00Z", Status: model.TaskDone, ReminderEnabled: true})
	require.NoError(t, err)

	swept, err := s.SweepReminders(ctx, now, deliverAll)
	require.NoError(t, err)
	ids := []string{}
	for _, task := range swept {
		ids = append(ids, task.ID)
		require.NotNil(t, task.ReminderLastNotifiedAt)
	}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)

	again, err := s.SweepReminders(ctx, now.Add(time.Minute), deliverAll)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func deliverAll(context.Context, model.Task) error { return nil }

func TestSweepRemindersRetriesFailedDelivery(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)

	task, err := s.CreateTask(ctx, owner, NewTask{Title: "essay", DueDate: "2024-06-12T12:00:00Z", ReminderEnabled: true})
	require.NoError(t, err)

	failing := func(context.Context, model.Task) error { return errors.New("mail relay down") }
	swept, err := s.SweepReminders(ctx, now, failing)
	require.NoError(t, err)
	assert.Empty(t, swept)

	stored, err := s.tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ReminderLastNotifiedAt)

	swept, err = s.SweepReminders(ctx, now.Add(time.Minute), deliverAll)
	require.NoError(t, err)
	require.Len(t, swept, 1)
	assert.Equal(t, task.ID, swept[0].ID)
}
