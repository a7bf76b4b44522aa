package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyplan/internal/model"
)

func intPtr(i int) *int { return &i }

func timePtr(t time.Time) *time.Time { return &t }

func TestIsDue(t *testing.T) {
	due := time.Date(2024, 6, 11, 12, 0, 0, 0, time.UTC)
	base := model.Task{ID: "t1", DueDate: due, Status: model.TaskTodo, ReminderEnabled: true}

	tests := []struct {
		name string
		mod  func(*model.Task)
		now  time.Time
		want bool
	}{
		{name: "default lead time reached", now: due.Add(-24 * time.Hour), want: true},
		{name: "default lead time not reached", now: due.Add(-25 * time.Hour), want: false},
		{name: "custom lead time", mod: func(t *model.Task) { t.ReminderMinutesBefore = intPtr(30) }, now: due.Add(-29 * time.Minute), want: true},
		{name: "custom lead time not reached", mod: func(t *model.Task) { t.ReminderMinutesBefore = intPtr(30) }, now: due.Add(-31 * time.Minute), want: false},
		{name: "disabled", mod: func(t *model.Task) { t.ReminderEnabled = false }, now: due, want: false},
		{name: "done", mod: func(t *model.Task) { t.Status = model.TaskDone }, now: due, want: false},
		{name: "already notified", mod: func(t *model.Task) { t.ReminderLastNotifiedAt = timePtr(due.Add(-time.Hour)) }, now: due, want: false},
		{name: "notified before reminder time moved", mod: func(t *model.Task) { t.ReminderLastNotifiedAt = timePtr(due.Add(-48 * time.Hour)) }, now: due, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := base
			if tt.mod != nil {
				tt.mod(&task)
			}
			assert.Equal(t, tt.want, IsDue(task, tt.now, DefaultMinutesBefore))
		})
	}
}

type fakeSweeper struct {
	tasks  []model.Task
	err    error
	calls  int
	marked []string
}

func (f *fakeSweeper) SweepReminders(ctx context.Context, _ time.Time, deliver func(context.Context, model.Task) error) ([]model.Task, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Task
	for _, t := range f.tasks {
		if err := deliver(ctx, t); err != nil {
			continue
		}
		f.marked = append(f.marked, t.ID)
		out = append(out, t)
	}
	return out, nil
}

type recordingNotifier struct {
	got  []string
	fail map[string]bool
}

func (r *recordingNotifier) Notify(_ context.Context, t model.Task) error {
	if r.fail[t.ID] {
		return errors.New("smtp unavailable")
	}
	r.got = append(r.got, t.ID)
	return nil
}

func TestSchedulerRunOnce(t *testing.T) {
	sw := &fakeSweeper{tasks: []model.Task{{ID: "a"}, {ID: "b"}}}
	n := &recordingNotifier{}

	s, err := NewScheduler("* * * * *", sw, n)
	require.NoError(t, err)

	assert.Equal(t, 2, s.RunOnce(context.Background()))
	assert.Equal(t, []string{"a", "b"}, n.got)

	sw.err = errors.New("store down")
	assert.Equal(t, 0, s.RunOnce(context.Background()))
	assert.Equal(t, 2, sw.calls)
}

func TestSchedulerLeavesFailedDeliveriesUnmarked(t *testing.T) {
	sw := &fakeSweeper{tasks: []model.Task{{ID: "a"}, {ID: "b"}}}
	n := &recordingNotifier{fail: map[string]bool{"a": true}}

	s, err := NewScheduler("* * * * *", sw, n)
	require.NoError(t, err)

	assert.Equal(t, 1, s.RunOnce(context.Background()))
	assert.Equal(t, []string{"b"}, sw.marked)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler("every minute", &fakeSweeper{}, nil)
	assert.Error(t, err)
}
