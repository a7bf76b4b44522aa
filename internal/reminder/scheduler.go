package reminder

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	appLog "studyplan/internal/log"
	"studyplan/internal/model"
)

// Sweeper finds due reminders across all owners, passes each to deliver and
// marks the ones delivered.
type Sweeper interface {
	SweepReminders(ctx context.Context, now time.Time, deliver func(context.Context, model.Task) error) ([]model.Task, error)
}

// Notifier receives every reminder the sweep marked. Delivery is up to the
// implementation; LogNotifier only records it.
type Notifier interface {
	Notify(ctx context.Context, t model.Task) error
}

// LogNotifier writes one log line per reminder.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, t model.Task) error {
	appLog.Info("reminder due",
		"task_id", t.ID,
		"owner", t.OwnerID,
		"title", t.Title,
		"due", t.DueDate.Format(time.RFC3339),
	)
	return nil
}

// Scheduler runs the reminder sweep on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	notifier Notifier
	now      func() time.Time
}

// NewScheduler validates spec (standard 5-field cron syntax) and registers
// the sweep job. Call Start to begin running it.
func NewScheduler(spec string, sweeper Sweeper, notifier Notifier) (*Scheduler, error) {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	s := &Scheduler{
		cron:     cron.New(),
		sweeper:  sweeper,
		notifier: notifier,
		now:      time.Now,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, err
	}
	return s, nil
}

// RunOnce performs a single sweep, delivering every due reminder through
// the notifier. It returns the number of reminders delivered and marked.
// A reminder the notifier rejects is left due for the next sweep.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	tasks, err := s.sweeper.SweepReminders(ctx, s.now(), s.notifier.Notify)
	if err != nil {
		appLog.Error("reminder sweep failed", err)
		return 0
	}
	if len(tasks) > 0 {
		appLog.Info("reminder sweep completed", "count", len(tasks))
	} else {
		appLog.Debug("reminder sweep completed", "count", 0)
	}
	return len(tasks)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the schedule and waits for a running sweep to finish or ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
