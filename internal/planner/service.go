// Package planner implements the dashboard's operations on top of the
// record store: event series maintenance, task/exam/submission CRUD,
// reminders, focus statistics, learning check-ins and the ranking views.
package planner

import (
	"strings"

	"studyplan/internal/apperr"
	"studyplan/internal/model"
	"studyplan/internal/reminder"
	"studyplan/internal/store"
)

// Options tunes service defaults. Zero values fall back to the defaults.
type Options struct {
	DefaultReminderMinutes int
}

// Service is safe for concurrent use; series edits are serialized through
// the Locker.
type Service struct {
	events      *store.Collection[model.Event, *model.Event]
	tasks       *store.Collection[model.Task, *model.Task]
	exams       *store.Collection[model.Exam, *model.Exam]
	submissions *store.Collection[model.Submission, *model.Submission]
	focus       *store.Collection[model.FocusSession, *model.FocusSession]
	checkIns    *store.Collection[model.CheckIn, *model.CheckIn]

	locker   store.Locker
	validate *inputValidator

	defaultReminderMinutes int
}

func NewService(backend store.Backend, locker store.Locker, opts Options) *Service {
	if locker == nil {
		locker = store.NewKeyedMutex()
	}
	if opts.DefaultReminderMinutes <= 0 {
		opts.DefaultReminderMinutes = reminder.DefaultMinutesBefore
	}
	return &Service{
		events:                 store.NewCollection[model.Event](backend, store.Events),
		tasks:                  store.NewCollection[model.Task](backend, store.Tasks).WithLocker(locker),
		exams:                  store.NewCollection[model.Exam](backend, store.Exams).WithLocker(locker),
		submissions:            store.NewCollection[model.Submission](backend, store.Submissions).WithLocker(locker),
		focus:                  store.NewCollection[model.FocusSession](backend, store.FocusSessions),
		checkIns:               store.NewCollection[model.CheckIn](backend, store.CheckIns),
		locker:                 locker,
		validate:               newInputValidator(),
		defaultReminderMinutes: opts.DefaultReminderMinutes,
	}
}

func requireOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return apperr.Invalid("ownerId", "ownerId is required")
	}
	return nil
}
