package planner

import (
	"context"
	"time"

	"studyplan/internal/apperr"
	"studyplan/internal/model"
	"studyplan/internal/priority"
)

// Stats summarizes an owner's progress.
type Stats struct {
	CompletedTasks    int `json:"completedTasks"`
	FocusSessions     int `json:"focusSessions"`
	TotalFocusMinutes int `json:"totalFocusMinutes"`
}

// RankTasks scores owner's open tasks at now and returns the top limit.
func (s *Service) RankTasks(ctx context.Context, owner string, now time.Time, limit int) ([]priority.ScoredTask, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	return priority.RankTasks(tasks, now, limit), nil
}

// ClassifyStressItems lists owner's exams and open submissions dated within
// horizonDays of today.
func (s *Service) ClassifyStressItems(ctx context.Context, owner string, now time.Time, horizonDays int) ([]priority.StressItem, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	if horizonDays < 0 {
		return nil, apperr.Invalid("days", "horizon must not be negative")
	}
	exams, err := s.exams.ByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	subs, err := s.submissions.ByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	return priority.ClassifyStressItems(exams, subs, now, horizonDays), nil
}

// LogFocusSession records a completed focus block of minutes length.
func (s *Service) LogFocusSession(ctx context.Context, owner string, minutes int, now time.Time) (model.FocusSession, error) {
	if err := requireOwner(owner); err != nil {
		return model.FocusSession{}, err
	}
	if minutes <= 0 {
		return model.FocusSession{}, apperr.Invalid("duration", "duration must be positive")
	}
	fs := model.FocusSession{OwnerID: owner, Duration: minutes, CompletedAt: now}
	if _, err := s.focus.Insert(ctx, &fs); err != nil {
		return model.FocusSession{}, err
	}
	return fs, nil
}

func (s *Service) Stats(ctx context.Context, owner string) (Stats, error) {
	if err := requireOwner(owner); err != nil {
		return Stats{}, err
	}
	tasks, err := s.tasks.ByOwner(ctx, owner)
	if err != nil {
		return Stats{}, err
	}
	sessions, err := s.focus.ByOwner(ctx, owner)
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	for _, t := range tasks {
		if t.Status == model.TaskDone {
			st.CompletedTasks++
		}
	}
	st.FocusSessions = len(sessions)
	for _, fs := range sessions {
		st.TotalFocusMinutes += fs.Duration
	}
	return st, nil
}
