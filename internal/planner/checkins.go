package planner

import (
	"context"
	"math"
	"sort"
	"time"

	"studyplan/internal/apperr"
	"studyplan/internal/datetime"
	"studyplan/internal/model"
)

// WeeklyCheckInGoal is the number of check-ins that counts as 100% progress.
const WeeklyCheckInGoal = 10

const dayLayout = "2006-01-02"

// Progress summarizes an owner's learning check-ins.
type Progress struct {
	TotalSessions int `json:"totalSessions"`
	Percentage    int `json:"percentage"`
	WeeklyGoal    int `json:"weeklyGoal"`
}

// ProgressFor derives the progress for total check-ins: each check-in is
// worth 100/WeeklyCheckInGoal percent, capped at 100.
func ProgressFor(total int) Progress {
	pct := math.Min(float64(total)/WeeklyCheckInGoal*100, 100)
	return Progress{
		TotalSessions: total,
		Percentage:    int(math.Round(pct)),
		WeeklyGoal:    WeeklyCheckInGoal,
	}
}

func checkInLockKey(owner string) string {
	return "checkin:" + owner
}

// CreateCheckIn records a check-in for the calendar day of now (in now's
// location). A second check-in on the same day is rejected.
func (s *Service) CreateCheckIn(ctx context.Context, owner string, now time.Time) (model.CheckIn, error) {
	if err := requireOwner(owner); err != nil {
		return model.CheckIn{}, err
	}
	day := now.Format(dayLayout)

	unlock, err := s.locker.Lock(ctx, checkInLockKey(owner))
	if err != nil {
		return model.CheckIn{}, err
	}
	defer unlock()

	existing, err := s.checkIns.ByIndex(ctx, model.IndexByDay, model.DayKey(owner, day))
	if err != nil {
		return model.CheckIn{}, err
	}
	if len(existing) > 0 {
		return model.CheckIn{}, apperr.Invariant("already checked in today")
	}

	ci := model.CheckIn{OwnerID: owner, Date: day, CreatedAt: now}
	if _, err := s.checkIns.Insert(ctx, &ci); err != nil {
		return model.CheckIn{}, err
	}
	return ci, nil
}

func (s *Service) HasCheckedInToday(ctx context.Context, owner string, now time.Time) (bool, error) {
	if err := requireOwner(owner); err != nil {
		return false, err
	}
	existing, err := s.checkIns.ByIndex(ctx, model.IndexByDay, model.DayKey(owner, now.Format(dayLayout)))
	if err != nil {
		return false, err
	}
	return len(existing) > 0, nil
}

// ListCheckIns returns owner's check-ins, newest first.
func (s *Service) ListCheckIns(ctx context.Context, owner string) ([]model.CheckIn, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	all, err := s.checkIns.ByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Date > all[j].Date
	})
	return all, nil
}

// CheckInCount counts owner's check-ins dated from daysBack days before
// today up to today, both inclusive.
func (s *Service) CheckInCount(ctx context.Context, owner string, now time.Time, daysBack int) (int, error) {
	if err := requireOwner(owner); err != nil {
		return 0, err
	}
	if daysBack < 0 {
		return 0, apperr.Invalid("days", "days must not be negative")
	}
	all, err := s.checkIns.ByOwner(ctx, owner)
	if err != nil {
		return 0, err
	}
	from := datetime.AddDays(datetime.StartOfDay(now), -daysBack).Format(dayLayout)
	n := 0
	for _, ci := range all {
		if ci.Date >= from {
			n++
		}
	}
	return n, nil
}

// Progress returns owner's check-in progress toward WeeklyCheckInGoal.
func (s *Service) Progress(ctx context.Context, owner string) (Progress, error) {
	if err := requireOwner(owner); err != nil {
		return Progress{}, err
	}
	all, err := s.checkIns.ByOwner(ctx, owner)
	if err != nil {
		return Progress{}, err
	}
	return ProgressFor(len(all)), nil
}
