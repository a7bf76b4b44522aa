package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyplan/internal/apperr"
)

func TestCreateCheckInOncePerDay(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	morning := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

	ok, err := s.HasCheckedInToday(ctx, owner, morning)
	require.NoError(t, err)
	assert.False(t, ok)

	ci, err := s.CreateCheckIn(ctx, owner, morning)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", ci.Date)
	assert.NotEmpty(t, ci.ID)

	_, err = s.CreateCheckIn(ctx, owner, morning.Add(10*time.Hour))
	assert.True(t, apperr.IsInvariant(err))

	ok, err = s.HasCheckedInToday(ctx, owner, morning.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	// other owners and the next day are independent
	_, err = s.CreateCheckIn(ctx, "someone-else", morning)
	require.NoError(t, err)
	_, err = s.CreateCheckIn(ctx, owner, morning.AddDate(0, 0, 1))
	require.NoError(t, err)

	list, err := s.ListCheckIns(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-06-11", list[0].Date)
	assert.Equal(t, "2024-06-10", list[1].Date)
}

func TestCheckInDayFollowsClockLocation(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// 23:30 UTC on the 10th is already the 11th in Berlin
	ci, err := s.CreateCheckIn(ctx, owner, time.Date(2024, 6, 10, 23, 30, 0, 0, time.UTC).In(berlin))
	require.NoError(t, err)
	assert.Equal(t, "2024-06-11", ci.Date)
}

func TestCheckInCount(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

	for _, d := range []int{0, 1, 7, 8, 30} {
		_, err := s.CreateCheckIn(ctx, owner, now.AddDate(0, 0, -d))
		require.NoError(t, err)
	}

	tests := []struct {
		days int
		want int
	}{
		{days: 0, want: 1},
		{days: 1, want: 2},
		{days: 7, want: 3},
		{days: 30, want: 5},
	}
	for _, tt := range tests {
		n, err := s.CheckInCount(ctx, owner, now, tt.days)
		require.NoError(t, err)
		assert.Equal(t, tt.want, n, "days=%d", tt.days)
	}

	_, err := s.CheckInCount(ctx, owner, now, -1)
	assert.True(t, apperr.IsValidation(err))
}

func TestProgressFor(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{total: 0, want: 0},
		{total: 3, want: 30},
		{total: 10, want: 100},
		{total: 14, want: 100},
	}
	for _, tt := range tests {
		p := ProgressFor(tt.total)
		assert.Equal(t, tt.total, p.TotalSessions)
		assert.Equal(t, tt.want, p.Percentage)
		assert.Equal(t, WeeklyCheckInGoal, p.WeeklyGoal)
	}
}

func TestProgressCapsAtGoal(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		_, err := s.CreateCheckIn(ctx, owner, start.AddDate(0, 0, i))
		require.NoError(t, err)
	}

	p, err := s.Progress(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, Progress{TotalSessions: 12, Percentage: 100, WeeklyGoal: 10}, p)

	empty, err := s.Progress(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, Progress{WeeklyGoal: 10}, empty)
}
