package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyplan/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestGenerateOccurrencesInclusiveBoundary(t *testing.T) {
	got, err := GenerateOccurrences(day(2024, 1, 1), model.FrequencyWeekly, ptr(day(2024, 1, 22)))
	require.NoError(t, err)

	want := []time.Time{day(2024, 1, 1), day(2024, 1, 8), day(2024, 1, 15), day(2024, 1, 22)}
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "index %d: got %v want %v", i, got[i], want[i])
	}
}

func TestGenerateOccurrencesOpenEndedCap(t *testing.T) {
	start := day(2024, 1, 1)
	got, err := GenerateOccurrences(start, model.FrequencyWeekly, nil)
	require.NoError(t, err)

	require.NotEmpty(t, got)
	assert.True(t, got[0].Equal(start))
	assert.False(t, got[len(got)-1].After(day(2025, 1, 1)))
	// 2024-12-30 is the last Monday within 365 days of 2024-01-01.
	assert.True(t, got[len(got)-1].Equal(day(2024, 12, 30)))
	assert.Len(t, got, 53)
}

func TestGenerateOccurrencesStrictWeeklySteps(t *testing.T) {
	start := time.Date(2024, 11, 25, 14, 30, 0, 125e6, time.UTC)
	got, err := GenerateOccurrences(start, model.FrequencyWeekly, ptr(start.AddDate(0, 2, 0)))
	require.NoError(t, err)

	require.True(t, got[0].Equal(start))
	for i := 1; i < len(got); i++ {
		assert.Equal(t, 7*24*time.Hour, got[i].Sub(got[i-1]))
	}
	// crosses the year boundary
	assert.Equal(t, 2025, got[len(got)-1].Year())
}

func TestGenerateOccurrencesPreservesWallClock(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	start := time.Date(2024, 3, 18, 10, 15, 0, 0, berlin)
	got, err := GenerateOccurrences(start, model.FrequencyWeekly, ptr(time.Date(2024, 4, 8, 23, 0, 0, 0, berlin)))
	require.NoError(t, err)
	require.Len(t, got, 4)
	for _, occ := range got {
		assert.Equal(t, 10, occ.Hour())
		assert.Equal(t, 15, occ.Minute())
	}
}

func TestGenerateOccurrencesEdgeCases(t *testing.T) {
	start := day(2024, 5, 1)

	t.Run("end before start still yields start", func(t *testing.T) {
		got, err := GenerateOccurrences(start, model.FrequencyWeekly, ptr(day(2024, 4, 1)))
		require.NoError(t, err)
		assert.Equal(t, []time.Time{start}, got)
	})

	t.Run("end equal to start", func(t *testing.T) {
		got, err := GenerateOccurrences(start, model.FrequencyWeekly, ptr(start))
		require.NoError(t, err)
		require.Len(t, got, 1)
	})

	t.Run("end one second before next occurrence", func(t *testing.T) {
		got, err := GenerateOccurrences(start, model.FrequencyWeekly, ptr(day(2024, 5, 8).Add(-time.Second)))
		require.NoError(t, err)
		require.Len(t, got, 1)
	})

	t.Run("unsupported frequency", func(t *testing.T) {
		_, err := GenerateOccurrences(start, model.Frequency("daily"), nil)
		assert.ErrorIs(t, err, ErrUnsupportedFrequency)
	})

	t.Run("too many occurrences", func(t *testing.T) {
		_, err := GenerateOccurrences(start, model.FrequencyWeekly, ptr(start.AddDate(50, 0, 0)))
		assert.ErrorIs(t, err, ErrTooManyOccurrences)
	})
}

func TestBuildInstances(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	parent := model.Event{
		ID:                  "p1",
		OwnerID:             "u1",
		Title:               "Algorithms",
		Description:         "Room 101",
		Category:            model.CategoryLecture,
		Color:               "#3b82f6",
		StartDate:           start,
		EndDate:             &end,
		IsRecurring:         true,
		RecurrenceFrequency: model.FrequencyWeekly,
		RecurrenceEndDate:   ptr(time.Date(2024, 1, 29, 9, 0, 0, 0, time.UTC)),
	}

	children, err := Expand(parent)
	require.NoError(t, err)
	require.Len(t, children, 4)

	for i, c := range children {
		wantStart := start.AddDate(0, 0, 7*(i+1))
		assert.True(t, c.StartDate.Equal(wantStart))
		require.NotNil(t, c.EndDate)
		assert.Equal(t, 90*time.Minute, c.EndDate.Sub(c.StartDate))
		assert.Equal(t, "p1", c.ParentEventID)
		assert.False(t, c.IsRecurring)
		assert.Empty(t, c.RecurrenceFrequency)
		assert.Nil(t, c.RecurrenceEndDate)
		assert.Equal(t, parent.Title, c.Title)
		assert.Equal(t, parent.Description, c.Description)
		assert.Equal(t, parent.Category, c.Category)
		assert.Equal(t, parent.Color, c.Color)
		assert.Equal(t, parent.OwnerID, c.OwnerID)
	}

	t.Run("end date at midnight excludes that day's occurrence", func(t *testing.T) {
		p := parent
		p.RecurrenceEndDate = ptr(day(2024, 1, 29))
		children, err := Expand(p)
		require.NoError(t, err)
		require.Len(t, children, 3)
		assert.True(t, children[2].StartDate.Equal(time.Date(2024, 1, 22, 9, 0, 0, 0, time.UTC)))
	})

	t.Run("point event children have no end", func(t *testing.T) {
		p := parent
		p.EndDate = nil
		children, err := Expand(p)
		require.NoError(t, err)
		for _, c := range children {
			assert.Nil(t, c.EndDate)
		}
	})

	t.Run("non recurring parent", func(t *testing.T) {
		p := parent
		p.IsRecurring = false
		children, err := Expand(p)
		require.NoError(t, err)
		assert.Empty(t, children)
	})
}

func TestFromRule(t *testing.T) {
	start := time.Date(2024, 4, 15, 10, 0, 0, 0, time.UTC) // Monday

	freq, until, err := FromRule("FREQ=WEEKLY;UNTIL=20240715T100000Z", start)
	require.NoError(t, err)
	assert.Equal(t, model.FrequencyWeekly, freq)
	require.NotNil(t, until)
	assert.True(t, until.Equal(time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)))

	freq, until, err = FromRule("FREQ=WEEKLY;BYDAY=MO", start)
	require.NoError(t, err)
	assert.Equal(t, model.FrequencyWeekly, freq)
	assert.Nil(t, until)

	for _, raw := range []string{
		"FREQ=DAILY",
		"FREQ=WEEKLY;INTERVAL=2",
		"FREQ=WEEKLY;COUNT=10",
		"FREQ=WEEKLY;BYDAY=MO,WE",
		"FREQ=WEEKLY;BYDAY=TU",
	} {
		_, _, err := FromRule(raw, start)
		assert.ErrorIs(t, err, ErrUnsupportedFrequency, raw)
	}
}
