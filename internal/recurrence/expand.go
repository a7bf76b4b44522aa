package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"studyplan/internal/datetime"
	"studyplan/internal/model"
)

const (
	// OpenEndedCapDays bounds series without a recurrence end date.
	OpenEndedCapDays = 365

	// MaxOccurrences is a safety cap for series with a far-away end date.
	MaxOccurrences = 1000
)

var (
	ErrUnsupportedFrequency = errors.New("unsupported recurrence frequency")
	ErrTooManyOccurrences   = fmt.Errorf("recurrence produces more than %d occurrences", MaxOccurrences)
)

// ruleFrequency maps a model frequency onto its RRULE counterpart. Every
// supported frequency needs a case here.
func ruleFrequency(f model.Frequency) (rrule.Frequency, error) {
	switch f {
	case model.FrequencyWeekly:
		return rrule.WEEKLY, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFrequency, f)
	}
}

// SupportedFrequency reports whether f can be expanded.
func SupportedFrequency(f model.Frequency) bool {
	_, err := ruleFrequency(f)
	return err == nil
}

// Limit returns the inclusive upper bound for generated occurrences: the
// recurrence end date if given, else start + OpenEndedCapDays calendar days.
func Limit(start time.Time, until *time.Time) time.Time {
	if until != nil {
		return *until
	}
	return datetime.AddDays(start, OpenEndedCapDays)
}

// GenerateOccurrences returns the ordered start times of a series. The first
// element is always start itself; later elements follow the frequency in
// start's location (wall-clock preserving) and never exceed Limit.
func GenerateOccurrences(start time.Time, freq model.Frequency, until *time.Time) ([]time.Time, error) {
	rf, err := ruleFrequency(freq)
	if err != nil {
		return nil, err
	}

	limit := Limit(start, until)
	if limit.Before(start) {
		return []time.Time{start}, nil
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     rf,
		Interval: 1,
		Dtstart:  start.Truncate(time.Second),
		Until:    limit,
		Count:    MaxOccurrences + 1,
	})
	if err != nil {
		return nil, err
	}

	// rrule works on whole seconds; carry the sub-second part of start over.
	frac := start.Sub(start.Truncate(time.Second))

	all := r.All()
	if len(all) > MaxOccurrences {
		return nil, ErrTooManyOccurrences
	}

	out := make([]time.Time, 0, len(all))
	for _, occ := range all {
		occ = occ.Add(frac)
		if occ.After(limit) {
			break
		}
		out = append(out, occ)
	}
	if len(out) == 0 || !out[0].Equal(start) {
		out = append([]time.Time{start}, out...)
	}
	return out, nil
}

// BuildInstances turns the generated occurrences of parent into child
// events. The first occurrence is the parent itself and is skipped.
// Instances copy the shared fields, keep the parent's duration and carry
// no recurrence rule of their own.
func BuildInstances(parent model.Event, occurrences []time.Time) []model.Event {
	if len(occurrences) <= 1 {
		return nil
	}
	dur, hasEnd := parent.Duration()

	out := make([]model.Event, 0, len(occurrences)-1)
	for _, occStart := range occurrences[1:] {
		child := model.Event{
			OwnerID:       parent.OwnerID,
			Title:         parent.Title,
			Description:   parent.Description,
			Category:      parent.Category,
			Color:         parent.Color,
			StartDate:     occStart,
			AllDay:        parent.AllDay,
			ParentEventID: parent.ID,
		}
		if hasEnd {
			end := occStart.Add(dur)
			child.EndDate = &end
		}
		out = append(out, child)
	}
	return out
}

// Expand runs GenerateOccurrences for a recurring parent and builds its
// instances in one step.
func Expand(parent model.Event) ([]model.Event, error) {
	if !parent.IsRecurring {
		return nil, nil
	}
	occ, err := GenerateOccurrences(parent.StartDate, parent.RecurrenceFrequency, parent.RecurrenceEndDate)
	if err != nil {
		return nil, err
	}
	return BuildInstances(parent, occ), nil
}
