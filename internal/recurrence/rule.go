package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"studyplan/internal/model"
)

// FromRule maps a raw RRULE value (as found in an ICS VEVENT) onto the
// recurrence fields of an event. Only rules that the weekly expander can
// reproduce exactly are accepted: FREQ=WEEKLY with interval 1, an optional
// UNTIL and no COUNT or BYxxx parts beyond the start weekday.
func FromRule(raw string, start time.Time) (model.Frequency, *time.Time, error) {
	opt, err := rrule.StrToROptionInLocation(raw, start.Location())
	if err != nil {
		return "", nil, err
	}

	if opt.Freq != rrule.WEEKLY {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedFrequency, opt.Freq)
	}
	if opt.Interval > 1 || opt.Count > 0 {
		return "", nil, fmt.Errorf("%w: interval/count not supported", ErrUnsupportedFrequency)
	}
	if len(opt.Byweekday) > 1 ||
		(len(opt.Byweekday) == 1 && opt.Byweekday[0].Day() != weekdayIndex(start.Weekday())) {
		return "", nil, fmt.Errorf("%w: BYDAY differs from start weekday", ErrUnsupportedFrequency)
	}

	var until *time.Time
	if !opt.Until.IsZero() {
		u := opt.Until
		until = &u
	}
	return model.FrequencyWeekly, until, nil
}

// weekdayIndex converts time.Weekday (Sunday=0) to the rrule index (Monday=0).
func weekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
