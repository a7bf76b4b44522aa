package ics

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"studyplan/internal/model"
)

// ProductID identifies exported calendars.
const ProductID = "-//studyplan//Study Planner//EN"

// WriteCalendar serializes events as a PUBLISH calendar. Every stored event
// becomes its own VEVENT; generated instances point at their series parent
// through RELATED-TO, so no RRULE is emitted and clients see exactly the
// stored occurrences.
func WriteCalendar(w io.Writer, name string, events []model.Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetMethod(ical.MethodPublish)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		ve := cal.AddEvent(eventUID(ev.ID))
		ve.SetDtStampTime(stamp)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Category != "" {
			ve.AddCategory(string(ev.Category))
		}
		if ev.AllDay {
			ve.SetAllDayStartAt(ev.StartDate)
			if ev.EndDate != nil {
				ve.SetAllDayEndAt(*ev.EndDate)
			}
		} else {
			ve.SetStartAt(ev.StartDate)
			if ev.EndDate != nil {
				ve.SetEndAt(*ev.EndDate)
			}
		}
		if ev.ParentEventID != "" {
			ve.SetProperty(ical.ComponentPropertyRelatedTo, eventUID(ev.ParentEventID))
		}
	}

	return cal.SerializeTo(w)
}

func eventUID(id string) string {
	return id + "@studyplan"
}
