package planner

import (
	"strings"
	"time"

	"studyplan/internal/apperr"
	"studyplan/internal/model"
	"studyplan/internal/recurrence"
)

// Dates are accepted as ISO 8601 strings and parsed after validation.
// In patches a nil pointer leaves the field unchanged; for optional dates an
// empty string clears the field.

type NewEvent struct {
	Title               string          `json:"title" validate:"notblank"`
	Description         string          `json:"description"`
	Category            model.Category  `json:"category" validate:"required,category"`
	StartDate           string          `json:"startDate" validate:"required,isodate"`
	EndDate             *string         `json:"endDate" validate:"omitempty,isodate"`
	AllDay              bool            `json:"allDay"`
	IsRecurring         bool            `json:"isRecurring"`
	RecurrenceFrequency model.Frequency `json:"recurrenceFrequency"`
	RecurrenceEndDate   *string         `json:"recurrenceEndDate" validate:"omitempty,isodate"`
}

type EventPatch struct {
	Title               *string          `json:"title" validate:"omitnil,notblank"`
	Description         *string          `json:"description"`
	Category            *model.Category  `json:"category" validate:"omitnil,category"`
	StartDate           *string          `json:"startDate" validate:"omitnil,isodate"`
	EndDate             *string          `json:"endDate" validate:"omitempty,isodate"`
	AllDay              *bool            `json:"allDay"`
	IsRecurring         *bool            `json:"isRecurring"`
	RecurrenceFrequency *model.Frequency `json:"recurrenceFrequency"`
	RecurrenceEndDate   *string          `json:"recurrenceEndDate" validate:"omitempty,isodate"`
}

// touchesRule reports whether p edits the recurrence declaration itself.
func (p EventPatch) touchesRule() bool {
	return p.IsRecurring != nil || p.RecurrenceFrequency != nil || p.RecurrenceEndDate != nil
}

// touchesSchedule reports whether p edits anything the series is generated
// from.
func (p EventPatch) touchesSchedule() bool {
	return p.touchesRule() || p.StartDate != nil || p.EndDate != nil
}

func (p EventPatch) touchesShared() bool {
	return p.Title != nil || p.Description != nil || p.Category != nil || p.AllDay != nil
}

func optionalDate(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := parseDate(field, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (in NewEvent) toEvent(owner string) (model.Event, error) {
	start, err := parseDate("startDate", in.StartDate)
	if err != nil {
		return model.Event{}, err
	}
	end, err := optionalDate("endDate", in.EndDate)
	if err != nil {
		return model.Event{}, err
	}
	until, err := optionalDate("recurrenceEndDate", in.RecurrenceEndDate)
	if err != nil {
		return model.Event{}, err
	}
	ev := model.Event{
		OwnerID:             owner,
		Title:               strings.TrimSpace(in.Title),
		Description:         in.Description,
		Category:            in.Category,
		StartDate:           start,
		EndDate:             end,
		AllDay:              in.AllDay,
		IsRecurring:         in.IsRecurring,
		RecurrenceFrequency: in.RecurrenceFrequency,
		RecurrenceEndDate:   until,
	}
	ev.Color, _ = ev.Category.Color()
	return ev, nil
}

// apply merges p into ev. Fields absent from p keep their current values.
func (p EventPatch) apply(ev *model.Event) error {
	if p.Title != nil {
		ev.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		ev.Description = *p.Description
	}
	if p.Category != nil {
		ev.Category = *p.Category
		ev.Color, _ = ev.Category.Color()
	}
	if p.StartDate != nil {
		start, err := parseDate("startDate", *p.StartDate)
		if err != nil {
			return err
		}
		ev.StartDate = start
	}
	if p.EndDate != nil {
		end, err := optionalDate("endDate", p.EndDate)
		if err != nil {
			return err
		}
		ev.EndDate = end
	}
	if p.AllDay != nil {
		ev.AllDay = *p.AllDay
	}
	if p.IsRecurring != nil {
		ev.IsRecurring = *p.IsRecurring
	}
	if p.RecurrenceFrequency != nil {
		ev.RecurrenceFrequency = *p.RecurrenceFrequency
	}
	if p.RecurrenceEndDate != nil {
		until, err := optionalDate("recurrenceEndDate", p.RecurrenceEndDate)
		if err != nil {
			return err
		}
		ev.RecurrenceEndDate = until
	}
	return nil
}

// checkEvent validates the cross-field rules of a fully merged event.
func checkEvent(ev model.Event) error {
	if ev.EndDate != nil && ev.EndDate.Before(ev.StartDate) {
		return apperr.Invalid("endDate", "endDate must not be before startDate")
	}
	if ev.IsRecurring && !recurrence.SupportedFrequency(ev.RecurrenceFrequency) {
		return apperr.Invalid("recurrenceFrequency", "unsupported recurrence frequency")
	}
	return nil
}

type NewTask struct {
	Title                 string           `json:"title" validate:"notblank"`
	Description           string           `json:"description"`
	DueDate               string           `json:"dueDate" validate:"required,isodate"`
	Status                model.TaskStatus `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	ReminderEnabled       bool             `json:"reminderEnabled"`
	ReminderMinutesBefore *int             `json:"reminderMinutesBefore" validate:"omitnil,min=0"`
}

type TaskPatch struct {
	Title       *string           `json:"title" validate:"omitnil,notblank"`
	Description *string           `json:"description"`
	DueDate     *string           `json:"dueDate" validate:"omitnil,isodate"`
	Status      *model.TaskStatus `json:"status" validate:"omitnil,oneof=todo in_progress done"`
}

// ReminderPatch changes the reminder settings of a task.
type ReminderPatch struct {
	Enabled       *bool `json:"enabled"`
	MinutesBefore *int  `json:"minutesBefore" validate:"omitnil,min=0"`
}

type NewExam struct {
	Subject  string `json:"subject" validate:"notblank"`
	DateTime string `json:"dateTime" validate:"required,isodate"`
	Location string `json:"location"`
}

type ExamPatch struct {
	Subject  *string `json:"subject" validate:"omitnil,notblank"`
	DateTime *string `json:"dateTime" validate:"omitnil,isodate"`
	Location *string `json:"location"`
}

type NewSubmission struct {
	Title   string                 `json:"title" validate:"notblank"`
	Subject string                 `json:"subject" validate:"notblank"`
	DueDate string                 `json:"dueDate" validate:"required,isodate"`
	Status  model.SubmissionStatus `json:"status" validate:"omitempty,oneof=open done"`
}

type SubmissionPatch struct {
	Title   *string                 `json:"title" validate:"omitnil,notblank"`
	Subject *string                 `json:"subject" validate:"omitnil,notblank"`
	DueDate *string                 `json:"dueDate" validate:"omitnil,isodate"`
	Status  *model.SubmissionStatus `json:"status" validate:"omitnil,oneof=open done"`
}
