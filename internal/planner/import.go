package planner

import (
	"context"
	"strings"

	"studyplan/internal/apperr"
	"studyplan/internal/ics"
	appLog "studyplan/internal/log"
	"studyplan/internal/model"
	"studyplan/internal/recurrence"
)

// ImportResult summarizes an ICS import.
type ImportResult struct {
	Created int `json:"created"`
	// SkippedRecurrences names events whose RRULE could not be mapped onto
	// a weekly series; they were imported as single events.
	SkippedRecurrences []string `json:"skippedRecurrences,omitempty"`
	// Rejected names events that failed validation and were not imported.
	Rejected []string `json:"rejected,omitempty"`
}

// ImportEvents stores parsed VEVENTs as owner's events. Weekly rules become
// series parents with materialized instances.
func (s *Service) ImportEvents(ctx context.Context, owner string, parsed []ics.ParsedEvent) (ImportResult, error) {
	var res ImportResult
	if err := requireOwner(owner); err != nil {
		return res, err
	}

	for _, pe := range parsed {
		ev := model.Event{
			OwnerID:     owner,
			Title:       pe.Summary,
			Description: pe.Description,
			Category:    importCategory(pe.Categories),
			StartDate:   pe.Start,
			EndDate:     pe.End,
			AllDay:      pe.AllDay,
		}
		ev.Color, _ = ev.Category.Color()

		if pe.RawRRule != "" {
			freq, until, err := recurrence.FromRule(pe.RawRRule, pe.Start)
			if err != nil {
				appLog.Debug("ics rrule not mapped", "uid", pe.UID, "rrule", pe.RawRRule, "reason", err.Error())
				res.SkippedRecurrences = append(res.SkippedRecurrences, pe.Summary)
			} else {
				ev.IsRecurring = true
				ev.RecurrenceFrequency = freq
				ev.RecurrenceEndDate = until
			}
		}

		if _, err := s.insertEvent(ctx, ev); err != nil {
			if !apperr.IsValidation(err) {
				return res, err
			}
			appLog.Debug("ics event rejected", "uid", pe.UID, "reason", err.Error())
			res.Rejected = append(res.Rejected, pe.Summary)
			continue
		}
		res.Created++
	}
	return res, nil
}

func importCategory(cats []string) model.Category {
	for _, c := range cats {
		cat := model.Category(strings.ToLower(strings.TrimSpace(c)))
		if _, ok := cat.Color(); ok {
			return cat
		}
	}
	return model.CategoryOther
}
