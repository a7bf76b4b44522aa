package priority

import (
	"sort"
	"time"

	"studyplan/internal/datetime"
	"studyplan/internal/model"
)

type StressKind string

const (
	KindExam       StressKind = "exam"
	KindSubmission StressKind = "submission"
)

// StressItem is one dated entry of the upcoming-workload view.
type StressItem struct {
	Kind   StressKind             `json:"kind"`
	ID     string                 `json:"id"`
	Title  string                 `json:"title"`
	Date   time.Time              `json:"date"`
	Meta   string                 `json:"meta,omitempty"`
	Status model.SubmissionStatus `json:"status,omitempty"`
}

// ClassifyStressItems merges exams and open submissions whose date lies in
// [start of today, start of today + horizonDays], both ends inclusive, and
// orders them soonest first. "Today" is taken in now's location.
func ClassifyStressItems(exams []model.Exam, submissions []model.Submission, now time.Time, horizonDays int) []StressItem {
	from := datetime.StartOfDay(now)
	to := datetime.AddDays(from, horizonDays)
	inWindow := func(t time.Time) bool {
		return !t.Before(from) && !t.After(to)
	}

	items := make([]StressItem, 0, len(exams)+len(submissions))
	for _, e := range exams {
		if !inWindow(e.DateTime) {
			continue
		}
		item := StressItem{Kind: KindExam, ID: e.ID, Title: e.Subject, Date: e.DateTime}
		if e.Location != "" {
			item.Meta = "location: " + e.Location
		}
		items = append(items, item)
	}
	for _, s := range submissions {
		if s.Status == model.SubmissionDone || !inWindow(s.DueDate) {
			continue
		}
		items = append(items, StressItem{
			Kind:   KindSubmission,
			ID:     s.ID,
			Title:  s.Title,
			Date:   s.DueDate,
			Meta:   "subject: " + s.Subject,
			Status: s.Status,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.Before(items[j].Date)
	})
	return items
}
