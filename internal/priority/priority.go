// Package priority ranks open tasks and lists upcoming exams and
// submissions. Everything here is a pure function of its inputs and the
// supplied "now".
package priority

import (
	"sort"
	"time"

	"studyplan/internal/datetime"
	"studyplan/internal/model"
)

type UrgencyLevel string

const (
	UrgencyCritical UrgencyLevel = "critical"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyLow      UrgencyLevel = "low"
)

// InProgressBonus is added to tasks that have been started.
const InProgressBonus = 100

// ScoredTask is a task annotated with its ranking data.
type ScoredTask struct {
	model.Task
	PriorityScore int          `json:"priorityScore"`
	DaysUntilDue  int          `json:"daysUntilDue"`
	UrgencyLevel  UrgencyLevel `json:"urgencyLevel"`
}

// Score computes the due-date part of the priority score for daysUntilDue.
//
//	overdue   1000 + 10*|d|
//	today     500
//	1..3      300 - 50*d
//	4..7      200 - 20*d
//	> 7       max(0, 100 - 5*d)
func Score(daysUntilDue int) int {
	d := daysUntilDue
	switch {
	case d < 0:
		return 1000 + 10*(-d)
	case d == 0:
		return 500
	case d <= 3:
		return 300 - 50*d
	case d <= 7:
		return 200 - 20*d
	default:
		return max(0, 100-5*d)
	}
}

// Urgency classifies daysUntilDue on its own scale, unrelated to the
// score breakpoints.
func Urgency(daysUntilDue int) UrgencyLevel {
	switch d := daysUntilDue; {
	case d <= 0:
		return UrgencyCritical
	case d <= 2:
		return UrgencyHigh
	case d <= 5:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// ScoreTask scores a single open task. Callers filter out done tasks.
func ScoreTask(task model.Task, now time.Time) ScoredTask {
	days := datetime.DaysUntil(task.DueDate, now)
	score := Score(days)
	if task.Status == model.TaskInProgress {
		score += InProgressBonus
	}
	return ScoredTask{
		Task:          task,
		PriorityScore: score,
		DaysUntilDue:  days,
		UrgencyLevel:  Urgency(days),
	}
}

// RankTasks drops done tasks, scores the rest and returns them by
// descending score. Equal scores keep their input order. A limit <= 0
// returns every open task.
func RankTasks(tasks []model.Task, now time.Time, limit int) []ScoredTask {
	scored := make([]ScoredTask, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == model.TaskDone {
			continue
		}
		scored = append(scored, ScoreTask(t, now))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].PriorityScore > scored[j].PriorityScore
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
