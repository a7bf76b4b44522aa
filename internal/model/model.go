package model

import "time"

// Index names shared by every store backend.
const (
	IndexByOwner    = "by_owner"
	IndexByParent   = "by_parent"
	IndexByReminder = "by_reminder"
	IndexBySubject  = "by_subject"
	IndexByDay      = "by_owner_date"

	// ReminderIndexKey is the single key used in IndexByReminder.
	ReminderIndexKey = "on"
)

// Category classifies calendar events. Each category has a fixed color.
type Category string

const (
	CategoryLecture  Category = "lecture"
	CategoryExercise Category = "exercise"
	CategoryLab      Category = "lab"
	CategoryOther    Category = "other"
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryLecture, CategoryExercise, CategoryLab, CategoryOther}

// Color returns the display color of c. ok is false for unknown categories;
// new categories must be added here.
func (c Category) Color() (color string, ok bool) {
	switch c {
	case CategoryLecture:
		return "#3b82f6", true
	case CategoryExercise:
		return "#10b981", true
	case CategoryLab:
		return "#8b5cf6", true
	case CategoryOther:
		return "#6b7280", true
	default:
		return "", false
	}
}

// Frequency is the cadence of a recurring event.
type Frequency string

const (
	FrequencyWeekly Frequency = "weekly"
)

// Event represents a calendar item. A recurring event (the parent) holds
// the recurrence rule; its generated occurrences are stored as separate
// events referencing it via ParentEventID.
type Event struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`

	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    Category `json:"category"`
	Color       string   `json:"color"`

	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	AllDay    bool       `json:"allDay"`

	IsRecurring         bool       `json:"isRecurring"`
	RecurrenceFrequency Frequency  `json:"recurrenceFrequency,omitempty"`
	RecurrenceEndDate   *time.Time `json:"recurrenceEndDate,omitempty"`

	// ParentEventID is set only on generated instances.
	ParentEventID string `json:"parentEventId,omitempty"`
}

func (e *Event) RecordID() string      { return e.ID }
func (e *Event) SetRecordID(id string) { e.ID = id }
func (e *Event) Owner() string         { return e.OwnerID }
func (e *Event) IsInstance() bool      { return e.ParentEventID != "" }
func (e *Event) IsSeriesParent() bool  { return e.IsRecurring && e.ParentEventID == "" }

func (e *Event) IndexKeys() map[string]string {
	idx := map[string]string{IndexByOwner: e.OwnerID}
	if e.ParentEventID != "" {
		idx[IndexByParent] = e.ParentEventID
	}
	return idx
}

// Duration returns EndDate - StartDate, or zero for point events.
func (e *Event) Duration() (time.Duration, bool) {
	if e.EndDate == nil {
		return 0, false
	}
	return e.EndDate.Sub(e.StartDate), true
}

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Task is a user to-do with a due date and optional reminder settings.
type Task struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`

	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     time.Time  `json:"dueDate"`
	Status      TaskStatus `json:"status"`

	ReminderEnabled        bool       `json:"reminderEnabled,omitempty"`
	ReminderMinutesBefore  *int       `json:"reminderMinutesBefore,omitempty"`
	ReminderLastNotifiedAt *time.Time `json:"reminderLastNotifiedAt,omitempty"`
}

func (t *Task) RecordID() string      { return t.ID }
func (t *Task) SetRecordID(id string) { t.ID = id }
func (t *Task) Owner() string         { return t.OwnerID }

func (t *Task) IndexKeys() map[string]string {
	idx := map[string]string{IndexByOwner: t.OwnerID}
	if t.ReminderEnabled {
		idx[IndexByReminder] = ReminderIndexKey
	}
	return idx
}

// Exam is a scheduled exam.
type Exam struct {
	ID       string    `json:"id"`
	OwnerID  string    `json:"ownerId"`
	Subject  string    `json:"subject"`
	DateTime time.Time `json:"dateTime"`
	Location string    `json:"location,omitempty"`
}

func (e *Exam) RecordID() string      { return e.ID }
func (e *Exam) SetRecordID(id string) { e.ID = id }
func (e *Exam) Owner() string         { return e.OwnerID }

func (e *Exam) IndexKeys() map[string]string {
	return map[string]string{IndexByOwner: e.OwnerID}
}

type SubmissionStatus string

const (
	SubmissionOpen SubmissionStatus = "open"
	SubmissionDone SubmissionStatus = "done"
)

// Submission is an assignment hand-in with a due date.
type Submission struct {
	ID      string           `json:"id"`
	OwnerID string           `json:"ownerId"`
	Title   string           `json:"title"`
	Subject string           `json:"subject"`
	DueDate time.Time        `json:"dueDate"`
	Status  SubmissionStatus `json:"status"`
}

func (s *Submission) RecordID() string      { return s.ID }
func (s *Submission) SetRecordID(id string) { s.ID = id }
func (s *Submission) Owner() string         { return s.OwnerID }

func (s *Submission) IndexKeys() map[string]string {
	return map[string]string{
		IndexByOwner:   s.OwnerID,
		IndexBySubject: SubjectKey(s.OwnerID, s.Subject),
	}
}

// SubjectKey builds the IndexBySubject key, scoped to the owner.
func SubjectKey(ownerID, subject string) string {
	return ownerID + "\x00" + subject
}

// FocusSession records one completed focus (pomodoro) block.
type FocusSession struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Duration    int       `json:"duration"` // minutes
	CompletedAt time.Time `json:"completedAt"`
}

func (f *FocusSession) RecordID() string      { return f.ID }
func (f *FocusSession) SetRecordID(id string) { f.ID = id }
func (f *FocusSession) Owner() string         { return f.OwnerID }

func (f *FocusSession) IndexKeys() map[string]string {
	return map[string]string{IndexByOwner: f.OwnerID}
}

// CheckIn marks a day on which the owner studied. There is at most one per
// owner and calendar day.
type CheckIn struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Date      string    `json:"date"` // YYYY-MM-DD
	CreatedAt time.Time `json:"createdAt"`
}

func (c *CheckIn) RecordID() string      { return c.ID }
func (c *CheckIn) SetRecordID(id string) { c.ID = id }
func (c *CheckIn) Owner() string         { return c.OwnerID }

func (c *CheckIn) IndexKeys() map[string]string {
	return map[string]string{
		IndexByOwner: c.OwnerID,
		IndexByDay:   DayKey(c.OwnerID, c.Date),
	}
}

// DayKey builds the IndexByDay key for an owner and a YYYY-MM-DD date.
func DayKey(ownerID, date string) string {
	return ownerID + "\x00" + date
}
