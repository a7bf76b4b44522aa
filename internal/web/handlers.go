package web

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"studyplan/internal/datetime"
	"studyplan/internal/ics"
	appLog "studyplan/internal/log"
	"studyplan/internal/planner"
)

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(recoveryMiddleware, loggingMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(ownerMiddleware)

	api.HandleFunc("/events", s.handleListEvents).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleCreateEvent).Methods(http.MethodPost)
	api.HandleFunc("/events/import", s.handleImportEvents).Methods(http.MethodPost)
	api.HandleFunc("/events/{id}", s.handleUpdateEvent).Methods(http.MethodPatch)
	api.HandleFunc("/events/{id}", s.handleDeleteEvent).Methods(http.MethodDelete)
	api.HandleFunc("/calendar.ics", s.handleExportCalendar).Methods(http.MethodGet)

	api.HandleFunc("/tasks", s.handleListTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.handleCreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", s.handleUpdateTask).Methods(http.MethodPatch)
	api.HandleFunc("/tasks/{id}", s.handleDeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id}/reminder", s.handleUpdateReminder).Methods(http.MethodPut)
	api.HandleFunc("/reminders", s.handleDueReminders).Methods(http.MethodGet)
	api.HandleFunc("/reminders/{id}/notified", s.handleMarkNotified).Methods(http.MethodPost)

	api.HandleFunc("/exams", s.handleListExams).Methods(http.MethodGet)
	api.HandleFunc("/exams", s.handleCreateExam).Methods(http.MethodPost)
	api.HandleFunc("/exams/{id}", s.handleUpdateExam).Methods(http.MethodPatch)
	api.HandleFunc("/exams/{id}", s.handleDeleteExam).Methods(http.MethodDelete)

	api.HandleFunc("/submissions", s.handleListSubmissions).Methods(http.MethodGet)
	api.HandleFunc("/submissions", s.handleCreateSubmission).Methods(http.MethodPost)
	api.HandleFunc("/submissions/{id}", s.handleUpdateSubmission).Methods(http.MethodPatch)
	api.HandleFunc("/submissions/{id}", s.handleDeleteSubmission).Methods(http.MethodDelete)
	api.HandleFunc("/submissions/{id}/toggle", s.handleToggleSubmission).Methods(http.MethodPost)

	api.HandleFunc("/priority", s.handlePriority).Methods(http.MethodGet)
	api.HandleFunc("/stress", s.handleStress).Methods(http.MethodGet)
	api.HandleFunc("/focus-sessions", s.handleLogFocus).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	api.HandleFunc("/check-ins", s.handleListCheckIns).Methods(http.MethodGet)
	api.HandleFunc("/check-ins", s.handleCreateCheckIn).Methods(http.MethodPost)
	api.HandleFunc("/check-ins/today", s.handleCheckedInToday).Methods(http.MethodGet)
	api.HandleFunc("/check-ins/count", s.handleCheckInCount).Methods(http.MethodGet)
	api.HandleFunc("/progress", s.handleProgress).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ---- events ----

// handleListEvents returns stored events, optionally bounded.
//
// GET /api/events?from=2024-01-01&to=2024-02-01
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var from, to *time.Time
	for name, dst := range map[string]**time.Time{"from": &from, "to": &to} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := datetime.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, name+": "+err.Error())
			return
		}
		*dst = &t
	}

	events, err := s.svc.ListEvents(r.Context(), ownerFrom(r), from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in planner.NewEvent
	if !decodeJSON(w, r, &in) {
		return
	}
	ev, err := s.svc.CreateEvent(r.Context(), ownerFrom(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var patch planner.EventPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	ev, err := s.svc.UpdateEvent(r.Context(), ownerFrom(r), mux.Vars(r)["id"], patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteEvent(r.Context(), ownerFrom(r), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportEvents imports VEVENTs from the request body (text/calendar)
// or, with ?url=, from a remote calendar.
func (s *Server) handleImportEvents(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if u := r.URL.Query().Get("url"); u != "" {
		if s.fetcher == nil {
			writeError(w, http.StatusBadRequest, "import by url is disabled")
			return
		}
		res, err := s.fetcher.Fetch(r.Context(), u)
		if errors.Is(err, ics.ErrBlockedHost) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusBadGateway, "calendar fetch failed: "+err.Error())
			return
		}
		body = res.Body
	} else {
		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, ics.MaxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read calendar body")
			return
		}
		body = b
	}

	parsed, err := ics.ParseICS(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid calendar: "+err.Error())
		return
	}
	res, err := s.svc.ImportEvents(r.Context(), ownerFrom(r), parsed)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	appLog.Info("ics import completed", "owner", ownerFrom(r), "created", res.Created, "rejected", len(res.Rejected))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExportCalendar(w http.ResponseWriter, r *http.Request) {
	events, err := s.svc.ListEvents(r.Context(), ownerFrom(r), nil, nil)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := ics.WriteCalendar(&buf, "Study plan", events, s.now()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="studyplan.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ---- tasks & reminders ----

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.ListTasks(r.Context(), ownerFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in planner.NewTask
	if !decodeJSON(w, r, &in) {
		return
	}
	task, err := s.svc.CreateTask(r.Context(), ownerFrom(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch planner.TaskPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	task, err := s.svc.UpdateTask(r.Context(), ownerFrom(r), mux.Vars(r)["id"], patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTask(r.Context(), ownerFrom(r), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	var patch planner.ReminderPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	task, err := s.svc.UpdateTaskReminder(r.Context(), ownerFrom(r), mux.Vars(r)["id"], patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDueReminders(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.DueReminders(r.Context(), ownerFrom(r), s.clock())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleMarkNotified(w http.ResponseWriter, r *http.Request) {
	task, err := s.svc.MarkReminderNotified(r.Context(), ownerFrom(r), mux.Vars(r)["id"], s.clock())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ---- exams & submissions ----

func (s *Server) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := s.svc.ListExams(r.Context(), ownerFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exams)
}

func (s *Server) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var in planner.NewExam
	if !decodeJSON(w, r, &in) {
		return
	}
	exam, err := s.svc.CreateExam(r.Context(), ownerFrom(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exam)
}

func (s *Server) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	var patch planner.ExamPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	exam, err := s.svc.UpdateExam(r.Context(), ownerFrom(r), mux.Vars(r)["id"], patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exam)
}

func (s *Server) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteExam(r.Context(), ownerFrom(r), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListSubmissions lists submissions, optionally for one subject.
//
// GET /api/submissions?subject=Analysis
func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	var (
		subs any
		err  error
	)
	if subject := strings.TrimSpace(r.URL.Query().Get("subject")); subject != "" {
		subs, err = s.svc.ListSubmissionsBySubject(r.Context(), ownerFrom(r), subject)
	} else {
		subs, err = s.svc.ListSubmissions(r.Context(), ownerFrom(r))
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var in planner.NewSubmission
	if !decodeJSON(w, r, &in) {
		return
	}
	sub, err := s.svc.CreateSubmission(r.Context(), ownerFrom(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleUpdateSubmission(w http.ResponseWriter, r *http.Request) {
	var patch planner.SubmissionPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	sub, err := s.svc.UpdateSubmission(r.Context(), ownerFrom(r), mux.Vars(r)["id"], patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleToggleSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := s.svc.ToggleSubmission(r.Context(), ownerFrom(r), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleDeleteSubmission(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteSubmission(r.Context(), ownerFrom(r), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- views ----

// handlePriority returns the top open tasks.
//
// GET /api/priority?limit=5
func (s *Server) handlePriority(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), s.cfg.PriorityLimit)
	ranked, err := s.svc.RankTasks(r.Context(), ownerFrom(r), s.clock(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

// handleStress returns exams and open submissions within the horizon.
//
// GET /api/stress?days=30
func (s *Server) handleStress(w http.ResponseWriter, r *http.Request) {
	days := parseIntDefault(r.URL.Query().Get("days"), s.cfg.StressHorizonDays)
	items, err := s.svc.ClassifyStressItems(r.Context(), ownerFrom(r), s.clock(), days)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleLogFocus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Duration int `json:"duration"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	fs, err := s.svc.LogFocusSession(r.Context(), ownerFrom(r), in.Duration, s.clock())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats(r.Context(), ownerFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ---- check-ins ----

func (s *Server) handleListCheckIns(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListCheckIns(r.Context(), ownerFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateCheckIn(w http.ResponseWriter, r *http.Request) {
	ci, err := s.svc.CreateCheckIn(r.Context(), ownerFrom(r), s.clock())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ci)
}

func (s *Server) handleCheckedInToday(w http.ResponseWriter, r *http.Request) {
	ok, err := s.svc.HasCheckedInToday(r.Context(), ownerFrom(r), s.clock())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"checkedIn": ok})
}

// handleCheckInCount counts recent check-ins.
//
// GET /api/check-ins/count?days=7
func (s *Server) handleCheckInCount(w http.ResponseWriter, r *http.Request) {
	days := parseIntDefault(r.URL.Query().Get("days"), 7)
	n, err := s.svc.CheckInCount(r.Context(), ownerFrom(r), s.clock(), days)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Progress(r.Context(), ownerFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
