package planner

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"studyplan/internal/apperr"
	appLog "studyplan/internal/log"
	"studyplan/internal/model"
	"studyplan/internal/recurrence"
	"studyplan/internal/store"
)

// CreateEvent stores a new event. For a recurring event the generated
// instances are materialized before it returns.
func (s *Service) CreateEvent(ctx context.Context, owner string, in NewEvent) (model.Event, error) {
	if err := requireOwner(owner); err != nil {
		return model.Event{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return model.Event{}, err
	}
	ev, err := in.toEvent(owner)
	if err != nil {
		return model.Event{}, err
	}
	return s.insertEvent(ctx, ev)
}

// insertEvent checks ev, inserts it and materializes its series. All
// validation (including the occurrence count) happens before the first
// write.
func (s *Service) insertEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	if err := checkEvent(ev); err != nil {
		return model.Event{}, err
	}
	ev.ParentEventID = ""
	if !ev.IsRecurring {
		if _, err := s.events.Insert(ctx, &ev); err != nil {
			return model.Event{}, err
		}
		return ev, nil
	}

	if _, err := recurrence.Expand(ev); err != nil {
		return model.Event{}, recurrenceError(err)
	}
	if _, err := s.events.Insert(ctx, &ev); err != nil {
		return model.Event{}, err
	}

	unlock, err := s.locker.Lock(ctx, store.SeriesKey(ev.ID))
	if err != nil {
		return model.Event{}, err
	}
	defer unlock()

	n, err := s.MaterializeSeries(ctx, ev)
	if err != nil {
		s.rollbackSeries(ev)
		return model.Event{}, err
	}
	appLog.Debug("series materialized", "event_id", ev.ID, "instances", n)
	return ev, nil
}

// rollbackSeries removes a half-created series. It runs on a fresh context
// so a cancelled request still cleans up.
func (s *Service) rollbackSeries(parent model.Event) {
	ctx := context.Background()
	if err := s.deleteChildren(ctx, parent.ID); err != nil {
		appLog.Error("series rollback failed", err, "event_id", parent.ID)
	}
	if err := s.events.Delete(ctx, parent.ID); err != nil {
		appLog.Error("series rollback failed", err, "event_id", parent.ID)
	}
}

func recurrenceError(err error) error {
	if errors.Is(err, recurrence.ErrUnsupportedFrequency) || errors.Is(err, recurrence.ErrTooManyOccurrences) {
		return apperr.Invalid("recurrenceFrequency", err.Error())
	}
	return err
}

// MaterializeSeries inserts one instance per generated occurrence after the
// first and returns how many were written. parent must already be stored.
// Callers hold the series lock.
func (s *Service) MaterializeSeries(ctx context.Context, parent model.Event) (int, error) {
	if parent.ID == "" || parent.IsInstance() {
		return 0, apperr.Invariant("materialize requires a stored series parent")
	}
	children, err := recurrence.Expand(parent)
	if err != nil {
		return 0, recurrenceError(err)
	}
	for i := range children {
		if _, err := s.events.Insert(ctx, &children[i]); err != nil {
			return i, err
		}
	}
	return len(children), nil
}

func (s *Service) deleteChildren(ctx context.Context, parentID string) error {
	children, err := s.events.ByIndex(ctx, model.IndexByParent, parentID)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := s.events.Delete(ctx, c.ID); err != nil {
			return err
		}
	}
	return nil
}

// GetEvent returns one of owner's events.
func (s *Service) GetEvent(ctx context.Context, owner, id string) (model.Event, error) {
	if err := requireOwner(owner); err != nil {
		return model.Event{}, err
	}
	return s.events.GetOwned(ctx, owner, id)
}

// ListEvents returns owner's events (parents, instances and single events)
// ordered by start. from and to are inclusive bounds on the start date; nil
// means unbounded.
func (s *Service) ListEvents(ctx context.Context, owner string, from, to *time.Time) ([]model.Event, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	all, err := s.events.ByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(all))
	for _, ev := range all {
		if from != nil && ev.StartDate.Before(*from) {
			continue
		}
		if to != nil && ev.StartDate.After(*to) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

// UpdateEvent applies patch to an event. Edits to the schedule of a series
// parent (or of an event becoming one) resynchronize its instances; other
// edits are plain patches, with shared fields copied onto the instances.
func (s *Service) UpdateEvent(ctx context.Context, owner, id string, patch EventPatch) (model.Event, error) {
	if err := requireOwner(owner); err != nil {
		return model.Event{}, err
	}
	if err := s.validate.Struct(patch); err != nil {
		return model.Event{}, err
	}

	current, err := s.events.GetOwned(ctx, owner, id)
	if err != nil {
		return model.Event{}, err
	}
	if current.IsInstance() {
		return s.updateInstance(ctx, owner, current, patch)
	}

	unlock, err := s.locker.Lock(ctx, store.SeriesKey(id))
	if err != nil {
		return model.Event{}, err
	}
	defer unlock()

	// Reload under the lock; a concurrent edit may have landed.
	current, err = s.events.GetOwned(ctx, owner, id)
	if err != nil {
		return model.Event{}, err
	}

	if patch.touchesSchedule() && (current.IsRecurring || (patch.IsRecurring != nil && *patch.IsRecurring)) {
		return s.resynchronize(ctx, current, patch)
	}

	merged := current
	if err := patch.apply(&merged); err != nil {
		return model.Event{}, err
	}
	if err := checkEvent(merged); err != nil {
		return model.Event{}, err
	}
	if err := s.events.Put(ctx, &merged); err != nil {
		return model.Event{}, err
	}
	if merged.IsRecurring && patch.touchesShared() {
		if err := s.propagateShared(ctx, merged); err != nil {
			return model.Event{}, err
		}
	}
	return merged, nil
}

// ResynchronizeSeries re-derives the instances of a series parent from its
// declaration merged with patch. Callers normally go through UpdateEvent.
func (s *Service) ResynchronizeSeries(ctx context.Context, owner, id string, patch EventPatch) (model.Event, error) {
	if err := requireOwner(owner); err != nil {
		return model.Event{}, err
	}
	if err := s.validate.Struct(patch); err != nil {
		return model.Event{}, err
	}

	unlock, err := s.locker.Lock(ctx, store.SeriesKey(id))
	if err != nil {
		return model.Event{}, err
	}
	defer unlock()

	current, err := s.events.GetOwned(ctx, owner, id)
	if err != nil {
		return model.Event{}, err
	}
	return s.resynchronize(ctx, current, patch)
}

// resynchronize drops every instance of current, regenerates them from the
// merged declaration and finally writes the parent. Expansion runs before
// the first write so a bad declaration leaves the series untouched.
func (s *Service) resynchronize(ctx context.Context, current model.Event, patch EventPatch) (model.Event, error) {
	if current.IsInstance() {
		return model.Event{}, apperr.Invariant("cannot resynchronize a series through one of its instances")
	}

	merged := current
	if err := patch.apply(&merged); err != nil {
		return model.Event{}, err
	}
	if err := checkEvent(merged); err != nil {
		return model.Event{}, err
	}
	children, err := recurrence.Expand(merged)
	if err != nil {
		return model.Event{}, recurrenceError(err)
	}

	if err := s.deleteChildren(ctx, current.ID); err != nil {
		return model.Event{}, err
	}
	for i := range children {
		if _, err := s.events.Insert(ctx, &children[i]); err != nil {
			return model.Event{}, err
		}
	}
	if err := s.events.Put(ctx, &merged); err != nil {
		return model.Event{}, err
	}
	appLog.Debug("series resynchronized", "event_id", merged.ID, "instances", len(children))
	return merged, nil
}

// propagateShared copies the shared fields of parent onto its instances.
func (s *Service) propagateShared(ctx context.Context, parent model.Event) error {
	children, err := s.events.ByIndex(ctx, model.IndexByParent, parent.ID)
	if err != nil {
		return err
	}
	for _, c := range children {
		c.Title = parent.Title
		c.Description = parent.Description
		c.Category = parent.Category
		c.Color = parent.Color
		c.AllDay = parent.AllDay
		if err := s.events.Put(ctx, &c); err != nil {
			return err
		}
	}
	return nil
}

// updateInstance patches a single generated instance. The recurrence rule
// belongs to the parent, so rule edits are rejected; date edits stay on the
// instance until the next resynchronization of its series.
func (s *Service) updateInstance(ctx context.Context, owner string, current model.Event, patch EventPatch) (model.Event, error) {
	if patch.touchesRule() {
		return model.Event{}, apperr.Invariant("recurrence fields belong to the series parent")
	}

	unlock, err := s.locker.Lock(ctx, store.SeriesKey(current.ParentEventID))
	if err != nil {
		return model.Event{}, err
	}
	defer unlock()

	current, err = s.events.GetOwned(ctx, owner, current.ID)
	if err != nil {
		return model.Event{}, err
	}
	merged := current
	if err := patch.apply(&merged); err != nil {
		return model.Event{}, err
	}
	if err := checkEvent(merged); err != nil {
		return model.Event{}, err
	}
	if err := s.events.Put(ctx, &merged); err != nil {
		return model.Event{}, err
	}
	return merged, nil
}

// DeleteEvent removes an event. Deleting a series parent removes all of its
// instances first; deleting an instance or a single event removes only that
// record.
func (s *Service) DeleteEvent(ctx context.Context, owner, id string) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	ev, err := s.events.GetOwned(ctx, owner, id)
	if err != nil {
		return err
	}

	key := store.SeriesKey(ev.ID)
	if ev.IsInstance() {
		key = store.SeriesKey(ev.ParentEventID)
	}
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	if ev.IsSeriesParent() {
		return s.deleteSeries(ctx, ev.ID)
	}
	return s.events.Delete(ctx, ev.ID)
}

func (s *Service) deleteSeries(ctx context.Context, parentID string) error {
	if err := s.deleteChildren(ctx, parentID); err != nil {
		return err
	}
	return s.events.Delete(ctx, parentID)
}
