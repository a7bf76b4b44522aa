// Package store defines the document store the planner works against and a
// typed collection wrapper on top of it. Backends live in subpackages.
package store

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"studyplan/internal/apperr"
	"studyplan/internal/model"
)

// Collection names.
const (
	Events        = "events"
	Tasks         = "tasks"
	Exams         = "exams"
	Submissions   = "submissions"
	FocusSessions = "focusSessions"
	CheckIns      = "checkIns"
)

// Doc is the raw unit of storage. Indexes are written on Insert/Replace;
// backends do not return them from reads.
type Doc struct {
	ID      string
	Indexes map[string]string
	Body    []byte
}

// Backend is the minimal contract every store implementation satisfies.
//
//   - Insert assigns a new id and returns it.
//   - Get and Replace fail with apperr.ErrNotFound for unknown ids.
//   - Delete of an unknown id is a no-op.
//   - QueryByIndex returns matching documents in insertion order.
type Backend interface {
	Insert(ctx context.Context, collection string, doc Doc) (string, error)
	Get(ctx context.Context, collection, id string) (Doc, error)
	Replace(ctx context.Context, collection, id string, doc Doc) error
	Delete(ctx context.Context, collection, id string) error
	QueryByIndex(ctx context.Context, collection, index, key string) ([]Doc, error)
	Close() error
}

// Record is implemented by every stored model type.
type Record interface {
	RecordID() string
	SetRecordID(id string)
	Owner() string
	IndexKeys() map[string]string
}

// Collection is a typed view over one backend collection. P is the pointer
// type of T and carries the Record methods.
type Collection[T any, P interface {
	*T
	Record
}] struct {
	backend Backend
	name    string
	locker  Locker
}

func NewCollection[T any, P interface {
	*T
	Record
}](backend Backend, name string) *Collection[T, P] {
	return &Collection[T, P]{backend: backend, name: name}
}

func (c *Collection[T, P]) Name() string { return c.name }

// WithLocker makes Patch hold l for the record it rewrites, so concurrent
// patches of one record apply one after the other.
func (c *Collection[T, P]) WithLocker(l Locker) *Collection[T, P] {
	c.locker = l
	return c
}

// Insert stores rec and sets its id.
func (c *Collection[T, P]) Insert(ctx context.Context, rec *T) (string, error) {
	p := P(rec)
	body, err := json.Marshal(rec)
	if err != nil {
		return "", errors.Wrapf(err, "%s: encode", c.name)
	}
	id, err := c.backend.Insert(ctx, c.name, Doc{Indexes: p.IndexKeys(), Body: body})
	if err != nil {
		return "", errors.Wrapf(err, "%s: insert", c.name)
	}
	p.SetRecordID(id)
	return id, nil
}

func (c *Collection[T, P]) decode(doc Doc) (T, error) {
	var rec T
	if err := json.Unmarshal(doc.Body, &rec); err != nil {
		return rec, errors.Wrapf(err, "%s: decode %s", c.name, doc.ID)
	}
	P(&rec).SetRecordID(doc.ID)
	return rec, nil
}

func (c *Collection[T, P]) Get(ctx context.Context, id string) (T, error) {
	doc, err := c.backend.Get(ctx, c.name, id)
	if err != nil {
		var zero T
		return zero, errors.Wrapf(err, "%s: get %s", c.name, id)
	}
	return c.decode(doc)
}

// GetOwned is Get restricted to owner. Records of other owners are reported
// as not found.
func (c *Collection[T, P]) GetOwned(ctx context.Context, owner, id string) (T, error) {
	rec, err := c.Get(ctx, id)
	if err != nil {
		return rec, err
	}
	if P(&rec).Owner() != owner {
		var zero T
		return zero, errors.Wrapf(apperr.ErrNotFound, "%s: get %s", c.name, id)
	}
	return rec, nil
}

// Put overwrites the stored record with rec (matched by its id).
func (c *Collection[T, P]) Put(ctx context.Context, rec *T) error {
	p := P(rec)
	body, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "%s: encode", c.name)
	}
	if err := c.backend.Replace(ctx, c.name, p.RecordID(), Doc{ID: p.RecordID(), Indexes: p.IndexKeys(), Body: body}); err != nil {
		return errors.Wrapf(err, "%s: replace %s", c.name, p.RecordID())
	}
	return nil
}

// Patch loads the record, applies fn and writes the result back. The
// record is not written if fn fails. With a Locker configured the whole
// read-modify-write runs under RecordKey(collection, id).
func (c *Collection[T, P]) Patch(ctx context.Context, id string, fn func(*T) error) (T, error) {
	if c.locker != nil {
		unlock, err := c.locker.Lock(ctx, RecordKey(c.name, id))
		if err != nil {
			var zero T
			return zero, errors.Wrapf(err, "%s: lock %s", c.name, id)
		}
		defer unlock()
	}
	rec, err := c.Get(ctx, id)
	if err != nil {
		return rec, err
	}
	if err := fn(&rec); err != nil {
		var zero T
		return zero, err
	}
	P(&rec).SetRecordID(id)
	if err := c.Put(ctx, &rec); err != nil {
		var zero T
		return zero, err
	}
	return rec, nil
}

func (c *Collection[T, P]) Delete(ctx context.Context, id string) error {
	if err := c.backend.Delete(ctx, c.name, id); err != nil {
		return errors.Wrapf(err, "%s: delete %s", c.name, id)
	}
	return nil
}

func (c *Collection[T, P]) ByIndex(ctx context.Context, index, key string) ([]T, error) {
	docs, err := c.backend.QueryByIndex(ctx, c.name, index, key)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: query %s", c.name, index)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		rec, err := c.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Collection[T, P]) ByOwner(ctx context.Context, owner string) ([]T, error) {
	return c.ByIndex(ctx, model.IndexByOwner, owner)
}
