package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"studyplan/internal/apperr"
	"studyplan/internal/store"
)

type entry struct {
	seq     uint64
	indexes map[string]string
	body    []byte
}

// Store is an in-process store.Backend. Documents are kept per collection
// together with the sequence number of their insertion.
type Store struct {
	mu          sync.RWMutex
	seq         uint64
	collections map[string]map[string]*entry
}

var _ store.Backend = (*Store)(nil)

func NewStore() *Store {
	return &Store{collections: make(map[string]map[string]*entry)}
}

func (s *Store) table(collection string) map[string]*entry {
	t, ok := s.collections[collection]
	if !ok {
		t = make(map[string]*entry)
		s.collections[collection] = t
	}
	return t
}

func copyIndexes(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyBody(b []byte) []byte {
	return append([]byte(nil), b...)
}

func (s *Store) Insert(_ context.Context, collection string, doc store.Doc) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	id := uuid.NewString()
	s.table(collection)[id] = &entry{
		seq:     s.seq,
		indexes: copyIndexes(doc.Indexes),
		body:    copyBody(doc.Body),
	}
	return id, nil
}

func (s *Store) Get(_ context.Context, collection, id string) (store.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.collections[collection][id]
	if !ok {
		return store.Doc{}, apperr.ErrNotFound
	}
	return store.Doc{ID: id, Body: copyBody(e.body)}, nil
}

func (s *Store) Replace(_ context.Context, collection, id string, doc store.Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.collections[collection][id]
	if !ok {
		return apperr.ErrNotFound
	}
	e.indexes = copyIndexes(doc.Indexes)
	e.body = copyBody(doc.Body)
	return nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections[collection], id)
	return nil
}

func (s *Store) QueryByIndex(_ context.Context, collection, index, key string) ([]store.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		seq uint64
		doc store.Doc
	}
	hits := make([]hit, 0)
	for id, e := range s.collections[collection] {
		if v, ok := e.indexes[index]; ok && v == key {
			hits = append(hits, hit{seq: e.seq, doc: store.Doc{ID: id, Body: copyBody(e.body)}})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })

	out := make([]store.Doc, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.doc)
	}
	return out, nil
}

func (s *Store) Close() error { return nil }
