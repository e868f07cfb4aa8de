package portfolio

import (
	"sort"
	"sync"
)

// Store is the in-memory map of pie id to merged record.
//
// Every operation takes the single store lock for the duration of an in-memory
// copy or update only. Callers always receive copies, never references into the map.
type Store struct {
	mu   sync.Mutex
	pies map[int64]Record
}

func NewStore() *Store {
	return &Store{pies: make(map[int64]Record)}
}

// NewStoreFrom builds a store holding copies of the given records.
func NewStoreFrom(records map[int64]Record) *Store {
	s := NewStore()
	for id, r := range records {
		r.ID = id
		s.pies[id] = r.clone()
	}
	return s
}

// Snapshot returns a point-in-time copy of all records, ordered by id.
func (s *Store) Snapshot() []Record {
	s.mu.Lock()
	out := make([]Record, 0, len(s.pies))
	for _, r := range s.pies {
		out = append(out, r.clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a copy of one record.
func (s *Store) Get(id int64) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.pies[id]
	if !ok {
		return Record{}, false
	}
	return r.clone(), true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pies)
}

// Upsert merges a freshly listed pie. Unknown ids are inserted with enrichment
// unset; known ids get every live field replaced and enrichment left untouched.
// It reports whether the record was created.
func (s *Store) Upsert(p Pie) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.pies[p.ID]
	if !ok {
		r = Record{ID: p.ID}
	}
	r.applyLive(p)
	s.pies[p.ID] = r
	return !ok
}

// SetEnrichment fills name and creation date where they are still unset.
// Values already present are never overwritten. It reports whether anything changed.
func (s *Store) SetEnrichment(id int64, m Meta) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.pies[id]
	if !ok {
		return false
	}
	changed := false
	if r.CreatedAt == nil {
		created := m.CreatedAt
		r.CreatedAt = &created
		changed = true
	}
	if r.Name == nil {
		name := m.Name
		r.Name = &name
		changed = true
	}
	if changed {
		s.pies[id] = r
	}
	return changed
}

// NeedsEnrichment is true iff the record exists and misses name or creation date.
func (s *Store) NeedsEnrichment(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.pies[id]
	return ok && r.NeedsEnrichment()
}

// copyLocked returns a shallow-safe copy of the map; s.mu must be held.
func (s *Store) copyLocked() map[int64]Record {
	out := make(map[int64]Record, len(s.pies))
	for id, r := range s.pies {
		out[id] = r.clone()
	}
	return out
}
