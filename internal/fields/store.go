package fields

import "fmt"

// Store is the single in-memory collection of field records for the currently
// loaded document. Records keep insertion order; ids are unique; name
// collisions are permitted and tolerated throughout.
//
// The store carries no locks: every public entry point of the engine runs to
// completion before the next is invoked (one session, one goroutine).
type Store struct {
	records []*Record
	byID    map[string]*Record
}

// NewStore creates an empty field store.
func NewStore() *Store {
	return &Store{
		records: make([]*Record, 0),
		byID:    make(map[string]*Record),
	}
}

// Add inserts a record. The id must be unique within the store.
func (s *Store) Add(r *Record) error {
	if r.ID == "" {
		return fmt.Errorf("record has empty id")
	}
	if _, exists := s.byID[r.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
	}
	s.records = append(s.records, r)
	s.byID[r.ID] = r
	return nil
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (*Record, error) {
	r, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	return r, nil
}

// Remove deletes the record with the given id.
func (s *Store) Remove(id string) error {
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	delete(s.byID, id)
	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	return nil
}

// Update applies a partial update to the record with the given id. Geometry
// defaults for type changes are the caller's responsibility; the store only
// records what it is told.
func (s *Store) Update(id string, patch Patch) (*Record, error) {
	r, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	if patch.Name != nil && *patch.Name != "" {
		r.Name = *patch.Name
	}
	if patch.Type != nil {
		r.Type = *patch.Type
	}
	if patch.Value != nil {
		r.Value = *patch.Value
	}
	if patch.Display != nil {
		r.Display = *patch.Display
	}
	return r, nil
}

// ByPage returns the records on the given 1-based page in insertion order.
// Filtering on page is the sole mechanism for scoping to the active page.
func (s *Store) ByPage(page int) []*Record {
	out := make([]*Record, 0)
	for _, r := range s.records {
		if r.Page == page {
			out = append(out, r)
		}
	}
	return out
}

// All returns every record in insertion order.
func (s *Store) All() []*Record {
	out := make([]*Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Counts summarizes the store for status readouts.
type Counts struct {
	Total    int `json:"total"`
	Existing int `json:"existing"`
	New      int `json:"new"`
	Matched  int `json:"matched"`
}

// Counts tallies records by origin and match state.
func (s *Store) Counts() Counts {
	c := Counts{Total: len(s.records)}
	for _, r := range s.records {
		if r.Origin == OriginExisting {
			c.Existing++
		} else {
			c.New++
		}
		if r.Matched {
			c.Matched++
		}
	}
	return c
}

// Clear removes every record, for a full reset when a new document loads.
func (s *Store) Clear() {
	s.records = s.records[:0]
	s.byID = make(map[string]*Record)
}
