package catalog

import (
	"context"
	"sort"
	"sync"

	"skincare-backend/internal/skin"
)

// MemoryStore implements Store in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []skin.CatalogEntry
	nextID  int64
}

// NewMemoryStore returns a store holding entries. Entries without an id get one.
func NewMemoryStore(entries []skin.CatalogEntry) *MemoryStore {
	s := &MemoryStore{}
	for _, e := range entries {
		s.add(e)
	}
	return s
}

// Add inserts a product and returns its id.
func (s *MemoryStore) Add(e skin.CatalogEntry) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(e)
}

func (s *MemoryStore) add(e skin.CatalogEntry) int64 {
	if e.ID == 0 {
		s.nextID++
		e.ID = s.nextID
	} else if e.ID > s.nextID {
		s.nextID = e.ID
	}
	s.entries = append(s.entries, e)
	sort.SliceStable(s.entries, func(i, j int) bool { return s.entries[i].ID < s.entries[j].ID })
	return e.ID
}

func (s *MemoryStore) Entries(ctx context.Context) ([]skin.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]skin.CatalogEntry(nil), s.entries...), nil
}

func (s *MemoryStore) Search(ctx context.Context, f Filter) ([]skin.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := f.limit()
	out := make([]skin.CatalogEntry, 0, limit)
	for _, e := range s.entries {
		if len(out) == limit {
			break
		}
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
