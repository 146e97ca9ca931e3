package glossary

import (
	"fmt"
	"slices"
	"sync"

	"cad-lingo/src/config"
)

// Store is the glossary backing. List order is insertion order.
type Store interface {
	List() ([]Entry, error)
	Add(term, translation string, category Category) (Entry, error)
	Delete(id string) error
	Close() error
}

// Open returns the store named by kind (config.StoreMemory, StoreYAML or StoreSQLite).
func Open(kind, path string) (Store, error) {
	switch kind {
	case config.StoreMemory, "":
		return NewMemoryStore(Defaults()), nil
	case config.StoreYAML:
		return OpenFileStore(path)
	case config.StoreSQLite:
		return OpenSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown glossary store %q", kind)
	}
}

// MemoryStore keeps entries for the lifetime of the process only.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore(seed []Entry) *MemoryStore {
	return &MemoryStore{entries: slices.Clone(seed)}
}

func (s *MemoryStore) List() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries), nil
}

func (s *MemoryStore) Add(term, translation string, category Category) (Entry, error) {
	e, err := NewEntry(term, translation, category)
	if err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return e, nil
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.entries, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	return nil
}

// Replace swaps the whole list, used by import and reload.
func (s *MemoryStore) Replace(entries []Entry) {
	s.mu.Lock()
	s.entries = slices.Clone(entries)
	s.mu.Unlock()
}

func (s *MemoryStore) Close() error { return nil }

func indexOf(entries []Entry, id string) int {
	return slices.IndexFunc(entries, func(e Entry) bool { return e.ID == id })
}
