package session

import (
	"maps"
	"sync"
	"time"
)

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu      sync.RWMutex
	current *Session
	drafts  map[string]map[string]any
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string]map[string]any)}
}

func (m *MemoryStore) Save(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &s
	return nil
}

func (m *MemoryStore) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

func (m *MemoryStore) IsValid(now time.Time) bool {
	s, ok := m.Current()
	return ok && s.ValidAt(now)
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	m.drafts = make(map[string]map[string]any)
	return nil
}

func (m *MemoryStore) SaveDraft(docID string, content map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[docID] = maps.Clone(content)
	return nil
}

func (m *MemoryStore) Draft(docID string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drafts[docID]
	return maps.Clone(d), ok
}

func (m *MemoryStore) DeleteDraft(docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, docID)
	return nil
}

var _ Store = (*MemoryStore)(nil)
