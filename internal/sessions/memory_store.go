package sessions

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Record{}, now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, r Record) error {
	now := m.now()
	if err := r.validate(now); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.records {
		if !rec.ExpiresAt.After(now) {
			delete(m.records, id)
		}
	}
	m.records[r.ID] = r
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	if !r.ExpiresAt.After(m.now()) {
		delete(m.records, id)
		return nil, nil
	}
	if r.State.User != nil {
		u := *r.State.User
		r.State.User = &u
	}
	return &r, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}
