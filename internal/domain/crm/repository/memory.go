package repository

import (
	"context"
	"sync"

	"github.com/donorflow/donorflow/internal/domain/crm"
)

// MemoryStore is an in-process EntryStore. It serializes mutations and
// snapshot reads with a single lock and keeps id assignment monotonic for
// the lifetime of the store; removed or updated rows never free their id.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []crm.Entry
	nextID  int64
}

var _ crm.EntryStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// AppendBatch stores all rows under one lock acquisition, so a concurrent
// reader never observes a partially appended batch.
func (s *MemoryStore) AppendBatch(_ context.Context, source string, rows []crm.Row) ([]crm.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appended := make([]crm.Entry, 0, len(rows))
	for _, row := range rows {
		e := crm.Entry{
			ID:     s.nextID,
			Source: source,
			Data:   row.Clone(),
		}
		s.nextID++
		s.entries = append(s.entries, e)
		appended = append(appended, e)
	}
	return appended, nil
}

// ListAll returns a snapshot copy of the stored entries.
func (s *MemoryStore) ListAll(_ context.Context) ([]crm.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]crm.Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = crm.Entry{ID: e.ID, Source: e.Source, Data: e.Data.Clone()}
	}
	return out, nil
}

// UpdateByID merges patch fields into the entry's row data.
func (s *MemoryStore) UpdateByID(_ context.Context, id int64, patch crm.Row) (crm.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID != id {
			continue
		}
		data := s.entries[i].Data.Clone()
		for k, v := range patch {
			data[k] = v
		}
		s.entries[i].Data = data
		return crm.Entry{ID: id, Source: s.entries[i].Source, Data: data.Clone()}, nil
	}
	return crm.Entry{}, crm.ErrEntryNotFound
}

// Count reports the number of stored entries.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}
