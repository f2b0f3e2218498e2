// Package memory implements store.Store in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/alfredjeanlab/airpuck/internal/model"
	"github.com/alfredjeanlab/airpuck/internal/store"
)

type tableKey struct {
	baseID, table string
}

// Store keeps each table as an insertion-ordered slice.
type Store struct {
	mu     sync.RWMutex
	tables map[tableKey][]*model.Record
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{tables: map[tableKey][]*model.Record{}}
}

func (s *Store) ListRecords(_ context.Context, baseID, table string, limit int) ([]*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.tables[tableKey{baseID, table}]
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return model.CloneRecords(records), nil
}

func (s *Store) GetRecord(_ context.Context, baseID, table, id string) (*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, _ := s.find(baseID, table, id)
	if rec == nil {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) CreateRecord(_ context.Context, baseID, table string, rec *model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tableKey{baseID, table}
	s.tables[key] = append(s.tables[key], rec.Clone())
	return nil
}

func (s *Store) UpdateRecord(_ context.Context, baseID, table, id string, fields model.Fields) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, _ := s.find(baseID, table, id)
	if rec == nil {
		return nil, store.ErrNotFound
	}
	rec.Merge(fields)
	return rec.Clone(), nil
}

func (s *Store) ReplaceRecord(_ context.Context, baseID, table string, rec *model.Record) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, i := s.find(baseID, table, rec.ID)
	if existing == nil {
		return nil, store.ErrNotFound
	}
	replaced := rec.Clone()
	replaced.CreatedTime = existing.CreatedTime
	s.tables[tableKey{baseID, table}][i] = replaced
	return replaced.Clone(), nil
}

func (s *Store) DeleteRecord(_ context.Context, baseID, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tableKey{baseID, table}
	_, i := s.find(baseID, table, id)
	if i < 0 {
		return store.ErrNotFound
	}
	records := s.tables[key]
	s.tables[key] = append(records[:i:i], records[i+1:]...)
	return nil
}

func (s *Store) Close() error { return nil }

// find returns the stored record and its index. Callers hold s.mu.
func (s *Store) find(baseID, table, id string) (*model.Record, int) {
	for i, r := range s.tables[tableKey{baseID, table}] {
		if r.ID == id {
			return r, i
		}
	}
	return nil, -1
}
