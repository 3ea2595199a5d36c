package memory

import (
	"context"
	"sync"

	"prediction-poll-service/internal/app"
	"prediction-poll-service/internal/domain"
)

// RecordStore is an in-memory implementation of app.RecordStore. Versions
// start at 1 and increase by one per successful conditional update; the mutex
// makes each compare-and-set atomic.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]app.Record
}

func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]app.Record)}
}

func (s *RecordStore) Get(_ context.Context, id string) (app.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return app.Record{}, domain.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *RecordStore) Create(_ context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; ok {
		return domain.ErrRecordExists
	}
	s.records[id] = app.Record{ID: id, Version: 1, Data: append([]byte(nil), data...)}
	return nil
}

func (s *RecordStore) ConditionalUpdate(_ context.Context, id string, expectedVersion int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.Version != expectedVersion {
		return domain.ErrConcurrentModification
	}
	s.records[id] = app.Record{ID: id, Version: rec.Version + 1, Data: append([]byte(nil), data...)}
	return nil
}

func (s *RecordStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func cloneRecord(rec app.Record) app.Record {
	rec.Data = append([]byte(nil), rec.Data...)
	return rec
}
