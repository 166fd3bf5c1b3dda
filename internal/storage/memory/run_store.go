package memory

import (
	"context"
	"sort"
	"sync"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.LabelRun // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.LabelRun),
	}
}

// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, run *domain.LabelRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[run.RunID] = copyRun(run)
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.LabelRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRun(run), nil
}

// ListRecent retrieves up to limit runs, newest first.
func (s *RunStore) ListRecent(_ context.Context, limit int) ([]*domain.LabelRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.LabelRun, 0, len(s.data))
	for _, run := range s.data {
		result = append(result, copyRun(run))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].RunID < result[j].RunID
		}
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func copyRun(run *domain.LabelRun) *domain.LabelRun {
	c := *run
	c.Errors = append([]string(nil), run.Errors...)
	return &c
}

var _ storage.RunStore = (*RunStore)(nil)
