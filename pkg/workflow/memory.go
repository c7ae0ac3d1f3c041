package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/dukex/styxgo/pkg/models"
)

// MemoryStore is an in-process Store, grounded on eventlog.MemoryStore's
// mutex-guarded map style.
type MemoryStore struct {
	mu        sync.Mutex
	byID      map[models.WorkflowId]models.Workflow
	cursors   map[models.WorkflowId]time.Time
	hasCursor map[models.WorkflowId]bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[models.WorkflowId]models.Workflow),
		cursors:   make(map[models.WorkflowId]time.Time),
		hasCursor: make(map[models.WorkflowId]bool),
	}
}

func (s *MemoryStore) Get(_ context.Context, id models.WorkflowId) (models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.byID[id]
	if !ok {
		return models.Workflow{}, ErrNotFound
	}
	return wf, nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Workflow, 0, len(s.byID))
	for _, wf := range s.byID {
		out = append(out, wf)
	}
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, wf models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[wf.ID] = wf
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id models.WorkflowId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byID, id)
	delete(s.cursors, id)
	delete(s.hasCursor, id)
	return nil
}

func (s *MemoryStore) NextTrigger(_ context.Context, id models.WorkflowId) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.cursors[id]
	return at, ok, nil
}

func (s *MemoryStore) SeedNextTrigger(_ context.Context, id models.WorkflowId, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasCursor[id] {
		return nil
	}
	s.cursors[id] = at
	s.hasCursor[id] = true
	return nil
}

func (s *MemoryStore) AdvanceNextTrigger(_ context.Context, id models.WorkflowId, expected, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.cursors[id]
	if !ok || !current.Equal(expected) {
		return ErrCursorConflict
	}
	s.cursors[id] = next
	return nil
}

var _ Store = (*MemoryStore)(nil)
