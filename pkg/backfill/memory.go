package backfill

import (
	"context"
	"sort"
	"sync"

	"github.com/dukex/styxgo/pkg/models"
)

// MemoryStore is an in-process Store, grounded on eventlog.MemoryStore's
// mutex-guarded map style.
type MemoryStore struct {
	mu   sync.Mutex
	byID map[string]models.Backfill
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]models.Backfill)}
}

func (s *MemoryStore) Create(_ context.Context, b models.Backfill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[b.ID] = b
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.Backfill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byID[id]
	if !ok {
		return models.Backfill{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]models.Backfill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Backfill
	for _, b := range s.byID {
		if !matches(b, filter) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListAdvanceable(_ context.Context) ([]models.Backfill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Backfill
	for _, b := range s.byID {
		if b.Halted || b.AllTriggered {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*models.Backfill) error) (models.Backfill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byID[id]
	if !ok {
		return models.Backfill{}, ErrNotFound
	}

	if err := fn(&b); err != nil {
		return models.Backfill{}, err
	}

	s.byID[id] = b
	return b, nil
}

func matches(b models.Backfill, filter Filter) bool {
	if !filter.ShowAll && (b.Halted || b.AllTriggered) {
		return false
	}
	if filter.Component != nil && b.WorkflowId.Component != *filter.Component {
		return false
	}
	if filter.Workflow != nil && b.WorkflowId.Name != *filter.Workflow {
		return false
	}
	return true
}

var _ Store = (*MemoryStore)(nil)
