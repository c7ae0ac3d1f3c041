package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/dukex/styxgo/pkg/models"
)

// MemoryStore is an in-memory Store implementation for development and
// tests. It is not durable: process restart loses everything. Grounded on
// the dual file/Postgres persistence split in pkg/persistence — this plays
// the role of the file-backed implementation there, adapted from a
// workflow-CRUD store into an append-only event log.
type MemoryStore struct {
	mu     sync.Mutex
	events map[string][]StoredEvent
	index  map[string]ActiveEntry

	// Now is consulted for each appended event's timestamp; tests may
	// override it for deterministic clocks.
	Now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string][]StoredEvent),
		index:  make(map[string]ActiveEntry),
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Append(_ context.Context, instance models.WorkflowInstance, event models.Event, expectedCounter int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := instance.String()
	current := int64(len(s.events[key]))
	if current != expectedCounter {
		return 0, &EventLogError{Op: "Append", Instance: instance, Err: ErrConflict}
	}

	newCounter := current + 1
	s.events[key] = append(s.events[key], StoredEvent{
		Event:     event,
		Counter:   newCounter,
		Timestamp: s.Now(),
	})

	return newCounter, nil
}

func (s *MemoryStore) ReadEvents(_ context.Context, instance models.WorkflowInstance) ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.events[instance.String()]
	out := make([]StoredEvent, len(stored))
	copy(out, stored)

	return out, nil
}

func (s *MemoryStore) IndexUpsert(_ context.Context, instance models.WorkflowInstance, counter int64, triggerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index[instance.String()] = ActiveEntry{Instance: instance, Counter: counter, TriggerID: triggerID}

	return nil
}

func (s *MemoryStore) IndexRemove(_ context.Context, instance models.WorkflowInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.index, instance.String())

	return nil
}

func (s *MemoryStore) IndexRead(_ context.Context) (map[string]ActiveEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]ActiveEntry, len(s.index))
	for k, v := range s.index {
		out[k] = v
	}

	return out, nil
}

func (s *MemoryStore) IndexReadByTriggerID(_ context.Context, triggerID string) (map[string]ActiveEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]ActiveEntry)
	for k, v := range s.index {
		if v.TriggerID == triggerID {
			out[k] = v
		}
	}

	return out, nil
}
