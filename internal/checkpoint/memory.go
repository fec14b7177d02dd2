package checkpoint

import (
	"context"
	"sync"

	"github.com/cchalm/memochat/internal/ai"
)

// MemoryStore implements Store in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]ai.ConversationState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]ai.ConversationState),
	}
}

func (s *MemoryStore) Get(_ context.Context, threadID string) (*ai.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[threadID]
	if !ok {
		return nil, nil
	}
	clone := state.Clone()
	return &clone, nil
}

func (s *MemoryStore) Save(_ context.Context, threadID string, state ai.ConversationState) error {
	if err := validateSave(threadID, state); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[threadID] = state.Clone()
	return nil
}

func (s *MemoryStore) ListThreadIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	return sortThreadIDs(ids), nil
}
