// Package checkpoint persists the latest conversation state of each thread so that turns and sessions are
// resumable.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/cchalm/memochat/internal/ai"
)

// ErrStorageUnavailable reports that the backing store's structure does not exist yet, e.g. before the first save.
// Stores recover from it themselves by reading as empty; it is exported for backends that need to signal it.
var ErrStorageUnavailable = errors.New("checkpoint storage unavailable")

// Store manages persistent storage of conversation states, one latest snapshot per thread
type Store interface {
	// Get returns the latest state saved for the thread, or nil if the thread has never been checkpointed
	Get(ctx context.Context, threadID string) (*ai.ConversationState, error)
	// Save overwrites the latest state for the thread. Saving the same state twice is harmless.
	Save(ctx context.Context, threadID string, state ai.ConversationState) error
	// ListThreadIDs returns every checkpointed thread id in descending lexicographic order
	ListThreadIDs(ctx context.Context) ([]string, error)
}

func validateSave(threadID string, state ai.ConversationState) error {
	if strings.TrimSpace(threadID) == "" {
		return fmt.Errorf("thread id is required")
	}
	if state.ThreadID != threadID {
		return fmt.Errorf("state belongs to thread %q, not %q", state.ThreadID, threadID)
	}
	return nil
}

// sortThreadIDs orders ids by descending string comparison. Ids embed a timestamp, so this approximates most recent
// first.
func sortThreadIDs(ids []string) []string {
	slices.Sort(ids)
	slices.Reverse(ids)
	return ids
}
