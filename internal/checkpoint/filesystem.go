package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cchalm/memochat/internal/ai"
)

const checkpointFileExt = ".json"

// FileSystemStore implements Store using the OS file system, one JSON file per thread
type FileSystemStore struct {
	dir string // The directory checkpoint files live in

	mu sync.Mutex
}

// NewFileSystemStore creates a store rooted at dir. The directory is created on the first save.
func NewFileSystemStore(dir string) *FileSystemStore {
	return &FileSystemStore{dir: dir}
}

func (fss *FileSystemStore) Get(_ context.Context, threadID string) (*ai.ConversationState, error) {
	fss.mu.Lock()
	defer fss.mu.Unlock()

	b, err := os.ReadFile(fss.path(threadID))
	if errors.Is(err, os.ErrNotExist) {
		// The file doesn't exist so nothing is stored for this thread
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	var state ai.ConversationState
	err = json.Unmarshal(b, &state)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation state: %w", err)
	}
	return &state, nil
}

// Save writes the state to a temporary file and renames it over the thread's file, so a crash never leaves a torn
// checkpoint behind
func (fss *FileSystemStore) Save(_ context.Context, threadID string, state ai.ConversationState) error {
	if err := validateSave(threadID, state); err != nil {
		return err
	}
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation state: %w", err)
	}

	fss.mu.Lock()
	defer fss.mu.Unlock()

	if err := os.MkdirAll(fss.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	tmp, err := os.CreateTemp(fss.dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fss.path(threadID)); err != nil {
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}
	return nil
}

func (fss *FileSystemStore) ListThreadIDs(_ context.Context) ([]string, error) {
	fss.mu.Lock()
	defer fss.mu.Unlock()

	entries, err := os.ReadDir(fss.dir)
	if errors.Is(err, os.ErrNotExist) {
		// Nothing has been saved yet
		return []string{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, checkpointFileExt) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, checkpointFileExt))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return sortThreadIDs(ids), nil
}

// path escapes the thread id so that any id maps to a single file inside dir
func (fss *FileSystemStore) path(threadID string) string {
	return filepath.Join(fss.dir, url.PathEscape(threadID)+checkpointFileExt)
}
