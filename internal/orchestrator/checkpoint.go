package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrCheckpointNotFound is returned when no suspended state exists for a
// session.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// CheckpointStore persists suspended machine state keyed by session id. A
// process restart between suspension and resume must not lose state, so the
// file implementation writes durably; the memory implementation exists for
// tests and blocking-mode runs that never suspend.
type CheckpointStore interface {
	Save(ctx context.Context, state *State) error
	Load(ctx context.Context, sessionID string) (*State, error)
	Delete(ctx context.Context, sessionID string) error
}

// FileCheckpointStore keeps one JSON blob per session id.
type FileCheckpointStore struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileCheckpointStore creates the base directory if needed.
func NewFileCheckpointStore(baseDir string) (*FileCheckpointStore, error) {
	if strings.HasPrefix(baseDir, "~/") {
		home, _ := os.UserHomeDir()
		baseDir = filepath.Join(home, baseDir[2:])
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &FileCheckpointStore{baseDir: baseDir}, nil
}

func (s *FileCheckpointStore) path(sessionID string) string {
	return filepath.Join(s.baseDir, sessionID+".json")
}

// Save writes atomically and fsyncs so the checkpoint survives a crash.
func (s *FileCheckpointStore) Save(_ context.Context, state *State) error {
	if state == nil || strings.TrimSpace(state.SessionID) == "" {
		return fmt.Errorf("state session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.path(state.SessionID) + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path(state.SessionID)); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

func (s *FileCheckpointStore) Load(_ context.Context, sessionID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return &state, nil
}

func (s *FileCheckpointStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// MemoryCheckpointStore is a map-backed store for tests.
type MemoryCheckpointStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewMemoryCheckpointStore constructs an in-memory checkpoint store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{states: make(map[string][]byte)}
}

func (s *MemoryCheckpointStore) Save(_ context.Context, state *State) error {
	if state == nil || state.SessionID == "" {
		return fmt.Errorf("state session id is required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.states[state.SessionID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryCheckpointStore) Load(_ context.Context, sessionID string) (*State, error) {
	s.mu.RLock()
	data, ok := s.states[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrCheckpointNotFound
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *MemoryCheckpointStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.states, sessionID)
	s.mu.Unlock()
	return nil
}
