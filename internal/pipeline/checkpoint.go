package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrCheckpointConflict is returned when a Put would overwrite an existing
// checkpoint with a different payload. Checkpoints are immutable once
// written; a conflicting write means two runs disagreed about a stage output
// under the same identity.
var ErrCheckpointConflict = errors.New("pipeline: checkpoint payload conflict")

// CheckpointKey addresses one stage output within an identity namespace.
type CheckpointKey struct {
	Identity Identity
	Stage    string
}

func (k CheckpointKey) String() string {
	return string(k.Identity) + "/" + k.Stage
}

// CheckpointRecord is one persisted stage output.
type CheckpointRecord struct {
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// CheckpointStore persists stage outputs keyed by identity and stage.
// Put is idempotent for identical payloads and rejects divergent ones.
type CheckpointStore interface {
	Get(ctx context.Context, key CheckpointKey) (CheckpointRecord, bool, error)
	Put(ctx context.Context, key CheckpointKey, payload json.RawMessage) error
	// Invalidate removes one checkpoint so the stage can be re-run and
	// re-persisted, as a forced refresh does.
	Invalidate(ctx context.Context, key CheckpointKey) error
}

// CheckpointMaintenance is the optional management surface a store may
// offer on top of Get/Put.
type CheckpointMaintenance interface {
	// Stages lists the stage IDs checkpointed under an identity, sorted.
	Stages(ctx context.Context, id Identity) ([]string, error)
	// Clear removes every checkpoint under an identity.
	Clear(ctx context.Context, id Identity) error
}

// MemoryCheckpointStore keeps checkpoints in process memory. Useful for
// tests and single-shot CLI runs where persistence across processes is not
// needed.
type MemoryCheckpointStore struct {
	mu      sync.RWMutex
	records map[CheckpointKey]CheckpointRecord
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{records: map[CheckpointKey]CheckpointRecord{}}
}

func (s *MemoryCheckpointStore) Get(_ context.Context, key CheckpointKey) (CheckpointRecord, bool, error) {
	if s == nil {
		return CheckpointRecord{}, false, fmt.Errorf("store is nil")
	}
	if err := validateKey(key); err != nil {
		return CheckpointRecord{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return CheckpointRecord{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

func (s *MemoryCheckpointStore) Put(_ context.Context, key CheckpointKey, payload json.RawMessage) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.records[key]; ok {
		if bytes.Equal(old.Payload, payload) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrCheckpointConflict, key)
	}
	s.records[key] = CheckpointRecord{
		Payload:   append(json.RawMessage(nil), payload...),
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *MemoryCheckpointStore) Invalidate(_ context.Context, key CheckpointKey) error {
	if s == nil {
		return nil
	}
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *MemoryCheckpointStore) Stages(_ context.Context, id Identity) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for key := range s.records {
		if key.Identity == id {
			out = append(out, key.Stage)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryCheckpointStore) Clear(_ context.Context, id Identity) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.records {
		if key.Identity == id {
			delete(s.records, key)
		}
	}
	return nil
}

func validateKey(key CheckpointKey) error {
	if strings.TrimSpace(string(key.Identity)) == "" {
		return fmt.Errorf("identity is required")
	}
	if strings.TrimSpace(key.Stage) == "" {
		return fmt.Errorf("stage is required")
	}
	return nil
}

func cloneRecord(rec CheckpointRecord) CheckpointRecord {
	rec.Payload = append(json.RawMessage(nil), rec.Payload...)
	return rec
}
