package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DiskCheckpointStore persists checkpoints as JSON files laid out as
// <root>/<identity>/<stage>.json, with an LRU read-through cache so repeated
// stage lookups within a run avoid disk. Writes go through a temp file and
// rename so a crash never leaves a half-written checkpoint.
type DiskCheckpointStore struct {
	mu    sync.Mutex
	root  string
	cache *lru.Cache[CheckpointKey, CheckpointRecord]
}

func NewDiskCheckpointStore(root string, cacheSize int) (*DiskCheckpointStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("root is required")
	}
	if cacheSize <= 0 {
		cacheSize = 256
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	cache, err := lru.New[CheckpointKey, CheckpointRecord](cacheSize)
	if err != nil {
		return nil, err
	}
	return &DiskCheckpointStore{root: root, cache: cache}, nil
}

func (s *DiskCheckpointStore) Get(_ context.Context, key CheckpointKey) (CheckpointRecord, bool, error) {
	if s == nil {
		return CheckpointRecord{}, false, fmt.Errorf("store is nil")
	}
	if err := validateKey(key); err != nil {
		return CheckpointRecord{}, false, err
	}
	if rec, ok := s.cache.Get(key); ok {
		return cloneRecord(rec), true, nil
	}
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return CheckpointRecord{}, false, nil
		}
		return CheckpointRecord{}, false, err
	}
	var rec CheckpointRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return CheckpointRecord{}, false, fmt.Errorf("corrupt checkpoint %s: %w", key, err)
	}
	s.cache.Add(key, cloneRecord(rec))
	return rec, true, nil
}

func (s *DiskCheckpointStore) Put(ctx context.Context, key CheckpointKey, payload json.RawMessage) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok, err := s.Get(ctx, key); err != nil {
		return err
	} else if ok {
		if bytes.Equal(old.Payload, payload) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrCheckpointConflict, key)
	}

	rec := CheckpointRecord{
		Payload:   append(json.RawMessage(nil), payload...),
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	s.cache.Add(key, cloneRecord(rec))
	return nil
}

func (s *DiskCheckpointStore) Invalidate(_ context.Context, key CheckpointKey) error {
	if s == nil {
		return nil
	}
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(key)
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *DiskCheckpointStore) Stages(_ context.Context, id Identity) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	entries, err := os.ReadDir(filepath.Join(s.root, string(id)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(out)
	return out, nil
}

func (s *DiskCheckpointStore) Clear(_ context.Context, id Identity) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.cache.Keys() {
		if key.Identity == id {
			s.cache.Remove(key)
		}
	}
	return os.RemoveAll(filepath.Join(s.root, string(id)))
}

func (s *DiskCheckpointStore) path(key CheckpointKey) string {
	// Identity is a hex digest and stage IDs are fixed snake_case names, so
	// both are safe as path segments.
	return filepath.Join(s.root, string(key.Identity), key.Stage+".json")
}
