package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiskStore keeps documents under <root>/<analysisID>/<name>.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Put(_ context.Context, analysisID, name string, content []byte) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	path, err := s.path(analysisID, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *DiskStore) Get(_ context.Context, analysisID, name string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	path, err := s.path(analysisID, name)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

func (s *DiskStore) List(_ context.Context, analysisID string) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	analysisID = strings.TrimSpace(analysisID)
	if analysisID == "" {
		return nil, fmt.Errorf("analysis id is required")
	}
	entries, err := os.ReadDir(filepath.Join(s.root, analysisID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, ent := range entries {
		if ent.IsDir() || strings.HasSuffix(ent.Name(), ".tmp") {
			continue
		}
		out = append(out, ent.Name())
	}
	sort.Strings(out)
	return out, nil
}

// path rejects names that would escape the analysis directory.
func (s *DiskStore) path(analysisID, name string) (string, error) {
	analysisID = strings.TrimSpace(analysisID)
	name = strings.TrimSpace(name)
	if analysisID == "" {
		return "", fmt.Errorf("analysis id is required")
	}
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	if strings.Contains(analysisID, "..") || strings.ContainsAny(analysisID, `/\`) {
		return "", fmt.Errorf("invalid analysis id %q", analysisID)
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid name %q", name)
	}
	return filepath.Join(s.root, analysisID, name), nil
}
