package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func (s *Store) ensureLoadedFile() {
	s.loadOnce.Do(func() {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var rows []Analysis
		if err := json.Unmarshal(b, &rows); err != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, row := range rows {
			id := strings.TrimSpace(row.ID)
			if id == "" {
				continue
			}
			s.byID[id] = normalizeAnalysis(row)
		}
	})
}

func (s *Store) saveFile() error {
	s.mu.RLock()
	rows := make([]Analysis, 0, len(s.byID))
	for _, a := range s.byID {
		rows = append(rows, a)
	}
	s.mu.RUnlock()
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })

	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) getFile(id string) (Analysis, bool) {
	s.ensureLoadedFile()
	id = strings.TrimSpace(id)
	if id == "" {
		return Analysis{}, false
	}
	s.mu.RLock()
	a, ok := s.byID[id]
	s.mu.RUnlock()
	return a, ok
}

func (s *Store) putFile(a Analysis) error {
	s.ensureLoadedFile()
	n := normalizeAnalysis(a)
	if n.ID == "" {
		return nil
	}
	s.mu.Lock()
	s.byID[n.ID] = n
	s.mu.Unlock()
	return s.saveFile()
}

func (s *Store) updateFile(id string, update func(*Analysis)) (Analysis, bool) {
	s.ensureLoadedFile()
	id = strings.TrimSpace(id)
	if id == "" {
		return Analysis{}, false
	}
	s.mu.Lock()
	a, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return Analysis{}, false
	}
	update(&a)
	a.ID = id
	a = normalizeAnalysis(a)
	s.byID[id] = a
	s.mu.Unlock()
	_ = s.saveFile()
	return a, true
}

func (s *Store) listFile() []Analysis {
	s.ensureLoadedFile()
	s.mu.RLock()
	out := make([]Analysis, 0, len(s.byID))
	for _, a := range s.byID {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
