package store

import (
	"database/sql"
	"strings"
	"time"
)

func (s *Store) ensureSchema() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS analyses (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL DEFAULT '',
  sector TEXT NOT NULL DEFAULT '',
  provider TEXT NOT NULL DEFAULT '',
  model TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending',
  identity TEXT NOT NULL DEFAULT '',
  report JSONB,
  error TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
  completed_at TIMESTAMP WITH TIME ZONE
);
CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses (status);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses (created_at);
`)
	})
	return s.schemaErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysisDB(row rowScanner) (Analysis, bool) {
	var a Analysis
	var report sql.NullString
	var completed sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.Source,
		&a.Sector,
		&a.Provider,
		&a.Model,
		&a.Status,
		&a.Identity,
		&report,
		&a.Error,
		&a.CreatedAt,
		&completed,
	)
	if err != nil {
		return Analysis{}, false
	}
	if report.Valid {
		a.Report = []byte(report.String)
	}
	if completed.Valid {
		a.CompletedAt = completed.Time
	}
	return normalizeAnalysis(a), true
}

const analysisColumns = `id, source, sector, provider, model, status, identity, report, error, created_at, completed_at`

func (s *Store) getDB(id string) (Analysis, bool) {
	if err := s.ensureSchema(); err != nil {
		return Analysis{}, false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Analysis{}, false
	}
	row := s.db.QueryRow(`SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, id)
	return scanAnalysisDB(row)
}

func (s *Store) putDB(a Analysis) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	n := normalizeAnalysis(a)
	if n.ID == "" {
		return nil
	}
	var report any
	if len(n.Report) > 0 {
		report = string(n.Report)
	}
	var completed any
	if !n.CompletedAt.IsZero() {
		completed = n.CompletedAt
	}
	_, err := s.db.Exec(`
INSERT INTO analyses (`+analysisColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id)
DO UPDATE SET source=EXCLUDED.source,
  sector=EXCLUDED.sector,
  provider=EXCLUDED.provider,
  model=EXCLUDED.model,
  status=EXCLUDED.status,
  identity=EXCLUDED.identity,
  report=EXCLUDED.report,
  error=EXCLUDED.error,
  completed_at=EXCLUDED.completed_at`,
		n.ID, n.Source, n.Sector, n.Provider, n.Model, n.Status, n.Identity,
		report, n.Error, orNow(n.CreatedAt), completed)
	return err
}

func (s *Store) updateDB(id string, update func(*Analysis)) (Analysis, bool) {
	if err := s.ensureSchema(); err != nil {
		return Analysis{}, false
	}
	tx, err := s.db.Begin()
	if err != nil {
		return Analysis{}, false
	}
	defer func() { _ = tx.Rollback() }()

	id = strings.TrimSpace(id)
	row := tx.QueryRow(`SELECT `+analysisColumns+` FROM analyses WHERE id = $1 FOR UPDATE`, id)
	cur, ok := scanAnalysisDB(row)
	if !ok {
		return Analysis{}, false
	}
	update(&cur)
	cur.ID = id
	cur = normalizeAnalysis(cur)

	var report any
	if len(cur.Report) > 0 {
		report = string(cur.Report)
	}
	var completed any
	if !cur.CompletedAt.IsZero() {
		completed = cur.CompletedAt
	}
	_, err = tx.Exec(`
UPDATE analyses
SET source=$2, sector=$3, provider=$4, model=$5, status=$6, identity=$7,
  report=$8, error=$9, completed_at=$10
WHERE id=$1`,
		cur.ID, cur.Source, cur.Sector, cur.Provider, cur.Model, cur.Status,
		cur.Identity, report, cur.Error, completed)
	if err != nil {
		return Analysis{}, false
	}
	if err := tx.Commit(); err != nil {
		return Analysis{}, false
	}
	return cur, true
}

func (s *Store) listDB() []Analysis {
	if err := s.ensureSchema(); err != nil {
		return nil
	}
	rows, err := s.db.Query(`SELECT ` + analysisColumns + ` FROM analyses ORDER BY created_at DESC`)
	if err != nil {
		return nil
	}
	defer rows.Close()
	out := make([]Analysis, 0, 32)
	for rows.Next() {
		if a, ok := scanAnalysisDB(rows); ok {
			out = append(out, a)
		}
	}
	return out
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
