// Package store persists analysis records. A single Store type fronts two
// interchangeable backends: Postgres when a DSN is
// configured, otherwise a JSON file that loads lazily and saves on mutation.
package store

import (
	"database/sql"
	"log"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store holds analysis records in Postgres or a local JSON file.
type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	mu       sync.RWMutex
	byID     map[string]Analysis

	schemaOnce sync.Once
	schemaErr  error

	recent *lru.Cache[string, Analysis]
}

// New returns a file-backed store rooted at path.
func New(path string) *Store {
	return &Store{
		path: path,
		byID: make(map[string]Analysis),
	}
}

// NewPostgres returns a Postgres-backed store, verifying connectivity.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	recent, err := lru.New[string, Analysis](1024)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, recent: recent}, nil
}

// Open prefers Postgres when dsn is set and falls back to the file backend
// at path, also when Postgres is unreachable.
func Open(dsn, path string) *Store {
	if strings.TrimSpace(dsn) == "" {
		return New(path)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		log.Printf("store: postgres unavailable, using file backend: %v", err)
		return New(path)
	}
	return s
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns one analysis by ID.
func (s *Store) Get(id string) (Analysis, bool) {
	if s == nil {
		return Analysis{}, false
	}
	if s.db != nil {
		if s.recent != nil {
			if a, ok := s.recent.Get(strings.TrimSpace(id)); ok {
				return a, true
			}
		}
		a, ok := s.getDB(id)
		if ok && s.recent != nil {
			s.recent.Add(a.ID, a)
		}
		return a, ok
	}
	return s.getFile(id)
}

// Put inserts or replaces one analysis.
func (s *Store) Put(a Analysis) error {
	if s == nil {
		return nil
	}
	if s.db != nil {
		if err := s.putDB(a); err != nil {
			return err
		}
		if s.recent != nil {
			s.recent.Remove(strings.TrimSpace(a.ID))
		}
		return nil
	}
	return s.putFile(a)
}

// Update applies a mutation to one analysis under the store's lock and
// persists the result.
func (s *Store) Update(id string, update func(*Analysis)) (Analysis, bool) {
	if s == nil {
		return Analysis{}, false
	}
	if s.db != nil {
		a, ok := s.updateDB(id, update)
		if ok && s.recent != nil {
			s.recent.Remove(strings.TrimSpace(id))
		}
		return a, ok
	}
	return s.updateFile(id, update)
}

// List returns all analyses, newest first.
func (s *Store) List() []Analysis {
	if s == nil {
		return nil
	}
	if s.db != nil {
		return s.listDB()
	}
	return s.listFile()
}
