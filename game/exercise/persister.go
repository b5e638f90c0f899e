package exercise

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrPersist  = errors.New("failed to persist exercise")
	ErrNotFound = errors.New("exercise not found")
)

const artifactName = "exercise.json"

// Summary is one index row, enough to render a listing.
type Summary struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	MoveIndex int       `json:"moveIndex"`
	BoardSize int       `json:"boardSize"`
	CreatedAt time.Time `json:"createdAt"`
}

// Persister writes exercise artifacts to disk and keeps a SQLite
// index alongside them. Artifacts live in one directory per ID and
// are never visible half-written: the JSON is staged in a temp file
// and renamed into place.
type Persister struct {
	dir   string
	sqlDB *sql.DB
}

// Open prepares the artifact directory and the index database.
func Open(dir, dbPath string) (*Persister, error) {
	if dir == "" {
		return nil, fmt.Errorf("exercise directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create exercise dir: %w", err)
	}
	if dbPath == "" {
		dbPath = filepath.Join(dir, "index.db")
	}

	dsn := filepath.Clean(dbPath) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open exercise index: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping exercise index: %w", err)
	}
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS exercises (
		id         TEXT PRIMARY KEY,
		category   TEXT NOT NULL,
		move_index INTEGER NOT NULL,
		board_size INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("create exercise schema: %w", err)
	}

	return &Persister{dir: dir, sqlDB: sqlDB}, nil
}

// Close releases the index database.
func (p *Persister) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}

// Exists reports whether an artifact for id is already on disk,
// letting callers distinguish a fresh save from a re-save.
func (p *Persister) Exists(id string) bool {
	_, err := os.Stat(filepath.Join(p.dir, id, artifactName))
	return err == nil
}

// Save writes the artifact and upserts the index row. A failure
// anywhere leaves no partial artifact behind and the exercise is not
// considered saved.
func (p *Persister) Save(doc *Document) error {
	exDir := filepath.Join(p.dir, doc.ID)
	if err := os.MkdirAll(exDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	tmp, err := os.CreateTemp(exDir, artifactName+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := os.Rename(tmpName, filepath.Join(exDir, artifactName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}

	_, err = p.sqlDB.Exec(
		`INSERT INTO exercises (id, category, move_index, board_size, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   category   = excluded.category,
		   move_index = excluded.move_index,
		   board_size = excluded.board_size,
		   created_at = excluded.created_at`,
		doc.ID, string(doc.Category), doc.MoveIndex, doc.BoardSize, doc.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("%w: index: %v", ErrPersist, err)
	}
	return nil
}

// Get loads a saved artifact by ID.
func (p *Persister) Get(id string) (*Document, error) {
	data, err := os.ReadFile(filepath.Join(p.dir, id, artifactName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read exercise %s: %w", id, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode exercise %s: %w", id, err)
	}
	return &doc, nil
}

// List returns index rows, newest first.
func (p *Persister) List() ([]Summary, error) {
	rows, err := p.sqlDB.Query(
		`SELECT id, category, move_index, board_size, created_at
		 FROM exercises ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	defer rows.Close()

	out := make([]Summary, 0)
	for rows.Next() {
		var s Summary
		var category string
		var createdAt int64
		if err := rows.Scan(&s.ID, &category, &s.MoveIndex, &s.BoardSize, &createdAt); err != nil {
			return nil, fmt.Errorf("scan exercise row: %w", err)
		}
		s.Category = Category(category)
		s.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exercises: %w", err)
	}
	return out, nil
}
