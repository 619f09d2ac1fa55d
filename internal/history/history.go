// Package history keeps a durable log of generation runs in SQLite so past
// requests can be listed without re-running the pipeline.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/valluvarai/valluvarai/internal/pipeline"
	"github.com/valluvarai/valluvarai/internal/pipeline/artifact"
)

// Record is one logged generation run.
type Record struct {
	ID         int64                  `json:"id"`
	CreatedAt  time.Time              `json:"created_at"`
	Keyword    string                 `json:"keyword"`
	VerseID    int                    `json:"verse_id"`
	State      string                 `json:"state"`
	Statuses   []artifact.StageStatus `json:"statuses"`
	DurationMS int64                  `json:"duration_ms"`
}

// Store is the SQLite-backed generation log.
type Store struct {
	db *sql.DB
}

const createGenerationsTable = `
CREATE TABLE IF NOT EXISTS generations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at DATETIME NOT NULL,
	keyword TEXT NOT NULL,
	verse_id INTEGER NOT NULL,
	state TEXT NOT NULL,
	statuses TEXT NOT NULL,
	duration_ms INTEGER NOT NULL
);
`

// Open creates or opens the generation log at dbPath. Use ":memory:" for an
// ephemeral store.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if _, err := db.Exec(createGenerationsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migrate db: %w", err)
	}
	return &Store{db: db}, nil
}

// Append logs one finished run.
func (s *Store) Append(ctx context.Context, keyword string, outcome pipeline.Outcome) error {
	statuses, err := json.Marshal(outcome.Statuses)
	if err != nil {
		return fmt.Errorf("history: encode statuses: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO generations (created_at, keyword, verse_id, state, statuses, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UTC(), keyword, outcome.Verse.ID, string(outcome.State), string(statuses), outcome.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, keyword, verse_id, state, statuses, duration_ms
		 FROM generations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rec Record
		var statuses string
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.Keyword, &rec.VerseID, &rec.State, &statuses, &rec.DurationMS); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(statuses), &rec.Statuses); err != nil {
			return nil, fmt.Errorf("history: decode statuses: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate: %w", err)
	}
	return records, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
