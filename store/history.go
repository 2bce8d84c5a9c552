package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Generation is one accepted QR code render, logged for operators.
type Generation struct {
	ID        int64  `json:"id"`
	Session   string `json:"session"`
	Content   string `json:"content"`
	Size      int    `json:"size"`
	Encoder   string `json:"encoder"`
	Timestamp int64  `json:"timestamp"`
}

// HistoryStore manages SQLite storage for the generation log. Page state
// is never restored from it.
type HistoryStore struct {
	db *sql.DB
}

const createGenerationsTable = `
CREATE TABLE IF NOT EXISTS generations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    size INTEGER NOT NULL,
    encoder TEXT NOT NULL DEFAULT '',
    timestamp INTEGER NOT NULL
);
`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_generations_timestamp ON generations(timestamp);
`

// NewHistoryStore opens (or creates) the SQLite database at dbPath and
// initialises the schema.
func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, stmt := range []string{createGenerationsTable, createIndexes} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec schema statement: %w", err)
		}
	}

	return &HistoryStore{db: db}, nil
}

// Record appends a generation. A zero Timestamp is filled with the
// current time.
func (s *HistoryStore) Record(ctx context.Context, g *Generation) error {
	if g.Timestamp == 0 {
		g.Timestamp = time.Now().Unix()
	}
	const query = `
		INSERT INTO generations (session, content, size, encoder, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query, g.Session, g.Content, g.Size, g.Encoder, g.Timestamp)
	if err != nil {
		return fmt.Errorf("record generation: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		g.ID = id
	}
	return nil
}

// Recent returns the newest generations first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]Generation, error) {
	const query = `
		SELECT id, session, content, size, encoder, timestamp
		FROM generations
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent generations: %w", err)
	}
	defer rows.Close()

	var gens []Generation
	for rows.Next() {
		var g Generation
		if err := rows.Scan(&g.ID, &g.Session, &g.Content, &g.Size, &g.Encoder, &g.Timestamp); err != nil {
			return nil, fmt.Errorf("scan generation row: %w", err)
		}
		gens = append(gens, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generation rows: %w", err)
	}
	return gens, nil
}

// Close closes the underlying database connection.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}
