package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one delivered notification.
type Record struct {
	ID        int64
	Seq       uint64
	Source    string
	Text      string
	Timestamp time.Time
}

// Store is an append-only SQLite log of delivered notifications.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the journal at path.
// Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, wrap(ErrOpenFailed, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrap(ErrOpenFailed, err)
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, wrap(ErrSchemaFailed, err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seq INTEGER NOT NULL,
		source TEXT NOT NULL,
		text TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_timestamp ON notifications(timestamp);
	CREATE INDEX IF NOT EXISTS idx_notifications_source ON notifications(source);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append writes r. ID is assigned by the database and ignored on input.
func (s *Store) Append(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO notifications (seq, source, text, timestamp) VALUES (?, ?, ?, ?)",
		int64(r.Seq), r.Source, r.Text, r.Timestamp.UnixMilli(),
	)
	if err != nil {
		return wrap(ErrAppendFailed, err)
	}
	return nil
}

// Range returns records with start <= timestamp <= end in append order.
func (s *Store) Range(ctx context.Context, start, end time.Time) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, seq, source, text, timestamp FROM notifications WHERE timestamp >= ? AND timestamp <= ? ORDER BY id",
		start.UnixMilli(), end.UnixMilli(),
	)
	if err != nil {
		return nil, wrap(ErrQueryFailed, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Recent returns the last limit records, oldest first. Optional sources restrict the result.
func (s *Store) Recent(ctx context.Context, limit int, sources ...string) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, seq, source, text, timestamp FROM notifications"
	args := make([]any, 0, len(sources)+1)
	if len(sources) > 0 {
		query += " WHERE source IN (?"
		for range sources[1:] {
			query += ", ?"
		}
		query += ")"
		for _, src := range sources {
			args = append(args, src)
		}
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(ErrQueryFailed, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Count returns the number of records in the journal.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notifications").Scan(&n); err != nil {
		return 0, wrap(ErrQueryFailed, err)
	}
	return n, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	records := []Record{}
	for rows.Next() {
		var (
			r      Record
			seq    int64
			millis int64
		)
		if err := rows.Scan(&r.ID, &seq, &r.Source, &r.Text, &millis); err != nil {
			return nil, wrap(ErrQueryFailed, err)
		}
		r.Seq = uint64(seq)
		r.Timestamp = time.UnixMilli(millis)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ErrQueryFailed, err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
