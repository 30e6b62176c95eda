package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	_ "modernc.org/sqlite" // Pure-Go SQLite3 driver
)

// DefaultPath is the database location on the reference device.
const DefaultPath = "/var/lib/alarm-sensor/thresholds.db"

// SQLiteStore keeps thresholds in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger hclog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and ensures
// the schema exists.
func OpenSQLite(path string, logger hclog.Logger) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path, logger: logger}
	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("database opened", "path", path)
	return s, nil
}

func (s *SQLiteStore) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS thresholds (
			channel    INTEGER PRIMARY KEY,
			threshold  INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create thresholds table: %w", err)
	}
	return nil
}

// Load returns the stored threshold of a channel.
func (s *SQLiteStore) Load(ctx context.Context, channel int) (int, bool, error) {
	var v int
	err := s.db.QueryRowContext(ctx,
		`SELECT threshold FROM thresholds WHERE channel = ?`, channel).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load threshold %d: %w", channel, err)
	}
	return v, true, nil
}

// Save stores a threshold, replacing any previous value.
func (s *SQLiteStore) Save(ctx context.Context, channel, threshold int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thresholds (channel, threshold, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(channel) DO UPDATE SET threshold = excluded.threshold, updated_at = excluded.updated_at`,
		channel, threshold, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save threshold %d: %w", channel, err)
	}
	s.logger.Debug("threshold saved", "channel", channel, "threshold", threshold)
	return nil
}

// All returns every stored threshold keyed by channel.
func (s *SQLiteStore) All(ctx context.Context) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT channel, threshold FROM thresholds ORDER BY channel`)
	if err != nil {
		return nil, fmt.Errorf("list thresholds: %w", err)
	}
	defer rows.Close()

	out := make(map[int]int)
	for rows.Next() {
		var ch, v int
		if err := rows.Scan(&ch, &v); err != nil {
			return nil, fmt.Errorf("scan threshold: %w", err)
		}
		out[ch] = v
	}
	return out, rows.Err()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
