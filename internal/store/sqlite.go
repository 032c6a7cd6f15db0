package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// DefaultHistory is how many snapshots SQLiteStore retains.
const DefaultHistory = 5

// SQLiteStore keeps a rolling history of snapshots in SQLite. Load returns
// the newest one.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	history int

	mu      sync.Mutex
	entropy io.Reader
}

// SnapshotInfo describes a stored snapshot without its payload.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	SizeBytes int       `json:"size_bytes"`
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, history int) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if history <= 0 {
		history = DefaultHistory
	}
	s := &SQLiteStore{
		db:      db,
		path:    dbPath,
		history: history,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id          TEXT PRIMARY KEY,
		created_at  TEXT NOT NULL,
		size_bytes  INTEGER NOT NULL,
		data        BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots ORDER BY id DESC LIMIT 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return data, nil
}

// Save inserts a new snapshot row and prunes rows beyond the history limit.
func (s *SQLiteStore) Save(ctx context.Context, data []byte) error {
	now := time.Now().UTC()
	id := s.newID(now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, created_at, size_bytes, data) VALUES (?, ?, ?, ?)`,
		id, now.Format(time.RFC3339Nano), len(data), data)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY id DESC LIMIT ?
		)`, s.history)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	return tx.Commit()
}

// List returns stored snapshots, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, size_bytes FROM snapshots ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var createdAt string
		if err := rows.Scan(&info.ID, &createdAt, &info.SizeBytes); err != nil {
			return nil, err
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
