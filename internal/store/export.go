package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrSnapshotNotFound is returned when no snapshot has the requested id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// LoadByID returns a specific historical snapshot.
func (s *SQLiteStore) LoadByID(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	return data, nil
}
