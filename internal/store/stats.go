package store

import (
	"context"
	"fmt"
	"os"
)

// Stats holds snapshot database statistics.
type Stats struct {
	DBPath      string `json:"db_path"`
	DBSizeBytes int64  `json:"db_size_bytes"`
	Snapshots   int    `json:"snapshots"`
	TotalBytes  int64  `json:"total_snapshot_bytes"`
	History     int    `json:"history"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.path, History: s.history}

	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM snapshots`).Scan(&st.Snapshots, &st.TotalBytes)
	if err != nil {
		return st, fmt.Errorf("count snapshots: %w", err)
	}
	return st, nil
}
