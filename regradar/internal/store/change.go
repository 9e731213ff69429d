package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertChangeEvent records a transition between two versions.
func (s *Store) InsertChangeEvent(ctx context.Context, ev *ChangeEvent) error {
	if ev.CreatedAt == 0 {
		ev.CreatedAt = time.Now().UnixMilli()
	}
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO change_events (version_id, previous_version_id, diff, created_at)
		VALUES (?, ?, ?, ?)`,
		ev.VersionID, ev.PreviousVersionID, ev.Diff, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	ev.ID, err = res.LastInsertId()
	return err
}

// GetChangeEventByVersion returns the change event recorded for a version,
// or nil when the version never produced one (first sighting).
func (s *Store) GetChangeEventByVersion(ctx context.Context, versionID int64) (*ChangeEvent, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, version_id, previous_version_id, diff, created_at
		FROM change_events WHERE version_id = ? LIMIT 1`, versionID)
	var ev ChangeEvent
	err := row.Scan(&ev.ID, &ev.VersionID, &ev.PreviousVersionID, &ev.Diff, &ev.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan change event: %w", err)
	}
	return &ev, nil
}
