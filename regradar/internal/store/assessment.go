package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertAssessment persists a published impact assessment. Only the quality
// gate's publish outcome calls this.
func (s *Store) InsertAssessment(ctx context.Context, a *ImpactAssessment) error {
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().UnixMilli()
	}
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO impact_assessments (version_id, summary, actions, score, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.VersionID, a.Summary, a.Actions, a.Score, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

// GetAssessment retrieves an assessment by ID. Returns nil when absent.
func (s *Store) GetAssessment(ctx context.Context, id int64) (*ImpactAssessment, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, version_id, summary, actions, score, created_at
		FROM impact_assessments WHERE id = ?`, id)
	var a ImpactAssessment
	err := row.Scan(&a.ID, &a.VersionID, &a.Summary, &a.Actions, &a.Score, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan assessment: %w", err)
	}
	return &a, nil
}

// CountStats returns aggregate entity counts.
func (s *Store) CountStats(ctx context.Context) (*Stats, error) {
	var st Stats
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"sources", &st.Sources},
		{"documents", &st.Documents},
		{"document_versions", &st.Versions},
		{"change_events", &st.Changes},
		{"impact_assessments", &st.Assessments},
	} {
		if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+q.table).Scan(q.dst); err != nil {
			return nil, fmt.Errorf("count %s: %w", q.table, err)
		}
	}
	return &st, nil
}
