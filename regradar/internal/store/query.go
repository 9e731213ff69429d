package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrInvalidSort is returned when a caller requests a sort field or
// direction outside the supported set. The API maps it to a client error
// instead of silently ignoring the parameter.
var ErrInvalidSort = errors.New("store: unsupported sort parameter")

// ChangeFilter narrows and pages the published-changes listing.
type ChangeFilter struct {
	Since     *int64 // inclusive lower bound on assessment created_at (unix ms)
	Until     *int64 // inclusive upper bound
	SourceID  int64  // 0 = any source
	MinScore  *float64
	Limit     int // default 50, capped at 200
	Offset    int
	SortField string // "created_at" (default) or "score"
	SortDir   string // "desc" (default) or "asc"
}

// Normalize applies paging defaults and validates the sort parameters, so
// callers that echo Limit/Offset back see the values the query actually used.
func (f *ChangeFilter) Normalize() error {
	if f.SortField == "" {
		f.SortField = "created_at"
	}
	if f.SortDir == "" {
		f.SortDir = "desc"
	}
	if _, ok := sortFields[f.SortField]; !ok {
		return fmt.Errorf("%w: field %q", ErrInvalidSort, f.SortField)
	}
	if _, ok := sortDirs[f.SortDir]; !ok {
		return fmt.Errorf("%w: direction %q", ErrInvalidSort, f.SortDir)
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return nil
}

// ChangeRecord is one published assessment joined to its document, source,
// and the change event that produced it.
type ChangeRecord struct {
	ID         int64   `json:"id"`
	Summary    string  `json:"summary"`
	Actions    string  `json:"actions"`
	Score      float64 `json:"score"`
	CreatedAt  int64   `json:"created_at"`
	DocumentID int64   `json:"document_id"`
	ExternalID string  `json:"external_id"`
	SourceID   int64   `json:"source_id"`
	SourceName string  `json:"source"`
	Diff       string  `json:"diff,omitempty"`
}

var sortFields = map[string]string{
	"created_at": "a.created_at",
	"score":      "a.score",
}

var sortDirs = map[string]string{
	"asc":  "ASC",
	"desc": "DESC",
}

// changeWhere renders the shared filter predicate and its arguments.
func changeWhere(f ChangeFilter) (string, []any) {
	where := ` WHERE 1=1`
	var args []any

	if f.Since != nil {
		where += ` AND a.created_at >= ?`
		args = append(args, *f.Since)
	}
	if f.Until != nil {
		where += ` AND a.created_at <= ?`
		args = append(args, *f.Until)
	}
	if f.SourceID != 0 {
		where += ` AND src.id = ?`
		args = append(args, f.SourceID)
	}
	if f.MinScore != nil {
		where += ` AND a.score >= ?`
		args = append(args, *f.MinScore)
	}
	return where, args
}

const changeJoins = `
	FROM impact_assessments a
	JOIN document_versions v ON a.version_id = v.id
	JOIN documents d ON v.document_id = d.id
	JOIN sources src ON d.source_id = src.id
	LEFT JOIN change_events ev ON ev.version_id = v.id`

// ListChanges returns published assessments matching the filter.
func (s *Store) ListChanges(ctx context.Context, f ChangeFilter) ([]*ChangeRecord, error) {
	if err := f.Normalize(); err != nil {
		return nil, err
	}
	col := sortFields[f.SortField]
	dir := sortDirs[f.SortDir]

	where, args := changeWhere(f)
	query := `SELECT a.id, a.summary, a.actions, a.score, a.created_at,
		d.id, d.external_id, src.id, src.name, COALESCE(ev.diff, '')` +
		changeJoins + where +
		` ORDER BY ` + col + ` ` + dir + `, a.id ` + dir + ` LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*ChangeRecord
	for rows.Next() {
		var r ChangeRecord
		if err := rows.Scan(&r.ID, &r.Summary, &r.Actions, &r.Score, &r.CreatedAt,
			&r.DocumentID, &r.ExternalID, &r.SourceID, &r.SourceName, &r.Diff); err != nil {
			return nil, fmt.Errorf("scan change record: %w", err)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// CountChanges returns the number of assessments matching the filter,
// ignoring pagination. The API uses it for the pagination envelope.
func (s *Store) CountChanges(ctx context.Context, f ChangeFilter) (int, error) {
	where, args := changeWhere(f)
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*)`+changeJoins+where, args...).Scan(&n)
	return n, err
}

// GetChangeRecord returns one assessment with document and source context,
// or nil when absent.
func (s *Store) GetChangeRecord(ctx context.Context, assessmentID int64) (*ChangeRecord, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT a.id, a.summary, a.actions, a.score, a.created_at,
		d.id, d.external_id, src.id, src.name, COALESCE(ev.diff, '')
		FROM impact_assessments a
		JOIN document_versions v ON a.version_id = v.id
		JOIN documents d ON v.document_id = d.id
		JOIN sources src ON d.source_id = src.id
		LEFT JOIN change_events ev ON ev.version_id = v.id
		WHERE a.id = ?`, assessmentID)

	var r ChangeRecord
	err := row.Scan(&r.ID, &r.Summary, &r.Actions, &r.Score, &r.CreatedAt,
		&r.DocumentID, &r.ExternalID, &r.SourceID, &r.SourceName, &r.Diff)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan change record: %w", err)
	}
	return &r, nil
}
