package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureDocument returns the document with the given external identifier,
// creating it on first sighting. The insert uses ON CONFLICT DO NOTHING
// followed by a re-select, so concurrent callers and crash-retried calls
// converge on the same row without violating the external_id uniqueness
// invariant.
func (s *Store) EnsureDocument(ctx context.Context, externalID string, sourceID int64, title string) (*Document, error) {
	doc, err := s.GetDocumentByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		return doc, nil
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO documents (external_id, source_id, title, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(external_id) DO NOTHING`,
		externalID, sourceID, title, time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	doc, err = s.GetDocumentByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document %q vanished after insert", externalID)
	}
	return doc, nil
}

// GetDocument retrieves a document by ID. Returns nil when absent.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, external_id, source_id, title, created_at
		FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// GetDocumentByExternalID retrieves a document by its external identifier.
func (s *Store) GetDocumentByExternalID(ctx context.Context, externalID string) (*Document, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, external_id, source_id, title, created_at
		FROM documents WHERE external_id = ?`, externalID)
	return scanDocument(row)
}

// GetVersionByHash returns the version of a document with the given content
// hash, or nil — the dedup lookup of the versioning engine.
func (s *Store) GetVersionByHash(ctx context.Context, documentID int64, hash string) (*DocumentVersion, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, document_id, content_hash, content, created_at
		FROM document_versions WHERE document_id = ? AND content_hash = ?`,
		documentID, hash)
	return scanVersion(row)
}

// GetVersion retrieves a version by ID. Returns nil when absent.
func (s *Store) GetVersion(ctx context.Context, id int64) (*DocumentVersion, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, document_id, content_hash, content, created_at
		FROM document_versions WHERE id = ?`, id)
	return scanVersion(row)
}

// InsertVersion stores a new content snapshot. Reports created=false when a
// concurrent writer got there first with the same (document_id, hash) — the
// UNIQUE constraint, not application locking, serialises the race.
func (s *Store) InsertVersion(ctx context.Context, v *DocumentVersion) (created bool, err error) {
	if v.CreatedAt == 0 {
		v.CreatedAt = time.Now().UnixMilli()
	}
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO document_versions (document_id, content_hash, content, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id, content_hash) DO NOTHING`,
		v.DocumentID, v.ContentHash, v.Content, v.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	v.ID, err = res.LastInsertId()
	return true, err
}

// PreviousVersion returns the version of the same document with the largest
// id strictly below beforeID, or nil when beforeID is the document's first.
func (s *Store) PreviousVersion(ctx context.Context, documentID, beforeID int64) (*DocumentVersion, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, document_id, content_hash, content, created_at
		FROM document_versions
		WHERE document_id = ? AND id < ?
		ORDER BY id DESC LIMIT 1`, documentID, beforeID)
	return scanVersion(row)
}

// ListVersions returns all versions of a document in creation order.
func (s *Store) ListVersions(ctx context.Context, documentID int64) ([]*DocumentVersion, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, document_id, content_hash, content, created_at
		FROM document_versions WHERE document_id = ? ORDER BY id`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*DocumentVersion
	for rows.Next() {
		var v DocumentVersion
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.ContentHash, &v.Content, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

func scanDocument(row *sql.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.ExternalID, &d.SourceID, &d.Title, &d.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &d, nil
}

func scanVersion(row *sql.Row) (*DocumentVersion, error) {
	var v DocumentVersion
	err := row.Scan(&v.ID, &v.DocumentID, &v.ContentHash, &v.Content, &v.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan version: %w", err)
	}
	return &v, nil
}
