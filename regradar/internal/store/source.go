package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const sourceColumns = `id, name, url, source_type, fetch_interval, enabled,
	last_fetched_at, last_status, last_error, last_etag, last_modified,
	last_hash, fail_count, created_at`

// InsertSource adds a new source. The UNIQUE constraint on url rejects
// duplicates.
func (s *Store) InsertSource(ctx context.Context, src *Source) error {
	now := time.Now().UnixMilli()
	if src.CreatedAt == 0 {
		src.CreatedAt = now
	}
	if src.SourceType == "" {
		src.SourceType = "rss"
	}
	if src.FetchInterval == 0 {
		src.FetchInterval = 3600000
	}
	if src.LastStatus == "" {
		src.LastStatus = "pending"
	}

	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO sources (name, url, source_type, fetch_interval, enabled,
		last_fetched_at, last_status, last_error, last_etag, last_modified,
		last_hash, fail_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.Name, src.URL, src.SourceType, src.FetchInterval, src.Enabled,
		src.LastFetchedAt, src.LastStatus, src.LastError, src.LastETag,
		src.LastModified, src.LastHash, src.FailCount, src.CreatedAt,
	)
	if err != nil {
		return err
	}
	src.ID, err = res.LastInsertId()
	return err
}

// GetSource retrieves a source by ID. Returns nil when absent.
func (s *Store) GetSource(ctx context.Context, id int64) (*Source, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	return scanSource(row)
}

// GetSourceByURL returns the source with the given URL, or nil.
func (s *Store) GetSourceByURL(ctx context.Context, url string) (*Source, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE url = ? LIMIT 1`, url)
	return scanSource(row)
}

// ListSources returns all sources ordered by id.
func (s *Store) ListSources(ctx context.Context) ([]*Source, error) {
	return s.querySources(ctx,
		`SELECT `+sourceColumns+` FROM sources ORDER BY id`)
}

// ListEnabledSources returns all enabled sources ordered by id.
func (s *Store) ListEnabledSources(ctx context.Context) ([]*Source, error) {
	return s.querySources(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE enabled = 1 ORDER BY id`)
}

// DueSources returns enabled sources whose next fetch time has passed and
// whose failure count is below maxFailCount. Sources never fetched are
// always due.
func (s *Store) DueSources(ctx context.Context, maxFailCount int) ([]*Source, error) {
	now := time.Now().UnixMilli()
	return s.querySources(ctx,
		`SELECT `+sourceColumns+` FROM sources
		WHERE enabled = 1
		  AND fail_count < ?
		  AND (last_fetched_at IS NULL OR last_fetched_at + fetch_interval <= ?)
		ORDER BY last_fetched_at ASC NULLS FIRST`, maxFailCount, now)
}

// RecordFetchSuccess resets failure bookkeeping after a successful fetch and
// stores the conditional-GET validators for the next request.
func (s *Store) RecordFetchSuccess(ctx context.Context, id int64, etag, lastModified, hash string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE sources SET last_fetched_at=?, last_status='ok', last_error='',
		last_etag=?, last_modified=?, last_hash=?, fail_count=0 WHERE id=?`,
		now, etag, lastModified, hash, id)
	return err
}

// RecordFetchError marks a failed fetch and bumps the failure count.
func (s *Store) RecordFetchError(ctx context.Context, id int64, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE sources SET last_fetched_at=?, last_status='error',
		last_error=?, fail_count=fail_count+1 WHERE id=?`, now, errMsg, id)
	return err
}

// SeedSources inserts the given sources unless their URL already exists.
// Safe to call on every startup.
func (s *Store) SeedSources(ctx context.Context, sources []*Source) error {
	for _, src := range sources {
		existing, err := s.GetSourceByURL(ctx, src.URL)
		if err != nil {
			return fmt.Errorf("seed lookup %s: %w", src.URL, err)
		}
		if existing != nil {
			continue
		}
		src.Enabled = true
		if err := s.InsertSource(ctx, src); err != nil {
			return fmt.Errorf("seed insert %s: %w", src.URL, err)
		}
	}
	return nil
}

func (s *Store) querySources(ctx context.Context, query string, args ...any) ([]*Source, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*Source
	for rows.Next() {
		src, err := scanSourceRows(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func scanSource(row *sql.Row) (*Source, error) {
	var src Source
	var enabled int
	err := row.Scan(
		&src.ID, &src.Name, &src.URL, &src.SourceType, &src.FetchInterval, &enabled,
		&src.LastFetchedAt, &src.LastStatus, &src.LastError, &src.LastETag,
		&src.LastModified, &src.LastHash, &src.FailCount, &src.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan source: %w", err)
	}
	src.Enabled = enabled != 0
	return &src, nil
}

func scanSourceRows(rows *sql.Rows) (*Source, error) {
	var src Source
	var enabled int
	err := rows.Scan(
		&src.ID, &src.Name, &src.URL, &src.SourceType, &src.FetchInterval, &enabled,
		&src.LastFetchedAt, &src.LastStatus, &src.LastError, &src.LastETag,
		&src.LastModified, &src.LastHash, &src.FailCount, &src.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}
	src.Enabled = enabled != 0
	return &src, nil
}
