// Package store is the content store for the radar: sources, documents,
// document versions, change events, and impact assessments.
//
// All five entities are append-only once created. Identity and dedup
// invariants (unique source URL, unique document external_id, unique
// (document_id, content_hash) per version) are enforced by the schema, not
// by in-memory coordination, so concurrent writers stay correct.
package store

import "database/sql"

// Store wraps the radar database.
type Store struct {
	DB *sql.DB
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}
