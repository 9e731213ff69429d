package store

import "database/sql"

// Schema is the complete radar schema. Applied idempotently at startup.
//
// document_versions uses AUTOINCREMENT so version ids are strictly
// monotonic per creation order — the diff engine's "immediately preceding
// version" lookup depends on it.
const Schema = `
-- Monitored sources (seeded at init, identity fields immutable thereafter)
CREATE TABLE IF NOT EXISTS sources (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    name            TEXT NOT NULL,
    url             TEXT NOT NULL UNIQUE,
    source_type     TEXT NOT NULL DEFAULT 'rss',
    fetch_interval  INTEGER NOT NULL DEFAULT 3600000,
    enabled         INTEGER NOT NULL DEFAULT 1,
    last_fetched_at INTEGER,
    last_status     TEXT NOT NULL DEFAULT 'pending',
    last_error      TEXT NOT NULL DEFAULT '',
    last_etag       TEXT NOT NULL DEFAULT '',
    last_modified   TEXT NOT NULL DEFAULT '',
    last_hash       TEXT NOT NULL DEFAULT '',
    fail_count      INTEGER NOT NULL DEFAULT 0,
    created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sources_enabled ON sources(enabled, last_fetched_at);

-- Logical documents, one per stable external identifier (canonical URL)
CREATE TABLE IF NOT EXISTS documents (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    external_id TEXT NOT NULL UNIQUE,
    source_id   INTEGER NOT NULL REFERENCES sources(id),
    title       TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source_id);

-- Immutable content snapshots; one row per distinct content observed
CREATE TABLE IF NOT EXISTS document_versions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id  INTEGER NOT NULL REFERENCES documents(id),
    content_hash TEXT NOT NULL,
    content      TEXT NOT NULL,
    created_at   INTEGER NOT NULL,
    UNIQUE (document_id, content_hash)
);
CREATE INDEX IF NOT EXISTS idx_versions_document ON document_versions(document_id, id);

-- A recorded transition between two successive versions of one document
CREATE TABLE IF NOT EXISTS change_events (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    version_id          INTEGER NOT NULL REFERENCES document_versions(id),
    previous_version_id INTEGER REFERENCES document_versions(id),
    diff                TEXT NOT NULL,
    created_at          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_change_events_version ON change_events(version_id);

-- Published outcomes of the quality gate
CREATE TABLE IF NOT EXISTS impact_assessments (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    version_id INTEGER NOT NULL REFERENCES document_versions(id),
    summary    TEXT NOT NULL,
    actions    TEXT NOT NULL DEFAULT '',
    score      REAL NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessments_version ON impact_assessments(version_id);
CREATE INDEX IF NOT EXISTS idx_assessments_time ON impact_assessments(created_at DESC);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
