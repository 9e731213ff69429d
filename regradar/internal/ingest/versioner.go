// Package ingest turns extracted document text into versioned, diffed
// content-store records.
//
// The Versioner owns the content-addressed dedup decision (new document /
// new version / unchanged); the Differ links a new version to its immediate
// predecessor and records the change event carrying their unified diff.
package ingest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/regradar/regradar/internal/store"
)

// StoreResult is the outcome of one StoreVersion call.
type StoreResult struct {
	Document     *store.Document
	Version      *store.DocumentVersion
	IsNewVersion bool
}

// Versioner decides new-document vs. new-version vs. unchanged and persists
// accordingly.
type Versioner struct {
	store  *store.Store
	logger *slog.Logger
}

// NewVersioner creates a Versioner.
func NewVersioner(s *store.Store, logger *slog.Logger) *Versioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Versioner{store: s, logger: logger}
}

// Fingerprint returns the hex SHA-256 of normalized document text. The hash
// is computed over extracted text, not raw bytes, so encoding-only changes
// that extract identically produce no new version.
func Fingerprint(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}

// StoreVersion records the observed content for a document, creating the
// document on first sighting. Re-observing content already stored for the
// document is a no-op beyond the lookup: IsNewVersion is false and nothing
// is written. Every step is individually idempotent, so a crash between
// document and version creation is healed by the retry.
func (v *Versioner) StoreVersion(ctx context.Context, sourceID int64, externalID, title, text string) (*StoreResult, error) {
	hash := Fingerprint(text)

	doc, err := v.store.EnsureDocument(ctx, externalID, sourceID, title)
	if err != nil {
		return nil, fmt.Errorf("ensure document: %w", err)
	}

	existing, err := v.store.GetVersionByHash(ctx, doc.ID, hash)
	if err != nil {
		return nil, fmt.Errorf("version lookup: %w", err)
	}
	if existing != nil {
		return &StoreResult{Document: doc, Version: existing, IsNewVersion: false}, nil
	}

	ver := &store.DocumentVersion{DocumentID: doc.ID, ContentHash: hash, Content: text}
	created, err := v.store.InsertVersion(ctx, ver)
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}
	if !created {
		// Lost a race with a concurrent writer; the row exists now.
		existing, err = v.store.GetVersionByHash(ctx, doc.ID, hash)
		if err != nil {
			return nil, fmt.Errorf("version re-lookup: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("version (%d, %s) vanished after conflict", doc.ID, hash)
		}
		return &StoreResult{Document: doc, Version: existing, IsNewVersion: false}, nil
	}

	v.logger.Debug("ingest: new version stored",
		"document_id", doc.ID, "version_id", ver.ID, "hash", hash[:12])
	return &StoreResult{Document: doc, Version: ver, IsNewVersion: true}, nil
}
