package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/regradar/regradar/internal/store"
)

// Differ links a new version to its immediate predecessor and records the
// change event between them.
type Differ struct {
	store  *store.Store
	logger *slog.Logger
}

// NewDiffer creates a Differ.
func NewDiffer(s *store.Store, logger *slog.Logger) *Differ {
	if logger == nil {
		logger = slog.Default()
	}
	return &Differ{store: s, logger: logger}
}

// LinkPrevious returns the version of the same document immediately
// preceding the given one in creation order, or nil for a document's first
// version.
func (d *Differ) LinkPrevious(ctx context.Context, version *store.DocumentVersion) (*store.DocumentVersion, error) {
	return d.store.PreviousVersion(ctx, version.DocumentID, version.ID)
}

// ComputeDiff produces and persists the change event between previous and
// the result's version. It runs only when the version is new and a previous
// version exists; otherwise it returns (nil, nil) and the document's
// pipeline terminates here — a brand-new document never enters assessment.
func (d *Differ) ComputeDiff(ctx context.Context, res *StoreResult, previous *store.DocumentVersion) (*store.ChangeEvent, error) {
	if previous == nil || !res.IsNewVersion {
		return nil, nil
	}

	diffText := Unified(previous.Content, res.Version.Content)

	ev := &store.ChangeEvent{
		VersionID:         res.Version.ID,
		PreviousVersionID: &previous.ID,
		Diff:              diffText,
	}
	if err := d.store.InsertChangeEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("record change event: %w", err)
	}

	d.logger.Info("ingest: change detected",
		"document_id", res.Document.ID,
		"version_id", res.Version.ID,
		"previous_version_id", previous.ID,
		"diff_bytes", len(diffText))
	return ev, nil
}
