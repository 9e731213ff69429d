// Package digest renders a markdown digest of recently published impact
// assessments, grouped by source with the highest scores first, and keeps a
// digest file current by watching the database for new assessments.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hazyhaar/regradar/regradar/internal/store"
)

// Builder renders digests from the store.
type Builder struct {
	store  *store.Store
	logger *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(s *store.Store, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: s, logger: logger}
}

// Build renders the digest for assessments published in [since, until].
// An empty window still renders, with a no-changes note.
func (b *Builder) Build(ctx context.Context, since, until time.Time) (string, error) {
	lo, hi := since.UnixMilli(), until.UnixMilli()
	records, err := b.store.ListChanges(ctx, store.ChangeFilter{
		Since:     &lo,
		Until:     &hi,
		Limit:     200,
		SortField: "score",
		SortDir:   "desc",
	})
	if err != nil {
		return "", fmt.Errorf("digest: list changes: %w", err)
	}
	return render(records, since, until), nil
}

// BuildWeekly renders the digest for the trailing seven days.
func (b *Builder) BuildWeekly(ctx context.Context, now time.Time) (string, error) {
	return b.Build(ctx, now.AddDate(0, 0, -7), now)
}

func render(records []*store.ChangeRecord, since, until time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Change digest %s to %s\n\n",
		since.UTC().Format("2006-01-02"), until.UTC().Format("2006-01-02"))

	if len(records) == 0 {
		sb.WriteString("No published changes in this window.\n")
		return sb.String()
	}

	bySource := map[string][]*store.ChangeRecord{}
	for _, r := range records {
		bySource[r.SourceName] = append(bySource[r.SourceName], r)
	}
	names := make([]string, 0, len(bySource))
	for name := range bySource {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(&sb, "%d published change(s) across %d source(s).\n", len(records), len(names))

	for _, name := range names {
		fmt.Fprintf(&sb, "\n## %s\n\n", name)
		// Records arrive score-descending from the store; keep that order
		// inside each source.
		for _, r := range bySource[name] {
			fmt.Fprintf(&sb, "- **%.2f** %s — %s\n", r.Score, r.ExternalID, firstSentence(r.Summary))
			for _, action := range strings.Split(r.Actions, "\n") {
				if action = strings.TrimSpace(action); action != "" {
					fmt.Fprintf(&sb, "  - action: %s\n", action)
				}
			}
		}
	}
	return sb.String()
}

// firstSentence truncates a summary to its first sentence, capped at 240
// bytes.
func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(no summary)"
	}
	if i := strings.Index(s, ". "); i >= 0 {
		s = s[:i+1]
	}
	if len(s) > 240 {
		s = s[:240]
	}
	return s
}
