// Package assess runs the change-assessment pipeline: classify the diff,
// summarize the new version, verify citations, score, and decide between
// publishing an impact assessment and routing the event to human review.
//
// The gate fails closed: any stage failure degrades toward review, never
// toward an unsupported publication.
package assess

import (
	"context"

	"github.com/hazyhaar/regradar/regradar/internal/store"
)

// Classification is the classifier's verdict on a change diff.
type Classification struct {
	Category   string  `json:"category"`
	Priority   string  `json:"priority"`
	Confidence float64 `json:"confidence"`
}

// Summary is the summarizer's output for a document version.
type Summary struct {
	Summary   string   `json:"summary"`
	Actions   []string `json:"actions"`
	Citations []string `json:"citations"`
}

// Classifier labels a unified diff with category, priority and confidence.
type Classifier interface {
	Classify(ctx context.Context, diff string) (*Classification, error)
}

// Summarizer produces a summary with action items and supporting citations
// from a document version's full text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (*Summary, error)
}

// Outcome is the gate's decision for one change event.
type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeReview    Outcome = "human_review"
)

// State accumulates the pipeline's intermediate results for one change
// event. Each stage fills its own field; nothing is passed through maps.
type State struct {
	Event          *store.ChangeEvent
	Version        *store.DocumentVersion
	Classification *Classification
	Summary        *Summary
	GuardPassed    bool
	Score          float64
	Outcome        Outcome
	Assessment     *store.ImpactAssessment
}
