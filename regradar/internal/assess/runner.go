package assess

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/regradar/regradar/internal/store"
)

// defaultClassification is used when the classifier fails or times out.
func defaultClassification() *Classification {
	return &Classification{Category: "general", Priority: "medium", Confidence: 0.8}
}

// Runner executes the assessment pipeline for change events.
type Runner struct {
	store      *store.Store
	classifier Classifier
	summarizer Summarizer
	timeout    time.Duration
	logger     *slog.Logger
}

// NewRunner creates a Runner. timeout bounds each external service call;
// zero means 30 seconds.
func NewRunner(s *store.Store, c Classifier, sum Summarizer, timeout time.Duration, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: s, classifier: c, summarizer: sum, timeout: timeout, logger: logger}
}

// Run assesses one change event against its version and either publishes an
// impact assessment or routes the event to human review. Service failures
// degrade to defaults and the gate decides; only storage errors propagate.
func (r *Runner) Run(ctx context.Context, event *store.ChangeEvent, version *store.DocumentVersion) (*State, error) {
	st := &State{Event: event, Version: version}

	st.Classification = r.classify(ctx, event)
	st.Summary = r.summarize(ctx, version)
	st.GuardPassed = GuardCitations(st.Summary.Citations, version.Content)
	st.Score = ScorePriority(st.Classification)
	st.Outcome = Decide(event != nil, st.GuardPassed, st.Classification.Confidence)

	switch st.Outcome {
	case OutcomePublished:
		if err := r.publish(ctx, st); err != nil {
			return st, err
		}
	case OutcomeReview:
		r.humanReview(st)
	}
	return st, nil
}

// classify labels the event's diff, falling back to defaults on any failure.
func (r *Runner) classify(ctx context.Context, event *store.ChangeEvent) *Classification {
	if event == nil || r.classifier == nil {
		return defaultClassification()
	}
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	c, err := r.classifier.Classify(cctx, event.Diff)
	if err != nil || c == nil {
		r.logger.Warn("assess: classification failed, using defaults",
			"version_id", event.VersionID, "error", err)
		return defaultClassification()
	}
	return normalizeClassification(c)
}

// summarize produces the version's summary, falling back to an empty one on
// any failure.
func (r *Runner) summarize(ctx context.Context, version *store.DocumentVersion) *Summary {
	if r.summarizer == nil {
		return &Summary{}
	}
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	s, err := r.summarizer.Summarize(cctx, version.Content)
	if err != nil || s == nil {
		r.logger.Warn("assess: summarization failed, using empty summary",
			"version_id", version.ID, "error", err)
		return &Summary{}
	}
	return s
}

// publish persists the assessment for the event's version.
func (r *Runner) publish(ctx context.Context, st *State) error {
	a := &store.ImpactAssessment{
		VersionID: st.Event.VersionID,
		Summary:   st.Summary.Summary,
		Actions:   strings.Join(st.Summary.Actions, "\n"),
		Score:     st.Score,
	}
	if err := r.store.InsertAssessment(ctx, a); err != nil {
		return fmt.Errorf("publish assessment: %w", err)
	}
	st.Assessment = a

	r.logger.Info("assess: published",
		"version_id", st.Event.VersionID,
		"category", st.Classification.Category,
		"priority", st.Classification.Priority,
		"score", st.Score)
	return nil
}

// humanReview surfaces the event without persisting anything.
func (r *Runner) humanReview(st *State) {
	var versionID int64
	if st.Event != nil {
		versionID = st.Event.VersionID
	}
	r.logger.Warn("assess: routed to human review",
		"version_id", versionID,
		"guard_passed", st.GuardPassed,
		"confidence", st.Classification.Confidence)
}

// normalizeClassification clamps confidence to [0,1] and lowercases the
// priority. Unknown priorities pass through; ScorePriority weighs them
// like "low".
func normalizeClassification(c *Classification) *Classification {
	out := *c
	out.Priority = strings.ToLower(strings.TrimSpace(out.Priority))
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	if strings.TrimSpace(out.Category) == "" {
		out.Category = "general"
	}
	return &out
}
