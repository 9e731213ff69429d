package assess

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/regradar/regradar/internal/store"
	_ "modernc.org/sqlite"
)

type fakeClassifier struct {
	c   *Classification
	err error
}

func (f *fakeClassifier) Classify(ctx context.Context, diff string) (*Classification, error) {
	return f.c, f.err
}

type fakeSummarizer struct {
	s   *Summary
	err error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string) (*Summary, error) {
	return f.s, f.err
}

// slowClassifier blocks until its context is cancelled.
type slowClassifier struct{}

func (slowClassifier) Classify(ctx context.Context, diff string) (*Classification, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.Exec("PRAGMA foreign_keys=ON")
	if err := store.ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.New(db)
}

// seedEvent creates one document with two versions and a change event
// between them. The second version carries the given text.
func seedEvent(t *testing.T, s *store.Store, text string) (*store.ChangeEvent, *store.DocumentVersion) {
	t.Helper()
	ctx := context.Background()

	src := &store.Source{Name: "Test", URL: "https://example.com/feed", Enabled: true}
	if err := s.InsertSource(ctx, src); err != nil {
		t.Fatalf("insert source: %v", err)
	}
	doc, err := s.EnsureDocument(ctx, "https://example.com/doc", src.ID, "Doc")
	if err != nil {
		t.Fatalf("ensure document: %v", err)
	}
	v1 := &store.DocumentVersion{DocumentID: doc.ID, ContentHash: "h1", Content: "old " + text}
	if _, err := s.InsertVersion(ctx, v1); err != nil {
		t.Fatalf("insert v1: %v", err)
	}
	v2 := &store.DocumentVersion{DocumentID: doc.ID, ContentHash: "h2", Content: text}
	if _, err := s.InsertVersion(ctx, v2); err != nil {
		t.Fatalf("insert v2: %v", err)
	}
	ev := &store.ChangeEvent{VersionID: v2.ID, PreviousVersionID: &v1.ID, Diff: "-old\n+new"}
	if err := s.InsertChangeEvent(ctx, ev); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	return ev, v2
}

func countAssessments(t *testing.T, s *store.Store) int {
	t.Helper()
	st, err := s.CountStats(context.Background())
	if err != nil {
		t.Fatalf("count stats: %v", err)
	}
	return st.Assessments
}

func TestRunPublishes(t *testing.T) {
	// WHAT: A confident classification with grounded citations publishes an
	// assessment with score = weight × confidence.
	s := openTestStore(t)
	ev, v := seedEvent(t, s, "The deadline moves to 1 March 2026.")

	r := NewRunner(s,
		&fakeClassifier{c: &Classification{Category: "deadline", Priority: "high", Confidence: 0.9}},
		&fakeSummarizer{s: &Summary{
			Summary:   "Deadline moved.",
			Actions:   []string{"Update compliance calendar"},
			Citations: []string{"deadline moves to 1 March 2026"},
		}},
		time.Second, nil)

	st, err := r.Run(context.Background(), ev, v)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.Outcome != OutcomePublished {
		t.Fatalf("outcome: got %v, want published", st.Outcome)
	}
	if st.Score != 2.7 {
		t.Errorf("score: got %v, want 2.7", st.Score)
	}
	if st.Assessment == nil || st.Assessment.ID == 0 {
		t.Fatal("assessment not persisted")
	}
	got, _ := s.GetAssessment(context.Background(), st.Assessment.ID)
	if got == nil || got.Summary != "Deadline moved." {
		t.Errorf("stored assessment: %+v", got)
	}
	if got.Actions != "Update compliance calendar" {
		t.Errorf("actions: %q", got.Actions)
	}
}

func TestRunFabricatedCitationGoesToReview(t *testing.T) {
	// WHAT: A citation that is not a literal substring of the version text
	// routes the event to review and persists nothing.
	// WHY: An unverifiable summary must never be published.
	s := openTestStore(t)
	ev, v := seedEvent(t, s, "Minor editorial fix.")

	r := NewRunner(s,
		&fakeClassifier{c: &Classification{Category: "general", Priority: "high", Confidence: 0.95}},
		&fakeSummarizer{s: &Summary{
			Summary:   "Major overhaul.",
			Citations: []string{"sweeping new obligations"},
		}},
		time.Second, nil)

	st, err := r.Run(context.Background(), ev, v)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.Outcome != OutcomeReview {
		t.Fatalf("outcome: got %v, want review", st.Outcome)
	}
	if st.GuardPassed {
		t.Error("guard should have failed")
	}
	if n := countAssessments(t, s); n != 0 {
		t.Errorf("assessments persisted: %d", n)
	}
}

func TestRunLowConfidenceGoesToReview(t *testing.T) {
	// WHAT: Confidence below 0.7 routes to review even with a clean guard.
	s := openTestStore(t)
	ev, v := seedEvent(t, s, "Some text.")

	r := NewRunner(s,
		&fakeClassifier{c: &Classification{Category: "general", Priority: "medium", Confidence: 0.5}},
		&fakeSummarizer{s: &Summary{Summary: "ok"}},
		time.Second, nil)

	st, err := r.Run(context.Background(), ev, v)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.Outcome != OutcomeReview {
		t.Fatalf("outcome: got %v, want review", st.Outcome)
	}
	if n := countAssessments(t, s); n != 0 {
		t.Errorf("assessments persisted: %d", n)
	}
}

func TestRunClassifierFailureUsesDefaults(t *testing.T) {
	// WHAT: Classifier errors fall back to {general, medium, 0.8}, which is
	// above threshold, so a clean summary still publishes.
	s := openTestStore(t)
	ev, v := seedEvent(t, s, "Body text here.")

	r := NewRunner(s,
		&fakeClassifier{err: errors.New("service down")},
		&fakeSummarizer{s: &Summary{Summary: "ok", Citations: []string{"Body text"}}},
		time.Second, nil)

	st, err := r.Run(context.Background(), ev, v)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.Classification.Category != "general" || st.Classification.Priority != "medium" || st.Classification.Confidence != 0.8 {
		t.Errorf("defaults: %+v", st.Classification)
	}
	if st.Outcome != OutcomePublished {
		t.Errorf("outcome: got %v, want published", st.Outcome)
	}
	if st.Score != 1.6 {
		t.Errorf("score: got %v, want 1.6", st.Score)
	}
}

func TestRunSummarizerFailureUsesEmptySummary(t *testing.T) {
	// WHAT: Summarizer errors fall back to the empty summary; with no
	// citations the guard passes and a confident classification publishes.
	s := openTestStore(t)
	ev, v := seedEvent(t, s, "Body.")

	r := NewRunner(s,
		&fakeClassifier{c: &Classification{Category: "general", Priority: "low", Confidence: 0.9}},
		&fakeSummarizer{err: errors.New("service down")},
		time.Second, nil)

	st, err := r.Run(context.Background(), ev, v)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.Summary.Summary != "" || len(st.Summary.Actions) != 0 {
		t.Errorf("summary: %+v", st.Summary)
	}
	if st.Outcome != OutcomePublished {
		t.Errorf("outcome: got %v, want published", st.Outcome)
	}
	if got, _ := s.GetAssessment(context.Background(), st.Assessment.ID); got == nil || got.Summary != "" {
		t.Errorf("stored assessment: %+v", got)
	}
}

func TestRunClassifierTimeoutUsesDefaults(t *testing.T) {
	// WHAT: A classifier that never answers counts as a failure once the
	// per-call timeout fires.
	s := openTestStore(t)
	ev, v := seedEvent(t, s, "Body.")

	r := NewRunner(s,
		slowClassifier{},
		&fakeSummarizer{s: &Summary{Summary: "ok"}},
		10*time.Millisecond, nil)

	st, err := r.Run(context.Background(), ev, v)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.Classification.Confidence != 0.8 {
		t.Errorf("expected fallback classification, got %+v", st.Classification)
	}
}

func TestRunNormalizesClassification(t *testing.T) {
	// WHAT: Priority is lowercased and confidence clamped before scoring.
	s := openTestStore(t)
	ev, v := seedEvent(t, s, "Body.")

	r := NewRunner(s,
		&fakeClassifier{c: &Classification{Category: "general", Priority: "HIGH", Confidence: 1.4}},
		&fakeSummarizer{s: &Summary{}},
		time.Second, nil)

	st, err := r.Run(context.Background(), ev, v)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.Classification.Priority != "high" {
		t.Errorf("priority: %q", st.Classification.Priority)
	}
	if st.Classification.Confidence != 1 {
		t.Errorf("confidence clamp: %v", st.Classification.Confidence)
	}
	if st.Score != 3 {
		t.Errorf("score: got %v, want 3", st.Score)
	}
}
