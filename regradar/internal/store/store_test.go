package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.Exec("PRAGMA foreign_keys=ON")
	if err := ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedSource(t *testing.T, s *Store) *Source {
	t.Helper()
	src := &Source{Name: "Test Source", URL: "https://example.com/feed.xml", Enabled: true}
	if err := s.InsertSource(context.Background(), src); err != nil {
		t.Fatalf("insert source: %v", err)
	}
	return src
}

func TestApplySchema(t *testing.T) {
	// WHAT: Verify schema creates all five entity tables.
	// WHY: Schema is the foundation — if it fails, nothing works.
	db := openTestDB(t)
	for _, table := range []string{"sources", "documents", "document_versions", "change_events", "impact_assessments"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestInsertSourceRejectsDuplicateURL(t *testing.T) {
	// WHAT: A second source with the same URL fails on the UNIQUE constraint.
	// WHY: Source identity is its URL; duplicates would double-fetch.
	db := openTestDB(t)
	s := New(db)
	ctx := context.Background()

	seedSource(t, s)
	err := s.InsertSource(ctx, &Source{Name: "Dup", URL: "https://example.com/feed.xml"})
	if err == nil {
		t.Fatal("expected unique constraint violation, got nil")
	}
}

func TestSeedSourcesIsIdempotent(t *testing.T) {
	// WHAT: Seeding twice leaves exactly one row per URL.
	db := openTestDB(t)
	s := New(db)
	ctx := context.Background()

	seeds := []*Source{
		{Name: "EUR-Lex", URL: "https://eur-lex.europa.eu/rss/fr/daily-rss.xml"},
		{Name: "W3C News", URL: "https://www.w3.org/blog/news/feed/"},
	}
	if err := s.SeedSources(ctx, seeds); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if err := s.SeedSources(ctx, seeds); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	sources, err := s.ListSources(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sources) != 2 {
		t.Errorf("sources: got %d, want 2", len(sources))
	}
}

func TestDueSources(t *testing.T) {
	// WHAT: DueSources returns never-fetched and overdue sources, skips
	// recently fetched, disabled, and repeatedly failing ones.
	db := openTestDB(t)
	s := New(db)
	ctx := context.Background()

	now := time.Now().UnixMilli()
	longAgo := now - 2*3600000

	never := &Source{Name: "never", URL: "https://a.example/f", Enabled: true}
	s.InsertSource(ctx, never)

	overdue := &Source{Name: "overdue", URL: "https://b.example/f", Enabled: true, LastFetchedAt: &longAgo}
	s.InsertSource(ctx, overdue)

	fresh := &Source{Name: "fresh", URL: "https://c.example/f", Enabled: true, LastFetchedAt: &now}
	s.InsertSource(ctx, fresh)

	disabled := &Source{Name: "disabled", URL: "https://d.example/f", Enabled: false, LastFetchedAt: &longAgo}
	s.InsertSource(ctx, disabled)

	failing := &Source{Name: "failing", URL: "https://e.example/f", Enabled: true, LastFetchedAt: &longAgo, FailCount: 10}
	s.InsertSource(ctx, failing)

	due, err := s.DueSources(ctx, 10)
	if err != nil {
		t.Fatalf("due sources: %v", err)
	}
	names := map[string]bool{}
	for _, src := range due {
		names[src.Name] = true
	}
	if !names["never"] || !names["overdue"] {
		t.Errorf("expected never+overdue due, got %v", names)
	}
	if names["fresh"] || names["disabled"] || names["failing"] {
		t.Errorf("unexpected due sources: %v", names)
	}
}

func TestRecordFetchError(t *testing.T) {
	db := openTestDB(t)
	s := New(db)
	ctx := context.Background()
	src := seedSource(t, s)

	s.RecordFetchError(ctx, src.ID, "timeout")
	s.RecordFetchError(ctx, src.ID, "timeout")

	got, _ := s.GetSource(ctx, src.ID)
	if got.FailCount != 2 {
		t.Errorf("fail_count: got %d, want 2", got.FailCount)
	}
	if got.LastStatus != "error" {
		t.Errorf("last_status: got %q, want error", got.LastStatus)
	}

	s.RecordFetchSuccess(ctx, src.ID, `"v2"`, "Mon, 02 Feb 2026 10:00:00 GMT", "abc123")
	got, _ = s.GetSource(ctx, src.ID)
	if got.FailCount != 0 {
		t.Errorf("fail_count after success: got %d, want 0", got.FailCount)
	}
	if got.LastETag != `"v2"` || got.LastHash != "abc123" {
		t.Errorf("validators: etag %q, hash %q", got.LastETag, got.LastHash)
	}
}

func TestEnsureDocumentIsIdempotent(t *testing.T) {
	// WHAT: Two EnsureDocument calls with the same external_id return the
	// same row.
	// WHY: First-sighting creation must survive crash retries and races
	// without violating external_id uniqueness.
	db := openTestDB(t)
	s := New(db)
	ctx := context.Background()
	src := seedSource(t, s)

	d1, err := s.EnsureDocument(ctx, "https://example.com/doc1", src.ID, "Doc One")
	if err != nil {
		t.Fatalf("ensure #1: %v", err)
	}
	d2, err := s.EnsureDocument(ctx, "https://example.com/doc1", src.ID, "Doc One")
	if err != nil {
		t.Fatalf("ensure #2: %v", err)
	}
	if d1.ID != d2.ID {
		t.Errorf("document ids differ: %d vs %d", d1.ID, d2.ID)
	}

	var n int
	db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n)
	if n != 1 {
		t.Errorf("documents: got %d, want 1", n)
	}
}

func TestInsertVersionDedup(t *testing.T) {
	// WHAT: The same (document, hash) pair is stored exactly once; the
	// second insert reports created=false.
	// WHY: Content-addressed dedup is the core idempotence guarantee.
	db := openTestDB(t)
	s := New(db)
	ctx := context.Background()
	src := seedSource(t, s)
	doc, _ := s.EnsureDocument(ctx, "https://example.com/doc1", src.ID, "")

	v1 := &DocumentVersion{DocumentID: doc.ID, ContentHash: "abc", Content: "hello"}
	created, err := s.InsertVersion(ctx, v1)
	if err != nil {
		t.Fatalf("insert #1: %v", err)
	}
	if !created {
		t.Fatal("first insert should create")
	}

	v2 := &DocumentVersion{DocumentID: doc.ID, ContentHash: "abc", Content: "hello"}
	created, err = s.InsertVersion(ctx, v2)
	if err != nil {
		t.Fatalf("insert #2: %v", err)
	}
	if created {
		t.Error("duplicate insert should not create")
	}

	var n int
	db.QueryRow(`SELECT COUNT(*) FROM document_versions`).Scan(&n)
	if n != 1 {
		t.Errorf("versions: got %d, want 1", n)
	}
}

func TestSameHashDifferentDocuments(t *testing.T) {
	// WHAT: Two documents may carry the same content hash.
	// WHY: The dedup key is (document_id, hash), not the hash alone —
	// distinct documents with identical boilerplate must both version.
	db := openTestDB(t)
	s := New(db)
	ctx := context.Background()
	src := seedSource(t, s)
	docA, _ := s.EnsureDocument(ctx, "https://example.com/a", src.ID, "")
	docB, _ := s.EnsureDocument(ctx, "https://example.com/b", src.ID, "")

	for _, docID := range []int64{docA.ID, docB.ID} {
		created, err := s.InsertVersion(ctx, &DocumentVersion{DocumentID: docID, ContentHash: "same", Content: "x"})
		if err != nil || !created {
			t.Fatalf("insert for doc %d: created=%v err=%v", docID, created, err)
		}
	}
}

func TestPreviousVersion(t *testing.T) {
	// WHAT: PreviousVersion returns the immediately preceding version, not
	// an arbitrary earlier one, and nil for the first.
	db := openTestDB(t)
	s := New(db)
	ctx := context.Background()
	src := seedSource(t, s)
	doc, _ := s.EnsureDocument(ctx, "https://example.com/doc1", src.ID, "")

	var ids []int64
	for _, c := range []string{"v1", "v2", "v3"} {
		v := &DocumentVersion{DocumentID: doc.ID, ContentHash: c, Content: c}
		if _, err := s.InsertVersion(ctx, v); err != nil {
			t.Fatalf("insert %s: %v", c, err)
		}
		ids = append(ids, v.ID)
	}

	prev, err := s.PreviousVersion(ctx, doc.ID, ids[2])
	if err != nil {
		t.Fatalf("previous: %v", err)
	}
	if prev == nil || prev.ID != ids[1] {
		t.Errorf("previous of v3: got %+v, want id %d", prev, ids[1])
	}

	first, err := s.PreviousVersion(ctx, doc.ID, ids[0])
	if err != nil {
		t.Fatalf("previous of first: %v", err)
	}
	if first != nil {
		t.Errorf("first version should have no predecessor, got %+v", first)
	}
}

func TestChangeEventRoundTrip(t *testing.T) {
	db := openTestDB(t)
	s := New(db)
	ctx := context.Background()
	src := seedSource(t, s)
	doc, _ := s.EnsureDocument(ctx, "https://example.com/doc1", src.ID, "")

	v1 := &DocumentVersion{DocumentID: doc.ID, ContentHash: "h1", Content: "old"}
	s.InsertVersion(ctx, v1)
	v2 := &DocumentVersion{DocumentID: doc.ID, ContentHash: "h2", Content: "new"}
	s.InsertVersion(ctx, v2)

	ev := &ChangeEvent{VersionID: v2.ID, PreviousVersionID: &v1.ID, Diff: "-old\n+new"}
	if err := s.InsertChangeEvent(ctx, ev); err != nil {
		t.Fatalf("insert event: %v", err)
	}

	got, err := s.GetChangeEventByVersion(ctx, v2.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got == nil || got.Diff != "-old\n+new" {
		t.Errorf("event: got %+v", got)
	}
	if got.PreviousVersionID == nil || *got.PreviousVersionID != v1.ID {
		t.Errorf("previous_version_id: got %v, want %d", got.PreviousVersionID, v1.ID)
	}

	none, _ := s.GetChangeEventByVersion(ctx, v1.ID)
	if none != nil {
		t.Errorf("v1 should have no event, got %+v", none)
	}
}

func TestCountStats(t *testing.T) {
	db := openTestDB(t)
	s := New(db)
	ctx := context.Background()
	src := seedSource(t, s)
	doc, _ := s.EnsureDocument(ctx, "https://example.com/doc1", src.ID, "")
	v := &DocumentVersion{DocumentID: doc.ID, ContentHash: "h", Content: "c"}
	s.InsertVersion(ctx, v)

	st, err := s.CountStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Sources != 1 || st.Documents != 1 || st.Versions != 1 {
		t.Errorf("stats: got %+v", st)
	}
}
