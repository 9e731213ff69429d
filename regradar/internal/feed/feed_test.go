package feed

import (
	"testing"
	"time"
)

const rssSample = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Regulatory Updates</title>
  <link>https://example.com/updates</link>
  <item>
    <guid>urn:update:1</guid>
    <title>Directive amended</title>
    <link>https://example.com/updates/1</link>
    <description>Short summary.</description>
    <content:encoded><![CDATA[<p>Full body.</p>]]></content:encoded>
    <pubDate>Mon, 02 Feb 2026 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title>No guid item</title>
    <link>https://example.com/updates/2</link>
    <description>Only a summary.</description>
  </item>
</channel>
</rss>`

const atomSample = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>W3C News</title>
  <link rel="self" href="https://example.org/feed.atom"/>
  <link rel="alternate" href="https://example.org/news"/>
  <entry>
    <id>tag:example.org,2026:entry-1</id>
    <title>Spec published</title>
    <link href="https://example.org/news/1"/>
    <summary>A new spec.</summary>
    <content type="html">Long form content.</content>
    <updated>2026-02-03T09:30:00Z</updated>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	f, err := Parse([]byte(rssSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Title != "Regulatory Updates" || len(f.Entries) != 2 {
		t.Fatalf("feed: %q, %d entries", f.Title, len(f.Entries))
	}

	e := f.Entries[0]
	if e.ID != "urn:update:1" || e.Title != "Directive amended" {
		t.Errorf("entry: %+v", e)
	}
	if e.Text() != "<p>Full body.</p>" {
		t.Errorf("text should prefer content:encoded, got %q", e.Text())
	}
	want := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	if !e.Published.Equal(want) {
		t.Errorf("published: %v", e.Published)
	}
}

func TestParseRSSGUIDFallsBackToLink(t *testing.T) {
	// WHAT: Entries without a guid use the link as their stable ID.
	// WHY: The versioner keys documents by external ID; it must never be
	// empty.
	f, err := Parse([]byte(rssSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	e := f.Entries[1]
	if e.ID != "https://example.com/updates/2" {
		t.Errorf("id: %q", e.ID)
	}
	if e.Text() != "Only a summary." {
		t.Errorf("text should fall back to description, got %q", e.Text())
	}
	if !e.Published.IsZero() {
		t.Errorf("missing date should stay zero, got %v", e.Published)
	}
}

func TestParseAtom(t *testing.T) {
	f, err := Parse([]byte(atomSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Title != "W3C News" {
		t.Errorf("title: %q", f.Title)
	}
	if f.Link != "https://example.org/news" {
		t.Errorf("link should prefer rel=alternate, got %q", f.Link)
	}
	if len(f.Entries) != 1 {
		t.Fatalf("entries: %d", len(f.Entries))
	}

	e := f.Entries[0]
	if e.ID != "tag:example.org,2026:entry-1" || e.Link != "https://example.org/news/1" {
		t.Errorf("entry: %+v", e)
	}
	// No <published>; <updated> stands in.
	want := time.Date(2026, 2, 3, 9, 30, 0, 0, time.UTC)
	if !e.Published.Equal(want) {
		t.Errorf("published: %v", e.Published)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, data := range []string{"", "   ", "<html><body>nope</body></html>", "not xml at all"} {
		if _, err := Parse([]byte(data)); err == nil {
			t.Errorf("Parse(%q) should fail", data)
		}
	}
}

func TestParseDateLayouts(t *testing.T) {
	cases := []string{
		"Mon, 02 Feb 2026 10:00:00 +0000",
		"Mon, 02 Feb 2026 10:00:00 GMT",
		"2026-02-02T10:00:00Z",
		"2026-02-02T10:00:00+00:00",
	}
	for _, s := range cases {
		if parseDate(s).IsZero() {
			t.Errorf("parseDate(%q) failed", s)
		}
	}
	if !parseDate("last tuesday").IsZero() {
		t.Error("nonsense date should parse to zero")
	}
}
