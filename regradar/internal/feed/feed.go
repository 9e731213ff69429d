// Package feed parses RSS 2.0 and Atom 1.0 feeds with encoding/xml, detecting
// the format from the XML root element.
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// Entry is one feed item, normalized across formats. ID falls back to the
// link when the feed carries no guid, so every entry has a stable external
// identifier.
type Entry struct {
	ID        string
	Title     string
	Link      string
	Summary   string
	Content   string
	Published time.Time // zero when the feed gives no parseable date
}

// Text returns the entry's best body: full content when present, summary
// otherwise.
func (e *Entry) Text() string {
	if e.Content != "" {
		return e.Content
	}
	return e.Summary
}

// Feed is a parsed feed of either format.
type Feed struct {
	Title   string
	Link    string
	Entries []Entry
}

// Parse detects and parses RSS 2.0 or Atom 1.0 XML.
func Parse(data []byte) (*Feed, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("feed: empty data")
	}
	switch rootElement(trimmed) {
	case "rss", "rdf":
		return parseRSS(trimmed)
	case "feed":
		return parseAtom(trimmed)
	default:
		return nil, fmt.Errorf("feed: unknown format (expected <rss> or <feed>)")
	}
}

// rootElement returns the lowercased name of the document's first element.
func rootElement(data []byte) string {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			return strings.ToLower(se.Name.Local)
		}
	}
}

// dateLayouts covers the formats seen in real-world feeds, most common
// first.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02",
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type rssRoot struct {
	Channel struct {
		Title string `xml:"title"`
		Link  string `xml:"link"`
		Items []struct {
			GUID        string `xml:"guid"`
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			Encoded     string `xml:"encoded"` // content:encoded
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

func parseRSS(data []byte) (*Feed, error) {
	var root rssRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("feed: parse rss: %w", err)
	}

	f := &Feed{
		Title:   strings.TrimSpace(root.Channel.Title),
		Link:    strings.TrimSpace(root.Channel.Link),
		Entries: make([]Entry, 0, len(root.Channel.Items)),
	}
	for _, it := range root.Channel.Items {
		id := strings.TrimSpace(it.GUID)
		link := strings.TrimSpace(it.Link)
		if id == "" {
			id = link
		}
		f.Entries = append(f.Entries, Entry{
			ID:        id,
			Title:     strings.TrimSpace(it.Title),
			Link:      link,
			Summary:   strings.TrimSpace(it.Description),
			Content:   strings.TrimSpace(it.Encoded),
			Published: parseDate(it.PubDate),
		})
	}
	return f, nil
}

type atomRoot struct {
	Title   string     `xml:"title"`
	Links   []atomLink `xml:"link"`
	Entries []struct {
		ID      string     `xml:"id"`
		Title   string     `xml:"title"`
		Links   []atomLink `xml:"link"`
		Summary string     `xml:"summary"`
		Content struct {
			Body string `xml:",chardata"`
		} `xml:"content"`
		Published string `xml:"published"`
		Updated   string `xml:"updated"`
	} `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// pickLink prefers rel="alternate" (or no rel), falling back to the first
// link present.
func pickLink(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

func parseAtom(data []byte) (*Feed, error) {
	var root atomRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("feed: parse atom: %w", err)
	}

	f := &Feed{
		Title:   strings.TrimSpace(root.Title),
		Link:    pickLink(root.Links),
		Entries: make([]Entry, 0, len(root.Entries)),
	}
	for _, en := range root.Entries {
		link := pickLink(en.Links)
		id := strings.TrimSpace(en.ID)
		if id == "" {
			id = link
		}
		published := en.Published
		if strings.TrimSpace(published) == "" {
			published = en.Updated
		}
		f.Entries = append(f.Entries, Entry{
			ID:        id,
			Title:     strings.TrimSpace(en.Title),
			Link:      link,
			Summary:   strings.TrimSpace(en.Summary),
			Content:   strings.TrimSpace(en.Content.Body),
			Published: parseDate(published),
		})
	}
	return f, nil
}
