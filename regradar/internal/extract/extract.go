// Package extract turns fetched source bytes into a title and normalized
// plain text ready for fingerprinting. HTML is sanitized and converted to
// markdown so the stored text diffs line by line; PDFs go through content
// stream parsing; everything else passes through as text.
package extract

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Kind is the detected content kind of a fetched document.
type Kind string

const (
	KindHTML Kind = "html"
	KindPDF  Kind = "pdf"
	KindText Kind = "text"
)

// DetectKind infers the content kind from the response Content-Type header,
// falling back to the URL's extension.
func DetectKind(url, contentType string) Kind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "text/html"), strings.Contains(ct, "application/xhtml"):
		return KindHTML
	case strings.Contains(ct, "application/pdf"):
		return KindPDF
	case strings.Contains(ct, "text/plain"):
		return KindText
	}
	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return KindPDF
	case strings.HasSuffix(lower, ".txt"), strings.HasSuffix(lower, ".md"):
		return KindText
	}
	return KindHTML
}

// Result is the extracted document content.
type Result struct {
	Title string
	Text  string
}

// Extractor converts raw document bytes into Results.
type Extractor struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Extract dispatches on kind. A non-nil error always comes with an empty
// Result; callers skip the document rather than fail the run.
func (e *Extractor) Extract(raw []byte, kind Kind) (Result, error) {
	switch kind {
	case KindPDF:
		return e.extractPDF(raw)
	case KindText:
		text := normalizeText(string(raw))
		return Result{Title: firstLine(text), Text: text}, nil
	default:
		return e.extractHTML(raw)
	}
}

// normalizeText trims trailing whitespace per line and collapses runs of
// blank lines, preserving line structure for the line-based differ.
func normalizeText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var out []string
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// firstLine returns the first non-empty line, capped at 200 bytes.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 200 {
			line = line[:200]
		}
		return line
	}
	return ""
}
