// Package llm provides the classifier and summarizer service clients used by
// the assessment pipeline. Two implementations exist: OpenAI for real runs
// and Stub for keyless operation and tests. The choice is made once, at
// construction.
package llm

import (
	"context"
	"strings"

	"github.com/hazyhaar/regradar/regradar/internal/assess"
)

// Stub is a deterministic classifier and summarizer for runs without an API
// key. It always returns the pipeline's default classification and a short
// excerpt summary with no citations.
type Stub struct{}

func (Stub) Classify(ctx context.Context, diff string) (*assess.Classification, error) {
	return &assess.Classification{Category: "general", Priority: "medium", Confidence: 0.8}, nil
}

func (Stub) Summarize(ctx context.Context, text string) (*assess.Summary, error) {
	return &assess.Summary{Summary: excerpt(text, 200)}, nil
}

// excerpt returns the first line of text, truncated to max bytes on a rune
// boundary.
func excerpt(text string, max int) string {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if len(line) <= max {
		return line
	}
	cut := line[:max]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut
}
