package assess

import "strings"

// publishThreshold is the minimum classifier confidence for publication.
const publishThreshold = 0.7

// Priority weights for scoring. Unknown priorities weigh like "low".
var priorityWeights = map[string]float64{
	"low":    1,
	"medium": 2,
	"high":   3,
}

// ScorePriority computes weight(priority) × confidence. A missing
// classification scores zero.
func ScorePriority(c *Classification) float64 {
	if c == nil {
		return 0
	}
	w, ok := priorityWeights[strings.ToLower(c.Priority)]
	if !ok {
		w = 1
	}
	return w * c.Confidence
}

// GuardCitations reports whether every citation is a literal substring of
// the version text. An empty citation list passes.
func GuardCitations(citations []string, text string) bool {
	for _, c := range citations {
		if !strings.Contains(text, c) {
			return false
		}
	}
	return true
}

// Decide is the quality gate. It publishes only when a change event exists,
// the citation guard passed, and classifier confidence reaches the publish
// threshold; everything else goes to human review.
func Decide(hasEvent, guardPassed bool, confidence float64) Outcome {
	if !hasEvent {
		return OutcomeReview
	}
	if !guardPassed {
		return OutcomeReview
	}
	if confidence < publishThreshold {
		return OutcomeReview
	}
	return OutcomePublished
}
