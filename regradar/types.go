// Package regradar monitors regulatory and news sources for changes. It
// versions every observed document by content hash, diffs new versions
// against their predecessors, and runs each change through a quality-gated
// assessment pipeline that either publishes an impact assessment or routes
// the change to human review.
package regradar

import (
	"github.com/hazyhaar/regradar/regradar/internal/store"
)

// Re-export store types for the public API.
type (
	Source           = store.Source
	Document         = store.Document
	DocumentVersion  = store.DocumentVersion
	ChangeEvent      = store.ChangeEvent
	ImpactAssessment = store.ImpactAssessment
	ChangeFilter     = store.ChangeFilter
	ChangeRecord     = store.ChangeRecord
	Stats            = store.Stats
)

// RunReport summarizes one pipeline run.
type RunReport struct {
	Sources     int `json:"sources"`      // sources processed
	Fetched     int `json:"fetched"`      // documents fetched and extracted
	NewVersions int `json:"new_versions"` // versions stored
	Events      int `json:"events"`       // change events produced
	Published   int `json:"published"`    // assessments published
	Review      int `json:"review"`       // events routed to human review
	Errors      int `json:"errors"`       // per-source or per-document failures
}
