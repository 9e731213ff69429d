package store

// Source is a monitored feed or page. Name and URL are set at seed time and
// immutable thereafter; the remaining columns are fetch bookkeeping.
type Source struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	SourceType    string `json:"source_type"`
	FetchInterval int64  `json:"fetch_interval"` // ms
	Enabled       bool   `json:"enabled"`
	LastFetchedAt *int64 `json:"last_fetched_at,omitempty"`
	LastStatus    string `json:"last_status"`
	LastError     string `json:"last_error"`
	LastETag      string `json:"last_etag,omitempty"`
	LastModified  string `json:"last_modified,omitempty"`
	LastHash      string `json:"last_hash,omitempty"`
	FailCount     int    `json:"fail_count"`
	CreatedAt     int64  `json:"created_at"`
}

// Document is one logical document, keyed by its stable external identifier.
type Document struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	SourceID   int64  `json:"source_id"`
	Title      string `json:"title"`
	CreatedAt  int64  `json:"created_at"`
}

// DocumentVersion is one immutable content snapshot of a document.
type DocumentVersion struct {
	ID          int64  `json:"id"`
	DocumentID  int64  `json:"document_id"`
	ContentHash string `json:"content_hash"`
	Content     string `json:"content"`
	CreatedAt   int64  `json:"created_at"`
}

// ChangeEvent records the transition from the immediately preceding version
// to a new one, carrying the unified diff between the two.
type ChangeEvent struct {
	ID                int64  `json:"id"`
	VersionID         int64  `json:"version_id"`
	PreviousVersionID *int64 `json:"previous_version_id,omitempty"`
	Diff              string `json:"diff"`
	CreatedAt         int64  `json:"created_at"`
}

// ImpactAssessment is a published, gate-approved assessment of one change.
type ImpactAssessment struct {
	ID        int64   `json:"id"`
	VersionID int64   `json:"version_id"`
	Summary   string  `json:"summary"`
	Actions   string  `json:"actions"` // newline-separated ordered list
	Score     float64 `json:"score"`
	CreatedAt int64   `json:"created_at"`
}

// Stats holds aggregate counters for the whole store.
type Stats struct {
	Sources     int `json:"sources"`
	Documents   int `json:"documents"`
	Versions    int `json:"versions"`
	Changes     int `json:"changes"`
	Assessments int `json:"assessments"`
}
