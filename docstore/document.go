// Package docstore implements the DocumentStore: the topic→document index
// holding per-document metadata, excerpts, and Q/A records over the
// ContentStore.
package docstore

import "time"

// DocType is a filter hint recorded at ingest time.
type DocType string

const (
	DocTypeDocumentation DocType = "documentation"
	DocTypeCode          DocType = "code"
	DocTypeMinimal       DocType = "minimal"
	DocTypeWeb           DocType = "web"
)

// Document is an immutable record. DocID is stable for a given
// (Label, SourceURL, Path) triple: re-ingesting the same triple supersedes
// the prior row under that same DocID rather than minting a new one.
type Document struct {
	DocID       string
	Label       string
	SourceURL   string
	Path        string
	ContentHash string
	DocType     DocType
	URLContext  string
	CreatedAt   time.Time
}

// Excerpt is a non-overlapping span of a Document's content. Ordinal is
// 1-based. Excerpts for a document tile its content without gaps or
// overlaps: Excerpts[i].EndOffset == Excerpts[i+1].StartOffset.
type Excerpt struct {
	Ordinal     int
	HeadingPath string
	StartOffset int
	EndOffset   int
	Text        string
}

// QaRecord is a persisted, append-only record of an answered question.
type QaRecord struct {
	ID              int64
	Topic           string
	Question        string
	Answer          string
	CitedURLs       []string
	Iterations      int
	ScriptCalls     int
	Truncated       bool
	CandidateHashes []string // non-empty only when parallel_loops > 1
	Timestamp       time.Time
}

// SearchHit is one match returned by Store.Search.
type SearchHit struct {
	Ordinal int
	Snippet string
}

// DocSummary is the shape list_by_label() exposes. The sandbox's
// list_documents() exposes the same fields except URLContext.
type DocSummary struct {
	DocID      string
	Path       string
	Label      string
	SourceURL  string
	URLContext string
}
