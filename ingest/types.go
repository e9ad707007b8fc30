package ingest

import "github.com/rlmcore/rlmcore/docstore"

// Request is the typed call the chat front-end's "/ingest" command is
// translated into: Ingest(url, label, ...).
type Request struct {
	URL        string
	Label      string
	DocType    docstore.DocType
	Branch     string // default "main"
	URLContext string // optional; synthesized for repo ingests when empty
}

// Result summarizes one ingest call.
type Result struct {
	DocIDs   []string
	Warnings []string // one per file skipped with a recorded warning
}

// rawFile is a (path, bytes) pair as produced by a source fetcher, before
// it becomes a Document.
type rawFile struct {
	path    string
	content []byte
}
