package ingest

import (
	"github.com/reusee/dscope"

	"github.com/rlmcore/rlmcore/blobs"
	"github.com/rlmcore/rlmcore/docstore"
	"github.com/rlmcore/rlmcore/logs"
	"github.com/rlmcore/rlmcore/nets"
)

// Module wires the Ingestor: a GitHub tree fetcher and a generic web
// fetcher feeding a shared blob/document pipeline.
type Module struct {
	dscope.Module
	Blobs    blobs.Module
	Docstore docstore.Module
	Nets     nets.Module
	Logs     logs.Module
}
