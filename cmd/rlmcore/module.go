package main

import (
	"github.com/reusee/dscope"

	"github.com/rlmcore/rlmcore/debugs"
	"github.com/rlmcore/rlmcore/ingest"
	"github.com/rlmcore/rlmcore/rlm"
	"github.com/rlmcore/rlmcore/topics"
)

// Module is the composition root. rlm.Module already sequences
// llmclient.Module before rlmconfig.Module internally so the env/cue
// backed providers win; ingest.Module and topics.Module contribute the
// remaining document-side dependencies.
type Module struct {
	dscope.Module
	Rlm    rlm.Module
	Ingest ingest.Module
	Topics topics.Module
	Debugs debugs.Module
}
