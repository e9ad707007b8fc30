package rlm

import (
	"github.com/reusee/dscope"

	"github.com/rlmcore/rlmcore/docstore"
	"github.com/rlmcore/rlmcore/llmclient"
	"github.com/rlmcore/rlmcore/logs"
	"github.com/rlmcore/rlmcore/rlmconfig"
)

// Module provides Engine. Its Rlmconfig field comes after its Llmclient
// field so rlmconfig.Module's env/cue-backed providers override
// llmclient.Module's default providers for BaseURL, APIKey, PrimaryModel
// and SubModel.
type Module struct {
	dscope.Module
	Docstore  docstore.Module
	Llmclient llmclient.Module
	Rlmconfig rlmconfig.Module
	Logs      logs.Module
}
