package rlmconfig

import (
	"github.com/reusee/dscope"

	"github.com/rlmcore/rlmcore/configs"
	"github.com/rlmcore/rlmcore/logs"
)

// Module provides BaseURL/APIKey/PrimaryModel/SubModel and EngineParams,
// overriding llmclient.Module's default providers. It must be supplied
// to dscope.New after llmclient.Module (and any other base module) so its
// providers win the override, the same "later scope wins" convention the
// production/test mode modules rely on.
type Module struct {
	dscope.Module
	Configs configs.Module
	Logs    logs.Module
}
