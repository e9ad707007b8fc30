package nets

import (
	"github.com/reusee/dscope"
	"github.com/rlmcore/rlmcore/configs"
	"github.com/rlmcore/rlmcore/logs"
)

type Module struct {
	dscope.Module
	Configs configs.Module
	Logs    logs.Module
}
