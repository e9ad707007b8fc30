// Package topics resolves a topic label to its operator-configured
// defaults: which doc_type new ingests into that label should assume, and
// what url_context to synthesize when a caller doesn't supply one.
package topics

import (
	"github.com/reusee/dscope"

	"github.com/rlmcore/rlmcore/configs"
)

type Module struct {
	dscope.Module
	Configs configs.Module
}

type Defaults struct {
	DocType    string
	URLContext string
}

// Registry maps a topic label to its Defaults. Absent labels return the
// zero value, which callers treat as "no override" rather than an error:
// topics are created implicitly by the first ingest under a label.
type Registry map[string]Defaults

func (Module) Registry(loader configs.Loader) Registry {
	registry := make(Registry)
	for value, err := range loader.IterCueValues("topics") {
		if err != nil {
			continue
		}
		var raw map[string]struct {
			DocType    string `json:"doc_type"`
			URLContext string `json:"url_context"`
		}
		if err := value.Decode(&raw); err != nil {
			continue
		}
		for label, v := range raw {
			registry[label] = Defaults{DocType: v.DocType, URLContext: v.URLContext}
		}
	}
	return registry
}

func (r Registry) Lookup(label string) Defaults {
	return r[label]
}
