package topics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reusee/dscope"

	"github.com/rlmcore/rlmcore/configs"
)

func writeCueConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.cue")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testRegistry(t *testing.T, path string) Registry {
	t.Helper()
	var registry Registry
	dscope.New(new(Module), dscope.Provide(configs.NewLoader([]string{path}, ""))).Call(func(r Registry) {
		registry = r
	})
	return registry
}

func TestRegistryParsesTopicsBlock(t *testing.T) {
	path := writeCueConfig(t, `
topics: {
	"my-project": {
		doc_type:    "code"
		url_context: "https://github.com/example/my-project"
	}
}
`)
	registry := testRegistry(t, path)
	defaults := registry.Lookup("my-project")
	if defaults.DocType != "code" {
		t.Fatalf("expected doc_type code, got %q", defaults.DocType)
	}
	if defaults.URLContext != "https://github.com/example/my-project" {
		t.Fatalf("unexpected url_context: %q", defaults.URLContext)
	}
}

func TestRegistryLookupAbsentLabelReturnsZeroValue(t *testing.T) {
	path := writeCueConfig(t, `topics: {}`)
	registry := testRegistry(t, path)
	defaults := registry.Lookup("never-configured")
	if defaults != (Defaults{}) {
		t.Fatalf("expected zero value, got %+v", defaults)
	}
}

func TestRegistryNoTopicsBlockIsEmpty(t *testing.T) {
	path := writeCueConfig(t, `unrelated: 1`)
	registry := testRegistry(t, path)
	if len(registry) != 0 {
		t.Fatalf("expected empty registry, got %+v", registry)
	}
}
