package sandbox

import (
	"strings"
	"testing"
	"time"

	"github.com/rlmcore/rlmcore/rlmerrors"
)

func testPrimitives() Primitives {
	return Primitives{
		ListDocuments: func() []DocSummary {
			return []DocSummary{{DocID: "d1", Path: "README.md", Label: "demo", SourceURL: "https://x"}}
		},
		GetSection: func(docID string, ordinal int) (string, error) {
			if docID == "d1" && ordinal == 1 {
				return "Providers need 8GB RAM.", nil
			}
			return "", rlmerrors.NotFound{Kind: "excerpt", Key: docID}
		},
		SearchDocument: func(docID, needle string) ([]SearchHit, error) {
			if strings.Contains(needle, "RAM") {
				return []SearchHit{{Ordinal: 1, Snippet: "Providers need 8GB RAM."}}, nil
			}
			return nil, nil
		},
		LlmQuery: func(prompt string) (string, error) {
			return "summary of: " + prompt, nil
		},
	}
}

func TestRunListDocuments(t *testing.T) {
	result := Run(t.Context(), `
docs = list_documents()
print(docs[0]["doc_id"])
`, testPrimitives(), time.Second)
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if !strings.Contains(result.Stdout, "d1") {
		t.Fatalf("got %q", result.Stdout)
	}
}

func TestRunGetSection(t *testing.T) {
	result := Run(t.Context(), `print(get_section("d1", 1))`, testPrimitives(), time.Second)
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if !strings.Contains(result.Stdout, "8GB") {
		t.Fatalf("got %q", result.Stdout)
	}
}

func TestRunImportDenied(t *testing.T) {
	result := Run(t.Context(), `load("os.star", "os")`, testPrimitives(), time.Second)
	if result.Err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(result.Err.Error(), "import denied") {
		t.Fatalf("got %v", result.Err)
	}
}

func TestRunUndefinedNameDenied(t *testing.T) {
	result := Run(t.Context(), `eval("1+1")`, testPrimitives(), time.Second)
	if result.Err == nil {
		t.Fatal("expected error")
	}
}

func TestRunDeadline(t *testing.T) {
	result := Run(t.Context(), `
for i in range(10000000000):
    pass
`, testPrimitives(), 50*time.Millisecond)
	if result.Err == nil {
		t.Fatal("expected deadline error")
	}
}

func TestRunStdoutTruncation(t *testing.T) {
	result := Run(t.Context(), `
for i in range(5000):
    print("x" * 100)
`, testPrimitives(), 5*time.Second)
	if len(result.Stdout) > maxStdout+64 {
		t.Fatalf("stdout not capped, got %d bytes", len(result.Stdout))
	}
	if !strings.Contains(result.Stdout, "truncated") {
		t.Fatalf("expected truncation marker, got %q", result.Stdout[len(result.Stdout)-50:])
	}
}
