package ingest

import (
	"strings"
	"testing"

	"github.com/rlmcore/rlmcore/docstore"
)

func TestComputeExcerptsDocumentationSplitsOnHeadings(t *testing.T) {
	content := []byte("# Title\n\nintro text\n\n## Setup\n\nrun it\n\n## Usage\n\nuse it\n")
	excerpts := computeExcerpts(docstore.DocTypeDocumentation, content)
	if len(excerpts) != 3 {
		t.Fatalf("expected 3 excerpts, got %d: %+v", len(excerpts), excerpts)
	}
	if excerpts[0].HeadingPath != "Title" {
		t.Fatalf("expected first heading path Title, got %q", excerpts[0].HeadingPath)
	}
	if excerpts[1].HeadingPath != "Title / Setup" {
		t.Fatalf("expected nested heading path, got %q", excerpts[1].HeadingPath)
	}
	if excerpts[2].HeadingPath != "Title / Usage" {
		t.Fatalf("expected sibling heading path, got %q", excerpts[2].HeadingPath)
	}

	var rebuilt strings.Builder
	for _, e := range excerpts {
		rebuilt.WriteString(e.Text)
	}
	if rebuilt.String() != string(content) {
		t.Fatal("excerpts must tile the document exactly with no gaps or overlaps")
	}
}

func TestComputeExcerptsDocumentationPreamble(t *testing.T) {
	content := []byte("some preamble text\n\n# First Heading\n\nbody\n")
	excerpts := computeExcerpts(docstore.DocTypeDocumentation, content)
	if len(excerpts) != 2 {
		t.Fatalf("expected preamble plus one heading excerpt, got %d", len(excerpts))
	}
	if excerpts[0].HeadingPath != "" {
		t.Fatalf("expected empty heading path for preamble, got %q", excerpts[0].HeadingPath)
	}
	if !strings.Contains(excerpts[0].Text, "preamble") {
		t.Fatalf("expected preamble text, got %q", excerpts[0].Text)
	}
}

func TestComputeExcerptsCodeIsWholeFile(t *testing.T) {
	content := []byte("package main\n\nfunc main() {}\n")
	excerpts := computeExcerpts(docstore.DocTypeCode, content)
	if len(excerpts) != 1 {
		t.Fatalf("expected 1 excerpt for code, got %d", len(excerpts))
	}
	if excerpts[0].Text != string(content) {
		t.Fatal("code excerpt must contain the whole file")
	}
}

func TestComputeExcerptsFixedWindowNoHeadings(t *testing.T) {
	content := []byte(strings.Repeat("x", fixedWindowSize*2+10))
	excerpts := computeExcerpts(docstore.DocTypeDocumentation, content)
	if len(excerpts) != 3 {
		t.Fatalf("expected 3 fixed windows, got %d", len(excerpts))
	}
	if excerpts[0].EndOffset-excerpts[0].StartOffset != fixedWindowSize {
		t.Fatalf("expected first window of size %d, got %d", fixedWindowSize, excerpts[0].EndOffset-excerpts[0].StartOffset)
	}
	if excerpts[2].EndOffset != len(content) {
		t.Fatalf("expected final window to end at content length, got %d", excerpts[2].EndOffset)
	}
}

func TestComputeExcerptsEmptyContent(t *testing.T) {
	excerpts := computeExcerpts(docstore.DocTypeMinimal, nil)
	if len(excerpts) != 1 {
		t.Fatalf("expected 1 empty excerpt, got %d", len(excerpts))
	}
	if excerpts[0].Text != "" {
		t.Fatalf("expected empty text, got %q", excerpts[0].Text)
	}
}
