package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/rlmcore/rlmcore/docstore"
)

// fixedWindowSize is the excerpt size for content that is neither
// Markdown-like nor code: the spec leaves this an open question and
// recommends 1-4 KiB; 2 KiB is the chosen middle value.
const fixedWindowSize = 2 * 1024

// computeExcerpts tiles content into non-overlapping excerpts per the
// rules in the data model: heading boundaries for Markdown-like input,
// one excerpt per file for code, fixed windows otherwise.
func computeExcerpts(docType docstore.DocType, content []byte) []docstore.Excerpt {
	switch docType {
	case docstore.DocTypeDocumentation, docstore.DocTypeWeb:
		if excerpts := headingExcerpts(content); len(excerpts) > 0 {
			return excerpts
		}
		return fixedWindowExcerpts(content)
	case docstore.DocTypeCode:
		return wholeFileExcerpt(content)
	default:
		return fixedWindowExcerpts(content)
	}
}

// headingExcerpts splits Markdown content on heading boundaries using
// goldmark's parser to locate heading nodes, then tiles the raw bytes
// between consecutive heading starts (and before the first / after the
// last) so the excerpts still cover the whole document exactly.
func headingExcerpts(content []byte) []docstore.Excerpt {
	reader := text.NewReader(content)
	doc := goldmark.New().Parser().Parse(reader)

	type headingMark struct {
		offset int
		level  int
		title  string
	}
	var marks []headingMark

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := heading.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		// heading lines begin at the heading text; back up to the start of
		// its source line so the "#" markers belong to this excerpt
		start := bytes.LastIndexByte(content[:lines.At(0).Start], '\n') + 1
		marks = append(marks, headingMark{
			offset: start,
			level:  heading.Level,
			title:  strings.TrimSpace(string(headingText(heading, content))),
		})
		return ast.WalkSkipChildren, nil
	})
	if err != nil || len(marks) == 0 {
		return nil
	}

	var excerpts []docstore.Excerpt
	var stack []string // heading path stack, index = level-1

	pathFor := func(level int, title string) string {
		if level < 1 {
			level = 1
		}
		if len(stack) < level {
			grown := make([]string, level)
			copy(grown, stack)
			stack = grown
		}
		stack = stack[:level]
		stack[level-1] = title
		return strings.Join(stack, " / ")
	}

	ordinal := 1
	if marks[0].offset > 0 {
		// preamble before the first heading is its own excerpt
		excerpts = append(excerpts, docstore.Excerpt{
			Ordinal:     ordinal,
			HeadingPath: "",
			StartOffset: 0,
			EndOffset:   marks[0].offset,
			Text:        string(content[0:marks[0].offset]),
		})
		ordinal++
	}

	for i, mark := range marks {
		path := pathFor(mark.level, mark.title)
		end := len(content)
		if i+1 < len(marks) {
			end = marks[i+1].offset
		}
		excerpts = append(excerpts, docstore.Excerpt{
			Ordinal:     ordinal,
			HeadingPath: path,
			StartOffset: mark.offset,
			EndOffset:   end,
			Text:        string(content[mark.offset:end]),
		})
		ordinal++
	}

	return excerpts
}

func headingText(heading *ast.Heading, source []byte) []byte {
	var buf bytes.Buffer
	for c := heading.FirstChild(); c != nil; c = c.NextSibling() {
		if text, ok := c.(*ast.Text); ok {
			buf.Write(text.Segment.Value(source))
		}
	}
	return buf.Bytes()
}

func wholeFileExcerpt(content []byte) []docstore.Excerpt {
	return []docstore.Excerpt{{
		Ordinal:     1,
		HeadingPath: "",
		StartOffset: 0,
		EndOffset:   len(content),
		Text:        string(content),
	}}
}

func fixedWindowExcerpts(content []byte) []docstore.Excerpt {
	if len(content) == 0 {
		return []docstore.Excerpt{{
			Ordinal: 1, StartOffset: 0, EndOffset: 0, Text: "",
		}}
	}
	var excerpts []docstore.Excerpt
	ordinal := 1
	for start := 0; start < len(content); start += fixedWindowSize {
		end := start + fixedWindowSize
		if end > len(content) {
			end = len(content)
		}
		excerpts = append(excerpts, docstore.Excerpt{
			Ordinal:     ordinal,
			HeadingPath: fmt.Sprintf("window %d", ordinal),
			StartOffset: start,
			EndOffset:   end,
			Text:        string(content[start:end]),
		})
		ordinal++
	}
	return excerpts
}
