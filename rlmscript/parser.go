// Package rlmscript classifies a single assistant turn as a fenced script,
// a FINAL terminal, or plain prose, per the reasoning loop's turn protocol.
package rlmscript

import (
	"strings"

	"github.com/rlmcore/rlmcore/rlmerrors"
)

const fenceTag = "repl"

type Kind int

const (
	Neither Kind = iota
	Script
	Final
)

// Turn is the result of classifying one assistant reply.
type Turn struct {
	Kind   Kind
	Script string // concatenated fence bodies, blank-line separated
	Final  string // inner expression of FINAL(...), verbatim
}

// Parse classifies text per the precedence rule: a FINAL form outside any
// fenced block wins even if fenced ```repl blocks are also present;
// otherwise fenced blocks make it a Script turn. An unterminated fence is
// reported as a ScriptError rather than silently ignored.
func Parse(text string) (Turn, error) {
	fences, spans, err := extractFences(text)
	if err != nil {
		return Turn{}, err
	}

	if idx := indexOutside(text, "FINAL(", spans); idx >= 0 {
		body, ok := extractBalanced(text[idx+len("FINAL("):])
		if ok {
			return Turn{Kind: Final, Final: strings.TrimSpace(body)}, nil
		}
	}

	if len(fences) > 0 {
		return Turn{Kind: Script, Script: strings.Join(fences, "\n\n")}, nil
	}

	return Turn{Kind: Neither}, nil
}

// fenceSpan records the byte range [start, end) of a fenced block within
// the original text, used to check whether a FINAL( occurs inside one.
type fenceSpan struct {
	start, end int
}

func extractFences(text string) (bodies []string, spans []fenceSpan, err error) {
	const marker = "```"

	pos := 0
	for {
		openIdx := strings.Index(text[pos:], marker)
		if openIdx < 0 {
			break
		}
		openIdx += pos
		lineEnd := strings.IndexByte(text[openIdx:], '\n')
		if lineEnd < 0 {
			return nil, nil, rlmerrors.ScriptError{Message: "unterminated fence: missing newline after opening ```"}
		}
		lineEnd += openIdx
		tag := strings.TrimSpace(text[openIdx+len(marker) : lineEnd])

		closeIdx := strings.Index(text[lineEnd+1:], marker)
		if closeIdx < 0 {
			return nil, nil, rlmerrors.ScriptError{Message: "unterminated fence: no closing ``` found"}
		}
		closeIdx += lineEnd + 1
		bodyEnd := closeIdx
		closeLineEnd := closeIdx + len(marker)

		if tag == fenceTag {
			bodies = append(bodies, text[lineEnd+1:bodyEnd])
		}
		spans = append(spans, fenceSpan{start: openIdx, end: closeLineEnd})

		pos = closeLineEnd
	}

	return bodies, spans, nil
}

// indexOutside finds the first occurrence of needle in text that does not
// fall within any of the given fence spans.
func indexOutside(text, needle string, spans []fenceSpan) int {
	start := 0
	for {
		idx := strings.Index(text[start:], needle)
		if idx < 0 {
			return -1
		}
		idx += start
		inside := false
		for _, s := range spans {
			if idx >= s.start && idx < s.end {
				inside = true
				break
			}
		}
		if !inside {
			return idx
		}
		start = idx + len(needle)
	}
}

// extractBalanced reads a parenthesized expression starting just after the
// opening paren already consumed by the caller ("FINAL("), returning the
// inner text up to (not including) the matching close paren.
func extractBalanced(rest string) (string, bool) {
	depth := 1
	for i, r := range rest {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return rest[:i], true
			}
		}
	}
	return "", false
}

func (k Kind) String() string {
	switch k {
	case Script:
		return "script"
	case Final:
		return "final"
	default:
		return "neither"
	}
}
