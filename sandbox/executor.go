// Package sandbox implements the SandboxExecutor: a fresh Starlark
// interpreter per script, exposing exactly four document-access
// primitives. Starlark's own grammar has no import, eval, exec, open, or
// subprocess primitives, so the denial list is satisfied by construction —
// nothing needs to be filtered after the fact, only never bound.
package sandbox

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/reusee/starlarkutil"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/rlmcore/rlmcore/rlmerrors"
)

const (
	DefaultDeadline = 20 * time.Second
	maxStdout       = 16 * 1024
)

// DocSummary is the shape list_documents() hands back to scripts.
type DocSummary struct {
	DocID     string
	Path      string
	Label     string
	SourceURL string
}

// SearchHit mirrors DocumentStore.search's result shape.
type SearchHit struct {
	Ordinal int
	Snippet string
}

// Primitives is the per-question read snapshot the four builtins are
// bound over. Every field is a plain Go function; starlarkutil.MakeFunc
// does the reflection-based marshaling to and from Starlark values, the
// same conversion the teacher's own REPL tap uses for its globals.
type Primitives struct {
	ListDocuments  func() []DocSummary
	GetSection     func(docID string, ordinal int) (string, error)
	SearchDocument func(docID, needle string) ([]SearchHit, error)
	LlmQuery       func(prompt string) (string, error)
}

// Result is what one script evaluation returns to the engine. Err is
// carried alongside Stdout rather than as a Go error return: a sandbox
// failure is expected, recoverable dialogue content, not a fatal call
// failure (see rlmerrors.ScriptError's propagation rule).
type Result struct {
	Stdout string
	Err    error
}

// Run evaluates script against a brand new Starlark thread and global
// dict. No load() is wired (thread.Load stays nil), so any load(...)
// statement fails before a single top-level statement executes. print()
// is not a predeclared name; Starlark's own default print goes through
// thread.Print, which is redirected here into a capped buffer instead of
// stderr.
func Run(ctx context.Context, script string, prim Primitives, deadline time.Duration) Result {
	if deadline <= 0 || deadline > DefaultDeadline {
		deadline = DefaultDeadline
	}

	var stdout bytes.Buffer
	truncated := false

	thread := &starlark.Thread{
		Name: "rlm-script",
		Print: func(_ *starlark.Thread, msg string) {
			if truncated {
				return
			}
			if stdout.Len()+len(msg)+1 > maxStdout {
				if remaining := maxStdout - stdout.Len(); remaining > 0 {
					stdout.WriteString(msg[:remaining])
				}
				stdout.WriteString("\n...[truncated]")
				truncated = true
				return
			}
			stdout.WriteString(msg)
			stdout.WriteByte('\n')
		},
	}

	globals := starlark.StringDict{
		"list_documents":  starlarkutil.MakeFunc("list_documents", prim.ListDocuments),
		"get_section":     starlarkutil.MakeFunc("get_section", prim.GetSection),
		"search_document": starlarkutil.MakeFunc("search_document", prim.SearchDocument),
		"llm_query":       starlarkutil.MakeFunc("llm_query", prim.LlmQuery),
	}

	done := make(chan struct{})
	go func() {
		timer := time.NewTimer(deadline)
		defer timer.Stop()
		select {
		case <-timer.C:
			thread.Cancel("deadline exceeded")
		case <-ctx.Done():
			thread.Cancel("question cancelled")
		case <-done:
		}
	}()

	opts := &syntax.FileOptions{}
	_, err := starlark.ExecFileOptions(opts, thread, "script.star", script, globals)
	close(done)

	if err != nil {
		return Result{Stdout: stdout.String(), Err: rlmerrors.ScriptError{Message: classifyError(err.Error())}}
	}
	return Result{Stdout: stdout.String()}
}

// classifyError prefixes the interpreter's raw error text with "import
// denied: " when it mentions a denied primitive (load, import, eval, exec,
// open, subprocess, os., __import__), per the sandbox's contract. The
// interpreter's own message follows the prefix unchanged; other errors are
// returned as they are.
func classifyError(msg string) string {
	lower := strings.ToLower(msg)
	for _, name := range []string{"load", "import", "eval", "exec", "open", "subprocess", "os.", "__import__"} {
		if strings.Contains(lower, name) {
			return "import denied: " + msg
		}
	}
	return msg
}
