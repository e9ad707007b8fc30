package rlm

// AskRequest is the typed call the chat front-end's "ask" command
// translates into.
type AskRequest struct {
	Topic         string
	Question      string
	ParallelLoops int // 0 means "use the configured default"
}

// AskResult is what a question resolves to: either a clean FINAL or a
// best-effort answer after exhausting the iteration cap.
type AskResult struct {
	Answer      string
	CitedURLs   []string
	Iterations  int
	ScriptCalls int
	Truncated   bool
}
