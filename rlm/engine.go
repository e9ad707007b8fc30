// Package rlm implements the RlmEngine and PromptAssembler: the
// turn-by-turn dialogue that drives the primary LLM through the sandboxed
// scripting tool until it produces a validated FINAL answer or the
// iteration cap is reached.
package rlm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/reusee/e5"

	"github.com/rlmcore/rlmcore/blobs"
	"github.com/rlmcore/rlmcore/docstore"
	"github.com/rlmcore/rlmcore/llmclient"
	"github.com/rlmcore/rlmcore/logs"
	"github.com/rlmcore/rlmcore/rlmconfig"
	"github.com/rlmcore/rlmcore/rlmerrors"
	"github.com/rlmcore/rlmcore/rlmscript"
	"github.com/rlmcore/rlmcore/sandbox"
	"github.com/rlmcore/rlmcore/syncs"
)

const (
	questionDeadline   = 5 * time.Minute
	llmCallDeadline    = 90 * time.Second
	subQueryMaxTokens  = 256
	turnMaxTokens      = 1024
	maxToolBodyChars   = 4000
	maxConcurrentLoops = 4
)

// Engine is the callable surface the chat front-end's "ask" command and
// the CLI's "ask" subcommand both drive.
type Engine struct {
	docs   docstore.Store
	llm    llmclient.Client
	params rlmconfig.EngineParams
	logger logs.Logger
}

func (Module) Engine(
	docStore docstore.Store,
	llmClient llmclient.Client,
	params rlmconfig.EngineParams,
	logger logs.Logger,
) Engine {
	return Engine{docs: docStore, llm: llmClient, params: params, logger: logger}
}

// Ask runs the full dialogue protocol for one question and persists a
// QaRecord, except when the question is cancelled before completion.
func (e Engine) Ask(ctx context.Context, req AskRequest) (AskResult, error) {
	ctx, cancel := context.WithTimeout(ctx, questionDeadline)
	defer cancel()

	docs, err := e.docs.ListByLabel(ctx, req.Topic)
	if err != nil {
		return AskResult{}, e5.Wrap(err)
	}
	if len(docs) == 0 {
		return AskResult{}, rlmerrors.NoDocumentsForTopic{Label: req.Topic}
	}

	parallelLoops := req.ParallelLoops
	if parallelLoops <= 0 {
		parallelLoops = e.params.ParallelLoops
	}
	if parallelLoops < 1 {
		parallelLoops = 1
	}

	if parallelLoops == 1 {
		result, loopErr := e.runLoop(ctx, req.Topic, req.Question, docs)
		return e.finish(ctx, req, result, nil, loopErr)
	}

	return e.askParallel(ctx, req, docs, parallelLoops)
}

// Primitives resolves the sandbox bindings for topic without running a
// dialogue loop, so a debug REPL can drive the same four builtins a
// script would see mid-question.
func (e Engine) Primitives(ctx context.Context, topic string) (sandbox.Primitives, error) {
	docs, err := e.docs.ListByLabel(ctx, topic)
	if err != nil {
		return sandbox.Primitives{}, e5.Wrap(err)
	}
	if len(docs) == 0 {
		return sandbox.Primitives{}, rlmerrors.NoDocumentsForTopic{Label: topic}
	}
	return e.primitivesFor(ctx, topic, docs), nil
}

func (e Engine) askParallel(ctx context.Context, req AskRequest, docs []docstore.DocSummary, n int) (AskResult, error) {
	type outcome struct {
		result AskResult
		err    error
	}
	outcomes := make([]outcome, n)
	sem := syncs.NewSemaphore(min(n, maxConcurrentLoops))
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem.Acquire()
			defer sem.Release()
			result, err := e.runLoop(ctx, req.Topic, req.Question, docs)
			outcomes[i] = outcome{result: result, err: err}
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return AskResult{}, rlmerrors.Cancelled{Reason: err.Error()}
	}

	var candidates []string
	var hashes []string
	allTruncated := true
	maxIterations, totalScriptCalls := 0, 0
	for _, o := range outcomes {
		if o.result.Answer == "" {
			continue
		}
		candidates = append(candidates, o.result.Answer)
		hashes = append(hashes, string(blobs.Sum([]byte(o.result.Answer))))
		if !o.result.Truncated {
			allTruncated = false
		}
		maxIterations = max(maxIterations, o.result.Iterations)
		totalScriptCalls += o.result.ScriptCalls
	}

	if len(candidates) == 0 {
		return e.finish(ctx, req, AskResult{Iterations: maxIterations, ScriptCalls: totalScriptCalls, Truncated: true}, nil, outcomes[0].err)
	}

	chosen, reduceErr := e.llm.CompletePrimary(ctx, []llmclient.Message{
		{Role: "user", Content: assembleReducePrompt(req.Question, candidates)},
	}, turnMaxTokens)
	if reduceErr != nil {
		chosen = candidates[0]
	}
	turn, parseErr := rlmscript.Parse(chosen)
	answer := chosen
	if parseErr == nil && turn.Kind == rlmscript.Final {
		answer = turn.Final
	}

	result := AskResult{
		Answer:      answer,
		CitedURLs:   extractCitedURLs(answer),
		Iterations:  maxIterations,
		ScriptCalls: totalScriptCalls,
		Truncated:   allTruncated,
	}
	return e.finish(ctx, req, result, hashes, nil)
}

// finish persists a QaRecord (except on cancellation) and returns the
// result and error the caller sees, per the error propagation table.
func (e Engine) finish(ctx context.Context, req AskRequest, result AskResult, candidateHashes []string, loopErr error) (AskResult, error) {
	if cancelled, ok := loopErr.(rlmerrors.Cancelled); ok {
		return AskResult{}, cancelled
	}
	if ctx.Err() != nil {
		return AskResult{}, rlmerrors.Cancelled{Reason: ctx.Err().Error()}
	}

	qa := docstore.QaRecord{
		Topic:           req.Topic,
		Question:        req.Question,
		Answer:          result.Answer,
		CitedURLs:       result.CitedURLs,
		Iterations:      result.Iterations,
		ScriptCalls:     result.ScriptCalls,
		Truncated:       result.Truncated,
		CandidateHashes: candidateHashes,
	}
	if err := e.docs.RecordQA(ctx, qa); err != nil {
		e.logger.WarnContext(ctx, "record qa failed", "error", err)
	}

	return result, loopErr
}

// runLoop drives a single dialogue to a FINAL answer or exhaustion. The
// returned error, when non-nil, is either LoopExhausted (carries a
// best-effort AskResult alongside it) or the fatal error the LLM client
// returned for a turn (LlmUnavailable, Cancelled, or a non-retryable
// request failure).
func (e Engine) runLoop(ctx context.Context, topic, question string, docs []docstore.DocSummary) (AskResult, error) {
	messages := []llmclient.Message{
		{Role: "system", Content: assembleSystemPrompt(topic, docs)},
		{Role: "user", Content: question},
	}
	scriptCalls := 0

	for iteration := 1; iteration <= e.params.MaxIterations; iteration++ {
		callCtx, cancel := context.WithTimeout(ctx, llmCallDeadline)
		reply, err := e.llm.CompletePrimary(callCtx, messages, turnMaxTokens)
		cancel()
		if err != nil {
			return AskResult{Iterations: iteration, ScriptCalls: scriptCalls, Truncated: true}, err
		}
		messages = append(messages, llmclient.Message{Role: "assistant", Content: reply})

		turn, err := rlmscript.Parse(reply)
		if err != nil {
			messages = append(messages, toolMessage(err.Error()))
			continue
		}

		switch turn.Kind {

		case rlmscript.Script:
			result := sandbox.Run(ctx, turn.Script, e.primitivesFor(ctx, topic, docs), sandbox.DefaultDeadline)
			scriptCalls++
			body := result.Stdout
			if result.Err != nil {
				body += "\nerror: " + result.Err.Error()
			}
			messages = append(messages, toolMessage(truncateBody(body)))

		case rlmscript.Final:
			if scriptCalls >= e.params.MinCodeExecutions && utf8.RuneCountInString(turn.Final) >= e.params.MinAnswerLen {
				answer := turn.Final
				return AskResult{
					Answer:      answer,
					CitedURLs:   extractCitedURLs(answer),
					Iterations:  iteration,
					ScriptCalls: scriptCalls,
					Truncated:   false,
				}, nil
			}
			messages = append(messages, toolMessage(fmt.Sprintf(
				"FINAL rejected: need at least %d script executions and %d characters of answer. So far: %d script executions, %d characters.",
				e.params.MinCodeExecutions, e.params.MinAnswerLen, scriptCalls, utf8.RuneCountInString(turn.Final),
			)))

		case rlmscript.Neither:
			messages = append(messages, toolMessage("Respond with a ```repl``` script block, or FINAL(...) once you have enough evidence."))
		}
	}

	bestEffort := lastAssistantContent(messages)
	return AskResult{
			Answer:      bestEffort,
			CitedURLs:   extractCitedURLs(bestEffort),
			Iterations:  e.params.MaxIterations,
			ScriptCalls: scriptCalls,
			Truncated:   true,
		}, rlmerrors.LoopExhausted{
			Iterations: e.params.MaxIterations,
			BestEffort: bestEffort,
		}
}

func (e Engine) primitivesFor(ctx context.Context, topic string, docs []docstore.DocSummary) sandbox.Primitives {
	summaries := make([]sandbox.DocSummary, len(docs))
	for i, d := range docs {
		summaries[i] = sandbox.DocSummary{DocID: d.DocID, Path: d.Path, Label: d.Label, SourceURL: d.SourceURL}
	}

	return sandbox.Primitives{
		ListDocuments: func() []sandbox.DocSummary {
			return summaries
		},
		GetSection: func(docID string, ordinal int) (string, error) {
			excerpts, err := e.docs.Excerpts(ctx, docID)
			if err != nil {
				return "", err
			}
			if ordinal < 1 || ordinal > len(excerpts) {
				return "", fmt.Errorf("ordinal %d out of range for %s (%d excerpts)", ordinal, docID, len(excerpts))
			}
			return excerpts[ordinal-1].Text, nil
		},
		SearchDocument: func(docID, needle string) ([]sandbox.SearchHit, error) {
			hits, err := e.docs.Search(ctx, docID, needle)
			if err != nil {
				return nil, err
			}
			out := make([]sandbox.SearchHit, len(hits))
			for i, h := range hits {
				out[i] = sandbox.SearchHit{Ordinal: h.Ordinal, Snippet: h.Snippet}
			}
			return out, nil
		},
		LlmQuery: func(prompt string) (string, error) {
			callCtx, cancel := context.WithTimeout(ctx, llmCallDeadline)
			defer cancel()
			return e.llm.CompleteSub(callCtx, prompt, subQueryMaxTokens)
		},
	}
}

func toolMessage(body string) llmclient.Message {
	return llmclient.Message{Role: "tool", Content: body}
}

func truncateBody(body string) string {
	if utf8.RuneCountInString(body) <= maxToolBodyChars {
		return body
	}
	runes := []rune(body)
	return string(runes[:maxToolBodyChars]) + "\n...[truncated]"
}

func lastAssistantContent(messages []llmclient.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}
