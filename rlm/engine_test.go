package rlm_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/reusee/dscope"

	"github.com/rlmcore/rlmcore/blobs"
	"github.com/rlmcore/rlmcore/configs"
	"github.com/rlmcore/rlmcore/docstore"
	"github.com/rlmcore/rlmcore/llmclient"
	"github.com/rlmcore/rlmcore/modes"
	"github.com/rlmcore/rlmcore/rlm"
	"github.com/rlmcore/rlmcore/rlmconfig"
	"github.com/rlmcore/rlmcore/rlmerrors"
)

const (
	testTopic     = "docs-topic"
	testSourceURL = "https://example.com/repo"
	testPath      = "README.md"
)

var testDocID = docstore.DocID(testTopic, testSourceURL, testPath)

func getSectionScript() string {
	return fmt.Sprintf("```repl\nprint(get_section(%q, 1))\n```", testDocID)
}

// newFakeLLM starts a chat-completions stand-in whose reply is a pure
// function of the incoming message list, so concurrent callers (parallel
// loops) never race on shared state.
func newFakeLLM(t *testing.T, reply func(messages []llmclient.Message) string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatal(err)
		}
		var req struct {
			Messages []llmclient.Message `json:"messages"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatal(err)
		}
		content := reply(req.Messages)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func assistantTurnCount(messages []llmclient.Message) int {
	n := 0
	for _, m := range messages {
		if m.Role == "assistant" {
			n++
		}
	}
	return n
}

// withEngine wires an Engine against a fake LLM endpoint and a fresh
// on-disk docstore seeded with one document under testTopic, then hands
// both to fn.
func withEngine(t *testing.T, params rlmconfig.EngineParams, serverURL string, fn func(engine rlm.Engine, store docstore.Store)) {
	t.Helper()
	dscope.New(
		modes.ForTest(t),
		new(rlm.Module),
		dscope.Provide(configs.NewLoader(nil, "")),
	).Fork(
		dscope.Provide(blobs.DataDir(t.TempDir())),
		dscope.Provide(llmclient.BaseURL(serverURL)),
		dscope.Provide(params),
	).Call(func(engine rlm.Engine, store docstore.Store) {
		ctx := context.Background()
		_, err := store.Insert(ctx, docstore.Document{
			Label:       testTopic,
			SourceURL:   testSourceURL,
			Path:        testPath,
			ContentHash: "deadbeef",
			DocType:     docstore.DocTypeDocumentation,
			URLContext:  "https://example.com/repo/blob/main/README.md",
		}, []docstore.Excerpt{
			{Ordinal: 1, HeadingPath: "Requirements", StartOffset: 0, EndOffset: 26, Text: "Providers need 8GB of RAM."},
		})
		if err != nil {
			t.Fatal(err)
		}
		fn(engine, store)
	})
}

func TestAskHappyPath(t *testing.T) {
	server := newFakeLLM(t, func(messages []llmclient.Message) string {
		if assistantTurnCount(messages) == 0 {
			return getSectionScript()
		}
		return "FINAL(Providers need 8GB of RAM, per the [README](https://example.com/repo/blob/main/README.md).)"
	})

	withEngine(t, rlmconfig.EngineParams{MaxIterations: 5, MinCodeExecutions: 1, MinAnswerLen: 10, ParallelLoops: 1}, server.URL, func(engine rlm.Engine, store docstore.Store) {
		result, err := engine.Ask(context.Background(), rlm.AskRequest{Topic: testTopic, Question: "how much RAM?"})
		if err != nil {
			t.Fatal(err)
		}
		if result.Truncated {
			t.Fatal("expected a clean FINAL, got truncated")
		}
		if result.ScriptCalls != 1 {
			t.Fatalf("expected 1 script call, got %d", result.ScriptCalls)
		}
		if len(result.CitedURLs) != 1 || result.CitedURLs[0] != "https://example.com/repo/blob/main/README.md" {
			t.Fatalf("unexpected citations: %v", result.CitedURLs)
		}
	})
}

func TestAskRejectsFinalBeforeMinimumEvidence(t *testing.T) {
	server := newFakeLLM(t, func(messages []llmclient.Message) string {
		switch assistantTurnCount(messages) {
		case 0:
			return "FINAL(No RAM requirement is documented anywhere in this topic.)"
		case 1:
			return getSectionScript()
		default:
			return "FINAL(Providers need 8GB of RAM, according to the excerpt I just read.)"
		}
	})

	withEngine(t, rlmconfig.EngineParams{MaxIterations: 5, MinCodeExecutions: 1, MinAnswerLen: 10, ParallelLoops: 1}, server.URL, func(engine rlm.Engine, store docstore.Store) {
		result, err := engine.Ask(context.Background(), rlm.AskRequest{Topic: testTopic, Question: "how much RAM?"})
		if err != nil {
			t.Fatal(err)
		}
		if result.ScriptCalls != 1 {
			t.Fatalf("expected the first bare FINAL to be rejected and a script to follow, got %d script calls", result.ScriptCalls)
		}
		if result.Truncated {
			t.Fatal("expected the second FINAL to be accepted")
		}
	})
}

func TestAskSandboxEscapeIsDeniedNotFatal(t *testing.T) {
	server := newFakeLLM(t, func(messages []llmclient.Message) string {
		switch assistantTurnCount(messages) {
		case 0:
			return "```repl\nload(\"os\", \"os\")\n```"
		case 1:
			return getSectionScript()
		default:
			return "FINAL(Providers need 8GB of RAM, confirmed via the sandboxed excerpt.)"
		}
	})

	withEngine(t, rlmconfig.EngineParams{MaxIterations: 5, MinCodeExecutions: 1, MinAnswerLen: 10, ParallelLoops: 1}, server.URL, func(engine rlm.Engine, store docstore.Store) {
		result, err := engine.Ask(context.Background(), rlm.AskRequest{Topic: testTopic, Question: "how much RAM?"})
		if err != nil {
			t.Fatal(err)
		}
		if result.Truncated {
			t.Fatal("a denied import should not abort the loop")
		}
		if result.ScriptCalls != 2 {
			t.Fatalf("expected both script attempts to count, got %d", result.ScriptCalls)
		}
	})
}

func TestAskLoopExhaustion(t *testing.T) {
	server := newFakeLLM(t, func(messages []llmclient.Message) string {
		return "I am still thinking about this."
	})

	withEngine(t, rlmconfig.EngineParams{MaxIterations: 3, MinCodeExecutions: 1, MinAnswerLen: 10, ParallelLoops: 1}, server.URL, func(engine rlm.Engine, store docstore.Store) {
		result, err := engine.Ask(context.Background(), rlm.AskRequest{Topic: testTopic, Question: "how much RAM?"})
		if _, ok := err.(rlmerrors.LoopExhausted); !ok {
			t.Fatalf("expected LoopExhausted, got %#v", err)
		}
		if !result.Truncated {
			t.Fatal("expected the best-effort result to be marked truncated")
		}
		if result.Iterations != 3 {
			t.Fatalf("expected 3 iterations, got %d", result.Iterations)
		}
	})
}

func TestAskNoDocumentsForTopic(t *testing.T) {
	server := newFakeLLM(t, func(messages []llmclient.Message) string { return "" })
	withEngine(t, rlmconfig.EngineParams{MaxIterations: 3, MinCodeExecutions: 1, MinAnswerLen: 10, ParallelLoops: 1}, server.URL, func(engine rlm.Engine, store docstore.Store) {
		_, err := engine.Ask(context.Background(), rlm.AskRequest{Topic: "no-such-topic", Question: "anything"})
		if _, ok := err.(rlmerrors.NoDocumentsForTopic); !ok {
			t.Fatalf("expected NoDocumentsForTopic, got %#v", err)
		}
	})
}

func TestAskParallelLoopsReduces(t *testing.T) {
	server := newFakeLLM(t, func(messages []llmclient.Message) string {
		if len(messages) == 1 && strings.Contains(messages[0].Content, "Multiple independent attempts") {
			return "FINAL(Providers need 8GB of RAM, synthesized from both attempts.)"
		}
		if assistantTurnCount(messages) == 0 {
			return getSectionScript()
		}
		return "FINAL(Providers need 8GB of RAM.)"
	})

	withEngine(t, rlmconfig.EngineParams{MaxIterations: 5, MinCodeExecutions: 1, MinAnswerLen: 5, ParallelLoops: 2}, server.URL, func(engine rlm.Engine, store docstore.Store) {
		result, err := engine.Ask(context.Background(), rlm.AskRequest{Topic: testTopic, Question: "how much RAM?"})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(result.Answer, "synthesized") {
			t.Fatalf("expected the reduced answer, got %q", result.Answer)
		}
	})
}
