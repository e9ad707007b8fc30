package main

import (
	"context"
	"fmt"
	"os"

	"github.com/reusee/dscope"

	"github.com/rlmcore/rlmcore/cmds"
	"github.com/rlmcore/rlmcore/debugs"
	"github.com/rlmcore/rlmcore/docstore"
	"github.com/rlmcore/rlmcore/ingest"
	"github.com/rlmcore/rlmcore/logs"
	"github.com/rlmcore/rlmcore/modes"
	"github.com/rlmcore/rlmcore/rlm"
	"github.com/rlmcore/rlmcore/topics"
)

func main() {
	cmds.Execute(os.Args[1:])
	ctx := context.Background()

	if selectedCommand == "" {
		cmds.PrintUsage()
		os.Exit(0)
	}

	dscope.New(
		new(Module),
		modes.ForProduction(),
	).Call(func(
		logger logs.Logger,
		engine rlm.Engine,
		ingestor ingest.Ingestor,
		docStore docstore.Store,
		registry topics.Registry,
		tap debugs.Tap,
	) {
		var err error
		switch selectedCommand {

		case "ingest":
			err = runIngest(ctx, ingestor, registry)

		case "ask":
			err = runAsk(ctx, engine)

		case "sources":
			err = runSources(ctx, docStore)

		case "topics":
			err = runTopics(registry)

		case "repl":
			err = runRepl(ctx, engine, tap)

		default:
			err = fmt.Errorf("unknown command: %s", selectedCommand)
		}

		if err != nil {
			logger.ErrorContext(ctx, "command failed", "command", selectedCommand, "error", err)
			os.Exit(1)
		}
	})
}

func runIngest(ctx context.Context, ingestor ingest.Ingestor, registry topics.Registry) error {
	if ingestURL == "" {
		return fmt.Errorf("ingest requires a URL")
	}
	label := ingestLabel
	if label == "" {
		return fmt.Errorf("ingest requires -label")
	}

	defaults := registry.Lookup(label)
	docType := ingestDocType
	if docType == "" {
		docType = defaults.DocType
	}
	urlContext := ingestURLContext
	if urlContext == "" {
		urlContext = defaults.URLContext
	}

	result, err := ingestor.Ingest(ctx, ingest.Request{
		URL:        ingestURL,
		Label:      label,
		DocType:    resolveDocType(docType),
		Branch:     ingestBranch,
		URLContext: urlContext,
	})
	if err != nil {
		return err
	}

	fmt.Printf("ingested %d document(s) into %q\n", len(result.DocIDs), label)
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}

func runAsk(ctx context.Context, engine rlm.Engine) error {
	if askTopic == "" {
		return fmt.Errorf("ask requires -topic")
	}
	if askQuestion == "" {
		return fmt.Errorf("ask requires a question")
	}

	result, err := engine.Ask(ctx, rlm.AskRequest{
		Topic:         askTopic,
		Question:      askQuestion,
		ParallelLoops: askParallelLoops,
	})
	if err != nil {
		fmt.Println(result.Answer)
		return err
	}

	fmt.Println(result.Answer)
	if len(result.CitedURLs) > 0 {
		fmt.Println("\nSources:")
		for _, url := range result.CitedURLs {
			fmt.Printf("  %s\n", url)
		}
	}
	return nil
}

// runRepl exposes -topic's sandbox primitives as REPL globals, letting an
// operator poke at get_section/search_document interactively without
// spending a real dialogue turn.
func runRepl(ctx context.Context, engine rlm.Engine, tap debugs.Tap) error {
	if askTopic == "" {
		return fmt.Errorf("repl requires -topic")
	}
	prim, err := engine.Primitives(ctx, askTopic)
	if err != nil {
		return err
	}
	tap(ctx, "repl:"+askTopic, map[string]any{
		"list_documents":  prim.ListDocuments,
		"get_section":     prim.GetSection,
		"search_document": prim.SearchDocument,
		"llm_query":       prim.LlmQuery,
	})
	return nil
}

func runSources(ctx context.Context, docStore docstore.Store) error {
	labels, err := docStore.ListLabels(ctx)
	if err != nil {
		return err
	}
	for _, l := range labels {
		fmt.Printf("%-30s %d document(s)\n", l.Label, l.Count)
	}
	return nil
}

func runTopics(registry topics.Registry) error {
	for label, d := range registry {
		fmt.Printf("%-30s doc_type=%s url_context=%s\n", label, d.DocType, d.URLContext)
	}
	return nil
}
