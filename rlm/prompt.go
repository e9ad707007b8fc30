package rlm

import (
	"fmt"
	"strings"

	"github.com/rlmcore/rlmcore/docstore"
)

const primitivesDescription = `You answer questions using only the documents listed below. You may run
scripts against them in a fenced block tagged ` + "```repl```" + ` to gather evidence, one
or more per turn. The scripting language exposes exactly these functions:

  list_documents() -> [{doc_id, path, label, source_url}]
      the topic's documents, in a fixed order.
  get_section(doc_id, ordinal) -> str
      the 1-based excerpt body of a document; errors if ordinal is out of range.
  search_document(doc_id, needle) -> [(ordinal, snippet)]
      case-insensitive substring search over a document's excerpts.
  llm_query(prompt) -> str
      a single-shot call to a smaller model, useful for summarizing a large excerpt.

No other names are available inside a script: there is no import, no file
access, no network access, no eval.

When you have enough evidence, respond with FINAL(your answer here),
citing sources as markdown links. Do not emit FINAL until you have run
enough scripts to gather evidence; a FINAL that comes before the required
number of script executions will be rejected.`

// assembleSystemPrompt builds the RlmEngine's system prompt: the
// capability description, the four primitive signatures, and a manifest
// of the topic's documents including their url_context values verbatim.
func assembleSystemPrompt(topic string, docs []docstore.DocSummary) string {
	var b strings.Builder
	b.WriteString(primitivesDescription)
	b.WriteString("\n\nTopic: ")
	b.WriteString(topic)
	b.WriteString("\n\nDocuments:\n")
	for _, d := range docs {
		fmt.Fprintf(&b, "- doc_id=%s path=%s label=%s source_url=%s", d.DocID, d.Path, d.Label, d.SourceURL)
		if d.URLContext != "" {
			fmt.Fprintf(&b, " url_context=%q", d.URLContext)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// assembleReducePrompt builds the user message for the reduce turn issued
// when parallel_loops > 1: each candidate FINAL body tagged by loop index.
func assembleReducePrompt(question string, candidates []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Multiple independent attempts answered the question %q. ", question)
	b.WriteString("Pick the single best answer verbatim, or synthesize one from them. Respond with FINAL(...) only.\n\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "Candidate %d:\n%s\n\n", i+1, c)
	}
	return b.String()
}
