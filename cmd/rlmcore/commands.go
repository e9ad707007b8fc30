package main

import (
	"github.com/rlmcore/rlmcore/cmds"
	"github.com/rlmcore/rlmcore/docstore"
)

var (
	selectedCommand string

	ingestURL        string
	ingestLabel      string
	ingestDocType    string
	ingestBranch     = "main"
	ingestURLContext string

	askTopic         string
	askQuestion      string
	askParallelLoops int
)

func init() {
	cmds.Define("-label", cmds.Func(func(v string) {
		ingestLabel = v
	}).Desc("topic label an ingest writes into"))

	cmds.Define("-doctype", cmds.Func(func(v string) {
		ingestDocType = v
	}).Desc("doc_type filter for repo ingests: documentation, code, minimal, web"))

	cmds.Define("-branch", cmds.Func(func(v string) {
		ingestBranch = v
	}).Desc("git branch to ingest (default main)"))

	cmds.Define("-url-context", cmds.Func(func(v string) {
		ingestURLContext = v
	}).Desc("override the synthesized url_context"))

	cmds.Define("-topic", cmds.Func(func(v string) {
		askTopic = v
	}).Desc("topic label to ask against"))

	cmds.Define("-parallel", cmds.Func(func(v int) {
		askParallelLoops = v
	}).Desc("number of independent reasoning loops to run and reduce"))

	cmds.Define("ingest", cmds.Func(func(url string) {
		selectedCommand = "ingest"
		ingestURL = url
	}).Desc("ingest a GitHub repo or web page: -label L [-doctype T] [-branch B] ingest URL"))

	cmds.Define("ask", cmds.Func(func(question string) {
		selectedCommand = "ask"
		askQuestion = question
	}).Desc("ask a question against a topic's documents: -topic L [-parallel N] ask QUESTION"))

	cmds.Define("sources", cmds.Func(func() {
		selectedCommand = "sources"
	}).Desc("list ingested topics and their document counts"))

	cmds.Define("topics", cmds.Func(func() {
		selectedCommand = "topics"
	}).Desc("list configured topic defaults"))

	cmds.Define("repl", cmds.Func(func() {
		selectedCommand = "repl"
	}).Desc("drop into an interactive Starlark REPL bound to -topic's sandbox primitives"))
}

func resolveDocType(s string) docstore.DocType {
	switch docstore.DocType(s) {
	case docstore.DocTypeCode, docstore.DocTypeMinimal, docstore.DocTypeWeb:
		return docstore.DocType(s)
	default:
		return docstore.DocTypeDocumentation
	}
}
