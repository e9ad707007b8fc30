package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/reusee/e5"

	"github.com/rlmcore/rlmcore/blobs"
	"github.com/rlmcore/rlmcore/docstore"
	"github.com/rlmcore/rlmcore/logs"
	"github.com/rlmcore/rlmcore/nets"
	"github.com/rlmcore/rlmcore/rlmerrors"
)

// GitHubToken is sourced from the GITHUB_TOKEN environment variable; an
// empty value is a valid zero value (unauthenticated, public repos only).
func (Module) GitHubToken() GitHubToken {
	return GitHubToken(os.Getenv("GITHUB_TOKEN"))
}

// Ingestor is the callable surface the chat front-end's "/ingest"
// command and the CLI's "ingest" subcommand both invoke.
type Ingestor struct {
	blobStore blobs.Store
	docStore  docstore.Store
	http      nets.HTTPClient
	token     GitHubToken
	logger    logs.Logger
}

func (Module) Ingestor(
	blobStore blobs.Store,
	docStore docstore.Store,
	httpClient nets.HTTPClient,
	token GitHubToken,
	logger logs.Logger,
) Ingestor {
	return Ingestor{
		blobStore: blobStore,
		docStore:  docStore,
		http:      httpClient,
		token:     token,
		logger:    logger,
	}
}

// Ingest fetches source content for req.URL, filters it by doc_type,
// splits it into excerpts, stores the raw bytes content-addressed, and
// upserts the resulting documents. A fetch-layer failure (network error,
// repo not found) fails the whole call; a single bad file within an
// otherwise-successful fetch is downgraded to a warning, per §4.3.
func (ing Ingestor) Ingest(ctx context.Context, req Request) (Result, error) {
	if req.Branch == "" {
		req.Branch = "main"
	}
	if req.DocType == "" {
		req.DocType = docstore.DocTypeDocumentation
	}

	var files []rawFile
	var warnings []string
	isRepo := false

	if owner, repo, ok := knownHost(req.URL); ok {
		isRepo = true
		client := newGitHubClient(ctx, ing.token, ing.http)
		fetched, fetchWarnings, err := fetchGitHubRepo(ctx, client, owner, repo, req.Branch)
		if err != nil {
			return Result{}, err
		}
		files = fetched
		warnings = append(warnings, fetchWarnings...)
	} else {
		finalURL, content, contentType, err := fetchWebPage(ctx, ing.http, req.URL)
		if err != nil {
			return Result{}, err
		}
		_ = contentType
		files = []rawFile{{path: finalURL, content: content}}
	}

	var docIDs []string

	for _, f := range files {
		if isRepo && !matchesDocType(req.DocType, f.path) {
			continue
		}
		if len(f.content) == 0 {
			continue
		}

		hash, err := ing.blobStore.Put(f.content)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipped %s: store blob: %v", f.path, err))
			continue
		}

		excerpts := computeExcerpts(req.DocType, f.content)
		urlContext := req.URLContext
		if urlContext == "" && isRepo {
			urlContext = fmt.Sprintf("%s/blob/%s/%s", strings.TrimSuffix(req.URL, ".git"), req.Branch, f.path)
		} else if urlContext == "" {
			urlContext = req.URL
		}

		doc := docstore.Document{
			DocID:       docstore.DocID(req.Label, req.URL, f.path),
			Label:       req.Label,
			SourceURL:   req.URL,
			Path:        f.path,
			ContentHash: string(hash),
			DocType:     req.DocType,
			URLContext:  urlContext,
		}

		docID, err := ing.docStore.Insert(ctx, doc, excerpts)
		if err != nil {
			return Result{}, e5.Wrap(err)
		}
		docIDs = append(docIDs, docID)
	}

	if len(docIDs) == 0 && len(warnings) > 0 {
		return Result{Warnings: warnings}, rlmerrors.IngestFailed{
			URL:    req.URL,
			Reason: "no file produced a usable document",
		}
	}

	return Result{DocIDs: docIDs, Warnings: warnings}, nil
}
