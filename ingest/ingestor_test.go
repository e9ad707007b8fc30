package ingest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reusee/dscope"

	"github.com/rlmcore/rlmcore/blobs"
	"github.com/rlmcore/rlmcore/configs"
	"github.com/rlmcore/rlmcore/docstore"
	"github.com/rlmcore/rlmcore/modes"
	"github.com/rlmcore/rlmcore/rlmerrors"
)

func withIngestor(t *testing.T, fn func(ingestor Ingestor, store docstore.Store)) {
	t.Helper()
	dscope.New(
		modes.ForTest(t),
		new(Module),
		dscope.Provide(configs.NewLoader(nil, "")),
	).Fork(
		dscope.Provide(blobs.DataDir(t.TempDir())),
	).Call(func(ingestor Ingestor, store docstore.Store) {
		fn(ingestor, store)
	})
}

func TestIngestWebPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><h1>Title</h1><p>providers need 8GB of RAM</p></body></html>"))
	}))
	defer server.Close()

	withIngestor(t, func(ingestor Ingestor, store docstore.Store) {
		result, err := ingestor.Ingest(t.Context(), Request{
			URL:   server.URL,
			Label: "my-topic",
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(result.DocIDs) != 1 {
			t.Fatalf("expected 1 document, got %d", len(result.DocIDs))
		}

		docs, err := store.ListByLabel(t.Context(), "my-topic")
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 1 {
			t.Fatalf("expected 1 stored document, got %d", len(docs))
		}
		if docs[0].URLContext != server.URL {
			t.Fatalf("expected url_context to default to the source URL, got %q", docs[0].URLContext)
		}
	})
}

func TestIngestWebPageHonorsExplicitURLContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain body text"))
	}))
	defer server.Close()

	withIngestor(t, func(ingestor Ingestor, store docstore.Store) {
		_, err := ingestor.Ingest(t.Context(), Request{
			URL:        server.URL,
			Label:      "my-topic",
			URLContext: "https://canonical.example.com/doc",
		})
		if err != nil {
			t.Fatal(err)
		}
		docs, err := store.ListByLabel(t.Context(), "my-topic")
		if err != nil {
			t.Fatal(err)
		}
		if docs[0].URLContext != "https://canonical.example.com/doc" {
			t.Fatalf("expected explicit url_context to win, got %q", docs[0].URLContext)
		}
	})
}

func TestIngestEmptyBodyProducesNoDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	withIngestor(t, func(ingestor Ingestor, store docstore.Store) {
		result, err := ingestor.Ingest(t.Context(), Request{
			URL:   server.URL,
			Label: "my-topic",
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(result.DocIDs) != 0 {
			t.Fatalf("expected no documents for an empty body, got %d", len(result.DocIDs))
		}
	})
}

func TestIngestFetchErrorPropagates(t *testing.T) {
	withIngestor(t, func(ingestor Ingestor, store docstore.Store) {
		_, err := ingestor.Ingest(t.Context(), Request{
			URL:   "http://127.0.0.1:1/unreachable",
			Label: "my-topic",
		})
		if _, ok := err.(rlmerrors.IngestFailed); !ok {
			t.Fatalf("expected IngestFailed, got %#v", err)
		}
	})
}
