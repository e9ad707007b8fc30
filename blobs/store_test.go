package blobs

import (
	"io"
	"testing"

	"github.com/reusee/dscope"

	"github.com/rlmcore/rlmcore/rlmerrors"
)

func testStore(t *testing.T) Store {
	t.Helper()
	var store Store
	dscope.New(new(Module)).Fork(dscope.Provide(DataDir(t.TempDir()))).Call(func(s Store) {
		store = s
	})
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := testStore(t)
	hash, err := store.Put([]byte("hello, world"))
	if err != nil {
		t.Fatal(err)
	}
	content, err := store.Get(hash)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "hello, world" {
		t.Fatalf("got %q", content)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	store := testStore(t)
	h1, err := store.Put([]byte("same content"))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := store.Put([]byte("same content"))
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("expected identical hashes, got %s and %s", h1, h2)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := testStore(t)
	_, err := store.Get(Sum([]byte("never written")))
	if _, ok := err.(rlmerrors.NotFound); !ok {
		t.Fatalf("expected NotFound, got %#v", err)
	}
}

func TestExists(t *testing.T) {
	store := testStore(t)
	hash, err := store.Put([]byte("present"))
	if err != nil {
		t.Fatal(err)
	}
	ok, err := store.Exists(hash)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected true")
	}
	ok, err = store.Exists(Sum([]byte("absent")))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected false")
	}
}

func TestReaderStreams(t *testing.T) {
	store := testStore(t)
	hash, err := store.Put([]byte("streamed content"))
	if err != nil {
		t.Fatal(err)
	}
	r, err := store.Reader(hash)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	content, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "streamed content" {
		t.Fatalf("got %q", content)
	}
}
