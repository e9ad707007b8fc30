package docstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/e5"
	_ "modernc.org/sqlite"

	"github.com/rlmcore/rlmcore/blobs"
	"github.com/rlmcore/rlmcore/logs"
	"github.com/rlmcore/rlmcore/rlmerrors"
)

type Module struct {
	dscope.Module
	Blobs blobs.Module
	Logs  logs.Module
}

const maxSearchHits = 20
const snippetRadius = 100 // ≤200 chars centered on the match

// Store is the DocumentStore. Reads go straight to the sqlite connection
// (modernc.org/sqlite gives each *sql.DB connection its own read snapshot
// under WAL); writes to a given label are serialized through labelLocks so
// two concurrent ingests of the same topic can't interleave.
type Store struct {
	db         *sql.DB
	labelLocks *keyedMutex
}

func (Module) Store(
	dataDir blobs.DataDir,
	logger logs.Logger,
) (Store, error) {
	dir := filepath.Join(string(dataDir), "docs", "index")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Store{}, e5.Wrap(err)
	}
	path := filepath.Join(dir, "index.db")

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return Store{}, e5.Wrap(err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return Store{}, e5.Wrap(err)
	}

	logger.Info("docstore opened", "path", path)

	return Store{db: db, labelLocks: newKeyedMutex()}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id       TEXT PRIMARY KEY,
	label        TEXT NOT NULL,
	source_url   TEXT NOT NULL,
	path         TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	doc_type     TEXT NOT NULL,
	url_context  TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	seq          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_label ON documents(label, seq);

CREATE TABLE IF NOT EXISTS excerpts (
	doc_id       TEXT NOT NULL,
	ordinal      INTEGER NOT NULL,
	heading_path TEXT NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset   INTEGER NOT NULL,
	text         TEXT NOT NULL,
	PRIMARY KEY (doc_id, ordinal)
);

CREATE TABLE IF NOT EXISTS qa_records (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	topic            TEXT NOT NULL,
	question         TEXT NOT NULL,
	answer           TEXT NOT NULL,
	cited_urls       TEXT NOT NULL,
	iterations       INTEGER NOT NULL,
	script_calls     INTEGER NOT NULL,
	truncated        INTEGER NOT NULL,
	candidate_hashes TEXT NOT NULL,
	ts               INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS seq_counter (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`
	_, err := db.Exec(schema)
	return err
}

// DocID derives the stable identifier from (label, source_url, path).
func DocID(label, sourceURL, path string) string {
	h := sha256.Sum256([]byte(label + "\x00" + sourceURL + "\x00" + path))
	return hex.EncodeToString(h[:])
}

// Insert atomically writes a Document's metadata and excerpts, referencing
// the content hash already committed to the ContentStore. If a document
// already exists under the same (label, source_url, path) identity key, it
// is superseded in the same transaction: documents are never mutated in
// place, but the stable DocID means a re-ingest replaces rather than
// duplicates the row.
func (s Store) Insert(ctx context.Context, doc Document, excerpts []Excerpt) (string, error) {
	if doc.DocID == "" {
		doc.DocID = DocID(doc.Label, doc.SourceURL, doc.Path)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	unlock := s.labelLocks.lock(doc.Label)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", e5.Wrap(err)
	}
	defer tx.Rollback()

	var seq int64
	row := tx.QueryRowContext(ctx, `SELECT value FROM seq_counter WHERE name = 'documents'`)
	if err := row.Scan(&seq); err != nil {
		if err != sql.ErrNoRows {
			return "", e5.Wrap(err)
		}
	}
	seq++
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO seq_counter(name, value) VALUES ('documents', ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, seq); err != nil {
		return "", e5.Wrap(err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM excerpts WHERE doc_id = ?`, doc.DocID); err != nil {
		return "", e5.Wrap(err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (doc_id, label, source_url, path, content_hash, doc_type, url_context, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			label = excluded.label,
			source_url = excluded.source_url,
			path = excluded.path,
			content_hash = excluded.content_hash,
			doc_type = excluded.doc_type,
			url_context = excluded.url_context,
			created_at = excluded.created_at,
			seq = excluded.seq
	`,
		doc.DocID, doc.Label, doc.SourceURL, doc.Path, doc.ContentHash,
		string(doc.DocType), doc.URLContext, doc.CreatedAt.UnixNano(), seq,
	); err != nil {
		return "", e5.Wrap(err)
	}

	for _, ex := range excerpts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO excerpts (doc_id, ordinal, heading_path, start_offset, end_offset, text)
			VALUES (?, ?, ?, ?, ?, ?)
		`, doc.DocID, ex.Ordinal, ex.HeadingPath, ex.StartOffset, ex.EndOffset, ex.Text); err != nil {
			return "", e5.Wrap(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", e5.Wrap(err)
	}

	return doc.DocID, nil
}

func (s Store) ListByLabel(ctx context.Context, label string) ([]DocSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, path, label, source_url, url_context FROM documents
		WHERE label = ? ORDER BY seq ASC
	`, label)
	if err != nil {
		return nil, e5.Wrap(err)
	}
	defer rows.Close()

	var out []DocSummary
	for rows.Next() {
		var d DocSummary
		if err := rows.Scan(&d.DocID, &d.Path, &d.Label, &d.SourceURL, &d.URLContext); err != nil {
			return nil, e5.Wrap(err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type LabelCount struct {
	Label string
	Count int
}

func (s Store) ListLabels(ctx context.Context) ([]LabelCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, COUNT(*) FROM documents GROUP BY label ORDER BY label ASC
	`)
	if err != nil {
		return nil, e5.Wrap(err)
	}
	defer rows.Close()

	var out []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, e5.Wrap(err)
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

func (s Store) Get(ctx context.Context, docID string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT doc_id, label, source_url, path, content_hash, doc_type, url_context, created_at
		FROM documents WHERE doc_id = ?
	`, docID)

	var d Document
	var docType string
	var createdAtNanos int64
	if err := row.Scan(&d.DocID, &d.Label, &d.SourceURL, &d.Path, &d.ContentHash, &docType, &d.URLContext, &createdAtNanos); err != nil {
		if err == sql.ErrNoRows {
			return Document{}, rlmerrors.NotFound{Kind: "document", Key: docID}
		}
		return Document{}, e5.Wrap(err)
	}
	d.DocType = DocType(docType)
	d.CreatedAt = time.Unix(0, createdAtNanos)
	return d, nil
}

func (s Store) Excerpts(ctx context.Context, docID string) ([]Excerpt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, heading_path, start_offset, end_offset, text
		FROM excerpts WHERE doc_id = ? ORDER BY ordinal ASC
	`, docID)
	if err != nil {
		return nil, e5.Wrap(err)
	}
	defer rows.Close()

	var out []Excerpt
	for rows.Next() {
		var ex Excerpt
		if err := rows.Scan(&ex.Ordinal, &ex.HeadingPath, &ex.StartOffset, &ex.EndOffset, &ex.Text); err != nil {
			return nil, e5.Wrap(err)
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// Search performs a case-insensitive substring scan over a document's
// excerpt text, capped at maxSearchHits hits with snippets of at most
// 2*snippetRadius characters centered on the match (plus a "…" marker on
// each side where the excerpt text was clipped).
func (s Store) Search(ctx context.Context, docID, needle string) ([]SearchHit, error) {
	excerpts, err := s.Excerpts(ctx, docID)
	if err != nil {
		return nil, err
	}
	if needle == "" {
		return nil, nil
	}

	lowerNeedle := strings.ToLower(needle)
	var hits []SearchHit
	for _, ex := range excerpts {
		lowerText := strings.ToLower(ex.Text)
		idx := strings.Index(lowerText, lowerNeedle)
		if idx < 0 {
			continue
		}
		hits = append(hits, SearchHit{
			Ordinal: ex.Ordinal,
			Snippet: centeredSnippet(ex.Text, idx, len(needle)),
		})
		if len(hits) >= maxSearchHits {
			break
		}
	}
	return hits, nil
}

func centeredSnippet(text string, matchStart, matchLen int) string {
	runes := []rune(text)
	// matchStart/matchLen are byte offsets from strings.Index; re-find in
	// rune space to avoid slicing mid-rune on non-ASCII content.
	byteToRune := make(map[int]int, len(runes)+1)
	pos := 0
	for i, r := range text {
		byteToRune[i] = pos
		_ = r
		pos++
	}
	byteToRune[len(text)] = pos

	startRune := byteToRune[matchStart]
	endRune := byteToRune[matchStart+matchLen]

	pad := (2*snippetRadius - (endRune - startRune)) / 2
	if pad < 0 {
		pad = 0
	}
	lo := startRune - pad
	if lo < 0 {
		lo = 0
	}
	hi := lo + 2*snippetRadius
	if hi > len(runes) {
		hi = len(runes)
	}
	snippet := string(runes[lo:hi])
	if lo > 0 {
		snippet = "…" + snippet
	}
	if hi < len(runes) {
		snippet = snippet + "…"
	}
	return snippet
}

func (s Store) RecordQA(ctx context.Context, qa QaRecord) error {
	citedJSON, err := json.Marshal(qa.CitedURLs)
	if err != nil {
		return e5.Wrap(err)
	}
	candJSON, err := json.Marshal(qa.CandidateHashes)
	if err != nil {
		return e5.Wrap(err)
	}
	if qa.Timestamp.IsZero() {
		qa.Timestamp = time.Now()
	}

	truncated := 0
	if qa.Truncated {
		truncated = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO qa_records (topic, question, answer, cited_urls, iterations, script_calls, truncated, candidate_hashes, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, qa.Topic, qa.Question, qa.Answer, string(citedJSON), qa.Iterations, qa.ScriptCalls, truncated, string(candJSON), qa.Timestamp.UnixNano())
	if err != nil {
		return e5.Wrap(err)
	}
	return nil
}

// Wipe deletes all documents (and their excerpts) under a label, or a
// single document by doc_id when label is empty. The underlying blob is
// left to the ContentStore; docstore only ever references it by hash.
func (s Store) Wipe(ctx context.Context, label, docID string) error {
	if label != "" {
		unlock := s.labelLocks.lock(label)
		defer unlock()

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return e5.Wrap(err)
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx, `SELECT doc_id FROM documents WHERE label = ?`, label)
		if err != nil {
			return e5.Wrap(err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return e5.Wrap(err)
			}
			ids = append(ids, id)
		}
		rows.Close()

		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM excerpts WHERE doc_id = ?`, id); err != nil {
				return e5.Wrap(err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE label = ?`, label); err != nil {
			return e5.Wrap(err)
		}
		return e5.Wrap(tx.Commit())
	}

	if docID == "" {
		return fmt.Errorf("wipe requires a label or a doc_id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return e5.Wrap(err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM excerpts WHERE doc_id = ?`, docID); err != nil {
		return e5.Wrap(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ?`, docID); err != nil {
		return e5.Wrap(err)
	}
	return e5.Wrap(tx.Commit())
}

func (s Store) Close() error {
	return s.db.Close()
}

// keyedMutex hands out a per-key mutex, lazily created, so writes to
// different labels never block each other.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = new(sync.Mutex)
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
