// Package blobs implements the ContentStore: a content-addressed,
// deduplicating blob store keyed by a cryptographic digest of the raw
// bytes. Two inputs colliding on digest is a fatal correctness bug, not a
// recoverable condition, per the store's contract.
package blobs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/reusee/dscope"
	"github.com/reusee/e5"

	"github.com/rlmcore/rlmcore/logs"
	"github.com/rlmcore/rlmcore/rlmerrors"
)

type Module struct {
	dscope.Module
	Logs logs.Module
}

// Hash is a hex-encoded SHA-256 digest, the ContentStore's key type.
type Hash string

// Store is the ContentStore: put is idempotent, get/exists key by Hash.
type Store struct {
	dir string
}

func (Module) Store(
	dataDir DataDir,
) (Store, error) {
	dir := filepath.Join(string(dataDir), "docs", "blobs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Store{}, e5.Wrap(err)
	}
	return Store{dir: dir}, nil
}

// DataDir is the root of the persistent state layout (default ./data).
type DataDir string

func (Module) DataDir() DataDir {
	return "./data"
}

func Sum(content []byte) Hash {
	sum := sha256.Sum256(content)
	return Hash(hex.EncodeToString(sum[:]))
}

func (s Store) path(hash Hash) string {
	h := string(hash)
	// two-level fan-out so a single directory never holds too many entries
	if len(h) < 4 {
		return filepath.Join(s.dir, h)
	}
	return filepath.Join(s.dir, h[:2], h[2:4], h)
}

// Put writes content if not already present and returns its digest.
// Idempotent: putting byte-identical content twice is a no-op the second
// time. If an entry already exists for the computed hash, its on-disk
// bytes are trusted without a re-read: a mismatch there would mean SHA-256
// collided, which §4.1 treats as a fatal bug elsewhere, not something this
// call should paper over by silently overwriting.
func (s Store) Put(content []byte) (Hash, error) {
	hash := Sum(content)
	path := s.path(hash)

	if _, err := os.Stat(path); err == nil {
		return hash, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", e5.Wrap(err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", e5.Wrap(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return "", e5.Wrap(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", e5.Wrap(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", e5.Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return "", e5.Wrap(err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return "", e5.Wrap(err)
	}

	return hash, nil
}

func (s Store) Get(hash Hash) ([]byte, error) {
	content, err := os.ReadFile(s.path(hash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, rlmerrors.NotFound{Kind: "blob", Key: string(hash)}
		}
		return nil, e5.Wrap(err)
	}
	return content, nil
}

func (s Store) Exists(hash Hash) (bool, error) {
	_, err := os.Stat(s.path(hash))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, e5.Wrap(err)
}

// Reader streams a blob instead of loading it whole.
func (s Store) Reader(hash Hash) (io.ReadCloser, error) {
	f, err := os.Open(s.path(hash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, rlmerrors.NotFound{Kind: "blob", Key: string(hash)}
		}
		return nil, e5.Wrap(err)
	}
	return f, nil
}

func (s Store) String() string {
	return fmt.Sprintf("blobs.Store(%s)", s.dir)
}
