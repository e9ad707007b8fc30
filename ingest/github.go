package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/rlmcore/rlmcore/nets"
	"github.com/rlmcore/rlmcore/rlmerrors"
)

// GitHubToken is read from the operator's environment (GITHUB_TOKEN); an
// empty token still works against public repos at a lower rate limit.
type GitHubToken string

const maxFileSize = 1024 * 1024 // 1 MiB, matches the pack's own connector

// knownHost reports whether url points at a known source-hosting
// provider, per §4.3's dispatch rule. GitHub is the only one wired up;
// other providers would slot in beside it the same way.
func knownHost(rawURL string) (owner, repo string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}
	if u.Host != "github.com" && u.Host != "www.github.com" {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

func newGitHubClient(ctx context.Context, token GitHubToken, httpClient nets.HTTPClient) *gh.Client {
	if token == "" {
		return gh.NewClient(httpClient)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: string(token)})
	return gh.NewClient(oauth2.NewClient(ctx, ts))
}

// fetchGitHubRepo enumerates the branch tree and fetches blob content for
// every entry, returning warnings for files skipped for size or a fetch or
// decode error rather than failing the whole ingest (per §4.3's "per-file
// parse error" rule). Files with a binary extension are skipped without a
// warning.
func fetchGitHubRepo(ctx context.Context, client *gh.Client, owner, repo, branch string) ([]rawFile, []string, error) {
	tree, _, err := client.Git.GetTree(ctx, owner, repo, branch, true)
	if err != nil {
		return nil, nil, rlmerrors.IngestFailed{
			URL:    fmt.Sprintf("https://github.com/%s/%s", owner, repo),
			Reason: "fetch tree",
			Err:    err,
		}
	}

	var files []rawFile
	var warnings []string

	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		path := entry.GetPath()

		if isBinaryExtension(path) {
			continue
		}
		if entry.GetSize() > maxFileSize {
			warnings = append(warnings, fmt.Sprintf("skipped %s: exceeds %d bytes", path, maxFileSize))
			continue
		}

		blob, _, err := client.Git.GetBlob(ctx, owner, repo, entry.GetSHA())
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipped %s: %v", path, err))
			continue
		}

		content, err := decodeBlob(blob)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipped %s: %v", path, err))
			continue
		}

		files = append(files, rawFile{path: path, content: content})
	}

	return files, warnings, nil
}

func decodeBlob(blob *gh.Blob) ([]byte, error) {
	if blob.GetEncoding() == "base64" {
		clean := strings.ReplaceAll(blob.GetContent(), "\n", "")
		return base64.StdEncoding.DecodeString(clean)
	}
	return []byte(blob.GetContent()), nil
}
