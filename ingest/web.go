package ingest

import (
	"context"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/rlmcore/rlmcore/nets"
	"github.com/rlmcore/rlmcore/rlmerrors"
)

// fetchWebPage implements the "otherwise" branch of §4.3's dispatch: a
// plain HTTP GET, stripped to its main textual content. This is
// deliberately minimal — no JS rendering, no boilerplate-removal
// heuristics beyond dropping script/style/nav chrome.
func fetchWebPage(ctx context.Context, client nets.HTTPClient, rawURL string) (finalURL string, content []byte, contentType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, "", rlmerrors.IngestFailed{URL: rawURL, Reason: "build request", Err: err}
	}
	req.Header.Set("User-Agent", "rlmcore-ingestor/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", nil, "", rlmerrors.IngestFailed{URL: rawURL, Reason: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, "", rlmerrors.IngestFailed{URL: rawURL, Reason: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024*1024))
	if err != nil {
		return "", nil, "", rlmerrors.IngestFailed{URL: rawURL, Reason: "read body", Err: err}
	}

	ct := resp.Header.Get("Content-Type")
	finalURL = resp.Request.URL.String()

	if strings.Contains(ct, "text/html") {
		text := stripHTML(body)
		return finalURL, text, ct, nil
	}
	return finalURL, body, ct, nil
}

// stripHTML reduces an HTML document to its visible text, dropping
// script/style/nav chrome, via a streaming tokenizer rather than a full
// DOM so it stays cheap for large pages.
func stripHTML(body []byte) []byte {
	tokenizer := html.NewTokenizer(strings.NewReader(string(body)))

	var sb strings.Builder
	skipDepth := 0
	skipTags := map[string]bool{"script": true, "style": true, "nav": true, "noscript": true}

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return []byte(sb.String())

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if skipTags[tag] && tt == html.StartTagToken {
				skipDepth++
			}
			if tag == "p" || tag == "br" || tag == "div" || tag == "li" ||
				strings.HasPrefix(tag, "h") {
				sb.WriteString("\n")
			}

		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if skipTags[tag] && skipDepth > 0 {
				skipDepth--
			}

		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(tokenizer.Text())
			}
		}
	}
}
