package rlm

import "regexp"

var markdownLinkPattern = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)\)`)

// extractCitedURLs scans text for markdown links and returns their URLs
// in first-seen order, deduplicated.
func extractCitedURLs(text string) []string {
	matches := markdownLinkPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	var urls []string
	for _, m := range matches {
		url := m[1]
		if seen[url] {
			continue
		}
		seen[url] = true
		urls = append(urls, url)
	}
	return urls
}
