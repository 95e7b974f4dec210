package course

import (
	"fmt"
	"strings"
)

// SearchQuery is a single web-search intent produced by a research stage.
type SearchQuery struct {
	Keywords  string `json:"keywords"`
	Rationale string `json:"rationale"`
}

// SearchItem is one hit returned for a query.
type SearchItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
}

// SearchResult carries the outcome of executing one SearchQuery. On transport
// failure Err holds an error marker and Items is empty; the run proceeds
// either way. The tagged representation keeps the two outcomes distinct
// instead of overloading one field with both a list and a string.
type SearchResult struct {
	Query     string       `json:"query"`
	Rationale string       `json:"rationale"`
	Items     []SearchItem `json:"items,omitempty"`
	Err       string       `json:"error,omitempty"`
}

// Failed reports whether the search produced an error marker instead of items.
func (r SearchResult) Failed() bool {
	return r.Err != ""
}

// FormatForPrompt renders the result the way authoring prompts consume it:
// query, rationale, then items or the error marker.
func (r SearchResult) FormatForPrompt(maxContentChars int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\nRationale: %s\n", r.Query, r.Rationale)
	if r.Failed() {
		fmt.Fprintf(&sb, "Results: search failed: %s\n", r.Err)
		return sb.String()
	}
	for i, item := range r.Items {
		content := item.Content
		if maxContentChars > 0 && len(content) > maxContentChars {
			content = content[:maxContentChars] + "..."
		}
		fmt.Fprintf(&sb, "Result %d: %s (%s)\n%s\n", i+1, item.Title, item.URL, content)
	}
	return sb.String()
}

// DeduplicateByURL returns results with duplicate item URLs removed across the
// whole slice, first occurrence winning. Query order and error markers are
// preserved.
func DeduplicateByURL(results []SearchResult) []SearchResult {
	seen := make(map[string]bool)
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.Failed() {
			out = append(out, r)
			continue
		}
		kept := make([]SearchItem, 0, len(r.Items))
		for _, item := range r.Items {
			if item.URL != "" && seen[item.URL] {
				continue
			}
			if item.URL != "" {
				seen[item.URL] = true
			}
			kept = append(kept, item)
		}
		r.Items = kept
		out = append(out, r)
	}
	return out
}
