package scrape

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertPrefersMainElement(t *testing.T) {
	c := newConverter()

	page := `<html><body>
		<nav><a href="/">Home</a><a href="/about">About</a></nav>
		<main><h1>Goroutines</h1><p>A goroutine is a lightweight thread.</p></main>
		<footer>Copyright</footer>
	</body></html>`

	got, err := c.convert(page)
	require.NoError(t, err)

	assert.Contains(t, got, "# Goroutines")
	assert.Contains(t, got, "lightweight thread")
	assert.NotContains(t, got, "Home")
	assert.NotContains(t, got, "Copyright")
}

func TestConvertStripsChromeWithoutMain(t *testing.T) {
	c := newConverter()

	page := `<html><body>
		<div class="navbar">Menu</div>
		<div><h2>Content</h2><p>Body text.</p></div>
		<div class="advertisement">Buy now</div>
		<script>alert(1)</script>
	</body></html>`

	got, err := c.convert(page)
	require.NoError(t, err)

	assert.Contains(t, got, "Content")
	assert.Contains(t, got, "Body text.")
	assert.NotContains(t, got, "Menu")
	assert.NotContains(t, got, "Buy now")
	assert.NotContains(t, got, "alert")
}

func TestConvertGitHubFlavoredTables(t *testing.T) {
	c := newConverter()

	page := `<main><table>
		<tr><th>Name</th><th>Value</th></tr>
		<tr><td>a</td><td>1</td></tr>
	</table></main>`

	got, err := c.convert(page)
	require.NoError(t, err)

	assert.Contains(t, got, "|")
	assert.Contains(t, got, "Name")
}

func TestCleanMarkdownCollapsesBlankRuns(t *testing.T) {
	in := "a\n\n\n\n\n\nb   \nc\t\n"
	got := cleanMarkdown(in)

	assert.NotContains(t, got, "\n\n\n\n")
	assert.Contains(t, got, "b\nc")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", truncateRunes("héllo", 10))
	assert.Equal(t, "hé", truncateRunes("héllo", 2))
	assert.Equal(t, "héllo", truncateRunes("héllo", 0), "zero cap means no limit")
}

func TestExtractReadabilityWithFallback(t *testing.T) {
	s := NewScraper(WithMaxChars(100))

	body := `<html><body><main><h1>Title</h1><p>` +
		strings.Repeat("content ", 50) + `</p></main></body></html>`

	got, err := s.extract([]byte(body), "https://example.com/article")
	require.NoError(t, err)
	assert.Contains(t, got, "content")

	// A fragment readability cannot treat as an article still converts.
	got, err = s.extract([]byte("<div><p>bare fragment</p></div>"), "https://example.com/x")
	require.NoError(t, err)
	assert.Contains(t, got, "bare fragment")
}

func TestScrapeRejectsPrivateURL(t *testing.T) {
	s := NewScraper()
	_, err := s.Scrape(context.Background(), "http://169.254.169.254/latest/meta-data")
	assert.Error(t, err)
}
