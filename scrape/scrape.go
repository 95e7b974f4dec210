package scrape

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
)

const (
	// DefaultMaxChars caps extracted markdown per page.
	DefaultMaxChars = 8192

	// DefaultTimeout bounds one fetch.
	DefaultTimeout = 10 * time.Second

	defaultUserAgent      = "learnpath/1.0 (+https://github.com/c360studio/learnpath)"
	defaultMaxContentSize = 5 * 1024 * 1024 // 5MB raw HTML
)

// Scraper fetches a page and reduces it to markdown. Extraction goes through
// readability first to isolate the article body; pages readability cannot
// handle fall back to whole-page conversion with chrome stripped.
type Scraper struct {
	fetcher   *Fetcher
	converter *converter
	maxChars  int
	logger    *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithMaxChars caps the extracted markdown length in characters.
func WithMaxChars(n int) Option {
	return func(s *Scraper) {
		s.maxChars = n
	}
}

// WithScrapeTimeout sets the per-page fetch timeout.
func WithScrapeTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		s.fetcher = NewFetcher(d, defaultUserAgent, defaultMaxContentSize)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) {
		s.logger = logger
	}
}

// NewScraper creates a scraper with default limits.
func NewScraper(opts ...Option) *Scraper {
	s := &Scraper{
		fetcher:   NewFetcher(DefaultTimeout, defaultUserAgent, defaultMaxContentSize),
		converter: newConverter(),
		maxChars:  DefaultMaxChars,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape fetches urlStr and returns its main content as markdown, truncated
// to the configured character cap.
func (s *Scraper) Scrape(ctx context.Context, urlStr string) (string, error) {
	body, err := s.fetcher.Fetch(ctx, urlStr)
	if err != nil {
		return "", err
	}

	markdown, err := s.extract(body, urlStr)
	if err != nil {
		return "", err
	}
	if markdown == "" {
		return "", fmt.Errorf("no extractable content at %s", urlStr)
	}

	return truncateRunes(markdown, s.maxChars), nil
}

func (s *Scraper) extract(body []byte, urlStr string) (string, error) {
	pageURL, _ := url.Parse(urlStr)

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil && article.Content != "" {
		markdown, convErr := s.converter.convert(article.Content)
		if convErr == nil && markdown != "" {
			return markdown, nil
		}
	}
	if err != nil {
		s.logger.Debug("Readability extraction failed, converting whole page",
			"url", urlStr, "error", err)
	}

	return s.converter.convert(string(body))
}

// truncateRunes cuts s to at most max runes without splitting a rune.
func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
