package summarize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const maxArticleBytes = 5 << 20

var (
	// ErrNoURL is returned when an argument carries no http(s) URL.
	ErrNoURL = errors.New("no url found")
	// ErrEmptyArticle is returned when extraction produced no text.
	ErrEmptyArticle = errors.New("no readable text found")

	urlPattern = regexp.MustCompile(`https?://\S+`)
)

// FirstURL returns the first http(s) URL in text.
func FirstURL(text string) (string, error) {
	u := urlPattern.FindString(text)
	if u == "" {
		return "", ErrNoURL
	}
	return u, nil
}

// Article is the readable content of a web page.
type Article struct {
	Title string
	Text  string
}

// ArticleExtractor fetches a page and extracts its main text.
type ArticleExtractor interface {
	Extract(ctx context.Context, pageURL string) (Article, error)
}

// ReadabilityExtractor downloads pages over HTTP and runs readability on them.
type ReadabilityExtractor struct {
	httpClient *http.Client
	userAgent  string
}

func NewReadabilityExtractor(timeout time.Duration) *ReadabilityExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ReadabilityExtractor{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "Mozilla/5.0 (compatible; supportbot/1.0)",
	}
}

func (e *ReadabilityExtractor) Extract(ctx context.Context, pageURL string) (Article, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Article{}, ErrNoURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Article{}, err
	}
	req.Header.Set("User-Agent", e.userAgent)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return Article{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Article{}, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxArticleBytes), parsed)
	if err != nil {
		return Article{}, fmt.Errorf("extract article: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return Article{}, ErrEmptyArticle
	}
	return Article{Title: strings.TrimSpace(article.Title), Text: text}, nil
}
