// Package telegraph publishes long texts as telegra.ph pages.
package telegraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/memohai/supportbot/internal/prune"
)

const (
	DefaultBaseURL    = "https://api.telegra.ph"
	DefaultShortName  = "YouTubeBot"
	DefaultAuthorName = "Anonymous"

	maxTitleRunes  = 256
	maxContentSize = 60 * 1024
	errTokenExpiry = "ACCESS_TOKEN_INVALID"
)

// APIError is an unsuccessful Telegraph response.
type APIError struct {
	Method  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegraph %s: %s", e.Method, e.Message)
}

// Node is a Telegraph DOM node: a string or an Element.
type Node any

// Element is a tagged Telegraph node.
type Element struct {
	Tag      string `json:"tag"`
	Children []Node `json:"children,omitempty"`
}

// Client creates pages under one lazily created account. The account token
// is reused until the API reports it invalid, then recreated once.
type Client struct {
	baseURL    string
	shortName  string
	authorName string
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.Mutex
	token string
}

func NewClient(log *slog.Logger, baseURL string) *Client {
	if log == nil {
		log = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		shortName:  DefaultShortName,
		authorName: DefaultAuthorName,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.With(slog.String("service", "telegraph")),
	}
}

// CreatePage publishes content as paragraphs and returns the page URL.
func (c *Client) CreatePage(ctx context.Context, title, content string) (string, error) {
	nodes := ToNodes(prune.SafePrefix(StripMarkdown(content), maxContentSize))
	url, err := c.createPage(ctx, title, nodes)
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Message, errTokenExpiry) {
		c.logger.Warn("telegraph token rejected, creating new account")
		c.resetToken()
		url, err = c.createPage(ctx, title, nodes)
	}
	return url, err
}

func (c *Client) createPage(ctx context.Context, title string, nodes []Node) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}
	var result struct {
		Path string `json:"path"`
		URL  string `json:"url"`
	}
	err = c.call(ctx, "createPage", map[string]any{
		"access_token":   token,
		"title":          prune.Head(title, maxTitleRunes, ""),
		"content":        nodes,
		"return_content": false,
	}, &result)
	if err != nil {
		return "", err
	}
	if result.URL != "" {
		return result.URL, nil
	}
	return "https://telegra.ph/" + result.Path, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	var result struct {
		AccessToken string `json:"access_token"`
	}
	err := c.call(ctx, "createAccount", map[string]any{
		"short_name":  c.shortName,
		"author_name": c.authorName,
	}, &result)
	if err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", &APIError{Method: "createAccount", Message: "empty access token"}
	}
	c.token = result.AccessToken
	c.logger.Info("telegraph account created")
	return c.token, nil
}

func (c *Client) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegraph %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		OK     bool            `json:"ok"`
		Error  string          `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode telegraph %s (status %d): %w", method, resp.StatusCode, err)
	}
	if !envelope.OK {
		return &APIError{Method: method, Message: envelope.Error}
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode telegraph %s result: %w", method, err)
	}
	return nil
}

var (
	markdownHeading = regexp.MustCompile(`(?m)^#{1,3}\s+`)
	markdownBold    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	markdownItalic  = regexp.MustCompile(`\*([^*]+)\*`)
)

// StripMarkdown drops heading markers and bold/italic asterisks.
func StripMarkdown(text string) string {
	text = markdownHeading.ReplaceAllString(text, "")
	text = markdownBold.ReplaceAllString(text, "$1")
	return markdownItalic.ReplaceAllString(text, "$1")
}

// ToNodes renders blank-line separated paragraphs as <p> nodes with <br>
// between their lines.
func ToNodes(text string) []Node {
	nodes := make([]Node, 0)
	for _, para := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		children := make([]Node, 0, len(lines)*2)
		for i, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			children = append(children, line)
			if i < len(lines)-1 {
				children = append(children, Element{Tag: "br"})
			}
		}
		if len(children) > 0 {
			nodes = append(nodes, Element{Tag: "p", Children: children})
		}
	}
	return nodes
}
