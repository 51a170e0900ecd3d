package spam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const maxExamplesBytes = 1 << 20

// ExampleSource loads spam examples from a URL on first use and refreshes
// them once the TTL has passed. A failed refresh keeps the previous examples.
type ExampleSource struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	examples string
	loadedAt time.Time
	loaded   bool
}

func NewExampleSource(log *slog.Logger, url string, ttl time.Duration) *ExampleSource {
	if log == nil {
		log = slog.Default()
	}
	return &ExampleSource{
		url:        url,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     log.With(slog.String("service", "spam_examples")),
		now:        time.Now,
	}
}

// Examples returns the examples rendered for the prompt.
func (s *ExampleSource) Examples(ctx context.Context) (string, error) {
	if s == nil || s.url == "" {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := s.loaded && (s.ttl <= 0 || s.now().Sub(s.loadedAt) < s.ttl)
	if fresh {
		return s.examples, nil
	}
	examples, err := s.fetch(ctx)
	if err != nil {
		if s.loaded {
			s.logger.Warn("refresh spam examples failed, keeping previous", slog.Any("error", err))
			return s.examples, nil
		}
		return "", err
	}
	s.examples = examples
	s.loadedAt = s.now()
	s.loaded = true
	return s.examples, nil
}

func (s *ExampleSource) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("build examples request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch spam examples: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch spam examples: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxExamplesBytes))
	if err != nil {
		return "", fmt.Errorf("read spam examples: %w", err)
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode spam examples: %w", err)
	}
	compact, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode spam examples: %w", err)
	}
	s.logger.Info("spam examples loaded", slog.Int("bytes", len(compact)))
	return string(compact), nil
}
