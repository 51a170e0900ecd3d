// Package summarize produces summaries of free text, web articles and
// YouTube transcripts.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/memohai/supportbot/internal/chat"
	"github.com/memohai/supportbot/internal/conversation"
)

const (
	DefaultPieceTokens = 3000
	pageSeparatorWidth = 50
)

// Publisher creates a public page and returns its URL.
type Publisher interface {
	CreatePage(ctx context.Context, title, content string) (string, error)
}

// Models names the completion model used by each step.
type Models struct {
	Main       string
	Summarizer string
	Transcript string
}

// Options configures a Service.
type Options struct {
	Models      Models
	Languages   []string
	PieceTokens int
	MaxTokens   int
}

// Service runs summaries through a chat provider.
type Service struct {
	provider    chat.Provider
	tokenizer   conversation.Tokenizer
	articles    ArticleExtractor
	transcripts TranscriptSource
	publisher   Publisher
	opts        Options
	logger      *slog.Logger
}

func NewService(log *slog.Logger, provider chat.Provider, tok conversation.Tokenizer, articles ArticleExtractor, transcripts TranscriptSource, publisher Publisher, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	if tok == nil {
		tok = conversation.EstimateTokenizer{}
	}
	if opts.PieceTokens <= 0 {
		opts.PieceTokens = DefaultPieceTokens
	}
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"en", "ru"}
	}
	if opts.Models.Summarizer == "" {
		opts.Models.Summarizer = opts.Models.Main
	}
	if opts.Models.Transcript == "" {
		opts.Models.Transcript = opts.Models.Main
	}
	return &Service{
		provider:    provider,
		tokenizer:   tok,
		articles:    articles,
		transcripts: transcripts,
		publisher:   publisher,
		opts:        opts,
		logger:      log.With(slog.String("service", "summarize")),
	}
}

// Text summarizes text in a single completion.
func (s *Service) Text(ctx context.Context, text string) (string, error) {
	out, err := chat.Ask(ctx, s.provider, s.opts.Models.Main, "", TextPrompt(text), s.opts.MaxTokens)
	if err != nil {
		return "", fmt.Errorf("summarize text: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// URL extracts the article behind the first URL in arg and summarizes it.
func (s *Service) URL(ctx context.Context, arg string) (string, error) {
	pageURL, err := FirstURL(arg)
	if err != nil {
		return "", err
	}
	if s.articles == nil {
		return "", errors.New("article extraction not configured")
	}
	article, err := s.articles.Extract(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return s.summarizeLong(ctx, article.Text)
}

// summarizeLong splits text into token-bounded pieces, summarizes each and
// combines the partial summaries with one more pass.
func (s *Service) summarizeLong(ctx context.Context, text string) (string, error) {
	pieces := SplitTokens(text, s.opts.PieceTokens, s.tokenizer)
	if len(pieces) == 0 {
		return "", ErrEmptyArticle
	}
	partials := make([]string, 0, len(pieces))
	for i, piece := range pieces {
		out, err := chat.Ask(ctx, s.provider, s.opts.Models.Summarizer, "", KeyIdeasPrompt(piece), s.opts.MaxTokens)
		if err != nil {
			return "", fmt.Errorf("summarize piece %d/%d: %w", i+1, len(pieces), err)
		}
		partials = append(partials, strings.TrimSpace(out))
	}
	if len(partials) == 1 {
		return partials[0], nil
	}
	s.logger.Debug("combining partial summaries", slog.Int("pieces", len(partials)))
	out, err := chat.Ask(ctx, s.provider, s.opts.Models.Summarizer, "", KeyIdeasPrompt(strings.Join(partials, "\n\n")), s.opts.MaxTokens)
	if err != nil {
		return "", fmt.Errorf("combine summaries: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// VideoSummary is the outcome of a YouTube summary.
type VideoSummary struct {
	VideoID        string
	Summary        string
	TranscriptPage string
	SummaryPage    string
}

// YouTube summarizes the transcript of the video linked in arg and publishes
// the transcript and summary. Publishing failures leave the page URLs empty.
func (s *Service) YouTube(ctx context.Context, arg string) (VideoSummary, error) {
	rawURL, err := FirstURL(arg)
	if err != nil {
		rawURL = strings.TrimSpace(arg)
	}
	videoID, err := VideoID(rawURL)
	if err != nil {
		return VideoSummary{}, err
	}
	if s.transcripts == nil {
		return VideoSummary{}, errors.New("transcripts not configured")
	}
	transcript, err := s.transcripts.Transcript(ctx, videoID, s.opts.Languages)
	if err != nil {
		return VideoSummary{}, err
	}
	logger := s.logger.With(slog.String("video_id", videoID), slog.String("language", transcript.Language))

	cleaned, err := chat.Ask(ctx, s.provider, s.opts.Models.Transcript, "", TranslatePrompt(transcript.Text), 0)
	if err != nil {
		logger.Warn("transcript cleanup failed, using raw text", slog.Any("error", err))
		cleaned = transcript.Text
	}
	cleaned = strings.TrimSpace(cleaned)

	summary, err := s.summarizeLong(ctx, cleaned)
	if err != nil {
		return VideoSummary{}, err
	}
	result := VideoSummary{VideoID: videoID, Summary: summary}
	if s.publisher == nil {
		return result, nil
	}
	if u, err := s.publisher.CreatePage(ctx, "YouTube Transcript: "+videoID, TranscriptPage(summary, cleaned)); err != nil {
		logger.Warn("publish transcript page failed", slog.Any("error", err))
	} else {
		result.TranscriptPage = u
	}
	if u, err := s.publisher.CreatePage(ctx, "YouTube Summary: "+videoID, summary); err != nil {
		logger.Warn("publish summary page failed", slog.Any("error", err))
	} else {
		result.SummaryPage = u
	}
	return result, nil
}

// Reply renders a VideoSummary as a chat message.
func (v VideoSummary) Reply() string {
	var b strings.Builder
	b.WriteString("Summary:\n\n")
	b.WriteString(v.Summary)
	if v.TranscriptPage != "" {
		b.WriteString("\n\nFull transcript: ")
		b.WriteString(v.TranscriptPage)
	}
	if v.SummaryPage != "" {
		b.WriteString("\nSummary page: ")
		b.WriteString(v.SummaryPage)
	}
	return b.String()
}

func TextPrompt(text string) string {
	return "Make a summary of the following text:\n\n" + text + "\n\n"
}

func KeyIdeasPrompt(text string) string {
	return "Write top 5 key ideas and a concise summary of the following:\n\"" + text + "\"\nTOP 5 KEY IDEAS:\nCONCISE SUMMARY:"
}

func TranslatePrompt(text string) string {
	return "Translate the following YouTube transcript to English. If already in English, improve grammar and readability while preserving meaning:\n\n" + text
}

func TranscriptPage(summary, transcript string) string {
	return "SUMMARY\n\n" + summary + "\n\n" + strings.Repeat("=", pageSeparatorWidth) + "\n\nFULL TRANSCRIPT\n\n" + transcript
}

// SplitTokens splits text on whitespace into pieces of at most maxTokens
// tokens each. A single word larger than maxTokens forms its own piece.
func SplitTokens(text string, maxTokens int, tok conversation.Tokenizer) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxTokens <= 0 {
		return []string{strings.Join(words, " ")}
	}
	var (
		pieces  []string
		current []string
		used    int
	)
	for _, w := range words {
		n := tok.CountTokens(w)
		if len(current) > 0 && used+n > maxTokens {
			pieces = append(pieces, strings.Join(current, " "))
			current, used = nil, 0
		}
		current = append(current, w)
		used += n
	}
	if len(current) > 0 {
		pieces = append(pieces, strings.Join(current, " "))
	}
	return pieces
}
