// Package command routes bot messages to command handlers and the freeform
// chat flow.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/memohai/supportbot/internal/chat"
	"github.com/memohai/supportbot/internal/conversation"
	"github.com/memohai/supportbot/internal/message"
	"github.com/memohai/supportbot/internal/summarize"
)

// ErrMissingArgument is returned by handlers that need text after the command.
var ErrMissingArgument = errors.New("missing argument")

const (
	apologyText      = "Sorry, something went wrong. Please try again later."
	parseModeMDV2    = "MarkdownV2"
	defaultHistory   = 100
	defaultBudget    = 4096
	noSuchCommandFmt = "No such command: %s"
)

const helpText = "Hello\\! I'm a support bot with the following commands:\n\n" +
	"💬 *Regular chat* \\- just send me a message\n" +
	"🔄 /echo \\<text\\> \\- echo your message\n\n" +
	"📄 *Other Commands:*\n" +
	"📝 /summary \\<text\\> \\- summarize text\n" +
	"🌐 /summary\\_url \\<url\\> \\- summarize article from URL\n" +
	"📺 /summary\\_youtube \\<url\\> \\- summarize YouTube video\n" +
	"🤖 /prompt \\<text\\> \\- direct OpenAI prompt"

// Replier sends a reply into a chat.
type Replier interface {
	Reply(ctx context.Context, chatID int64, text, parseMode string) error
}

// Summarizer is the summarization surface used by the summary commands.
type Summarizer interface {
	Text(ctx context.Context, text string) (string, error)
	URL(ctx context.Context, arg string) (string, error)
	YouTube(ctx context.Context, arg string) (summarize.VideoSummary, error)
}

// Incoming is a text message addressed to the bot.
type Incoming struct {
	ChatID int64
	Text   string
}

// Config tunes the chat flow.
type Config struct {
	Model        string
	ContextSize  int
	HistoryLimit int
}

type handlerFunc func(ctx context.Context, in Incoming, arg string) error

type route struct {
	name    string
	usage   string
	needArg bool
	handle  handlerFunc
}

// Router dispatches messages by command prefix. Longer command names are
// tried first so /summary_url never matches /summary.
type Router struct {
	replier    Replier
	provider   chat.Provider
	summarizer Summarizer
	store      message.Store
	tokenizer  conversation.Tokenizer
	cfg        Config
	routes     []route
	logger     *slog.Logger
}

func NewRouter(log *slog.Logger, cfg Config, replier Replier, provider chat.Provider, summarizer Summarizer, store message.Store, tok conversation.Tokenizer) *Router {
	if log == nil {
		log = slog.Default()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistory
	}
	if cfg.ContextSize <= 0 {
		cfg.ContextSize = defaultBudget
	}
	if tok == nil {
		tok = conversation.EstimateTokenizer{}
	}
	r := &Router{
		replier:    replier,
		provider:   provider,
		summarizer: summarizer,
		store:      store,
		tokenizer:  tok,
		cfg:        cfg,
		logger:     log.With(slog.String("service", "command")),
	}
	r.routes = []route{
		{name: "/start", handle: r.handleStart},
		{name: "/echo", usage: "/echo <text>", needArg: true, handle: r.handleEcho},
		{name: "/summary_url", usage: "/summary_url <url>", needArg: true, handle: r.handleSummaryURL},
		{name: "/summary_youtube", usage: "/summary_youtube <url>", needArg: true, handle: r.handleSummaryYouTube},
		{name: "/summary", usage: "/summary <text>", needArg: true, handle: r.handleSummary},
		{name: "/prompt", usage: "/prompt <text>", needArg: true, handle: r.handlePrompt},
	}
	sort.SliceStable(r.routes, func(i, j int) bool {
		return len(r.routes[i].name) > len(r.routes[j].name)
	})
	return r
}

// Handle processes one message. Handler failures are answered in the chat;
// the returned error is for logging only.
func (r *Router) Handle(ctx context.Context, in Incoming) error {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil
	}
	logger := r.logger.With(slog.Int64("chat_id", in.ChatID))

	if !strings.HasPrefix(text, "/") {
		logger.Info("freeform message received")
		return r.answer(ctx, in, r.handleChat(ctx, in))
	}
	for _, rt := range r.routes {
		arg, ok := matchCommand(text, rt.name)
		if !ok {
			continue
		}
		logger.Info("command received", slog.String("command", rt.name))
		if rt.needArg && arg == "" {
			return r.answer(ctx, in, &usageError{usage: rt.usage})
		}
		return r.answer(ctx, in, rt.handle(ctx, in, arg))
	}
	name := commandName(text)
	logger.Info("unknown command", slog.String("command", name))
	return r.reply(ctx, in.ChatID, fmt.Sprintf(noSuchCommandFmt, name), "")
}

type usageError struct {
	usage string
}

func (e *usageError) Error() string { return e.usage + ": " + ErrMissingArgument.Error() }

func (e *usageError) Unwrap() error { return ErrMissingArgument }

// answer converts a handler error into a user facing reply.
func (r *Router) answer(ctx context.Context, in Incoming, err error) error {
	if err == nil {
		return nil
	}
	text := apologyText
	var usage *usageError
	switch {
	case errors.As(err, &usage):
		text = "Usage: " + usage.usage
	case errors.Is(err, summarize.ErrNoURL):
		text = "Please provide a valid URL."
	case errors.Is(err, summarize.ErrNotYouTube):
		text = "Please provide a valid YouTube URL."
	case errors.Is(err, summarize.ErrNoTranscript):
		text = "No transcript is available for this video."
	case errors.Is(err, summarize.ErrEmptyArticle):
		text = "Could not extract any text from that page."
	}
	if replyErr := r.reply(ctx, in.ChatID, text, ""); replyErr != nil {
		return errors.Join(err, replyErr)
	}
	return err
}

func (r *Router) reply(ctx context.Context, chatID int64, text, parseMode string) error {
	if err := r.replier.Reply(ctx, chatID, text, parseMode); err != nil {
		return fmt.Errorf("reply to chat %d: %w", chatID, err)
	}
	return nil
}

// matchCommand reports whether text invokes name, allowing a trailing
// "@botname", and returns the argument after the first whitespace.
func matchCommand(text, name string) (string, bool) {
	if !strings.HasPrefix(text, name) {
		return "", false
	}
	rest := text[len(name):]
	if strings.HasPrefix(rest, "@") {
		i := strings.IndexAny(rest, " \t\n")
		if i < 0 {
			return "", true
		}
		rest = rest[i:]
	}
	if rest == "" {
		return "", true
	}
	switch rest[0] {
	case ' ', '\t', '\n':
		return strings.TrimSpace(rest), true
	}
	return "", false
}

func commandName(text string) string {
	name := strings.TrimPrefix(text, "/")
	if i := strings.IndexAny(name, " \t\n"); i >= 0 {
		name = name[:i]
	}
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	return name
}
