package newsletter

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/memohai/supportbot/internal/chat"
	"github.com/memohai/supportbot/internal/email"
	"github.com/memohai/supportbot/internal/prune"
)

const (
	// SummaryFailedText replaces a sender summary that could not be generated.
	SummaryFailedText = "Error generating summary"

	DefaultMaxTokens = 200

	maxItemsPerSender = 10
	maxBodyRunes      = 1500
	maxLinksPerItem   = 5
	timeLayout        = "2006-01-02 15:04"
)

const summarySystemPrompt = "Summarize the key news from these emails as bullet points. " +
	"Use • for each main point. Focus on the most important topics and information. " +
	"Keep it concise with 3-5 bullet points maximum."

const analysisInstructions = `
ANALYSIS INSTRUCTIONS:
- Summarize ALL informational and educational content, including technical blog posts
- Extract key insights, tutorials, technical developments, and industry updates
- Include product updates, tool releases, and technical announcements
- For mixed content (educational + promotional), focus on the valuable information
- Consolidate related information from multiple emails
- Provide specific details like dates, numbers, companies, technologies, and facts
- Technical deep dives and blog posts should ALWAYS be included and summarized
- Only skip content that is purely promotional with zero educational value
`

// UnitKind tells header units from per-sender units.
type UnitKind string

const (
	UnitHeader UnitKind = "header"
	UnitSender UnitKind = "sender"
)

// Unit is one Telegram HTML message of a digest.
type Unit struct {
	Kind   UnitKind
	Sender string
	Text   string
}

// SenderGroup holds the items of one sender key.
type SenderGroup struct {
	Sender string
	Items  []email.Item
}

// GroupBySender buckets items by email.SenderKey, ordered by first appearance.
func GroupBySender(items []email.Item) []SenderGroup {
	index := make(map[string]int)
	groups := make([]SenderGroup, 0)
	for _, item := range items {
		key := email.SenderKey(item.Sender)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, SenderGroup{Sender: key})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}

// Texts returns the message texts in order.
func Texts(units []Unit) []string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		out = append(out, u.Text)
	}
	return out
}

// Composer turns sender groups into digest units using a completion model.
type Composer struct {
	provider  chat.Provider
	model     string
	maxTokens int
	logger    *slog.Logger
	now       func() time.Time
}

func NewComposer(log *slog.Logger, provider chat.Provider, model string, maxTokens int) *Composer {
	if log == nil {
		log = slog.Default()
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Composer{
		provider:  provider,
		model:     model,
		maxTokens: maxTokens,
		logger:    log.With(slog.String("service", "newsletter_composer")),
		now:       time.Now,
	}
}

// Compose returns one header unit followed by one unit per group. A failed
// summary yields SummaryFailedText for that sender only.
func (c *Composer) Compose(ctx context.Context, groups []SenderGroup, lookbackDays int) []Unit {
	total := 0
	for _, g := range groups {
		total += len(g.Items)
	}
	units := make([]Unit, 0, len(groups)+1)
	units = append(units, Unit{
		Kind: UnitHeader,
		Text: FormatHeader(c.now(), total, len(groups), lookbackDays),
	})
	for _, g := range groups {
		units = append(units, Unit{
			Kind:   UnitSender,
			Sender: g.Sender,
			Text:   FormatSenderUnit(g.Sender, len(g.Items), c.summarize(ctx, g)),
		})
	}
	return units
}

func (c *Composer) summarize(ctx context.Context, g SenderGroup) string {
	log := c.logger.With(slog.String("sender", g.Sender), slog.Int("items", len(g.Items)))
	summary, err := chat.Ask(ctx, c.provider, c.model, summarySystemPrompt, BuildPrompt(g), c.maxTokens)
	if err != nil {
		log.Error("summarize sender failed", slog.Any("error", err))
		return SummaryFailedText
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		log.Warn("empty sender summary")
		return SummaryFailedText
	}
	return summary
}

// BuildPrompt renders the summarization input for one sender.
func BuildPrompt(g SenderGroup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Newsletter emails from %s (analyze for news content only):\n\n", g.Sender)
	for i, item := range g.Items {
		if i == maxItemsPerSender {
			break
		}
		fmt.Fprintf(&b, "=== EMAIL %d ===\n", i+1)
		fmt.Fprintf(&b, "Subject: %s\n", item.Subject)
		if !item.Timestamp.IsZero() {
			fmt.Fprintf(&b, "Date: %s\n", item.Timestamp.Format(timeLayout))
		}
		fmt.Fprintf(&b, "Sender: %s\n", item.Sender)
		fmt.Fprintf(&b, "Content:\n%s\n", prune.Head(item.Body, maxBodyRunes, prune.Ellipsis))
		if len(item.Links) > 0 {
			links := item.Links
			if len(links) > maxLinksPerItem {
				links = links[:maxLinksPerItem]
			}
			fmt.Fprintf(&b, "Links: %s\n", strings.Join(links, ", "))
		}
		b.WriteString("\n" + strings.Repeat("=", 50) + "\n\n")
	}
	b.WriteString(analysisInstructions)
	return b.String()
}

// FormatHeader renders the digest header in Telegram HTML.
func FormatHeader(now time.Time, items, senders, lookbackDays int) string {
	if senders == 0 {
		return "<b>📰 Daily Newsletter</b>\n\nNo new emails found."
	}
	return fmt.Sprintf("<b>📰 Daily Newsletter</b>\n🕘 %s\n📊 %d emails from %d senders\n📅 Last %d day(s)",
		now.Format(timeLayout), items, senders, lookbackDays)
}

// FormatSenderUnit renders one sender section in Telegram HTML.
func FormatSenderUnit(sender string, count int, summary string) string {
	return fmt.Sprintf("<b>📧 %s</b> (%d emails)\n\n%s",
		html.EscapeString(email.SenderKey(sender)), count, html.EscapeString(summary))
}
