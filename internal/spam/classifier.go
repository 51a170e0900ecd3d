// Package spam classifies group messages and removes spammers.
package spam

import (
	"context"
	"fmt"
	"strings"

	"github.com/memohai/supportbot/internal/chat"
)

// Verdict is the classifier outcome for one message.
type Verdict struct {
	Spam   bool
	Answer string
}

// Classifier asks a completion model whether a text is spam.
type Classifier struct {
	provider chat.Provider
	model    string
	examples *ExampleSource
}

func NewClassifier(provider chat.Provider, model string, examples *ExampleSource) *Classifier {
	return &Classifier{provider: provider, model: model, examples: examples}
}

func (c *Classifier) Classify(ctx context.Context, text string) (Verdict, error) {
	examples, err := c.examples.Examples(ctx)
	if err != nil {
		return Verdict{}, err
	}
	answer, err := chat.Ask(ctx, c.provider, c.model, "", Prompt(examples, text), 0)
	if err != nil {
		return Verdict{}, fmt.Errorf("classify message: %w", err)
	}
	return Verdict{Spam: ParseVerdict(answer), Answer: answer}, nil
}

func Prompt(examples, text string) string {
	return "Examples of spam: " + examples + " \n" +
		"You're given text to check if it spam \n" +
		"Be sure to check if the text is spam or not. \n" +
		"Text: " + text + " \n" +
		"Return in the format: \n" +
		"Reason: \n" +
		"Verdict: Yes/No\n"
}

// ParseVerdict reads the value after the last colon of the final non-blank
// line and reports whether it is "Yes".
func ParseVerdict(answer string) bool {
	lines := strings.Split(strings.TrimSpace(answer), "\n")
	last := lines[len(lines)-1]
	if i := strings.LastIndex(last, ":"); i >= 0 {
		last = last[i+1:]
	}
	last = strings.TrimSpace(last)
	last = strings.TrimRight(last, ".!")
	return strings.EqualFold(last, "yes")
}
