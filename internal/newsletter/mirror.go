package newsletter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/memohai/supportbot/internal/email"
)

// Mirror receives a copy of every delivered digest.
type Mirror interface {
	Mirror(ctx context.Context, units []Unit) error
}

// EmailMirror mails the digest as one HTML message.
type EmailMirror struct {
	sender     email.Sender
	recipients []string
	now        func() time.Time
}

func NewEmailMirror(sender email.Sender, recipients []string) *EmailMirror {
	return &EmailMirror{sender: sender, recipients: recipients, now: time.Now}
}

func (m *EmailMirror) Mirror(ctx context.Context, units []Unit) error {
	if len(m.recipients) == 0 || len(units) == 0 {
		return nil
	}
	_, err := m.sender.Send(ctx, email.OutboundEmail{
		To:      m.recipients,
		Subject: fmt.Sprintf("Daily Newsletter %s", m.now().Format("2006-01-02")),
		Body:    RenderHTML(units),
		HTML:    true,
	})
	if err != nil {
		return fmt.Errorf("mirror digest by email: %w", err)
	}
	return nil
}

// RenderHTML joins Telegram HTML units into an email body.
func RenderHTML(units []Unit) string {
	parts := make([]string, 0, len(units))
	for _, u := range units {
		parts = append(parts, "<p>"+strings.ReplaceAll(u.Text, "\n", "<br>\n")+"</p>")
	}
	return "<html><body>\n" + strings.Join(parts, "\n<hr>\n") + "\n</body></html>"
}
