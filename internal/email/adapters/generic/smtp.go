package generic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mail "github.com/wneessen/go-mail"

	"github.com/memohai/supportbot/internal/email"
)

// SMTPConfig addresses one outgoing mail server. Username doubles as the
// From address.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Security string // tls, starttls or none
}

// Sender delivers outbound email over SMTP.
type Sender struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

func NewSender(log *slog.Logger, cfg SMTPConfig) *Sender {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Sender{cfg: cfg, logger: log.With(slog.String("adapter", "smtp"))}
}

// BuildMessage renders msg with the configured From address.
func (s *Sender) BuildMessage(msg email.OutboundEmail) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("no recipients")
	}
	m := mail.NewMsg()
	if err := m.From(s.cfg.Username); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("set to: %w", err)
	}
	m.Subject(msg.Subject)
	if msg.HTML {
		m.SetBodyString(mail.TypeTextHTML, msg.Body)
	} else {
		m.SetBodyString(mail.TypeTextPlain, msg.Body)
	}
	m.SetMessageID()
	return m, nil
}

func (s *Sender) Send(ctx context.Context, msg email.OutboundEmail) (string, error) {
	m, err := s.BuildMessage(msg)
	if err != nil {
		return "", err
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
	}
	switch s.cfg.Security {
	case "tls":
		opts = append(opts, mail.WithSSLPort(false), mail.WithTLSPolicy(mail.TLSMandatory))
	case "starttls":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return "", fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	s.logger.Info("email sent", slog.Int("recipients", len(msg.To)), slog.String("subject", msg.Subject))
	return m.GetMessageID(), nil
}
