// Package generic reads newsletter items over IMAP and sends digest copies
// over SMTP.
package generic

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/memohai/supportbot/internal/email"
)

const defaultMaxResults = 500

// IMAPConfig addresses one mailbox.
type IMAPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Security   string // tls, starttls or none
	Mailbox    string
	MaxResults int
}

// Fetcher reads recent messages from an IMAP mailbox.
type Fetcher struct {
	cfg    IMAPConfig
	logger *slog.Logger
	dial   func(addr string, opts *imapclient.Options) (*imapclient.Client, error)
}

func NewFetcher(log *slog.Logger, cfg IMAPConfig) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	f := &Fetcher{cfg: cfg, logger: log.With(slog.String("adapter", "imap"))}
	switch cfg.Security {
	case "starttls":
		f.dial = imapclient.DialStartTLS
	case "none":
		f.dial = imapclient.DialInsecure
	default:
		f.dial = imapclient.DialTLS
	}
	return f
}

// FetchRecent searches the mailbox for messages received since the lookback
// window start and parses the most recent MaxResults of them.
func (f *Fetcher) FetchRecent(ctx context.Context, lookbackDays int) ([]email.Item, error) {
	client, err := f.connect()
	if err != nil {
		return nil, err
	}
	defer client.Close()
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(f.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("select %s: %w", f.cfg.Mailbox, err)
	}

	criteria := &imap.SearchCriteria{Since: email.Since(timeNow(), lookbackDays)}
	data, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	uids := data.AllUIDs()
	if len(uids) == 0 {
		return []email.Item{}, nil
	}
	slices.Sort(uids)
	if len(uids) > f.cfg.MaxResults {
		uids = uids[len(uids)-f.cfg.MaxResults:]
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:     true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{{Peek: true}},
	})
	defer fetchCmd.Close()

	items := make([]email.Item, 0, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			f.logger.Warn("collect message failed", slog.Any("error", err))
			continue
		}
		item, err := itemFromBuffer(buf)
		if err != nil {
			f.logger.Warn("parse message failed", slog.Uint64("uid", uint64(buf.UID)), slog.Any("error", err))
			continue
		}
		items = append(items, item)
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	f.logger.Info("imap fetch completed", slog.Int("matched", len(uids)), slog.Int("loaded", len(items)))
	return items, nil
}

func (f *Fetcher) connect() (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", f.cfg.Host, f.cfg.Port)
	client, err := f.dial(addr, &imapclient.Options{TLSConfig: &tls.Config{ServerName: f.cfg.Host}})
	if err != nil {
		return nil, fmt.Errorf("dial imap (%s): %w", f.cfg.Security, err)
	}
	if err := client.Login(f.cfg.Username, f.cfg.Password).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return client, nil
}

func itemFromBuffer(buf *imapclient.FetchMessageBuffer) (email.Item, error) {
	var raw []byte
	if len(buf.BodySection) > 0 {
		raw = buf.BodySection[0].Bytes
	}
	item, err := ParseMessage(raw)
	if err != nil {
		return email.Item{}, err
	}
	if env := buf.Envelope; env != nil {
		if item.ID == "" {
			item.ID = strings.Trim(env.MessageID, "<>")
		}
		if item.Subject == "" {
			item.Subject = env.Subject
		}
		if item.Sender == "" && len(env.From) > 0 {
			item.Sender = formatAddress(env.From[0].Name, env.From[0].Addr())
		}
		if item.Timestamp.IsZero() {
			item.Timestamp = env.Date
		}
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = buf.InternalDate
	}
	if item.ID == "" {
		item.ID = fmt.Sprintf("uid:%d", buf.UID)
	}
	return item, nil
}

func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}
