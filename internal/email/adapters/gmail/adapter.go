// Package gmail reads newsletter items from a Gmail mailbox through the
// Gmail REST API.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/memohai/supportbot/internal/email"
)

const (
	userID            = "me"
	defaultMaxResults = 500
	pageSize          = 100
)

// ErrNoToken is returned when neither an inline nor a file token is configured.
var ErrNoToken = errors.New("gmail token is not configured")

// Config selects credentials and limits.
type Config struct {
	ClientID     string
	ClientSecret string
	// TokenBase64 holds a base64 encoded authorized-user JSON document.
	TokenBase64 string
	// TokenFile is read when TokenBase64 is empty.
	TokenFile  string
	MaxResults int
}

// storedToken accepts both the oauth2.Token layout and the authorized-user
// layout written by Google client libraries.
type storedToken struct {
	Token        string    `json:"token"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	Expiry       time.Time `json:"expiry"`
}

type Adapter struct {
	svc        *gmailapi.Service
	maxResults int
	logger     *slog.Logger
	now        func() time.Time
}

// New builds an adapter with a refreshing OAuth2 token source.
func New(ctx context.Context, log *slog.Logger, cfg Config) (*Adapter, error) {
	raw, err := loadToken(cfg)
	if err != nil {
		return nil, err
	}
	tok, clientID, clientSecret, err := parseToken(raw)
	if err != nil {
		return nil, err
	}
	if cfg.ClientID != "" {
		clientID = cfg.ClientID
	}
	if cfg.ClientSecret != "" {
		clientSecret = cfg.ClientSecret
	}
	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmailapi.GmailReadonlyScope},
	}
	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(oauthCfg.TokenSource(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewWithService(log, svc, cfg.MaxResults), nil
}

// NewWithService wraps an existing Gmail service.
func NewWithService(log *slog.Logger, svc *gmailapi.Service, maxResults int) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Adapter{
		svc:        svc,
		maxResults: maxResults,
		logger:     log.With(slog.String("adapter", "gmail")),
		now:        time.Now,
	}
}

// FetchRecent lists messages received after the lookback window start, newest
// first as returned by the API, and loads each one. Messages that fail to load
// are skipped.
func (a *Adapter) FetchRecent(ctx context.Context, lookbackDays int) ([]email.Item, error) {
	ids, err := a.listIDs(ctx, Query(a.now(), lookbackDays))
	if err != nil {
		return nil, err
	}
	items := make([]email.Item, 0, len(ids))
	for _, id := range ids {
		msg, err := a.svc.Users.Messages.Get(userID, id).Format("full").Context(ctx).Do()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.Warn("get message failed", slog.String("id", id), slog.Any("error", err))
			continue
		}
		items = append(items, ItemFromMessage(msg))
	}
	a.logger.Info("gmail fetch completed", slog.Int("listed", len(ids)), slog.Int("loaded", len(items)))
	return items, nil
}

// Query builds the Gmail search expression for the lookback window.
func Query(now time.Time, lookbackDays int) string {
	return "after:" + email.Since(now, lookbackDays).Format("2006/01/02")
}

func (a *Adapter) listIDs(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""
	for len(ids) < a.maxResults {
		call := a.svc.Users.Messages.List(userID).Q(query).
			MaxResults(int64(min(pageSize, a.maxResults-len(ids)))).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list gmail messages: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	if len(ids) > a.maxResults {
		ids = ids[:a.maxResults]
	}
	return ids, nil
}

// ItemFromMessage converts a full-format Gmail message.
func ItemFromMessage(msg *gmailapi.Message) email.Item {
	item := email.Item{ID: msg.Id}
	if msg.InternalDate > 0 {
		item.Timestamp = time.UnixMilli(msg.InternalDate).UTC()
	}
	if msg.Payload == nil {
		item.Body = msg.Snippet
		return item
	}
	item.Sender = header(msg.Payload.Headers, "From")
	item.Subject = header(msg.Payload.Headers, "Subject")
	if item.Timestamp.IsZero() {
		if ts, err := time.Parse(time.RFC1123Z, header(msg.Payload.Headers, "Date")); err == nil {
			item.Timestamp = ts
		}
	}

	plain, html := collectBodies(msg.Payload)
	switch {
	case strings.TrimSpace(plain) != "":
		item.Body = email.NormalizeText(plain)
		item.Links = email.ExtractLinks(plain + "\n" + html)
	case strings.TrimSpace(html) != "":
		item.Body = email.HTMLToText(html)
		item.Links = email.ExtractLinks(item.Body)
	default:
		item.Body = msg.Snippet
	}
	return item
}

func header(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// collectBodies walks the MIME tree and returns the first text/plain and
// text/html bodies.
func collectBodies(part *gmailapi.MessagePart) (plain, html string) {
	if part == nil {
		return "", ""
	}
	mime := strings.ToLower(part.MimeType)
	if part.Body != nil && part.Body.Data != "" {
		data := decodeBody(part.Body.Data)
		switch {
		case strings.HasPrefix(mime, "text/plain"):
			plain = data
		case strings.HasPrefix(mime, "text/html"):
			html = data
		}
	}
	for _, child := range part.Parts {
		p, h := collectBodies(child)
		if plain == "" {
			plain = p
		}
		if html == "" {
			html = h
		}
	}
	return plain, html
}

func decodeBody(data string) string {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	return ""
}

func loadToken(cfg Config) ([]byte, error) {
	if s := strings.TrimSpace(cfg.TokenBase64); s != "" {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("decode gmail token: %w", err)
		}
		return b, nil
	}
	if cfg.TokenFile == "" {
		return nil, ErrNoToken
	}
	b, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("read gmail token: %w", err)
	}
	return b, nil
}

func parseToken(raw []byte) (*oauth2.Token, string, string, error) {
	var st storedToken
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, "", "", fmt.Errorf("parse gmail token: %w", err)
	}
	access := st.AccessToken
	if access == "" {
		access = st.Token
	}
	if access == "" && st.RefreshToken == "" {
		return nil, "", "", ErrNoToken
	}
	tok := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: st.RefreshToken,
		TokenType:    st.TokenType,
		Expiry:       st.Expiry,
	}
	return tok, st.ClientID, st.ClientSecret, nil
}
