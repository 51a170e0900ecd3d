package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func enc(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestItemFromMessagePrefersPlainText(t *testing.T) {
	t.Parallel()

	msg := &gmailapi.Message{
		Id:           "m1",
		InternalDate: 1715353200000,
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: "Jane Doe <jane@x.com>"},
				{Name: "Subject", Value: "Weekly"},
			},
			Parts: []*gmailapi.MessagePart{
				{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: enc("Hello\r\nRead https://example.com/post")}},
				{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: enc(`<p>Hello <a href="https://example.com/html">x</a></p>`)}},
			},
		},
	}
	item := ItemFromMessage(msg)
	if item.ID != "m1" || item.Sender != "Jane Doe <jane@x.com>" || item.Subject != "Weekly" {
		t.Fatalf("unexpected headers %+v", item)
	}
	if item.Body != "Hello\nRead https://example.com/post" {
		t.Fatalf("unexpected body %q", item.Body)
	}
	if len(item.Links) != 2 || item.Links[0] != "https://example.com/post" {
		t.Fatalf("unexpected links %v", item.Links)
	}
	if !item.Timestamp.Equal(time.UnixMilli(1715353200000)) {
		t.Fatalf("unexpected timestamp %v", item.Timestamp)
	}
}

func TestItemFromMessageHTMLOnly(t *testing.T) {
	t.Parallel()

	msg := &gmailapi.Message{
		Id: "m2",
		Payload: &gmailapi.MessagePart{
			MimeType: "text/html",
			Body:     &gmailapi.MessagePartBody{Data: enc(`<h2>News</h2><p>See <a href="https://example.com/a">this</a></p>`)},
		},
	}
	item := ItemFromMessage(msg)
	if !strings.Contains(item.Body, "News") || strings.Contains(item.Body, "<p>") {
		t.Fatalf("unexpected body %q", item.Body)
	}
	if len(item.Links) != 1 || item.Links[0] != "https://example.com/a" {
		t.Fatalf("unexpected links %v", item.Links)
	}
}

func TestFetchRecentAgainstFakeAPI(t *testing.T) {
	t.Parallel()

	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/users/me/messages"):
			query = r.URL.Query().Get("q")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"messages": []map[string]string{{"id": "a"}, {"id": "missing"}, {"id": "b"}},
			})
		case strings.HasSuffix(r.URL.Path, "/users/me/messages/missing"):
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
		case strings.Contains(r.URL.Path, "/users/me/messages/"):
			id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":           id,
				"internalDate": "1715353200000",
				"payload": map[string]any{
					"mimeType": "text/plain",
					"headers":  []map[string]string{{"name": "From", "value": "s@x.com"}, {"name": "Subject", "value": "subj " + id}},
					"body":     map[string]string{"data": enc("body " + id)},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	svc, err := gmailapi.NewService(ctx, option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	adapter := NewWithService(nil, svc, 10)
	adapter.now = func() time.Time { return time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC) }
	items, err := adapter.FetchRecent(ctx, 2)
	if err != nil {
		t.Fatalf("FetchRecent: %v", err)
	}
	if query != "after:2024/05/08" {
		t.Fatalf("unexpected query %q", query)
	}
	if len(items) != 2 || items[0].ID != "a" || items[1].Subject != "subj b" || items[1].Body != "body b" {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestParseToken(t *testing.T) {
	t.Parallel()

	tok, id, secret, err := parseToken([]byte(`{"token":"at","refresh_token":"rt","client_id":"cid","client_secret":"cs"}`))
	if err != nil {
		t.Fatalf("parseToken: %v", err)
	}
	if tok.AccessToken != "at" || tok.RefreshToken != "rt" || id != "cid" || secret != "cs" {
		t.Fatalf("unexpected token %+v %s %s", tok, id, secret)
	}
	if _, _, _, err := parseToken([]byte(`{}`)); err != ErrNoToken {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if _, err := loadToken(Config{}); err != ErrNoToken {
		t.Fatalf("expected ErrNoToken for empty config, got %v", err)
	}
}
