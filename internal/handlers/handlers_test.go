package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/memohai/supportbot/internal/command"
	"github.com/memohai/supportbot/internal/message"
	"github.com/memohai/supportbot/internal/spam"
)

type inlineQueue struct {
	chats []int64
	err   error
}

func (q *inlineQueue) Enqueue(chatID int64, _ string, fn func(ctx context.Context) error) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.chats = append(q.chats, chatID)
	_ = fn(context.Background())
	return "task", nil
}

type fakeRouter struct {
	got []command.Incoming
}

func (r *fakeRouter) Handle(_ context.Context, in command.Incoming) error {
	r.got = append(r.got, in)
	return nil
}

type fakeModerator struct {
	got []spam.Incoming
}

func (m *fakeModerator) Handle(_ context.Context, in spam.Incoming) (spam.Outcome, error) {
	m.got = append(m.got, in)
	return spam.OutcomeClean, nil
}

type failingStore struct {
	message.Store
}

func (failingStore) Ping(context.Context) (message.PingResult, error) {
	return message.PingResult{}, errors.New("connection refused")
}

func do(e *echo.Echo, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const textUpdate = `{"update_id":1,"message":{"message_id":5,"date":1,"chat":{"id":42,"type":"private"},"from":{"id":7,"is_bot":false,"first_name":"A","username":"alice"},"text":"/echo hi"}}`

func TestWebhookDispatchesTextMessages(t *testing.T) {
	t.Parallel()

	e := echo.New()
	queue := &inlineQueue{}
	router := &fakeRouter{}
	NewWebhookHandler(nil, queue, router).Register(e)

	rec := do(e, http.MethodPost, "/webhook", textUpdate, nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Fatalf("response = %d %s", rec.Code, rec.Body.String())
	}
	if len(router.got) != 1 || router.got[0].ChatID != 42 || router.got[0].Text != "/echo hi" {
		t.Fatalf("router got %+v", router.got)
	}
}

func TestWebhookIgnoresNonTextAndMalformed(t *testing.T) {
	t.Parallel()

	cases := []string{
		`{"update_id":2,"edited_message":{"message_id":1,"date":1,"chat":{"id":1,"type":"private"},"text":"x"}}`,
		`{"update_id":3,"message":{"message_id":1,"date":1,"chat":{"id":1,"type":"private"}}}`,
		`{not json`,
	}
	for _, body := range cases {
		e := echo.New()
		router := &fakeRouter{}
		NewWebhookHandler(nil, &inlineQueue{}, router).Register(e)
		rec := do(e, http.MethodPost, "/webhook", body, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d for %s", rec.Code, body)
		}
		if len(router.got) != 0 {
			t.Fatalf("router should not run for %s", body)
		}
	}
}

func TestWebhookStillAcceptsWhenQueueFull(t *testing.T) {
	t.Parallel()

	e := echo.New()
	NewWebhookHandler(nil, &inlineQueue{err: errors.New("full")}, &fakeRouter{}).Register(e)
	rec := do(e, http.MethodPost, "/webhook", textUpdate, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("response = %d %s", rec.Code, rec.Body.String())
	}
}

func TestSecretTokenMiddleware(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		header     map[string]string
		wantBody   string
		wantRouted bool
	}{
		{name: "missing", wantBody: `{"detail":"Unauthorized"}`},
		{name: "mismatch", header: map[string]string{SecretHeader: "nope"}, wantBody: `{"detail":"Invalid token"}`},
		{name: "match", header: map[string]string{SecretHeader: "s3cret"}, wantBody: `{"status":"ok"}`, wantRouted: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := echo.New()
			router := &fakeRouter{}
			NewWebhookHandler(nil, &inlineQueue{}, router).Register(e, SecretToken("s3cret"))
			rec := do(e, http.MethodPost, "/webhook", textUpdate, tc.header)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tc.wantBody {
				t.Fatalf("body = %s, want %s", got, tc.wantBody)
			}
			if (len(router.got) == 1) != tc.wantRouted {
				t.Fatalf("routed = %d, want %v", len(router.got), tc.wantRouted)
			}
		})
	}
}

func TestBanBotWebhookModeratesText(t *testing.T) {
	t.Parallel()

	e := echo.New()
	mod := &fakeModerator{}
	NewBanBotHandler(nil, &inlineQueue{}, mod).Register(e)

	rec := do(e, http.MethodPost, "/ban_bot/webhook", textUpdate, nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Fatalf("response = %d %s", rec.Code, rec.Body.String())
	}
	want := spam.Incoming{ChatID: 42, MessageID: 5, UserID: 7, Username: "alice", Text: "/echo hi"}
	if len(mod.got) != 1 || mod.got[0] != want {
		t.Fatalf("moderator got %+v", mod.got)
	}
}

func TestBanBotWebhookPassesMessagesWithoutSender(t *testing.T) {
	t.Parallel()

	e := echo.New()
	mod := &fakeModerator{}
	NewBanBotHandler(nil, &inlineQueue{}, mod).Register(e)

	body := `{"update_id":2,"message":{"message_id":8,"date":0,"chat":{"id":-100,"type":"supergroup"},"sender_chat":{"id":-100,"type":"supergroup"},"text":"promo"}}`
	rec := do(e, http.MethodPost, "/ban_bot/webhook", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := spam.Incoming{ChatID: -100, MessageID: 8, Text: "promo"}
	if len(mod.got) != 1 || mod.got[0] != want {
		t.Fatalf("moderator got %+v", mod.got)
	}
}

func TestPingHandler(t *testing.T) {
	t.Parallel()

	store := message.NewMemoryService(0)
	if _, err := store.Persist(context.Background(), 1, "user", "hi"); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	e := echo.New()
	NewPingHandler(nil, store).Register(e)

	rec := do(e, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Fatalf("/health = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(e, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"latest":"`) {
		t.Fatalf("/api/health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestPingHandlerStoreDown(t *testing.T) {
	t.Parallel()

	e := echo.New()
	NewPingHandler(nil, failingStore{}).Register(e)
	rec := do(e, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}
