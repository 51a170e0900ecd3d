package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/memohai/supportbot/internal/channel"
)

type apiCall struct {
	method string
	form   map[string]string
}

type fakeBotAPI struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeBotAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		parts := strings.Split(r.URL.Path, "/")
		method := parts[len(parts)-1]
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		f.mu.Lock()
		f.calls = append(f.calls, apiCall{method: method, form: form})
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "getMe":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"test_bot"}}`))
		case "sendMessage":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":5,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
		}
	}
}

func (f *fakeBotAPI) byMethod(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func newTestClient(t *testing.T) (*Client, *fakeBotAPI) {
	t.Helper()
	fake := &fakeBotAPI{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(nil, "123:abc", srv.URL+"/bot%s/%s"), fake
}

func TestSendMessageToChatAndChannel(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t)
	ctx := context.Background()
	if err := client.SendMessage(ctx, "42", "<b>hi</b>", ParseModeHTML); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := client.SendMessage(ctx, "@news", "hello", ""); err != nil {
		t.Fatalf("SendMessage channel: %v", err)
	}
	sent := fake.byMethod("sendMessage")
	if len(sent) != 2 {
		t.Fatalf("expected 2 sendMessage calls, got %d", len(sent))
	}
	if sent[0].form["chat_id"] != "42" || sent[0].form["parse_mode"] != "HTML" {
		t.Fatalf("unexpected first call %+v", sent[0].form)
	}
	if sent[1].form["chat_id"] != "@news" {
		t.Fatalf("unexpected channel target %+v", sent[1].form)
	}
	if len(fake.byMethod("getMe")) != 1 {
		t.Fatalf("expected bot to be created once")
	}
}

func TestSendMessageRejectsBadTarget(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t)
	if err := client.SendMessage(context.Background(), "not-a-chat", "x", ""); err == nil {
		t.Fatalf("expected error for invalid target")
	}
	if len(fake.byMethod("sendMessage")) != 0 {
		t.Fatalf("expected no send for invalid target")
	}
}

func TestSinkRejectsOversizeChunks(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t)
	sink := client.Sink("42")

	report := channel.Deliver(context.Background(), []string{strings.Repeat("x", 5000)}, 5000, sink)
	if report.OK() || report.Sent != 0 {
		t.Fatalf("expected oversize chunk to fail, got %+v", report)
	}
	if !errors.Is(report.Err(), ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", report.Err())
	}

	// Emoji take two UTF-16 units each.
	if err := sink.Send(context.Background(), strings.Repeat("😀", 2100)); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong for emoji text, got %v", err)
	}
	if len(fake.byMethod("sendMessage")) != 0 {
		t.Fatalf("oversize chunks must not be sent")
	}

	report = channel.Deliver(context.Background(), []string{strings.Repeat("x", 5000)}, MaxMessageLength, sink)
	if !report.OK() || report.Sent != 2 {
		t.Fatalf("expected two delivered chunks, got %+v", report)
	}
	sent := fake.byMethod("sendMessage")
	if len(sent) != 2 || len(sent[0].form["text"]) != MaxMessageLength || len(sent[1].form["text"]) != 904 {
		t.Fatalf("unexpected chunks sent: %d calls", len(sent))
	}
}

func TestUTF16Len(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int
	}{
		{in: "", want: 0},
		{in: "abc", want: 3},
		{in: "жж", want: 2},
		{in: "a😀", want: 3},
	}
	for _, tc := range cases {
		if got := utf16Len(tc.in); got != tc.want {
			t.Fatalf("utf16Len(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestReplySplitsLongText(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t)
	text := strings.Repeat("a", MaxMessageLength+10)
	if err := client.Reply(context.Background(), 42, text, ""); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got := len(fake.byMethod("sendMessage")); got != 2 {
		t.Fatalf("expected 2 chunks, got %d", got)
	}
}

func TestModerationRequests(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t)
	ctx := context.Background()
	if err := client.DeleteMessage(ctx, -100, 9); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if err := client.BanMember(ctx, -100, 77, true); err != nil {
		t.Fatalf("BanMember: %v", err)
	}
	del := fake.byMethod("deleteMessage")
	if len(del) != 1 || del[0].form["message_id"] != "9" {
		t.Fatalf("unexpected delete call %+v", del)
	}
	ban := fake.byMethod("banChatMember")
	if len(ban) != 1 || ban[0].form["user_id"] != "77" || ban[0].form["revoke_messages"] != "true" {
		t.Fatalf("unexpected ban call %+v", ban)
	}
}

func TestClientWithoutToken(t *testing.T) {
	t.Parallel()

	client := NewClient(nil, "  ", "")
	if client.Configured() {
		t.Fatalf("expected unconfigured client")
	}
	if err := client.SendMessage(context.Background(), "1", "x", ""); err != ErrNoToken {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestTruncateText(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("ж", MaxMessageLength+5)
	got := truncateText(long)
	if utf8.RuneCountInString(got) != MaxMessageLength || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected truncation: %d runes", utf8.RuneCountInString(got))
	}
	if truncateText("short") != "short" {
		t.Fatalf("short text should be unchanged")
	}
}

func TestDecodeUpdate(t *testing.T) {
	t.Parallel()

	body := []byte(`{"update_id":10,"message":{"message_id":3,"date":0,"chat":{"id":42,"type":"private"},"from":{"id":7,"is_bot":false,"first_name":"A"},"text":"/echo hi"}}`)
	update, err := DecodeUpdate(body)
	if err != nil {
		t.Fatalf("DecodeUpdate: %v", err)
	}
	if update.UpdateID != 10 || update.Message == nil || update.Message.Text != "/echo hi" || update.Message.Chat.ID != 42 {
		t.Fatalf("unexpected update %+v", update)
	}
	if _, err := DecodeUpdate([]byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}
