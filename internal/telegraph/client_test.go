package telegraph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestToNodes(t *testing.T) {
	t.Parallel()

	nodes := ToNodes("first line\nsecond line\n\n\n\nnext para")
	if len(nodes) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(nodes))
	}
	p := nodes[0].(Element)
	if p.Tag != "p" || len(p.Children) != 3 {
		t.Fatalf("unexpected first paragraph %+v", p)
	}
	if br, ok := p.Children[1].(Element); !ok || br.Tag != "br" {
		t.Fatalf("expected br between lines, got %+v", p.Children[1])
	}
	raw, err := json.Marshal(nodes[1])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"tag":"p","children":["next para"]}` {
		t.Fatalf("unexpected json %s", raw)
	}
}

func TestStripMarkdown(t *testing.T) {
	t.Parallel()

	got := StripMarkdown("## Title\n**bold** and *it*")
	if got != "Title\nbold and it" {
		t.Fatalf("StripMarkdown = %q", got)
	}
}

func TestCreatePageReusesAndRefreshesToken(t *testing.T) {
	t.Parallel()

	var accounts, pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/createAccount":
			n := accounts.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]string{"access_token": "tok" + string(rune('0'+n))}})
		case "/createPage":
			n := pages.Add(1)
			if n == 2 && body["access_token"] == "tok1" {
				_, _ = w.Write([]byte(`{"ok":false,"error":"ACCESS_TOKEN_INVALID"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]string{"path": "page-" + string(rune('0'+n))}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(nil, srv.URL)
	ctx := context.Background()
	url, err := c.CreatePage(ctx, "Title", "hello")
	if err != nil || url != "https://telegra.ph/page-1" {
		t.Fatalf("first page: %q %v", url, err)
	}
	url, err = c.CreatePage(ctx, "Title", "hello again")
	if err != nil || url != "https://telegra.ph/page-3" {
		t.Fatalf("second page: %q %v", url, err)
	}
	if accounts.Load() != 2 {
		t.Fatalf("expected account recreated once, got %d accounts", accounts.Load())
	}
	url, err = c.CreatePage(ctx, "Title", "third")
	if err != nil || url != "https://telegra.ph/page-4" || accounts.Load() != 2 {
		t.Fatalf("third page: %q %v accounts=%d", url, err, accounts.Load())
	}
}

func TestCreatePageAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"FLOOD_WAIT_5"}`))
	}))
	defer srv.Close()

	_, err := NewClient(nil, srv.URL).CreatePage(context.Background(), "t", "c")
	if err == nil {
		t.Fatalf("expected error")
	}
}
