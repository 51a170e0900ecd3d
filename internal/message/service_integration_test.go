package message_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/memohai/supportbot/internal/db"
	"github.com/memohai/supportbot/internal/message"
)

func TestDBServiceRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("skip integration test: TEST_POSTGRES_DSN is not set")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if err := db.Migrate(logger, dsn); err != nil {
		t.Skipf("skip integration test: migrate failed: %v", err)
	}
	pool, err := db.Open(ctx, dsn)
	if err != nil {
		t.Skipf("skip integration test: cannot connect to database: %v", err)
	}
	defer pool.Close()

	chatID := int64(-990001)
	if _, err := pool.Exec(ctx, `DELETE FROM chat_messages WHERE chat_id = $1`, chatID); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	svc := message.NewService(logger, pool)
	for _, c := range []string{"first", "second", "third"} {
		if _, err := svc.Persist(ctx, chatID, "user", c); err != nil {
			t.Fatalf("Persist: %v", err)
		}
	}
	rows, err := svc.List(ctx, chatID, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 2 || rows[0].Content != "second" || rows[1].Content != "third" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	res, err := svc.Ping(ctx)
	if err != nil || res.Status != "ok" || res.Latest == nil {
		t.Fatalf("unexpected ping: %+v %v", res, err)
	}
}
