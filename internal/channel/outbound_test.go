package channel

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitFixed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		limit int
		want  []int
	}{
		{name: "empty", text: "", limit: 10, want: nil},
		{name: "short", text: "hello", limit: 10, want: []int{5}},
		{name: "exact", text: strings.Repeat("a", 10), limit: 10, want: []int{10}},
		{name: "nine thousand at four thousand", text: strings.Repeat("x", 9000), limit: 4000, want: []int{4000, 4000, 1000}},
		{name: "multibyte runes", text: strings.Repeat("ж", 7), limit: 3, want: []int{3, 3, 1}},
		{name: "limit disabled", text: strings.Repeat("a", 50), limit: 0, want: []int{50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SplitFixed(tt.text, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d chunks, got %d", len(tt.want), len(got))
			}
			for i, chunk := range got {
				if n := utf8.RuneCountInString(chunk); n != tt.want[i] {
					t.Fatalf("chunk %d: expected %d runes, got %d", i, tt.want[i], n)
				}
			}
			if strings.Join(got, "") != tt.text {
				t.Fatalf("chunks do not reassemble the input")
			}
		})
	}
}

func TestSplitMarkupKeepsTagsAndEntitiesWhole(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{name: "entity", text: "abc&amp;def", limit: 5, want: []string{"abc", "&amp;", "def"}},
		{name: "tag", text: "ab<b>cd</b>", limit: 4, want: []string{"ab", "<b>c", "d", "</b>"}},
		{name: "plain", text: strings.Repeat("a", 9), limit: 4, want: []string{"aaaa", "aaaa", "a"}},
		{name: "tag longer than limit", text: "<a href>", limit: 3, want: []string{"<a ", "hre", "f>"}},
		{name: "short", text: "a&amp;b", limit: 10, want: []string{"a&amp;b"}},
		{name: "empty", text: "", limit: 4, want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := SplitMarkup(tc.text, tc.limit)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("chunk %d: expected %q, got %q", i, tc.want[i], got[i])
				}
				if utf8.RuneCountInString(got[i]) > tc.limit {
					t.Fatalf("chunk %d exceeds limit: %q", i, got[i])
				}
			}
			if strings.Join(got, "") != tc.text {
				t.Fatalf("chunks do not reassemble the input")
			}
		})
	}
}

func TestDeliverDoesNotCutEntities(t *testing.T) {
	t.Parallel()

	unit := strings.Repeat("a", 3998) + "&amp;" + strings.Repeat("b", 10)
	sink := &recordingSink{}
	report := Deliver(context.Background(), []string{unit}, 4000, sink)
	if !report.OK() || len(sink.sent) != 2 {
		t.Fatalf("expected two chunks, got %+v", report)
	}
	if sink.sent[0] != strings.Repeat("a", 3998) || !strings.HasPrefix(sink.sent[1], "&amp;") {
		t.Fatalf("entity was split: %q / %q", sink.sent[0][3990:], sink.sent[1])
	}
}

func TestChunkTextPrefersLineBoundaries(t *testing.T) {
	t.Parallel()

	text := "first line\nsecond line\n" + strings.Repeat("z", 25)
	got := ChunkText(text, 22)
	want := []string{"first line\nsecond line", strings.Repeat("z", 22), "zzz"}
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if ChunkText("   ", 10) != nil {
		t.Fatalf("expected nil for blank input")
	}
}

type recordingSink struct {
	sent   []string
	failAt map[int]error
	calls  int
}

func (s *recordingSink) Send(_ context.Context, text string) error {
	s.calls++
	if err, ok := s.failAt[s.calls]; ok {
		return err
	}
	s.sent = append(s.sent, text)
	return nil
}

func TestDeliverSplitsLongUnits(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	report := Deliver(context.Background(), []string{strings.Repeat("a", 9000)}, 4000, sink)
	if !report.OK() || report.Err() != nil {
		t.Fatalf("expected clean report, got %+v", report)
	}
	if report.Attempted != 3 || report.Sent != 3 {
		t.Fatalf("expected 3 attempted and sent, got %+v", report)
	}
	lens := []int{len(sink.sent[0]), len(sink.sent[1]), len(sink.sent[2])}
	if lens[0] != 4000 || lens[1] != 4000 || lens[2] != 1000 {
		t.Fatalf("unexpected chunk sizes %v", lens)
	}
}

func TestDeliverContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	sink := &recordingSink{failAt: map[int]error{2: boom}}
	report := Deliver(context.Background(), []string{strings.Repeat("b", 9000), "tail"}, 4000, sink)

	if sink.calls != 4 {
		t.Fatalf("expected 4 send attempts, got %d", sink.calls)
	}
	if report.Attempted != 4 || report.Sent != 3 {
		t.Fatalf("unexpected counts %+v", report)
	}
	if report.OK() {
		t.Fatalf("expected failure in report")
	}
	if len(report.Failures) != 1 || report.Failures[0].Unit != 0 || report.Failures[0].Chunk != 1 {
		t.Fatalf("unexpected failures %+v", report.Failures)
	}
	if !errors.Is(report.Err(), boom) {
		t.Fatalf("expected joined error to wrap boom, got %v", report.Err())
	}
	if sink.sent[2] != "tail" {
		t.Fatalf("expected later unit delivered, got %q", sink.sent[2])
	}
}

func TestDeliverStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &recordingSink{}
	report := Deliver(ctx, []string{"a", "b"}, 10, sink)
	if sink.calls != 0 {
		t.Fatalf("expected no sends after cancel, got %d", sink.calls)
	}
	if report.OK() || !errors.Is(report.Err(), context.Canceled) {
		t.Fatalf("expected canceled failure, got %+v", report)
	}
}
