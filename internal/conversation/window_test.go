package conversation

import (
	"strings"
	"testing"
)

// wordTokenizer counts whitespace-separated words.
type wordTokenizer struct{}

func (wordTokenizer) CountTokens(text string) int {
	return len(strings.Fields(text))
}

func msgs(contents ...string) []Message {
	out := make([]Message, 0, len(contents))
	for i, c := range contents {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		out = append(out, Message{Role: role, Content: c})
	}
	return out
}

func contents(in []Message) []string {
	out := make([]string, 0, len(in))
	for _, m := range in {
		out = append(out, m.Content)
	}
	return out
}

func TestTrim(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		history []Message
		budget  int
		want    []string
	}{
		{
			name:    "empty history",
			history: nil,
			budget:  10,
			want:    []string{},
		},
		{
			name:    "everything fits",
			history: msgs("a b", "c", "d e f"),
			budget:  10,
			want:    []string{"a b", "c", "d e f"},
		},
		{
			name:    "exact budget keeps all",
			history: msgs("a b", "c", "d e f"),
			budget:  6,
			want:    []string{"a b", "c", "d e f"},
		},
		{
			name:    "boundary message excluded",
			history: msgs("a b c d", "e", "f g"),
			budget:  4,
			want:    []string{"e", "f g"},
		},
		{
			name:    "older fitting messages after overflow are excluded",
			history: msgs("a", "b c d e f", "g"),
			budget:  3,
			want:    []string{"g"},
		},
		{
			name:    "oversize newest message returned alone",
			history: msgs("a", "b", "c d e f g h"),
			budget:  2,
			want:    []string{"c d e f g h"},
		},
		{
			name:    "zero budget keeps newest",
			history: msgs("a", "b"),
			budget:  0,
			want:    []string{"b"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := contents(Trim(tc.history, tc.budget, wordTokenizer{}))
			if strings.Join(got, "|") != strings.Join(tc.want, "|") || len(got) != len(tc.want) {
				t.Fatalf("Trim() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTrimReturnsContiguousSuffix(t *testing.T) {
	t.Parallel()

	history := msgs("one two", "three", "four five six", "seven", "eight nine", "ten")
	for budget := 0; budget <= 12; budget++ {
		got := Trim(history, budget, wordTokenizer{})
		if len(got) == 0 {
			t.Fatalf("budget %d: empty result", budget)
		}
		offset := len(history) - len(got)
		for i := range got {
			if got[i] != history[offset+i] {
				t.Fatalf("budget %d: result is not a suffix: %v", budget, contents(got))
			}
		}
		if len(got) > 1 && TotalTokens(got, wordTokenizer{}) > budget {
			t.Fatalf("budget %d: multi-message result exceeds budget", budget)
		}
	}
}

func TestTrimIdempotent(t *testing.T) {
	t.Parallel()

	history := msgs("a b c", "d", "e f", "g h i j")
	once := Trim(history, 5, wordTokenizer{})
	twice := Trim(once, 5, wordTokenizer{})
	if strings.Join(contents(once), "|") != strings.Join(contents(twice), "|") {
		t.Fatalf("Trim not idempotent: %v vs %v", contents(once), contents(twice))
	}
}

func TestTrimDoesNotAliasInput(t *testing.T) {
	t.Parallel()

	history := msgs("a", "b")
	got := Trim(history, 10, wordTokenizer{})
	got[0].Content = "changed"
	if history[0].Content != "a" {
		t.Fatalf("Trim result aliases caller slice")
	}
}

func TestEstimateTokenizer(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int
	}{
		{in: "", want: 0},
		{in: "a", want: 1},
		{in: "abcd", want: 1},
		{in: "abcde", want: 2},
		{in: "привет мир", want: 3},
	}
	for _, tc := range cases {
		if got := (EstimateTokenizer{}).CountTokens(tc.in); got != tc.want {
			t.Fatalf("CountTokens(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeRole(t *testing.T) {
	t.Parallel()

	if NormalizeRole("Assistant") != RoleAssistant {
		t.Fatalf("expected assistant role")
	}
	if NormalizeRole("bot") != RoleAssistant {
		t.Fatalf("expected bot to map to assistant")
	}
	if NormalizeRole("") != RoleUser {
		t.Fatalf("expected default user role")
	}
}
