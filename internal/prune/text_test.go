package prune

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestHead(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short", in: "abc", max: 5, want: "abc"},
		{name: "exact", in: "abcde", max: 5, want: "abcde"},
		{name: "cut", in: "abcdef", max: 5, want: "abcde..."},
		{name: "multibyte", in: "ёжикёжик", max: 3, want: "ёжи..."},
		{name: "zero", in: "abc", max: 0, want: "..."},
	}
	for _, tt := range tests {
		if got := Head(tt.in, tt.max, Ellipsis); got != tt.want {
			t.Fatalf("%s: Head = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestFit(t *testing.T) {
	t.Parallel()

	got := Fit(strings.Repeat("я", 20), 10, Ellipsis)
	if utf8.RuneCountInString(got) != 10 || !strings.HasSuffix(got, Ellipsis) {
		t.Fatalf("Fit = %q", got)
	}
	if Fit("short", 10, Ellipsis) != "short" {
		t.Fatalf("Fit changed short text")
	}
	if Fit("abcdef", 2, Ellipsis) != ".." {
		t.Fatalf("Fit with tiny budget = %q", Fit("abcdef", 2, Ellipsis))
	}
}

func TestSafePrefix(t *testing.T) {
	t.Parallel()

	s := "aж"
	if got := SafePrefix(s, 2); got != "a" {
		t.Fatalf("SafePrefix split a rune: %q", got)
	}
	if got := SafePrefix(s, 3); got != s {
		t.Fatalf("SafePrefix = %q", got)
	}
	if SafePrefix(s, 0) != "" {
		t.Fatalf("expected empty prefix")
	}
}
