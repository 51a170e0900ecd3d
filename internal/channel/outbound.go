// Package channel splits outbound text and delivers it to a messaging sink.
package channel

import (
	"context"
	"strings"
	"unicode/utf8"
)

// Sink delivers one text message to a fixed destination.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, text string) error

func (f SinkFunc) Send(ctx context.Context, text string) error {
	return f(ctx, text)
}

// SplitFixed cuts text into consecutive pieces of at most limit runes.
// Concatenating the pieces yields text. Empty text yields no pieces and a
// non-positive limit disables splitting.
func SplitFixed(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	chunks := make([]string, 0, utf8.RuneCountInString(text)/limit+1)
	start, count := 0, 0
	for i := range text {
		if count == limit {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	chunks = append(chunks, text[start:])
	return chunks
}

// maxEntityLen bounds how far back SplitMarkup looks for an open entity.
const maxEntityLen = 10

// SplitMarkup is SplitFixed for HTML text: a cut that would land inside a tag
// or a character entity moves back to just before it. Pieces stay within
// limit runes and concatenate back to text. A tag longer than limit is still
// split.
func SplitMarkup(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for text != "" {
		cut, count := len(text), 0
		for i := range text {
			if count == limit {
				cut = i
				break
			}
			count++
		}
		if cut < len(text) {
			cut = markupSafeCut(text[:cut])
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	return chunks
}

func markupSafeCut(piece string) int {
	cut := len(piece)
	if lt := strings.LastIndexByte(piece, '<'); lt > 0 && !strings.Contains(piece[lt:], ">") {
		cut = lt
	}
	if amp := strings.LastIndexByte(piece[:cut], '&'); amp > 0 && cut-amp <= maxEntityLen && !strings.Contains(piece[amp:cut], ";") {
		cut = amp
	}
	return cut
}

// ChunkText splits a reply at line boundaries where possible so each piece
// stays within limit runes. Lines longer than limit fall back to SplitFixed.
func ChunkText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, line := range strings.Split(text, "\n") {
		n := utf8.RuneCountInString(line)
		sep := 0
		if curLen > 0 {
			sep = 1
		}
		if curLen+sep+n <= limit {
			if sep == 1 {
				cur.WriteByte('\n')
			}
			cur.WriteString(line)
			curLen += sep + n
			continue
		}
		flush()
		if n <= limit {
			cur.WriteString(line)
			curLen = n
			continue
		}
		chunks = append(chunks, SplitFixed(line, limit)...)
	}
	flush()
	return chunks
}
