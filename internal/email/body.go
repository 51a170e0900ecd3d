package email

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// HTMLToText renders an HTML body as markdown-flavoured plain text. Links are
// kept inline so ExtractLinks can still find them. On conversion failure the
// input is returned with tags left in place.
func HTMLToText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	out, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return NormalizeText(html)
	}
	return NormalizeText(out)
}

// NormalizeText unifies line endings, trims trailing spaces and collapses runs
// of blank lines.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t ")
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// SenderKey groups items by address: the text between the first '<' and the
// following '>' when present, otherwise the raw sender unchanged.
func SenderKey(raw string) string {
	start := strings.Index(raw, "<")
	if start < 0 {
		return raw
	}
	end := strings.Index(raw[start+1:], ">")
	if end < 0 {
		return raw
	}
	return raw[start+1 : start+1+end]
}
