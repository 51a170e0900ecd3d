package email

import (
	"regexp"
	"strings"
)

const maxLinkLength = 200

var linkPattern = regexp.MustCompile(`https?://[^\s<>"'()\[\]{}]+`)

// excludedLinkParts marks tracking, unsubscribe and analytics links.
var excludedLinkParts = []string{
	"unsubscribe",
	"tracking",
	"pixel",
	"beacon",
	"analytics",
	"googletagmanager",
	"facebook.com/tr",
	"doubleclick.net",
	"google-analytics",
	"utm_",
	"mailchimp",
	"constantcontact",
	"campaignmonitor",
	"sendinblue",
}

// ExtractLinks returns up to MaxLinks distinct content links found in text,
// in order of first appearance.
func ExtractLinks(text string) []string {
	matches := linkPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	links := make([]string, 0, MaxLinks)
	for _, raw := range matches {
		link := strings.TrimRight(raw, ".,;:!?*")
		if len(link) >= maxLinkLength || isExcludedLink(link) {
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
		if len(links) == MaxLinks {
			break
		}
	}
	return links
}

func isExcludedLink(link string) bool {
	lower := strings.ToLower(link)
	for _, part := range excludedLinkParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}
