package generic

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	gomessage "github.com/emersion/go-message/mail"

	"github.com/memohai/supportbot/internal/email"
)

const maxPartBytes = 1 << 20

var timeNow = time.Now

// ParseMessage parses an RFC 5322 message into an Item, preferring the
// text/plain part and converting HTML otherwise. The envelope fields are
// taken from the message headers.
func ParseMessage(raw []byte) (email.Item, error) {
	if len(raw) == 0 {
		return email.Item{}, errors.New("empty message")
	}
	mr, err := gomessage.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return email.Item{}, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	var item email.Item
	item.ID = strings.Trim(mr.Header.Get("Message-Id"), "<> ")
	if subject, err := mr.Header.Subject(); err == nil {
		item.Subject = subject
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		item.Sender = formatAddress(from[0].Name, from[0].Address)
	}
	if date, err := mr.Header.Date(); err == nil {
		item.Timestamp = date
	}

	var plain, html string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if plain != "" || html != "" {
				break
			}
			return item, fmt.Errorf("read part: %w", err)
		}
		h, ok := part.Header.(*gomessage.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, _ := mime.ParseMediaType(h.Get("Content-Type"))
		if mediaType == "" {
			mediaType = "text/plain"
		}
		body, err := io.ReadAll(io.LimitReader(part.Body, maxPartBytes))
		if err != nil {
			continue
		}
		switch mediaType {
		case "text/plain":
			if plain == "" {
				plain = string(body)
			}
		case "text/html":
			if html == "" {
				html = string(body)
			}
		}
	}

	switch {
	case strings.TrimSpace(plain) != "":
		item.Body = email.NormalizeText(plain)
		item.Links = email.ExtractLinks(plain + "\n" + html)
	case strings.TrimSpace(html) != "":
		item.Body = email.HTMLToText(html)
		item.Links = email.ExtractLinks(item.Body)
	}
	return item, nil
}
