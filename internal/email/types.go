// Package email defines mailbox items consumed by the newsletter and the
// helpers shared by mailbox adapters.
package email

import (
	"context"
	"time"
)

// MaxLinks bounds the links kept per item.
const MaxLinks = 10

// Item is one fetched email. Adapters build it once and never mutate it.
type Item struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Links     []string  `json:"links,omitempty"`
}

// Fetcher lists mailbox items received within the last lookbackDays days.
type Fetcher interface {
	FetchRecent(ctx context.Context, lookbackDays int) ([]Item, error)
}

// OutboundEmail is a message sent through an SMTP adapter.
type OutboundEmail struct {
	To      []string
	Subject string
	Body    string
	HTML    bool
}

// Sender delivers an outbound email and returns its message id.
type Sender interface {
	Send(ctx context.Context, msg OutboundEmail) (string, error)
}

// Since returns the start of the lookback window ending at now.
func Since(now time.Time, lookbackDays int) time.Time {
	if lookbackDays < 1 {
		lookbackDays = 1
	}
	return now.AddDate(0, 0, -lookbackDays)
}
