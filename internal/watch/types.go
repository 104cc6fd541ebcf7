// Package watch implements the restock check pipeline: availability
// classification, transition evaluation, and single-run orchestration.
package watch

import (
	"context"
	"net/http"
	"time"
)

// Status is the availability state persisted between runs.
type Status string

// Status values. StatusUnknown marks a watch that has never completed a run.
const (
	StatusUnknown    Status = "UNKNOWN"
	StatusBuyable    Status = "BUYABLE"
	StatusNotBuyable Status = "NOT_BUYABLE"
)

// Verdict is the outcome of classifying one page: a status plus a
// human-readable reason suitable for the one-line stdout report.
type Verdict struct {
	Status Status
	Reason string
}

// Buyable reports whether the verdict allows a purchase.
func (v Verdict) Buyable() bool {
	return v.Status == StatusBuyable
}

// Page is the raw markup handed to the classifier.
type Page struct {
	URL  string
	Body []byte
}

// State is the record persisted between runs.
// LastNotifiedAt is nil until the first notification attempt and is never
// cleared once set.
type State struct {
	LastStatus     Status     `json:"last_status"`
	LastCheckedAt  time.Time  `json:"last_checked_at"`
	LastNotifiedAt *time.Time `json:"last_notified_at"`
}

// FetchRequest captures everything needed to fetch the product page.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetcher retrieves the product page markup.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Store loads and persists the watch state.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// Notification is the message delivered when a watch becomes buyable.
type Notification struct {
	Status    Status
	Reason    string
	URL       string
	CheckedAt time.Time
	RunID     string
}

// Notifier delivers a restock notification to an external channel.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
