// Package source fetches raw calendar records from the providers and turns
// them into canonical events through an ordered fallback chain.
package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"econbot/internal/calendar"
)

// Window is the [From, To) span of calendar days a fetch should cover.
type Window struct {
	From time.Time
	To   time.Time
}

// DaysWindow covers the calendar days [day(now), day(now)+days) in UTC.
func DaysWindow(now time.Time, days int) Window {
	if days <= 0 {
		days = 1
	}
	now = now.UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Window{From: from, To: from.AddDate(0, 0, days)}
}

// Source is one provider adapter. Fetch returns every entry it could
// extract; bad entries are skipped, never fatal to the fetch.
type Source interface {
	Name() string
	Fetch(ctx context.Context, w Window) ([]calendar.RawRecord, error)
}

// Timeouter is implemented by sources with their own fetch budget. The
// chain uses it instead of its default timeout.
type Timeouter interface {
	Timeout() time.Duration
}

// FetchError is returned when a provider could not be reached or answered
// with something unusable.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string { return "source " + e.Source + ": " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

func fetchErr(name string, format string, args ...any) error {
	return &FetchError{Source: name, Err: fmt.Errorf(format, args...)}
}

// Config describes one entry of the provider chain.
type Config struct {
	Type      string
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Countries []string // investing only: currencies to request
}

// NewFromConfig builds a Source by type.
func NewFromConfig(c Config) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "ffjson":
		return NewFFJSON(c), nil
	case "ffhtml":
		return NewFFHTML(c), nil
	case "investing":
		return NewInvesting(c), nil
	default:
		return nil, fmt.Errorf("unknown source type: %q", c.Type)
	}
}
