// Package calendar holds the canonical economic-calendar event and the rules
// that turn provider records into it.
//
// Everything here is pure: no clock, no I/O. Event IDs depend only on the
// record itself so repeated fetches of the same event dedupe across runs.
package calendar

import (
	"strings"
	"time"
	"unicode"
)

// Impact is the provider's market-impact rating after normalization.
type Impact string

const (
	ImpactHigh    Impact = "High"
	ImpactHoliday Impact = "Holiday"
)

// Event is the canonical, provider-independent calendar entry.
type Event struct {
	ID          string
	Source      string
	ScheduledAt time.Time // always UTC
	Country     string
	Title       string
	Impact      Impact
	Estimate    string
	Previous    string
	Actual      string // empty until published
}

// HasActual reports whether the provider has published a result.
func (e Event) HasActual() bool { return strings.TrimSpace(e.Actual) != "" }

// RawRecord is one entry as a provider adapter extracted it, before any
// filtering or time-zone handling.
//
// Either DateTime (ISO-8601, ideally with an explicit offset) or the Date/Time
// pair must be set. Naive values are interpreted in Location, or in the
// normalizer's provider zone when Location is nil.
type RawRecord struct {
	Source   string
	Impact   string
	Country  string
	Title    string
	DateTime string
	Date     string
	Time     string
	Location *time.Location
	Forecast string
	Previous string
	Actual   string
}

const (
	DefaultIDTitleLength = 24
	minIDTitleLength     = 20
	maxIDTitleLength     = 30
)

// EventID derives the stable identifier of an event from its UTC minute,
// country code and the first n characters of its normalized title.
// n is clamped to [20, 30].
func EventID(scheduledAt time.Time, country, title string, n int) string {
	switch {
	case n <= 0:
		n = DefaultIDTitleLength
	case n < minIDTitleLength:
		n = minIDTitleLength
	case n > maxIDTitleLength:
		n = maxIDTitleLength
	}
	ts := scheduledAt.UTC().Round(time.Minute).Format("20060102T1504Z")

	t := []rune(normalizeTitle(title))
	if len(t) > n {
		t = t[:n]
	}
	slug := strings.ReplaceAll(strings.TrimRight(string(t), " "), " ", "-")
	return ts + "_" + strings.ToUpper(strings.TrimSpace(country)) + "_" + slug
}

// normalizeTitle lower-cases, drops punctuation and collapses whitespace.
func normalizeTitle(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}
