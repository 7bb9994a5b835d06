package calendar

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Sentiment compares a published actual value against the consensus estimate.
type Sentiment int

const (
	SentimentNone Sentiment = iota
	SentimentBetter
	SentimentWorse
	SentimentInline
)

func (s Sentiment) String() string {
	switch s {
	case SentimentBetter:
		return "better"
	case SentimentWorse:
		return "worse"
	case SentimentInline:
		return "inline"
	default:
		return ""
	}
}

var unitSuffix = map[byte]decimal.Decimal{
	'K': decimal.New(1, 3),
	'M': decimal.New(1, 6),
	'B': decimal.New(1, 9),
	'T': decimal.New(1, 12),
}

// ParseNumeric parses calendar values such as "3.5%", "-0.2%", "1,234.5K" or
// "250K". It strips percent signs, thousands separators and whitespace, and
// scales K/M/B/T suffixes. ok is false for anything else ("n/a", "", "--").
func ParseNumeric(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	s = strings.NewReplacer(
		"%", "",
		",", "",
		" ", "",
		" ", "",
		"−", "-", // unicode minus
		"+", "",
	).Replace(s)
	if s == "" {
		return decimal.Zero, false
	}

	mult := decimal.NewFromInt(1)
	last := s[len(s)-1]
	if last >= 'a' && last <= 'z' {
		last -= 'a' - 'A'
	}
	if m, ok := unitSuffix[last]; ok {
		mult = m
		s = s[:len(s)-1]
	}
	if s == "" || s == "-" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d.Mul(mult), true
}

// Classify compares actual to estimate. It returns SentimentNone when either
// value is not numeric; that is not an error.
func Classify(actual, estimate string) Sentiment {
	a, ok := ParseNumeric(actual)
	if !ok {
		return SentimentNone
	}
	e, ok := ParseNumeric(estimate)
	if !ok {
		return SentimentNone
	}
	switch a.Cmp(e) {
	case 1:
		return SentimentBetter
	case -1:
		return SentimentWorse
	default:
		return SentimentInline
	}
}
