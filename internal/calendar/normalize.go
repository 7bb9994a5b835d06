package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrFiltered marks a record that is valid but not monitored (impact or
	// country outside the configured sets). Callers drop it silently.
	ErrFiltered = errors.New("calendar: record filtered")
	// ErrMalformed marks a record that cannot be turned into an event.
	ErrMalformed = errors.New("calendar: malformed record")
)

// NormalizerConfig is the monitored set plus the provider conventions.
type NormalizerConfig struct {
	Countries     []string
	Impacts       []Impact
	ProviderTZ    *time.Location // zone of naive timestamps; default America/New_York
	IDTitleLength int
}

type Normalizer struct {
	countries map[string]struct{}
	impacts   map[Impact]struct{}
	loc       *time.Location
	idLen     int
}

func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	n := &Normalizer{
		countries: map[string]struct{}{},
		impacts:   map[Impact]struct{}{},
		loc:       cfg.ProviderTZ,
		idLen:     cfg.IDTitleLength,
	}
	for _, c := range cfg.Countries {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			n.countries[c] = struct{}{}
		}
	}
	impacts := cfg.Impacts
	if len(impacts) == 0 {
		impacts = []Impact{ImpactHigh}
	}
	for _, i := range impacts {
		n.impacts[i] = struct{}{}
	}
	if n.loc == nil {
		n.loc = easternTime()
	}
	if n.idLen <= 0 {
		n.idLen = DefaultIDTitleLength
	}
	return n
}

// Normalize converts one raw record into a canonical Event.
//
// Filtering happens before parsing, so an unmonitored record with a broken
// date is reported as ErrFiltered, not ErrMalformed.
func (n *Normalizer) Normalize(r RawRecord) (Event, error) {
	impact, ok := ParseImpact(r.Impact)
	if !ok {
		return Event{}, ErrFiltered
	}
	if _, ok := n.impacts[impact]; !ok {
		return Event{}, ErrFiltered
	}
	country := strings.ToUpper(strings.TrimSpace(r.Country))
	if _, ok := n.countries[country]; !ok {
		return Event{}, ErrFiltered
	}

	title := strings.Join(strings.Fields(r.Title), " ")
	if title == "" {
		return Event{}, fmt.Errorf("%w: missing title", ErrMalformed)
	}

	loc := r.Location
	if loc == nil {
		loc = n.loc
	}
	at, err := parseTimestamp(r, loc)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %q: %v", ErrMalformed, title, err)
	}

	return Event{
		ID:          EventID(at, country, title, n.idLen),
		Source:      r.Source,
		ScheduledAt: at,
		Country:     country,
		Title:       title,
		Impact:      impact,
		Estimate:    strings.TrimSpace(r.Forecast),
		Previous:    strings.TrimSpace(r.Previous),
		Actual:      strings.TrimSpace(r.Actual),
	}, nil
}

// BatchStats summarizes one NormalizeBatch call.
type BatchStats struct {
	Accepted   int
	Filtered   int
	Malformed  int
	Duplicates int
	Errors     []error // malformed details, for debug logging
}

// NormalizeBatch normalizes every record, skipping rejected ones. Records
// that map to an already accepted ID are dropped (first wins).
func (n *Normalizer) NormalizeBatch(raws []RawRecord) ([]Event, BatchStats) {
	var st BatchStats
	out := make([]Event, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for _, r := range raws {
		ev, err := n.Normalize(r)
		switch {
		case errors.Is(err, ErrFiltered):
			st.Filtered++
			continue
		case err != nil:
			st.Malformed++
			st.Errors = append(st.Errors, err)
			continue
		}
		if _, dup := seen[ev.ID]; dup {
			st.Duplicates++
			continue
		}
		seen[ev.ID] = struct{}{}
		out = append(out, ev)
		st.Accepted++
	}
	return out, st
}

// ParseImpact maps the provider impact spellings onto Impact.
func ParseImpact(s string) (Impact, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "high", v == "3", v == "red", strings.Contains(v, "impact-red"), strings.Contains(v, "high"):
		return ImpactHigh, true
	case v == "holiday", v == "non-economic", strings.Contains(v, "impact-gra"), strings.Contains(v, "holiday"):
		return ImpactHoliday, true
	default:
		return "", false
	}
}

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
}

var naiveDateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
}

var dateLayouts = []string{
	"2006-01-02",
	"01-02-2006",
	"2006/01/02",
	"Mon Jan 2 2006",
	"Mon Jan 02 2006",
	"Jan 2 2006",
}

var clockLayouts = []string{
	"3:04pm",
	"15:04",
	"15:04:05",
}

func parseTimestamp(r RawRecord, loc *time.Location) (time.Time, error) {
	if s := strings.TrimSpace(r.DateTime); s != "" {
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		for _, layout := range naiveDateTimeLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unsupported datetime %q", s)
	}

	ds := strings.Join(strings.Fields(r.Date), " ")
	ts := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(r.Time), " ", ""))
	if ds == "" {
		return time.Time{}, errors.New("missing date")
	}
	if ts == "" || ts == "allday" || ts == "tentative" || strings.HasPrefix(ts, "day") {
		return time.Time{}, fmt.Errorf("no clock time %q", r.Time)
	}

	var (
		day   time.Time
		found bool
	)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, ds); err == nil {
			day, found = t, true
			break
		}
	}
	if !found {
		return time.Time{}, fmt.Errorf("unsupported date %q", r.Date)
	}
	for _, layout := range clockLayouts {
		if c, err := time.Parse(layout, ts); err == nil {
			t := time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), c.Second(), 0, loc)
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time %q", r.Time)
}

func easternTime() *time.Location {
	if loc, err := time.LoadLocation("America/New_York"); err == nil {
		return loc
	}
	// No tzdata available: EST without DST is the closest fixed offset.
	return time.FixedZone("EST", -5*3600)
}
