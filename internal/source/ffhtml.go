package source

import (
	"bytes"
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"econbot/internal/calendar"
)

const ffHTMLDefaultURL = "https://www.forexfactory.com/calendar"

// FFHTML scrapes the ForexFactory calendar page. Rows only carry the date on
// the first event of each day and the time on the first event of each slot,
// so both carry over to the rows that follow.
type FFHTML struct {
	url  string
	http httpDoer
}

func NewFFHTML(c Config) *FFHTML {
	return &FFHTML{url: baseURL(c.BaseURL, ffHTMLDefaultURL), http: newHTTPDoer("ffhtml", c)}
}

func (s *FFHTML) Timeout() time.Duration { return s.http.client.Timeout }

func (s *FFHTML) Name() string { return "ffhtml" }

func (s *FFHTML) Fetch(ctx context.Context, w Window) ([]calendar.RawRecord, error) {
	body, err := s.http.do(ctx, http.MethodGet, s.url, nil, map[string]string{
		"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fetchErr(s.Name(), "parse html: %w", err)
	}
	return parseFFRows(doc, s.Name(), w.From), nil
}

func parseFFRows(doc *goquery.Document, name string, ref time.Time) []calendar.RawRecord {
	var (
		out     []calendar.RawRecord
		curDate string
		curTime string
	)
	doc.Find("tr.calendar__row").Each(func(_ int, row *goquery.Selection) {
		if d := cellText(row, "td.calendar__date"); d != "" {
			if full, ok := ffDateWithYear(d, ref); ok {
				curDate = full
			} else {
				curDate = ""
			}
			curTime = ""
		}
		if t := cellText(row, "td.calendar__time"); t != "" {
			curTime = t
		}

		impact, ok := row.Find("td.calendar__impact span").First().Attr("class")
		if !ok {
			return
		}
		title := cellText(row, "td.calendar__event")
		if title == "" {
			return
		}
		out = append(out, calendar.RawRecord{
			Source:   name,
			Impact:   impact,
			Country:  cellText(row, "td.calendar__currency"),
			Title:    title,
			Date:     curDate,
			Time:     curTime,
			Forecast: cellText(row, "td.calendar__forecast"),
			Previous: cellText(row, "td.calendar__previous"),
			Actual:   cellText(row, "td.calendar__actual"),
		})
	})
	return out
}

func cellText(row *goquery.Selection, sel string) string {
	return strings.Join(strings.Fields(row.Find(sel).First().Text()), " ")
}

var ffDateRe = regexp.MustCompile(`^([A-Za-z]{3})\s*([A-Za-z]{3})\s*(\d{1,2})$`)

// ffDateWithYear turns "MonJan 13" or "Mon Jan 13" into "Mon Jan 13 2025",
// picking the year closest to ref so a week spanning New Year resolves.
func ffDateWithYear(s string, ref time.Time) (string, bool) {
	m := ffDateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	base := m[1] + " " + m[2] + " " + m[3]
	best := ""
	var bestDiff time.Duration
	for _, y := range []int{ref.Year() - 1, ref.Year(), ref.Year() + 1} {
		cand := base + " " + strconv.Itoa(y)
		t, err := time.Parse("Mon Jan 2 2006", cand)
		if err != nil {
			continue
		}
		diff := t.Sub(ref)
		if diff < 0 {
			diff = -diff
		}
		if best == "" || diff < bestDiff {
			best, bestDiff = cand, diff
		}
	}
	return best, best != ""
}
