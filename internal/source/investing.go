package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"econbot/internal/calendar"
)

const investingDefaultURL = "https://www.investing.com/economic-calendar/Service/getCalendarFilteredData"

// investingCountryIDs maps currency codes to the provider's country filter ids.
var investingCountryIDs = map[string]int{
	"USD": 5,
	"EUR": 72,
	"GBP": 4,
	"JPY": 35,
	"CHF": 12,
	"AUD": 25,
	"CAD": 6,
	"NZD": 43,
}

var investingDefaultCountries = []string{"USD", "EUR", "GBP", "JPY", "CHF", "AUD", "CAD", "NZD"}

// Investing queries the calendar service behind investing.com. The answer is
// JSON wrapping an HTML table fragment; timestamps are requested in UTC.
type Investing struct {
	url       string
	http      httpDoer
	countries []string
}

func NewInvesting(c Config) *Investing {
	countries := c.Countries
	if len(countries) == 0 {
		countries = investingDefaultCountries
	}
	return &Investing{
		url:       baseURL(c.BaseURL, investingDefaultURL),
		http:      newHTTPDoer("investing", c),
		countries: countries,
	}
}

func (s *Investing) Timeout() time.Duration { return s.http.client.Timeout }

func (s *Investing) Name() string { return "investing" }

func (s *Investing) form(w Window) url.Values {
	v := url.Values{}
	v.Set("dateFrom", w.From.UTC().Format("2006-01-02"))
	// dateTo is inclusive upstream.
	to := w.To.UTC().AddDate(0, 0, -1)
	if to.Before(w.From) {
		to = w.From
	}
	v.Set("dateTo", to.Format("2006-01-02"))
	for _, c := range s.countries {
		if id, ok := investingCountryIDs[strings.ToUpper(strings.TrimSpace(c))]; ok {
			v.Add("country[]", strconv.Itoa(id))
		}
	}
	v.Add("importance[]", "3")
	v.Set("timeZone", "8")
	v.Set("timeFilter", "timeRemain")
	v.Set("currentTab", "custom")
	v.Set("limit_from", "0")
	return v
}

func (s *Investing) Fetch(ctx context.Context, w Window) ([]calendar.RawRecord, error) {
	body, err := s.http.do(ctx, http.MethodPost, s.url, strings.NewReader(s.form(w).Encode()), map[string]string{
		"Content-Type":     "application/x-www-form-urlencoded",
		"X-Requested-With": "XMLHttpRequest",
		"Accept":           "application/json",
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data *string `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fetchErr(s.Name(), "decode: %w", err)
	}
	if payload.Data == nil {
		return nil, fetchErr(s.Name(), "response has no data field")
	}
	// The fragment is a bare list of <tr>; wrap it so the parser keeps rows.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<table>" + *payload.Data + "</table>"))
	if err != nil {
		return nil, fetchErr(s.Name(), "parse html: %w", err)
	}
	return parseInvestingRows(doc, s.Name()), nil
}

func parseInvestingRows(doc *goquery.Document, name string) []calendar.RawRecord {
	var out []calendar.RawRecord
	doc.Find("tr.js-event-item").Each(func(_ int, row *goquery.Selection) {
		ts, _ := row.Attr("data-event-datetime")
		bulls := row.Find("td.sentiment i.grayFullBullishIcon").Length()
		out = append(out, calendar.RawRecord{
			Source:   name,
			Impact:   strconv.Itoa(bulls),
			Country:  cellText(row, "td.flagCur"),
			Title:    cellText(row, "td.event"),
			DateTime: ts,
			Location: time.UTC,
			Forecast: cellText(row, "td.fore"),
			Previous: cellText(row, "td.prev"),
			Actual:   cellText(row, "td.act"),
		})
	})
	return out
}
