package source

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"econbot/internal/calendar"
)

const ffJSONDefaultURL = "https://nfs.faireconomy.media/ff_calendar_thisweek.json"

// FFJSON reads the ForexFactory weekly export. The feed always covers the
// current week, so the window is not sent upstream.
type FFJSON struct {
	url  string
	http httpDoer
}

func NewFFJSON(c Config) *FFJSON {
	return &FFJSON{url: baseURL(c.BaseURL, ffJSONDefaultURL), http: newHTTPDoer("ffjson", c)}
}

func (s *FFJSON) Timeout() time.Duration { return s.http.client.Timeout }

func (s *FFJSON) Name() string { return "ffjson" }

type ffJSONEntry struct {
	Title    string `json:"title"`
	Country  string `json:"country"`
	Date     string `json:"date"`
	Impact   string `json:"impact"`
	Forecast string `json:"forecast"`
	Previous string `json:"previous"`
	Actual   string `json:"actual"`
}

func (s *FFJSON) Fetch(ctx context.Context, _ Window) ([]calendar.RawRecord, error) {
	body, err := s.http.do(ctx, http.MethodGet, s.url, nil, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	var entries []ffJSONEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fetchErr(s.Name(), "decode: %w", err)
	}
	out := make([]calendar.RawRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, calendar.RawRecord{
			Source:   s.Name(),
			Impact:   e.Impact,
			Country:  e.Country,
			Title:    e.Title,
			DateTime: e.Date,
			Forecast: e.Forecast,
			Previous: e.Previous,
			Actual:   e.Actual,
		})
	}
	return out, nil
}
