package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// On-disk shapes shared by the file and redis drivers.

type notifiedDoc struct {
	SentAt time.Time `json:"sent_at"`
	Phase  Phase     `json:"phase"`
}

type pendingDoc struct {
	CreatedAt   time.Time `json:"created_at"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Country     string    `json:"country"`
	Title       string    `json:"title"`
	Estimate    string    `json:"estimate,omitempty"`
	Previous    string    `json:"previous,omitempty"`
}

func encodeNotified(m map[string]NotificationRecord) ([]byte, error) {
	doc := make(map[string]notifiedDoc, len(m))
	for k, r := range m {
		doc[k] = notifiedDoc{SentAt: r.SentAt.UTC(), Phase: r.Phase}
	}
	return json.MarshalIndent(doc, "", "  ")
}

func decodeNotified(b []byte) (map[string]NotificationRecord, error) {
	var doc map[string]notifiedDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: notified: %v", ErrCorrupt, err)
	}
	out := make(map[string]NotificationRecord, len(doc))
	for k, d := range doc {
		id, p, ok := splitRecordKey(k)
		if !ok {
			continue
		}
		if d.Phase != "" && d.Phase != p {
			continue
		}
		out[k] = NotificationRecord{EventID: id, Phase: p, SentAt: d.SentAt.UTC()}
	}
	return out, nil
}

func encodePending(m map[string]PendingResult) ([]byte, error) {
	doc := make(map[string]pendingDoc, len(m))
	for id, p := range m {
		doc[id] = pendingDoc{
			CreatedAt:   p.CreatedAt.UTC(),
			ScheduledAt: p.ScheduledAt.UTC(),
			Country:     p.Country,
			Title:       p.Title,
			Estimate:    p.Estimate,
			Previous:    p.Previous,
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

func decodePending(b []byte) (map[string]PendingResult, error) {
	var doc map[string]pendingDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: pending: %v", ErrCorrupt, err)
	}
	out := make(map[string]PendingResult, len(doc))
	for id, d := range doc {
		if id == "" {
			continue
		}
		out[id] = PendingResult{
			EventID:     id,
			ScheduledAt: d.ScheduledAt.UTC(),
			Country:     d.Country,
			Title:       d.Title,
			Estimate:    d.Estimate,
			Previous:    d.Previous,
			CreatedAt:   d.CreatedAt.UTC(),
		}
	}
	return out, nil
}
