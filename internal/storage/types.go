package storage

import (
	"errors"
	"strings"
	"time"
)

// ErrCorrupt wraps decode failures of a persisted collection. Load logs it
// and continues with an empty collection.
var ErrCorrupt = errors.New("storage: corrupt state")

// DefaultRetention is how long notification records are kept.
const DefaultRetention = 48 * time.Hour

// Config configures storage.
//
// Driver values:
//   - "file": two JSON documents next to Path (default)
//   - "sqlite": SQLite database file at Path
//   - "redis": two keys under KeyPrefix on RedisURL
//   - "memory": in-process, nothing survives the process
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	RedisURL    string
	KeyPrefix   string // redis only; default "econbot"
}

type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// RecordKey is the collection key of a notification record.
func RecordKey(eventID string, p Phase) string { return eventID + "_" + string(p) }

// NotificationRecord proves a phase was attempted for an event. At most one
// exists per (EventID, Phase).
type NotificationRecord struct {
	EventID string
	Phase   Phase
	SentAt  time.Time
}

// PendingResult is the snapshot taken at pre-alert time of an event whose
// result has not been announced yet.
type PendingResult struct {
	EventID     string
	ScheduledAt time.Time
	Country     string
	Title       string
	Estimate    string
	Previous    string
	CreatedAt   time.Time
}

// State is the full persisted snapshot.
type State struct {
	Notified map[string]NotificationRecord // by RecordKey
	Pending  map[string]PendingResult      // by event id
}

func NewState() State {
	return State{Notified: map[string]NotificationRecord{}, Pending: map[string]PendingResult{}}
}

func (s *State) ensure() {
	if s.Notified == nil {
		s.Notified = map[string]NotificationRecord{}
	}
	if s.Pending == nil {
		s.Pending = map[string]PendingResult{}
	}
}

func (s State) Has(eventID string, p Phase) bool {
	_, ok := s.Notified[RecordKey(eventID, p)]
	return ok
}

func (s *State) Mark(eventID string, p Phase, at time.Time) {
	s.ensure()
	s.Notified[RecordKey(eventID, p)] = NotificationRecord{EventID: eventID, Phase: p, SentAt: at.UTC()}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := State{
		Notified: make(map[string]NotificationRecord, len(s.Notified)),
		Pending:  make(map[string]PendingResult, len(s.Pending)),
	}
	for k, v := range s.Notified {
		out.Notified[k] = v
	}
	for k, v := range s.Pending {
		out.Pending[k] = v
	}
	return out
}

// splitRecordKey recovers the event id and phase from a collection key.
func splitRecordKey(key string) (string, Phase, bool) {
	i := strings.LastIndexByte(key, '_')
	if i <= 0 {
		return "", "", false
	}
	switch p := Phase(key[i+1:]); p {
	case PhasePre, PhasePost:
		return key[:i], p, true
	}
	return "", "", false
}
