// Package scheduler decides, for one pass, which pre-alerts and post-alerts
// are due and which pending results have expired.
//
// Per-event states are never stored. They follow from the state collections:
//
//	Unseen          no pre record
//	PreNotified     pre record, no post record
//	AwaitingResult  PreNotified and a pending result exists
//	PostNotified    post record (terminal)
//	Expired         pending result removed by expiry, no post record (terminal)
//
// Every send is gated by a record check made before sending, so running the
// same pass twice with the same inputs sends nothing the second time.
package scheduler

import (
	"context"
	"sort"
	"time"

	"econbot/internal/calendar"
	"econbot/internal/storage"
	"econbot/pkg/logx"
)

// Config holds the pass timing rules, in the units operators configure.
type Config struct {
	LookaheadMinutes   int
	AlertSlackMinutes  int
	ResultGraceMinutes int
	ResultExpiryHours  int
}

func DefaultConfig() Config {
	return Config{LookaheadMinutes: 30, AlertSlackMinutes: 5, ResultGraceMinutes: 5, ResultExpiryHours: 3}
}

func (c Config) preWindow() time.Duration {
	return time.Duration(c.LookaheadMinutes+c.AlertSlackMinutes) * time.Minute
}
func (c Config) grace() time.Duration  { return time.Duration(c.ResultGraceMinutes) * time.Minute }
func (c Config) expiry() time.Duration { return time.Duration(c.ResultExpiryHours) * time.Hour }

// Formatter renders alert bodies.
type Formatter interface {
	PreAlert(ev calendar.Event) string
	PostAlert(ev calendar.Event, s calendar.Sentiment) string
}

// Deliverer sends one message to every configured recipient and reports how
// many recipients failed. It must not stop at the first failure.
type Deliverer interface {
	Deliver(ctx context.Context, message string) (failed int)
}

type Kind string

const (
	KindPre     Kind = "pre"
	KindPost    Kind = "post"
	KindExpired Kind = "expired"
)

type Transition struct {
	EventID   string
	Title     string
	Kind      Kind
	Sentiment calendar.Sentiment // post only
	Failed    int                // recipients that failed
}

// Report summarizes one Run.
type Report struct {
	PreSent          int
	PostSent         int
	Expired          int
	DeliveryFailures int
	Transitions      []Transition
}

type Scheduler struct {
	cfg Config
	fmt Formatter
	out Deliverer
	log logx.Logger
}

func New(cfg Config, f Formatter, out Deliverer, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{cfg: cfg, fmt: f, out: out, log: log.With(logx.String("comp", "scheduler"))}
}

// Run applies the transition rules to events against one captured now and
// mutates st in place. The caller persists st afterwards.
//
// A notification record is written after the delivery attempt whatever its
// outcome; there is no retry.
func (s *Scheduler) Run(ctx context.Context, events []calendar.Event, st *storage.State, now time.Time) Report {
	now = now.UTC()
	if st.Pending == nil {
		st.Pending = map[string]storage.PendingResult{}
	}

	evs := append([]calendar.Event(nil), events...)
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].ScheduledAt.Before(evs[j].ScheduledAt) })

	var rep Report
	for _, ev := range evs {
		s.pre(ctx, ev, st, now, &rep)
		s.post(ctx, ev, st, now, &rep)
	}
	s.expire(st, now, &rep)
	return rep
}

// pre: Unseen -> PreNotified.
func (s *Scheduler) pre(ctx context.Context, ev calendar.Event, st *storage.State, now time.Time, rep *Report) {
	if st.Has(ev.ID, storage.PhasePre) {
		return
	}
	at := ev.ScheduledAt.UTC()
	if at.Before(now) || at.After(now.Add(s.cfg.preWindow())) {
		return
	}

	failed := s.out.Deliver(ctx, s.fmt.PreAlert(ev))
	st.Mark(ev.ID, storage.PhasePre, now)
	st.Pending[ev.ID] = storage.PendingResult{
		EventID:     ev.ID,
		ScheduledAt: at,
		Country:     ev.Country,
		Title:       ev.Title,
		Estimate:    ev.Estimate,
		Previous:    ev.Previous,
		CreatedAt:   now,
	}

	rep.PreSent++
	rep.DeliveryFailures += failed
	rep.Transitions = append(rep.Transitions, Transition{EventID: ev.ID, Title: ev.Title, Kind: KindPre, Failed: failed})
	s.log.Info("pre-alert sent", logx.String("event", ev.ID), logx.Time("at", at), logx.Int("failed", failed))
}

// post: AwaitingResult -> PostNotified.
func (s *Scheduler) post(ctx context.Context, ev calendar.Event, st *storage.State, now time.Time, rep *Report) {
	pending, ok := st.Pending[ev.ID]
	if !ok || st.Has(ev.ID, storage.PhasePost) || !ev.HasActual() {
		return
	}
	if now.Before(ev.ScheduledAt.UTC().Add(s.cfg.grace())) {
		return
	}

	// Fresh values win; the pre-alert snapshot fills what the provider dropped.
	if ev.Estimate == "" {
		ev.Estimate = pending.Estimate
	}
	if ev.Previous == "" {
		ev.Previous = pending.Previous
	}
	sent := calendar.Classify(ev.Actual, ev.Estimate)

	failed := s.out.Deliver(ctx, s.fmt.PostAlert(ev, sent))
	st.Mark(ev.ID, storage.PhasePost, now)
	delete(st.Pending, ev.ID)

	rep.PostSent++
	rep.DeliveryFailures += failed
	rep.Transitions = append(rep.Transitions, Transition{EventID: ev.ID, Title: ev.Title, Kind: KindPost, Sentiment: sent, Failed: failed})
	s.log.Info("post-alert sent", logx.String("event", ev.ID), logx.String("actual", ev.Actual),
		logx.String("sentiment", sent.String()), logx.Int("failed", failed))
}

// expire: AwaitingResult -> Expired. Runs over every pending result,
// including events the sources no longer return.
func (s *Scheduler) expire(st *storage.State, now time.Time, rep *Report) {
	ids := make([]string, 0, len(st.Pending))
	for id := range st.Pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p := st.Pending[id]
		if now.Before(p.ScheduledAt.UTC().Add(s.cfg.expiry())) {
			continue
		}
		delete(st.Pending, id)
		rep.Expired++
		rep.Transitions = append(rep.Transitions, Transition{EventID: id, Title: p.Title, Kind: KindExpired})
		s.log.Info("pending result expired", logx.String("event", id), logx.Time("at", p.ScheduledAt))
	}
}
