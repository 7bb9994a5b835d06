package source

import (
	"context"
	"errors"
	"time"

	"econbot/internal/calendar"
	"econbot/pkg/logx"
)

const DefaultTimeout = 30 * time.Second

// Outcome of one source attempt inside a chain run.
type Outcome string

const (
	OutcomeUsed  Outcome = "used"
	OutcomeEmpty Outcome = "empty"
	OutcomeError Outcome = "error"
)

type Attempt struct {
	Source  string
	Outcome Outcome
	Records int
	Stats   calendar.BatchStats
	Err     error
	Took    time.Duration
}

// Result is what a chain run produced: the events of the first source that
// yielded any, plus one Attempt per source tried.
type Result struct {
	Source   string
	Events   []calendar.Event
	Attempts []Attempt
}

// Chain tries sources in priority order and uses the first non-empty
// normalized result exclusively. Results are never merged.
type Chain struct {
	sources []Source
	norm    *calendar.Normalizer
	timeout time.Duration
	log     logx.Logger
}

func NewChain(norm *calendar.Normalizer, timeout time.Duration, log logx.Logger, sources ...Source) *Chain {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Chain{sources: sources, norm: norm, timeout: timeout, log: log.With(logx.String("comp", "source"))}
}

// Fetch returns the events for w, or an empty slice when every source
// failed or came back empty.
func (c *Chain) Fetch(ctx context.Context, w Window) []calendar.Event {
	return c.Run(ctx, w).Events
}

func (c *Chain) Run(ctx context.Context, w Window) Result {
	var res Result
	for _, s := range c.sources {
		if ctx.Err() != nil {
			break
		}
		at := c.try(ctx, s, w)
		res.Attempts = append(res.Attempts, at.Attempt)
		if at.Outcome == OutcomeUsed {
			res.Source = s.Name()
			res.Events = at.events
			return res
		}
	}
	c.log.Warn("no source produced events", logx.Int("tried", len(res.Attempts)))
	return res
}

type attempt struct {
	Attempt
	events []calendar.Event
}

func (c *Chain) try(ctx context.Context, s Source, w Window) attempt {
	name := s.Name()
	timeout := c.timeout
	if t, ok := s.(Timeouter); ok && t.Timeout() > 0 {
		timeout = t.Timeout()
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	raws, err := s.Fetch(fctx, w)
	at := attempt{Attempt: Attempt{Source: name, Records: len(raws), Took: time.Since(start)}}
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{Source: name, Err: err}
		}
		at.Outcome, at.Err = OutcomeError, err
		c.log.Warn("source failed", logx.String("source", name), logx.Duration("took", at.Took), logx.Err(err))
		return at
	}

	evs, st := c.norm.NormalizeBatch(raws)
	at.Stats = st
	for _, e := range st.Errors {
		c.log.Debug("record skipped", logx.String("source", name), logx.Err(e))
	}
	if len(evs) == 0 {
		at.Outcome = OutcomeEmpty
		c.log.Info("source empty", logx.String("source", name), logx.Int("records", len(raws)),
			logx.Int("filtered", st.Filtered), logx.Int("malformed", st.Malformed))
		return at
	}
	at.Outcome, at.events = OutcomeUsed, evs
	c.log.Info("source used", logx.String("source", name), logx.Int("events", len(evs)),
		logx.Int("records", len(raws)), logx.Duration("took", at.Took))
	return at
}
