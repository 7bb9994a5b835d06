// Package notify delivers alert messages to recipients over the configured
// transports. Delivery is fire-and-continue: a failing recipient is logged
// and the next one is tried, nothing is retried.
package notify

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"econbot/pkg/logx"
)

// Notifier sends one message to one recipient over a single transport.
type Notifier interface {
	Send(ctx context.Context, r Recipient, message string) error
}

type Config struct {
	Recipients  []Recipient
	RatePerSec  float64       // client-side pacing; <0 disables, 0 means 1
	SendTimeout time.Duration // per send; 0 means 30s
}

type Result struct {
	Recipient Recipient
	Err       error
	Took      time.Duration
}

// Dispatcher fans a message out to recipients through the transport of each
// recipient's channel.
type Dispatcher struct {
	transports map[Channel]Notifier
	recipients []Recipient
	limiter    *rate.Limiter
	timeout    time.Duration
	log        logx.Logger
	observe    func(Result)
}

func NewDispatcher(cfg Config, transports map[Channel]Notifier, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{
		transports: transports,
		recipients: append([]Recipient(nil), cfg.Recipients...),
		timeout:    cfg.SendTimeout,
		log:        log.With(logx.String("comp", "notify")),
	}
	if d.timeout <= 0 {
		d.timeout = 30 * time.Second
	}
	rps := cfg.RatePerSec
	switch {
	case rps < 0:
		d.limiter = rate.NewLimiter(rate.Inf, 1)
	case rps == 0:
		rps = 1
		fallthrough
	default:
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return d
}

// OnResult registers fn to be called after every send attempt.
func (d *Dispatcher) OnResult(fn func(Result)) { d.observe = fn }

func (d *Dispatcher) Recipients() []Recipient { return append([]Recipient(nil), d.recipients...) }

// Deliver broadcasts to the configured recipients and returns the number of
// failed sends.
func (d *Dispatcher) Deliver(ctx context.Context, message string) int {
	failed := 0
	for _, r := range d.Broadcast(ctx, d.recipients, message) {
		if r.Err != nil {
			failed++
		}
	}
	return failed
}

// Broadcast attempts every recipient in order. One failure never stops the
// remaining sends.
func (d *Dispatcher) Broadcast(ctx context.Context, recipients []Recipient, message string) []Result {
	out := make([]Result, 0, len(recipients))
	for _, r := range recipients {
		res := d.sendOne(ctx, r, message)
		if res.Err != nil {
			d.log.Warn("send failed", logx.String("to", r.String()), logx.Duration("took", res.Took), logx.Err(res.Err))
		} else {
			d.log.Debug("sent", logx.String("to", r.String()), logx.Duration("took", res.Took))
		}
		if d.observe != nil {
			d.observe(res)
		}
		out = append(out, res)
	}
	return out
}

func (d *Dispatcher) sendOne(ctx context.Context, r Recipient, message string) Result {
	start := time.Now()
	n, ok := d.transports[r.Channel]
	if !ok || n == nil {
		return Result{Recipient: r, Err: fmt.Errorf("%w: %s", ErrUnknownChannel, r.Channel)}
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return Result{Recipient: r, Err: err, Took: time.Since(start)}
	}
	sctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := n.Send(sctx, r, message)
	return Result{Recipient: r, Err: err, Took: time.Since(start)}
}
