package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"econbot/internal/calendar"
	"econbot/internal/config"
	"econbot/internal/message"
	"econbot/internal/metrics"
	"econbot/internal/notify"
	"econbot/internal/scheduler"
	"econbot/internal/source"
	"econbot/internal/storage"
	logx "econbot/pkg/logx"
)

// Options adjusts how New wires the components. The zero value builds
// everything from the runtime config.
type Options struct {
	// DryRun routes every message to the log and keeps state in memory,
	// seeded from the configured store, which is never written.
	DryRun bool

	// Metrics is shared across rebuilds in watch mode; nil creates one.
	Metrics *metrics.Metrics

	// Sources, Store and Transports replace the configured ones when set.
	Sources    []source.Source
	Store      storage.Store
	Transports map[notify.Channel]notify.Notifier
}

// App owns one instance of each component and runs passes.
type App struct {
	log logx.Logger

	chain     *source.Chain
	store     storage.Store
	sched     *scheduler.Scheduler
	notifier  *notify.Dispatcher
	metrics   *metrics.Metrics
	retention time.Duration
	fetchDays int
	textfile  string
}

// Pass summarizes one RunOnce.
type Pass struct {
	ID      string
	Now     time.Time
	Window  source.Window
	Source  string // adapter whose events were used; empty if none
	Events  int
	Evicted int
	Pending int
	Report  scheduler.Report
	Took    time.Duration
}

// New wires the components described by rt.
func New(ctx context.Context, rt config.Runtime, log logx.Logger, opts Options) (*App, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	sources := opts.Sources
	if sources == nil {
		for _, sc := range rt.Sources {
			s, err := source.NewFromConfig(sc)
			if err != nil {
				return nil, err
			}
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		return nil, errors.New("app: no sources configured")
	}

	store, err := openStore(ctx, rt.Storage, log, opts)
	if err != nil {
		return nil, err
	}

	transports := opts.Transports
	if transports == nil {
		if opts.DryRun {
			transports = notify.LogTransports(log)
		} else if transports, err = notify.BuildTransports(rt.Notify.Recipients, rt.Transports, log); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.New(log)
	}

	d := notify.NewDispatcher(rt.Notify, transports, log)
	d.OnResult(m.ObserveDelivery)

	norm := calendar.NewNormalizer(rt.Normalizer)
	f := message.New(rt.Display, rt.DisplayLabel)

	return &App{
		log:       log.With(logx.String("comp", "app")),
		chain:     source.NewChain(norm, rt.SourceTimeout, log, sources...),
		store:     store,
		sched:     scheduler.New(rt.Scheduler, f, d, log),
		notifier:  d,
		metrics:   m,
		retention: rt.Retention,
		fetchDays: rt.FetchDays,
		textfile:  rt.MetricsTextfile,
	}, nil
}

func openStore(ctx context.Context, cfg storage.Config, log logx.Logger, opts Options) (storage.Store, error) {
	if opts.Store != nil {
		if !opts.DryRun {
			return opts.Store, nil
		}
		return seedMemory(ctx, opts.Store)
	}
	configured, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if !opts.DryRun {
		return configured, nil
	}
	defer configured.Close()
	return seedMemory(ctx, configured)
}

func seedMemory(ctx context.Context, from storage.Store) (storage.Store, error) {
	st, err := from.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed dry-run state: %w", err)
	}
	return storage.NewMemory(st), nil
}

func (a *App) Metrics() *metrics.Metrics { return a.metrics }

func (a *App) Close() error { return a.store.Close() }

// RunOnce executes one pass at now: load, evict, fetch, schedule, save.
// Only a state load or save failure is returned; everything else is logged
// and isolated to its unit of work.
func (a *App) RunOnce(ctx context.Context, now time.Time) (Pass, error) {
	start := time.Now()
	p := Pass{ID: uuid.NewString(), Now: now}
	log := a.log.With(logx.String("run", p.ID))
	log.Debug("pass started", logx.Time("now", now))

	finish := func(err error) (Pass, error) {
		p.Took = time.Since(start)
		a.metrics.ObservePass(p.Took, time.Now(), err)
		a.writeTextfile(log)
		return p, err
	}

	st, err := a.store.Load(ctx)
	if err != nil {
		log.Error("state load failed; pass skipped", logx.Err(err))
		return finish(fmt.Errorf("load state: %w", err))
	}
	p.Evicted = storage.Evict(&st, now, a.retention)

	p.Window = source.DaysWindow(now, a.fetchDays)
	res := a.chain.Run(ctx, p.Window)
	a.metrics.ObserveChain(res)
	p.Source, p.Events = res.Source, len(res.Events)

	p.Report = a.sched.Run(ctx, res.Events, &st, now)
	p.Pending = len(st.Pending)
	a.metrics.ObserveReport(p.Report, p.Pending)

	// Saved even when ctx is done so records of sent alerts are not lost.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := a.store.Save(saveCtx, st); err != nil {
		log.Error("state save failed", logx.Err(err))
		return finish(fmt.Errorf("save state: %w", err))
	}

	p, err = finish(nil)
	log.Info("pass finished",
		logx.String("source", p.Source),
		logx.Int("events", p.Events),
		logx.Int("pre_sent", p.Report.PreSent),
		logx.Int("post_sent", p.Report.PostSent),
		logx.Int("expired", p.Report.Expired),
		logx.Int("delivery_failures", p.Report.DeliveryFailures),
		logx.Int("evicted", p.Evicted),
		logx.Int("pending", p.Pending),
		logx.Duration("took", p.Took),
	)
	return p, err
}

func (a *App) writeTextfile(log logx.Logger) {
	if a.textfile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.textfile); err != nil {
		log.Warn("metrics textfile write failed", logx.String("path", a.textfile), logx.Err(err))
	}
}
