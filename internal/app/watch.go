package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"econbot/internal/config"
	"econbot/internal/metrics"
	logx "econbot/pkg/logx"
)

// Watch runs passes on the configured cron schedule until ctx is done.
// Passes never overlap. The config file is watched and a new version is
// picked up at the next pass; an invalid file keeps the previous one.
func Watch(ctx context.Context, mgr *config.Manager, log logx.Logger, opts Options) error {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "watch"))

	_, rt, version := mgr.Current()
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(log)
	}
	a, err := New(ctx, rt, log, opts)
	if err != nil {
		return err
	}
	r := &runner{app: a, mgr: mgr, version: version, log: log, opts: opts}
	defer r.close()

	sup := newSupervisor(ctx, log)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{log})), cron.WithLogger(cronLogger{log}))
	if _, err := c.AddFunc(rt.Schedule, func() { r.pass(sup.Context()) }); err != nil {
		return fmt.Errorf("schedule %q: %w", rt.Schedule, err)
	}
	c.Start()

	sup.Go("config.watch", mgr.Watch)
	sup.Go("systemd.watchdog", watchdog(log))

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("systemd notify failed", logx.Err(err))
	} else if ok {
		log.Debug("systemd notified ready")
	}
	log.Info("watching", logx.String("schedule", rt.Schedule))

	<-sup.Context().Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	// Let a running pass finish its save.
	<-c.Stop().Done()

	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := sup.Wait(waitCtx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("stopped")
	return nil
}

// runner rebuilds the App when the config manager commits a new version.
type runner struct {
	mu      sync.Mutex
	app     *App
	mgr     *config.Manager
	version uint64
	log     logx.Logger
	opts    Options
}

func (r *runner) pass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, rt, v := r.mgr.Current(); v != r.version {
		a, err := New(ctx, rt, r.log, r.opts)
		if err != nil {
			r.log.Warn("config not applied; keeping previous", logx.Err(err))
		} else {
			_ = r.app.Close()
			r.app = a
			r.log.Info("config applied", logx.Int64("version", int64(v)))
		}
		r.version = v
	}

	// Errors are logged by RunOnce; the next tick re-derives state.
	_, _ = r.app.RunOnce(ctx, time.Now())
}

func (r *runner) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.app.Close(); err != nil {
		r.log.Warn("store close failed", logx.Err(err))
	}
}

// watchdog pings systemd at half the configured interval. It returns at
// once when the watchdog is not enabled for this unit.
func watchdog(log logx.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		interval, err := daemon.SdWatchdogEnabled(false)
		if err != nil || interval <= 0 {
			return nil
		}
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
					log.Warn("systemd watchdog notify failed", logx.Err(err))
				}
			}
		}
	}
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
