package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"econbot/internal/app"
	"econbot/internal/config"
	logx "econbot/pkg/logx"
)

func main() {
	var (
		cfgPath string
		envPath string
		nowRaw  string
		watch   bool
		dryRun  bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config (json or yaml)")
	flag.StringVar(&envPath, "env", ".env", "optional dotenv file with secrets")
	flag.StringVar(&nowRaw, "now", "", "pin the pass clock (RFC3339); single pass only")
	flag.BoolVar(&watch, "watch", false, "run passes on the configured schedule until stopped")
	flag.BoolVar(&dryRun, "dry-run", false, "log messages instead of sending them and never write state")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.LoadDotEnv(envPath); err != nil {
		fatal(err)
	}
	mgr := config.NewManager(cfgPath)
	_, rt, err := mgr.Load()
	if err != nil {
		fatal(err)
	}

	if watch && nowRaw != "" {
		fatal(fmt.Errorf("-now cannot be combined with -watch"))
	}
	now := time.Now()
	if nowRaw != "" {
		if now, err = time.Parse(time.RFC3339, nowRaw); err != nil {
			fatal(fmt.Errorf("-now: %w", err))
		}
	}

	logs, log := logx.New(rt.Logging)
	mgr.SetLogger(log)
	opts := app.Options{DryRun: dryRun}

	code := 0
	if watch {
		if err := app.Watch(ctx, mgr, log, opts); err != nil {
			log.Error("watch stopped", logx.Err(err))
			code = 1
		}
	} else if err := runOnce(ctx, rt, log, opts, now); err != nil {
		log.Error("pass failed", logx.Err(err))
		code = 1
	}
	_ = logs.Close()
	cancel()
	os.Exit(code)
}

func runOnce(ctx context.Context, rt config.Runtime, log logx.Logger, opts app.Options, now time.Time) error {
	a, err := app.New(ctx, rt, log, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	_, err = a.RunOnce(ctx, now)
	return err
}

func fatal(err error) {
	fmt.Println("fatal:", err)
	os.Exit(1)
}
