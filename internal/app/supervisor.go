package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	logx "econbot/pkg/logx"
)

// supervisor runs the daemon's background loops (cron, config watch,
// watchdog) under one context. A panic or error in one loop cancels the
// others; the first error is kept.
type supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logx.Logger

	errOnce  sync.Once
	firstErr atomic.Value // stores error
	wg       sync.WaitGroup
}

func newSupervisor(parent context.Context, log logx.Logger) *supervisor {
	ctx, cancel := context.WithCancel(parent)
	return &supervisor{ctx: ctx, cancel: cancel, log: log}
}

func (s *supervisor) Context() context.Context { return s.ctx }

func (s *supervisor) Err() error {
	if err, ok := s.firstErr.Load().(error); ok {
		return err
	}
	return nil
}

func (s *supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("goroutine panicked", logx.String("name", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				s.fail(fmt.Errorf("panic in %s: %v", name, r))
			}
		}()

		s.log.Debug("goroutine started", logx.String("name", name))
		if err := fn(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.fail(fmt.Errorf("%s: %w", name, err))
		}
		s.log.Debug("goroutine stopped", logx.String("name", name))
	}()
}

func (s *supervisor) fail(err error) {
	s.errOnce.Do(func() { s.firstErr.Store(err) })
	s.cancel()
}

// Wait blocks until every loop returned or ctx is done.
func (s *supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return s.Err()
	}
}
