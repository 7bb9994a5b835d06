package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "econbot/pkg/logx"
)

// Manager loads the configuration file, overlays the environment and keeps
// the last valid result. Watch reloads it when the file changes.
type Manager struct {
	path    string
	environ map[string]string // nil means the process environment

	mu      sync.RWMutex
	cfg     *Config
	rt      Runtime
	hash    uint64
	version uint64

	log logx.Logger
}

func NewManager(path string) *Manager {
	return &Manager{path: path, log: logx.Nop()}
}

func (m *Manager) SetLogger(log logx.Logger) {
	if log.IsZero() {
		log = logx.Nop()
	}
	m.log = log.With(logx.String("comp", "config"))
}

// SetEnviron replaces the process environment as the source of overrides.
func (m *Manager) SetEnviron(environ map[string]string) { m.environ = environ }

func (m *Manager) Path() string { return m.path }

// Parse reads and strictly decodes the file: unknown fields and trailing
// data are errors. YAML is accepted for .yaml/.yml paths.
func (m *Manager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	return parseBytes(m.path, b)
}

func parseBytes(path string, b []byte) (*Config, error) {
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

// build parses the file and produces the effective config and runtime.
func (m *Manager) build() (*Config, Runtime, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, Runtime{}, err
	}
	cfg.ApplyDefaults()
	env, err := ReadEnv(m.environ)
	if err != nil {
		return nil, Runtime{}, fmt.Errorf("environment: %w", err)
	}
	cfg.Overlay(env)
	rt, err := cfg.Runtime()
	if err != nil {
		return nil, Runtime{}, err
	}
	return cfg, rt, nil
}

// Load builds and commits the configuration.
func (m *Manager) Load() (*Config, Runtime, error) {
	cfg, rt, err := m.build()
	if err != nil {
		return nil, Runtime{}, err
	}
	m.commit(cfg, rt)
	return cfg, rt, nil
}

func (m *Manager) commit(cfg *Config, rt Runtime) {
	m.mu.Lock()
	m.cfg, m.rt = cfg, rt
	m.hash = hashConfig(cfg)
	m.version++
	m.mu.Unlock()
}

// Current returns the last committed config, runtime and a version that
// changes on every commit.
func (m *Manager) Current() (*Config, Runtime, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg, m.rt, m.version
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil || len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// reload is the debounced reaction to a file event. Invalid files are
// logged and ignored; the previous config stays in effect.
func (m *Manager) reload() {
	cfg, rt, err := m.build()
	if err != nil {
		m.log.Warn("config rejected", logx.String("path", m.path), logx.Err(err))
		return
	}
	h := hashConfig(cfg)
	m.mu.RLock()
	old := m.cfg
	unchanged := h != 0 && h == m.hash
	m.mu.RUnlock()
	if unchanged {
		m.log.Debug("config unchanged; skipping", logx.String("path", m.path))
		return
	}
	m.commit(cfg, rt)

	sections, fields := SummarizeConfigChange(old, cfg)
	fields = append(fields, logx.Strs("sections", sections))
	m.log.Info("config reloaded", fields...)
}

// Watch follows the config file until ctx is done. The watcher is recreated
// with backoff when the backend breaks.
func (m *Manager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
		debounceDelay      = 250 * time.Millisecond
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	nextWait := func() time.Duration {
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff < restartBackoffMax {
			backoff *= 2
			if backoff > restartBackoffMax {
				backoff = restartBackoffMax
			}
		}
		return wait
	}
	sleep := func(d time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	// debounce to avoid reading partial writes
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceDelay, m.reload)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for ctx.Err() == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			m.log.Warn("config watch init failed", logx.String("dir", dir), logx.Err(err))
			if !sleep(nextWait()) {
				return nil
			}
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			m.log.Warn("config watch add failed", logx.String("dir", dir), logx.Err(err))
			if !sleep(nextWait()) {
				return nil
			}
			continue
		}
		backoff = restartBackoffBase
		m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce()
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				// Overflow may have hidden events; reload once and keep going.
				if strings.Contains(strings.ToLower(err.Error()), "overflow") {
					debounce()
					continue
				}
				m.log.Warn("config watch error", logx.String("dir", dir), logx.Err(err))
			}
		}

		_ = w.Close()
		wait := nextWait()
		m.log.Warn("config watcher stopped; restarting", logx.Duration("backoff", wait))
		if !sleep(wait) {
			return nil
		}
	}
	return nil
}
