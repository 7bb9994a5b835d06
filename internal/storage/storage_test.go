package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	logx "econbot/pkg/logx"
)

func sampleState(now time.Time) State {
	st := NewState()
	st.Mark("20250110T1330Z_USD_nonfarm-payrolls", PhasePre, now.Add(-25*time.Minute))
	st.Mark("20250110T1330Z_USD_nonfarm-payrolls", PhasePost, now)
	st.Mark("20250115T1330Z_USD_cpi-mm", PhasePre, now.Add(-time.Hour))
	st.Pending["20250115T1330Z_USD_cpi-mm"] = PendingResult{
		EventID:     "20250115T1330Z_USD_cpi-mm",
		ScheduledAt: time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC),
		Country:     "USD",
		Title:       "CPI m/m",
		Estimate:    "0.3%",
		CreatedAt:   now.Add(-time.Hour),
	}
	return st
}

func assertSameState(t *testing.T, got, want State) {
	t.Helper()
	if len(got.Notified) != len(want.Notified) || len(got.Pending) != len(want.Pending) {
		t.Fatalf("sizes differ: got %d/%d want %d/%d", len(got.Notified), len(got.Pending), len(want.Notified), len(want.Pending))
	}
	for k, w := range want.Notified {
		g, ok := got.Notified[k]
		if !ok || g.EventID != w.EventID || g.Phase != w.Phase || !g.SentAt.Equal(w.SentAt) {
			t.Fatalf("record %q = %+v, want %+v", k, g, w)
		}
	}
	for k, w := range want.Pending {
		g, ok := got.Pending[k]
		if !ok || g.Title != w.Title || g.Country != w.Country || g.Estimate != w.Estimate || g.Previous != w.Previous ||
			!g.ScheduledAt.Equal(w.ScheduledAt) || !g.CreatedAt.Equal(w.CreatedAt) {
			t.Fatalf("pending %q = %+v, want %+v", k, g, w)
		}
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 1, 10, 13, 36, 0, 0, time.UTC)
	for _, driver := range []string{"file", "sqlite", "memory"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "state", "econbot.db")
			s, err := Open(ctx, Config{Driver: driver, Path: path}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer s.Close()

			empty, err := s.Load(ctx)
			if err != nil || len(empty.Notified) != 0 || len(empty.Pending) != 0 {
				t.Fatalf("fresh Load = %+v, %v", empty, err)
			}

			want := sampleState(now)
			if err := s.Save(ctx, want); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			assertSameState(t, got, want)

			delete(want.Pending, "20250115T1330Z_USD_cpi-mm")
			if err := s.Save(ctx, want); err != nil {
				t.Fatalf("second Save: %v", err)
			}
			got, _ = s.Load(ctx)
			assertSameState(t, got, want)
		})
	}
}

func TestFileStoreLayout(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := Open(context.Background(), Config{Driver: "file", Path: filepath.Join(dir, "econbot.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Save(context.Background(), sampleState(time.Now())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for _, name := range []string{"econbot.notified.json", "econbot.pending.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
}

func TestFileStoreCorruptDocumentsDegradeToEmpty(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: "file", Path: filepath.Join(dir, "econbot")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := sampleState(time.Now().UTC())
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "econbot.pending.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load must not fail on corrupt data: %v", err)
	}
	if len(got.Pending) != 0 {
		t.Fatalf("corrupt pending should load empty, got %d", len(got.Pending))
	}
	if len(got.Notified) != len(want.Notified) {
		t.Fatalf("intact notified document lost: %d", len(got.Notified))
	}
}

func TestFileStoreSaveWritesNotifiedFirst(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: "file", Path: filepath.Join(dir, "econbot")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	// a directory in place of the pending document makes its rename fail
	if err := os.Mkdir(filepath.Join(dir, "econbot.pending.json"), 0o755); err != nil {
		t.Fatal(err)
	}

	want := sampleState(time.Now().UTC())
	if err := s.Save(ctx, want); err == nil {
		t.Fatalf("expected pending write to fail")
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Notified) != len(want.Notified) || len(got.Pending) != 0 {
		t.Fatalf("after partial save: %d records, %d pending", len(got.Notified), len(got.Pending))
	}
}

func TestDecodeNotifiedSkipsUnknownKeys(t *testing.T) {
	t.Parallel()
	m, err := decodeNotified([]byte(`{
		"20250110T1330Z_USD_nfp_pre": {"sent_at": "2025-01-10T13:05:00Z", "phase": "pre"},
		"garbage": {"sent_at": "2025-01-10T13:05:00Z"},
		"20250110T1330Z_USD_nfp_post": {"sent_at": "2025-01-10T13:36:00Z", "phase": "pre"}
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, ok := m["20250110T1330Z_USD_nfp_pre"]
	if len(m) != 1 || !ok || r.EventID != "20250110T1330Z_USD_nfp" || r.Phase != PhasePre {
		t.Fatalf("decoded = %+v", m)
	}
}

func TestEvict(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 1, 12, 12, 0, 0, 0, time.UTC)
	st := NewState()
	st.Mark("old", PhasePre, now.Add(-49*time.Hour))
	st.Mark("edge", PhasePre, now.Add(-48*time.Hour))
	st.Mark("fresh", PhasePost, now.Add(-time.Hour))
	st.Pending["old"] = PendingResult{EventID: "old", ScheduledAt: now.Add(-49 * time.Hour)}

	if n := Evict(&st, now, 48*time.Hour); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if st.Has("old", PhasePre) || !st.Has("edge", PhasePre) || !st.Has("fresh", PhasePost) {
		t.Fatalf("unexpected records: %+v", st.Notified)
	}
	if _, ok := st.Pending["old"]; !ok {
		t.Fatal("Evict must not touch pending results")
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory(NewState())
	st, _ := m.Load(ctx)
	st.Mark("x", PhasePre, time.Now())
	if again, _ := m.Load(ctx); len(again.Notified) != 0 {
		t.Fatal("Load must return a copy")
	}
	if err := m.Save(ctx, st); err != nil {
		t.Fatal(err)
	}
	st.Mark("y", PhasePre, time.Now())
	if again, _ := m.Load(ctx); len(again.Notified) != 1 || m.Saves() != 1 {
		t.Fatalf("Save must store a copy, got %d records", len(again.Notified))
	}
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for _, cfg := range []Config{
		{Driver: "etcd"},
		{Driver: "file"},
		{Driver: "sqlite"},
		{Driver: "redis"},
		{Driver: "redis", RedisURL: "http://localhost:6379"},
	} {
		if s, err := Open(ctx, cfg, logx.Nop()); err == nil {
			_ = s.Close()
			t.Fatalf("Open(%+v) should fail", cfg)
		}
	}
}

func TestRedisKeys(t *testing.T) {
	t.Parallel()
	s := newRedisStore(nil, "", logx.Nop())
	if s.notifiedKey != "econbot:notified" || s.pendingKey != "econbot:pending" {
		t.Fatalf("keys = %q %q", s.notifiedKey, s.pendingKey)
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mr := miniredis.RunT(t)

	s, err := Open(ctx, Config{Driver: "redis", RedisURL: "redis://" + mr.Addr(), KeyPrefix: "bot"}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	empty, err := s.Load(ctx)
	if err != nil || len(empty.Notified) != 0 || len(empty.Pending) != 0 {
		t.Fatalf("fresh Load = %+v, %v", empty, err)
	}

	want := sampleState(time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC))
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !mr.Exists("bot:notified") || !mr.Exists("bot:pending") {
		t.Fatalf("keys = %v", mr.Keys())
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameState(t, got, want)

	// corrupt document degrades to empty
	if err := mr.Set("bot:pending", "{not json"); err != nil {
		t.Fatal(err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load corrupt: %v", err)
	}
	if len(got.Pending) != 0 || len(got.Notified) != len(want.Notified) {
		t.Fatalf("corrupt load = %+v", got)
	}

	mr.Close()
	if _, err := s.Load(ctx); err == nil {
		t.Fatalf("expected error with redis down")
	}
}
