package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"econbot/internal/calendar"
	"econbot/pkg/logx"
)

type fakeSource struct {
	name  string
	recs  []calendar.RawRecord
	err   error
	block bool
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, _ Window) ([]calendar.RawRecord, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.recs, f.err
}

func highUSD(src, title, at string) calendar.RawRecord {
	return calendar.RawRecord{Source: src, Impact: "High", Country: "USD", Title: title, DateTime: at}
}

func testChain(timeout time.Duration, srcs ...Source) *Chain {
	norm := calendar.NewNormalizer(calendar.NormalizerConfig{Countries: []string{"USD"}})
	return NewChain(norm, timeout, logx.Nop(), srcs...)
}

func TestChainUsesFirstNonEmptySourceExclusively(t *testing.T) {
	t.Parallel()
	a := &fakeSource{name: "a", recs: []calendar.RawRecord{highUSD("a", "CPI m/m", "2025-01-15T08:30:00-05:00")}}
	b := &fakeSource{name: "b", recs: []calendar.RawRecord{highUSD("b", "Retail Sales", "2025-01-16T08:30:00-05:00")}}

	res := testChain(time.Second, a, b).Run(context.Background(), Window{})
	if res.Source != "a" || len(res.Events) != 1 || res.Events[0].Title != "CPI m/m" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if b.calls != 0 {
		t.Fatalf("second source must not be called, calls=%d", b.calls)
	}
}

func TestChainFallsThroughErrorsAndEmptyResults(t *testing.T) {
	t.Parallel()
	failing := &fakeSource{name: "failing", err: errors.New("boom")}
	onlyLow := &fakeSource{name: "low", recs: []calendar.RawRecord{{Impact: "Low", Country: "USD", Title: "x", DateTime: "2025-01-15T08:30:00Z"}}}
	good := &fakeSource{name: "good", recs: []calendar.RawRecord{highUSD("good", "FOMC Statement", "2025-01-29T14:00:00-05:00")}}

	res := testChain(time.Second, failing, onlyLow, good).Run(context.Background(), Window{})
	if res.Source != "good" || len(res.Events) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(res.Attempts))
	}
	var fe *FetchError
	if !errors.As(res.Attempts[0].Err, &fe) || fe.Source != "failing" {
		t.Fatalf("first attempt error = %v, want FetchError for failing", res.Attempts[0].Err)
	}
	if res.Attempts[1].Outcome != OutcomeEmpty || res.Attempts[1].Stats.Filtered != 1 {
		t.Fatalf("second attempt = %+v", res.Attempts[1])
	}
}

func TestChainAllEmptyIsNotFatal(t *testing.T) {
	t.Parallel()
	c := testChain(time.Second, &fakeSource{name: "a", err: errors.New("down")}, &fakeSource{name: "b"})
	if evs := c.Fetch(context.Background(), Window{}); len(evs) != 0 {
		t.Fatalf("events = %d, want 0", len(evs))
	}
	if evs := testChain(time.Second).Fetch(context.Background(), Window{}); len(evs) != 0 {
		t.Fatalf("empty chain returned %d events", len(evs))
	}
}

func TestChainPerSourceTimeout(t *testing.T) {
	t.Parallel()
	slow := &fakeSource{name: "slow", block: true}
	good := &fakeSource{name: "good", recs: []calendar.RawRecord{highUSD("good", "GDP q/q", "2025-01-30T08:30:00-05:00")}}

	start := time.Now()
	res := testChain(50*time.Millisecond, slow, good).Run(context.Background(), Window{})
	if res.Source != "good" {
		t.Fatalf("source = %q, want good", res.Source)
	}
	if !errors.Is(res.Attempts[0].Err, context.DeadlineExceeded) {
		t.Fatalf("slow attempt err = %v, want deadline exceeded", res.Attempts[0].Err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("timeout did not bound the slow source")
	}
}

type budgetSource struct {
	*fakeSource
	budget time.Duration
}

func (b budgetSource) Timeout() time.Duration { return b.budget }

func TestChainHonorsSourceOwnTimeout(t *testing.T) {
	t.Parallel()
	slow := budgetSource{fakeSource: &fakeSource{name: "slow", block: true}, budget: 50 * time.Millisecond}
	good := &fakeSource{name: "good", recs: []calendar.RawRecord{highUSD("good", "GDP q/q", "2025-01-30T08:30:00-05:00")}}

	start := time.Now()
	res := testChain(time.Minute, slow, good).Run(context.Background(), Window{})
	if res.Source != "good" {
		t.Fatalf("source = %q, want good", res.Source)
	}
	if !errors.Is(res.Attempts[0].Err, context.DeadlineExceeded) {
		t.Fatalf("slow attempt err = %v, want deadline exceeded", res.Attempts[0].Err)
	}
	if took := time.Since(start); took > 10*time.Second {
		t.Fatalf("chain waited %v; the source budget was 50ms", took)
	}
}

func TestConfiguredSourcesReportTimeout(t *testing.T) {
	t.Parallel()
	for _, typ := range []string{"ffjson", "ffhtml", "investing"} {
		s, err := NewFromConfig(Config{Type: typ, Timeout: 7 * time.Second})
		if err != nil {
			t.Fatalf("NewFromConfig(%s): %v", typ, err)
		}
		to, ok := s.(Timeouter)
		if !ok || to.Timeout() != 7*time.Second {
			t.Fatalf("%s: timeout not exposed (ok=%v)", typ, ok)
		}
	}
}

func TestDaysWindow(t *testing.T) {
	t.Parallel()
	w := DaysWindow(time.Date(2025, 1, 13, 22, 15, 0, 0, time.FixedZone("X", -3*3600)), 2)
	if want := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC); !w.From.Equal(want) {
		t.Fatalf("From = %v, want %v", w.From, want)
	}
	if want := time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC); !w.To.Equal(want) {
		t.Fatalf("To = %v, want %v", w.To, want)
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()
	for _, typ := range []string{"ffjson", "FFHTML", " investing "} {
		s, err := NewFromConfig(Config{Type: typ})
		if err != nil || s == nil {
			t.Fatalf("NewFromConfig(%q) = %v, %v", typ, s, err)
		}
	}
	if _, err := NewFromConfig(Config{Type: "bloomberg"}); err == nil {
		t.Fatal("unknown type must fail")
	}
}
