package datasync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"mt5copier/internal/terminal"
)

type fakeRates struct {
	calls []string
	bars  []terminal.Bar
	err   error
}

func (f *fakeRates) CopyRatesRange(ctx context.Context, symbol, timeframe string, t0, t1 time.Time) ([]terminal.Bar, error) {
	f.calls = append(f.calls, fmt.Sprintf("%s:%s:%s:%s", symbol, timeframe, t0, t1))
	if f.err != nil {
		return nil, f.err
	}
	return f.bars, nil
}

type fakeBarSink struct {
	inserted map[string][]terminal.Bar
	latest   map[string]time.Time
}

func newFakeBarSink() *fakeBarSink {
	return &fakeBarSink{inserted: map[string][]terminal.Bar{}, latest: map[string]time.Time{}}
}

func pairKey(symbol, timeframe string) string { return symbol + "/" + timeframe }

func (f *fakeBarSink) InsertBatch(ctx context.Context, symbol, timeframe string, bars []terminal.Bar) (int64, error) {
	key := pairKey(symbol, timeframe)
	f.inserted[key] = append(f.inserted[key], bars...)
	return int64(len(bars)), nil
}

func (f *fakeBarSink) LatestTime(ctx context.Context, symbol, timeframe string) (time.Time, bool, error) {
	t, ok := f.latest[pairKey(symbol, timeframe)]
	return t, ok, nil
}

type fakeLogs struct {
	lines []string
}

func (f *fakeLogs) Log(accountID, message string) {
	f.lines = append(f.lines, accountID+": "+message)
}

func TestRunResolvesDefaultFromDateWhenNeverSynced(t *testing.T) {
	rates := &fakeRates{bars: []terminal.Bar{{Time: time.Date(2020, 1, 1, 1, 0, 0, 0, time.UTC)}}}
	bars := newFakeBarSink()
	logs := &fakeLogs{}
	w := New(rates, bars, logs)

	toDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err := w.Run(context.Background(), Task{
		Symbols: []string{"EURUSD"}, Timeframes: []string{"H1"}, ToDate: &toDate,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rates.calls) != 1 {
		t.Fatalf("expected 1 CopyRatesRange call, got %d", len(rates.calls))
	}
	want := fmt.Sprintf("EURUSD:H1:%s:%s", defaultFromDate, toDate)
	if rates.calls[0] != want {
		t.Fatalf("call = %q, want %q", rates.calls[0], want)
	}
	if len(bars.inserted["EURUSD/H1"]) != 1 {
		t.Fatalf("expected bars written through to the store")
	}
}

func TestRunResolvesFromDateFromLatestStoredBar(t *testing.T) {
	rates := &fakeRates{}
	bars := newFakeBarSink()
	stored := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	bars.latest[pairKey("EURUSD", "H1")] = stored
	logs := &fakeLogs{}
	w := New(rates, bars, logs)

	toDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := w.Run(context.Background(), Task{Symbols: []string{"EURUSD"}, Timeframes: []string{"H1"}, ToDate: &toDate}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantFrom := stored.Add(time.Second)
	want := fmt.Sprintf("EURUSD:H1:%s:%s", wantFrom, toDate)
	if rates.calls[0] != want {
		t.Fatalf("call = %q, want %q", rates.calls[0], want)
	}
}

func TestRunSkipsPairAlreadyUpToDate(t *testing.T) {
	rates := &fakeRates{}
	bars := newFakeBarSink()
	toDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars.latest[pairKey("EURUSD", "H1")] = toDate

	logs := &fakeLogs{}
	w := New(rates, bars, logs)

	if err := w.Run(context.Background(), Task{Symbols: []string{"EURUSD"}, Timeframes: []string{"H1"}, ToDate: &toDate}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rates.calls) != 0 {
		t.Fatalf("expected no CopyRatesRange call for an up-to-date pair, got %d", len(rates.calls))
	}
}

func TestRunCoversCrossProductOfSymbolsAndTimeframes(t *testing.T) {
	rates := &fakeRates{}
	bars := newFakeBarSink()
	logs := &fakeLogs{}
	w := New(rates, bars, logs)

	toDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err := w.Run(context.Background(), Task{
		Symbols: []string{"EURUSD", "GBPUSD"}, Timeframes: []string{"H1", "M15"}, ToDate: &toDate,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rates.calls) != 4 {
		t.Fatalf("expected 4 pair fetches, got %d: %v", len(rates.calls), rates.calls)
	}

	foundProgress := false
	for _, line := range logs.lines {
		if line == "master1: 已下载 4/4" {
			foundProgress = true
		}
	}
	if !foundProgress {
		t.Fatalf("expected a final progress line reporting 4/4, got %v", logs.lines)
	}
}

func TestServeDrainsEnqueuedTasksUntilContextCancelled(t *testing.T) {
	rates := &fakeRates{}
	bars := newFakeBarSink()
	logs := &fakeLogs{}
	w := New(rates, bars, logs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Serve(ctx)
		close(done)
	}()

	toDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w.Enqueue(Task{Symbols: []string{"EURUSD"}, Timeframes: []string{"H1"}, ToDate: &toDate})

	deadline := time.After(time.Second)
	for {
		if len(rates.calls) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for Serve to run the enqueued task")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestRunLogsFailureButContinuesOtherPairs(t *testing.T) {
	rates := &fakeRates{err: fmt.Errorf("terminal unreachable")}
	bars := newFakeBarSink()
	logs := &fakeLogs{}
	w := New(rates, bars, logs)

	toDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := w.Run(context.Background(), Task{Symbols: []string{"EURUSD"}, Timeframes: []string{"H1", "M15"}, ToDate: &toDate}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rates.calls) != 2 {
		t.Fatalf("expected both pairs attempted despite failures, got %d calls", len(rates.calls))
	}
}
