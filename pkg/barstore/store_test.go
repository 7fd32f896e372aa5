package barstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mt5copier/internal/terminal"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "bars.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func hourlyBars(n int) []terminal.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]terminal.Bar, n)
	for i := range bars {
		bars[i] = terminal.Bar{
			Time:       start.Add(time.Duration(i) * time.Hour),
			Open:       1.1000 + float64(i)*0.0001,
			High:       1.1005 + float64(i)*0.0001,
			Low:        1.0995 + float64(i)*0.0001,
			Close:      1.1002 + float64(i)*0.0001,
			TickVolume: int64(100 + i),
			Spread:     2,
			RealVolume: 0,
		}
	}
	return bars
}

func TestInsertBatchThenRangeRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	bars := hourlyBars(5)

	n, err := s.InsertBatch(ctx, "EURUSD", "H1", bars)
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if n != 5 {
		t.Fatalf("inserted = %d, want 5", n)
	}

	got, err := s.Range(ctx, "EURUSD", "H1", bars[0].Time, bars[len(bars)-1].Time.Add(time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("Range returned %d bars, want 5", len(got))
	}
	for i, b := range got {
		if !b.Time.Equal(bars[i].Time) || b.Open != bars[i].Open || b.Close != bars[i].Close {
			t.Fatalf("bar %d = %+v, want %+v", i, b, bars[i])
		}
	}
}

func TestInsertBatchIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	bars := hourlyBars(3)

	if _, err := s.InsertBatch(ctx, "EURUSD", "H1", bars); err != nil {
		t.Fatalf("first InsertBatch: %v", err)
	}
	n, err := s.InsertBatch(ctx, "EURUSD", "H1", bars)
	if err != nil {
		t.Fatalf("second InsertBatch: %v", err)
	}
	if n != 0 {
		t.Fatalf("second insert reported %d new rows, want 0 (conflict-do-nothing)", n)
	}

	got, err := s.Range(ctx, "EURUSD", "H1", bars[0].Time, bars[len(bars)-1].Time.Add(time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Range returned %d bars, want 3 (no duplicates)", len(got))
	}
}

func TestRangeIsScopedBySymbolAndTimeframe(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	bars := hourlyBars(3)

	if _, err := s.InsertBatch(ctx, "EURUSD", "H1", bars); err != nil {
		t.Fatalf("InsertBatch EURUSD/H1: %v", err)
	}
	if _, err := s.InsertBatch(ctx, "GBPUSD", "H1", bars); err != nil {
		t.Fatalf("InsertBatch GBPUSD/H1: %v", err)
	}
	if _, err := s.InsertBatch(ctx, "EURUSD", "M15", bars); err != nil {
		t.Fatalf("InsertBatch EURUSD/M15: %v", err)
	}

	got, err := s.Range(ctx, "EURUSD", "H1", bars[0].Time, bars[len(bars)-1].Time.Add(time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Range returned %d bars, want 3 (scoped to EURUSD/H1 only)", len(got))
	}
}

func TestLatestTimeReflectsMostRecentBar(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, _, err := s.LatestTime(ctx, "EURUSD", "H1"); err != nil {
		t.Fatalf("LatestTime on empty store: %v", err)
	}
	_, ok, err := s.LatestTime(ctx, "EURUSD", "H1")
	if err != nil {
		t.Fatalf("LatestTime: %v", err)
	}
	if ok {
		t.Fatal("LatestTime ok=true on empty store, want false")
	}

	bars := hourlyBars(5)
	if _, err := s.InsertBatch(ctx, "EURUSD", "H1", bars); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	latest, ok, err := s.LatestTime(ctx, "EURUSD", "H1")
	if err != nil {
		t.Fatalf("LatestTime: %v", err)
	}
	if !ok {
		t.Fatal("LatestTime ok=false after insert, want true")
	}
	want := bars[len(bars)-1].Time
	if !latest.Equal(want) {
		t.Fatalf("LatestTime = %v, want %v", latest, want)
	}
}
