package backtest

import (
	"context"
	"fmt"
	"time"

	"mt5copier/internal/terminal"
)

// BarSource supplies the historical bars a backtest replays. pkg/barstore's
// range query satisfies this; tests use an in-memory slice instead.
type BarSource interface {
	Range(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]terminal.Bar, error)
}

// DataHandler loads a symbol's bars for [from, to) once and steps through
// them chronologically, publishing a MarketEvent per step (spec.md §4.E).
// Multi-symbol backtests are future work; the teacher's originals are
// single-symbol too (original_source/backtest_components.py: "TODO: 当前简化为只处理第一个symbol").
type DataHandler struct {
	symbol    string
	timeframe string

	bars  []terminal.Bar
	index int // index of the bar the current MarketEvent points at, -1 before the first advance

	continueBacktest bool
}

// NewDataHandler loads all bars for symbol/timeframe in [from, to) via src.
func NewDataHandler(ctx context.Context, src BarSource, symbol, timeframe string, from, to time.Time) (*DataHandler, error) {
	bars, err := src.Range(ctx, symbol, timeframe, from, to)
	if err != nil {
		return nil, fmt.Errorf("backtest: load bars for %s %s: %w", symbol, timeframe, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("backtest: no bars for %s %s in [%s, %s)", symbol, timeframe, from, to)
	}
	return &DataHandler{symbol: symbol, timeframe: timeframe, bars: bars, index: -1, continueBacktest: true}, nil
}

// LatestBar returns the bar the most recently published MarketEvent pointed
// at, or false before the first updateBars call or for an unknown symbol.
func (d *DataHandler) LatestBar(symbol string) (terminal.Bar, bool) {
	if symbol != d.symbol || d.index < 0 || d.index >= len(d.bars) {
		return terminal.Bar{}, false
	}
	return d.bars[d.index], true
}

// RecentBars returns up to count bars ending at the current index, oldest
// first — the backtest-mode implementation of CopyRatesFromPos(start=0).
// It never looks past the current bar, preserving no-look-ahead.
func (d *DataHandler) RecentBars(count int) []terminal.Bar {
	if d.index < 0 {
		return nil
	}
	end := d.index + 1
	start := end - count
	if start < 0 {
		start = 0
	}
	out := make([]terminal.Bar, end-start)
	copy(out, d.bars[start:end])
	return out
}

// ContinueBacktest reports whether the iterator has more bars to advance to.
func (d *DataHandler) ContinueBacktest() bool {
	return d.continueBacktest
}

// UpdateBars advances the iterator by one bar and returns the MarketEvent to
// publish, or false once the series is exhausted.
func (d *DataHandler) UpdateBars() (MarketEvent, bool) {
	next := d.index + 1
	if next >= len(d.bars) {
		d.continueBacktest = false
		return MarketEvent{}, false
	}
	d.index = next
	bar := d.bars[d.index]
	return MarketEvent{Symbol: d.symbol, Time: bar.Time}, true
}
