package barstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mt5copier/internal/terminal"
)

const insertBarSQL = `
	INSERT INTO bars (symbol, timeframe, time, open, high, low, close, tick_volume, spread, real_volume)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(symbol, timeframe, time) DO NOTHING
`

// InsertBatch upserts bars for (symbol, timeframe) with insert-on-conflict-
// do-nothing (spec.md §6: "Writes use insert-on-conflict-do-nothing"). Rows
// are queued through the store's batchWriter and flushed before returning,
// so callers see a synchronous, accurate count while still sharing the
// single-writer buffering the Data Sync Worker's many pairs contend on.
func (s *Store) InsertBatch(ctx context.Context, symbol, timeframe string, bars []terminal.Bar) (int64, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	before, err := s.countBars(ctx, symbol, timeframe)
	if err != nil {
		return 0, err
	}

	for _, b := range bars {
		s.bw.write(insertBarSQL, symbol, timeframe, b.Time.Unix(),
			b.Open, b.High, b.Low, b.Close, b.TickVolume, b.Spread, b.RealVolume)
	}
	if err := s.bw.flush(); err != nil {
		return 0, fmt.Errorf("barstore: flush insert batch: %w", err)
	}

	after, err := s.countBars(ctx, symbol, timeframe)
	if err != nil {
		return 0, err
	}
	return after - before, nil
}

func (s *Store) countBars(ctx context.Context, symbol, timeframe string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bars WHERE symbol = ? AND timeframe = ?
	`, symbol, timeframe).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("barstore: count bars: %w", err)
	}
	return n, nil
}

// Range returns bars for (symbol, timeframe) in [from, to), oldest first.
// It satisfies internal/backtest.BarSource so a Store can feed a backtest
// directly.
func (s *Store) Range(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]terminal.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, open, high, low, close, tick_volume, spread, real_volume
		FROM bars
		WHERE symbol = ? AND timeframe = ? AND time >= ? AND time < ?
		ORDER BY time ASC
	`, symbol, timeframe, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("barstore: range query: %w", err)
	}
	defer rows.Close()

	var bars []terminal.Bar
	for rows.Next() {
		var b terminal.Bar
		var unixTime int64
		if err := rows.Scan(&unixTime, &b.Open, &b.High, &b.Low, &b.Close, &b.TickVolume, &b.Spread, &b.RealVolume); err != nil {
			return nil, fmt.Errorf("barstore: scan bar: %w", err)
		}
		b.Time = time.Unix(unixTime, 0).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LatestTime returns the most recent bar time stored for (symbol,
// timeframe), used by the Data Sync Worker to resolve an omitted fromDate
// (spec.md §4.F: "fromDate = max(time)+1").
func (s *Store) LatestTime(ctx context.Context, symbol, timeframe string) (time.Time, bool, error) {
	var unixTime sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(time) FROM bars WHERE symbol = ? AND timeframe = ?
	`, symbol, timeframe).Scan(&unixTime)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("barstore: latest time: %w", err)
	}
	if !unixTime.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(unixTime.Int64, 0).UTC(), true, nil
}
