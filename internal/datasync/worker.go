// Package datasync implements the Data Sync Worker (spec.md §4.F): keeps
// the bar store current for any (symbol, timeframe) pair the UI asks for,
// incrementally fetching from the terminal and writing through to
// pkg/barstore.
//
// Grounded on original_source/utils/worker.go's task-channel consumer shape
// and internal/api/middleware.go's per-IP rate.Limiter, repurposed here to
// pace terminal requests across (symbol, timeframe) pairs instead of HTTP
// requests per client.
package datasync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"mt5copier/internal/terminal"
	"mt5copier/pkg/i18n"
)

// defaultFromDate is used when a pair has never been synced and the task
// did not specify a fromDate (spec.md §4.F: "default 2020-01-01 if empty").
var defaultFromDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// pairInterval is the minimum spacing between consecutive (symbol,
// timeframe) fetches.
const pairInterval = 500 * time.Millisecond

// Task describes one sync request: the cross product of Symbols and
// Timeframes, each pair resolved independently.
type Task struct {
	Symbols    []string
	Timeframes []string
	FromDate   *time.Time
	ToDate     *time.Time
}

// RatesSource is the narrow terminal capability the worker needs. *terminal.
// Gate satisfies it; tests use a fake.
type RatesSource interface {
	CopyRatesRange(ctx context.Context, symbol, timeframe string, t0, t1 time.Time) ([]terminal.Bar, error)
}

// BarSink is the narrow bar-store capability the worker needs. *pkg/barstore.
// Store satisfies it.
type BarSink interface {
	InsertBatch(ctx context.Context, symbol, timeframe string, bars []terminal.Bar) (int64, error)
	LatestTime(ctx context.Context, symbol, timeframe string) (time.Time, bool, error)
}

// LogSink is the narrow log-queue capability the worker publishes progress
// lines to, mirroring internal/supervisor.LogSink so internal/queues
// satisfies both without the packages importing each other.
type LogSink interface {
	Log(accountID, message string)
}

// loginAccountID is the fixed account the worker authenticates as (spec.md
// §4.F: "This worker uses the master1 credentials as its terminal login,
// the only fixed policy tying data sync to an account").
const loginAccountID = "master1"

// Worker drives one Task at a time over a shared Gate connection.
type Worker struct {
	rates RatesSource
	bars  BarSink
	logs  LogSink

	tasks chan Task
}

// New builds a Worker. rates is normally a *terminal.Gate already logged in
// as master1; bars is normally a *pkg/barstore.Store. The worker's own task
// channel (spec.md §4.F: "consumes a simple task channel") is buffered so a
// burst of UI requests queues rather than blocking the caller.
func New(rates RatesSource, bars BarSink, logs LogSink) *Worker {
	return &Worker{rates: rates, bars: bars, logs: logs, tasks: make(chan Task, 32)}
}

// Enqueue submits a task to be run by Serve. It never blocks the caller
// beyond filling the channel buffer.
func (w *Worker) Enqueue(task Task) {
	w.tasks <- task
}

// Serve is the Data Sync Worker's own background task (spec.md §2: "F is
// the sole exception" to everything else sharing the Core Loop's timeline):
// it drains tasks one at a time, serially, until ctx is cancelled. A
// failing task is logged by Run itself per-pair; Serve only logs a task
// that fails to even start (context cancellation mid-task).
func (w *Worker) Serve(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.tasks:
			if err := w.Run(ctx, task); err != nil {
				w.logs.Log(loginAccountID, fmt.Sprintf("data sync task aborted: %v", err))
			}
		}
	}
}

// Run executes task, resolving each (symbol, timeframe) pair's fromDate/
// toDate, fetching, and writing through to the bar store. Pairs are paced
// pairInterval apart. A failure on one pair is logged and does not abort
// the remaining pairs.
func (w *Worker) Run(ctx context.Context, task Task) error {
	limiter := rate.NewLimiter(rate.Every(pairInterval), 1)

	toDate := time.Now().UTC()
	if task.ToDate != nil {
		toDate = *task.ToDate
	}

	total := len(task.Symbols) * len(task.Timeframes)
	done := 0

	for _, symbol := range task.Symbols {
		for _, timeframe := range task.Timeframes {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("datasync: rate limiter: %w", err)
			}

			if err := w.syncPair(ctx, symbol, timeframe, task.FromDate, toDate); err != nil {
				w.logs.Log(loginAccountID, fmt.Sprintf(i18n.Get("DataSyncFailed"), symbol, timeframe, err))
			}

			done++
			w.logs.Log(loginAccountID, fmt.Sprintf(i18n.Get("DataSyncProgress"), done, total))
		}
	}

	return nil
}

func (w *Worker) syncPair(ctx context.Context, symbol, timeframe string, fromOverride *time.Time, toDate time.Time) error {
	fromDate, err := w.resolveFromDate(ctx, symbol, timeframe, fromOverride)
	if err != nil {
		return err
	}

	if !fromDate.Before(toDate) {
		w.logs.Log(loginAccountID, fmt.Sprintf(i18n.Get("DataSyncSkip"), symbol, timeframe))
		return nil
	}

	bars, err := w.rates.CopyRatesRange(ctx, symbol, timeframe, fromDate, toDate)
	if err != nil {
		return fmt.Errorf("copy rates %s %s: %w", symbol, timeframe, err)
	}

	if _, err := w.bars.InsertBatch(ctx, symbol, timeframe, bars); err != nil {
		return fmt.Errorf("insert bars %s %s: %w", symbol, timeframe, err)
	}

	w.logs.Log(loginAccountID, fmt.Sprintf(i18n.Get("DataSyncDone"), symbol, timeframe))
	return nil
}

func (w *Worker) resolveFromDate(ctx context.Context, symbol, timeframe string, override *time.Time) (time.Time, error) {
	if override != nil {
		return *override, nil
	}

	latest, ok, err := w.bars.LatestTime(ctx, symbol, timeframe)
	if err != nil {
		return time.Time{}, fmt.Errorf("resolve fromDate %s %s: %w", symbol, timeframe, err)
	}
	if !ok {
		return defaultFromDate, nil
	}
	return latest.Add(time.Second), nil
}
