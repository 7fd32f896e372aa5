package backtest

import (
	"context"
	"fmt"
	"log"
	"time"

	"mt5copier/internal/strategy"
)

// Config configures one backtest run (spec.md §4.E / §1 item 4).
type Config struct {
	Symbol         string
	Timeframe      string
	From, To       time.Time
	InitialCash    float64
	Leverage       int // defaults to 100
	Commission     float64
	SlippagePoints int
	SymbolInfo     SymbolInfoSource // optional; defaultSymbolInfo used when nil
}

// Engine is the event-driven backtester (spec.md §4.E): a single-threaded
// Market/Signal/Order/Fill loop over one symbol's historical bars.
//
// Grounded on original_source/backtest_engine.py's EventDrivenBacktester for
// the loop shape; the teacher repo has no backtester, so error wrapping and
// logging follow the teacher's general style instead.
type Engine struct {
	cfg Config

	queue     eventQueue
	data      *DataHandler
	portfolio *Portfolio
	execution *ExecutionHandler
	gateway   *BacktestTradingGateway
	strat     strategy.Strategy
}

// NewEngine wires a DataHandler, Portfolio, ExecutionHandler and
// BacktestTradingGateway from cfg and src, then constructs the strategy via
// factory against that gateway — the same factory a live runtime would use.
func NewEngine(ctx context.Context, src BarSource, cfg Config, factory strategy.Factory, params strategy.Params) (*Engine, error) {
	if cfg.Leverage <= 0 {
		cfg.Leverage = 100
	}
	data, err := NewDataHandler(ctx, src, cfg.Symbol, cfg.Timeframe, cfg.From, cfg.To)
	if err != nil {
		return nil, err
	}
	portfolio := NewPortfolio(data, cfg.InitialCash, cfg.Leverage)

	e := &Engine{cfg: cfg, data: data, portfolio: portfolio}

	symbolInfo := cfg.SymbolInfo
	if symbolInfo == nil {
		symbolInfo = defaultSymbolInfo
	}
	e.gateway = newBacktestTradingGateway(&e.queue, portfolio, data, symbolInfo)
	e.execution = NewExecutionHandler(data, cfg.Commission, cfg.SlippagePoints, func(symbol string) float64 {
		return symbolInfo(symbol).Point
	})
	e.strat = factory(e.gateway, cfg.Symbol, cfg.Timeframe, params)
	return e, nil
}

// Run executes the main loop to completion and returns the performance
// report (spec.md §4.E "Main loop").
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if _, err := e.strat.OnInit(ctx); err != nil {
		return nil, fmt.Errorf("backtest: strategy on_init: %w", err)
	}

	e.advance()

	for !e.queue.empty() || e.data.ContinueBacktest() {
		ev, ok := e.queue.pop()
		if !ok {
			e.advance()
			continue
		}
		if err := e.dispatch(ctx, ev); err != nil {
			return nil, err
		}
	}

	if err := e.strat.OnDeinit(ctx); err != nil {
		log.Printf("backtest: strategy on_deinit: %v", err)
	}

	return buildReport(e.cfg.InitialCash, e.portfolio), nil
}

// advance pulls one more bar from the data handler and queues the resulting
// MarketEvent, matching original_source/backtest_engine.py's unconditional
// update_bars() calls between event-queue drains.
func (e *Engine) advance() {
	if ev, ok := e.data.UpdateBars(); ok {
		e.queue.push(ev)
	}
}

func (e *Engine) dispatch(ctx context.Context, ev Event) error {
	switch t := ev.(type) {
	case MarketEvent:
		e.portfolio.OnMarket(t)
		if err := e.strat.OnBar(ctx, strategy.MarketEvent{Symbol: t.Symbol, Time: t.Time}); err != nil {
			return fmt.Errorf("backtest: strategy on_bar at %s: %w", t.Time, err)
		}
		e.advance()

	case SignalEvent:
		e.portfolio.OnSignal(t)
		for _, pending := range e.portfolio.drainPending() {
			e.queue.push(pending)
		}

	case OrderEvent:
		fill, err := e.execution.ExecuteOrder(t)
		if err != nil {
			return fmt.Errorf("backtest: execute order: %w", err)
		}
		e.queue.push(fill)

	case FillEvent:
		e.portfolio.OnFill(t)
	}
	return nil
}
