package backtest

import (
	"context"
	"fmt"

	"mt5copier/internal/strategy"
	"mt5copier/internal/terminal"
)

// SymbolInfoSource resolves the tradeable-instrument metadata a backtest
// gateway needs. pkg/barstore or a static table can both provide this;
// newBacktestTradingGateway falls back to a JPY-aware 5-decimal default
// (original_source/backtest_gateway.py's symbol_info) when none is given.
type SymbolInfoSource func(symbol string) terminal.SymbolInfo

// BacktestTradingGateway is the strategy.TradingGateway implementation the
// backtester gives strategies (spec.md §4.E): every read delegates to
// Portfolio/DataHandler, and OrderSend converts a deal request into a
// SignalEvent pushed onto the engine's queue, returning a synthetic
// tradeDone receipt with no real fill price — the real fill arrives later
// as a FillEvent.
type BacktestTradingGateway struct {
	queue      *eventQueue
	portfolio  *Portfolio
	data       *DataHandler
	symbolInfo SymbolInfoSource
}

var _ strategy.TradingGateway = (*BacktestTradingGateway)(nil)

func newBacktestTradingGateway(queue *eventQueue, portfolio *Portfolio, data *DataHandler, symbolInfo SymbolInfoSource) *BacktestTradingGateway {
	if symbolInfo == nil {
		symbolInfo = defaultSymbolInfo
	}
	return &BacktestTradingGateway{queue: queue, portfolio: portfolio, data: data, symbolInfo: symbolInfo}
}

func defaultSymbolInfo(symbol string) terminal.SymbolInfo {
	point := 0.00001
	digits := 5
	if len(symbol) >= 3 && symbol[len(symbol)-3:] == "JPY" {
		point = 0.001
		digits = 3
	}
	return terminal.SymbolInfo{Point: point, Digits: digits, VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01, TradeMode: 0}
}

func (g *BacktestTradingGateway) AccountInfo(ctx context.Context) (terminal.AccountInfo, error) {
	snap := g.portfolio.AccountInfoSnapshot()
	return terminal.AccountInfo{
		Balance: snap.Balance, Equity: snap.Equity, Profit: snap.Profit,
		MarginFree: snap.MarginFree, MarginLevel: snap.MarginLevel,
	}, nil
}

func (g *BacktestTradingGateway) SymbolInfo(ctx context.Context, symbol string) (terminal.SymbolInfo, error) {
	return g.symbolInfo(symbol), nil
}

func (g *BacktestTradingGateway) SymbolInfoTick(ctx context.Context, symbol string) (terminal.Tick, error) {
	bar, ok := g.data.LatestBar(symbol)
	if !ok {
		return terminal.Tick{}, fmt.Errorf("backtest: no current bar for %s", symbol)
	}
	// Zero spread: bid == ask == close (spec.md S6: "zero spread").
	return terminal.Tick{Bid: bar.Close, Ask: bar.Close, Time: bar.Time}, nil
}

func (g *BacktestTradingGateway) CopyRatesFromPos(ctx context.Context, symbol, timeframe string, start, count int) ([]terminal.Bar, error) {
	if start != 0 {
		return nil, fmt.Errorf("backtest: CopyRatesFromPos only supports start=0, got %d", start)
	}
	return g.data.RecentBars(count), nil
}

func (g *BacktestTradingGateway) PositionsGet(ctx context.Context, symbol string, magic int) ([]terminal.Position, error) {
	snaps := g.portfolio.PositionsSnapshot(symbol)
	out := make([]terminal.Position, 0, len(snaps))
	for _, p := range snaps {
		out = append(out, terminal.Position{
			Ticket: p.Ticket, Symbol: p.Symbol, Type: signalToOrderKind(p.Direction),
			Volume: p.Volume, PriceOpen: p.PriceOpen, Profit: p.Profit, Magic: magic,
		})
	}
	return out, nil
}

// OrderSend converts a deal request into a SignalEvent (spec.md §4.E). A
// request carrying a Position ticket is a close of that position; otherwise
// it is a fresh open/reversal in the direction of req.Type.
func (g *BacktestTradingGateway) OrderSend(ctx context.Context, req terminal.OrderRequest) (terminal.TradeResult, error) {
	if req.Action != terminal.ActionDeal {
		return terminal.TradeResult{}, fmt.Errorf("backtest: only deal actions are simulated, got %s", req.Action)
	}

	sig := SignalEvent{Symbol: req.Symbol, Strength: 1.0}
	if req.Position != nil {
		sig.Direction = SignalClose
		sig.Ticket = *req.Position
	} else if req.Type.IsBuyFamily() {
		sig.Direction = SignalBuy
	} else {
		sig.Direction = SignalSell
	}
	g.queue.push(sig)

	return terminal.TradeResult{
		RetCode: terminal.RetTradeDone, Comment: "accepted by backtest engine",
	}, nil
}

// OrderCalcMargin mirrors original_source/backtest_gateway.py's simplified
// margin formula: (volume * contractScale * price) / leverage.
func (g *BacktestTradingGateway) OrderCalcMargin(ctx context.Context, action terminal.RequestAction, symbol string, volume, price float64) (float64, bool, error) {
	return (volume * contractScale * price) / float64(g.portfolio.leverage), true, nil
}

func signalToOrderKind(d SignalDirection) terminal.OrderKind {
	if d == SignalSell {
		return terminal.Sell
	}
	return terminal.Buy
}
