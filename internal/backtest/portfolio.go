package backtest

import (
	"log"
	"time"
)

// contractScale is the notional-per-lot multiplier used for the simplified
// P&L calc (priceNow-priceOpen)*volume*contractScale, carried over verbatim
// from original_source/backtest_components.py's on_bar (`* 100000`).
const contractScale = 100000.0

// position is one open net position per symbol (spec.md §3 Backtest Portfolio).
type position struct {
	Ticket       int64
	Symbol       string
	Direction    SignalDirection // SignalBuy or SignalSell
	Volume       float64
	PriceOpen    float64
	PriceCurrent float64
	Profit       float64
	OpenTime     time.Time
}

// closedTrade is one realized round trip, the unit the performance report
// is computed from.
type closedTrade struct {
	Symbol     string
	Direction  SignalDirection
	Volume     float64
	OpenPrice  float64
	ClosePrice float64
	Profit     float64 // realized P&L, excludes commission
	Commission float64
	ClosedAt   time.Time
}

// Portfolio is the backtest's account state machine (spec.md §4.E): it
// reacts to Market/Signal/Fill events and is the source of truth
// BacktestTradingGateway queries to answer accountInfo/positionsGet.
type Portfolio struct {
	data *DataHandler

	initialCash float64
	cash        float64
	equity      float64
	leverage    int
	marginUsed  float64

	positions map[string]*position
	trades    []closedTrade
	ticketSeq int64

	pending []Event // events produced by onSignal/onFill, drained by the engine loop
}

// NewPortfolio constructs a Portfolio seeded with initialCash (equity ==
// cash == initialCash at start, per spec.md §4.B invariant 5).
func NewPortfolio(data *DataHandler, initialCash float64, leverage int) *Portfolio {
	if leverage <= 0 {
		leverage = 100
	}
	return &Portfolio{
		data:        data,
		initialCash: initialCash,
		cash:        initialCash,
		equity:      initialCash,
		leverage:    leverage,
		positions:   make(map[string]*position),
	}
}

// drainPending empties and returns whatever onSignal/onFill queued for the
// engine to push onto its event queue.
func (p *Portfolio) drainPending() []Event {
	out := p.pending
	p.pending = nil
	return out
}

// OnMarket recomputes every open position's floating profit against the bar
// the MarketEvent now points at and updates equity == cash + Σ profit.
func (p *Portfolio) OnMarket(ev MarketEvent) {
	bar, ok := p.data.LatestBar(ev.Symbol)
	if !ok {
		return
	}
	equity := p.cash
	for symbol, pos := range p.positions {
		var profit float64
		if pos.Direction == SignalBuy {
			profit = (bar.Close - pos.PriceOpen) * pos.Volume * contractScale
		} else {
			profit = (pos.PriceOpen - bar.Close) * pos.Volume * contractScale
		}
		pos.Profit = profit
		pos.PriceCurrent = bar.Close
		p.positions[symbol] = pos
		equity += profit
	}
	p.equity = equity
}

// OnSignal applies the placeholder sizing policy (spec.md §4.E: "simplified
// mapping to an Order{MKT} of fixed 0.1 lots") and queues the resulting
// OrderEvent. A Close signal is sized to the existing position's volume so
// the whole position exits in one fill.
func (p *Portfolio) OnSignal(ev SignalEvent) {
	const fixedVolume = 0.1

	if ev.Direction == SignalClose {
		pos, ok := p.positions[ev.Symbol]
		if !ok {
			return
		}
		closeDir := SignalSell
		if pos.Direction == SignalSell {
			closeDir = SignalBuy
		}
		p.pending = append(p.pending, OrderEvent{Symbol: ev.Symbol, Kind: OrderMarket, Direction: closeDir, Quantity: pos.Volume, Closing: true})
		return
	}
	p.pending = append(p.pending, OrderEvent{Symbol: ev.Symbol, Kind: OrderMarket, Direction: ev.Direction, Quantity: fixedVolume})
}

// OnFill debits commission and mutates positions (spec.md §4.E onFill):
// opens a position if flat, else realizes the existing one and opens the
// new fill as a fresh position — the "close-then-reopen" simplification the
// source describes, preserved here per DESIGN.md's Open Questions decision.
func (p *Portfolio) OnFill(ev FillEvent) {
	p.cash -= ev.Commission

	existing, hasExisting := p.positions[ev.Symbol]
	if hasExisting {
		p.cash += existing.Profit
		p.trades = append(p.trades, closedTrade{
			Symbol: existing.Symbol, Direction: existing.Direction, Volume: existing.Volume,
			OpenPrice: existing.PriceOpen, ClosePrice: ev.FillPrice, Profit: existing.Profit,
			Commission: ev.Commission, ClosedAt: ev.Time,
		})
		delete(p.positions, ev.Symbol)
		if ev.Closing {
			return
		}
		log.Printf("backtest: portfolio position adjustment for %s simplified to close-then-reopen", ev.Symbol)
	}

	openTime := ev.Time
	if bar, ok := p.data.LatestBar(ev.Symbol); ok {
		openTime = bar.Time
	}
	p.ticketSeq++
	p.positions[ev.Symbol] = &position{
		Ticket: p.ticketSeq, Symbol: ev.Symbol, Direction: ev.Direction, Volume: ev.Quantity,
		PriceOpen: ev.FillPrice, PriceCurrent: ev.FillPrice, Profit: -ev.Commission, OpenTime: openTime,
	}
}

// AccountInfoSnapshot mirrors what BacktestTradingGateway.AccountInfo needs.
type AccountInfoSnapshot struct {
	Balance     float64
	Equity      float64
	Profit      float64
	MarginFree  float64
	MarginLevel float64
}

func (p *Portfolio) AccountInfoSnapshot() AccountInfoSnapshot {
	marginLevel := 0.0
	if p.marginUsed > 0 {
		marginLevel = p.equity / p.marginUsed
	}
	return AccountInfoSnapshot{
		Balance: p.cash, Equity: p.equity, Profit: p.equity - p.cash,
		MarginFree: p.equity - p.marginUsed, MarginLevel: marginLevel,
	}
}

// PositionsSnapshot returns the open position for symbol, if any. The
// backtest Portfolio holds at most one net position per symbol.
func (p *Portfolio) PositionsSnapshot(symbol string) []position {
	pos, ok := p.positions[symbol]
	if !ok {
		return nil
	}
	return []position{*pos}
}
