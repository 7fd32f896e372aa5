package backtest

import (
	"context"
	"testing"
	"time"

	"mt5copier/internal/terminal"
)

func newTestDataHandler(t *testing.T, bars []terminal.Bar) *DataHandler {
	t.Helper()
	d, err := NewDataHandler(context.Background(), sliceBarSource{bars: bars}, "EURUSD", "H1", bars[0].Time, bars[len(bars)-1].Time.Add(time.Hour))
	if err != nil {
		t.Fatalf("NewDataHandler: %v", err)
	}
	return d
}

// Grounded on original_source/tests/test_backtest_components.py's
// test_on_signal_creates_order / test_on_fill_opens_new_position /
// test_on_bar_updates_equity.
func TestPortfolioOnSignalQueuesOrder(t *testing.T) {
	data := newTestDataHandler(t, flatBars(3, 1.1000))
	p := NewPortfolio(data, 10000, 100)

	p.OnSignal(SignalEvent{Symbol: "EURUSD", Direction: SignalBuy})

	pending := p.drainPending()
	if len(pending) != 1 {
		t.Fatalf("pending = %d events, want 1", len(pending))
	}
	order, ok := pending[0].(OrderEvent)
	if !ok {
		t.Fatalf("pending[0] is %T, want OrderEvent", pending[0])
	}
	if order.Kind != OrderMarket || order.Direction != SignalBuy || order.Quantity != 0.1 {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestPortfolioOnFillOpensPositionAndDebitsCommission(t *testing.T) {
	data := newTestDataHandler(t, flatBars(3, 1.1000))
	data.UpdateBars()
	p := NewPortfolio(data, 10000, 100)

	p.OnFill(FillEvent{Symbol: "EURUSD", Direction: SignalBuy, Quantity: 0.1, FillPrice: 1.1000, Commission: 1.0})

	if p.cash != 9999.0 {
		t.Fatalf("cash = %v, want 9999.0", p.cash)
	}
	pos, ok := p.positions["EURUSD"]
	if !ok {
		t.Fatal("expected an open EURUSD position")
	}
	if pos.Volume != 0.1 || pos.PriceOpen != 1.1000 || pos.Direction != SignalBuy {
		t.Fatalf("unexpected position: %+v", pos)
	}
}

func TestPortfolioOnMarketUpdatesFloatingEquity(t *testing.T) {
	bars := flatBars(3, 1.1000)
	bars[1].Close = 1.1050
	data := newTestDataHandler(t, bars)
	data.UpdateBars() // index 0: close 1.1000
	p := NewPortfolio(data, 10000, 100)

	// equity only gets recomputed on a MarketEvent, matching
	// original_source/backtest_components.py — immediately after a fill it
	// still reflects the prior bar's snapshot.
	p.OnFill(FillEvent{Symbol: "EURUSD", Direction: SignalBuy, Quantity: 0.1, FillPrice: 1.1000, Commission: 1.0})
	if p.equity != 10000.0 {
		t.Fatalf("equity right after fill = %v, want 10000.0 (stale until next onMarket)", p.equity)
	}

	data.UpdateBars() // index 1: close 1.1050
	p.OnMarket(MarketEvent{Symbol: "EURUSD", Time: bars[1].Time})

	// (1.1050-1.1000)*0.1*100000 = 50.0; equity = cash(9999.0) + 50.0 = 10049.0
	const wantEquity = 10049.0
	if diff := p.equity - wantEquity; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("equity = %v, want %v", p.equity, wantEquity)
	}
}

func TestExecutionHandlerFillsAtNextBarOpenPlusSlippage(t *testing.T) {
	bars := flatBars(2, 1.2000)
	bars[1].Open = 1.2000
	bars[1].Close = 1.2050
	data := newTestDataHandler(t, bars)
	data.UpdateBars()
	data.UpdateBars() // current bar is now bars[1]: open 1.2000

	h := NewExecutionHandler(data, 1.5, 2, func(string) float64 { return 0.00001 })

	fill, err := h.ExecuteOrder(OrderEvent{Symbol: "EURUSD", Kind: OrderMarket, Direction: SignalBuy, Quantity: 0.5, Closing: true})
	if err != nil {
		t.Fatalf("ExecuteOrder: %v", err)
	}

	const wantPrice = 1.2000 + 0.00002
	if diff := fill.FillPrice - wantPrice; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("FillPrice = %v, want %v", fill.FillPrice, wantPrice)
	}
	if fill.Commission != 1.5 {
		t.Fatalf("Commission = %v, want 1.5 (closing fill)", fill.Commission)
	}
}

func TestExecutionHandlerSellFillsAtNextBarOpenMinusSlippage(t *testing.T) {
	bars := flatBars(2, 1.2000)
	bars[1].Open = 1.2000
	bars[1].Close = 1.2050
	data := newTestDataHandler(t, bars)
	data.UpdateBars()
	data.UpdateBars() // current bar is now bars[1]: open 1.2000

	h := NewExecutionHandler(data, 1.5, 2, func(string) float64 { return 0.00001 })

	fill, err := h.ExecuteOrder(OrderEvent{Symbol: "EURUSD", Kind: OrderMarket, Direction: SignalSell, Quantity: 0.5, Closing: true})
	if err != nil {
		t.Fatalf("ExecuteOrder: %v", err)
	}

	const wantPrice = 1.2000 - 0.00002
	if diff := fill.FillPrice - wantPrice; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("FillPrice = %v, want %v (slippage against a sell fills lower, not higher)", fill.FillPrice, wantPrice)
	}
}
