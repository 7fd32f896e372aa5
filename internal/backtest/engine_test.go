package backtest

import (
	"context"
	"testing"
	"time"

	"mt5copier/internal/strategy"
	"mt5copier/internal/terminal"
)

// sliceBarSource serves a fixed, pre-built bar slice regardless of the
// requested range — enough for a deterministic backtest fixture.
type sliceBarSource struct {
	bars []terminal.Bar
}

func (s sliceBarSource) Range(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]terminal.Bar, error) {
	return s.bars, nil
}

func flatBars(n int, close float64) []terminal.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]terminal.Bar, n)
	for i := range bars {
		bars[i] = terminal.Bar{
			Time: start.Add(time.Duration(i) * time.Hour),
			Open: close, High: close, Low: close, Close: close,
			TickVolume: 100,
		}
	}
	return bars
}

// buyOnBar5CloseOnBar20 is a minimal test double exercising the OrderSend →
// Signal → Order → Fill round trip: it opens on the 5th bar and closes the
// position on the 20th, matching spec.md scenario S6.
type buyOnBar5CloseOnBar20 struct {
	gw    strategy.TradingGateway
	bar   int
	magic int
}

func (s *buyOnBar5CloseOnBar20) Metadata() strategy.Metadata {
	return strategy.Metadata{Name: "BuyOnBar5CloseOnBar20"}
}

func (s *buyOnBar5CloseOnBar20) OnInit(ctx context.Context) (bool, error) { return true, nil }

func (s *buyOnBar5CloseOnBar20) OnBar(ctx context.Context, event strategy.MarketEvent) error {
	s.bar++
	switch s.bar {
	case 5:
		_, err := s.gw.OrderSend(ctx, terminal.OrderRequest{
			Action: terminal.ActionDeal, Symbol: event.Symbol, Volume: 0.1, Type: terminal.Buy,
			Magic: s.magic, TypeFilling: "IOC", TypeTime: "GTC",
		})
		return err
	case 20:
		positions, err := s.gw.PositionsGet(ctx, event.Symbol, s.magic)
		if err != nil || len(positions) == 0 {
			return err
		}
		ticket := positions[0].Ticket
		_, err = s.gw.OrderSend(ctx, terminal.OrderRequest{
			Action: terminal.ActionDeal, Symbol: event.Symbol, Volume: positions[0].Volume, Type: terminal.Sell,
			Position: &ticket, Magic: s.magic, TypeFilling: "IOC", TypeTime: "GTC",
		})
		return err
	}
	return nil
}

func (s *buyOnBar5CloseOnBar20) OnDeinit(ctx context.Context) error { return nil }

func newBuyOnBar5CloseOnBar20(gw strategy.TradingGateway, symbol, timeframe string, params strategy.Params) strategy.Strategy {
	return &buyOnBar5CloseOnBar20{gw: gw}
}

// TestEngineFlatSeriesSingleRoundTrip covers spec.md scenario S6: a flat
// 100-bar EURUSD H1 series, one buy-then-close round trip, zero spread and
// slippage, commission 1.5 — total trades 1, win rate 0, final equity ≈
// initialCash - 1.5, max drawdown 0.
func TestEngineFlatSeriesSingleRoundTrip(t *testing.T) {
	src := sliceBarSource{bars: flatBars(100, 1.10000)}
	cfg := Config{
		Symbol: "EURUSD", Timeframe: "H1",
		From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		InitialCash: 10000.0, Leverage: 100, Commission: 1.5, SlippagePoints: 0,
	}

	engine, err := NewEngine(context.Background(), src, cfg, newBuyOnBar5CloseOnBar20, strategy.Params{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.TotalTrades != 1 {
		t.Fatalf("TotalTrades = %d, want 1", report.TotalTrades)
	}
	if report.WinRate != 0 {
		t.Fatalf("WinRate = %v, want 0", report.WinRate)
	}
	const wantEquity = 10000.0 - 1.5
	if diff := report.FinalEquity - wantEquity; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("FinalEquity = %v, want %v", report.FinalEquity, wantEquity)
	}
	if report.MaxDrawdown != 0 {
		t.Fatalf("MaxDrawdown = %v, want 0", report.MaxDrawdown)
	}
}
