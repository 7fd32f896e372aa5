package strategy

import (
	"context"
	"fmt"
	"log"

	"mt5copier/internal/terminal"
)

// DualMaCrossover trades a fast/slow moving-average crossover with a single
// net position per symbol, closing an opposing position before opening the
// new side. Ported from original_source/strategies/dual_ma_crossover_strategy.py,
// generalized from its pandas rolling-mean computation to a plain running
// sum since the bar window is fixed-size and small.
type DualMaCrossover struct {
	gw       TradingGateway
	symbol   string
	timeframe string
	params   Params

	point float64
}

func NewDualMaCrossover(gw TradingGateway, symbol, timeframe string, params Params) Strategy {
	return &DualMaCrossover{gw: gw, symbol: symbol, timeframe: timeframe, params: params}
}

var dualMaSchema = Schema{
	"fast_ma_period":   {Label: "Fast MA period", Type: ParamInt, Default: 10},
	"slow_ma_period":   {Label: "Slow MA period", Type: ParamInt, Default: 20},
	"trade_volume":     {Label: "Trade volume", Type: ParamFloat, Default: 0.01},
	"magic_number":     {Label: "Magic number", Type: ParamInt, Default: 13579},
	"stop_loss_pips":   {Label: "Stop loss (pips, 0 = none)", Type: ParamInt, Default: 100},
	"take_profit_pips": {Label: "Take profit (pips, 0 = none)", Type: ParamInt, Default: 200},
}

func (s *DualMaCrossover) Metadata() Metadata {
	return Metadata{
		Name:        "DualMaCrossover",
		Description: "Opens in the direction of a fast/slow moving-average crossover, closing any opposing position first.",
		Schema:      dualMaSchema,
	}
}

func (s *DualMaCrossover) OnInit(ctx context.Context) (bool, error) {
	info, err := s.gw.SymbolInfo(ctx, s.symbol)
	if err != nil {
		return false, fmt.Errorf("dualma: symbol info for %s: %w", s.symbol, err)
	}
	s.point = info.Point
	return true, nil
}

func (s *DualMaCrossover) OnBar(ctx context.Context, event MarketEvent) error {
	if event.Symbol != s.symbol {
		return nil
	}
	return s.checkAndTrade(ctx)
}

func (s *DualMaCrossover) OnDeinit(ctx context.Context) error { return nil }

func sma(closes []float64, period, endExclusive int) (float64, bool) {
	if endExclusive-period < 0 {
		return 0, false
	}
	var sum float64
	for i := endExclusive - period; i < endExclusive; i++ {
		sum += closes[i]
	}
	return sum / float64(period), true
}

func (s *DualMaCrossover) checkAndTrade(ctx context.Context) error {
	fastPeriod := s.params.Int("fast_ma_period", 10)
	slowPeriod := s.params.Int("slow_ma_period", 20)

	bars, err := s.gw.CopyRatesFromPos(ctx, s.symbol, s.timeframe, 0, slowPeriod+5)
	if err != nil {
		return fmt.Errorf("dualma: copy rates: %w", err)
	}
	if len(bars) < slowPeriod+3 {
		log.Printf("dualma[%s]: insufficient bars (%d), skipping", s.symbol, len(bars))
		return nil
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	n := len(closes)
	lastFast, _ := sma(closes, fastPeriod, n-1)
	lastSlow, _ := sma(closes, slowPeriod, n-1)
	prevFast, _ := sma(closes, fastPeriod, n-2)
	prevSlow, _ := sma(closes, slowPeriod, n-2)

	positions, err := s.gw.PositionsGet(ctx, s.symbol, s.params.Int("magic_number", 13579))
	if err != nil {
		return fmt.Errorf("dualma: positions get: %w", err)
	}

	goldenCross := prevFast < prevSlow && lastFast > lastSlow
	deathCross := prevFast > prevSlow && lastFast < lastSlow

	switch {
	case goldenCross:
		for _, p := range positions {
			if p.Type == terminal.Sell {
				return s.closePosition(ctx, p)
			}
		}
		if len(positions) == 0 {
			return s.openPosition(ctx, terminal.Buy)
		}
	case deathCross:
		for _, p := range positions {
			if p.Type == terminal.Buy {
				return s.closePosition(ctx, p)
			}
		}
		if len(positions) == 0 {
			return s.openPosition(ctx, terminal.Sell)
		}
	}
	return nil
}

func (s *DualMaCrossover) openPosition(ctx context.Context, side terminal.OrderKind) error {
	tick, err := s.gw.SymbolInfoTick(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("dualma: tick: %w", err)
	}
	price := tick.Ask
	if side == terminal.Sell {
		price = tick.Bid
	}
	sl, tp := s.calcSLTP(side, price)

	_, err = s.gw.OrderSend(ctx, terminal.OrderRequest{
		Action: terminal.ActionDeal, Symbol: s.symbol, Volume: s.params.Float("trade_volume", 0.01),
		Type: side, Price: price, SL: sl, TP: tp, Deviation: 10,
		Magic: s.params.Int("magic_number", 13579), Comment: "Opened by DualMA Strategy",
		TypeFilling: "IOC", TypeTime: "GTC",
	})
	return err
}

func (s *DualMaCrossover) closePosition(ctx context.Context, p terminal.Position) error {
	tick, err := s.gw.SymbolInfoTick(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("dualma: tick: %w", err)
	}
	closeSide := p.Type.Opposite()
	price := tick.Bid
	if closeSide == terminal.Buy {
		price = tick.Ask
	}
	ticket := p.Ticket
	_, err = s.gw.OrderSend(ctx, terminal.OrderRequest{
		Action: terminal.ActionDeal, Symbol: p.Symbol, Volume: p.Volume, Type: closeSide,
		Position: &ticket, Price: price, Deviation: 10, Magic: s.params.Int("magic_number", 13579),
		Comment: fmt.Sprintf("Closing position %d", p.Ticket), TypeFilling: "IOC", TypeTime: "GTC",
	})
	return err
}

func (s *DualMaCrossover) calcSLTP(side terminal.OrderKind, price float64) (sl, tp float64) {
	slPips := s.params.Int("stop_loss_pips", 100)
	tpPips := s.params.Int("take_profit_pips", 200)
	if slPips == 0 && tpPips == 0 {
		return 0, 0
	}
	sign := 1.0
	if side == terminal.Sell {
		sign = -1.0
	}
	if slPips > 0 {
		sl = price - sign*float64(slPips)*s.point
	}
	if tpPips > 0 {
		tp = price + sign*float64(tpPips)*s.point
	}
	return sl, tp
}
