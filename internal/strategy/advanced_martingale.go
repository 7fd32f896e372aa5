package strategy

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"mt5copier/internal/terminal"
)

// AdvancedMartingale manages two independent order series (buy and sell) on
// one symbol: a series with no open orders gets an initial entry, a losing
// series re-enters at a multiplied lot size once price has moved the
// configured step distance past its last entry, and a series whose combined
// floating profit reaches the target is closed out entirely. Ported from
// original_source/strategies/advanced_martingale_v2.py.
type AdvancedMartingale struct {
	gw     TradingGateway
	symbol string
	params Params
	point  float64
}

func NewAdvancedMartingale(gw TradingGateway, symbol, timeframe string, params Params) Strategy {
	return &AdvancedMartingale{gw: gw, symbol: symbol, params: params}
}

var advancedMartingaleSchema = Schema{
	"initial_lot":              {Label: "Initial lot", Type: ParamFloat, Default: 0.01},
	"lot_multiplier":           {Label: "Lot multiplier", Type: ParamFloat, Default: 2.0},
	"step_pips":                {Label: "Re-entry step (pips)", Type: ParamInt, Default: 20},
	"series_target_profit_usd": {Label: "Series target profit (USD)", Type: ParamFloat, Default: 1.0},
	"max_levels":               {Label: "Max re-entries", Type: ParamInt, Default: 7},
	"magic":                    {Label: "Magic number", Type: ParamInt, Default: 123456},
}

func (s *AdvancedMartingale) Metadata() Metadata {
	return Metadata{
		Name:        "AdvancedMartingaleV2",
		Description: "Runs independent buy and sell martingale re-entry series, closing a series once its combined floating profit hits target.",
		Schema:      advancedMartingaleSchema,
	}
}

func (s *AdvancedMartingale) OnInit(ctx context.Context) (bool, error) {
	info, err := s.gw.SymbolInfo(ctx, s.symbol)
	if err != nil {
		return false, fmt.Errorf("martingale: symbol info: %w", err)
	}
	s.point = info.Point
	return true, nil
}

func (s *AdvancedMartingale) OnDeinit(ctx context.Context) error { return nil }

func (s *AdvancedMartingale) OnBar(ctx context.Context, event MarketEvent) error {
	if err := s.checkSeries(ctx, terminal.Buy); err != nil {
		log.Printf("martingale[%s]: buy series: %v", s.symbol, err)
	}
	if err := s.checkSeries(ctx, terminal.Sell); err != nil {
		log.Printf("martingale[%s]: sell series: %v", s.symbol, err)
	}
	return nil
}

func (s *AdvancedMartingale) checkSeries(ctx context.Context, side terminal.OrderKind) error {
	magic := s.params.Int("magic", 123456)
	all, err := s.gw.PositionsGet(ctx, s.symbol, magic)
	if err != nil {
		return fmt.Errorf("positions get: %w", err)
	}
	var series []terminal.Position
	for _, p := range all {
		if p.Type == side {
			series = append(series, p)
		}
	}

	if len(series) == 0 {
		return s.openTrade(ctx, side, s.params.Float("initial_lot", 0.01))
	}

	var totalProfit float64
	for _, p := range series {
		totalProfit += p.Profit
	}
	if totalProfit >= s.params.Float("series_target_profit_usd", 1.0) {
		return s.closeSeries(ctx, series)
	}

	maxLevels := s.params.Int("max_levels", 7)
	if len(series) >= maxLevels {
		return nil
	}

	// original_source sorts by open time; Position carries no open
	// timestamp here, so ticket order (monotonically increasing on a real
	// terminal) stands in for chronological order.
	sort.Slice(series, func(i, j int) bool { return series[i].Ticket < series[j].Ticket })
	last := series[len(series)-1]

	tick, err := s.gw.SymbolInfoTick(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	var currentPrice float64
	if side == terminal.Buy {
		currentPrice = tick.Bid
	} else {
		currentPrice = tick.Ask
	}

	var priceDiff float64
	if side == terminal.Buy {
		priceDiff = last.PriceOpen - currentPrice
	} else {
		priceDiff = currentPrice - last.PriceOpen
	}

	stepPips := s.params.Int("step_pips", 20)
	if priceDiff < float64(stepPips)*s.point {
		return nil
	}

	newLot := math.Round(last.Volume*s.params.Float("lot_multiplier", 2.0)*100) / 100
	info, err := s.gw.SymbolInfo(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("symbol info: %w", err)
	}
	newLot = math.Max(newLot, info.VolumeMin)
	return s.openTrade(ctx, side, newLot)
}

func (s *AdvancedMartingale) openTrade(ctx context.Context, side terminal.OrderKind, lot float64) error {
	if _, err := s.gw.SymbolInfo(ctx, s.symbol); err != nil {
		return fmt.Errorf("symbol info: %w", err)
	}
	tick, err := s.gw.SymbolInfoTick(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	price := tick.Ask
	if side == terminal.Sell {
		price = tick.Bid
	}
	magic := s.params.Int("magic", 123456)
	_, err = s.gw.OrderSend(ctx, terminal.OrderRequest{
		Action: terminal.ActionDeal, Symbol: s.symbol, Volume: lot, Type: side, Price: price,
		Magic: magic, Deviation: 20, Comment: fmt.Sprintf("AMv2_%d", magic),
		TypeFilling: "IOC", TypeTime: "GTC",
	})
	return err
}

func (s *AdvancedMartingale) closeSeries(ctx context.Context, series []terminal.Position) error {
	log.Printf("martingale[%s]: series target hit, closing %d positions", s.symbol, len(series))
	magic := s.params.Int("magic", 123456)
	for _, p := range series {
		tick, err := s.gw.SymbolInfoTick(ctx, s.symbol)
		if err != nil {
			log.Printf("martingale[%s]: tick unavailable, skipping close of ticket %d", s.symbol, p.Ticket)
			continue
		}
		closeSide := p.Type.Opposite()
		price := tick.Bid
		if closeSide == terminal.Buy {
			price = tick.Ask
		}
		ticket := p.Ticket
		if _, err := s.gw.OrderSend(ctx, terminal.OrderRequest{
			Action: terminal.ActionDeal, Symbol: s.symbol, Volume: p.Volume, Type: closeSide,
			Position: &ticket, Price: price, Deviation: 20, Magic: magic,
			Comment: fmt.Sprintf("Close_AMv2_%d", magic), TypeFilling: "IOC", TypeTime: "GTC",
		}); err != nil {
			log.Printf("martingale[%s]: close of ticket %d failed: %v", s.symbol, p.Ticket, err)
		}
	}
	return nil
}
