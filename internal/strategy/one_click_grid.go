package strategy

import (
	"context"
	"fmt"
	"log"
	"math"

	"mt5copier/internal/terminal"
)

// OneClickGrid fires one market order and a bidirectional limit-order grid
// the moment it starts, then does nothing further — everything happens in
// OnInit. Ported from
// original_source/strategies/eurusd_one_click_with_stops.py.
type OneClickGrid struct {
	gw        TradingGateway
	symbol    string
	params    Params
	point     float64
	digits    int
	gridSpacing float64
}

func NewOneClickGrid(gw TradingGateway, symbol, timeframe string, params Params) Strategy {
	return &OneClickGrid{gw: gw, symbol: symbol, params: params}
}

var oneClickGridSchema = Schema{
	"initial_volume": {Label: "Initial volume", Type: ParamFloat, Default: 0.1},
	"grid_levels":    {Label: "Grid levels per side", Type: ParamInt, Default: 10},
	"grid_spacing":   {Label: "Grid spacing (pips)", Type: ParamInt, Default: 50},
	"magic":          {Label: "Magic number", Type: ParamInt, Default: 123456},
}

func (s *OneClickGrid) Metadata() Metadata {
	return Metadata{
		Name:        "OneClickWithStops",
		Description: "Opens an immediate market order and a bidirectional limit-order grid around it at startup.",
		Schema:      oneClickGridSchema,
	}
}

func (s *OneClickGrid) OnInit(ctx context.Context) (bool, error) {
	info, err := s.gw.SymbolInfo(ctx, s.symbol)
	if err != nil {
		return false, fmt.Errorf("oneclickgrid: symbol info: %w", err)
	}
	s.point = info.Point
	s.digits = info.Digits
	s.gridSpacing = float64(s.params.Int("grid_spacing", 50)) * s.point

	tick, err := s.gw.SymbolInfoTick(ctx, s.symbol)
	if err != nil {
		return false, fmt.Errorf("oneclickgrid: tick: %w", err)
	}
	basePrice := tick.Ask

	if err := s.executeInitialOrder(ctx, basePrice); err != nil {
		log.Printf("oneclickgrid[%s]: initial order failed: %v", s.symbol, err)
	}
	s.placeGridOrders(ctx, basePrice)
	return true, nil
}

func (s *OneClickGrid) OnBar(ctx context.Context, event MarketEvent) error { return nil }
func (s *OneClickGrid) OnDeinit(ctx context.Context) error                 { return nil }

func (s *OneClickGrid) executeInitialOrder(ctx context.Context, price float64) error {
	magic := s.params.Int("magic", 123456)
	result, err := s.gw.OrderSend(ctx, terminal.OrderRequest{
		Action: terminal.ActionDeal, Symbol: s.symbol, Volume: s.params.Float("initial_volume", 0.1),
		Type: terminal.Buy, Price: price, Deviation: 20, Magic: magic,
		Comment: fmt.Sprintf("OCS_%d", magic), TypeFilling: "IOC", TypeTime: "GTC",
	})
	if err != nil {
		return err
	}
	if !result.Done() {
		return fmt.Errorf("retcode %d: %s", result.RetCode, result.Comment)
	}
	return nil
}

func (s *OneClickGrid) placeGridOrders(ctx context.Context, basePrice float64) {
	levels := s.params.Int("grid_levels", 10)
	volume := s.params.Float("initial_volume", 0.1)
	magic := s.params.Int("magic", 123456)
	scale := math.Pow(10, float64(s.digits))

	for i := 1; i <= levels; i++ {
		price := math.Round((basePrice+float64(i)*s.gridSpacing)*scale) / scale
		if _, err := s.gw.OrderSend(ctx, terminal.OrderRequest{
			Action: terminal.ActionPending, Symbol: s.symbol, Volume: volume, Type: terminal.SellLimit,
			Price: price, Deviation: 20, Magic: magic, Comment: fmt.Sprintf("OCS_%d_UP%d", magic, i),
			TypeFilling: "IOC", TypeTime: "GTC",
		}); err != nil {
			log.Printf("oneclickgrid[%s]: sell-limit grid level %d failed: %v", s.symbol, i, err)
		}
	}
	for i := 1; i <= levels; i++ {
		price := math.Round((basePrice-float64(i)*s.gridSpacing)*scale) / scale
		if _, err := s.gw.OrderSend(ctx, terminal.OrderRequest{
			Action: terminal.ActionPending, Symbol: s.symbol, Volume: volume, Type: terminal.BuyLimit,
			Price: price, Deviation: 20, Magic: magic, Comment: fmt.Sprintf("OCS_%d_DN%d", magic, i),
			TypeFilling: "IOC", TypeTime: "GTC",
		}); err != nil {
			log.Printf("oneclickgrid[%s]: buy-limit grid level %d failed: %v", s.symbol, i, err)
		}
	}
	log.Printf("oneclickgrid[%s]: grid orders sent (%d total)", s.symbol, levels*2)
}
