// Package strategy implements the Strategy Runtime (spec.md §4.D): the
// Strategy abstraction, parameter-schema merging, the live/backtest
// TradingGateway seam, and the per-account task lifecycle.
//
// Grounded on internal/strategy/types.go's Strategy interface shape,
// generalized from a single OnTick(price) hook to the bar-driven
// on_init/on_bar/on_deinit lifecycle original_source/strategies/*.py
// strategies actually use.
package strategy

import (
	"context"
	"time"

	"mt5copier/internal/terminal"
)

// ParamType is one of the four coercible parameter kinds (spec.md §4.D).
type ParamType string

const (
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
	ParamBool   ParamType = "bool"
	ParamString ParamType = "string"
)

// ParamSpec describes one schema entry.
type ParamSpec struct {
	Label   string
	Type    ParamType
	Default any
}

// Schema is name -> spec.
type Schema map[string]ParamSpec

// Params is the materialized, type-coerced parameter map handed to a
// strategy instance.
type Params map[string]any

func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key].(float64); ok {
		return v
	}
	return def
}

func (p Params) Int(key string, def int) int {
	if v, ok := p[key].(int); ok {
		return v
	}
	return def
}

func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// Metadata is a strategy's static identity (spec.md §4.D).
type Metadata struct {
	Name        string
	Description string
	Schema      Schema
}

// MarketEvent is the synthetic (live) or data-driven (backtest) bar tick
// delivered to OnBar.
type MarketEvent struct {
	Symbol string
	Time   time.Time
}

// Strategy is the lifecycle contract every implementation satisfies
// (spec.md §4.D).
type Strategy interface {
	Metadata() Metadata
	OnInit(ctx context.Context) (bool, error)
	OnBar(ctx context.Context, event MarketEvent) error
	OnDeinit(ctx context.Context) error
}

// TradingGateway is the narrow terminal surface a strategy is allowed to
// touch, satisfied by both LiveTradingGateway and the backtest engine's
// BacktestTradingGateway (spec.md §4.D "Strategy parity").
type TradingGateway interface {
	AccountInfo(ctx context.Context) (terminal.AccountInfo, error)
	SymbolInfo(ctx context.Context, symbol string) (terminal.SymbolInfo, error)
	SymbolInfoTick(ctx context.Context, symbol string) (terminal.Tick, error)
	CopyRatesFromPos(ctx context.Context, symbol, timeframe string, start, count int) ([]terminal.Bar, error)
	PositionsGet(ctx context.Context, symbol string, magic int) ([]terminal.Position, error)
	OrderSend(ctx context.Context, req terminal.OrderRequest) (terminal.TradeResult, error)
	OrderCalcMargin(ctx context.Context, action terminal.RequestAction, symbol string, volume, price float64) (float64, bool, error)
}

// Factory builds one strategy instance bound to a gateway/symbol/timeframe.
type Factory func(gw TradingGateway, symbol, timeframe string, params Params) Strategy
