// Package terminal implements the Terminal Gate (spec.md §4.A): the single
// mutex-guarded entry point to the broker terminal adapter, plus the narrow
// contract (Adapter) the Gate consumes from it.
//
// Grounded on internal/gateway/manager.go's pooling/health-check shape,
// reduced to a single-connection singleton since the underlying MT5 terminal
// process is itself a process-global singleton (spec.md §4.A: "a second
// initialize(...) silently supersedes the first"), unlike the teacher's
// many-exchange-connection pool.
package terminal

import (
	"context"
	"time"
)

// OrderKind enumerates position/pending order types.
type OrderKind string

const (
	Buy       OrderKind = "BUY"
	Sell      OrderKind = "SELL"
	BuyLimit  OrderKind = "BUY_LIMIT"
	SellLimit OrderKind = "SELL_LIMIT"
	BuyStop   OrderKind = "BUY_STOP"
	SellStop  OrderKind = "SELL_STOP"
)

// IsBuyFamily reports whether kind opens in the buy direction.
func (k OrderKind) IsBuyFamily() bool {
	switch k {
	case Buy, BuyLimit, BuyStop:
		return true
	default:
		return false
	}
}

// IsPending reports whether kind is a pending order rather than a position.
func (k OrderKind) IsPending() bool {
	switch k {
	case BuyLimit, SellLimit, BuyStop, SellStop:
		return true
	default:
		return false
	}
}

// Opposite returns the side that closes a position of kind k via a market
// deal (spec.md §4.C close sweep: "send a market order opposite its side").
func (k OrderKind) Opposite() OrderKind {
	if k == Buy {
		return Sell
	}
	return Buy
}

// ReverseMap implements the spec.md §4.C reverse-mode side mapping:
// {Buy<->Sell, BuyLimit<->SellStop, SellLimit<->BuyStop, BuyStop<->SellLimit,
// SellStop<->BuyLimit}. ok is false if no mapping is defined.
func (k OrderKind) ReverseMap() (OrderKind, bool) {
	switch k {
	case Buy:
		return Sell, true
	case Sell:
		return Buy, true
	case BuyLimit:
		return SellStop, true
	case SellStop:
		return BuyLimit, true
	case SellLimit:
		return BuyStop, true
	case BuyStop:
		return SellLimit, true
	}
	return "", false
}

// Retcode constants we treat specially (spec.md §6).
const (
	RetTradeDone  = 10009
	RetInvalidAuth = 1045
)

// Endpoint is what Connect needs to start a session.
type Endpoint struct {
	Login    int64
	Password string
	Server   string
	Path     string
}

// ConnectResult is Connect's return value.
type ConnectResult struct {
	PingMs  int64
	OK      bool
	ErrCode int
}

// AccountInfo is the account telemetry snapshot (spec.md §3).
type AccountInfo struct {
	Balance     float64
	Equity      float64
	Profit      float64
	MarginFree  float64
	MarginLevel float64
}

// Position is an open master/follower trade (spec.md §3 Master/Follower Trade).
type Position struct {
	Ticket    int64
	Symbol    string
	Type      OrderKind
	Volume    float64
	PriceOpen float64
	SL        float64
	TP        float64
	Magic     int
	Profit    float64
	Comment   string
}

// PendingOrder is a resting (not yet filled) order.
type PendingOrder struct {
	Ticket        int64
	Symbol        string
	Type          OrderKind
	VolumeInitial float64
	PriceOpen     float64
	SL            float64
	TP            float64
	Magic         int
	Comment       string
}

// SymbolInfo is the tradeable-instrument metadata the Mirror Engine needs to
// clamp volume and resolve the price unit (spec.md §3).
type SymbolInfo struct {
	Point      float64
	Digits     int
	VolumeMin  float64
	VolumeMax  float64
	VolumeStep float64
	TradeMode  int
}

// Tick is a best bid/ask snapshot.
type Tick struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

// Bar is one OHLC candle (spec.md §3/§6).
type Bar struct {
	Time        time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	TickVolume  int64
	Spread      int32
	RealVolume  int64
}

// RequestAction is the kind of terminal operation an OrderRequest performs
// (spec.md §6).
type RequestAction string

const (
	ActionDeal   RequestAction = "deal"
	ActionPending RequestAction = "pending"
	ActionRemove RequestAction = "remove"
	ActionSLTP   RequestAction = "sltp"
	ActionModify RequestAction = "modify"
)

// OrderRequest is the wire shape consumed by orderSend (spec.md §6).
type OrderRequest struct {
	Action      RequestAction
	Symbol      string
	Volume      float64
	Type        OrderKind
	Price       float64
	SL          float64
	TP          float64
	Deviation   int
	Magic       int
	Comment     string
	TypeFilling string // "IOC"
	TypeTime    string // "GTC"

	// Set for sltp/modify/remove against an existing ticket.
	Position *int64
	Order    *int64
}

// TradeResult is orderSend's ack (spec.md §4.A).
type TradeResult struct {
	RetCode int
	Comment string
	Deal    int64
	Order   int64
}

// Done reports whether the result represents success.
func (r TradeResult) Done() bool {
	return r.RetCode == RetTradeDone
}

// Adapter is the narrow broker-terminal contract the Gate consumes
// (spec.md §4.A, §6). It is intentionally small: the terminal itself is out
// of scope (spec.md §1), this is only the operations we call on it. No Go
// library in the example pack implements this (MetaRPC's GoMT5, visible in
// other_examples/, is a gRPC client against a separate bridge process, not an
// importable adapter) — callers provide a concrete Adapter (a live bridge
// client or, for tests/dry-run, MockAdapter).
type Adapter interface {
	Connect(ctx context.Context, ep Endpoint, timeout time.Duration) (ConnectResult, error)
	AccountInfo(ctx context.Context) (AccountInfo, error)
	SymbolSelect(ctx context.Context, symbol string, enable bool) (bool, error)
	SymbolInfo(ctx context.Context, symbol string) (SymbolInfo, error)
	SymbolInfoTick(ctx context.Context, symbol string) (Tick, error)
	PositionsGet(ctx context.Context, symbol string, magic int) ([]Position, error)
	OrdersGet(ctx context.Context, symbol string) ([]PendingOrder, error)
	CopyRatesRange(ctx context.Context, symbol, timeframe string, t0, t1 time.Time) ([]Bar, error)
	CopyRatesFromPos(ctx context.Context, symbol, timeframe string, start, count int) ([]Bar, error)
	OrderSend(ctx context.Context, req OrderRequest) (TradeResult, error)
	OrderCalcMargin(ctx context.Context, action RequestAction, symbol string, volume, price float64) (float64, bool, error)
	Shutdown(ctx context.Context) error
}
