package terminal

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotConnected is returned by any Gate call made before Login succeeds.
var ErrNotConnected = errors.New("terminal: not connected")

// Gate is the process-global critical section around the broker terminal
// (spec.md §4.A: "At most one account may be actively connected ... every
// call into the terminal API happens inside the Gate's critical section").
// Grounded on internal/gateway/manager.go's connection-pool mutex, reduced
// to a single adapter slot because the MT5 terminal process underneath is
// itself a singleton: a second Login silently supersedes the first.
type Gate struct {
	mu      sync.Mutex
	adapter Adapter

	currentAccountID string
	connected        bool
}

// NewGate wraps adapter in the single-flight critical section.
func NewGate(adapter Adapter) *Gate {
	return &Gate{adapter: adapter}
}

// Login connects the terminal to accountID's endpoint, evicting whatever
// account previously held the connection. Call sites must treat the
// returned ConnectResult.OK == false with ErrCode == RetInvalidAuth as an
// instant-lock condition (spec.md §4.B step 3).
func (g *Gate) Login(ctx context.Context, accountID string, ep Endpoint, timeout time.Duration) (ConnectResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	res, err := g.adapter.Connect(ctx, ep, timeout)
	if err != nil {
		g.connected = false
		return res, err
	}
	g.connected = res.OK
	if res.OK {
		g.currentAccountID = accountID
	}
	return res, nil
}

// CurrentAccount returns the id of whichever account currently owns the
// terminal connection, or "" if none.
func (g *Gate) CurrentAccount() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentAccountID
}

func (g *Gate) requireConnected() error {
	if !g.connected {
		return ErrNotConnected
	}
	return nil
}

func (g *Gate) AccountInfo(ctx context.Context) (AccountInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.requireConnected(); err != nil {
		return AccountInfo{}, err
	}
	return g.adapter.AccountInfo(ctx)
}

func (g *Gate) SymbolSelect(ctx context.Context, symbol string, enable bool) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.requireConnected(); err != nil {
		return false, err
	}
	return g.adapter.SymbolSelect(ctx, symbol, enable)
}

func (g *Gate) SymbolInfo(ctx context.Context, symbol string) (SymbolInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.requireConnected(); err != nil {
		return SymbolInfo{}, err
	}
	return g.adapter.SymbolInfo(ctx, symbol)
}

func (g *Gate) SymbolInfoTick(ctx context.Context, symbol string) (Tick, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.requireConnected(); err != nil {
		return Tick{}, err
	}
	return g.adapter.SymbolInfoTick(ctx, symbol)
}

func (g *Gate) PositionsGet(ctx context.Context, symbol string, magic int) ([]Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.requireConnected(); err != nil {
		return nil, err
	}
	return g.adapter.PositionsGet(ctx, symbol, magic)
}

func (g *Gate) OrdersGet(ctx context.Context, symbol string) ([]PendingOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.requireConnected(); err != nil {
		return nil, err
	}
	return g.adapter.OrdersGet(ctx, symbol)
}

func (g *Gate) CopyRatesRange(ctx context.Context, symbol, timeframe string, t0, t1 time.Time) ([]Bar, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.requireConnected(); err != nil {
		return nil, err
	}
	return g.adapter.CopyRatesRange(ctx, symbol, timeframe, t0, t1)
}

func (g *Gate) CopyRatesFromPos(ctx context.Context, symbol, timeframe string, start, count int) ([]Bar, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.requireConnected(); err != nil {
		return nil, err
	}
	return g.adapter.CopyRatesFromPos(ctx, symbol, timeframe, start, count)
}

func (g *Gate) OrderSend(ctx context.Context, req OrderRequest) (TradeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.requireConnected(); err != nil {
		return TradeResult{}, err
	}
	return g.adapter.OrderSend(ctx, req)
}

func (g *Gate) OrderCalcMargin(ctx context.Context, action RequestAction, symbol string, volume, price float64) (float64, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.requireConnected(); err != nil {
		return 0, false, err
	}
	return g.adapter.OrderCalcMargin(ctx, action, symbol, volume, price)
}

// Shutdown releases the terminal connection. Safe to call even if nothing
// is currently connected.
func (g *Gate) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = false
	g.currentAccountID = ""
	return g.adapter.Shutdown(ctx)
}
