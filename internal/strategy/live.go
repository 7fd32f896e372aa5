package strategy

import (
	"context"
	"fmt"
	"time"

	"mt5copier/internal/account"
	"mt5copier/internal/terminal"
)

// LiveTradingGateway adapts a *terminal.Gate to the TradingGateway seam for
// one strategy-bound account. Unlike the Mirror Engine (which assumes the
// supervisor already holds the connection for the duration of a cycle), a
// strategy task runs independently on its own ticker, so the gateway itself
// must acquire and release the Gate around every call — the same
// connect-act-disconnect shape supervisor.connectAccount uses, just entered
// from inside the strategy task instead of the cycle loop.
type LiveTradingGateway struct {
	gate          *terminal.Gate
	account       *account.Account
	connectTimeout time.Duration
}

func NewLiveTradingGateway(gate *terminal.Gate, acct *account.Account) *LiveTradingGateway {
	return &LiveTradingGateway{gate: gate, account: acct, connectTimeout: 10 * time.Second}
}

// ensureConnected logs the bound account into the Gate if some other account
// currently owns it (or nothing does). A strategy task and the supervisor's
// idle-account sweep both want the Gate while this account is running, so
// reconnect is attempted on every call rather than cached.
func (g *LiveTradingGateway) ensureConnected(ctx context.Context) error {
	if g.gate.CurrentAccount() == g.account.ID {
		return nil
	}
	ep := terminal.Endpoint{
		Login: g.account.Credentials.Login, Password: g.account.Credentials.Password,
		Server: g.account.Credentials.Server, Path: g.account.Credentials.Path,
	}
	res, err := g.gate.Login(ctx, g.account.ID, ep, g.connectTimeout)
	if err != nil {
		return fmt.Errorf("strategy gateway: connect %s: %w", g.account.ID, err)
	}
	if !res.OK {
		return fmt.Errorf("strategy gateway: connect %s: retcode %d", g.account.ID, res.ErrCode)
	}
	return nil
}

func (g *LiveTradingGateway) AccountInfo(ctx context.Context) (terminal.AccountInfo, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return terminal.AccountInfo{}, err
	}
	return g.gate.AccountInfo(ctx)
}

func (g *LiveTradingGateway) SymbolInfo(ctx context.Context, symbol string) (terminal.SymbolInfo, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return terminal.SymbolInfo{}, err
	}
	if _, err := g.gate.SymbolSelect(ctx, symbol, true); err != nil {
		return terminal.SymbolInfo{}, err
	}
	return g.gate.SymbolInfo(ctx, symbol)
}

func (g *LiveTradingGateway) SymbolInfoTick(ctx context.Context, symbol string) (terminal.Tick, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return terminal.Tick{}, err
	}
	return g.gate.SymbolInfoTick(ctx, symbol)
}

func (g *LiveTradingGateway) CopyRatesFromPos(ctx context.Context, symbol, timeframe string, start, count int) ([]terminal.Bar, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return nil, err
	}
	return g.gate.CopyRatesFromPos(ctx, symbol, timeframe, start, count)
}

func (g *LiveTradingGateway) PositionsGet(ctx context.Context, symbol string, magic int) ([]terminal.Position, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return nil, err
	}
	return g.gate.PositionsGet(ctx, symbol, magic)
}

func (g *LiveTradingGateway) OrderSend(ctx context.Context, req terminal.OrderRequest) (terminal.TradeResult, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return terminal.TradeResult{}, err
	}
	return g.gate.OrderSend(ctx, req)
}

func (g *LiveTradingGateway) OrderCalcMargin(ctx context.Context, action terminal.RequestAction, symbol string, volume, price float64) (float64, bool, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return 0, false, err
	}
	return g.gate.OrderCalcMargin(ctx, action, symbol, volume, price)
}
