package datasync

import (
	"context"
	"fmt"
	"time"

	"mt5copier/internal/account"
	"mt5copier/internal/terminal"
)

// GatedRates adapts a *terminal.Gate to RatesSource for the Data Sync
// Worker's fixed master1 login. The worker shares the single process-global
// Gate with the Core Loop's Session Supervisor, so a sync task's fetches can
// find the connection evicted by whatever account the supervisor connected
// to since the worker's last call; ensureConnected re-logs in as master1
// whenever that happens, the same connect-before-every-call shape
// internal/strategy's LiveTradingGateway uses for the opposite reason (a
// strategy task and the idle sweep racing for the same account).
type GatedRates struct {
	gate           *terminal.Gate
	master         *account.Account
	connectTimeout time.Duration
}

func NewGatedRates(gate *terminal.Gate, master *account.Account) *GatedRates {
	return &GatedRates{gate: gate, master: master, connectTimeout: 10 * time.Second}
}

func (g *GatedRates) ensureConnected(ctx context.Context) error {
	if g.gate.CurrentAccount() == g.master.ID {
		return nil
	}
	ep := terminal.Endpoint{
		Login: g.master.Credentials.Login, Password: g.master.Credentials.Password,
		Server: g.master.Credentials.Server, Path: g.master.Credentials.Path,
	}
	res, err := g.gate.Login(ctx, g.master.ID, ep, g.connectTimeout)
	if err != nil {
		return fmt.Errorf("datasync gateway: connect %s: %w", g.master.ID, err)
	}
	if !res.OK {
		return fmt.Errorf("datasync gateway: connect %s: retcode %d", g.master.ID, res.ErrCode)
	}
	return nil
}

func (g *GatedRates) CopyRatesRange(ctx context.Context, symbol, timeframe string, t0, t1 time.Time) ([]terminal.Bar, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return nil, err
	}
	return g.gate.CopyRatesRange(ctx, symbol, timeframe, t0, t1)
}
