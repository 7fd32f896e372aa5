package core

import (
	"context"
	"fmt"

	"mt5copier/internal/account"
	"mt5copier/internal/strategy"
	"mt5copier/internal/terminal"
)

// execute dispatches one Command (spec.md §4.G step 1's six operations,
// plus updateState).
func (l *Loop) execute(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CommandCloseAllForcefully:
		reason := cmd.Reason
		if reason == "" {
			reason = "closeAllForcefully command"
		}
		return l.closeAllForcefully(ctx, reason)
	case CommandCloseSingleTrade:
		return l.closeSingleTrade(ctx, cmd.AccountID, cmd.Ticket)
	case CommandStopAndClose:
		return l.stopAndClose(ctx, cmd.AccountID)
	case CommandModifySLTP:
		return l.modifySLTP(ctx, cmd.AccountID, cmd.Ticket, cmd.SL, cmd.TP)
	case CommandStartStrategy:
		return l.startStrategy(ctx, cmd.AccountID, cmd.StrategyName, cmd.Symbol, cmd.Timeframe, cmd.Overrides)
	case CommandStopStrategy:
		return l.stopStrategy(cmd.AccountID)
	case CommandUpdateState:
		return l.updateState(cmd)
	default:
		return fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
}

// withConnection logs a into the Gate for the duration of fn, then shuts
// the connection down. Mirrors internal/strategy.LiveTradingGateway.
// ensureConnected's connect-act-disconnect shape, used here for one-shot
// command handling rather than a long-lived strategy task.
func (l *Loop) withConnection(ctx context.Context, a *account.Account, fn func(ctx context.Context) error) error {
	ep := terminal.Endpoint{
		Login: a.Credentials.Login, Password: a.Credentials.Password,
		Server: a.Credentials.Server, Path: a.Credentials.Path,
	}
	res, err := l.gate.Login(ctx, a.ID, ep, l.connectTimeout)
	if err != nil {
		return fmt.Errorf("connect %s: %w", a.ID, err)
	}
	if !res.OK {
		return fmt.Errorf("connect %s: retcode %d", a.ID, res.ErrCode)
	}
	defer l.gate.Shutdown(ctx)
	return fn(ctx)
}

// closeAllTrades closes every open position and cancels every pending order
// visible on whichever account currently owns the Gate connection.
func (l *Loop) closeAllTrades(ctx context.Context, accountID string) error {
	positions, err := l.gate.PositionsGet(ctx, "", 0)
	if err != nil {
		return fmt.Errorf("positions get: %w", err)
	}
	for _, p := range positions {
		ticket := p.Ticket
		req := terminal.OrderRequest{
			Action: terminal.ActionDeal, Symbol: p.Symbol, Volume: p.Volume, Type: p.Type.Opposite(),
			Position: &ticket, Magic: p.Magic, TypeFilling: "IOC", TypeTime: "GTC",
		}
		if res, err := l.gate.OrderSend(ctx, req); err != nil {
			return fmt.Errorf("close ticket %d: %w", p.Ticket, err)
		} else if !res.Done() {
			l.logf(accountID, "close ticket %d retcode=%d comment=%q", p.Ticket, res.RetCode, res.Comment)
		}
	}

	orders, err := l.gate.OrdersGet(ctx, "")
	if err != nil {
		return fmt.Errorf("orders get: %w", err)
	}
	for _, o := range orders {
		ticket := o.Ticket
		if _, err := l.gate.OrderSend(ctx, terminal.OrderRequest{Action: terminal.ActionRemove, Order: &ticket}); err != nil {
			return fmt.Errorf("remove pending %d: %w", o.Ticket, err)
		}
	}
	return nil
}

// closeAllForcefully implements spec.md §4.G's closeAllForcefully command:
// for every logged-in account, stop its strategy (if any) then close
// everything. One account's failure is logged and does not stop the sweep
// over the rest.
func (l *Loop) closeAllForcefully(ctx context.Context, reason string) error {
	for _, a := range l.store.LoggedIn() {
		if l.strategies.IsBound(a.ID) {
			l.strategies.Stop(a.ID)
		}
		err := l.withConnection(ctx, a, func(ctx context.Context) error { return l.closeAllTrades(ctx, a.ID) })
		if err != nil {
			l.logf(a.ID, "closeAllForcefully (%s): %v", reason, err)
			continue
		}
		a.SetState(account.StateConnected)
	}
	return nil
}

func (l *Loop) requireAccount(accountID string) (*account.Account, error) {
	a, ok := l.store.Get(accountID)
	if !ok {
		return nil, fmt.Errorf("unknown account %q", accountID)
	}
	return a, nil
}

func (l *Loop) closeSingleTrade(ctx context.Context, accountID string, ticket int64) error {
	a, err := l.requireAccount(accountID)
	if err != nil {
		return err
	}
	return l.withConnection(ctx, a, func(ctx context.Context) error {
		positions, err := l.gate.PositionsGet(ctx, "", 0)
		if err != nil {
			return err
		}
		for _, p := range positions {
			if p.Ticket != ticket {
				continue
			}
			req := terminal.OrderRequest{
				Action: terminal.ActionDeal, Symbol: p.Symbol, Volume: p.Volume, Type: p.Type.Opposite(),
				Position: &ticket, Magic: p.Magic, TypeFilling: "IOC", TypeTime: "GTC",
			}
			_, err := l.gate.OrderSend(ctx, req)
			return err
		}

		orders, err := l.gate.OrdersGet(ctx, "")
		if err != nil {
			return err
		}
		for _, o := range orders {
			if o.Ticket != ticket {
				continue
			}
			_, err := l.gate.OrderSend(ctx, terminal.OrderRequest{Action: terminal.ActionRemove, Order: &ticket})
			return err
		}
		return fmt.Errorf("ticket %d not found on %s", ticket, accountID)
	})
}

func (l *Loop) stopAndClose(ctx context.Context, accountID string) error {
	a, err := l.requireAccount(accountID)
	if err != nil {
		return err
	}
	if l.strategies.IsBound(a.ID) {
		l.strategies.Stop(a.ID)
	}
	if err := l.withConnection(ctx, a, func(ctx context.Context) error { return l.closeAllTrades(ctx, a.ID) }); err != nil {
		return err
	}
	a.SetState(account.StateConnected)
	return nil
}

func (l *Loop) modifySLTP(ctx context.Context, accountID string, ticket int64, sl, tp float64) error {
	a, err := l.requireAccount(accountID)
	if err != nil {
		return err
	}
	return l.withConnection(ctx, a, func(ctx context.Context) error {
		_, err := l.gate.OrderSend(ctx, terminal.OrderRequest{Action: terminal.ActionSLTP, Position: &ticket, SL: sl, TP: tp})
		return err
	})
}

// startStrategy implements spec.md §4.G's startStrategy command and §3
// invariant 1 (at most one Strategy Instance per account): parameters merge
// defaults <- global overlay section <- per-account overlay section <-
// the command's own overrides (spec.md §3 Strategy Instance / §6).
func (l *Loop) startStrategy(ctx context.Context, accountID, name, symbol, timeframe string, overrides map[string]any) error {
	a, err := l.requireAccount(accountID)
	if err != nil {
		return err
	}
	if l.strategies.IsBound(a.ID) {
		return fmt.Errorf("account %s already has a running strategy", accountID)
	}

	meta, ok := l.registry.Metadata(name)
	if !ok {
		return fmt.Errorf("unknown strategy %q", name)
	}

	var global, acctSection map[string]any
	if l.overlay != nil {
		global = l.overlay.GlobalSection(name)
		acctSection = l.overlay.AccountSection(accountID, name)
	}
	params := strategy.Merge(meta.Schema, global, acctSection, overrides)

	if symbol == "" {
		symbol = "EURUSD"
	}
	if timeframe == "" {
		timeframe = "M1"
	}

	gw := strategy.NewLiveTradingGateway(l.gate, a)
	inst, err := l.registry.New(name, gw, symbol, timeframe, params)
	if err != nil {
		return fmt.Errorf("build strategy %s: %w", name, err)
	}

	if err := l.strategies.Start(accountID, symbol, inst); err != nil {
		return fmt.Errorf("start strategy %s on %s: %w", name, accountID, err)
	}
	a.SetState(account.StateStrategyRunning)
	return nil
}

func (l *Loop) stopStrategy(accountID string) error {
	a, err := l.requireAccount(accountID)
	if err != nil {
		return err
	}
	l.strategies.Stop(accountID)
	a.SetState(account.StateConnected)
	return nil
}

// updateState applies the UI's pushed volatile state (spec.md §4.H):
// pending password changes (probePendingChanges consumes those next cycle)
// and the logged-in set, which drives the command:login/command:logout
// transitions spec.md §4.B's diagram shows leaving/entering loggedOut.
func (l *Loop) updateState(cmd Command) error {
	for id, plaintext := range cmd.PendingPasswords {
		a, ok := l.store.Get(id)
		if !ok {
			continue
		}
		a.QueuePasswordChange(plaintext)
	}

	if cmd.LoggedInSet != nil {
		l.applyLoggedInSet(cmd.LoggedInSet)
	}
	return nil
}

// applyLoggedInSet logs in every account named in wantLoggedIn that's
// currently loggedOut, and logs out every other account currently active
// but no longer named.
func (l *Loop) applyLoggedInSet(wantLoggedIn []string) {
	want := make(map[string]bool, len(wantLoggedIn))
	for _, id := range wantLoggedIn {
		want[id] = true
	}

	for _, a := range l.store.All() {
		if want[a.ID] {
			a.MarkLoggedIn()
		} else {
			a.MarkLoggedOut()
		}
	}
}
