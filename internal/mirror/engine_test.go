package mirror

import (
	"context"
	"testing"

	"mt5copier/internal/account"
	"mt5copier/internal/terminal"
)

func newFollowerAccount(fc account.FollowerConfig) *account.Account {
	return &account.Account{ID: "slave1", Role: account.RoleFollower, Follower: fc}
}

// S1: forward mirror, same lot.
func TestRunCycleForwardSameLotOpensThenIdles(t *testing.T) {
	ctx := context.Background()
	mock := terminal.NewMockAdapter()
	gate := terminal.NewGate(mock)
	if _, err := gate.Login(ctx, "slave1", terminal.Endpoint{}, 0); err != nil {
		t.Fatalf("login: %v", err)
	}

	master := MasterSnapshot{
		AccountInfo: terminal.AccountInfo{Equity: 10000},
		Trades: map[int64]MasterTrade{
			7001: {Ticket: 7001, Symbol: "EURUSD", Type: terminal.Buy, Volume: 0.10, SL: 1.0950, TP: 1.1050, Magic: 1},
		},
	}
	follower := newFollowerAccount(account.FollowerConfig{
		Enabled: true, Magic: 99, CopyMode: account.CopyForward, VolumeMode: account.VolumeSame,
	})

	res, err := RunCycle(ctx, gate, follower, master)
	if err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	if res.Opened != 1 {
		t.Fatalf("opened = %d, want 1", res.Opened)
	}
	if len(mock.Sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(mock.Sent))
	}
	req := mock.Sent[0]
	if req.Symbol != "EURUSD" || req.Volume != 0.10 || req.Type != terminal.Buy || req.SL != 1.0950 || req.TP != 1.1050 || req.Magic != 99 || req.Comment != "F 7001" {
		t.Fatalf("unexpected request: %+v", req)
	}

	res2, err := RunCycle(ctx, gate, follower, master)
	if err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	if res2.Opened != 0 || res2.Modified != 0 || res2.Closed != 0 {
		t.Fatalf("cycle 2 should be a no-op, got %+v", res2)
	}
	if len(mock.Sent) != 1 {
		t.Fatalf("cycle 2 sent an extra order: %+v", mock.Sent)
	}
}

// S2: reverse mirror with symbol suffix on a pending order.
func TestRunCycleReverseSymbolSuffixPending(t *testing.T) {
	ctx := context.Background()
	mock := terminal.NewMockAdapter()
	gate := terminal.NewGate(mock)
	if _, err := gate.Login(ctx, "slave1", terminal.Endpoint{}, 0); err != nil {
		t.Fatalf("login: %v", err)
	}

	master := MasterSnapshot{
		Trades: map[int64]MasterTrade{
			7100: {Ticket: 7100, Symbol: "EURUSD", Type: terminal.BuyLimit, Volume: 0.50, PriceOpen: 1.0900, SL: 1.0850, TP: 1.0970, Magic: 1, IsPending: true},
		},
	}
	follower := newFollowerAccount(account.FollowerConfig{
		Enabled: true, Magic: 42, CopyMode: account.CopyReverse,
		VolumeMode: account.VolumeFixed, FixedLot: 0.20,
		DefaultSymbolRule: account.SymbolRuleSuffix, DefaultSymbolText: ".m",
	})

	res, err := RunCycle(ctx, gate, follower, master)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if res.Opened != 1 {
		t.Fatalf("opened = %d, want 1", res.Opened)
	}
	req := mock.Sent[0]
	if req.Symbol != "EURUSD.m" || req.Volume != 0.20 || req.Type != terminal.SellStop {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Price != 1.0900 || req.SL != 1.0970 || req.TP != 1.0850 {
		t.Fatalf("unexpected price/sl/tp: %+v", req)
	}
	if req.Magic != 42 || req.Comment != "F 7100" {
		t.Fatalf("unexpected magic/comment: %+v", req)
	}
}

// S3: close propagation.
func TestRunCycleClosePropagation(t *testing.T) {
	ctx := context.Background()
	mock := terminal.NewMockAdapter()
	mock.Positions = []terminal.Position{
		{Ticket: 501, Symbol: "EURUSD", Type: terminal.Buy, Volume: 0.10, Magic: 99, Comment: "F 7001"},
	}
	gate := terminal.NewGate(mock)
	if _, err := gate.Login(ctx, "slave1", terminal.Endpoint{}, 0); err != nil {
		t.Fatalf("login: %v", err)
	}

	master := MasterSnapshot{Trades: map[int64]MasterTrade{}}
	follower := newFollowerAccount(account.FollowerConfig{Enabled: true, Magic: 99, CopyMode: account.CopyForward})

	res, err := RunCycle(ctx, gate, follower, master)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if res.Closed != 1 {
		t.Fatalf("closed = %d, want 1", res.Closed)
	}
	req := mock.Sent[0]
	if req.Type != terminal.Sell || req.Comment != "Close F 7001" || req.Position == nil || *req.Position != 501 {
		t.Fatalf("unexpected close request: %+v", req)
	}
}

// S4: SL/TP modification under reverse mode.
func TestRunCycleSLTPReconcileReverse(t *testing.T) {
	ctx := context.Background()
	mock := terminal.NewMockAdapter()
	mock.Positions = []terminal.Position{
		{Ticket: 9001, Symbol: "EURUSD", Type: terminal.Sell, Volume: 0.10, Magic: 7, Comment: "F 8002", SL: 1.2000, TP: 1.2100},
	}
	gate := terminal.NewGate(mock)
	if _, err := gate.Login(ctx, "slave1", terminal.Endpoint{}, 0); err != nil {
		t.Fatalf("login: %v", err)
	}

	master := MasterSnapshot{
		Trades: map[int64]MasterTrade{
			8002: {Ticket: 8002, Symbol: "EURUSD", Type: terminal.Buy, Volume: 0.10, SL: 1.2000, TP: 1.2100, Magic: 1},
		},
	}
	follower := newFollowerAccount(account.FollowerConfig{Enabled: true, Magic: 7, CopyMode: account.CopyReverse})

	res, err := RunCycle(ctx, gate, follower, master)
	if err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	if res.Modified != 1 {
		t.Fatalf("modified = %d, want 1", res.Modified)
	}
	req := mock.Sent[0]
	if req.SL != 1.2100 || req.TP != 1.2000 {
		t.Fatalf("unexpected sl/tp: %+v", req)
	}

	// apply the modify to the mock's view of the world, then re-run: no more modifications expected.
	mock.Positions[0].SL = 1.2100
	mock.Positions[0].TP = 1.2000
	res2, err := RunCycle(ctx, gate, follower, master)
	if err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	if res2.Modified != 0 {
		t.Fatalf("cycle 2 modified = %d, want 0", res2.Modified)
	}
}
