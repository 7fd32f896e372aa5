package strategy

import (
	"context"
	"strconv"
	"testing"
	"time"

	"mt5copier/internal/terminal"
)

func TestLotteryTicketOpensWhenFlatAndHasFreeMargin(t *testing.T) {
	mock := terminal.NewMockAdapter()
	mock.Account = terminal.AccountInfo{Balance: 1000, Equity: 1000, MarginFree: 1000}
	mock.Symbols["XAUUSD"] = terminal.SymbolInfo{Point: 0.01, Digits: 2, VolumeMin: 0.01, VolumeMax: 50, VolumeStep: 0.01}
	mock.Ticks["XAUUSD"] = terminal.Tick{Bid: 2000, Ask: 2000.5}
	gw := newTestGateway(mock)

	params := Merge(lotteryTicketSchema, nil, nil, nil)
	s := NewLotteryTicket(gw, "XAUUSD", "M1", params)

	ctx := context.Background()
	if _, err := s.OnInit(ctx); err != nil {
		t.Fatalf("on_init: %v", err)
	}
	if err := s.OnBar(ctx, MarketEvent{Symbol: "XAUUSD", Time: time.Now()}); err != nil {
		t.Fatalf("on_bar: %v", err)
	}
	if len(mock.Sent) != 1 {
		t.Fatalf("orders sent = %d, want 1", len(mock.Sent))
	}
	if mock.Sent[0].Volume <= 0 {
		t.Fatalf("volume = %v, want > 0", mock.Sent[0].Volume)
	}
}

func TestLotteryTicketClosesOnExtremeProfit(t *testing.T) {
	mock := terminal.NewMockAdapter()
	mock.Account = terminal.AccountInfo{Balance: 1000, Equity: 1000}
	mock.Symbols["XAUUSD"] = terminal.SymbolInfo{Point: 0.01, Digits: 2, VolumeMin: 0.01, VolumeMax: 50, VolumeStep: 0.01}
	mock.Ticks["XAUUSD"] = terminal.Tick{Bid: 2100, Ask: 2100.5}
	mock.Positions = []terminal.Position{{
		Ticket: 77, Symbol: "XAUUSD", Type: terminal.Buy, Volume: 1.0, Magic: 202407,
		Profit: 2500, Comment: "LotteryTicket|EQ=1000.00|OT=1",
	}}
	gw := newTestGateway(mock)

	params := Merge(lotteryTicketSchema, nil, nil, map[string]any{"extreme_profit_multiplier": 2.0})
	s := NewLotteryTicket(gw, "XAUUSD", "M1", params)

	ctx := context.Background()
	if err := s.OnBar(ctx, MarketEvent{Symbol: "XAUUSD", Time: time.Now()}); err != nil {
		t.Fatalf("on_bar: %v", err)
	}
	if len(mock.Sent) != 1 {
		t.Fatalf("orders sent = %d, want 1", len(mock.Sent))
	}
	if mock.Sent[0].Type != terminal.Sell || mock.Sent[0].Position == nil || *mock.Sent[0].Position != 77 {
		t.Fatalf("expected a closing Sell against ticket 77, got %+v", mock.Sent[0])
	}
}

func TestLotteryTicketClosesAfterHoldingTimeElapsed(t *testing.T) {
	mock := terminal.NewMockAdapter()
	mock.Account = terminal.AccountInfo{Balance: 1000, Equity: 1000}
	mock.Symbols["XAUUSD"] = terminal.SymbolInfo{Point: 0.01, Digits: 2, VolumeMin: 0.01, VolumeMax: 50, VolumeStep: 0.01}
	mock.Ticks["XAUUSD"] = terminal.Tick{Bid: 2000, Ask: 2000.5}
	oldOpen := time.Now().Add(-2 * time.Hour).Unix()
	mock.Positions = []terminal.Position{{
		Ticket: 88, Symbol: "XAUUSD", Type: terminal.Buy, Volume: 1.0, Magic: 202407,
		Profit: 10, Comment: "LotteryTicket|EQ=1000.00|OT=" + strconv.FormatInt(oldOpen, 10),
	}}
	gw := newTestGateway(mock)

	params := Merge(lotteryTicketSchema, nil, nil, map[string]any{"holding_time_minutes": 60})
	s := NewLotteryTicket(gw, "XAUUSD", "M1", params)

	ctx := context.Background()
	if err := s.OnBar(ctx, MarketEvent{Symbol: "XAUUSD", Time: time.Now()}); err != nil {
		t.Fatalf("on_bar: %v", err)
	}
	if len(mock.Sent) != 1 {
		t.Fatalf("orders sent = %d, want 1 (holding time should force a close)", len(mock.Sent))
	}
}
