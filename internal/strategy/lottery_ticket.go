package strategy

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"mt5copier/internal/terminal"
)

// LotteryTicket opens the maximum affordable position in a random
// direction, holds it for a fixed duration (closing early on an extreme
// profit multiple of the equity at open), then repeats. Ported from
// original_source/strategies/lottery_ticket_strategy.py; the equity-at-open
// value that Python smuggled through the order comment as "EQ=1234.56" is
// kept as the same comment convention so a restarted task can recover which
// equity baseline an already-open position was opened against.
type LotteryTicket struct {
	gw       TradingGateway
	symbol   string
	params   Params
	rng      *rand.Rand
}

func NewLotteryTicket(gw TradingGateway, symbol, timeframe string, params Params) Strategy {
	return &LotteryTicket{gw: gw, symbol: symbol, params: params, rng: rand.New(rand.NewSource(1))}
}

var lotteryTicketSchema = Schema{
	"holding_time_minutes":       {Label: "Holding time (minutes)", Type: ParamInt, Default: 60},
	"margin_usage_percent":       {Label: "Margin usage (%)", Type: ParamFloat, Default: 95.0},
	"extreme_profit_multiplier":  {Label: "Extreme profit multiplier (of equity)", Type: ParamFloat, Default: 2.0},
	"magic":                      {Label: "Magic number", Type: ParamInt, Default: 202407},
}

func (s *LotteryTicket) Metadata() Metadata {
	return Metadata{
		Name:        "LotteryTicket",
		Description: "Opens the maximum affordable position in a random direction and holds it for a fixed duration or until an extreme profit target.",
		Schema:      lotteryTicketSchema,
	}
}

func (s *LotteryTicket) OnInit(ctx context.Context) (bool, error) { return true, nil }
func (s *LotteryTicket) OnDeinit(ctx context.Context) error       { return nil }

func (s *LotteryTicket) OnBar(ctx context.Context, event MarketEvent) error {
	magic := s.params.Int("magic", 202407)
	positions, err := s.gw.PositionsGet(ctx, s.symbol, magic)
	if err != nil {
		return fmt.Errorf("lottery: positions get: %w", err)
	}
	if len(positions) == 0 {
		return s.placeNewTrade(ctx)
	}
	return s.monitorTrade(ctx, positions[0])
}

func (s *LotteryTicket) placeNewTrade(ctx context.Context) error {
	account, err := s.gw.AccountInfo(ctx)
	if err != nil {
		return fmt.Errorf("lottery: account info: %w", err)
	}

	side := terminal.Buy
	if s.rng.Intn(2) == 1 {
		side = terminal.Sell
	}

	volume, err := s.calculateMaxVolume(ctx)
	if err != nil {
		return err
	}
	if volume <= 0 {
		log.Printf("lottery[%s]: computed volume is 0, skipping (insufficient free margin)", s.symbol)
		return nil
	}

	tick, err := s.gw.SymbolInfoTick(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("lottery: tick: %w", err)
	}
	price := tick.Ask
	if side == terminal.Sell {
		price = tick.Bid
	}

	_, err = s.gw.OrderSend(ctx, terminal.OrderRequest{
		Action: terminal.ActionDeal, Symbol: s.symbol, Volume: volume, Type: side, Price: price,
		Magic: s.params.Int("magic", 202407),
		Comment: fmt.Sprintf("LotteryTicket|EQ=%.2f|OT=%d", account.Equity, time.Now().Unix()),
		TypeFilling: "IOC", TypeTime: "GTC",
	})
	return err
}

func (s *LotteryTicket) monitorTrade(ctx context.Context, p terminal.Position) error {
	initialEquity, openedAt := s.parseCommentFields(p.Comment)
	if initialEquity <= 0 {
		if account, err := s.gw.AccountInfo(ctx); err == nil {
			initialEquity = account.Balance
		}
	}

	multiplier := s.params.Float("extreme_profit_multiplier", 2.0)
	if initialEquity > 0 && p.Profit >= initialEquity*multiplier {
		log.Printf("lottery[%s]: extreme profit hit, profit=%.2f target=%.2f", s.symbol, p.Profit, initialEquity*multiplier)
		return s.closeTrade(ctx, p)
	}

	holding := time.Duration(s.params.Int("holding_time_minutes", 60)) * time.Minute
	if !openedAt.IsZero() && time.Since(openedAt) >= holding {
		log.Printf("lottery[%s]: holding time elapsed for ticket %d, closing", s.symbol, p.Ticket)
		return s.closeTrade(ctx, p)
	}

	log.Printf("lottery[%s]: monitoring ticket %d, floating profit %.2f", s.symbol, p.Ticket, p.Profit)
	return nil
}

func (s *LotteryTicket) closeTrade(ctx context.Context, p terminal.Position) error {
	tick, err := s.gw.SymbolInfoTick(ctx, p.Symbol)
	if err != nil {
		return fmt.Errorf("lottery: tick: %w", err)
	}
	closeSide := p.Type.Opposite()
	price := tick.Bid
	if closeSide == terminal.Buy {
		price = tick.Ask
	}
	ticket := p.Ticket
	_, err = s.gw.OrderSend(ctx, terminal.OrderRequest{
		Action: terminal.ActionDeal, Symbol: p.Symbol, Volume: p.Volume, Type: closeSide,
		Position: &ticket, Price: price, Deviation: 20, Magic: s.params.Int("magic", 202407),
		Comment: "Close by Lottery Strategy", TypeFilling: "IOC", TypeTime: "GTC",
	})
	return err
}

func (s *LotteryTicket) calculateMaxVolume(ctx context.Context) (float64, error) {
	account, err := s.gw.AccountInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("lottery: account info: %w", err)
	}
	marginToUse := account.MarginFree * (s.params.Float("margin_usage_percent", 95.0) / 100.0)

	tick, err := s.gw.SymbolInfoTick(ctx, s.symbol)
	if err != nil {
		return 0, fmt.Errorf("lottery: tick: %w", err)
	}
	marginPerLot, ok, err := s.gw.OrderCalcMargin(ctx, terminal.ActionDeal, s.symbol, 1.0, tick.Ask)
	if err != nil || !ok || marginPerLot <= 0 {
		return 0, nil
	}

	volume := marginToUse / marginPerLot
	info, err := s.gw.SymbolInfo(ctx, s.symbol)
	if err != nil {
		return 0, fmt.Errorf("lottery: symbol info: %w", err)
	}

	switch {
	case volume > info.VolumeMin:
		volume = math.Round(volume/info.VolumeStep) * info.VolumeStep
	case volume > 0:
		volume = info.VolumeMin
	}
	volume = math.Min(info.VolumeMax, volume)
	if volume < info.VolumeMin {
		return 0, nil
	}
	return math.Round(volume*100) / 100, nil
}

func (s *LotteryTicket) parseCommentFields(comment string) (equity float64, openedAt time.Time) {
	for _, p := range strings.Split(comment, "|") {
		switch {
		case strings.HasPrefix(p, "EQ="):
			if v, err := strconv.ParseFloat(strings.TrimPrefix(p, "EQ="), 64); err == nil {
				equity = v
			}
		case strings.HasPrefix(p, "OT="):
			if v, err := strconv.ParseInt(strings.TrimPrefix(p, "OT="), 10, 64); err == nil {
				openedAt = time.Unix(v, 0)
			}
		}
	}
	return equity, openedAt
}
