package mirror

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/google/uuid"

	"mt5copier/internal/account"
	"mt5copier/internal/terminal"
)

// RunCycle performs one close-sweep/SL-TP-reconcile/open-sweep pass for a
// single follower (spec.md §4.C). It assumes the Gate is already connected
// to follower's terminal session (the supervisor owns login/logout around
// each per-account step; the Mirror Engine only ever operates inside an
// already-open critical section).
func RunCycle(ctx context.Context, gate *terminal.Gate, follower *account.Account, master MasterSnapshot) (*CycleResult, error) {
	fc := follower.Follower
	result := &CycleResult{CycleID: uuid.NewString()}

	positions, err := gate.PositionsGet(ctx, "", fc.Magic)
	if err != nil {
		return nil, fmt.Errorf("mirror: positions get: %w", err)
	}
	orders, err := gate.OrdersGet(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("mirror: orders get: %w", err)
	}

	mirrored := make(map[int64]followerTrade)
	for _, p := range positions {
		if p.Magic != fc.Magic {
			continue
		}
		if mTicket, ok := parseFollowerComment(p.Comment); ok {
			mirrored[mTicket] = followerTrade{Ticket: p.Ticket, Symbol: p.Symbol, Type: p.Type, Volume: p.Volume, SL: p.SL, TP: p.TP}
		}
	}
	for _, o := range orders {
		if o.Magic != fc.Magic {
			continue
		}
		if mTicket, ok := parseFollowerComment(o.Comment); ok {
			mirrored[mTicket] = followerTrade{Ticket: o.Ticket, Symbol: o.Symbol, Type: o.Type, Volume: o.VolumeInitial, SL: o.SL, TP: o.TP, IsPending: true}
		}
	}

	closeSweep(ctx, gate, fc, master, mirrored, result)
	reconcileSLTP(ctx, gate, fc, master, mirrored, result)
	openSweep(ctx, gate, follower, master, mirrored, result)

	return result, nil
}

// closeSweep: mirrored trades whose master ticket no longer exists get
// closed/removed (spec.md §4.C step 2).
func closeSweep(ctx context.Context, gate *terminal.Gate, fc account.FollowerConfig, master MasterSnapshot, mirrored map[int64]followerTrade, result *CycleResult) {
	for mTicket, ft := range mirrored {
		if _, stillOpen := master.Trades[mTicket]; stillOpen {
			continue
		}
		comment := fmt.Sprintf("Close F %d", mTicket)
		var req terminal.OrderRequest
		if ft.IsPending {
			ticket := ft.Ticket
			req = terminal.OrderRequest{Action: terminal.ActionRemove, Order: &ticket, Comment: comment}
		} else {
			ticket := ft.Ticket
			req = terminal.OrderRequest{
				Action: terminal.ActionDeal, Symbol: ft.Symbol, Volume: ft.Volume,
				Type: ft.Type.Opposite(), Comment: comment, Magic: fc.Magic,
				Deviation: fc.EffectiveSlippage(), TypeFilling: "IOC", TypeTime: "GTC",
				Position: &ticket,
			}
		}
		res, err := gate.OrderSend(ctx, req)
		if err != nil {
			result.logErr("close %d: %v", mTicket, err)
			continue
		}
		if !res.Done() {
			log.Printf("mirror[%s]: close of master ticket %d retcode=%d comment=%s", result.CycleID, mTicket, res.RetCode, res.Comment)
			result.logErr("close %d: retcode %d", mTicket, res.RetCode)
			continue
		}
		result.Closed++
	}
}

// reconcileSLTP: mirrored trades still tracking a live master ticket get
// their SL/TP synced, honoring the reverse-mode swap (spec.md §4.C step 3).
func reconcileSLTP(ctx context.Context, gate *terminal.Gate, fc account.FollowerConfig, master MasterSnapshot, mirrored map[int64]followerTrade, result *CycleResult) {
	const epsilon = 1e-9
	for mTicket, ft := range mirrored {
		mt, ok := master.Trades[mTicket]
		if !ok {
			continue
		}
		expectedSL, expectedTP := mt.SL, mt.TP
		if fc.CopyMode == account.CopyReverse {
			expectedSL, expectedTP = mt.TP, mt.SL
		}
		if math.Abs(expectedSL-ft.SL) <= epsilon && math.Abs(expectedTP-ft.TP) <= epsilon {
			continue
		}
		ticket := ft.Ticket
		action := terminal.ActionSLTP
		if ft.IsPending {
			action = terminal.ActionModify
		}
		req := terminal.OrderRequest{Action: action, SL: expectedSL, TP: expectedTP}
		if ft.IsPending {
			req.Order = &ticket
		} else {
			req.Position = &ticket
		}
		res, err := gate.OrderSend(ctx, req)
		if err != nil {
			result.logErr("sltp %d: %v", mTicket, err)
			continue
		}
		if !res.Done() {
			log.Printf("mirror[%s]: sltp modify for master ticket %d retcode=%d", result.CycleID, mTicket, res.RetCode)
			result.logErr("sltp %d: retcode %d", mTicket, res.RetCode)
			continue
		}
		result.Modified++
	}
}

// openSweep: master tickets with no mirrored follower trade get opened
// (spec.md §4.C step 4), unless the master ticket itself carries the
// follower's own magic (self-echo guard).
func openSweep(ctx context.Context, gate *terminal.Gate, follower *account.Account, master MasterSnapshot, mirrored map[int64]followerTrade, result *CycleResult) {
	fc := follower.Follower
	for mTicket, mt := range master.Trades {
		if _, already := mirrored[mTicket]; already {
			continue
		}
		if mt.Magic == fc.Magic {
			continue
		}

		followerSymbol := resolveSymbol(fc, mt.Symbol)
		if ok, _ := gate.SymbolSelect(ctx, followerSymbol, true); !ok {
			result.Skipped++
			continue
		}

		info, err := gate.SymbolInfo(ctx, followerSymbol)
		if err != nil {
			result.logErr("open %d: symbol info: %v", mTicket, err)
			result.Skipped++
			continue
		}

		followerEquity := follower.Snapshot().Telemetry.Equity
		volume, ok := resolveVolume(fc, mt.Volume, master.AccountInfo.Equity, followerEquity, info)
		if !ok {
			result.Skipped++
			continue
		}

		sl, tp := mt.SL, mt.TP
		if fc.CopyMode == account.CopyReverse {
			sl, tp = mt.TP, mt.SL
		}

		side := mt.Type
		if fc.CopyMode == account.CopyReverse {
			mapped, ok := mt.Type.ReverseMap()
			if !ok {
				result.Skipped++
				continue
			}
			side = mapped
		}

		req := terminal.OrderRequest{
			Symbol: followerSymbol, Volume: volume, Type: side, SL: sl, TP: tp,
			Magic: fc.Magic, Comment: fmt.Sprintf("F %d", mTicket),
			Deviation: fc.EffectiveSlippage(), TypeFilling: "IOC", TypeTime: "GTC",
		}
		if mt.IsPending {
			req.Action = terminal.ActionPending
			req.Price = mt.PriceOpen
		} else {
			req.Action = terminal.ActionDeal
			tick, err := gate.SymbolInfoTick(ctx, followerSymbol)
			if err != nil {
				result.logErr("open %d: tick: %v", mTicket, err)
				result.Skipped++
				continue
			}
			if side.IsBuyFamily() {
				req.Price = tick.Ask
			} else {
				req.Price = tick.Bid
			}
		}

		res, err := gate.OrderSend(ctx, req)
		if err != nil {
			result.logErr("open %d: %v", mTicket, err)
			continue
		}
		if !res.Done() {
			log.Printf("mirror[%s]: open of master ticket %d retcode=%d", result.CycleID, mTicket, res.RetCode)
			result.logErr("open %d: retcode %d", mTicket, res.RetCode)
			continue
		}
		result.Opened++
	}
}

// resolveSymbol applies the per-master-symbol override if present, else the
// follower's default rule, else the master symbol unchanged (spec.md §4.C
// step 4).
func resolveSymbol(fc account.FollowerConfig, masterSymbol string) string {
	if override, ok := fc.SymbolOverrides[masterSymbol]; ok {
		return applySymbolRule(override.Rule, override.Text, masterSymbol)
	}
	return applySymbolRule(fc.DefaultSymbolRule, fc.DefaultSymbolText, masterSymbol)
}

func applySymbolRule(rule account.SymbolRule, text, masterSymbol string) string {
	switch rule {
	case account.SymbolRuleReplace:
		return text
	case account.SymbolRulePrefix:
		return text + masterSymbol
	case account.SymbolRuleSuffix:
		return masterSymbol + text
	default:
		return masterSymbol
	}
}

// resolveVolume implements the same/fixed/equityRatio policy and the
// min/step/max clamp (spec.md §4.C "Volume resolution").
func resolveVolume(fc account.FollowerConfig, masterVolume, masterEquity, followerEquity float64, info terminal.SymbolInfo) (float64, bool) {
	var v float64
	switch fc.VolumeMode {
	case account.VolumeFixed:
		v = fc.FixedLot
		if v <= 0 {
			v = 0.01
		}
	case account.VolumeEquityRatio:
		if masterEquity > 0 && followerEquity > 0 {
			v = masterVolume * (followerEquity / masterEquity)
		} else {
			v = masterVolume
		}
	default: // VolumeSame
		v = masterVolume
	}

	if v < info.VolumeMin {
		v = info.VolumeMin
	}
	if info.VolumeMax > 0 && v > info.VolumeMax {
		v = info.VolumeMax
	}
	if info.VolumeStep > 0 {
		v = math.Round(v/info.VolumeStep) * info.VolumeStep
	}
	if v < info.VolumeMin {
		return 0, false
	}
	return v, true
}
