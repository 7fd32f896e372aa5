package strategy

import (
	"context"
	"errors"
	"fmt"

	"mt5copier/internal/strategy/remote"
	"mt5copier/internal/terminal"
)

// RemoteStrategy adapts a worker process reachable over internal/strategy/remote
// into the Strategy interface: on_init/on_bar/on_deinit are forwarded as RPCs,
// and every Intent the worker returns from on_bar is translated into an
// OrderRequest and sent through the local TradingGateway — the remote process
// never touches the terminal directly, only this host process does
// (spec.md §4.D: "a remote strategy expresses intent; the host executes it").
type RemoteStrategy struct {
	client       *remote.Client
	gw           TradingGateway
	name, symbol string
	timeframe    string
	params       Params
}

func NewRemoteStrategy(client *remote.Client, name string, gw TradingGateway, symbol, timeframe string, params Params) *RemoteStrategy {
	return &RemoteStrategy{client: client, gw: gw, name: name, symbol: symbol, timeframe: timeframe, params: params}
}

func (r *RemoteStrategy) Metadata() Metadata {
	return Metadata{Name: r.name, Description: "Remote strategy hosted by an out-of-process worker."}
}

func (r *RemoteStrategy) OnInit(ctx context.Context) (bool, error) {
	raw := make(map[string]any, len(r.params))
	for k, v := range r.params {
		raw[k] = v
	}
	resp, err := r.client.OnInit(ctx, &remote.InitRequest{StrategyName: r.name, Symbol: r.symbol, Timeframe: r.timeframe, Params: raw})
	if err != nil {
		return false, err
	}
	if !resp.OK {
		return false, errors.New(resp.Error)
	}
	return true, nil
}

func (r *RemoteStrategy) OnBar(ctx context.Context, event MarketEvent) error {
	resp, err := r.client.OnBar(ctx, &remote.BarRequest{Symbol: event.Symbol, TimeUnixNano: event.Time.UnixNano()})
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	for _, intent := range resp.Intents {
		if err := r.execute(ctx, intent); err != nil {
			return fmt.Errorf("remote strategy %s: intent: %w", r.name, err)
		}
	}
	return nil
}

func (r *RemoteStrategy) OnDeinit(ctx context.Context) error {
	resp, err := r.client.OnDeinit(ctx, &remote.DeinitRequest{})
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	return nil
}

func (r *RemoteStrategy) execute(ctx context.Context, in remote.Intent) error {
	req := terminal.OrderRequest{
		Action: terminal.RequestAction(in.Action), Symbol: in.Symbol, Volume: in.Volume,
		Type: terminal.OrderKind(in.Type), Price: in.Price, SL: in.SL, TP: in.TP,
		Magic: in.Magic, Comment: in.Comment, Position: in.PositionRef, Order: in.OrderRef,
		TypeFilling: "IOC", TypeTime: "GTC",
	}
	_, err := r.gw.OrderSend(ctx, req)
	return err
}
