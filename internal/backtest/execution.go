package backtest

import "fmt"

// pointResolver reports the minimum price increment for symbol, used for
// slippage. spec.md §9 resolves the source's hardcoded point=1e-5 by
// consulting SymbolInfo instead; 1e-5 remains the fallback for an unknown
// symbol.
type pointResolver func(symbol string) float64

// ExecutionHandler simulates order fills against the data the backtest has
// already advanced to, eliminating look-ahead (spec.md §4.E).
type ExecutionHandler struct {
	data           *DataHandler
	commission     float64
	slippagePoints int
	point          pointResolver
}

// NewExecutionHandler builds a simulated execution handler. commissionPerTrade
// and slippagePoints are used as given (zero means no commission and no
// slippage); a nil point resolver falls back to 1e-5 for every symbol.
func NewExecutionHandler(data *DataHandler, commissionPerTrade float64, slippagePoints int, point pointResolver) *ExecutionHandler {
	if point == nil {
		point = func(string) float64 { return 1e-5 }
	}
	return &ExecutionHandler{data: data, commission: commissionPerTrade, slippagePoints: slippagePoints, point: point}
}

// ExecuteOrder fills a MKT order at the current bar's open plus/minus
// slippage (treated as an absolute cost on both sides per spec.md §9's
// resolution of the source's asymmetric sign convention). LMT/STP are
// future work.
//
// Commission models a broker's round-turn charge: it is billed once, on the
// fill that closes a position, not on the fill that opens it — otherwise a
// single round trip would be billed twice (spec.md S6 fixes the total cost
// of one open+close round trip at exactly one commission_per_trade).
func (h *ExecutionHandler) ExecuteOrder(order OrderEvent) (FillEvent, error) {
	if order.Kind != OrderMarket {
		return FillEvent{}, fmt.Errorf("backtest: order kind %s not simulated yet", order.Kind)
	}
	bar, ok := h.data.LatestBar(order.Symbol)
	if !ok {
		return FillEvent{}, fmt.Errorf("backtest: no market data for %s", order.Symbol)
	}

	slippage := float64(h.slippagePoints) * h.point(order.Symbol)
	// Slippage is an absolute cost against the position on both sides
	// (spec.md §9): a BUY fills higher than the bar's open, a SELL fills
	// lower, so it never favors the trader regardless of direction.
	fillPrice := bar.Open + slippage
	if order.Direction == SignalSell {
		fillPrice = bar.Open - slippage
	}

	commission := 0.0
	if order.Closing {
		commission = h.commission
	}

	return FillEvent{
		Symbol: order.Symbol, Direction: order.Direction, Quantity: order.Quantity,
		FillPrice: fillPrice, Commission: commission, Slippage: slippage,
		Time: bar.Time, Closing: order.Closing,
	}, nil
}
