package terminal

import (
	"context"
	"sync"
	"time"
)

// MockAdapter is an in-memory Adapter for tests that never touches a real
// terminal process. Exported (not _test.go) so internal/supervisor and
// internal/mirror tests can drive the Gate without a live bridge.
type MockAdapter struct {
	mu sync.Mutex

	ConnectFunc func(ctx context.Context, ep Endpoint) (ConnectResult, error)

	Account      AccountInfo
	Symbols      map[string]SymbolInfo
	Unselectable map[string]bool // symbols SymbolSelect should report as unavailable
	Ticks        map[string]Tick
	Positions    []Position
	Orders       []PendingOrder
	Bars         map[string][]Bar // key: symbol+"|"+timeframe

	nextTicket int64
	Sent       []OrderRequest
	OrderFunc  func(req OrderRequest) (TradeResult, error)

	ShutdownCalls int
}

// NewMockAdapter returns a MockAdapter with empty maps ready to populate.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		Symbols:    make(map[string]SymbolInfo),
		Ticks:      make(map[string]Tick),
		Bars:       make(map[string][]Bar),
		nextTicket: 1,
	}
}

func (m *MockAdapter) Connect(ctx context.Context, ep Endpoint, timeout time.Duration) (ConnectResult, error) {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx, ep)
	}
	return ConnectResult{OK: true, PingMs: 10}, nil
}

func (m *MockAdapter) AccountInfo(ctx context.Context) (AccountInfo, error) {
	return m.Account, nil
}

// SymbolSelect reports a symbol as selectable unless it's been explicitly
// listed in Unselectable; any other symbol (known in Symbols or not) is
// assumed tradeable, mirroring a real terminal where most symbols are
// selectable by default.
func (m *MockAdapter) SymbolSelect(ctx context.Context, symbol string, enable bool) (bool, error) {
	return !m.Unselectable[symbol], nil
}

func (m *MockAdapter) SymbolInfo(ctx context.Context, symbol string) (SymbolInfo, error) {
	info, ok := m.Symbols[symbol]
	if !ok {
		return SymbolInfo{Point: 0.0001, Digits: 4, VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01}, nil
	}
	return info, nil
}

func (m *MockAdapter) SymbolInfoTick(ctx context.Context, symbol string) (Tick, error) {
	return m.Ticks[symbol], nil
}

func (m *MockAdapter) PositionsGet(ctx context.Context, symbol string, magic int) ([]Position, error) {
	var out []Position
	for _, p := range m.Positions {
		if symbol != "" && p.Symbol != symbol {
			continue
		}
		if magic != 0 && p.Magic != magic {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *MockAdapter) OrdersGet(ctx context.Context, symbol string) ([]PendingOrder, error) {
	var out []PendingOrder
	for _, o := range m.Orders {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *MockAdapter) CopyRatesRange(ctx context.Context, symbol, timeframe string, t0, t1 time.Time) ([]Bar, error) {
	var out []Bar
	for _, b := range m.Bars[symbol+"|"+timeframe] {
		if b.Time.Before(t0) || b.Time.After(t1) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *MockAdapter) CopyRatesFromPos(ctx context.Context, symbol, timeframe string, start, count int) ([]Bar, error) {
	all := m.Bars[symbol+"|"+timeframe]
	if start >= len(all) {
		return nil, nil
	}
	end := start + count
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (m *MockAdapter) OrderSend(ctx context.Context, req OrderRequest) (TradeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, req)
	if m.OrderFunc != nil {
		return m.OrderFunc(req)
	}
	m.nextTicket++
	if req.Action == ActionDeal {
		m.Positions = append(m.Positions, Position{
			Ticket:    m.nextTicket,
			Symbol:    req.Symbol,
			Type:      req.Type,
			Volume:    req.Volume,
			PriceOpen: req.Price,
			SL:        req.SL,
			TP:        req.TP,
			Magic:     req.Magic,
			Comment:   req.Comment,
		})
	}
	return TradeResult{RetCode: RetTradeDone, Deal: m.nextTicket, Order: m.nextTicket}, nil
}

func (m *MockAdapter) OrderCalcMargin(ctx context.Context, action RequestAction, symbol string, volume, price float64) (float64, bool, error) {
	return volume * price * 0.01, true, nil
}

func (m *MockAdapter) Shutdown(ctx context.Context) error {
	m.ShutdownCalls++
	return nil
}
