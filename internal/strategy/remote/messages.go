package remote

// InitRequest carries the static binding for a remote strategy instance.
type InitRequest struct {
	StrategyName string         `json:"strategy_name"`
	Symbol       string         `json:"symbol"`
	Timeframe    string         `json:"timeframe"`
	Params       map[string]any `json:"params"`
}

type InitResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// BarRequest is one on_bar delivery.
type BarRequest struct {
	Symbol string `json:"symbol"`
	// UnixNano, not time.Time: the JSON codec round-trips plain structs
	// fine either way, but a bare int64 keeps the wire shape stable even if
	// the remote worker isn't written in Go.
	TimeUnixNano int64 `json:"time_unix_nano"`
}

// Intent is one trading action the remote worker wants performed; the host
// process translates it into a terminal.OrderRequest via its own gateway
// rather than letting the remote process touch the terminal directly.
type Intent struct {
	Action      string  `json:"action"` // "deal", "pending", "remove", "sltp", "modify"
	Symbol      string  `json:"symbol"`
	Volume      float64 `json:"volume"`
	Type        string  `json:"type"` // terminal.OrderKind string value
	Price       float64 `json:"price"`
	SL          float64 `json:"sl"`
	TP          float64 `json:"tp"`
	Magic       int     `json:"magic"`
	Comment     string  `json:"comment"`
	PositionRef *int64  `json:"position_ref,omitempty"`
	OrderRef    *int64  `json:"order_ref,omitempty"`
}

type BarResponse struct {
	Intents []Intent `json:"intents"`
	Error   string   `json:"error,omitempty"`
}

type DeinitRequest struct{}

type DeinitResponse struct {
	Error string `json:"error,omitempty"`
}
