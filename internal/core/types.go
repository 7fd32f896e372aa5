// Package core implements the Core Loop (spec.md §4.G): the single
// background scheduler that drains commands, advances the Session
// Supervisor, and evaluates the global risk stop.
//
// Grounded on main.go's top-level wiring/orchestration shape and
// internal/monitor/monitor.go's ticker-driven evaluate loop, generalized
// from "watch one event stream and alert" to "drain one command, advance
// every subsystem, sleep".
package core

// CommandKind identifies which of the spec's fixed command shapes a Command
// carries (spec.md §4.G step 1).
type CommandKind string

const (
	CommandCloseAllForcefully CommandKind = "closeAllForcefully"
	CommandCloseSingleTrade   CommandKind = "closeSingleTrade"
	CommandStopAndClose       CommandKind = "stopAndClose"
	CommandModifySLTP         CommandKind = "modifySLTP"
	CommandStartStrategy      CommandKind = "startStrategy"
	CommandStopStrategy       CommandKind = "stopStrategy"
	CommandUpdateState        CommandKind = "updateState"
)

// Command is the single wire shape for everything the UI pushes into the
// command queue; only the fields relevant to Kind are read.
type Command struct {
	Kind CommandKind `json:"kind"`

	AccountID string  `json:"accountId,omitempty"`
	Ticket    int64   `json:"ticket,omitempty"`
	SL        float64 `json:"sl,omitempty"`
	TP        float64 `json:"tp,omitempty"`

	StrategyName string         `json:"strategyName,omitempty"`
	Symbol       string         `json:"symbol,omitempty"`
	Timeframe    string         `json:"timeframe,omitempty"`
	Overrides    map[string]any `json:"overrides,omitempty"`

	// Reason carries a closeAllForcefully command's origin (a UI-initiated
	// stop, or the Session Supervisor's own self-enqueued risk-stop trip).
	Reason string `json:"reason,omitempty"`

	// PendingPasswords carries an updateState command's volatile
	// pending-verify map (accountID -> new plaintext password); the Core
	// treats this as an input it applies, never as state it owns (spec.md
	// §4.H: "The UI pushes its entire volatile state ... via updateState
	// rather than the Core owning it").
	PendingPasswords map[string]string `json:"pendingPasswords,omitempty"`

	// LoggedInSet carries an updateState command's current logged-in set
	// (spec.md §4.H): the account ids the UI wants active right now. An id
	// present here that's currently loggedOut moves to connected
	// (command:login); an id absent here that's currently
	// connected/copying/strategyRunning/error moves back to loggedOut
	// (command:logout). Nil leaves every account's login state untouched,
	// distinct from an empty-but-non-nil set which logs everyone out; no
	// omitempty here so that distinction survives the JSON round trip.
	LoggedInSet []string `json:"loggedInSet"`
}

// CommandSource is the narrow slice of the command queue the Core Loop
// reads from (spec.md §4.H commandQueue). Grounded on
// internal/supervisor.CommandSink's same depend-on-the-operation-you-need
// shape, applied to the opposite direction of the same queue.
type CommandSource interface {
	Dequeue() (Command, bool)
}
