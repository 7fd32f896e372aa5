// Package account holds the Account and FollowerConfig data model (spec.md
// §3) and the in-memory Store the Session Supervisor, Mirror Engine, and
// Strategy Runtime all read and mutate.
//
// Grounded on the teacher's internal/balance/manager.go: a mutex-guarded map
// of per-entity structs with a Refresh-style telemetry update, adapted here
// from per-user balances to per-account trading state.
package account

import (
	"sync"
	"time"
)

// State is one of the account lifecycle states in spec.md §3.
type State string

const (
	StateLoggedOut        State = "loggedOut"
	StatePendingVerify     State = "pendingVerify"
	StateConnected         State = "connected"
	StateCopying           State = "copying"
	StateStrategyRunning   State = "strategyRunning"
	StateDisabled          State = "disabled"
	StateError             State = "error"
	StateLocked            State = "locked"
	StateConfigIncomplete  State = "configIncomplete"
)

// Role distinguishes what an account is used for.
type Role string

const (
	RoleMaster        Role = "master"
	RoleFollower      Role = "follower"
	RoleStrategyHost  Role = "strategy-host"
)

// MaxFailCount is the failure threshold (spec.md §4.B: "failCount ≥ MAX (=10)").
const MaxFailCount = 10

// CopyMode controls whether a follower mirrors or inverts master trades.
type CopyMode string

const (
	CopyForward CopyMode = "forward"
	CopyReverse CopyMode = "reverse"
)

// VolumeMode selects how follower order size is computed.
type VolumeMode string

const (
	VolumeSame        VolumeMode = "same"
	VolumeFixed       VolumeMode = "fixed"
	VolumeEquityRatio VolumeMode = "equityRatio"
)

// SymbolRule is how a follower maps a master symbol to its own.
type SymbolRule string

const (
	SymbolRuleNone    SymbolRule = "none"
	SymbolRuleReplace SymbolRule = "replace"
	SymbolRulePrefix  SymbolRule = "prefix"
	SymbolRuleSuffix  SymbolRule = "suffix"
)

// SymbolOverride is a per-master-symbol mapping rule (spec.md §3).
type SymbolOverride struct {
	Rule SymbolRule
	Text string
}

// FollowerConfig is per-follower mirroring policy (spec.md §3).
type FollowerConfig struct {
	Enabled           bool
	FollowMasterID    string
	Magic             int
	CopyMode          CopyMode
	VolumeMode        VolumeMode
	FixedLot          float64
	DefaultSymbolRule SymbolRule
	DefaultSymbolText string
	SlippagePoints    int
	SymbolOverrides   map[string]SymbolOverride // master symbol -> override
}

// EffectiveSlippage returns SlippagePoints or the spec default of 200.
func (fc FollowerConfig) EffectiveSlippage() int {
	if fc.SlippagePoints > 0 {
		return fc.SlippagePoints
	}
	return 200
}

// Credentials holds a login's connection secrets. Password is decrypted
// in-memory only; PasswordEncrypted is what's persisted to the config file
// via pkg/secretkey.
type Credentials struct {
	Login             int64
	Password          string
	PasswordEncrypted string
	Server            string
	Path              string
}

// Telemetry is the derived runtime snapshot refreshed once per cycle
// (spec.md §3: "Derived runtime telemetry ... written once per cycle").
type Telemetry struct {
	Balance      float64
	Equity       float64
	Profit       float64
	MarginFree   float64
	MarginLevel  float64
	PingMs       int64
	Positions    []string // ticket summaries, for snapshot display
	RefreshedAt  time.Time
}

// Account is one logical MT5 login (spec.md §3).
type Account struct {
	mu sync.RWMutex

	ID   string // "master1", "slave1", ...
	Role Role

	Credentials Credentials
	Follower    FollowerConfig // only meaningful when Role == RoleFollower

	State     State
	FailCount int

	// PendingPassword is set when the UI edits credentials for an
	// account that's still logged in; the supervisor probes it before
	// committing (spec.md §4.B step 1).
	PendingPassword string
	HasPending      bool

	Telemetry Telemetry

	// StrategyName is set when a strategy instance is bound to this
	// account (Role == RoleStrategyHost or a follower opted into a
	// strategy instead of mirroring).
	StrategyName string
}

// Snapshot is a read-only copy safe to hand to other goroutines/queues.
type Snapshot struct {
	ID        string
	Role      Role
	State     State
	FailCount int
	Telemetry Telemetry
}

func (a *Account) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Snapshot{
		ID:        a.ID,
		Role:      a.Role,
		State:     a.State,
		FailCount: a.FailCount,
		Telemetry: a.Telemetry,
	}
}

func (a *Account) GetState() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.State
}

func (a *Account) SetState(s State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.State = s
}

// MarkLoggedIn applies the "command:login" transition (spec.md §4.B): only
// an account sitting in loggedOut moves to connected. Locked, disabled,
// configIncomplete, and pendingVerify accounts are left alone — the UI's
// logged-in set is not a way to bypass those.
func (a *Account) MarkLoggedIn() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.State == StateLoggedOut {
		a.State = StateConnected
	}
}

// MarkLoggedOut applies the "command:logout" transition (spec.md §4.B):
// connected/copying/strategyRunning/error all fall back to loggedOut when
// the UI drops the account from its logged-in set. Locked, disabled,
// configIncomplete, and pendingVerify are left alone for the same reason
// MarkLoggedIn leaves them alone.
func (a *Account) MarkLoggedOut() {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.State {
	case StateConnected, StateCopying, StateStrategyRunning, StateError:
		a.State = StateLoggedOut
	}
}

// IsLocked reports whether the account is in the locked state. Invariant 4
// (spec.md §3): "An account in locked stays locked until user action."
func (a *Account) IsLocked() bool {
	return a.GetState() == StateLocked
}

func (a *Account) IncrementFailure() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.FailCount++
	return a.FailCount
}

func (a *Account) ResetFailure() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.FailCount = 0
}

// Lock marks the account locked, clamping FailCount at least to MaxFailCount
// so a later successful probe doesn't accidentally read as "not yet maxed".
func (a *Account) Lock() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailCount < MaxFailCount {
		a.FailCount = MaxFailCount
	}
	a.State = StateLocked
}

func (a *Account) UpdateTelemetry(t Telemetry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t.RefreshedAt = time.Now()
	a.Telemetry = t
}

// QueuePasswordChange records a pending credential edit for probing on the
// next supervisor cycle (spec.md §4.B step 1).
func (a *Account) QueuePasswordChange(plaintext string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.PendingPassword = plaintext
	a.HasPending = true
	a.State = StatePendingVerify
}

// PendingCredentials returns the queued plaintext password and whether one
// is actually pending, for the supervisor's probe-connect step.
func (a *Account) PendingCredentials() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.PendingPassword, a.HasPending
}

// CommitPendingPassword replaces the live credentials after a successful
// probe and clears the pending flag.
func (a *Account) CommitPendingPassword() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Credentials.Password = a.PendingPassword
	a.PendingPassword = ""
	a.HasPending = false
}
