// Package supervisor implements the Session Supervisor (spec.md §4.B): the
// per-cycle state machine that decides, for every known account, whether to
// probe a pending credential change, mirror as a follower, run as a
// strategy host, or just sit connected as an idle monitor.
//
// Grounded on internal/reconciliation/service.go's periodic diff-and-sync
// loop shape, generalized from "reconcile exchange positions against local
// state" to "advance every account's lifecycle state".
package supervisor

import "mt5copier/internal/account"

// CommandSink is the narrow slice of the command queue the Supervisor
// writes to (spec.md §4.B step 5: "enqueue a self-command to force-close
// every logged-in account"). Grounded on internal/reconciliation/service.go's
// ExchangeClient interface pattern: depend on the operation you need, not
// the concrete queue type, so internal/queues and internal/supervisor never
// import each other.
type CommandSink interface {
	EnqueueForceCloseAll(reason string)
}

// LogSink is the narrow slice of the log queue the Supervisor writes human-
// readable per-cycle events to.
type LogSink interface {
	Log(accountID, message string)
}

// StrategyRuntime is the narrow view of the Strategy Runtime's instance
// table the Supervisor needs (spec.md §4.B step 4: "if strategy host and
// its task has died, drop it from the instance map and emit error").
type StrategyRuntime interface {
	IsBound(accountID string) bool
	IsAlive(accountID string) bool
	Drop(accountID string)
}

// SnapshotSink is the narrow slice of the account-snapshot queue the
// Supervisor publishes each account's post-cycle state to (spec.md §4.H
// accountSnapshotQueue).
type SnapshotSink interface {
	Publish(snap account.Snapshot)
}
