package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mt5copier/internal/account"
	"mt5copier/internal/mirror"
	"mt5copier/internal/terminal"
)

// defaultConnectTimeout bounds a single connect attempt.
const defaultConnectTimeout = 10 * time.Second

// Supervisor drives one account-lifecycle cycle at a time (spec.md §4.B).
// All public methods that touch account state go through a single Gate, so
// a Supervisor is not safe to run concurrently with itself — the Core Loop
// calls RunOnce serially, once per tick.
type Supervisor struct {
	Store      *account.Store
	Gate       *terminal.Gate
	Commands   CommandSink
	Logs       LogSink
	Strategies StrategyRuntime
	Snapshots  SnapshotSink

	riskMu        sync.Mutex
	riskArmed     bool
	riskThreshold float64
}

// New builds a Supervisor. riskThreshold <= 0 leaves the global risk stop
// disarmed until ArmRiskStop is called explicitly. Snapshot publishing is
// enabled by setting the Snapshots field directly after construction; it is
// optional and left nil by New.
func New(store *account.Store, gate *terminal.Gate, commands CommandSink, logs LogSink, strategies StrategyRuntime) *Supervisor {
	return &Supervisor{Store: store, Gate: gate, Commands: commands, Logs: logs, Strategies: strategies}
}

// ArmRiskStop enables the global equity kill switch (spec.md §4.B step 5).
// The UI re-arms it explicitly after a trip; RunOnce disarms it itself once
// it fires.
func (s *Supervisor) ArmRiskStop(threshold float64) {
	s.riskMu.Lock()
	defer s.riskMu.Unlock()
	s.riskArmed = true
	s.riskThreshold = threshold
}

func (s *Supervisor) DisarmRiskStop() {
	s.riskMu.Lock()
	defer s.riskMu.Unlock()
	s.riskArmed = false
}

func (s *Supervisor) riskStopState() (armed bool, threshold float64) {
	s.riskMu.Lock()
	defer s.riskMu.Unlock()
	return s.riskArmed, s.riskThreshold
}

func (s *Supervisor) logf(accountID, format string, args ...any) {
	if s.Logs == nil {
		return
	}
	s.Logs.Log(accountID, fmt.Sprintf(format, args...))
}

// RunOnce performs the five-step per-cycle algorithm once (spec.md §4.B).
func (s *Supervisor) RunOnce(ctx context.Context) {
	s.probePendingChanges(ctx)

	masterFollowers := s.buildMasterFollowerIndex()
	handled := make(map[string]bool)

	for masterID, followers := range masterFollowers {
		handled[masterID] = true
		master, ok := s.Store.Get(masterID)
		if !ok {
			continue
		}
		s.runMasterGroup(ctx, master, followers, handled)
	}

	for _, a := range s.Store.LoggedIn() {
		if handled[a.ID] {
			continue
		}
		handled[a.ID] = true
		s.runIdleOrStrategyAccount(ctx, a)
	}

	s.evaluateRiskStop()
	s.publishSnapshots()
}

// publishSnapshots fans out every known account's post-cycle Snapshot to the
// UI edge (spec.md §4.H accountSnapshotQueue). A nil Snapshots sink is a
// valid configuration (e.g. in tests) and simply skips publishing.
func (s *Supervisor) publishSnapshots() {
	if s.Snapshots == nil {
		return
	}
	for _, a := range s.Store.All() {
		s.Snapshots.Publish(a.Snapshot())
	}
}

// probePendingChanges implements step 1: accounts with a queued password
// edit get one probe connect before anything else happens this cycle.
func (s *Supervisor) probePendingChanges(ctx context.Context) {
	for _, a := range s.Store.All() {
		snap := a.Snapshot()
		if snap.State != account.StatePendingVerify {
			continue
		}
		pending, has := a.PendingCredentials()
		if !has {
			continue
		}

		ep := terminal.Endpoint{
			Login: a.Credentials.Login, Password: pending,
			Server: a.Credentials.Server, Path: a.Credentials.Path,
		}
		res, err := s.Gate.Login(ctx, a.ID, ep, defaultConnectTimeout)
		if err == nil && res.OK {
			a.CommitPendingPassword()
			a.ResetFailure()
			a.SetState(account.StateConnected)
			s.logf(a.ID, "pending credential change verified")
			_ = s.Gate.Shutdown(ctx)
			continue
		}
		a.Lock()
		s.logf(a.ID, "pending credential change rejected, locking account")
		_ = s.Gate.Shutdown(ctx)
	}
}

// buildMasterFollowerIndex implements step 2: master -> enabled, logged-in,
// non-strategy-bound followers.
func (s *Supervisor) buildMasterFollowerIndex() map[string][]*account.Account {
	idx := make(map[string][]*account.Account)
	for _, f := range s.Store.ByRole(account.RoleFollower) {
		if !f.Follower.Enabled {
			continue
		}
		if f.GetState() == account.StateLoggedOut || f.GetState() == account.StateDisabled || f.IsLocked() {
			continue
		}
		if s.Strategies != nil && s.Strategies.IsBound(f.ID) {
			continue
		}
		idx[f.Follower.FollowMasterID] = append(idx[f.Follower.FollowMasterID], f)
	}
	return idx
}

// runMasterGroup implements step 3: connect the master once, snapshot its
// trades, then mirror each follower in turn before releasing the Gate.
func (s *Supervisor) runMasterGroup(ctx context.Context, master *account.Account, followers []*account.Account, handled map[string]bool) {
	if master.IsLocked() {
		return
	}
	if s.Strategies != nil && s.Strategies.IsBound(master.ID) {
		return // strategy-bound masters are not mirrored as masters
	}

	if !s.connectAccount(ctx, master) {
		return
	}
	master.SetState(account.StateConnected)

	info, err := s.Gate.AccountInfo(ctx)
	if err != nil {
		s.logf(master.ID, "account info: %v", err)
		_ = s.Gate.Shutdown(ctx)
		return
	}
	positions, err := s.Gate.PositionsGet(ctx, "", 0)
	if err != nil {
		s.logf(master.ID, "positions get: %v", err)
		_ = s.Gate.Shutdown(ctx)
		return
	}
	orders, err := s.Gate.OrdersGet(ctx, "")
	if err != nil {
		s.logf(master.ID, "orders get: %v", err)
		_ = s.Gate.Shutdown(ctx)
		return
	}
	master.UpdateTelemetry(account.Telemetry{Balance: info.Balance, Equity: info.Equity, Profit: info.Profit, MarginFree: info.MarginFree, MarginLevel: info.MarginLevel})
	snapshot := mirror.BuildMasterSnapshot(s.Gate, info, positions, orders)

	for _, follower := range followers {
		handled[follower.ID] = true
		if !s.connectAccount(ctx, follower) {
			continue
		}
		follower.SetState(account.StateCopying)
		result, err := mirror.RunCycle(ctx, s.Gate, follower, snapshot)
		if err != nil {
			s.logf(follower.ID, "mirror cycle failed: %v", err)
			continue
		}
		if result.Closed+result.Modified+result.Opened > 0 {
			s.logf(follower.ID, "mirror cycle %s: closed=%d modified=%d opened=%d skipped=%d", result.CycleID, result.Closed, result.Modified, result.Opened, result.Skipped)
		}
		for _, e := range result.Errors {
			s.logf(follower.ID, "mirror error: %s", e)
		}
	}

	_ = s.Gate.Shutdown(ctx)
}

// runIdleOrStrategyAccount implements step 4.
func (s *Supervisor) runIdleOrStrategyAccount(ctx context.Context, a *account.Account) {
	if a.IsLocked() {
		return
	}
	if !s.connectAccount(ctx, a) {
		return
	}

	info, err := s.Gate.AccountInfo(ctx)
	if err == nil {
		a.UpdateTelemetry(account.Telemetry{Balance: info.Balance, Equity: info.Equity, Profit: info.Profit, MarginFree: info.MarginFree, MarginLevel: info.MarginLevel})
	}

	if s.Strategies != nil && s.Strategies.IsBound(a.ID) {
		if s.Strategies.IsAlive(a.ID) {
			a.SetState(account.StateStrategyRunning)
		} else {
			s.Strategies.Drop(a.ID)
			a.SetState(account.StateError)
			s.logf(a.ID, "strategy task died, dropped from instance map")
		}
	} else {
		a.SetState(account.StateConnected)
	}

	_ = s.Gate.Shutdown(ctx)
}

// connectAccount logs a into the Gate and applies the failCount/lock
// transitions from the state diagram in spec.md §4.B. It returns true if
// the caller may proceed to use the connection.
func (s *Supervisor) connectAccount(ctx context.Context, a *account.Account) bool {
	ep := terminal.Endpoint{
		Login: a.Credentials.Login, Password: a.Credentials.Password,
		Server: a.Credentials.Server, Path: a.Credentials.Path,
	}
	res, err := s.Gate.Login(ctx, a.ID, ep, defaultConnectTimeout)
	if err == nil && res.OK {
		a.ResetFailure()
		return true
	}

	if res.ErrCode == terminal.RetInvalidAuth {
		a.Lock()
		s.logf(a.ID, "invalid credentials, account locked")
		return false
	}

	fails := a.IncrementFailure()
	if fails >= account.MaxFailCount {
		a.Lock()
		s.logf(a.ID, "connect failed %d times, account locked", fails)
		return false
	}
	a.SetState(account.StateError)
	if err != nil {
		s.logf(a.ID, "connect failed: %v", err)
	} else {
		s.logf(a.ID, "connect failed: retcode %d", res.ErrCode)
	}
	return false
}

// evaluateRiskStop implements step 5: if armed and total equity across
// logged-in accounts drops below the threshold, force-close everything and
// disarm.
func (s *Supervisor) evaluateRiskStop() {
	armed, threshold := s.riskStopState()
	if !armed {
		return
	}
	total := s.Store.TotalEquity()
	if total >= threshold {
		return
	}
	if s.Commands != nil {
		s.Commands.EnqueueForceCloseAll(fmt.Sprintf("global risk stop: equity %.2f below threshold %.2f", total, threshold))
	}
	s.DisarmRiskStop()
}
