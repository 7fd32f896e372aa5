package strategy

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultHeartbeatInterval is how often a live strategy task synthesizes a
// MarketEvent when nothing drives it externally (spec.md §4.D: "a live task
// with no natural tick source still needs to run on_bar periodically").
const DefaultHeartbeatInterval = time.Second

// joinTimeout bounds how long Stop waits for a task goroutine to exit
// cleanly before giving up and marking it dead anyway.
const joinTimeout = 5 * time.Second

// instance is one running strategy task bound to one account.
type instance struct {
	accountID string
	symbol    string
	strategy  Strategy
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}

	mu    sync.Mutex
	alive bool
}

// Runtime owns every live strategy task and satisfies supervisor.StrategyRuntime
// by duck typing (IsBound/IsAlive/Drop), avoiding an import cycle between
// internal/supervisor and internal/strategy. Grounded on
// internal/strategy/engine.go's Engine.strategies/paused map shape, split
// per-account into its own goroutine+ticker instead of one shared tick loop,
// since each strategy here owns its own account's terminal connection.
type Runtime struct {
	mu        sync.Mutex
	instances map[string]*instance // accountID -> instance
	interval  time.Duration
}

func NewRuntime() *Runtime {
	return &Runtime{instances: make(map[string]*instance), interval: DefaultHeartbeatInterval}
}

// SetHeartbeatInterval overrides the synthetic tick period (tests use a
// much shorter one).
func (r *Runtime) SetHeartbeatInterval(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interval = d
}

// IsBound reports whether accountID currently has a task, running or dead.
func (r *Runtime) IsBound(accountID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.instances[accountID]
	return ok
}

// IsAlive reports whether accountID's task is still running.
func (r *Runtime) IsAlive(accountID string) bool {
	r.mu.Lock()
	inst, ok := r.instances[accountID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.alive
}

// Drop removes a dead task from the instance map so the account can be
// re-bound later (spec.md §4.B step 4: "dropped from instance map").
func (r *Runtime) Drop(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, accountID)
}

// Start binds strategy to accountID and launches its lifecycle goroutine.
// symbol is the account's bound trading symbol, used to stamp every
// synthetic heartbeat MarketEvent so a strategy's own symbol-match guard
// (e.g. DualMaCrossover.OnBar) actually passes in the live runtime, not just
// under a direct-call test. Returns an error without starting anything if
// accountID is already bound.
func (r *Runtime) Start(accountID, symbol string, s Strategy) error {
	r.mu.Lock()
	if _, exists := r.instances[accountID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("strategy: account %s already has a bound task", accountID)
	}
	inst := &instance{accountID: accountID, symbol: symbol, strategy: s, stop: make(chan struct{}), done: make(chan struct{}), alive: true}
	r.instances[accountID] = inst
	interval := r.interval
	r.mu.Unlock()

	go r.run(inst, interval)
	return nil
}

// run is the per-task lifecycle: on_init once, then on_bar on every
// synthetic heartbeat until Stop fires, then on_deinit. A panic or an
// on_init failure marks the task dead without tearing down the process
// (spec.md §4.D: "one strategy crashing must not affect any other account").
func (r *Runtime) run(inst *instance, interval time.Duration) {
	defer close(inst.done)
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("strategy[%s]: panic: %v", inst.accountID, rec)
			inst.markDead()
		}
	}()

	ctx := context.Background()
	ok, err := inst.strategy.OnInit(ctx)
	if err != nil || !ok {
		log.Printf("strategy[%s]: on_init failed: ok=%v err=%v", inst.accountID, ok, err)
		inst.markDead()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-inst.stop:
			deinitCtx, cancel := context.WithTimeout(context.Background(), joinTimeout)
			if err := inst.strategy.OnDeinit(deinitCtx); err != nil {
				log.Printf("strategy[%s]: on_deinit error: %v", inst.accountID, err)
			}
			cancel()
			inst.markDead()
			return
		case now := <-ticker.C:
			if err := inst.strategy.OnBar(ctx, MarketEvent{Symbol: inst.symbol, Time: now}); err != nil {
				log.Printf("strategy[%s]: on_bar error: %v", inst.accountID, err)
				inst.markDead()
				return
			}
		}
	}
}

func (inst *instance) markDead() {
	inst.mu.Lock()
	inst.alive = false
	inst.mu.Unlock()
}

// Stop signals accountID's task to exit and waits up to joinTimeout for it.
// It is a no-op if accountID is not bound. The instance is left in the map
// (marked dead if the join times out) for the caller to Drop explicitly.
func (r *Runtime) Stop(accountID string) {
	r.mu.Lock()
	inst, ok := r.instances[accountID]
	r.mu.Unlock()
	if !ok {
		return
	}

	inst.stopOnce.Do(func() { close(inst.stop) })
	select {
	case <-inst.done:
	case <-time.After(joinTimeout):
		log.Printf("strategy[%s]: stop timed out after %s, marking dead", accountID, joinTimeout)
		inst.markDead()
	}
}
