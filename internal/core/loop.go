package core

import (
	"context"
	"fmt"
	"time"

	"mt5copier/internal/account"
	"mt5copier/internal/strategy"
	"mt5copier/internal/supervisor"
	"mt5copier/internal/terminal"
	"mt5copier/pkg/strategyconfig"
)

// Loop is the single background scheduler (spec.md §4.G): it is the only
// task that drives time forward for the Session Supervisor, Mirror Engine,
// and Strategy Runtime; the Data Sync Worker (§4.F) is the sole exception,
// running on its own task.
type Loop struct {
	store      *account.Store
	gate       *terminal.Gate
	supervisor *supervisor.Supervisor
	strategies *strategy.Runtime
	registry   *strategy.Registry
	overlay    *strategyconfig.Overlay

	commands CommandSource
	logs     supervisor.LogSink

	checkInterval  time.Duration
	connectTimeout time.Duration
}

// New builds a Core Loop. overlay may be nil, in which case startStrategy
// commands fall back to schema defaults plus whatever overrides the command
// itself carries.
func New(store *account.Store, gate *terminal.Gate, sup *supervisor.Supervisor, strategies *strategy.Runtime, registry *strategy.Registry, overlay *strategyconfig.Overlay, commands CommandSource, logs supervisor.LogSink, checkInterval time.Duration) *Loop {
	return &Loop{
		store: store, gate: gate, supervisor: sup, strategies: strategies, registry: registry, overlay: overlay,
		commands: commands, logs: logs,
		checkInterval: checkInterval, connectTimeout: 10 * time.Second,
	}
}

// Run blocks, ticking until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		l.Tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.checkInterval):
		}
	}
}

// Tick runs one iteration of the four-step algorithm in spec.md §4.G: drain
// one command, advance the Session Supervisor (which itself drives the
// Mirror Engine, the idle/strategy sweep, and the global risk evaluation),
// then return — the caller sleeps checkInterval.
func (l *Loop) Tick(ctx context.Context) {
	if cmd, ok := l.commands.Dequeue(); ok {
		if err := l.execute(ctx, cmd); err != nil {
			l.logf(cmd.AccountID, "command %s failed: %v", cmd.Kind, err)
		}
	}

	l.supervisor.RunOnce(ctx)
}

func (l *Loop) logf(accountID, format string, args ...any) {
	if l.logs == nil {
		return
	}
	l.logs.Log(accountID, fmt.Sprintf(format, args...))
}
