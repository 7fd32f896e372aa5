// Package queues implements the three fixed single-purpose queues that sit
// between the Core Loop / Session Supervisor / Data Sync Worker and the
// network edge (spec.md §4.H): a command queue (UI -> Core), a log queue
// (Core/Supervisor/Mirror/Data Sync -> UI), and an account-snapshot queue
// (Supervisor -> UI). All three are drop-none FIFOs guarded by a mutex.
//
// Grounded on internal/events/bus.go's channel-based pub/sub broker, but
// narrowed from a general topic bus with non-blocking, drop-if-slow publish
// to three fixed-purpose queues that never drop a write — spec.md §4.H
// calls the command queue and the log queue out explicitly as queues a
// slow or absent consumer must not cause producers to lose writes from.
package queues

import (
	"sync"
	"time"

	"mt5copier/internal/account"
	"mt5copier/internal/core"
)

// fifo is an unbounded, thread-safe first-in-first-out buffer. Growth is a
// plain slice append; Dequeue compacts by reslicing rather than shifting in
// place, which is the shape internal/backtest's event queue already uses
// for its own chronological buffer.
type fifo[T any] struct {
	mu    sync.Mutex
	items []T
}

func (f *fifo[T]) push(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, v)
}

func (f *fifo[T]) pop() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var zero T
	if len(f.items) == 0 {
		return zero, false
	}
	v := f.items[0]
	f.items = f.items[1:]
	return v, true
}

func (f *fifo[T]) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// drainAll removes and returns every buffered item, preserving order. Used
// by the websocket edge to flush a backlog in one fan-out pass rather than
// one Dequeue call per item.
func (f *fifo[T]) drainAll() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.items
	f.items = nil
	return out
}

// CommandQueue is the UI -> Core command queue. It satisfies both
// internal/core.CommandSource (Dequeue, read by the Core Loop) and
// internal/supervisor.CommandSink (EnqueueForceCloseAll, written by the
// Session Supervisor's own risk-stop trip) without importing either
// package's interface type.
type CommandQueue struct {
	fifo[core.Command]
}

// NewCommandQueue builds an empty command queue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

// Enqueue accepts any of the seven command shapes from the network edge.
func (q *CommandQueue) Enqueue(cmd core.Command) {
	q.push(cmd)
}

// EnqueueForceCloseAll satisfies internal/supervisor.CommandSink: the
// Supervisor's risk-stop step calls this to self-enqueue a closeAllForcefully
// command onto the same queue the UI pushes into.
func (q *CommandQueue) EnqueueForceCloseAll(reason string) {
	q.push(core.Command{Kind: core.CommandCloseAllForcefully, Reason: reason})
}

// Dequeue satisfies internal/core.CommandSource: the Core Loop drains at
// most one command per Tick.
func (q *CommandQueue) Dequeue() (core.Command, bool) {
	return q.pop()
}

// Len reports the current backlog, for a /healthz-style UI gauge.
func (q *CommandQueue) Len() int {
	return q.len()
}

// LogEntry is one line written to the log queue, tagged with the account it
// concerns (empty for a process-wide line) and the time it was written.
type LogEntry struct {
	Time      time.Time
	AccountID string
	Message   string
}

// LogQueue is the Core/Supervisor/Mirror/Data-Sync -> UI log queue. Log
// satisfies every package's narrow LogSink interface
// (internal/supervisor.LogSink, internal/datasync.LogSink) by structural
// typing alone.
type LogQueue struct {
	fifo[LogEntry]
}

// NewLogQueue builds an empty log queue.
func NewLogQueue() *LogQueue {
	return &LogQueue{}
}

// Log appends one entry, stamped with the current time.
func (q *LogQueue) Log(accountID, message string) {
	q.push(LogEntry{Time: time.Now().UTC(), AccountID: accountID, Message: message})
}

// Dequeue pops one entry for a pull-based consumer.
func (q *LogQueue) Dequeue() (LogEntry, bool) {
	return q.pop()
}

// DrainAll flushes the whole current backlog, for a websocket handler to
// push in one batch before switching to live tailing.
func (q *LogQueue) DrainAll() []LogEntry {
	return q.drainAll()
}

// AccountSnapshotQueue is the Supervisor -> UI account-state queue. Each
// entry is a full account.Snapshot rather than a partial delta: the
// Supervisor already recomputes a Snapshot per account every cycle, and a
// full snapshot lets the UI edge stay a dumb forwarder with no merge logic
// of its own.
type AccountSnapshotQueue struct {
	fifo[account.Snapshot]
}

// NewAccountSnapshotQueue builds an empty snapshot queue.
func NewAccountSnapshotQueue() *AccountSnapshotQueue {
	return &AccountSnapshotQueue{}
}

// Publish appends one account's current snapshot.
func (q *AccountSnapshotQueue) Publish(snap account.Snapshot) {
	q.push(snap)
}

// Dequeue pops one snapshot for a pull-based consumer.
func (q *AccountSnapshotQueue) Dequeue() (account.Snapshot, bool) {
	return q.pop()
}

// DrainAll flushes the whole current backlog.
func (q *AccountSnapshotQueue) DrainAll() []account.Snapshot {
	return q.drainAll()
}
