package queues

import (
	"testing"

	"mt5copier/internal/account"
	"mt5copier/internal/core"
)

func TestCommandQueueEnqueueDequeueIsFIFO(t *testing.T) {
	q := NewCommandQueue()
	q.Enqueue(core.Command{Kind: core.CommandStopStrategy, AccountID: "a"})
	q.Enqueue(core.Command{Kind: core.CommandCloseSingleTrade, AccountID: "b", Ticket: 7})

	first, ok := q.Dequeue()
	if !ok || first.AccountID != "a" {
		t.Fatalf("first dequeue = %+v, %v, want account a first", first, ok)
	}
	second, ok := q.Dequeue()
	if !ok || second.AccountID != "b" || second.Ticket != 7 {
		t.Fatalf("second dequeue = %+v, %v, want account b ticket 7", second, ok)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected the queue to be empty after draining both commands")
	}
}

func TestCommandQueueEnqueueForceCloseAllCarriesReason(t *testing.T) {
	q := NewCommandQueue()
	q.EnqueueForceCloseAll("global risk stop: equity 900.00 below threshold 1000.00")

	cmd, ok := q.Dequeue()
	if !ok {
		t.Fatal("expected a command after EnqueueForceCloseAll")
	}
	if cmd.Kind != core.CommandCloseAllForcefully {
		t.Fatalf("Kind = %v, want CommandCloseAllForcefully", cmd.Kind)
	}
	if cmd.Reason == "" {
		t.Fatal("expected the risk-stop reason to be preserved on the command")
	}
}

func TestCommandQueueLenReflectsBacklog(t *testing.T) {
	q := NewCommandQueue()
	if q.Len() != 0 {
		t.Fatalf("Len on empty queue = %d, want 0", q.Len())
	}
	q.Enqueue(core.Command{Kind: core.CommandStopStrategy})
	q.Enqueue(core.Command{Kind: core.CommandStopStrategy})
	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}
	q.Dequeue()
	if q.Len() != 1 {
		t.Fatalf("Len after one dequeue = %d, want 1", q.Len())
	}
}

func TestLogQueueLogStampsTimeAndPreservesOrder(t *testing.T) {
	q := NewLogQueue()
	q.Log("acct1", "connected")
	q.Log("acct1", "mirror cycle closed=1")

	first, ok := q.Dequeue()
	if !ok || first.Message != "connected" {
		t.Fatalf("first = %+v, %v, want message 'connected'", first, ok)
	}
	if first.Time.IsZero() {
		t.Fatal("expected Log to stamp a non-zero time")
	}
	second, ok := q.Dequeue()
	if !ok || second.Message != "mirror cycle closed=1" {
		t.Fatalf("second = %+v, %v, want message 'mirror cycle closed=1'", second, ok)
	}
}

func TestLogQueueDrainAllFlushesBacklogAndEmptiesQueue(t *testing.T) {
	q := NewLogQueue()
	q.Log("a", "one")
	q.Log("a", "two")
	q.Log("b", "three")

	entries := q.DrainAll()
	if len(entries) != 3 {
		t.Fatalf("drained %d entries, want 3", len(entries))
	}
	if entries[0].Message != "one" || entries[2].AccountID != "b" {
		t.Fatalf("unexpected drain order: %+v", entries)
	}
	if more := q.DrainAll(); len(more) != 0 {
		t.Fatalf("expected the queue to be empty after DrainAll, got %d more", len(more))
	}
}

func TestAccountSnapshotQueuePublishDequeueRoundTrips(t *testing.T) {
	q := NewAccountSnapshotQueue()
	q.Publish(account.Snapshot{ID: "acct1", Role: account.RoleFollower, State: account.StateCopying})
	q.Publish(account.Snapshot{ID: "acct2", Role: account.RoleMaster, State: account.StateConnected})

	first, ok := q.Dequeue()
	if !ok || first.ID != "acct1" || first.State != account.StateCopying {
		t.Fatalf("first = %+v, %v, want acct1 copying", first, ok)
	}
	rest := q.DrainAll()
	if len(rest) != 1 || rest[0].ID != "acct2" {
		t.Fatalf("rest = %+v, want one entry for acct2", rest)
	}
}

// compile-time interface satisfaction checks, mirroring the duck-typing
// contracts internal/supervisor, internal/core and internal/datasync each
// declare independently.
type commandSink interface{ EnqueueForceCloseAll(reason string) }
type commandSource interface {
	Dequeue() (core.Command, bool)
}
type logSink interface{ Log(accountID, message string) }
type snapshotSink interface{ Publish(snap account.Snapshot) }

var (
	_ commandSink   = (*CommandQueue)(nil)
	_ commandSource = (*CommandQueue)(nil)
	_ logSink       = (*LogQueue)(nil)
	_ snapshotSink  = (*AccountSnapshotQueue)(nil)
)
