package sessionbuffer

import "testing"

func newTestBuffer() *Buffer {
	return New(nil, nil, nil)
}

func TestAddStartMarksPending(t *testing.T) {
	b := newTestBuffer()
	key := Key{SessionID: "sess1", NASIP: "10.0.0.1"}

	b.AddStart(key, "alice", "nas1", "192.168.1.5", "00:11:22:33:44:55")

	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}
	if !b.IsSessionPending(key) {
		t.Error("expected session to be pending after AddStart")
	}
}

func TestAddUpdateKeepsStartPending(t *testing.T) {
	b := newTestBuffer()
	key := Key{SessionID: "sess1", NASIP: "10.0.0.1"}

	b.AddStart(key, "alice", "nas1", "192.168.1.5", "")
	b.AddUpdate(key, "alice", Counters{SessionTime: 60, InputOctets: 100})

	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	if !b.IsSessionPending(key) {
		t.Error("expected session still pending after an Update following a Start")
	}

	if b.pending[key].Type != OpStart {
		t.Errorf("pending entry type = %v, want OpStart (an Update must not change lifecycle type)", b.pending[key].Type)
	}
	if b.pending[key].Counters.InputOctets != 100 {
		t.Errorf("pending counters not refreshed: got %+v", b.pending[key].Counters)
	}
}

func TestAddStopOverridesPending(t *testing.T) {
	b := newTestBuffer()
	key := Key{SessionID: "sess1", NASIP: "10.0.0.1"}

	b.AddStart(key, "alice", "nas1", "192.168.1.5", "")
	cause := 1
	b.AddStop(key, "alice", &cause, Counters{SessionTime: 120})

	if b.IsSessionPending(key) {
		t.Error("expected session not pending after AddStop")
	}
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
}

func TestPendingActiveCountForUser(t *testing.T) {
	b := newTestBuffer()
	b.AddStart(Key{SessionID: "s1", NASIP: "10.0.0.1"}, "alice", "nas1", "", "")
	b.AddStart(Key{SessionID: "s2", NASIP: "10.0.0.1"}, "alice", "nas1", "", "")
	b.AddStart(Key{SessionID: "s3", NASIP: "10.0.0.1"}, "bob", "nas1", "", "")

	if got := b.PendingActiveCountForUser("alice"); got != 2 {
		t.Errorf("PendingActiveCountForUser(alice) = %d, want 2", got)
	}

	cause := 1
	b.AddStop(Key{SessionID: "s1", NASIP: "10.0.0.1"}, "alice", &cause, Counters{})
	if got := b.PendingActiveCountForUser("alice"); got != 0 {
		t.Errorf("PendingActiveCountForUser(alice) after stop = %d, want 0", got)
	}
}

func TestDrainClearsQueueAndMatchingPending(t *testing.T) {
	b := newTestBuffer()
	key := Key{SessionID: "sess1", NASIP: "10.0.0.1"}
	b.AddStart(key, "alice", "nas1", "", "")

	drained := b.drain()

	if len(drained) != 1 {
		t.Fatalf("drain() returned %d ops, want 1", len(drained))
	}
	if b.Len() != 0 {
		t.Errorf("Len() after drain = %d, want 0", b.Len())
	}
	if b.IsSessionPending(key) {
		t.Error("expected pending entry cleared after drain")
	}
}

func TestDrainLeavesLateArrivalUntouched(t *testing.T) {
	b := newTestBuffer()
	key := Key{SessionID: "sess1", NASIP: "10.0.0.1"}
	b.AddStart(key, "alice", "nas1", "", "")

	drained := b.drain()

	b.AddUpdate(key, "alice", Counters{SessionTime: 30})

	if len(drained) != 1 {
		t.Fatalf("drain() returned %d ops, want 1", len(drained))
	}
	if !b.IsSessionPending(key) {
		t.Error("expected the post-drain Update to still be pending")
	}
}

func TestRequeueRestoresQueueAndPending(t *testing.T) {
	b := newTestBuffer()
	key := Key{SessionID: "sess1", NASIP: "10.0.0.1"}
	b.AddStart(key, "alice", "nas1", "", "")

	drained := b.drain()
	b.requeue(drained)

	if b.Len() != 1 {
		t.Fatalf("Len() after requeue = %d, want 1", b.Len())
	}
	if !b.IsSessionPending(key) {
		t.Error("expected pending entry restored after requeue")
	}
}

func TestRequeueDoesNotClobberNewerPending(t *testing.T) {
	b := newTestBuffer()
	key := Key{SessionID: "sess1", NASIP: "10.0.0.1"}
	b.AddStart(key, "alice", "nas1", "", "")

	drained := b.drain()

	cause := 1
	b.AddStop(key, "alice", &cause, Counters{})

	b.requeue(drained)

	if b.pending[key].Type != OpStop {
		t.Errorf("pending entry type = %v, want OpStop (a stale requeued Start must not clobber a newer Stop)", b.pending[key].Type)
	}
}
