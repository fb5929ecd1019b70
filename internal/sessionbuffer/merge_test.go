package sessionbuffer

import "testing"

func op(typ OpType, key Key, username string) *Operation {
	o := newOperation(typ, key, username)
	return o
}

func TestFoldGroupsStartOnly(t *testing.T) {
	key := Key{SessionID: "s1", NASIP: "10.0.0.1"}
	ops := []*Operation{op(OpStart, key, "alice")}

	groups := foldGroups(ops)

	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(groups))
	}
	if groups[0].kind != groupStart {
		t.Errorf("kind = %v, want groupStart", groups[0].kind)
	}
}

func TestFoldGroupsStartThenUpdatesStaysStart(t *testing.T) {
	key := Key{SessionID: "s1", NASIP: "10.0.0.1"}
	ops := []*Operation{
		op(OpStart, key, "alice"),
		op(OpUpdate, key, "alice"),
		op(OpUpdate, key, "alice"),
	}

	groups := foldGroups(ops)

	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(groups))
	}
	if groups[0].kind != groupStart {
		t.Errorf("kind = %v, want groupStart (a Start followed only by Updates must not downgrade)", groups[0].kind)
	}
	if groups[0].start == nil {
		t.Error("expected start operation to be recorded")
	}
}

func TestFoldGroupsUpdateWithNoPriorStart(t *testing.T) {
	key := Key{SessionID: "s1", NASIP: "10.0.0.1"}
	ops := []*Operation{op(OpUpdate, key, "alice")}

	groups := foldGroups(ops)

	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(groups))
	}
	if groups[0].kind != groupUpdate {
		t.Errorf("kind = %v, want groupUpdate", groups[0].kind)
	}
}

func TestFoldGroupsStopOnly(t *testing.T) {
	key := Key{SessionID: "s1", NASIP: "10.0.0.1"}
	ops := []*Operation{op(OpStop, key, "alice")}

	groups := foldGroups(ops)

	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(groups))
	}
	if groups[0].kind != groupStop {
		t.Errorf("kind = %v, want groupStop", groups[0].kind)
	}
}

func TestFoldGroupsStartThenStopInSameWindow(t *testing.T) {
	key := Key{SessionID: "s1", NASIP: "10.0.0.1"}
	ops := []*Operation{
		op(OpStart, key, "alice"),
		op(OpStop, key, "alice"),
	}

	groups := foldGroups(ops)

	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(groups))
	}
	if groups[0].kind != groupStartStop {
		t.Errorf("kind = %v, want groupStartStop", groups[0].kind)
	}
	if groups[0].latest.Type != OpStop {
		t.Error("expected latest operation to be the Stop")
	}
}

func TestFoldGroupsStartUpdateStop(t *testing.T) {
	key := Key{SessionID: "s1", NASIP: "10.0.0.1"}
	ops := []*Operation{
		op(OpStart, key, "alice"),
		op(OpUpdate, key, "alice"),
		op(OpStop, key, "alice"),
	}

	groups := foldGroups(ops)

	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(groups))
	}
	if groups[0].kind != groupStartStop {
		t.Errorf("kind = %v, want groupStartStop", groups[0].kind)
	}
}

func TestFoldGroupsPreservesFirstSeenOrder(t *testing.T) {
	keyA := Key{SessionID: "a", NASIP: "10.0.0.1"}
	keyB := Key{SessionID: "b", NASIP: "10.0.0.1"}
	ops := []*Operation{
		op(OpStart, keyB, "bob"),
		op(OpStart, keyA, "alice"),
		op(OpUpdate, keyB, "bob"),
	}

	groups := foldGroups(ops)

	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if groups[0].key != keyB || groups[1].key != keyA {
		t.Errorf("groups not in first-seen order: got [%v, %v]", groups[0].key, groups[1].key)
	}
}
