package sessionbuffer

// groupType is the outcome of folding every drained operation for one
// session key in arrival order.
type groupType int

const (
	groupStart groupType = iota + 1
	groupUpdate
	groupStop
	groupStartStop
)

// group is the result of collapsing all drained operations for one
// (session_id, nas_ip) key into the minimum set of effects described
// in the flush algorithm.
type group struct {
	key      Key
	username string
	kind     groupType

	start  *Operation // set when a Start appeared anywhere in this window
	latest *Operation // the last operation seen for this key, carries final counters/terminate cause
}

// foldGroups collapses a drained, arrival-ordered operation list into
// one group per key, preserving the order keys were first seen so the
// flush transaction applies effects in a stable, deterministic order.
func foldGroups(ops []*Operation) []*group {
	index := make(map[Key]int)
	var groups []*group

	for _, op := range ops {
		i, ok := index[op.Key]
		var g *group
		if ok {
			g = groups[i]
		} else {
			g = &group{key: op.Key, username: op.Username}
			index[op.Key] = len(groups)
			groups = append(groups, g)
		}

		if op.Type == OpUpdate && (g.kind == groupStop || g.kind == groupStartStop) {
			// Stop wins: a late Update keeps neither its counters nor
			// a chance to clear the terminate cause.
			continue
		}
		g.latest = op
		switch op.Type {
		case OpStart:
			g.start = op
			if g.kind != groupStop && g.kind != groupStartStop {
				g.kind = groupStart
			}
		case OpUpdate:
			if g.kind == 0 {
				g.kind = groupUpdate
			}
			// a pending Start (or StartStop) keeps its kind; an
			// Update only changes the final counters via g.latest.
		case OpStop:
			if g.start != nil {
				g.kind = groupStartStop
			} else {
				g.kind = groupStop
			}
		}
	}
	return groups
}
